// Package model はドメインモデルを定義する。
package model

import "time"

// IdentityClaim はIdPがサインイン時に表明したユーザー識別情報。
// セッションの有効期間中は変更されない。
type IdentityClaim struct {
	SubjectID   string `json:"sub"`
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	ProviderID  string `json:"provider"`
}

// TokenPair はバックエンドAPIが発行したトークンの組。
// AccessTokenは有効期限クレームを含む署名付きトークン（不透明値として扱う）。
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ProviderTokens はIdPから取得したトークン。
type ProviderTokens struct {
	IDToken     string `json:"id_token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

// BackendUser はバックエンドの認証エンドポイントが返すユーザー情報を正規化したもの。
type BackendUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	GoogleID string `json:"google_id,omitempty"`
}

// SessionRecord は署名付きセッショントークンの中身。
// サインインコールバックとサインアウトのみが丸ごと置き換える。
type SessionRecord struct {
	ID        string
	Identity  IdentityClaim
	User      BackendUser
	Backend   TokenPair
	Provider  ProviderTokens
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Session はページとAPIルートから参照される外部公開用のセッション。
type Session struct {
	User     BackendUser `json:"user"`
	JWTToken string      `json:"jwtToken,omitempty"`
	Expires  time.Time   `json:"expires"`

	// 以下はサーバー内部でのみ使用し、JSONには含めない
	ID       string        `json:"-"`
	Identity IdentityClaim `json:"-"`
}

// Authenticated はバックエンドのアクセストークンを保持しているかを返す。
// トークンが無いセッションは未認証として扱う。
func (s *Session) Authenticated() bool {
	return s != nil && s.JWTToken != ""
}

// Email はセッションのメールアドレスを返す。
// バックエンドのユーザー情報を優先し、無ければIdPの値を使う。
func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	if s.User.Email != "" {
		return s.User.Email
	}
	return s.Identity.Email
}
