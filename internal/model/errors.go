package model

import "fmt"

// APIError はユーザー向けのエラー情報を表す。
// BFFのエラーエンベロープとエラーページの文言の両方に使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeAccessDenied    = "ACCESS_DENIED"
	ErrCodeSignInFailed    = "SIGNIN_FAILED"
	ErrCodeUpstream        = "UPSTREAM_ERROR"
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInvalidCategory = "INVALID_CATEGORY"
	ErrCodeInvalidID       = "INVALID_ID"
	ErrCodeCSRF            = "CSRF_VALIDATION_FAILED"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeBodyTooLarge    = "BODY_TOO_LARGE"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewAccessDeniedError は許可ドメイン外のアカウントによるアクセス拒否エラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "このアカウントではアクセスできません。",
		Category: "auth",
		Action:   "@tokium.jp のGoogleアカウントでログインしてください。アカウントをお持ちでない場合は情報システム担当へ発行を依頼してください。",
	}
}

// NewSignInFailedError はサインイン処理の失敗エラーを生成する。
func NewSignInFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInFailed,
		Message:  "ログインに失敗しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度ログインしてください。解決しない場合は管理者へお問い合わせください。",
	}
}

// NewUpstreamError はバックエンドAPIのエラー応答を表すエラーを生成する。
// messageが空の場合は汎用メッセージを使用する。
func NewUpstreamError(message string) *APIError {
	if message == "" {
		message = "リクエストの処理に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  message,
		Category: "upstream",
		Action:   "入力内容を確認し、再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。しばらく待ってから再度お試しください。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再送してください。",
	}
}

// NewInvalidCategoryError は無効なタグ分類エラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには area、genre、scene のいずれかを指定してください。",
	}
}

// NewInvalidIDError は無効なリソースIDエラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("無効なIDです: %s", id),
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "不正なリクエストです。ページを再読み込みしてから再度お試しください。",
		Category: "auth",
		Action:   "ページを再読み込みしてください。",
	}
}

// NewInvalidRequestError はリクエストボディ等の形式不正エラーを生成する。
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認し、再度お試しください。",
	}
}

// NewBodyTooLargeError はリクエストボディが上限を超えた場合のエラーを生成する。
func NewBodyTooLargeError() *APIError {
	return &APIError{
		Code:     ErrCodeBodyTooLarge,
		Message:  "リクエストが大きすぎます。",
		Category: "validation",
		Action:   "画像の枚数やサイズを減らして再度お試しください。",
	}
}
