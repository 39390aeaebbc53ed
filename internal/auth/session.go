package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tokium/lunchmap/internal/model"
)

// sessionIssuer はセッショントークンのissクレーム。
const sessionIssuer = "lunchmap"

// SessionClaims は署名付きセッショントークンの内部表現。
type SessionClaims struct {
	Identity model.IdentityClaim  `json:"identity"`
	User     model.BackendUser    `json:"user"`
	Backend  model.TokenPair      `json:"backend"`
	Provider model.ProviderTokens `json:"provider"`
	jwt.RegisteredClaims
}

// ProjectToken はサインイン時に取得した値をセッショントークンの内部表現へ写す。
// ネットワーク呼び出しは行わない。relayがnilの場合、バックエンド関連の値は空のままとなる。
func ProjectToken(info *OAuthUserInfo, relay *RelayResult, now time.Time, ttl time.Duration) *SessionClaims {
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	if info != nil {
		claims.Subject = info.ProviderUserID
		claims.Identity = model.IdentityClaim{
			SubjectID:   info.ProviderUserID,
			Email:       info.Email,
			DisplayName: info.Name,
			ProviderID:  info.Provider,
		}
		claims.Provider = model.ProviderTokens{
			IDToken:     info.IDToken,
			AccessToken: info.AccessToken,
		}
	}

	if relay != nil {
		claims.Backend = relay.Tokens
		claims.User = relay.User
	}

	return claims
}

// ProjectSession はセッショントークンの内部表現からページ・APIルート向けのセッションを作る。
// ネットワーク呼び出しは行わない。
func ProjectSession(claims *SessionClaims) *model.Session {
	if claims == nil {
		return nil
	}

	session := &model.Session{
		User:     claims.User,
		JWTToken: claims.Backend.AccessToken,
		ID:       claims.ID,
		Identity: claims.Identity,
	}
	if claims.ExpiresAt != nil {
		session.Expires = claims.ExpiresAt.Time
	}
	return session
}

// Record はセッショントークンの内部表現をSessionRecordとして返す。
func (c *SessionClaims) Record() *model.SessionRecord {
	record := &model.SessionRecord{
		ID:       c.ID,
		Identity: c.Identity,
		User:     c.User,
		Backend:  c.Backend,
		Provider: c.Provider,
	}
	if c.IssuedAt != nil {
		record.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		record.ExpiresAt = c.ExpiresAt.Time
	}
	return record
}

// SessionCodec はセッショントークンの署名と検証を行う。
// 署名鍵が変わると既存のセッションはすべて無効になる。
type SessionCodec struct {
	secret []byte
}

// NewSessionCodec はSessionCodecを生成する。
func NewSessionCodec(secret string) *SessionCodec {
	return &SessionCodec{secret: []byte(secret)}
}

// Encode はクレームをHS256で署名したトークン文字列に変換する。
func (c *SessionCodec) Encode(claims *SessionClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Decode はトークン文字列を検証してクレームを返す。
// 署名不一致・期限切れ・形式不正はすべて ErrInvalidSession をラップして返す。
func (c *SessionCodec) Decode(tokenStr string) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidSession
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// backendTokenExpired はバックエンドのアクセストークンが期限切れかを判定する。
// トークンはバックエンドの鍵で署名されているため署名は検証せず、expクレームのみ参照する。
// JWTとして解釈できない不透明なトークンは期限不明として有効扱いにする。
func backendTokenExpired(accessToken string, now time.Time) bool {
	if accessToken == "" {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// isInvalidSession はセッションを未認証として扱うべきエラーかを判定する。
func isInvalidSession(err error) bool {
	return errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrSessionRevoked) ||
		errors.Is(err, ErrBackendTokenExpired)
}
