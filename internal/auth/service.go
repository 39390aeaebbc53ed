// Package auth はOAuth認証フロー、バックエンドへのトークン中継、署名付きセッションを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokium/lunchmap/internal/model"
	"github.com/tokium/lunchmap/internal/policy"
	"github.com/tokium/lunchmap/internal/repository"
)

// ProviderGoogle はGoogle IdPの識別子。バックエンドの /api/auth/{provider} にも使う。
const ProviderGoogle = "google"

var (
	// ErrDomainNotAllowed は許可ドメイン外のメールアドレスでサインインしようとした場合のエラー。
	ErrDomainNotAllowed = errors.New("email domain is not allowed")
	// ErrRelayFailed はバックエンドとのトークン交換に失敗した場合のエラー。
	ErrRelayFailed = errors.New("backend token exchange failed")
	// ErrInvalidSession はセッショントークンが無い、または検証できない場合のエラー。
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionRevoked はサインアウト済みのセッションが提示された場合のエラー。
	ErrSessionRevoked = errors.New("session revoked")
	// ErrBackendTokenExpired はバックエンドのアクセストークンが期限切れの場合のエラー。
	ErrBackendTokenExpired = errors.New("backend access token expired")
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
	IDToken        string
	AccessToken    string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// Relay はIdPの資格情報をバックエンドのトークンに交換するインターフェース。
type Relay interface {
	Exchange(ctx context.Context, provider, idToken, email string) (*RelayResult, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	relay       Relay
	codec       *SessionCodec
	revocations repository.RevocationRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	relay Relay,
	codec *SessionCodec,
	revocations repository.RevocationRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		relay:       relay,
		codec:       codec,
		revocations: revocations,
		config:      config,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、署名付きセッショントークンを発行する。
//
// 処理順:
//
//	認可コード交換 → 許可ドメイン検証 → バックエンドとのトークン交換 → 投影 → 署名
//
// いずれかが失敗した場合はトークンを返さない（部分的なセッションは作らない）。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, string, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. 許可ドメインの検証
	if !policy.IsAllowedEmail(userInfo.Email) {
		slog.Warn("sign-in rejected by domain policy",
			slog.String("email", userInfo.Email),
			slog.String("provider", userInfo.Provider),
		)
		return nil, "", ErrDomainNotAllowed
	}

	// 3. バックエンドのトークンを取得
	relay, err := s.relay.Exchange(ctx, userInfo.Provider, userInfo.IDToken, userInfo.Email)
	if err != nil {
		return nil, "", err
	}

	// 4. セッショントークンを発行
	claims := ProjectToken(userInfo, relay, s.now(), s.sessionTTL())
	token, err := s.codec.Encode(claims)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session: %w", err)
	}

	slog.Info("user signed in",
		slog.String("user_id", relay.User.ID),
		slog.String("email", relay.User.Email),
		slog.String("provider", userInfo.Provider),
	)

	return ProjectSession(claims), token, nil
}

// ReadSession はセッショントークンを検証し、外部公開用のセッションを返す。
// 未認証として扱うべき場合は ErrInvalidSession / ErrSessionRevoked /
// ErrBackendTokenExpired を返す。
func (s *Service) ReadSession(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	if backendTokenExpired(claims.Backend.AccessToken, s.now()) {
		return nil, ErrBackendTokenExpired
	}

	return ProjectSession(claims), nil
}

// SignOut はセッションを失効させる。
// 検証できないトークンは既に無効なので何もせずに成功とする。
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil
	}

	expiresAt := s.now().Add(s.sessionTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.revocations.Revoke(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	slog.Info("user signed out",
		slog.String("user_id", claims.User.ID),
		slog.String("session_id", claims.ID),
	)
	return nil
}

// IsUnauthenticated はReadSessionのエラーが「未認証」を意味するかを返す。
// それ以外のエラーは失効リストの参照失敗などの内部エラーである。
func IsUnauthenticated(err error) bool {
	return isInvalidSession(err)
}

func (s *Service) sessionTTL() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}
