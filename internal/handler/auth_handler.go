// Package handler はページ、認証ルート、BFFルートのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tokium/lunchmap/internal/auth"
	"github.com/tokium/lunchmap/internal/metrics"
	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/model"
	"github.com/tokium/lunchmap/internal/policy"
)

const (
	oauthStateCookie  = "lunchmap.oauth-state"
	callbackURLCookie = "lunchmap.callback-url"

	// サインイン失敗時に /auth/error へ渡す error クエリの値
	authErrorAccessDenied = "AccessDenied"
	authErrorCallback     = "Callback"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, string, error)
	SignOut(ctx context.Context, token string) error
}

// SignInRecorder はサインイン結果の記録先。metrics.Collectorが満たす。
type SignInRecorder interface {
	RecordSignIn(result string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	redirect *policy.RedirectPolicy
	recorder SignInRecorder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, redirect *policy.RedirectPolicy, recorder SignInRecorder, config AuthHandlerConfig) *AuthHandler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &AuthHandler{
		service:  service,
		redirect: redirect,
		recorder: recorder,
		config:   config,
	}
}

// SignIn はGoogle OAuthフローを開始する。
// GET /api/auth/signin/google?callbackUrl=/mypage
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	h.setShortLivedCookie(w, oauthStateCookie, state)

	if callbackURL := r.URL.Query().Get("callbackUrl"); callbackURL != "" {
		h.setShortLivedCookie(w, callbackURLCookie, url.QueryEscape(callbackURL))
	}

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /api/auth/callback/google?code=xxx&state=yyy
//
// 成功時のみセッションCookieを設定する。失敗時は /auth/error へ遷移し、Cookieは設定しない。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.recorder.RecordSignIn(metrics.SignInStateMismatch)
		h.failSignIn(w, r, authErrorCallback)
		return
	}
	h.clearCookie(w, oauthStateCookie, true)

	target := ""
	if c, err := r.Cookie(callbackURLCookie); err == nil {
		target, _ = url.QueryUnescape(c.Value)
		h.clearCookie(w, callbackURLCookie, true)
	}

	// 2. IdP側でのエラー（同意画面でのキャンセル等）
	if idpErr := query.Get("error"); idpErr != "" {
		slog.Warn("identity provider returned error", slog.String("error", idpErr))
		h.recorder.RecordSignIn(metrics.SignInFailed)
		h.failSignIn(w, r, authErrorCallback)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.recorder.RecordSignIn(metrics.SignInFailed)
		h.failSignIn(w, r, authErrorCallback)
		return
	}

	// 3. 認証処理（ドメイン検証とバックエンドのトークン交換を含む）
	_, token, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		if errors.Is(err, auth.ErrDomainNotAllowed) {
			h.recorder.RecordSignIn(metrics.SignInAccessDenied)
			h.failSignIn(w, r, authErrorAccessDenied)
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.recorder.RecordSignIn(metrics.SignInFailed)
		h.failSignIn(w, r, authErrorCallback)
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.recorder.RecordSignIn(metrics.SignInSuccess)

	// 5. リダイレクトポリシーに従って遷移
	http.Redirect(w, r, h.redirect.Resolve(target), http.StatusTemporaryRedirect)
}

// SignOut はセッションを失効させ、Cookieを削除する。
// POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.service.SignOut(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
			// 失効に失敗してもCookieはクリアする
		}
	}

	h.clearCookie(w, middleware.SessionCookieName, false)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": "/"})
}

// Session は現在のセッションを返す。未認証の場合は null を返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	sess := middleware.SessionFromContext(r.Context())
	if !sess.Authenticated() {
		w.Write([]byte("null"))
		return
	}
	json.NewEncoder(w).Encode(sess)
}

// failSignIn はサインイン失敗時にエラーページへ遷移する。
func (h *AuthHandler) failSignIn(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/auth/error?error="+code, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) setShortLivedCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie はCookieを削除する。hostOnlyがfalseの場合はCookieDomainを付ける。
func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string, hostOnly bool) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if !hostOnly {
		cookie.Domain = h.config.CookieDomain
	}
	http.SetCookie(w, cookie)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
