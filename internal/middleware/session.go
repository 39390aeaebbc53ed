// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tokium/lunchmap/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "lunchmap.session-token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionReader はセッショントークンの検証に必要なインターフェース。
// auth.Serviceが満たす。
type SessionReader interface {
	ReadSession(ctx context.Context, token string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 検証済みのセッションをリクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無い、または検証できない場合はコンテキストを空のまま次に渡す。
// 拒否はルートガードとBFFルートが行う。
func NewSessionMiddleware(reader SessionReader, cookieName string) func(next http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = SessionCookieName
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := reader.ReadSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Debug("session cookie rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			noteSession(r.Context(), session.Email())
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// 未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
