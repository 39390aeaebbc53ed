package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tokium/lunchmap/internal/backend"
	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/model"
)

const (
	// maxJSONBodyBytes はJSONボディの転送上限。
	maxJSONBodyBytes = 1 << 20
	// maxMultipartBodyBytes はレビュー投稿（画像添付を含む）の転送上限。
	maxMultipartBodyBytes = 20 << 20
)

// Upstream はBFFルートが必要とするバックエンド呼び出しのインターフェース。
// backend.Clientが満たす。
type Upstream interface {
	Do(ctx context.Context, req backend.Request) backend.Result
}

// SessionHandlerFunc はセッションを明示的に受け取るハンドラー。
// requireSession経由の場合sessは必ず認証済み、optionalSession経由の場合はnilになりうる。
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, sess *model.Session)

// requireSession はバックエンドのアクセストークンを持つセッションを必須とする。
// 持たない場合は401を返し、バックエンドへは一切転送しない。
func requireSession(next SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		if !sess.Authenticated() {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next(w, r, sess)
	}
}

// optionalSession はセッションがあればトークンを付与し、無ければ匿名で転送する。
func optionalSession(next SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		if !sess.Authenticated() {
			sess = nil
		}
		next(w, r, sess)
	}
}

// bearerToken はセッションのバックエンドアクセストークンを返す。
func bearerToken(sess *model.Session) string {
	if sess == nil {
		return ""
	}
	return sess.JWTToken
}

// writeResult はバックエンドの結果をブラウザへのレスポンスに変換する。
//
//	失敗  → 上流のステータスと {"error": message}
//	204   → 204（ボディなし）
//	成功  → 上流のステータスとボディをそのまま
func writeResult(w http.ResponseWriter, result backend.Result) {
	if !result.OK {
		middleware.WriteErrorEnvelope(w, result.Status, result.Message)
		return
	}
	if result.NoContent() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.Status)
	w.Write(result.Body)
}

// pathID はURLパラメータからリソースIDを取り出す。IDは正の整数のみ受け付ける。
// 不正な場合は400を書き込んでfalseを返す。
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(raw))
		return 0, false
	}
	return id, true
}

// idPath はベースパスにIDを連結する。
func idPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}

// requestContentType はリクエストのContent-Typeを返す。未指定ならJSONとみなす。
func requestContentType(r *http.Request) string {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}
