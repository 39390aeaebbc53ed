package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// pageData はテンプレートに渡す値。
type pageData struct {
	Name    string
	Title   string
	Session *model.Session
	Error   *model.APIError
}

// PageHandler はページを描画するハンドラー。
// 画面の中身はクライアント側で構成するため、サーバーはシェルのみを返す。
type PageHandler struct {
	templates map[string]*template.Template
}

// NewPageHandler は埋め込みテンプレートを読み込んでPageHandlerを生成する。
func NewPageHandler() *PageHandler {
	templates := make(map[string]*template.Template)
	for _, name := range []string{"index", "page", "error"} {
		templates[name] = template.Must(template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html"))
	}
	return &PageHandler{templates: templates}
}

// Index はサインイン導線を含むトップページを描画する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index", pageData{Name: "index", Title: "ホーム"})
}

// Page はnameに対応するページシェルを描画するハンドラーを返す。
func (h *PageHandler) Page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, "page", pageData{Name: name, Title: title})
	}
}

// AccessDenied は許可ドメイン外のアカウントに対する403ページを描画する。
// ルートガードのForbiddenハンドラーとしても使用する。
func (h *PageHandler) AccessDenied(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusForbidden, "error", pageData{
		Name:  "access-denied",
		Title: "アクセスできません",
		Error: model.NewAccessDeniedError(),
	})
}

// AuthError はサインイン失敗ページを描画する。
// GET /auth/error?error=AccessDenied|Callback
func (h *PageHandler) AuthError(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("error") == authErrorAccessDenied {
		h.AccessDenied(w, r)
		return
	}
	h.render(w, r, http.StatusUnauthorized, "error", pageData{
		Name:  "signin-failed",
		Title: "ログインに失敗しました",
		Error: model.NewSignInFailedError(),
	})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	sess := middleware.SessionFromContext(r.Context())
	if sess.Authenticated() {
		data.Session = sess
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates[name].ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", data.Name),
			slog.String("error", err.Error()),
		)
	}
}
