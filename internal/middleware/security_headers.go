package middleware

import (
	"net/http"
	"strings"
)

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// imageOriginsはレビュー画像の配信元としてimg-srcに追加するオリジン。
func NewSecurityHeadersMiddleware(imageOrigins ...string) func(next http.Handler) http.Handler {
	csp := contentSecurityPolicy(imageOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", csp)
			next.ServeHTTP(w, r)
		})
	}
}

func contentSecurityPolicy(imageOrigins []string) string {
	img := []string{"'self'", "data:"}
	for _, origin := range imageOrigins {
		if origin = strings.TrimSuffix(strings.TrimSpace(origin), "/"); origin != "" {
			img = append(img, origin)
		}
	}
	return "default-src 'self'; img-src " + strings.Join(img, " ") + "; frame-ancestors 'none'"
}
