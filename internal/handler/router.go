package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tokium/lunchmap/internal/metrics"
	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/policy"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionReader     middleware.SessionReader
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	ProtectedPrefixes []string
	ImageOrigins      []string // レビュー画像の配信元（バックエンドの公開URL）

	// 認証
	AuthService    AuthServiceInterface
	AuthConfig     AuthHandlerConfig
	RedirectPolicy *policy.RedirectPolicy

	// BFF
	Upstream Upstream

	// 運用
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
	HealthChecker  HealthChecker
}

// NewRouter はページ、認証ルート、BFFルートのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → SecurityHeaders → CORS → Session → RouteGuard
//
// /api 配下はさらに CSRF → RateLimit(General) を通る。レビュー投稿のみ RateLimit(Upload) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pages := NewPageHandler()
	authHandler := NewAuthHandler(deps.AuthService, deps.RedirectPolicy, collector, deps.AuthConfig)
	favoriteHandler := NewFavoriteHandler(deps.Upstream)
	restaurantHandler := NewRestaurantHandler(deps.Upstream)
	reviewHandler := NewReviewHandler(deps.Upstream)
	tagHandler := NewTagHandler(deps.Upstream)

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.ImageOrigins...))
	if deps.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	}
	r.Use(middleware.NewSessionMiddleware(deps.SessionReader, middleware.SessionCookieName))
	r.Use(middleware.NewGuardMiddleware(middleware.GuardConfig{
		Prefixes:  deps.ProtectedPrefixes,
		Forbidden: http.HandlerFunc(pages.AccessDenied),
		Recorder:  collector,
	}))

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- ページ ---
	r.Get("/", pages.Index)
	r.With(middleware.RequireSignedIn(http.HandlerFunc(pages.AccessDenied))).Get("/top", pages.Page("top", "お店を探す"))
	r.Get("/mypage", pages.Page("mypage", "マイページ"))
	r.Get("/mypage/*", pages.Page("mypage", "マイページ"))
	r.Get("/admin", pages.Page("admin", "管理"))
	r.Get("/admin/*", pages.Page("admin", "管理"))
	r.Get("/dashboard", pages.Page("dashboard", "ダッシュボード"))
	r.Get("/dashboard/*", pages.Page("dashboard", "ダッシュボード"))
	r.Get("/auth/error", pages.AuthError)

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		// 認証ルート
		r.Route("/auth", func(r chi.Router) {
			r.Get("/signin/google", authHandler.SignIn)
			r.Get("/callback/google", authHandler.Callback)
			r.Post("/signout", authHandler.SignOut)
			r.Get("/session", authHandler.Session)
		})

		// お気に入り
		r.Get("/favorites", requireSession(favoriteHandler.List))

		// お店
		r.Route("/restaurants", func(r chi.Router) {
			r.Get("/", optionalSession(restaurantHandler.List))
			r.Post("/", requireSession(restaurantHandler.Create))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", requireSession(restaurantHandler.Get))
				r.Put("/", requireSession(restaurantHandler.Update))
				r.Delete("/", requireSession(restaurantHandler.Delete))

				r.Post("/favorite", requireSession(favoriteHandler.Add))
				r.Delete("/favorite", requireSession(favoriteHandler.Remove))

				// POST /api/restaurants/{id}/reviews - レビュー投稿（投稿専用レート制限を追加）
				r.With(deps.RateLimiter.UploadMiddleware()).Post("/reviews", requireSession(reviewHandler.Create))
				r.Delete("/reviews/{reviewId}", requireSession(reviewHandler.Delete))
			})
		})

		// タグ
		r.Get("/tags", optionalSession(tagHandler.List))
		r.Post("/tags", requireSession(tagHandler.Create))
	})

	return r
}
