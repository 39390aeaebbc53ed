package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tokium/lunchmap/internal/auth"
	"github.com/tokium/lunchmap/internal/backend"
	"github.com/tokium/lunchmap/internal/config"
	"github.com/tokium/lunchmap/internal/database"
	"github.com/tokium/lunchmap/internal/handler"
	"github.com/tokium/lunchmap/internal/logger"
	"github.com/tokium/lunchmap/internal/metrics"
	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/policy"
	"github.com/tokium/lunchmap/internal/repository"
	"github.com/tokium/lunchmap/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = config.DefaultServerPort
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("backend_url", cfg.BackendInternalURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// revocationStore は失効リストの保存先と、そのヘルスチェック対象をまとめる。
type revocationStore struct {
	repo     repository.RevocationRepository
	health   handler.HealthChecker
	close    func() error
	inMemory bool
}

// openRevocationStore はDATABASE_URLが設定されていればPostgreSQL、なければメモリの失効リストを開く。
func openRevocationStore(cfg *config.Config) (*revocationStore, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, revoked sessions are kept in memory")
		return &revocationStore{
			repo:     repository.NewMemoryRevocationRepo(),
			close:    func() error { return nil },
			inMemory: true,
		}, nil
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &revocationStore{
		repo:   repository.NewPostgresRevocationRepo(db),
		health: db,
		close:  db.Close,
	}, nil
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 戻り値のstopはバックグラウンド処理（レートリミッターの掃除）を停止する。
func newHandler(cfg *config.Config, store *revocationStore) (http.Handler, func(), error) {
	// 1. 認証
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	backendHTTP := &http.Client{Timeout: cfg.BackendTimeout}
	relay := auth.NewTokenRelay(cfg.BackendInternalURL, backendHTTP)
	authService := auth.NewService(
		oauthProvider, relay, auth.NewSessionCodec(cfg.SessionSecret), store.repo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	redirectPolicy, err := policy.NewRedirectPolicy(cfg.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid BASE_URL: %w", err)
	}

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. バックエンドAPIクライアント
	upstream := backend.NewClient(cfg.BackendInternalURL, backendHTTP, slog.Default(), collector)

	// 4. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload),
	)

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionReader:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:  rateLimiter,
		ImageOrigins: []string{cfg.BackendPublicURL},

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		RedirectPolicy: redirectPolicy,

		Upstream: upstream,

		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),
		HealthChecker:  store.health,
	}

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// runServe はWebサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	store, err := openRevocationStore(cfg)
	if err != nil {
		return err
	}
	defer store.close()

	router, stop, err := newHandler(cfg, store)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// メモリの失効リストはworkerから見えないため、同一プロセスで掃除する
	if store.inMemory {
		job := cleanup.NewCleanupJob(store.repo, slog.Default())
		job.Interval = cfg.RevocationCleanupInterval
		go job.Start(ctx)
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // 画像アップロードを考慮
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-sig:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLの失効リストから期限切れエントリを定期的に削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("worker requires DATABASE_URL")
	}

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(repository.NewPostgresRevocationRepo(db), slog.Default())
	job.Interval = cfg.RevocationCleanupInterval

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// openDatabase はPostgreSQLに接続し、疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(databaseURL)),
	)
	return db, nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
