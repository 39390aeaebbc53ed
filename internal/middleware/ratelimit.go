package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tokium/lunchmap/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // BFFルート全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // BFFルート全般のバーストサイズ
	UploadRate      rate.Limit    // レビュー投稿（multipart）のレート（req/sec）。10/60
	UploadBurst     int           // レビュー投稿のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// BFFルート全般 120 req/min/user、レビュー投稿 10 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(120, 10)
}

// PerMinuteRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を作る。
// バーストサイズは1分あたりの上限と同じにする。
func PerMinuteRateLimiterConfig(generalPerMin, uploadPerMin int) RateLimiterConfig {
	if generalPerMin <= 0 {
		generalPerMin = 120
	}
	if uploadPerMin <= 0 {
		uploadPerMin = 10
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		UploadRate:      rate.Limit(float64(uploadPerMin) / 60.0),
		UploadBurst:     uploadPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// limiterEntry はキーごとのリミッターと最終アクセス時刻。
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool は同じレートを共有するキーごとのリミッターの集合。
type limiterPool struct {
	name  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newLimiterPool(name string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		name:    name,
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*limiterEntry),
	}
}

// allow はkeyのリミッターからトークンを1つ消費できるかを返す。
func (p *limiterPool) allow(key string, now time.Time) bool {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[key] = e
	}
	e.lastAccess = now
	p.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// sweep はttlを超えてアクセスの無いエントリを削除する。
func (p *limiterPool) sweep(now time.Time, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, e := range p.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(p.entries, key)
		}
	}
}

func (p *limiterPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// RateLimiter はユーザーごとのレート制限を管理する。
// BFFルート全般とレビュー投稿の2系統を独立に持つ。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterPool
	upload  *limiterPool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成し、使われなくなったエントリの掃除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterPool("general", config.GeneralRate, config.GeneralBurst),
		upload:  newLimiterPool("upload", config.UploadRate, config.UploadBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop は掃除のゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はBFFルート全般のレート制限ミドルウェアを返す。
// セッションミドルウェアの後に配置する。未認証リクエストはクライアントIPで制限する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// UploadMiddleware はレビュー投稿専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) UploadMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.upload)
}

func (rl *RateLimiter) middleware(pool *limiterPool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limiterKey(r)
			if !pool.allow(key, time.Now()) {
				slog.Warn("rate limit exceeded",
					slog.String("key", key),
					slog.String("limit_type", pool.name),
				)
				writeRateLimitResponse(w, pool.limit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limiterKey はレート制限のキーを返す。
// サインイン済みならユーザーID（無ければメールアドレス）、未認証ならクライアントIP。
func limiterKey(r *http.Request) string {
	if session := SessionFromContext(r.Context()); session.Authenticated() {
		if session.User.ID != "" {
			return "user:" + session.User.ID
		}
		return "user:" + session.Email()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// GeneralLimiterCount はBFFルート全般で保持しているキーの数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// UploadLimiterCount はレビュー投稿で保持しているキーの数を返す。
func (rl *RateLimiter) UploadLimiterCount() int {
	return rl.upload.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup はCleanupIntervalの2倍を超えてアクセスの無いエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.sweep(now, ttl)
	rl.upload.sweep(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
