// Package client はBFFルートを呼び出すクライアント側のデータ取得層を提供する。
// 取得結果をキー単位でキャッシュし、更新系の操作後は関連するキーを無効化する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/tokium/lunchmap/internal/middleware"
)

const (
	// SignedOutRedirect は強制サインアウト後の遷移先。
	SignedOutRedirect = "/"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
)

// RetryPolicy は取得系リクエストの再試行方針。
type RetryPolicy struct {
	MaxRetries int
	RetryDelay time.Duration // n回目の再試行前に n×RetryDelay 待つ
}

// DefaultRetryPolicy はデフォルトの再試行方針を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, RetryDelay: time.Second}
}

// HTTPError はBFF呼び出しの失敗を表す。Error() は利用者向けの1つの文字列を返す。
// Statusが0の場合は通信自体が失敗している。
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithHTTPClient はHTTPクライアントを差し替える。Jarが未設定の場合はClientのJarを使う。
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCache はキャッシュを差し替える。
func WithCache(cache *QueryCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithRetry は再試行方針を差し替える。
func WithRetry(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithOnSignedOut は強制サインアウト時に呼ばれるコールバックを設定する。
func WithOnSignedOut(fn func(redirectTo string)) Option {
	return func(c *Client) {
		c.onSignedOut = fn
	}
}

// WithTimeout は1回のリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Client はBFFルートのクライアント。セッションとCSRFトークンはCookie Jarで保持する。
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	cache       *QueryCache
	retry       RetryPolicy
	timeout     time.Duration
	onSignedOut func(redirectTo string)
	logger      *slog.Logger

	signOutGroup singleflight.Group
}

// New はClientを生成する。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ベースURLが不正です: %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("Cookie Jarの作成に失敗しました: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Jar: jar},
		retry:      DefaultRetryPolicy(),
		timeout:    defaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	if c.cache == nil {
		c.cache = NewQueryCache(CacheConfig{})
	}
	return c, nil
}

// Cache はクライアントのキャッシュを返す。
func (c *Client) Cache() *QueryCache {
	return c.cache
}

// State はkeyの現在の取得状態を返す。
func (c *Client) State(key Key) State {
	return c.cache.State(key)
}

// request は1回分のリクエスト内容。再試行のためボディはバイト列で保持する。
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

// query はキャッシュを介してGETし、JSONをTにデコードする。
func query[T any](ctx context.Context, c *Client, key Key, path string, q url.Values) (T, error) {
	v, err := c.cache.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		var out T
		if err := c.doWithRetry(ctx, request{method: http.MethodGet, path: path, query: q}, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// mutate は更新系のリクエストを1回だけ送る。成功した場合はinvalidatesのキーを無効化する。
func (c *Client) mutate(ctx context.Context, req request, out any, invalidates ...Key) error {
	if err := c.withCSRF(ctx); err != nil {
		return err
	}
	if err := c.send(ctx, req, out); err != nil {
		return err
	}
	for _, key := range invalidates {
		c.cache.Invalidate(key)
	}
	return nil
}

// doWithRetry は再試行方針に従ってリクエストを送る。
func (c *Client) doWithRetry(ctx context.Context, req request, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.send(ctx, req, out)
		if err == nil || !c.shouldRetry(ctx, err, attempt) {
			return err
		}

		delay := time.Duration(attempt+1) * c.retry.RetryDelay
		c.logger.Debug("リクエストを再試行します",
			slog.String("path", req.path),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *Client) shouldRetry(ctx context.Context, err error, attempt int) bool {
	if ctx.Err() != nil || attempt >= c.retry.MaxRetries {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Status {
		case http.StatusNotFound, http.StatusUnauthorized:
			return false
		}
	}
	return true
}

// send はリクエストを1回送る。401の場合は強制サインアウトを行う。
func (c *Client) send(ctx context.Context, req request, out any) error {
	status, body, err := c.roundTrip(ctx, req)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.forceSignOut(ctx)
	}
	if status < 200 || status > 299 {
		return &HTTPError{Status: status, Message: errorMessage(status, body)}
	}

	if out == nil || status == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &HTTPError{Status: status, Message: "レスポンスの形式が不正です。", Err: err}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request) (int, []byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.resolve(req.path, req.query), body)
	if err != nil {
		return 0, nil, &HTTPError{Message: "リクエストの作成に失敗しました。", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if token := c.csrfCookie(); token != "" {
		httpReq.Header.Set(middleware.CSRFHeaderName, token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		msg := "通信に失敗しました。"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "通信がタイムアウトしました。"
		}
		return 0, nil, &HTTPError{Message: msg, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &HTTPError{Message: "通信に失敗しました。", Err: err}
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) resolve(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// csrfCookie はJarに保存されたCSRFトークンを返す。
func (c *Client) csrfCookie() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == middleware.CSRFCookieName {
			return cookie.Value
		}
	}
	return ""
}

// withCSRF はCSRFトークンCookieが無ければ取得しておく。ヘッダーはroundTripで付与する。
func (c *Client) withCSRF(ctx context.Context) error {
	if c.csrfCookie() != "" {
		return nil
	}
	status, body, err := c.roundTrip(ctx, request{method: http.MethodGet, path: "/api/csrf-token"})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return &HTTPError{Status: status, Message: errorMessage(status, body)}
	}
	return nil
}

// forceSignOut はサーバー側のセッションを破棄し、キャッシュを消去して利用者に通知する。
// 同時に複数の401を受けても1回にまとめる。
func (c *Client) forceSignOut(ctx context.Context) {
	c.signOutGroup.Do("signout", func() (any, error) {
		c.logger.Info("認証が切れたためサインアウトします")

		ctx := context.WithoutCancel(ctx)
		if err := c.withCSRF(ctx); err == nil {
			if _, _, err := c.roundTrip(ctx, request{method: http.MethodPost, path: "/api/auth/signout"}); err != nil {
				c.logger.Warn("サインアウトリクエストに失敗しました", slog.String("error", err.Error()))
			}
		}

		c.cache.Clear()
		if c.onSignedOut != nil {
			c.onSignedOut(SignedOutRedirect)
		}
		return nil, nil
	})
}

func errorMessage(status int, body []byte) string {
	var envelope middleware.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return fmt.Sprintf("リクエストに失敗しました (%d)", status)
}
