// Package backend はバックエンドREST APIを呼び出すサーバー側クライアントを提供する。
// BFFルートはブラウザからのリクエストをこのクライアント経由で内部URLへ転送する。
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tokium/lunchmap/internal/model"
)

// maxResponseBytes はバックエンド応答ボディの読み取り上限。
const maxResponseBytes = 10 << 20

// UpstreamRecorder はバックエンド呼び出しの計測先。metrics.Collectorが満たす。
type UpstreamRecorder interface {
	RecordUpstream(resource string, statusCode int, duration time.Duration)
}

// Request はバックエンドへ転送するリクエスト。
type Request struct {
	Resource    string // メトリクス用のリソース名（favorites, restaurants 等）
	Method      string
	Path        string // /api/... 形式
	Query       url.Values
	Body        io.Reader
	ContentType string
	Token       string // 空でなければ Authorization: Bearer を付与する
}

// Result はバックエンド呼び出しの結果。
//
//	OK == true  → Status と Body（204の場合は空）
//	OK == false → Status と Message（ユーザー向けの文言）
type Result struct {
	OK          bool
	Status      int
	Body        []byte
	ContentType string
	Message     string
}

// NoContent は204応答かどうかを返す。
func (r Result) NoContent() bool {
	return r.OK && r.Status == http.StatusNoContent
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	recorder   UpstreamRecorder
}

// NewClient はClientを生成する。baseURLにはバックエンドの内部URLを指定する。
// recorderはnilでもよい。
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger, recorder UpstreamRecorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		recorder:   recorder,
	}
}

// Do はリクエストをバックエンドへ送信し、結果を返す。
// エラーは返さず、転送失敗も含めてすべてResultで表現する。
func (c *Client) Do(ctx context.Context, req Request) Result {
	start := time.Now()
	result := c.do(ctx, req)
	if c.recorder != nil {
		c.recorder.RecordUpstream(req.Resource, result.Status, time.Since(start))
	}
	return result
}

func (c *Client) do(ctx context.Context, req Request) Result {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body *bodyReader
	var reqBody io.Reader
	if req.Body != nil {
		body = &bodyReader{r: req.Body}
		reqBody = body
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reqBody)
	if err != nil {
		c.logger.Error("failed to build upstream request",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return internalFailure()
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if body != nil && body.tooLarge() {
		if resp != nil {
			resp.Body.Close()
		}
		c.logger.Warn("request body exceeds limit",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
		)
		return Result{
			Status:  http.StatusRequestEntityTooLarge,
			Message: model.NewBodyTooLargeError().Message,
		}
	}
	if err != nil {
		c.logger.Error("upstream request failed",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("error", err.Error()),
		)
		return internalFailure()
	}
	defer resp.Body.Close()

	// 204は本文を読まない
	if resp.StatusCode == http.StatusNoContent {
		return Result{OK: true, Status: http.StatusNoContent}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("failed to read upstream response",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return internalFailure()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{
			OK:          true,
			Status:      resp.StatusCode,
			Body:        respBody,
			ContentType: resp.Header.Get("Content-Type"),
		}
	}

	c.logger.Warn("upstream returned error status",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
	)
	return Result{
		Status:  resp.StatusCode,
		Message: errorMessage(respBody),
	}
}

// errorMessage はバックエンドのエラー応答から文言を取り出す。
// error または message フィールドが文字列で無ければ汎用メッセージを返す。
func errorMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.NewUpstreamError("").Message
	}
	for _, field := range []string{"error", "message"} {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			return msg
		}
	}
	return model.NewUpstreamError("").Message
}

// bodyReader は転送中のリクエストボディの読み取りエラーを記録する。
// http.MaxBytesReaderの上限超過はトランスポートエラーに包まれるため、ここで拾う。
type bodyReader struct {
	r io.Reader

	mu  sync.Mutex
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		b.mu.Lock()
		if b.err == nil {
			b.err = err
		}
		b.mu.Unlock()
	}
	return n, err
}

func (b *bodyReader) tooLarge() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var maxErr *http.MaxBytesError
	return errors.As(b.err, &maxErr)
}

func internalFailure() Result {
	return Result{
		Status:  http.StatusInternalServerError,
		Message: model.NewInternalError().Message,
	}
}

