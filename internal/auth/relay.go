package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tokium/lunchmap/internal/model"
)

// maxResponseBytes は外部サービスの応答として読み込む最大バイト数。
const maxResponseBytes = 1 << 20

// RelayResult はバックエンドの認証エンドポイントが発行したトークンとユーザー情報。
type RelayResult struct {
	Tokens model.TokenPair
	User   model.BackendUser
}

// TokenRelay はIdPの資格情報をバックエンドAPIのトークンに交換する。
// サービス間の信頼判断を行う唯一の箇所であり、失敗時の再試行は行わない。
type TokenRelay struct {
	baseURL    string
	httpClient *http.Client
}

// NewTokenRelay はTokenRelayを生成する。
// baseURLにはバックエンドの内部URLを指定する。
func NewTokenRelay(baseURL string, httpClient *http.Client) *TokenRelay {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenRelay{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

type relayRequest struct {
	IDToken string `json:"id_token"`
	Email   string `json:"email"`
}

type relayResponse struct {
	Success      bool       `json:"success"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         *relayUser `json:"user"`
}

type relayUser struct {
	ID       json.RawMessage `json:"id"`
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	GoogleID string          `json:"google_id"`
}

// Exchange はPOST {baseURL}/api/auth/{provider} を呼び出してトークンを取得する。
// success=true かつ access_token と user が揃った応答のみを成功とみなす。
// それ以外はすべて ErrRelayFailed をラップしたエラーを返す。
func (r *TokenRelay) Exchange(ctx context.Context, provider, idToken, email string) (*RelayResult, error) {
	payload, err := json.Marshal(relayRequest{IDToken: idToken, Email: email})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode request: %v", ErrRelayFailed, err)
	}

	endpoint := r.baseURL + "/api/auth/" + url.PathEscape(provider)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrRelayFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrRelayFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrRelayFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("backend auth endpoint returned error status",
			slog.String("provider", provider),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrRelayFailed, resp.StatusCode)
	}

	var parsed relayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrRelayFailed, err)
	}

	if !parsed.Success || parsed.AccessToken == "" || parsed.User == nil {
		return nil, fmt.Errorf("%w: unexpected response shape", ErrRelayFailed)
	}

	userID, err := normalizeID(parsed.User.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}

	userEmail := parsed.User.Email
	if userEmail == "" {
		userEmail = email
	}

	return &RelayResult{
		Tokens: model.TokenPair{
			AccessToken:  parsed.AccessToken,
			RefreshToken: parsed.RefreshToken,
		},
		User: model.BackendUser{
			ID:       userID,
			Email:    userEmail,
			Name:     parsed.User.Name,
			GoogleID: parsed.User.GoogleID,
		},
	}, nil
}

// normalizeID はバックエンドが数値・文字列のどちらで返しても文字列IDに揃える。
func normalizeID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("missing user id")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid user id: %v", err)
		}
		if s == "" {
			return "", fmt.Errorf("missing user id")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", fmt.Errorf("invalid user id: %v", err)
	}
	return n.String(), nil
}

// compile-time interface check
var _ Relay = (*TokenRelay)(nil)
