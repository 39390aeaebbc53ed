package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tokium/lunchmap/internal/model"
)

// TestWriteErrorEnvelope_WritesErrorField は {"error": message} 形式で書き込まれることを検証する。
func TestWriteErrorEnvelope_WritesErrorField(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		message    string
	}{
		{"unauthorized", http.StatusUnauthorized, "認証が必要です。"},
		{"bad request", http.StatusBadRequest, "無効なカテゴリです: food"},
		{"upstream not found", http.StatusNotFound, "restaurant not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorEnvelope(w, tt.statusCode, tt.message)

			resp := w.Result()
			if resp.StatusCode != tt.statusCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.statusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want %q", ct, "application/json")
			}

			var body map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if body["error"] != tt.message {
				t.Errorf("error = %v, want %q", body["error"], tt.message)
			}
			if len(body) != 1 {
				t.Errorf("envelope should only contain the error field, got %v", body)
			}
		})
	}
}

func TestWriteErrorResponse_UsesAPIErrorMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())

	var body ErrorEnvelope
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body.Error != model.NewRateLimitedError().Message {
		t.Errorf("error = %q, want %q", body.Error, model.NewRateLimitedError().Message)
	}
}

// TestWriteInternalServerError_NoInternalDetail は内部情報を含まない汎用メッセージを返すことを検証する。
func TestWriteInternalServerError_NoInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	raw, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(raw), "goroutine") || strings.Contains(string(raw), ".go:") {
		t.Errorf("response leaks internal detail: %s", raw)
	}

	var body ErrorEnvelope
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Error != "内部エラーが発生しました。" {
		t.Errorf("error = %q, want %q", body.Error, "内部エラーが発生しました。")
	}
}
