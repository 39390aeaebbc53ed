package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/tokium/lunchmap/internal/model"
)

// ErrorEnvelope はBFFルートのエラーレスポンスの統一フォーマット。
type ErrorEnvelope struct {
	Error string `json:"error"`
}

// WriteErrorEnvelope は {"error": message} 形式でHTTPエラーレスポンスを書き込む。
// すべてのBFFルートで一貫したエラーレスポンスを提供する。
func WriteErrorEnvelope(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorEnvelope{Error: message})
}

// WriteErrorResponse はAPIErrorのユーザー向けメッセージをエンベロープで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteErrorEnvelope(w, statusCode, apiErr.Message)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
