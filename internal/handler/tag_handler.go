package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/tokium/lunchmap/internal/backend"
	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/model"
)

const resourceTags = "tags"

// TagHandler はタグのBFFルート。
type TagHandler struct {
	upstream Upstream
}

// NewTagHandler はTagHandlerを生成する。
func NewTagHandler(upstream Upstream) *TagHandler {
	return &TagHandler{upstream: upstream}
}

// createTagRequest はタグ作成リクエストのうち検証に使う項目。
type createTagRequest struct {
	Category model.TagCategory `json:"category"`
}

// List はタグ一覧を返す。categoryを指定した場合は area / genre / scene のいずれかに限る。
// GET /api/tags?category=area|genre|scene（認証不要）
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	query := url.Values{}
	if raw := r.URL.Query().Get("category"); raw != "" {
		if !model.TagCategory(raw).Valid() {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(raw))
			return
		}
		query.Set("category", raw)
	}

	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceTags,
		Method:   http.MethodGet,
		Path:     "/api/tags",
		Query:    query,
		Token:    bearerToken(sess),
	}))
}

// Create はタグを作成する。分類を検証したうえで、ボディは受け取ったまま転送する。
// POST /api/tags
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewBodyTooLargeError())
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディを読み取れませんでした。"))
		return
	}

	var req createTagRequest
	if err := json.Unmarshal(body, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディのJSONが不正です。"))
		return
	}
	if !req.Category.Valid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(string(req.Category)))
		return
	}

	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource:    resourceTags,
		Method:      http.MethodPost,
		Path:        "/api/tags",
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
		Token:       bearerToken(sess),
	}))
}
