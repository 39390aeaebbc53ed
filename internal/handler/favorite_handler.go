package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/tokium/lunchmap/internal/backend"
	"github.com/tokium/lunchmap/internal/middleware"
	"github.com/tokium/lunchmap/internal/model"
)

const resourceFavorites = "favorites"

// FavoriteHandler はお気に入りのBFFルート。
type FavoriteHandler struct {
	upstream Upstream
}

// NewFavoriteHandler はFavoriteHandlerを生成する。
func NewFavoriteHandler(upstream Upstream) *FavoriteHandler {
	return &FavoriteHandler{upstream: upstream}
}

// favoriteRequest はバックエンドへのお気に入り登録リクエスト。
type favoriteRequest struct {
	RestaurantID int64 `json:"restaurant_id"`
}

// List はお気に入り一覧を返す。
// GET /api/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceFavorites,
		Method:   http.MethodGet,
		Path:     "/api/favorites",
		Token:    bearerToken(sess),
	}))
}

// Add はお店をお気に入りに登録する。
// POST /api/restaurants/{id}/favorite → POST /api/favorites {restaurant_id}
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	body, err := json.Marshal(favoriteRequest{RestaurantID: id})
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource:    resourceFavorites,
		Method:      http.MethodPost,
		Path:        "/api/favorites",
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
		Token:       bearerToken(sess),
	}))
}

// Remove はお気に入りを解除する。バックエンドの204はそのまま204で返す。
// DELETE /api/restaurants/{id}/favorite → DELETE /api/favorites/{id}
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceFavorites,
		Method:   http.MethodDelete,
		Path:     idPath("/api/favorites", id),
		Token:    bearerToken(sess),
	}))
}
