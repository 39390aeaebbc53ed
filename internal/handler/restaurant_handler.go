package handler

import (
	"net/http"

	"github.com/tokium/lunchmap/internal/backend"
	"github.com/tokium/lunchmap/internal/model"
)

const resourceRestaurants = "restaurants"

// RestaurantHandler はお店のBFFルート。
type RestaurantHandler struct {
	upstream Upstream
}

// NewRestaurantHandler はRestaurantHandlerを生成する。
func NewRestaurantHandler(upstream Upstream) *RestaurantHandler {
	return &RestaurantHandler{upstream: upstream}
}

// List はお店一覧を返す。検索条件のクエリはそのまま転送する。
// GET /api/restaurants
func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceRestaurants,
		Method:   http.MethodGet,
		Path:     "/api/restaurants",
		Query:    r.URL.Query(),
		Token:    bearerToken(sess),
	}))
}

// Create はお店を登録する。
// POST /api/restaurants
func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource:    resourceRestaurants,
		Method:      http.MethodPost,
		Path:        "/api/restaurants",
		Body:        http.MaxBytesReader(w, r.Body, maxJSONBodyBytes),
		ContentType: requestContentType(r),
		Token:       bearerToken(sess),
	}))
}

// Get はお店の詳細を返す。
// GET /api/restaurants/{id}
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceRestaurants,
		Method:   http.MethodGet,
		Path:     idPath("/api/restaurants", id),
		Token:    bearerToken(sess),
	}))
}

// Update はお店の情報を更新する。
// PUT /api/restaurants/{id}
func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource:    resourceRestaurants,
		Method:      http.MethodPut,
		Path:        idPath("/api/restaurants", id),
		Body:        http.MaxBytesReader(w, r.Body, maxJSONBodyBytes),
		ContentType: requestContentType(r),
		Token:       bearerToken(sess),
	}))
}

// Delete はお店を削除する。
// DELETE /api/restaurants/{id}
func (h *RestaurantHandler) Delete(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceRestaurants,
		Method:   http.MethodDelete,
		Path:     idPath("/api/restaurants", id),
		Token:    bearerToken(sess),
	}))
}
