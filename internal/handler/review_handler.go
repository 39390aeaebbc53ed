package handler

import (
	"net/http"

	"github.com/tokium/lunchmap/internal/backend"
	"github.com/tokium/lunchmap/internal/model"
)

const resourceReviews = "reviews"

// ReviewHandler はレビューのBFFルート。
type ReviewHandler struct {
	upstream Upstream
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(upstream Upstream) *ReviewHandler {
	return &ReviewHandler{upstream: upstream}
}

// Create はレビューを投稿する。multipartボディはboundaryを含むContent-Typeごと無加工で転送する。
// POST /api/restaurants/{id}/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource:    resourceReviews,
		Method:      http.MethodPost,
		Path:        idPath("/api/restaurants", id) + "/reviews",
		Body:        http.MaxBytesReader(w, r.Body, maxMultipartBodyBytes),
		ContentType: requestContentType(r),
		Token:       bearerToken(sess),
	}))
}

// Delete はレビューを削除する。
// DELETE /api/restaurants/{id}/reviews/{reviewId} → DELETE /api/reviews/{reviewId}
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request, sess *model.Session) {
	if _, ok := pathID(w, r, "id"); !ok {
		return
	}
	reviewID, ok := pathID(w, r, "reviewId")
	if !ok {
		return
	}
	writeResult(w, h.upstream.Do(r.Context(), backend.Request{
		Resource: resourceReviews,
		Method:   http.MethodDelete,
		Path:     idPath("/api/reviews", reviewID),
		Token:    bearerToken(sess),
	}))
}
