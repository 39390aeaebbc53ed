package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tokium/lunchmap/internal/model"
)

// キャッシュキー。無効化は前方一致で行うため、上位のキーほど広い範囲を表す。
var (
	favoritesKey        = Key{"favorites"}
	restaurantsKey      = Key{"restaurants"}
	restaurantListKey   = Key{"restaurants", "list"}
	restaurantDetailKey = Key{"restaurants", "detail"}
	tagsKey             = Key{"tags"}
)

// FavoritesKey はお気に入り一覧のキャッシュキーを返す。
func FavoritesKey() Key { return favoritesKey }

// RestaurantsKey はお店一覧のキャッシュキーを返す。
func RestaurantsKey(params url.Values) Key {
	return append(append(Key{}, restaurantListKey...), params.Encode())
}

// RestaurantKey はお店詳細のキャッシュキーを返す。
func RestaurantKey(id int64) Key {
	return append(append(Key{}, restaurantDetailKey...), strconv.FormatInt(id, 10))
}

// TagsKey はタグ一覧のキャッシュキーを返す。
func TagsKey(category model.TagCategory) Key {
	return append(append(Key{}, tagsKey...), string(category))
}

// RestaurantInput はお店の作成・更新内容。
type RestaurantInput struct {
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	URL         string  `json:"url,omitempty"`
	Description string  `json:"description,omitempty"`
	TagIDs      []int64 `json:"tag_ids,omitempty"`
}

// TagInput はタグの作成内容。
type TagInput struct {
	Name     string            `json:"name"`
	Category model.TagCategory `json:"category"`
}

// ReviewImage はレビューに添付する画像。
type ReviewImage struct {
	Filename string
	Content  io.Reader
}

// ReviewInput はレビューの投稿内容。
type ReviewInput struct {
	Rating  int
	Comment string
	Images  []ReviewImage
}

// --- 取得 ---

// Favorites はサインイン中のユーザーのお気に入り一覧を取得する。
func (c *Client) Favorites(ctx context.Context) ([]model.Favorite, error) {
	return query[[]model.Favorite](ctx, c, FavoritesKey(), "/api/favorites", nil)
}

// Restaurants はお店一覧を取得する。paramsはそのまま検索条件としてBFFに渡す。
func (c *Client) Restaurants(ctx context.Context, params url.Values) ([]model.Restaurant, error) {
	return query[[]model.Restaurant](ctx, c, RestaurantsKey(params), "/api/restaurants", params)
}

// Restaurant はお店の詳細を取得する。
func (c *Client) Restaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	return query[*model.Restaurant](ctx, c, RestaurantKey(id), restaurantPath(id), nil)
}

// Tags はタグ一覧を取得する。categoryが空の場合はすべての分類を返す。
func (c *Client) Tags(ctx context.Context, category model.TagCategory) ([]model.Tag, error) {
	var q url.Values
	if category != "" {
		q = url.Values{"category": {string(category)}}
	}
	return query[[]model.Tag](ctx, c, TagsKey(category), "/api/tags", q)
}

// --- 更新 ---

// AddFavorite はお店をお気に入りに登録する。
func (c *Client) AddFavorite(ctx context.Context, restaurantID int64) (*model.Favorite, error) {
	req := request{method: http.MethodPost, path: restaurantPath(restaurantID) + "/favorite"}
	var out model.Favorite
	if err := c.mutate(ctx, req, &out, favoritesKey, restaurantsKey); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveFavorite はお気に入りを解除する。
func (c *Client) RemoveFavorite(ctx context.Context, restaurantID int64) error {
	req := request{method: http.MethodDelete, path: restaurantPath(restaurantID) + "/favorite"}
	return c.mutate(ctx, req, nil, favoritesKey, restaurantsKey)
}

// CreateRestaurant はお店を登録する。
func (c *Client) CreateRestaurant(ctx context.Context, input RestaurantInput) (*model.Restaurant, error) {
	req, err := jsonRequest(http.MethodPost, "/api/restaurants", input)
	if err != nil {
		return nil, err
	}
	var out model.Restaurant
	if err := c.mutate(ctx, req, &out, restaurantListKey); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateRestaurant はお店の情報を更新する。
func (c *Client) UpdateRestaurant(ctx context.Context, id int64, input RestaurantInput) (*model.Restaurant, error) {
	req, err := jsonRequest(http.MethodPut, restaurantPath(id), input)
	if err != nil {
		return nil, err
	}
	var out model.Restaurant
	if err := c.mutate(ctx, req, &out, restaurantsKey, favoritesKey); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteRestaurant はお店を削除する。
func (c *Client) DeleteRestaurant(ctx context.Context, id int64) error {
	req := request{method: http.MethodDelete, path: restaurantPath(id)}
	return c.mutate(ctx, req, nil, restaurantsKey, favoritesKey)
}

// CreateReview はお店にレビューを投稿する。画像はmultipartで送信する。
func (c *Client) CreateReview(ctx context.Context, restaurantID int64, input ReviewInput) (*model.Review, error) {
	body, contentType, err := reviewForm(input)
	if err != nil {
		return nil, err
	}
	req := request{
		method:      http.MethodPost,
		path:        restaurantPath(restaurantID) + "/reviews",
		body:        body,
		contentType: contentType,
	}
	var out model.Review
	if err := c.mutate(ctx, req, &out, RestaurantKey(restaurantID), restaurantListKey); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteReview はレビューを削除する。
func (c *Client) DeleteReview(ctx context.Context, restaurantID, reviewID int64) error {
	req := request{
		method: http.MethodDelete,
		path:   restaurantPath(restaurantID) + "/reviews/" + strconv.FormatInt(reviewID, 10),
	}
	return c.mutate(ctx, req, nil, RestaurantKey(restaurantID), restaurantListKey)
}

// CreateTag はタグを作成する。
func (c *Client) CreateTag(ctx context.Context, input TagInput) (*model.Tag, error) {
	req, err := jsonRequest(http.MethodPost, "/api/tags", input)
	if err != nil {
		return nil, err
	}
	var out model.Tag
	if err := c.mutate(ctx, req, &out, tagsKey); err != nil {
		return nil, err
	}
	return &out, nil
}

func restaurantPath(id int64) string {
	return "/api/restaurants/" + strconv.FormatInt(id, 10)
}

func jsonRequest(method, path string, v any) (request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return request{}, &HTTPError{Message: "リクエストの作成に失敗しました。", Err: err}
	}
	return request{method: method, path: path, body: body, contentType: "application/json"}, nil
}

// reviewForm はレビュー投稿のmultipartボディを組み立てる。
func reviewForm(input ReviewInput) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"rating":  strconv.Itoa(input.Rating),
		"comment": input.Comment,
	}
	for _, name := range []string{"rating", "comment"} {
		if err := mw.WriteField(name, fields[name]); err != nil {
			return nil, "", formError(err)
		}
	}
	for i, img := range input.Images {
		filename := img.Filename
		if filename == "" {
			filename = fmt.Sprintf("image-%d", i+1)
		}
		part, err := mw.CreateFormFile("images", filename)
		if err != nil {
			return nil, "", formError(err)
		}
		if _, err := io.Copy(part, img.Content); err != nil {
			return nil, "", formError(err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", formError(err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func formError(err error) error {
	return &HTTPError{Message: "画像の読み込みに失敗しました。", Err: err}
}
