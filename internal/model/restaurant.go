package model

import "time"

// TagCategory はタグの分類。
type TagCategory string

const (
	TagCategoryArea  TagCategory = "area"
	TagCategoryGenre TagCategory = "genre"
	TagCategoryScene TagCategory = "scene"
)

// Valid はタグ分類が定義済みの値かを返す。
func (c TagCategory) Valid() bool {
	switch c {
	case TagCategoryArea, TagCategoryGenre, TagCategoryScene:
		return true
	default:
		return false
	}
}

// Tag はお店に付与するタグ。
type Tag struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Category TagCategory `json:"category"`
}

// Restaurant は共有されたお店。
type Restaurant struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []Tag     `json:"tags,omitempty"`
	Reviews     []Review  `json:"reviews,omitempty"`
	ReviewCount int       `json:"review_count"`
	IsFavorite  bool      `json:"is_favorite"`
	CreatedAt   time.Time `json:"created_at"`
}

// Review はお店へのレビュー。
type Review struct {
	ID           int64     `json:"id"`
	RestaurantID int64     `json:"restaurant_id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name,omitempty"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	ImageURLs    []string  `json:"image_urls,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Favorite はユーザーのお気に入り登録。
type Favorite struct {
	ID           int64       `json:"id"`
	RestaurantID int64       `json:"restaurant_id"`
	Restaurant   *Restaurant `json:"restaurant,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
