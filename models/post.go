// File: /models/post.go
package models

import (
	"time"
)

type Post struct {
	ID            string      `json:"id" gorm:"primaryKey;size:191"`
	AuthorID      string      `json:"author_id" gorm:"not null;size:191;index:idx_posts_author_created,priority:1"`
	Content       string      `json:"content" gorm:"type:text"`
	ImageURL      *string     `json:"image_url" gorm:"size:500"`
	ImagePath     string      `json:"-" gorm:"size:500"`
	Hashtags      StringSlice `json:"hashtags"`
	LikesCount    int         `json:"likes_count" gorm:"default:0"`
	CommentsCount int         `json:"comments_count" gorm:"default:0"`
	SharesCount   int         `json:"shares_count" gorm:"default:0"`
	EditedAt      *time.Time  `json:"edited_at"`
	CreatedAt     time.Time   `json:"created_at" gorm:"index;index:idx_posts_author_created,priority:2"`
	UpdatedAt     time.Time   `json:"updated_at"`

	Author Profile `json:"-" gorm:"foreignKey:AuthorID"`
}

type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"not null;size:191;uniqueIndex:uk_likes_post_user"`
	UserID    string    `json:"user_id" gorm:"not null;size:191;uniqueIndex:uk_likes_post_user;index"`
	CreatedAt time.Time `json:"created_at"`
}

type SavedPost struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"not null;size:191;uniqueIndex:uk_saved_posts_post_user"`
	UserID    string    `json:"user_id" gorm:"not null;size:191;uniqueIndex:uk_saved_posts_post_user;index"`
	CreatedAt time.Time `json:"created_at"`

	Post Post `json:"post" gorm:"foreignKey:PostID"`
}

const (
	ShareTypeLink    = "link"
	ShareTypeMessage = "message"
	ShareTypeRepost  = "repost"
)

type PostShare struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PostID    string    `json:"post_id" gorm:"not null;size:191;index"`
	UserID    string    `json:"user_id" gorm:"not null;size:191"`
	ShareType string    `json:"share_type" gorm:"not null;size:20"`
	CreatedAt time.Time `json:"created_at"`
}

// PostView is a post as rendered for a specific viewer.
type PostView struct {
	Post
	Author  ProfileSummary `json:"author"`
	IsLiked bool           `json:"is_liked"`
	IsSaved bool           `json:"is_saved"`
	IsOwner bool           `json:"is_owner"`
}

// FeedResponse represents the feed response with pagination metadata
type FeedResponse struct {
	Posts []PostView `json:"posts"`
	Pagination
}
