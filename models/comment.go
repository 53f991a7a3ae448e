package models

import (
	"time"
)

type Comment struct {
	ID              string     `json:"id" gorm:"primaryKey;size:191"`
	PostID          string     `json:"post_id" gorm:"not null;size:191;index"`
	AuthorID        string     `json:"author_id" gorm:"not null;size:191;index"`
	ParentCommentID *string    `json:"parent_comment_id" gorm:"size:191;index"`
	Content         string     `json:"content" gorm:"type:text"`
	ImageURL        *string    `json:"image_url" gorm:"size:500"`
	ImagePath       string     `json:"-" gorm:"size:500"`
	LikesCount      int        `json:"likes_count" gorm:"default:0"`
	EditedAt        *time.Time `json:"edited_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Author Profile `json:"-" gorm:"foreignKey:AuthorID"`
}

type CommentLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CommentID string    `json:"comment_id" gorm:"not null;size:191;uniqueIndex:uk_comment_likes_comment_user"`
	UserID    string    `json:"user_id" gorm:"not null;size:191;uniqueIndex:uk_comment_likes_comment_user"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentView is a comment with its author, viewer state and nested replies.
type CommentView struct {
	Comment
	Author       ProfileSummary `json:"author"`
	IsLiked      bool           `json:"is_liked"`
	RepliesCount int            `json:"replies_count"`
	Replies      []CommentView  `json:"replies"`
}
