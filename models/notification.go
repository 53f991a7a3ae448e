// File: /models/notification.go
package models

import (
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationTypeFollow      NotificationType = "follow"
	NotificationTypeLike        NotificationType = "like"
	NotificationTypeComment     NotificationType = "comment"
	NotificationTypeReply       NotificationType = "reply"
	NotificationTypeMention     NotificationType = "mention"
	NotificationTypeCommentLike NotificationType = "comment_like"
	NotificationTypeShare       NotificationType = "share"
	NotificationTypeMessage     NotificationType = "message"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTypeFollow, NotificationTypeLike, NotificationTypeComment, NotificationTypeReply,
		NotificationTypeMention, NotificationTypeCommentLike, NotificationTypeShare, NotificationTypeMessage:
		return true
	}
	return false
}

type Notification struct {
	ID             string           `json:"id" gorm:"primaryKey;size:191"`
	Type           NotificationType `json:"type" gorm:"not null;size:50"`
	ActorID        string           `json:"actor_id" gorm:"not null;size:191"`                                    // Who performed the action
	UserID         string           `json:"user_id" gorm:"not null;size:191;index:idx_notifications_user_created"` // Who receives the notification
	PostID         *string          `json:"post_id" gorm:"size:191;index"`
	CommentID      *string          `json:"comment_id" gorm:"size:191"`
	ConversationID *string          `json:"conversation_id" gorm:"size:191"`
	Read           bool             `json:"read" gorm:"column:is_read"`
	CreatedAt      time.Time        `json:"created_at" gorm:"index:idx_notifications_user_created"`
	UpdatedAt      time.Time        `json:"updated_at"`

	// Relationships
	Actor Profile `json:"-" gorm:"foreignKey:ActorID"`
	Post  *Post   `json:"-" gorm:"foreignKey:PostID"`
}

// NotificationResponse represents the API response for notifications
type NotificationResponse struct {
	ID             string            `json:"id"`
	Type           NotificationType  `json:"type"`
	Actor          ProfileSummary    `json:"actor"`
	Post           *NotificationPost `json:"post,omitempty"`
	CommentID      *string           `json:"comment_id,omitempty"`
	ConversationID *string           `json:"conversation_id,omitempty"`
	Read           bool              `json:"read"`
	CreatedAt      time.Time         `json:"created_at"`
	Message        string            `json:"message"`
	TimeAgo        string            `json:"time_ago"`
}

type NotificationPost struct {
	ID       string  `json:"id"`
	Excerpt  string  `json:"excerpt"`
	ImageURL *string `json:"image_url,omitempty"`
}

// NotificationStats represents notification statistics
type NotificationStats struct {
	UnreadCount int `json:"unread_count"`
	TotalCount  int `json:"total_count"`
}

// PaginatedNotifications represents paginated notification response
type PaginatedNotifications struct {
	Notifications []NotificationResponse `json:"notifications"`
	Pagination
}

// CreateNotificationParams for creating new notifications
type CreateNotificationParams struct {
	Type           NotificationType `json:"type"`
	ActorID        string           `json:"actor_id"`
	UserID         string           `json:"user_id"`
	PostID         *string          `json:"post_id,omitempty"`
	CommentID      *string          `json:"comment_id,omitempty"`
	ConversationID *string          `json:"conversation_id,omitempty"`
}

// GetNotificationMessage returns a human-readable message for the notification
func (n *Notification) GetNotificationMessage() string {
	switch n.Type {
	case NotificationTypeFollow:
		return "started following you"
	case NotificationTypeLike:
		return "liked your post"
	case NotificationTypeComment:
		return "commented on your post"
	case NotificationTypeReply:
		return "replied to your comment"
	case NotificationTypeMention:
		return "mentioned you"
	case NotificationTypeCommentLike:
		return "liked your comment"
	case NotificationTypeShare:
		return "shared your post"
	case NotificationTypeMessage:
		return "sent you a message"
	default:
		return "interacted with your content"
	}
}

// GetTimeAgo returns a human-readable time difference
func (n *Notification) GetTimeAgo() string {
	return TimeAgo(n.CreatedAt, time.Now())
}

// TimeAgo formats the distance between t and now.
func TimeAgo(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		minutes := int(diff.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		months := int(diff.Hours() / (24 * 30))
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	}
}

// ToResponse converts Notification to NotificationResponse
func (n *Notification) ToResponse() NotificationResponse {
	response := NotificationResponse{
		ID:             n.ID,
		Type:           n.Type,
		Read:           n.Read,
		CreatedAt:      n.CreatedAt,
		Message:        n.GetNotificationMessage(),
		TimeAgo:        n.GetTimeAgo(),
		Actor:          n.Actor.Summary(),
		CommentID:      n.CommentID,
		ConversationID: n.ConversationID,
	}

	// Add post information if present
	if n.Post != nil {
		response.Post = &NotificationPost{
			ID:       n.Post.ID,
			Excerpt:  excerpt(n.Post.Content, 80),
			ImageURL: n.Post.ImageURL,
		}
	}

	return response
}

func excerpt(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
