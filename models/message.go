package models

import "time"

type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;size:191"`
	PairKey   string    `json:"-" gorm:"uniqueIndex;not null;size:400"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`

	Participants []ConversationParticipant `json:"participants,omitempty" gorm:"foreignKey:ConversationID"`
}

type ConversationParticipant struct {
	ID             uint       `json:"-" gorm:"primaryKey"`
	ConversationID string     `json:"conversation_id" gorm:"not null;size:191;uniqueIndex:uk_conversation_participants"`
	UserID         string     `json:"user_id" gorm:"not null;size:191;uniqueIndex:uk_conversation_participants;index"`
	LastReadAt     *time.Time `json:"last_read_at"`
	CreatedAt      time.Time  `json:"created_at"`

	User Profile `json:"-" gorm:"foreignKey:UserID"`
}

type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:191"`
	ConversationID string    `json:"conversation_id" gorm:"not null;size:191;index:idx_messages_conversation_created,priority:1"`
	SenderID       string    `json:"sender_id" gorm:"not null;size:191"`
	Content        string    `json:"content" gorm:"type:text"`
	ImageURL       *string   `json:"image_url" gorm:"size:500"`
	ImagePath      string    `json:"-" gorm:"size:500"`
	CreatedAt      time.Time `json:"created_at" gorm:"index:idx_messages_conversation_created,priority:2"`
}

// ImageOnlyMessageContent is stored as the body of messages that carry only an image.
const ImageOnlyMessageContent = "📷"

// ConversationSummary is one row of the inbox.
type ConversationSummary struct {
	ID          string         `json:"id"`
	UpdatedAt   time.Time      `json:"updated_at"`
	LastMessage *Message       `json:"last_message,omitempty"`
	OtherUser   ProfileSummary `json:"other_user"`
	UnreadCount int64          `json:"unread_count"`
}

// ConversationPairKey is the canonical key of the two-party conversation
// between a and b; it is the same whichever side starts it.
func ConversationPairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
