package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"klik-api/models"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// WithDB returns a repository bound to db, e.g. a transaction or a
// request-scoped session.
func (r *ConversationRepository) WithDB(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindBetween returns the oldest conversation both users participate in.
func (r *ConversationRepository) FindBetween(userID, otherUserID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.
		Joins("JOIN conversation_participants p1 ON p1.conversation_id = conversations.id AND p1.user_id = ?", userID).
		Joins("JOIN conversation_participants p2 ON p2.conversation_id = conversations.id AND p2.user_id = ?", otherUserID).
		Order("conversations.created_at ASC").
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) FindByPairKey(pairKey string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.Where("pair_key = ?", pairKey).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *ConversationRepository) FindByID(conversationID string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.First(&conversation, "id = ?", conversationID).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// Create inserts the conversation and one participant row per user in a
// single transaction. A concurrent insert of the same pair key surfaces as
// gorm.ErrDuplicatedKey.
func (r *ConversationRepository) Create(conversation *models.Conversation, userIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conversation).Error; err != nil {
			return err
		}
		for _, userID := range userIDs {
			participant := models.ConversationParticipant{
				ConversationID: conversation.ID,
				UserID:         userID,
			}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureParticipants adds any missing participant rows.
func (r *ConversationRepository) EnsureParticipants(conversationID string, userIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, userID := range userIDs {
			var participant models.ConversationParticipant
			err := tx.Where(models.ConversationParticipant{ConversationID: conversationID, UserID: userID}).
				FirstOrCreate(&participant).Error
			if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
				return err
			}
		}
		return nil
	})
}

func (r *ConversationRepository) Participant(conversationID, userID string) (*models.ConversationParticipant, error) {
	var participant models.ConversationParticipant
	err := r.db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *ConversationRepository) Participants(conversationID string) ([]models.ConversationParticipant, error) {
	var participants []models.ConversationParticipant
	err := r.db.Preload("User").Where("conversation_id = ?", conversationID).Find(&participants).Error
	return participants, err
}

// ForUser returns the conversations userID participates in, most recent
// activity first.
func (r *ConversationRepository) ForUser(userID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Order("conversations.updated_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// OtherParticipants returns, per conversation, the first participant that is
// not userID, with the profile preloaded.
func (r *ConversationRepository) OtherParticipants(conversationIDs []string, userID string) (map[string]models.ConversationParticipant, error) {
	out := make(map[string]models.ConversationParticipant)
	if len(conversationIDs) == 0 {
		return out, nil
	}

	var participants []models.ConversationParticipant
	err := r.db.Preload("User").
		Where("conversation_id IN ? AND user_id <> ?", conversationIDs, userID).
		Order("id ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if _, seen := out[p.ConversationID]; !seen {
			out[p.ConversationID] = p
		}
	}
	return out, nil
}

func (r *ConversationRepository) Messages(conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (r *ConversationRepository) MessagesSince(conversationID string, since time.Time) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("conversation_id = ? AND created_at > ?", conversationID, since.UTC()).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// LastMessages returns the newest message of each conversation keyed by
// conversation id. Conversations without messages are absent.
func (r *ConversationRepository) LastMessages(conversationIDs []string) (map[string]*models.Message, error) {
	out := make(map[string]*models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&models.Message{}).
		Select("conversation_id, MAX(created_at) AS created_at").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id")

	var messages []models.Message
	err := r.db.
		Joins("JOIN (?) AS latest ON latest.conversation_id = messages.conversation_id AND latest.created_at = messages.created_at", latest).
		Order("messages.id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i := range messages {
		if _, seen := out[messages[i].ConversationID]; !seen {
			out[messages[i].ConversationID] = &messages[i]
		}
	}
	return out, nil
}

// CreateMessage stores a message and bumps the conversation's updated_at.
func (r *ConversationRepository) CreateMessage(message *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			UpdateColumn("updated_at", message.CreatedAt).Error
	})
}

// UnreadCounts counts, per conversation of userID, the messages from other
// participants newer than the caller's last_read_at. Conversations with
// nothing unread are absent.
func (r *ConversationRepository) UnreadCounts(userID string) (map[string]int64, error) {
	var rows []struct {
		ConversationID string
		Unread         int64
	}
	err := r.db.Model(&models.Message{}).
		Select("messages.conversation_id, COUNT(*) AS unread").
		Joins("JOIN conversation_participants p ON p.conversation_id = messages.conversation_id AND p.user_id = ?", userID).
		Where("messages.sender_id <> ?", userID).
		Where("(p.last_read_at IS NULL OR messages.created_at > p.last_read_at)").
		Group("messages.conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationID] = row.Unread
	}
	return out, nil
}

func (r *ConversationRepository) MarkRead(conversationID, userID string, at time.Time) error {
	return r.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_read_at", at.UTC()).Error
}
