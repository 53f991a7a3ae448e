package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"klik-api/models"
	"klik-api/realtime"
	"klik-api/repositories"
	"klik-api/utils"
)

type MessagingService struct {
	db            *gorm.DB
	repo          *repositories.ConversationRepository
	hub           *realtime.Hub
	media         *MediaService
	notifications *NotificationService
}

func NewMessagingService(db *gorm.DB, hub *realtime.Hub, media *MediaService, notifications *NotificationService) *MessagingService {
	return &MessagingService{
		db:            db,
		repo:          repositories.NewConversationRepository(db),
		hub:           hub,
		media:         media,
		notifications: notifications,
	}
}

func (ms *MessagingService) repository(ctx context.Context) *repositories.ConversationRepository {
	return ms.repo.WithDB(ms.db.WithContext(ctx))
}

// StartConversation returns the two-party conversation between the users,
// creating it when none exists. created reports whether this call created it.
// Concurrent calls for the same pair converge on a single conversation.
func (ms *MessagingService) StartConversation(ctx context.Context, userID, targetUserID string) (*models.Conversation, bool, error) {
	if userID == targetUserID {
		return nil, false, ErrSelfConversation
	}

	db := ms.db.WithContext(ctx)

	var target models.Profile
	if err := db.Select("id").First(&target, "id = ?", targetUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("failed to load user: %w", err)
	}

	blocked, err := IsBlockedEitherWay(db, userID, targetUserID)
	if err != nil {
		return nil, false, err
	}
	if blocked {
		return nil, false, ErrBlocked
	}

	var settings models.UserSettings
	err = db.Where("user_id = ?", targetUserID).First(&settings).Error
	switch {
	case err == nil:
		if !settings.AllowDirectMessages {
			return nil, false, ErrMessagesDisabled
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("failed to load settings: %w", err)
	}

	repo := ms.repository(ctx)

	existing, err := repo.FindBetween(userID, targetUserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("failed to look up conversation: %w", err)
	}

	pairKey := models.ConversationPairKey(userID, targetUserID)
	participants := []string{userID, targetUserID}
	conversation := &models.Conversation{
		ID:      uuid.New().String(),
		PairKey: pairKey,
	}

	err = repo.Create(conversation, participants)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another request created the pair first; adopt its conversation.
		winner, findErr := repo.FindByPairKey(pairKey)
		if findErr != nil {
			return nil, false, fmt.Errorf("failed to load existing conversation: %w", findErr)
		}
		if err := repo.EnsureParticipants(winner.ID, participants); err != nil {
			return nil, false, fmt.Errorf("failed to add participants: %w", err)
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	for _, id := range participants {
		ms.publish(ctx, realtime.UserChannel(id), "conversations", realtime.EventInsert, conversation.ID, conversation)
	}

	return conversation, true, nil
}

// ListConversations returns the inbox of userID, newest activity first.
// query filters on the other participant's display name or username.
func (ms *MessagingService) ListConversations(ctx context.Context, userID, query string) ([]models.ConversationSummary, error) {
	repo := ms.repository(ctx)

	conversations, err := repo.ForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	ids := make([]string, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID)
	}
	others, err := repo.OtherParticipants(ids, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	lastMessages, err := repo.LastMessages(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load last messages: %w", err)
	}
	unread, err := repo.UnreadCounts(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		other, ok := others[c.ID]
		if !ok || other.User.ID == "" {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(other.User.DisplayName), query) &&
			!strings.Contains(strings.ToLower(other.User.Username), query) {
			continue
		}

		summaries = append(summaries, models.ConversationSummary{
			ID:          c.ID,
			UpdatedAt:   c.UpdatedAt,
			OtherUser:   other.User.Summary(),
			LastMessage: lastMessages[c.ID],
			UnreadCount: unread[c.ID],
		})
	}

	return summaries, nil
}

// Conversation returns a conversation the caller participates in together
// with the other participant.
func (ms *MessagingService) Conversation(ctx context.Context, userID, conversationID string) (*models.Conversation, *models.ProfileSummary, error) {
	if err := ms.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, nil, err
	}

	repo := ms.repository(ctx)
	conversation, err := repo.FindByID(conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	others, err := repo.OtherParticipants([]string{conversationID}, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load participants: %w", err)
	}
	other, ok := others[conversationID]
	if !ok || other.User.ID == "" {
		return nil, nil, ErrNotFound
	}
	summary := other.User.Summary()
	return conversation, &summary, nil
}

// GetMessages returns the whole conversation in ascending order and marks it
// read for the caller.
func (ms *MessagingService) GetMessages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if err := ms.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	messages, err := ms.repository(ctx).Messages(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	if err := ms.MarkRead(ctx, userID, conversationID); err != nil {
		slog.Warn("failed to mark conversation read", "conversation_id", conversationID, "error", err)
	}
	return messages, nil
}

// MessagesSince returns the messages created after since, for catching up a
// realtime subscriber.
func (ms *MessagingService) MessagesSince(ctx context.Context, userID, conversationID string, since time.Time) ([]models.Message, error) {
	if err := ms.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	messages, err := ms.repository(ctx).MessagesSince(conversationID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return messages, nil
}

// SendMessage stores a message with optional image. Image-only messages get
// ImageOnlyMessageContent as their text.
func (ms *MessagingService) SendMessage(ctx context.Context, userID, conversationID, content string, image *Upload) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && image == nil {
		return nil, fmt.Errorf("%w: message must have text or an image", ErrValidation)
	}
	if utils.RuneLen(content) > utils.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, utils.MaxMessageLength)
	}

	if err := ms.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	repo := ms.repository(ctx)
	participants, err := repo.Participants(conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	for _, p := range participants {
		if p.UserID == userID {
			continue
		}
		blocked, err := IsBlockedEitherWay(ms.db.WithContext(ctx), userID, p.UserID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, ErrBlocked
		}
	}

	message := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
	}

	if image != nil {
		url, key, err := ms.media.Upload(ctx, PrefixMessages, conversationID, image)
		if err != nil {
			return nil, err
		}
		message.ImageURL = &url
		message.ImagePath = key
		if message.Content == "" {
			message.Content = models.ImageOnlyMessageContent
		}
	}

	// Stamped after the upload so created_at stays close to the commit.
	message.CreatedAt = time.Now().UTC()
	if err := repo.CreateMessage(message); err != nil {
		if message.ImagePath != "" {
			ms.media.Remove(ctx, message.ImagePath)
		}
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	ms.publishAt(ctx, realtime.ConversationChannel(conversationID), "messages", realtime.EventInsert, message.ID, message, message.CreatedAt)
	for _, p := range participants {
		ms.publish(ctx, realtime.UserChannel(p.UserID), "conversations", realtime.EventUpdate, conversationID, models.ConversationSummary{
			ID:          conversationID,
			UpdatedAt:   message.CreatedAt,
			LastMessage: message,
		})
		if p.UserID != userID && ms.notifications != nil {
			ms.notifications.Notify(ctx, models.CreateNotificationParams{
				Type:           models.NotificationTypeMessage,
				ActorID:        userID,
				UserID:         p.UserID,
				ConversationID: &conversationID,
			})
		}
	}

	return message, nil
}

// MarkRead records that userID has read the conversation up to now.
func (ms *MessagingService) MarkRead(ctx context.Context, userID, conversationID string) error {
	if err := ms.requireParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := ms.repository(ctx).MarkRead(conversationID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

// UnreadTotal sums the unread counts of every conversation of userID.
func (ms *MessagingService) UnreadTotal(ctx context.Context, userID string) (int64, error) {
	counts, err := ms.repository(ctx).UnreadCounts(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (ms *MessagingService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := ms.repository(ctx).Participant(conversationID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return true, nil
}

func (ms *MessagingService) requireParticipant(ctx context.Context, conversationID, userID string) error {
	if _, err := ms.repository(ctx).FindByID(conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	ok, err := ms.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (ms *MessagingService) publish(ctx context.Context, channel, table string, typ realtime.EventType, rowID string, payload interface{}) {
	ms.publishAt(ctx, channel, table, typ, rowID, payload, time.Now())
}

func (ms *MessagingService) publishAt(ctx context.Context, channel, table string, typ realtime.EventType, rowID string, payload interface{}, at time.Time) {
	if ms.hub == nil {
		return
	}
	if _, err := ms.hub.PublishAt(ctx, channel, table, typ, rowID, payload, at); err != nil {
		slog.Warn("failed to publish realtime event", "channel", channel, "error", err)
	}
}
