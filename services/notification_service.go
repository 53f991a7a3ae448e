package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"klik-api/models"
	"klik-api/realtime"
)

// DuplicateWindow suppresses repeated notifications for the same action.
const DuplicateWindow = time.Hour

type NotificationService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

func NewNotificationService(db *gorm.DB, hub *realtime.Hub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

// Create stores a notification unless the actor is the recipient or an
// identical one was created within DuplicateWindow. It returns nil without
// error when nothing was created.
func (ns *NotificationService) Create(ctx context.Context, params models.CreateNotificationParams) (*models.Notification, error) {
	if params.ActorID == params.UserID {
		return nil, nil
	}
	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrValidation, params.Type)
	}

	db := ns.db.WithContext(ctx)

	query := db.Model(&models.Notification{}).
		Where("type = ? AND actor_id = ? AND user_id = ? AND created_at > ?",
			params.Type, params.ActorID, params.UserID, time.Now().UTC().Add(-DuplicateWindow))
	query = whereNullable(query, "post_id", params.PostID)
	query = whereNullable(query, "comment_id", params.CommentID)
	query = whereNullable(query, "conversation_id", params.ConversationID)

	var existing int64
	if err := query.Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check duplicate notification: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	notification := models.Notification{
		ID:             uuid.New().String(),
		Type:           params.Type,
		ActorID:        params.ActorID,
		UserID:         params.UserID,
		PostID:         params.PostID,
		CommentID:      params.CommentID,
		ConversationID: params.ConversationID,
	}
	if err := db.Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if err := db.Preload("Actor").Preload("Post").First(&notification, "id = ?", notification.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load notification: %w", err)
	}

	if ns.hub != nil {
		if _, err := ns.hub.Publish(ctx, realtime.UserChannel(params.UserID), "notifications", realtime.EventInsert, notification.ID, notification.ToResponse()); err != nil {
			slog.Warn("failed to publish notification", "notification_id", notification.ID, "error", err)
		}
	}

	return &notification, nil
}

// Notify creates a notification and logs failures instead of returning them.
func (ns *NotificationService) Notify(ctx context.Context, params models.CreateNotificationParams) {
	if _, err := ns.Create(ctx, params); err != nil {
		slog.Warn("failed to create notification",
			"type", params.Type, "actor_id", params.ActorID, "user_id", params.UserID, "error", err)
	}
}

// NotifyMentions notifies every mentioned user id except the actor and the
// ids in skip.
func (ns *NotificationService) NotifyMentions(ctx context.Context, actorID string, userIDs []string, postID, commentID *string, skip ...string) {
	skipped := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipped[id] = true
	}
	for _, userID := range userIDs {
		if skipped[userID] {
			continue
		}
		ns.Notify(ctx, models.CreateNotificationParams{
			Type:      models.NotificationTypeMention,
			ActorID:   actorID,
			UserID:    userID,
			PostID:    postID,
			CommentID: commentID,
		})
	}
}

// DeleteForPost removes notifications that reference a post or its comments.
func (ns *NotificationService) DeleteForPost(tx *gorm.DB, postID string, commentIDs []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.Notification{}).Error; err != nil {
		return err
	}
	if len(commentIDs) > 0 {
		return tx.Where("comment_id IN ?", commentIDs).Delete(&models.Notification{}).Error
	}
	return nil
}

// CleanupRead deletes read notifications created before cutoff.
func (ns *NotificationService) CleanupRead(ctx context.Context, cutoff time.Time) (int64, error) {
	result := ns.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff.UTC()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func whereNullable(query *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}

// IsNotFound reports whether err is a missing-row error from gorm or a
// service lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}
