package controllers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"klik-api/models"
	"klik-api/realtime"
	"klik-api/services"
	"klik-api/utils"
)

type NotificationController struct {
	db  *gorm.DB
	hub *realtime.Hub
}

func NewNotificationController(db *gorm.DB, hub *realtime.Hub) *NotificationController {
	return &NotificationController{db: db, hub: hub}
}

// GetNotifications gets paginated notifications for the current user
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	userID := currentUserID(c)
	page, limit, offset := utils.ParsePagination(c, 20)
	notificationType := c.Query("type") // Optional filter by type

	query := nc.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if notificationType != "" {
		if !models.NotificationType(notificationType).Valid() {
			utils.SendValidationError(c, "Unknown notification type")
			return
		}
		query = query.Where("type = ?", notificationType)
	}

	hidden, err := services.HiddenUserIDs(nc.db, userID)
	if err != nil {
		SendServiceError(c, err, "Failed to fetch notifications")
		return
	}
	if len(hidden) > 0 {
		query = query.Where("actor_id NOT IN ?", hidden)
	}

	var total int64
	query.Session(&gorm.Session{}).Count(&total)

	var notifications []models.Notification
	if err := query.Session(&gorm.Session{}).
		Preload("Actor").
		Preload("Post").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&notifications).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}

	responses := make([]models.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notifications[i].ToResponse())
	}

	c.JSON(http.StatusOK, models.PaginatedNotifications{
		Notifications: responses,
		Pagination:    models.NewPagination(page, limit, total),
	})
}

// GetNotificationStats gets notification statistics (unread count, etc.)
func (nc *NotificationController) GetNotificationStats(c *gin.Context) {
	userID := currentUserID(c)

	var unreadCount, totalCount int64
	base := nc.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if err := base.Session(&gorm.Session{}).Where("is_read = ?", false).Count(&unreadCount).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch notification stats")
		return
	}
	if err := base.Session(&gorm.Session{}).Count(&totalCount).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch notification stats")
		return
	}

	c.JSON(http.StatusOK, models.NotificationStats{
		UnreadCount: int(unreadCount),
		TotalCount:  int(totalCount),
	})
}

// MarkAsRead marks a notification as read
func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	userID := currentUserID(c)

	var notification models.Notification
	if err := nc.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&notification).Error; err != nil {
		SendServiceError(c, err, "Failed to find notification")
		return
	}

	if err := nc.db.Model(&notification).Update("is_read", true).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to mark notification as read")
		return
	}
	nc.publish(c, userID, realtime.EventUpdate, notification.ID, gin.H{"id": notification.ID, "read": true})

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

// MarkAllAsRead marks all notifications as read for the current user
func (nc *NotificationController) MarkAllAsRead(c *gin.Context) {
	userID := currentUserID(c)

	result := nc.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to mark notifications as read")
		return
	}
	nc.publish(c, userID, realtime.EventUpdate, "", gin.H{"all": true, "read": true})

	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
		"updated": result.RowsAffected,
	})
}

// DeleteNotification deletes a notification
func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	userID := currentUserID(c)
	notificationID := c.Param("id")

	result := nc.db.Where("id = ? AND user_id = ?", notificationID, userID).Delete(&models.Notification{})
	if result.Error != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to delete notification")
		return
	}
	if result.RowsAffected == 0 {
		utils.SendError(c, http.StatusNotFound, "Notification not found")
		return
	}
	nc.publish(c, userID, realtime.EventDelete, notificationID, gin.H{"id": notificationID})

	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

func (nc *NotificationController) publish(c *gin.Context, userID string, typ realtime.EventType, rowID string, payload interface{}) {
	if nc.hub == nil {
		return
	}
	if _, err := nc.hub.Publish(c.Request.Context(), realtime.UserChannel(userID), "notifications", typ, rowID, payload); err != nil {
		slog.Warn("failed to publish notification change", "user_id", userID, "error", err)
	}
}
