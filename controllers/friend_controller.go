package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

// FollowController handles follows and blocks between users.
type FollowController struct {
	db            *gorm.DB
	notifications *services.NotificationService
}

func NewFollowController(db *gorm.DB, notifications *services.NotificationService) *FollowController {
	return &FollowController{
		db:            db,
		notifications: notifications,
	}
}

type FollowListResponse struct {
	Users []models.ProfileSummary `json:"users"`
	models.Pagination
}

// targetUser loads the user named by the :id or :username route parameter.
func (fc *FollowController) targetUser(c *gin.Context) (*models.Profile, bool) {
	query := fc.db.Where("id = ?", c.Param("id"))
	if username := c.Param("username"); username != "" {
		query = fc.db.Where("username = ?", username)
	}

	var user models.Profile
	if err := query.First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return nil, false
	}
	return &user, true
}

func (fc *FollowController) Follow(c *gin.Context) {
	userID := currentUserID(c)
	target, ok := fc.targetUser(c)
	if !ok {
		return
	}
	if target.ID == userID {
		utils.SendError(c, http.StatusBadRequest, "You cannot follow yourself")
		return
	}

	blocked, err := services.IsBlockedEitherWay(fc.db, userID, target.ID)
	if err != nil {
		SendServiceError(c, err, "Failed to follow user")
		return
	}
	if blocked {
		utils.SendError(c, http.StatusForbidden, "You cannot follow this user")
		return
	}

	created := false
	err = fc.db.Transaction(func(tx *gorm.DB) error {
		follow := models.Follow{FollowerID: userID, FollowingID: target.ID}
		if err := tx.Create(&follow).Error; err != nil {
			return err
		}
		created = true
		return adjustFollowCounters(tx, userID, target.ID, 1)
	})
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendError(c, http.StatusInternalServerError, "Failed to follow user")
		return
	}

	if created {
		fc.notifications.Notify(c.Request.Context(), models.CreateNotificationParams{
			Type:    models.NotificationTypeFollow,
			ActorID: userID,
			UserID:  target.ID,
		})
	}

	utils.SendSuccess(c, "User followed", gin.H{"is_following": true})
}

func (fc *FollowController) Unfollow(c *gin.Context) {
	userID := currentUserID(c)
	targetID := c.Param("id")

	err := fc.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("follower_id = ? AND following_id = ?", userID, targetID).Delete(&models.Follow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return adjustFollowCounters(tx, userID, targetID, -1)
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to unfollow user")
		return
	}

	utils.SendSuccess(c, "User unfollowed", gin.H{"is_following": false})
}

func adjustFollowCounters(tx *gorm.DB, followerID, followingID string, delta int) error {
	if err := tx.Model(&models.Profile{}).Where("id = ?", followerID).
		UpdateColumn("following_count", gorm.Expr("following_count + ?", delta)).Error; err != nil {
		return err
	}
	return tx.Model(&models.Profile{}).Where("id = ?", followingID).
		UpdateColumn("followers_count", gorm.Expr("followers_count + ?", delta)).Error
}

func (fc *FollowController) GetFollowers(c *gin.Context) {
	fc.listFollows(c, "following_id", "follower_id")
}

func (fc *FollowController) GetFollowing(c *gin.Context) {
	fc.listFollows(c, "follower_id", "following_id")
}

func (fc *FollowController) listFollows(c *gin.Context, matchColumn, userColumn string) {
	target, ok := fc.targetUser(c)
	if !ok {
		return
	}
	page, limit, offset := utils.ParsePagination(c, 20)

	query := fc.db.Model(&models.Follow{}).Where(matchColumn+" = ?", target.ID)
	var total int64
	query.Session(&gorm.Session{}).Count(&total)

	var ids []string
	if err := query.Session(&gorm.Session{}).Order("created_at DESC").Offset(offset).Limit(limit).
		Pluck(userColumn, &ids).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load users")
		return
	}

	summaries, err := loadSummaries(fc.db, ids)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load users")
		return
	}
	users := make([]models.ProfileSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := summaries[id]; ok {
			users = append(users, s)
		}
	}

	c.JSON(http.StatusOK, FollowListResponse{
		Users:      users,
		Pagination: models.NewPagination(page, limit, total),
	})
}

// Block records the block and drops follows in both directions.
func (fc *FollowController) Block(c *gin.Context) {
	userID := currentUserID(c)
	target, ok := fc.targetUser(c)
	if !ok {
		return
	}
	if target.ID == userID {
		utils.SendError(c, http.StatusBadRequest, "You cannot block yourself")
		return
	}

	err := fc.db.Transaction(func(tx *gorm.DB) error {
		block := models.BlockedUser{BlockerID: userID, BlockedID: target.ID}
		if err := tx.Create(&block).Error; err != nil {
			return err
		}
		for _, pair := range [][2]string{{userID, target.ID}, {target.ID, userID}} {
			result := tx.Where("follower_id = ? AND following_id = ?", pair[0], pair[1]).Delete(&models.Follow{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				if err := adjustFollowCounters(tx, pair[0], pair[1], -1); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendSuccess(c, "User already blocked", nil)
		return
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to block user")
		return
	}

	utils.SendSuccess(c, "User blocked", nil)
}

func (fc *FollowController) Unblock(c *gin.Context) {
	result := fc.db.Where("blocker_id = ? AND blocked_id = ?", currentUserID(c), c.Param("id")).
		Delete(&models.BlockedUser{})
	if result.Error != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to unblock user")
		return
	}
	if result.RowsAffected == 0 {
		utils.SendError(c, http.StatusNotFound, "User is not blocked")
		return
	}
	utils.SendSuccess(c, "User unblocked", nil)
}

func (fc *FollowController) GetBlocked(c *gin.Context) {
	var blocks []models.BlockedUser
	if err := fc.db.Preload("Blocked").Where("blocker_id = ?", currentUserID(c)).
		Order("created_at DESC").Find(&blocks).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load blocked users")
		return
	}

	users := make([]models.ProfileSummary, 0, len(blocks))
	for i := range blocks {
		users = append(users, blocks[i].Blocked.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
