package services

import (
	"fmt"

	"gorm.io/gorm"

	"klik-api/models"
)

// IsBlockedEitherWay reports whether a blocked b or b blocked a.
func IsBlockedEitherWay(db *gorm.DB, a, b string) (bool, error) {
	var count int64
	err := db.Model(&models.BlockedUser{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check blocks: %w", err)
	}
	return count > 0, nil
}

// HiddenUserIDs returns the users that userID blocked or was blocked by.
func HiddenUserIDs(db *gorm.DB, userID string) ([]string, error) {
	var blocks []models.BlockedUser
	if err := db.Where("blocker_id = ? OR blocked_id = ?", userID, userID).Find(&blocks).Error; err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}

	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			ids = append(ids, b.BlockedID)
		} else {
			ids = append(ids, b.BlockerID)
		}
	}
	return ids, nil
}

// IsFollowing reports whether follower follows following.
func IsFollowing(db *gorm.DB, follower, following string) (bool, error) {
	var count int64
	err := db.Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", follower, following).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return count > 0, nil
}
