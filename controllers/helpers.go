package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"klik-api/imaging"
	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

// StatusForError maps service errors onto HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrBlocked),
		errors.Is(err, services.ErrMessagesDisabled), errors.Is(err, services.ErrEmailNotVerified):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrSelfAction),
		errors.Is(err, services.ErrSelfConversation), errors.Is(err, services.ErrUnsupportedImage),
		errors.Is(err, imaging.ErrEmptyCrop), errors.Is(err, imaging.ErrImageTooWide),
		errors.Is(err, imaging.ErrInvalidOutputSize):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// SendServiceError writes err with its mapped status. Internal errors are
// logged and replaced by fallback.
func SendServiceError(c *gin.Context, err error, fallback string) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		slog.Error(fallback, "path", c.FullPath(), "error", err)
		utils.SendError(c, status, fallback)
		return
	}
	utils.SendError(c, status, err.Error())
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// loadSummaries fetches the profile summaries of ids keyed by id.
func loadSummaries(db *gorm.DB, ids []string) (map[string]models.ProfileSummary, error) {
	out := make(map[string]models.ProfileSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var profiles []models.Profile
	if err := db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for i := range profiles {
		out[profiles[i].ID] = profiles[i].Summary()
	}
	return out, nil
}

// idSet returns the subset of ids present in column of the rows matched by query.
func idSet(query *gorm.DB, column string) (map[string]bool, error) {
	var ids []string
	if err := query.Pluck(column, &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// profileVisible reports whether viewerID may see ownerID's posts under the
// owner's profile_visibility. Blocked pairs get services.ErrBlocked.
func profileVisible(db *gorm.DB, ownerID, viewerID string) (bool, error) {
	if ownerID == viewerID {
		return true, nil
	}
	if viewerID != "" {
		blocked, err := services.IsBlockedEitherWay(db, viewerID, ownerID)
		if err != nil {
			return false, err
		}
		if blocked {
			return false, services.ErrBlocked
		}
	}

	var settings models.UserSettings
	err := db.Where("user_id = ?", ownerID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	switch settings.ProfileVisibility {
	case models.VisibilityPrivate:
		return false, nil
	case models.VisibilityFollowers:
		if viewerID == "" {
			return false, nil
		}
		return services.IsFollowing(db, viewerID, ownerID)
	}
	return true, nil
}
