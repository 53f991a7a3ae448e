package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"klik-api/cache"
	"klik-api/imaging"
	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

type UserController struct {
	db    *gorm.DB
	media *services.MediaService
	cache *cache.Cache
}

func NewUserController(db *gorm.DB, media *services.MediaService, cache *cache.Cache) *UserController {
	return &UserController{
		db:    db,
		media: media,
		cache: cache,
	}
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Username    *string `json:"username"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
}

type UpdateSettingsRequest struct {
	ProfileVisibility   *string `json:"profile_visibility"`
	ShowEmail           *bool   `json:"show_email"`
	ShowLocation        *bool   `json:"show_location"`
	AllowDirectMessages *bool   `json:"allow_direct_messages"`
	ShowOnlineStatus    *bool   `json:"show_online_status"`
}

// ProfileResponse is a profile as seen by a particular viewer.
type ProfileResponse struct {
	Profile     models.Profile `json:"profile"`
	IsOwn       bool           `json:"is_own"`
	IsFollowing bool           `json:"is_following"`
	FollowsYou  bool           `json:"follows_you"`
	Restricted  bool           `json:"restricted"`
}

type ProfileStatistics struct {
	PostsCount     int   `json:"posts_count"`
	FollowersCount int   `json:"followers_count"`
	FollowingCount int   `json:"following_count"`
	LikesReceived  int64 `json:"likes_received"`
	ProfileViews   int64 `json:"profile_views"`
}

func (uc *UserController) GetMe(c *gin.Context) {
	var user models.Profile
	if err := uc.db.First(&user, "id = ?", currentUserID(c)).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetProfile returns the profile behind :username filtered by the owner's
// visibility settings. Blocked pairs see nothing.
func (uc *UserController) GetProfile(c *gin.Context) {
	viewerID := currentUserID(c)

	var user models.Profile
	if err := uc.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	resp := ProfileResponse{IsOwn: viewerID == user.ID}
	if resp.IsOwn {
		resp.Profile = user
		c.JSON(http.StatusOK, resp)
		return
	}

	if viewerID != "" {
		blocked, err := services.IsBlockedEitherWay(uc.db, viewerID, user.ID)
		if err != nil {
			SendServiceError(c, err, "Failed to load profile")
			return
		}
		if blocked {
			utils.SendError(c, http.StatusNotFound, "User not found")
			return
		}
		resp.IsFollowing, _ = services.IsFollowing(uc.db, viewerID, user.ID)
		resp.FollowsYou, _ = services.IsFollowing(uc.db, user.ID, viewerID)
	}

	settings := uc.settingsFor(user.ID)
	switch settings.ProfileVisibility {
	case models.VisibilityPrivate:
		resp.Restricted = true
	case models.VisibilityFollowers:
		resp.Restricted = !resp.IsFollowing
	}

	if !settings.ShowEmail {
		user.Email = ""
	}
	if !settings.ShowLocation {
		user.Location = ""
	}
	if resp.Restricted {
		user.Bio = ""
		user.Website = ""
		user.Location = ""
		user.Email = ""
	}
	resp.Profile = user

	c.JSON(http.StatusOK, resp)
}

func (uc *UserController) UpdateProfile(c *gin.Context) {
	userID := currentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	var user models.Profile
	if err := uc.db.First(&user, "id = ?", userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}
	oldUsername := user.Username

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || utils.RuneLen(name) > 50 {
			utils.SendValidationError(c, "Display name must be between 1 and 50 characters")
			return
		}
		updates["display_name"] = name
	}
	if req.Username != nil && *req.Username != user.Username {
		if !utils.IsValidUsername(*req.Username) {
			utils.SendValidationError(c, "Username must be 3-30 letters, numbers or underscores")
			return
		}
		var count int64
		uc.db.Model(&models.Profile{}).Where("username = ? AND id <> ?", *req.Username, userID).Count(&count)
		if count > 0 {
			utils.SendError(c, http.StatusConflict, "Username already taken")
			return
		}
		updates["username"] = *req.Username
	}
	if req.Bio != nil {
		if utils.RuneLen(*req.Bio) > utils.MaxBioLength {
			utils.SendValidationError(c, "Bio is too long")
			return
		}
		updates["bio"] = *req.Bio
	}
	if req.Location != nil {
		updates["location"] = strings.TrimSpace(*req.Location)
	}
	if req.Website != nil {
		if !utils.IsValidWebsite(*req.Website) {
			utils.SendValidationError(c, "Website must be an http(s) URL")
			return
		}
		updates["website"] = *req.Website
	}

	if len(updates) > 0 {
		err := uc.db.Model(&user).Updates(updates).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.SendError(c, http.StatusConflict, "Username already taken")
			return
		}
		if err != nil {
			utils.SendError(c, http.StatusInternalServerError, "Failed to update profile")
			return
		}
	}

	uc.cache.InvalidateProfile(oldUsername)
	if req.Username != nil {
		uc.cache.InvalidateProfile(*req.Username)
	}

	uc.db.First(&user, "id = ?", userID)
	c.JSON(http.StatusOK, user)
}

func (uc *UserController) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, uc.settingsFor(currentUserID(c)))
}

func (uc *UserController) UpdateSettings(c *gin.Context) {
	userID := currentUserID(c)

	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	if req.ProfileVisibility != nil && !models.IsValidVisibility(*req.ProfileVisibility) {
		utils.SendValidationError(c, "profile_visibility must be public, followers or private")
		return
	}

	settings := uc.settingsFor(userID)
	if req.ProfileVisibility != nil {
		settings.ProfileVisibility = *req.ProfileVisibility
	}
	if req.ShowEmail != nil {
		settings.ShowEmail = *req.ShowEmail
	}
	if req.ShowLocation != nil {
		settings.ShowLocation = *req.ShowLocation
	}
	if req.AllowDirectMessages != nil {
		settings.AllowDirectMessages = *req.AllowDirectMessages
	}
	if req.ShowOnlineStatus != nil {
		settings.ShowOnlineStatus = *req.ShowOnlineStatus
	}

	if err := uc.db.Save(&settings).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// settingsFor loads the settings row, creating the defaults on first use.
func (uc *UserController) settingsFor(userID string) models.UserSettings {
	settings := models.DefaultUserSettings(userID)
	if err := uc.db.Where("user_id = ?", userID).FirstOrCreate(&settings).Error; err != nil {
		slog.Warn("failed to load user settings", "user_id", userID, "error", err)
		return models.DefaultUserSettings(userID)
	}
	return settings
}

func (uc *UserController) GetStatistics(c *gin.Context) {
	var user models.Profile
	if err := uc.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	stats := ProfileStatistics{
		PostsCount:     user.PostsCount,
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}
	uc.db.Model(&models.Post{}).Where("author_id = ?", user.ID).
		Select("COALESCE(SUM(likes_count), 0)").Scan(&stats.LikesReceived)
	uc.db.Model(&models.ProfileView{}).Where("profile_id = ?", user.ID).Count(&stats.ProfileViews)

	c.JSON(http.StatusOK, stats)
}

// RecordView counts one view per viewer per day. Own views are ignored and
// anonymous viewers are always counted.
func (uc *UserController) RecordView(c *gin.Context) {
	viewerID := currentUserID(c)

	var user models.Profile
	if err := uc.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}
	if viewerID == user.ID {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}

	view := models.ProfileView{
		ProfileID:  user.ID,
		ViewedDate: time.Now().UTC().Format(time.DateOnly),
	}
	if viewerID != "" {
		view.ViewerID = &viewerID
	}

	err := uc.db.Create(&view).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to record view")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

func (uc *UserController) GetAnalytics(c *gin.Context) {
	userID := currentUserID(c)

	var user models.Profile
	if err := uc.db.First(&user, "id = ?", userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	analytics := models.ProfileAnalytics{
		FollowersCount: user.FollowersCount,
		PostsCount:     user.PostsCount,
	}
	views := uc.db.Model(&models.ProfileView{}).Where("profile_id = ?", userID)
	views.Session(&gorm.Session{}).Count(&analytics.TotalViews)
	views.Session(&gorm.Session{}).Where("viewed_date = ?", time.Now().UTC().Format(time.DateOnly)).
		Count(&analytics.TodayViews)
	views.Session(&gorm.Session{}).Distinct("viewer_id").Where("viewer_id IS NOT NULL").
		Count(&analytics.UniqueViewers)

	c.JSON(http.StatusOK, analytics)
}

func (uc *UserController) UploadAvatar(c *gin.Context) {
	uc.uploadCrop(c, imaging.KindAvatar)
}

func (uc *UserController) UploadBanner(c *gin.Context) {
	uc.uploadCrop(c, imaging.KindBanner)
}

// uploadCrop renders the editor state submitted with the image, stores the
// result and replaces the previous avatar or banner.
func (uc *UserController) uploadCrop(c *gin.Context, kind imaging.Kind) {
	userID := currentUserID(c)

	fh, err := c.FormFile("image")
	if err != nil {
		utils.SendValidationError(c, "image file is required")
		return
	}
	upload, err := services.ReadImage(fh)
	if err != nil {
		SendServiceError(c, err, "Failed to read image")
		return
	}

	var state *imaging.State
	if c.PostForm("scale") != "" || c.PostForm("output_width") != "" || c.PostForm("output_height") != "" {
		state = &imaging.State{}
		if err := c.ShouldBind(state); err != nil {
			utils.SendValidationError(c, err.Error())
			return
		}
	}

	result, err := imaging.Process(upload.Data, kind, state)
	if err != nil {
		if StatusForError(err) == http.StatusInternalServerError {
			utils.SendValidationError(c, "Could not process image")
			return
		}
		SendServiceError(c, err, "Failed to process image")
		return
	}

	var user models.Profile
	if err := uc.db.First(&user, "id = ?", userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	url, key, err := uc.media.UploadCrop(c.Request.Context(), kind, userID, result)
	if err != nil {
		SendServiceError(c, err, "Failed to upload image")
		return
	}

	urlColumn, pathColumn, oldKey := "avatar_url", "avatar_path", user.AvatarPath
	if kind == imaging.KindBanner {
		urlColumn, pathColumn, oldKey = "banner_url", "banner_path", user.BannerPath
	}

	if err := uc.db.Model(&user).Updates(map[string]interface{}{urlColumn: url, pathColumn: key}).Error; err != nil {
		uc.media.Remove(c.Request.Context(), key)
		utils.SendError(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	uc.media.Remove(c.Request.Context(), oldKey)
	uc.cache.InvalidateProfile(user.Username)

	c.JSON(http.StatusOK, gin.H{
		"url":    url,
		"width":  result.Width,
		"height": result.Height,
	})
}
