package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"klik-api/cache"
	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

const (
	FeedTabForYou    = "for-you"
	FeedTabFollowing = "following"
)

type PostController struct {
	db            *gorm.DB
	media         *services.MediaService
	notifications *services.NotificationService
	cache         *cache.Cache
}

func NewPostController(db *gorm.DB, media *services.MediaService, notifications *services.NotificationService, cache *cache.Cache) *PostController {
	return &PostController{
		db:            db,
		media:         media,
		notifications: notifications,
		cache:         cache,
	}
}

type CreatePostRequest struct {
	Content string `json:"content" form:"content"`
}

type UpdatePostRequest struct {
	Content string `json:"content" binding:"required"`
}

type SharePostRequest struct {
	ShareType string `json:"share_type"`
}

// GetFeed serves the for-you, following and list feeds. Authors the viewer
// blocked, or was blocked by, never appear.
func (pc *PostController) GetFeed(c *gin.Context) {
	userID := currentUserID(c)
	page, limit, offset := utils.ParsePagination(c, 10)

	query := pc.db.Model(&models.Post{})

	hidden, err := services.HiddenUserIDs(pc.db, userID)
	if err != nil {
		SendServiceError(c, err, "Failed to fetch posts")
		return
	}
	if len(hidden) > 0 {
		query = query.Where("author_id NOT IN ?", hidden)
	}

	if listID := c.Query("list"); listID != "" {
		var list models.UserList
		if err := pc.db.First(&list, "id = ? AND owner_id = ?", listID, userID).Error; err != nil {
			utils.SendError(c, http.StatusNotFound, "List not found")
			return
		}
		var members []string
		if err := pc.db.Model(&models.UserListMember{}).Where("list_id = ?", listID).Pluck("member_id", &members).Error; err != nil {
			SendServiceError(c, err, "Failed to fetch posts")
			return
		}
		if len(members) == 0 {
			c.JSON(http.StatusOK, models.FeedResponse{
				Posts:      []models.PostView{},
				Pagination: models.NewPagination(page, limit, 0),
			})
			return
		}
		query = query.Where("author_id IN ?", members)
	} else if c.DefaultQuery("tab", FeedTabForYou) == FeedTabFollowing {
		var following []string
		if err := pc.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &following).Error; err != nil {
			SendServiceError(c, err, "Failed to fetch posts")
			return
		}
		query = query.Where("author_id IN ?", append(following, userID))
	}

	pc.sendPage(c, query, userID, page, limit, offset)
}

func (pc *PostController) sendPage(c *gin.Context, query *gorm.DB, viewerID string, page, limit, offset int) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	var posts []models.Post
	if err := query.Session(&gorm.Session{}).Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&posts).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	views, err := buildPostViews(pc.db, viewerID, posts)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}

	c.JSON(http.StatusOK, models.FeedResponse{
		Posts:      views,
		Pagination: models.NewPagination(page, limit, total),
	})
}

// buildPostViews attaches authors and the viewer's like and save state.
func buildPostViews(db *gorm.DB, viewerID string, posts []models.Post) ([]models.PostView, error) {
	views := make([]models.PostView, 0, len(posts))
	if len(posts) == 0 {
		return views, nil
	}

	postIDs := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
	}

	authors, err := loadSummaries(db, authorIDs)
	if err != nil {
		return nil, err
	}

	liked, saved := map[string]bool{}, map[string]bool{}
	if viewerID != "" {
		if liked, err = idSet(db.Model(&models.Like{}).Where("user_id = ? AND post_id IN ?", viewerID, postIDs), "post_id"); err != nil {
			return nil, err
		}
		if saved, err = idSet(db.Model(&models.SavedPost{}).Where("user_id = ? AND post_id IN ?", viewerID, postIDs), "post_id"); err != nil {
			return nil, err
		}
	}

	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			continue
		}
		views = append(views, models.PostView{
			Post:    p,
			Author:  author,
			IsLiked: liked[p.ID],
			IsSaved: saved[p.ID],
			IsOwner: viewerID == p.AuthorID,
		})
	}
	return views, nil
}

func (pc *PostController) CreatePost(c *gin.Context) {
	userID := currentUserID(c)

	var req CreatePostRequest
	var upload *services.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Content = c.PostForm("content")
		if fh, err := c.FormFile("image"); err == nil {
			if upload, err = services.ReadImage(fh); err != nil {
				SendServiceError(c, err, "Failed to read image")
				return
			}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && upload == nil {
		utils.SendValidationError(c, "Post must have content or an image")
		return
	}
	if utils.RuneLen(content) > utils.MaxPostLength {
		utils.SendValidationError(c, "Post content cannot exceed 500 characters")
		return
	}

	post := models.Post{
		ID:       uuid.New().String(),
		AuthorID: userID,
		Content:  content,
		Hashtags: models.StringSlice(utils.ExtractHashtags(content)),
	}

	ctx := c.Request.Context()
	if upload != nil {
		url, key, err := pc.media.Upload(ctx, services.PrefixPosts, userID, upload)
		if err != nil {
			SendServiceError(c, err, "Failed to upload image")
			return
		}
		post.ImageURL = &url
		post.ImagePath = key
	}

	err := pc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ?", userID).
			UpdateColumn("posts_count", gorm.Expr("posts_count + ?", 1)).Error
	})
	if err != nil {
		pc.media.Remove(ctx, post.ImagePath)
		utils.SendError(c, http.StatusInternalServerError, "Failed to create post")
		return
	}

	if len(post.Hashtags) > 0 {
		pc.cache.InvalidateTrending()
	}
	pc.notifications.NotifyMentions(ctx, userID, mentionedUserIDs(pc.db, pc.cache, content), &post.ID, nil)

	views, err := buildPostViews(pc.db, userID, []models.Post{post})
	if err != nil || len(views) == 0 {
		c.JSON(http.StatusCreated, post)
		return
	}
	c.JSON(http.StatusCreated, views[0])
}

// mentionedUserIDs resolves @usernames in text to user ids. Unknown
// usernames are dropped.
func mentionedUserIDs(db *gorm.DB, profiles *cache.Cache, text string) []string {
	usernames := utils.ExtractMentions(text)
	if len(usernames) == 0 {
		return nil
	}

	found, err := profiles.GetProfiles(usernames, func(missed []string) (map[string]models.ProfileSummary, error) {
		lowered := make([]string, len(missed))
		for i, u := range missed {
			lowered[i] = strings.ToLower(u)
		}
		var users []models.Profile
		if err := db.Where("LOWER(username) IN ?", lowered).Find(&users).Error; err != nil {
			return nil, err
		}
		out := make(map[string]models.ProfileSummary, len(users))
		for i := range users {
			out[users[i].Username] = users[i].Summary()
		}
		return out, nil
	})
	if err != nil {
		return nil
	}

	ids := make([]string, 0, len(found))
	for _, u := range usernames {
		if s, ok := found[strings.ToLower(u)]; ok {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func (pc *PostController) GetPost(c *gin.Context) {
	userID := currentUserID(c)

	var post models.Post
	if err := pc.db.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return
	}
	if userID != "" {
		blocked, err := services.IsBlockedEitherWay(pc.db, userID, post.AuthorID)
		if err != nil {
			SendServiceError(c, err, "Failed to load post")
			return
		}
		if blocked {
			utils.SendError(c, http.StatusNotFound, "Post not found")
			return
		}
	}

	views, err := buildPostViews(pc.db, userID, []models.Post{post})
	if err != nil || len(views) == 0 {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return
	}
	c.JSON(http.StatusOK, views[0])
}

func (pc *PostController) UpdatePost(c *gin.Context) {
	userID := currentUserID(c)

	var post models.Post
	if err := pc.db.First(&post, "id = ? AND author_id = ?", c.Param("id"), userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found or access denied")
		return
	}

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" && post.ImageURL == nil {
		utils.SendValidationError(c, "Post must have content or an image")
		return
	}
	if utils.RuneLen(content) > utils.MaxPostLength {
		utils.SendValidationError(c, "Post content cannot exceed 500 characters")
		return
	}

	now := time.Now().UTC()
	post.Content = content
	post.Hashtags = models.StringSlice(utils.ExtractHashtags(content))
	post.EditedAt = &now
	if err := pc.db.Model(&post).Select("content", "hashtags", "edited_at").Updates(&post).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to update post")
		return
	}
	pc.cache.InvalidateTrending()

	views, err := buildPostViews(pc.db, userID, []models.Post{post})
	if err != nil || len(views) == 0 {
		c.JSON(http.StatusOK, post)
		return
	}
	c.JSON(http.StatusOK, views[0])
}

// DeletePost removes the post with its comments, likes, saves, shares and
// notifications, then the stored images.
func (pc *PostController) DeletePost(c *gin.Context) {
	userID := currentUserID(c)

	var post models.Post
	if err := pc.db.First(&post, "id = ? AND author_id = ?", c.Param("id"), userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found or access denied")
		return
	}

	var comments []models.Comment
	pc.db.Select("id", "image_path").Where("post_id = ?", post.ID).Find(&comments)
	commentIDs := make([]string, 0, len(comments))
	keys := []string{post.ImagePath}
	for _, cm := range comments {
		commentIDs = append(commentIDs, cm.ID)
		keys = append(keys, cm.ImagePath)
	}

	err := pc.db.Transaction(func(tx *gorm.DB) error {
		if len(commentIDs) > 0 {
			if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
				return err
			}
		}
		if err := pc.notifications.DeleteForPost(tx, post.ID, commentIDs); err != nil {
			return err
		}
		for _, model := range []interface{}{&models.Comment{}, &models.Like{}, &models.SavedPost{}, &models.PostShare{}} {
			if err := tx.Where("post_id = ?", post.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&post).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("id = ? AND posts_count > 0", userID).
			UpdateColumn("posts_count", gorm.Expr("posts_count - ?", 1)).Error
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to delete post")
		return
	}

	pc.media.RemoveAll(c.Request.Context(), keys)
	pc.cache.InvalidateTrending()

	utils.SendSuccess(c, "Post deleted successfully", nil)
}

func (pc *PostController) LikePost(c *gin.Context) {
	userID := currentUserID(c)
	post, ok := pc.visiblePost(c, userID)
	if !ok {
		return
	}

	created := false
	err := pc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Like{PostID: post.ID, UserID: userID}).Error; err != nil {
			return err
		}
		created = true
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1)).Error
	})
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendError(c, http.StatusInternalServerError, "Failed to like post")
		return
	}

	if created {
		pc.notifications.Notify(c.Request.Context(), models.CreateNotificationParams{
			Type:    models.NotificationTypeLike,
			ActorID: userID,
			UserID:  post.AuthorID,
			PostID:  &post.ID,
		})
	}

	pc.db.First(post, "id = ?", post.ID)
	c.JSON(http.StatusOK, gin.H{"is_liked": true, "likes_count": post.LikesCount})
}

func (pc *PostController) UnlikePost(c *gin.Context) {
	userID := currentUserID(c)
	postID := c.Param("id")

	err := pc.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if result.Error != nil || result.RowsAffected == 0 {
			return result.Error
		}
		return tx.Model(&models.Post{}).Where("id = ? AND likes_count > 0", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1)).Error
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to unlike post")
		return
	}

	var post models.Post
	if err := pc.db.First(&post, "id = ?", postID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_liked": false, "likes_count": post.LikesCount})
}

func (pc *PostController) SavePost(c *gin.Context) {
	userID := currentUserID(c)
	post, ok := pc.visiblePost(c, userID)
	if !ok {
		return
	}

	err := pc.db.Create(&models.SavedPost{PostID: post.ID, UserID: userID}).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendError(c, http.StatusInternalServerError, "Failed to save post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_saved": true})
}

func (pc *PostController) UnsavePost(c *gin.Context) {
	if err := pc.db.Where("post_id = ? AND user_id = ?", c.Param("id"), currentUserID(c)).
		Delete(&models.SavedPost{}).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to unsave post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_saved": false})
}

func (pc *PostController) GetSavedPosts(c *gin.Context) {
	userID := currentUserID(c)
	page, limit, offset := utils.ParsePagination(c, 10)

	query := pc.db.Model(&models.Post{}).
		Joins("JOIN saved_posts ON saved_posts.post_id = posts.id").
		Where("saved_posts.user_id = ?", userID)

	var total int64
	query.Session(&gorm.Session{}).Count(&total)

	var posts []models.Post
	if err := query.Session(&gorm.Session{}).Order("saved_posts.created_at DESC").
		Offset(offset).Limit(limit).Find(&posts).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch saved posts")
		return
	}

	views, err := buildPostViews(pc.db, userID, posts)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch saved posts")
		return
	}
	c.JSON(http.StatusOK, models.FeedResponse{
		Posts:      views,
		Pagination: models.NewPagination(page, limit, total),
	})
}

func (pc *PostController) SharePost(c *gin.Context) {
	userID := currentUserID(c)
	post, ok := pc.visiblePost(c, userID)
	if !ok {
		return
	}

	var req SharePostRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendValidationError(c, err.Error())
			return
		}
	}
	switch req.ShareType {
	case "":
		req.ShareType = models.ShareTypeLink
	case models.ShareTypeLink, models.ShareTypeMessage, models.ShareTypeRepost:
	default:
		utils.SendValidationError(c, "share_type must be link, message or repost")
		return
	}

	err := pc.db.Transaction(func(tx *gorm.DB) error {
		share := models.PostShare{PostID: post.ID, UserID: userID, ShareType: req.ShareType}
		if err := tx.Create(&share).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("shares_count", gorm.Expr("shares_count + ?", 1)).Error
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to share post")
		return
	}

	pc.notifications.Notify(c.Request.Context(), models.CreateNotificationParams{
		Type:    models.NotificationTypeShare,
		ActorID: userID,
		UserID:  post.AuthorID,
		PostID:  &post.ID,
	})

	c.JSON(http.StatusOK, gin.H{"shares_count": post.SharesCount + 1})
}

// GetUserPosts lists a user's posts if the viewer may see that profile.
func (pc *PostController) GetUserPosts(c *gin.Context) {
	viewerID := currentUserID(c)
	page, limit, offset := utils.ParsePagination(c, 10)

	var user models.Profile
	if err := pc.db.Where("username = ?", c.Param("username")).First(&user).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}

	visible, err := profileVisible(pc.db, user.ID, viewerID)
	if errors.Is(err, services.ErrBlocked) {
		utils.SendError(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch posts")
		return
	}
	if !visible {
		utils.SendError(c, http.StatusForbidden, "This profile is private")
		return
	}

	pc.sendPage(c, pc.db.Model(&models.Post{}).Where("author_id = ?", user.ID), viewerID, page, limit, offset)
}

// visiblePost loads :id and rejects posts by blocked authors.
func (pc *PostController) visiblePost(c *gin.Context, userID string) (*models.Post, bool) {
	var post models.Post
	if err := pc.db.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return nil, false
	}
	blocked, err := services.IsBlockedEitherWay(pc.db, userID, post.AuthorID)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to load post")
		return nil, false
	}
	if blocked {
		utils.SendError(c, http.StatusForbidden, "You cannot interact with this post")
		return nil, false
	}
	return &post, true
}
