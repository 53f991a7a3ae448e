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

type CommentController struct {
	db            *gorm.DB
	media         *services.MediaService
	notifications *services.NotificationService
	cache         *cache.Cache
}

func NewCommentController(db *gorm.DB, media *services.MediaService, notifications *services.NotificationService, cache *cache.Cache) *CommentController {
	return &CommentController{
		db:            db,
		media:         media,
		notifications: notifications,
		cache:         cache,
	}
}

type CreateCommentRequest struct {
	Content         string  `json:"content"`
	ParentCommentID *string `json:"parent_comment_id"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// GetComments returns the thread of a post: top-level comments oldest first,
// each with its replies nested below it.
func (cc *CommentController) GetComments(c *gin.Context) {
	userID := currentUserID(c)
	postID := c.Param("id")

	var post models.Post
	if err := cc.db.First(&post, "id = ?", postID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return
	}

	query := cc.db.Where("post_id = ?", postID)
	if userID != "" {
		hidden, err := services.HiddenUserIDs(cc.db, userID)
		if err != nil {
			SendServiceError(c, err, "Failed to fetch comments")
			return
		}
		if len(hidden) > 0 {
			query = query.Where("author_id NOT IN ?", hidden)
		}
	}

	var comments []models.Comment
	if err := query.Order("created_at ASC").Find(&comments).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch comments")
		return
	}

	thread, err := cc.buildThread(userID, comments)
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to fetch comments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": thread,
		"total":    len(comments),
	})
}

func (cc *CommentController) buildThread(viewerID string, comments []models.Comment) ([]models.CommentView, error) {
	ids := make([]string, 0, len(comments))
	authorIDs := make([]string, 0, len(comments))
	for _, cm := range comments {
		ids = append(ids, cm.ID)
		authorIDs = append(authorIDs, cm.AuthorID)
	}

	authors, err := loadSummaries(cc.db, authorIDs)
	if err != nil {
		return nil, err
	}
	liked := map[string]bool{}
	if viewerID != "" && len(ids) > 0 {
		liked, err = idSet(cc.db.Model(&models.CommentLike{}).Where("user_id = ? AND comment_id IN ?", viewerID, ids), "comment_id")
		if err != nil {
			return nil, err
		}
	}

	present := make(map[string]bool, len(comments))
	children := make(map[string][]models.Comment)
	var roots []models.Comment
	for _, cm := range comments {
		present[cm.ID] = true
	}
	for _, cm := range comments {
		if cm.ParentCommentID != nil && present[*cm.ParentCommentID] {
			children[*cm.ParentCommentID] = append(children[*cm.ParentCommentID], cm)
			continue
		}
		if cm.ParentCommentID == nil {
			roots = append(roots, cm)
		}
	}

	var build func(list []models.Comment) []models.CommentView
	build = func(list []models.Comment) []models.CommentView {
		out := make([]models.CommentView, 0, len(list))
		for _, cm := range list {
			author, ok := authors[cm.AuthorID]
			if !ok {
				continue
			}
			replies := build(children[cm.ID])
			out = append(out, models.CommentView{
				Comment:      cm,
				Author:       author,
				IsLiked:      liked[cm.ID],
				RepliesCount: len(replies),
				Replies:      replies,
			})
		}
		return out
	}
	return build(roots), nil
}

func (cc *CommentController) CreateComment(c *gin.Context) {
	userID := currentUserID(c)
	postID := c.Param("id")

	var req CreateCommentRequest
	var upload *services.Upload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.Content = c.PostForm("content")
		if parent := c.PostForm("parent_comment_id"); parent != "" {
			req.ParentCommentID = &parent
		}
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
		utils.SendValidationError(c, "Comment must have content or an image")
		return
	}
	if utils.RuneLen(content) > utils.MaxCommentLength {
		utils.SendValidationError(c, "Comment cannot exceed 500 characters")
		return
	}

	var post models.Post
	if err := cc.db.First(&post, "id = ?", postID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return
	}
	blocked, err := services.IsBlockedEitherWay(cc.db, userID, post.AuthorID)
	if err != nil {
		SendServiceError(c, err, "Failed to create comment")
		return
	}
	if blocked {
		utils.SendError(c, http.StatusForbidden, "You cannot comment on this post")
		return
	}

	var parent *models.Comment
	if req.ParentCommentID != nil && *req.ParentCommentID != "" {
		parent = &models.Comment{}
		if err := cc.db.First(parent, "id = ? AND post_id = ?", *req.ParentCommentID, postID).Error; err != nil {
			utils.SendValidationError(c, "Parent comment does not belong to this post")
			return
		}
	}

	comment := models.Comment{
		ID:       uuid.New().String(),
		PostID:   postID,
		AuthorID: userID,
		Content:  content,
	}
	if parent != nil {
		comment.ParentCommentID = &parent.ID
	}

	ctx := c.Request.Context()
	if upload != nil {
		url, key, err := cc.media.Upload(ctx, services.PrefixComments, userID, upload)
		if err != nil {
			SendServiceError(c, err, "Failed to upload image")
			return
		}
		comment.ImageURL = &url
		comment.ImagePath = key
	}

	err = cc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + ?", 1)).Error
	})
	if err != nil {
		cc.media.Remove(ctx, comment.ImagePath)
		utils.SendError(c, http.StatusInternalServerError, "Failed to create comment")
		return
	}

	notified := []string{}
	if parent != nil {
		cc.notifications.Notify(ctx, models.CreateNotificationParams{
			Type:      models.NotificationTypeReply,
			ActorID:   userID,
			UserID:    parent.AuthorID,
			PostID:    &post.ID,
			CommentID: &comment.ID,
		})
		notified = append(notified, parent.AuthorID)
	}
	if parent == nil || parent.AuthorID != post.AuthorID {
		cc.notifications.Notify(ctx, models.CreateNotificationParams{
			Type:      models.NotificationTypeComment,
			ActorID:   userID,
			UserID:    post.AuthorID,
			PostID:    &post.ID,
			CommentID: &comment.ID,
		})
		notified = append(notified, post.AuthorID)
	}
	cc.notifications.NotifyMentions(ctx, userID, mentionedUserIDs(cc.db, cc.cache, content), &post.ID, &comment.ID, notified...)

	view := models.CommentView{Comment: comment, Replies: []models.CommentView{}}
	var author models.Profile
	if err := cc.db.First(&author, "id = ?", userID).Error; err == nil {
		view.Author = author.Summary()
	}
	c.JSON(http.StatusCreated, view)
}

func (cc *CommentController) UpdateComment(c *gin.Context) {
	userID := currentUserID(c)

	var comment models.Comment
	if err := cc.db.First(&comment, "id = ? AND author_id = ?", c.Param("id"), userID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Comment not found or access denied")
		return
	}

	var req UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || utils.RuneLen(content) > utils.MaxCommentLength {
		utils.SendValidationError(c, "Comment must be between 1 and 500 characters")
		return
	}

	now := time.Now().UTC()
	if err := cc.db.Model(&comment).Updates(map[string]interface{}{"content": content, "edited_at": now}).Error; err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to update comment")
		return
	}
	comment.Content = content
	comment.EditedAt = &now

	c.JSON(http.StatusOK, comment)
}

// DeleteComment lets the comment author or the post author remove a comment
// together with every reply below it.
func (cc *CommentController) DeleteComment(c *gin.Context) {
	userID := currentUserID(c)

	var comment models.Comment
	if err := cc.db.First(&comment, "id = ?", c.Param("id")).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Comment not found")
		return
	}
	var post models.Post
	if err := cc.db.First(&post, "id = ?", comment.PostID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Post not found")
		return
	}
	if comment.AuthorID != userID && post.AuthorID != userID {
		utils.SendError(c, http.StatusForbidden, "You cannot delete this comment")
		return
	}

	ids := []string{comment.ID}
	keys := []string{comment.ImagePath}
	for frontier := ids; len(frontier) > 0; {
		var replies []models.Comment
		if err := cc.db.Select("id", "image_path").Where("parent_comment_id IN ?", frontier).Find(&replies).Error; err != nil {
			utils.SendError(c, http.StatusInternalServerError, "Failed to delete comment")
			return
		}
		frontier = frontier[:0:0]
		for _, r := range replies {
			frontier = append(frontier, r.ID)
			ids = append(ids, r.ID)
			keys = append(keys, r.ImagePath)
		}
	}

	err := cc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN ?", ids).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comments_count", gorm.Expr("CASE WHEN comments_count > ? THEN comments_count - ? ELSE 0 END", len(ids), len(ids))).Error
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to delete comment")
		return
	}

	cc.media.RemoveAll(c.Request.Context(), keys)

	c.JSON(http.StatusOK, gin.H{
		"message": "Comment deleted successfully",
		"deleted": len(ids),
	})
}

func (cc *CommentController) LikeComment(c *gin.Context) {
	userID := currentUserID(c)

	var comment models.Comment
	if err := cc.db.First(&comment, "id = ?", c.Param("id")).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Comment not found")
		return
	}
	blocked, err := services.IsBlockedEitherWay(cc.db, userID, comment.AuthorID)
	if err != nil {
		SendServiceError(c, err, "Failed to like comment")
		return
	}
	if blocked {
		utils.SendError(c, http.StatusForbidden, "You cannot interact with this comment")
		return
	}

	created := false
	err = cc.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.CommentLike{CommentID: comment.ID, UserID: userID}).Error; err != nil {
			return err
		}
		created = true
		return tx.Model(&models.Comment{}).Where("id = ?", comment.ID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1)).Error
	})
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		utils.SendError(c, http.StatusInternalServerError, "Failed to like comment")
		return
	}

	if created {
		cc.notifications.Notify(c.Request.Context(), models.CreateNotificationParams{
			Type:      models.NotificationTypeCommentLike,
			ActorID:   userID,
			UserID:    comment.AuthorID,
			PostID:    &comment.PostID,
			CommentID: &comment.ID,
		})
	}

	cc.db.First(&comment, "id = ?", comment.ID)
	c.JSON(http.StatusOK, gin.H{"is_liked": true, "likes_count": comment.LikesCount})
}

func (cc *CommentController) UnlikeComment(c *gin.Context) {
	userID := currentUserID(c)
	commentID := c.Param("id")

	err := cc.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("comment_id = ? AND user_id = ?", commentID, userID).Delete(&models.CommentLike{})
		if result.Error != nil || result.RowsAffected == 0 {
			return result.Error
		}
		return tx.Model(&models.Comment{}).Where("id = ? AND likes_count > 0", commentID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1)).Error
	})
	if err != nil {
		utils.SendError(c, http.StatusInternalServerError, "Failed to unlike comment")
		return
	}

	var comment models.Comment
	if err := cc.db.First(&comment, "id = ?", commentID).Error; err != nil {
		utils.SendError(c, http.StatusNotFound, "Comment not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_liked": false, "likes_count": comment.LikesCount})
}
