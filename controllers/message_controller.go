package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"klik-api/models"
	"klik-api/services"
	"klik-api/utils"
)

type MessageController struct {
	messaging *services.MessagingService
}

func NewMessageController(messaging *services.MessagingService) *MessageController {
	return &MessageController{messaging: messaging}
}

type StartConversationRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type SendMessageRequest struct {
	Content string `json:"content" form:"content"`
}

// StartConversation returns the existing conversation with the target user
// or creates it. 201 means a new conversation was created.
func (mc *MessageController) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	conversation, created, err := mc.messaging.StartConversation(c.Request.Context(), currentUserID(c), req.UserID)
	if err != nil {
		SendServiceError(c, err, "Failed to start conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"conversation": conversation,
		"created":      created,
	})
}

func (mc *MessageController) GetConversations(c *gin.Context) {
	conversations, err := mc.messaging.ListConversations(c.Request.Context(), currentUserID(c), strings.TrimSpace(c.Query("q")))
	if err != nil {
		SendServiceError(c, err, "Failed to fetch conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (mc *MessageController) GetConversation(c *gin.Context) {
	conversation, other, err := mc.messaging.Conversation(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		SendServiceError(c, err, "Failed to fetch conversation")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conversation,
		"other_user":   other,
	})
}

// GetMessages returns the whole history, or only messages after ?since=
// (RFC 3339) for clients catching up after a reconnect.
func (mc *MessageController) GetMessages(c *gin.Context) {
	userID := currentUserID(c)
	conversationID := c.Param("id")
	ctx := c.Request.Context()

	var (
		messages []models.Message
		err      error
	)
	if since := c.Query("since"); since != "" {
		t, perr := time.Parse(time.RFC3339Nano, since)
		if perr != nil {
			utils.SendValidationError(c, "since must be an RFC 3339 timestamp")
			return
		}
		messages, err = mc.messaging.MessagesSince(ctx, userID, conversationID, t)
	} else {
		messages, err = mc.messaging.GetMessages(ctx, userID, conversationID)
	}
	if err != nil {
		SendServiceError(c, err, "Failed to fetch messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (mc *MessageController) SendMessage(c *gin.Context) {
	var req SendMessageRequest
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

	message, err := mc.messaging.SendMessage(c.Request.Context(), currentUserID(c), c.Param("id"), req.Content, upload)
	if err != nil {
		SendServiceError(c, err, "Failed to send message")
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (mc *MessageController) MarkRead(c *gin.Context) {
	if err := mc.messaging.MarkRead(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		SendServiceError(c, err, "Failed to mark conversation as read")
		return
	}
	utils.SendSuccess(c, "Conversation marked as read", nil)
}

func (mc *MessageController) GetUnreadCount(c *gin.Context) {
	count, err := mc.messaging.UnreadTotal(c.Request.Context(), currentUserID(c))
	if err != nil {
		SendServiceError(c, err, "Failed to count unread messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}
