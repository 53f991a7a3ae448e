package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"klik-api/realtime"
	"klik-api/services"
	"klik-api/utils"
)

// HeartbeatInterval keeps idle streams open through proxies.
const HeartbeatInterval = 25 * time.Second

type RealtimeController struct {
	hub       *realtime.Hub
	messaging *services.MessagingService
	heartbeat time.Duration
}

func NewRealtimeController(hub *realtime.Hub, messaging *services.MessagingService) *RealtimeController {
	return &RealtimeController{
		hub:       hub,
		messaging: messaging,
		heartbeat: HeartbeatInterval,
	}
}

// Stream serves ?channel= as Server-Sent Events. Conversation channels require
// participation and user channels belong to their user only. With ?since=
// (RFC 3339) or Last-Event-ID on a conversation channel, messages stored after
// that time are replayed before live events.
func (rc *RealtimeController) Stream(c *gin.Context) {
	userID := currentUserID(c)
	channel := c.Query("channel")
	ctx := c.Request.Context()

	var conversationID string
	switch {
	case strings.HasPrefix(channel, "conversation:"):
		conversationID = strings.TrimPrefix(channel, "conversation:")
		ok, err := rc.messaging.IsParticipant(ctx, conversationID, userID)
		if err != nil {
			SendServiceError(c, err, "Failed to open stream")
			return
		}
		if !ok {
			utils.SendError(c, http.StatusForbidden, "Not a participant of this conversation")
			return
		}
	case strings.HasPrefix(channel, "user:"):
		if channel != realtime.UserChannel(userID) {
			utils.SendError(c, http.StatusForbidden, "Cannot subscribe to another user's channel")
			return
		}
	default:
		utils.SendValidationError(c, "channel must be conversation:<id> or user:<id>")
		return
	}

	since, err := parseSince(c)
	if err != nil {
		utils.SendValidationError(c, "since must be an RFC 3339 timestamp")
		return
	}

	// Subscribe before reading the backlog so nothing falls between the two.
	sub := rc.hub.Subscribe(channel)
	defer sub.Close()

	var backlog []realtime.Event
	if conversationID != "" && !since.IsZero() {
		messages, err := rc.messaging.MessagesSince(ctx, userID, conversationID, since)
		if err != nil {
			SendServiceError(c, err, "Failed to load messages")
			return
		}
		for i := range messages {
			payload, _ := json.Marshal(messages[i])
			backlog = append(backlog, realtime.Event{
				ID:      messages[i].ID,
				Channel: channel,
				Table:   "messages",
				Type:    realtime.EventInsert,
				RowID:   messages[i].ID,
				Payload: payload,
				At:      messages[i].CreatedAt,
			})
		}
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sent := make(map[string]bool)
	for _, ev := range realtime.MergeByID(backlog, drain(sub.C), rowKey) {
		sent[rowKey(ev)] = true
		writeEvent(c, ev)
	}
	c.SSEvent("ready", gin.H{"channel": channel})
	c.Writer.Flush()

	ticker := time.NewTicker(rc.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Type == realtime.EventInsert && sent[rowKey(ev)] {
				continue
			}
			writeEvent(c, ev)
		case <-ticker.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		}
	}
}

func parseSince(c *gin.Context) (time.Time, error) {
	value := c.Query("since")
	if value == "" {
		value = c.GetHeader("Last-Event-ID")
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

// drain returns the events already buffered on ch without blocking.
func drain(ch <-chan realtime.Event) []realtime.Event {
	var out []realtime.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func rowKey(ev realtime.Event) string {
	return ev.Table + ":" + string(ev.Type) + ":" + ev.RowID
}

// writeEvent emits ev with its timestamp as the SSE id, which clients echo
// back in Last-Event-ID when reconnecting.
func writeEvent(c *gin.Context, ev realtime.Event) {
	c.Render(-1, sse.Event{
		Id:    ev.At.UTC().Format(time.RFC3339Nano),
		Event: strings.ToLower(string(ev.Type)),
		Data:  ev,
	})
	c.Writer.Flush()
}
