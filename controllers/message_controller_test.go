package controllers_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"klik-api/models"
)

type startResponse struct {
	Conversation models.Conversation `json:"conversation"`
	Created      bool                `json:"created"`
}

func TestStartConversation(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")

	w := api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"})
	expectStatus(t, w, http.StatusCreated)
	first := decode[startResponse](t, w)
	if !first.Created {
		t.Error("first start should create the conversation")
	}

	w = api.request(http.MethodPost, "/api/v1/conversations", bruno, map[string]string{"user_id": "u1"})
	expectStatus(t, w, http.StatusOK)
	if second := decode[startResponse](t, w); second.Created || second.Conversation.ID != first.Conversation.ID {
		t.Errorf("starting from the other side should reuse %s, got %+v", first.Conversation.ID, second)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u1"}), http.StatusBadRequest)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "nobody"}), http.StatusNotFound)
}

func TestStartConversationRespectsSettingsAndBlocks(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	api.user("u3", "carla")

	expectStatus(t, api.request(http.MethodPut, "/api/v1/users/me/settings", bruno, map[string]bool{"allow_direct_messages": false}), http.StatusOK)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"}), http.StatusForbidden)

	expectStatus(t, api.request(http.MethodPost, "/api/v1/blocks/u1", bruno, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/conversations", bruno, map[string]string{"user_id": "u1"}), http.StatusForbidden)

	expectStatus(t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u3"}), http.StatusCreated)
}

func TestSendAndReadMessages(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	carla := api.user("u3", "carla")

	conv := decode[startResponse](t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"})).Conversation
	base := "/api/v1/conversations/" + conv.ID

	expectStatus(t, api.request(http.MethodPost, base+"/messages", ana, map[string]string{"content": "  "}), http.StatusBadRequest)

	w := api.request(http.MethodPost, base+"/messages", ana, map[string]string{"content": "hola"})
	expectStatus(t, w, http.StatusCreated)
	first := decode[models.Message](t, w)
	expectStatus(t, api.request(http.MethodPost, base+"/messages", ana, map[string]string{"content": "¿qué tal?"}), http.StatusCreated)

	if n := api.count(&models.Notification{}, "user_id = ? AND type = ?", "u2", models.NotificationTypeMessage); n != 1 {
		t.Errorf("repeated messages should collapse into one notification, got %d", n)
	}

	type unread struct {
		UnreadCount int64 `json:"unread_count"`
	}
	w = api.request(http.MethodGet, "/api/v1/conversations/unread-count", bruno, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[unread](t, w); got.UnreadCount != 2 {
		t.Errorf("bruno should have 2 unread messages, got %d", got.UnreadCount)
	}

	w = api.request(http.MethodGet, "/api/v1/conversations", bruno, nil)
	expectStatus(t, w, http.StatusOK)
	inbox := decode[struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}](t, w)
	if len(inbox.Conversations) != 1 || inbox.Conversations[0].OtherUser.Username != "ana" ||
		inbox.Conversations[0].LastMessage == nil || inbox.Conversations[0].LastMessage.Content != "¿qué tal?" {
		t.Fatalf("unexpected inbox %+v", inbox.Conversations)
	}

	since := url.QueryEscape(first.CreatedAt.Format(time.RFC3339Nano))
	w = api.request(http.MethodGet, base+"/messages?since="+since, bruno, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, w); len(got.Messages) != 1 || got.Messages[0].Content != "¿qué tal?" {
		t.Errorf("since should only return newer messages, got %+v", got.Messages)
	}
	expectStatus(t, api.request(http.MethodGet, base+"/messages?since=yesterday", bruno, nil), http.StatusBadRequest)

	expectStatus(t, api.request(http.MethodPut, base+"/read", bruno, nil), http.StatusOK)
	if got := decode[unread](t, api.request(http.MethodGet, "/api/v1/conversations/unread-count", bruno, nil)); got.UnreadCount != 0 {
		t.Errorf("unread count after marking read = %d", got.UnreadCount)
	}

	w = api.request(http.MethodGet, base, bruno, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[struct {
		OtherUser models.ProfileSummary `json:"other_user"`
	}](t, w); got.OtherUser.ID != "u1" {
		t.Errorf("other_user = %+v", got.OtherUser)
	}

	expectStatus(t, api.request(http.MethodGet, base+"/messages", carla, nil), http.StatusForbidden)
	expectStatus(t, api.request(http.MethodPost, base+"/messages", carla, map[string]string{"content": "hi"}), http.StatusForbidden)
	expectStatus(t, api.request(http.MethodGet, "/api/v1/conversations/missing", ana, nil), http.StatusNotFound)
}

func TestSendImageOnlyMessage(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	api.user("u2", "bruno")

	conv := decode[startResponse](t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"})).Conversation

	w := api.multipart("/api/v1/conversations/"+conv.ID+"/messages", ana, nil, pngImage(t, 8, 8))
	expectStatus(t, w, http.StatusCreated)
	msg := decode[models.Message](t, w)
	if msg.Content != models.ImageOnlyMessageContent || msg.ImageURL == nil {
		t.Errorf("unexpected image message %+v", msg)
	}
}
