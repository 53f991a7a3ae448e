package controllers_test

import (
	"net/http"
	"testing"

	"klik-api/models"
)

func TestNotificationInbox(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	carla := api.user("u3", "carla")

	post := createPost(t, api, ana, "notify me")
	expectStatus(t, api.request(http.MethodPost, "/api/v1/follows/u1", bruno, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/like", bruno, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/like", carla, nil), http.StatusOK)

	w := api.request(http.MethodGet, "/api/v1/notifications", ana, nil)
	expectStatus(t, w, http.StatusOK)
	inbox := decode[models.PaginatedNotifications](t, w)
	if inbox.Total != 3 || len(inbox.Notifications) != 3 {
		t.Fatalf("expected 3 notifications, got %+v", inbox)
	}
	latest := inbox.Notifications[0]
	if latest.Actor.Username != "carla" || latest.Type != models.NotificationTypeLike || latest.Message != "liked your post" {
		t.Errorf("unexpected latest notification %+v", latest)
	}
	if latest.Post == nil || latest.Post.ID != post.ID || latest.Post.Excerpt != "notify me" {
		t.Errorf("like notification should carry the post, got %+v", latest.Post)
	}

	w = api.request(http.MethodGet, "/api/v1/notifications?type=follow", ana, nil)
	if got := decode[models.PaginatedNotifications](t, w); got.Total != 1 || got.Notifications[0].Post != nil {
		t.Errorf("type filter returned %+v", got)
	}
	expectStatus(t, api.request(http.MethodGet, "/api/v1/notifications?type=poke", ana, nil), http.StatusBadRequest)

	stats := decode[models.NotificationStats](t, api.request(http.MethodGet, "/api/v1/notifications/stats", ana, nil))
	if stats.UnreadCount != 3 || stats.TotalCount != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	expectStatus(t, api.request(http.MethodPut, "/api/v1/notifications/"+latest.ID+"/read", bruno, nil), http.StatusNotFound)
	expectStatus(t, api.request(http.MethodPut, "/api/v1/notifications/"+latest.ID+"/read", ana, nil), http.StatusOK)
	stats = decode[models.NotificationStats](t, api.request(http.MethodGet, "/api/v1/notifications/stats", ana, nil))
	if stats.UnreadCount != 2 {
		t.Errorf("unread after marking one = %d", stats.UnreadCount)
	}

	w = api.request(http.MethodPut, "/api/v1/notifications/read-all", ana, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[struct {
		Updated int64 `json:"updated"`
	}](t, w); got.Updated != 2 {
		t.Errorf("read-all updated %d rows, want 2", got.Updated)
	}

	expectStatus(t, api.request(http.MethodDelete, "/api/v1/notifications/"+latest.ID, ana, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodDelete, "/api/v1/notifications/"+latest.ID, ana, nil), http.StatusNotFound)

	// Blocking hides the actor's notifications.
	expectStatus(t, api.request(http.MethodPost, "/api/v1/blocks/u2", ana, nil), http.StatusOK)
	if got := decode[models.PaginatedNotifications](t, api.request(http.MethodGet, "/api/v1/notifications", ana, nil)); got.Total != 0 {
		t.Errorf("notifications from blocked users should be hidden, got %d", got.Total)
	}
}
