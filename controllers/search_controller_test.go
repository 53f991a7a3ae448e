package controllers_test

import (
	"net/http"
	"testing"

	"klik-api/models"
	"klik-api/utils"
)

func TestSearchProfiles(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	api.user("u2", "bruno")
	api.user("u3", "joana")
	api.user("u4", "an_dre")

	expectStatus(t, api.request(http.MethodPost, "/api/v1/follows/u3", ana, nil), http.StatusOK)

	w := api.request(http.MethodGet, "/api/v1/search/users?q=AN", "", nil)
	expectStatus(t, w, http.StatusOK)
	users := decode[struct {
		Users []models.ProfileSummary `json:"users"`
	}](t, w).Users
	if len(users) != 3 || users[0].Username != "joana" {
		t.Fatalf("expected three matches with the most followed first, got %+v", users)
	}

	// "_" is a literal, not a wildcard.
	w = api.request(http.MethodGet, "/api/v1/search/users?q=n_d", "", nil)
	users = decode[struct {
		Users []models.ProfileSummary `json:"users"`
	}](t, w).Users
	if len(users) != 1 || users[0].Username != "an_dre" {
		t.Errorf("underscore should match literally, got %+v", users)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/blocks/u3", ana, nil), http.StatusOK)
	w = api.request(http.MethodGet, "/api/v1/search/users?q=joana", ana, nil)
	if got := decode[struct {
		Users []models.ProfileSummary `json:"users"`
	}](t, w).Users; len(got) != 0 {
		t.Errorf("blocked users must not be found, got %+v", got)
	}
}

func TestSearchPostsAndHashtags(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")

	createPost(t, api, ana, "Discount 100% off #Sale")
	createPost(t, api, bruno, "1000 reasons #sale #weekend")
	createPost(t, api, bruno, "#weekend plans")
	createPost(t, api, ana, "no tags here")

	w := api.request(http.MethodGet, "/api/v1/search/posts?q=100%25", "", nil)
	expectStatus(t, w, http.StatusOK)
	if feed := decode[models.FeedResponse](t, w); len(feed.Posts) != 1 || feed.Total != 1 {
		t.Errorf("%% should match literally, got %d posts", len(feed.Posts))
	}
	expectStatus(t, api.request(http.MethodGet, "/api/v1/search/posts", "", nil), http.StatusBadRequest)

	w = api.request(http.MethodGet, "/api/v1/search/hashtags/sale", "", nil)
	expectStatus(t, w, http.StatusOK)
	if feed := decode[models.FeedResponse](t, w); len(feed.Posts) != 2 {
		t.Errorf("expected two #sale posts, got %d", len(feed.Posts))
	}

	w = api.request(http.MethodGet, "/api/v1/search/trending", "", nil)
	expectStatus(t, w, http.StatusOK)
	trending := decode[struct {
		Hashtags []utils.HashtagCount `json:"hashtags"`
	}](t, w).Hashtags
	if len(trending) != 2 {
		t.Fatalf("expected two trending hashtags, got %+v", trending)
	}
	for _, h := range trending {
		if h.Count != 2 {
			t.Errorf("hashtag %s counted %d times, want 2", h.Hashtag, h.Count)
		}
	}

	createPost(t, api, ana, "#weekend again")
	w = api.request(http.MethodGet, "/api/v1/search/trending", "", nil)
	trending = decode[struct {
		Hashtags []utils.HashtagCount `json:"hashtags"`
	}](t, w).Hashtags
	if len(trending) == 0 || trending[0].Hashtag != "weekend" || trending[0].Count != 3 {
		t.Errorf("new posts should refresh trending, got %+v", trending)
	}
}
