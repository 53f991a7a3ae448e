package controllers_test

import (
	"net/http"
	"strings"
	"testing"

	"klik-api/models"
)

func createPost(t *testing.T, api *testAPI, token, content string) models.PostView {
	t.Helper()
	w := api.request(http.MethodPost, "/api/v1/posts", token, map[string]string{"content": content})
	expectStatus(t, w, http.StatusCreated)
	return decode[models.PostView](t, w)
}

func feedIDs(t *testing.T, api *testAPI, token, query string) []string {
	t.Helper()
	w := api.request(http.MethodGet, "/api/v1/posts"+query, token, nil)
	expectStatus(t, w, http.StatusOK)
	feed := decode[models.FeedResponse](t, w)
	ids := make([]string, 0, len(feed.Posts))
	for _, p := range feed.Posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestCreatePostExtractsHashtagsAndMentions(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	api.user("u2", "bruno")

	post := createPost(t, api, ana, "Sunset walk with @Bruno and @ghost #Sunset #walk")
	if post.Author.Username != "ana" || !post.IsOwner {
		t.Errorf("unexpected author block %+v", post.Author)
	}
	if len(post.Hashtags) != 2 || post.Hashtags[0] != "sunset" || post.Hashtags[1] != "walk" {
		t.Errorf("unexpected hashtags %v", post.Hashtags)
	}

	if n := api.count(&models.Notification{}, "user_id = ? AND type = ?", "u2", models.NotificationTypeMention); n != 1 {
		t.Errorf("expected one mention notification for bruno, got %d", n)
	}

	var profile models.Profile
	api.db.First(&profile, "id = ?", "u1")
	if profile.PostsCount != 1 {
		t.Errorf("posts_count = %d, want 1", profile.PostsCount)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts", ana, map[string]string{
		"content": strings.Repeat("x", 501),
	}), http.StatusBadRequest)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts", ana, map[string]string{
		"content": "   ",
	}), http.StatusBadRequest)
}

func TestCreatePostWithImage(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")

	w := api.multipart("/api/v1/posts", ana, map[string]string{"content": "look"}, pngImage(t, 20, 20))
	expectStatus(t, w, http.StatusCreated)
	post := decode[models.PostView](t, w)
	if post.ImageURL == nil || !strings.Contains(*post.ImageURL, "/posts/u1/") {
		t.Fatalf("expected stored image url, got %v", post.ImageURL)
	}
	if api.store.Len() != 1 {
		t.Fatalf("expected one stored object, got %d", api.store.Len())
	}

	expectStatus(t, api.request(http.MethodDelete, "/api/v1/posts/"+post.ID, ana, nil), http.StatusOK)
	if api.store.Len() != 0 {
		t.Error("deleting the post should remove its image")
	}
}

func TestFeedTabsAndBlocks(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	carla := api.user("u3", "carla")

	pa := createPost(t, api, ana, "from ana")
	pb := createPost(t, api, bruno, "from bruno")
	pc := createPost(t, api, carla, "from carla")

	if ids := feedIDs(t, api, ana, ""); len(ids) != 3 || ids[0] != pc.ID {
		t.Errorf("for-you should list every post newest first, got %v", ids)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/follows/u2", ana, nil), http.StatusOK)
	ids := feedIDs(t, api, ana, "?tab=following")
	if len(ids) != 2 || ids[0] != pb.ID || ids[1] != pa.ID {
		t.Errorf("following feed should hold own and followed posts, got %v", ids)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/blocks/u1", carla, nil), http.StatusOK)
	for _, id := range feedIDs(t, api, ana, "") {
		if id == pc.ID {
			t.Error("posts of users who blocked the viewer must be hidden")
		}
	}
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+pc.ID+"/like", ana, nil), http.StatusForbidden)
}

func TestListFeed(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	api.user("u3", "carla")

	pb := createPost(t, api, bruno, "from bruno")

	w := api.request(http.MethodPost, "/api/v1/lists", ana, map[string]string{"name": "Designers"})
	expectStatus(t, w, http.StatusCreated)
	list := decode[models.UserListWithCount](t, w)

	if ids := feedIDs(t, api, ana, "?list="+list.ID); len(ids) != 0 {
		t.Errorf("empty list should give an empty feed, got %v", ids)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/lists/"+list.ID+"/members", ana, map[string]string{"user_id": "u2"}), http.StatusCreated)
	if ids := feedIDs(t, api, ana, "?list="+list.ID); len(ids) != 1 || ids[0] != pb.ID {
		t.Errorf("list feed should hold bruno's post, got %v", ids)
	}

	expectStatus(t, api.request(http.MethodGet, "/api/v1/posts?list="+list.ID, bruno, nil), http.StatusNotFound)
}

func TestFeedReportsDatabaseErrors(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	api.user("u2", "bruno")

	w := api.request(http.MethodPost, "/api/v1/lists", ana, map[string]string{"name": "Friends"})
	expectStatus(t, w, http.StatusCreated)
	list := decode[models.UserListWithCount](t, w)

	if err := api.db.Migrator().DropTable(&models.UserListMember{}, &models.Follow{}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, api.request(http.MethodGet, "/api/v1/posts?list="+list.ID, ana, nil), http.StatusInternalServerError)
	expectStatus(t, api.request(http.MethodGet, "/api/v1/posts?tab=following", ana, nil), http.StatusInternalServerError)
}

func TestBlockLookupErrorsAreNotIgnored(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")

	post := createPost(t, api, ana, "hello")
	comment := createComment(t, api, ana, post.ID, "first", nil)

	if err := api.db.Migrator().DropTable(&models.BlockedUser{}); err != nil {
		t.Fatal(err)
	}
	expectStatus(t, api.request(http.MethodGet, "/api/v1/posts/"+post.ID, bruno, nil), http.StatusInternalServerError)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", bruno, map[string]string{"content": "hi"}), http.StatusInternalServerError)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/comments/"+comment.ID+"/like", bruno, nil), http.StatusInternalServerError)

	if n := api.count(&models.Comment{}, "1 = 1"); n != 1 {
		t.Errorf("no comment should be created when the block check fails, got %d", n)
	}
}

func TestLikeIsIdempotent(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	post := createPost(t, api, ana, "like me")

	type likeBody struct {
		IsLiked    bool `json:"is_liked"`
		LikesCount int  `json:"likes_count"`
	}

	for i := 0; i < 2; i++ {
		w := api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/like", bruno, nil)
		expectStatus(t, w, http.StatusOK)
		if b := decode[likeBody](t, w); !b.IsLiked || b.LikesCount != 1 {
			t.Errorf("like %d: unexpected %+v", i, b)
		}
	}
	if n := api.count(&models.Notification{}, "user_id = ? AND type = ?", "u1", models.NotificationTypeLike); n != 1 {
		t.Errorf("expected one like notification, got %d", n)
	}

	w := api.request(http.MethodGet, "/api/v1/posts/"+post.ID, bruno, nil)
	expectStatus(t, w, http.StatusOK)
	if view := decode[models.PostView](t, w); !view.IsLiked || view.IsOwner {
		t.Errorf("unexpected viewer state %+v", view)
	}

	for i := 0; i < 2; i++ {
		w := api.request(http.MethodDelete, "/api/v1/posts/"+post.ID+"/like", bruno, nil)
		expectStatus(t, w, http.StatusOK)
		if b := decode[likeBody](t, w); b.IsLiked || b.LikesCount != 0 {
			t.Errorf("unlike %d: unexpected %+v", i, b)
		}
	}

	// Liking your own post is fine but never notifies.
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/like", ana, nil), http.StatusOK)
	if n := api.count(&models.Notification{}, "actor_id = ? AND user_id = ?", "u1", "u1"); n != 0 {
		t.Errorf("self notifications must not be created, got %d", n)
	}
}

func TestSaveAndShare(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	post := createPost(t, api, ana, "save me")

	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/save", bruno, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/save", bruno, nil), http.StatusOK)

	w := api.request(http.MethodGet, "/api/v1/posts/saved", bruno, nil)
	expectStatus(t, w, http.StatusOK)
	saved := decode[models.FeedResponse](t, w)
	if len(saved.Posts) != 1 || !saved.Posts[0].IsSaved || saved.Total != 1 {
		t.Errorf("unexpected saved posts %+v", saved)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/share", bruno, map[string]string{"share_type": "carrier-pigeon"}), http.StatusBadRequest)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/share", bruno, map[string]string{"share_type": "repost"}), http.StatusOK)
	if n := api.count(&models.PostShare{}, "post_id = ? AND share_type = ?", post.ID, "repost"); n != 1 {
		t.Errorf("expected one recorded share, got %d", n)
	}
	if n := api.count(&models.Notification{}, "user_id = ? AND type = ?", "u1", models.NotificationTypeShare); n != 1 {
		t.Errorf("expected a share notification, got %d", n)
	}

	expectStatus(t, api.request(http.MethodDelete, "/api/v1/posts/"+post.ID+"/save", bruno, nil), http.StatusOK)
	saved = decode[models.FeedResponse](t, api.request(http.MethodGet, "/api/v1/posts/saved", bruno, nil))
	if len(saved.Posts) != 0 {
		t.Errorf("unsaved post still listed: %+v", saved.Posts)
	}
}

func TestUpdateAndDeletePost(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	post := createPost(t, api, ana, "first draft")

	expectStatus(t, api.request(http.MethodPut, "/api/v1/posts/"+post.ID, bruno, map[string]string{"content": "hijack"}), http.StatusNotFound)

	w := api.request(http.MethodPut, "/api/v1/posts/"+post.ID, ana, map[string]string{"content": "final #done"})
	expectStatus(t, w, http.StatusOK)
	updated := decode[models.PostView](t, w)
	if updated.Content != "final #done" || updated.EditedAt == nil || len(updated.Hashtags) != 1 {
		t.Errorf("unexpected updated post %+v", updated.Post)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/like", bruno, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", bruno, map[string]string{"content": "nice"}), http.StatusCreated)

	expectStatus(t, api.request(http.MethodDelete, "/api/v1/posts/"+post.ID, bruno, nil), http.StatusNotFound)
	expectStatus(t, api.request(http.MethodDelete, "/api/v1/posts/"+post.ID, ana, nil), http.StatusOK)

	for name, model := range map[string]interface{}{
		"likes":    &models.Like{},
		"comments": &models.Comment{},
	} {
		if n := api.count(model, "post_id = ?", post.ID); n != 0 {
			t.Errorf("%s should be removed with the post, %d left", name, n)
		}
	}
	if n := api.count(&models.Notification{}, "post_id = ?", post.ID); n != 0 {
		t.Errorf("notifications should be removed with the post, %d left", n)
	}
	expectStatus(t, api.request(http.MethodGet, "/api/v1/posts/"+post.ID, ana, nil), http.StatusNotFound)
}
