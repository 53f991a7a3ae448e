package controllers_test

import (
	"net/http"
	"strings"
	"testing"

	"klik-api/models"
)

func TestListMembership(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")
	api.user("u3", "carla")

	expectStatus(t, api.request(http.MethodPost, "/api/v1/lists", ana, map[string]string{"name": "  "}), http.StatusBadRequest)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/lists", ana, map[string]string{"name": strings.Repeat("l", 101)}), http.StatusBadRequest)

	designers := decode[models.UserListWithCount](t, api.request(http.MethodPost, "/api/v1/lists", ana, map[string]string{"name": "Designers"}))
	friends := decode[models.UserListWithCount](t, api.request(http.MethodPost, "/api/v1/lists", ana, map[string]string{"name": "Friends"}))

	members := "/api/v1/lists/" + designers.ID + "/members"
	expectStatus(t, api.request(http.MethodPost, members, ana, map[string]string{"user_id": "u2"}), http.StatusCreated)
	expectStatus(t, api.request(http.MethodPost, members, ana, map[string]string{"user_id": "u3"}), http.StatusCreated)
	expectStatus(t, api.request(http.MethodPost, members, ana, map[string]string{"user_id": "u2"}), http.StatusConflict)
	expectStatus(t, api.request(http.MethodPost, members, ana, map[string]string{"user_id": "ghost"}), http.StatusNotFound)
	expectStatus(t, api.request(http.MethodPost, members, bruno, map[string]string{"user_id": "u3"}), http.StatusNotFound)
	expectStatus(t, api.request(http.MethodPost, "/api/v1/lists/"+friends.ID+"/members", ana, map[string]string{"user_id": "u2"}), http.StatusCreated)

	w := api.request(http.MethodGet, "/api/v1/lists", ana, nil)
	expectStatus(t, w, http.StatusOK)
	lists := decode[struct {
		Lists []models.UserListWithCount `json:"lists"`
	}](t, w).Lists
	counts := map[string]int64{}
	for _, l := range lists {
		counts[l.Name] = l.MemberCount
	}
	if len(lists) != 2 || counts["Designers"] != 2 || counts["Friends"] != 1 {
		t.Errorf("unexpected lists %+v", lists)
	}

	w = api.request(http.MethodGet, members, ana, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[struct {
		Members []models.ProfileSummary `json:"members"`
	}](t, w).Members; len(got) != 2 || got[0].Username != "bruno" {
		t.Errorf("unexpected members %+v", got)
	}
	expectStatus(t, api.request(http.MethodGet, members, bruno, nil), http.StatusNotFound)

	w = api.request(http.MethodGet, "/api/v1/lists/containing/u2", ana, nil)
	expectStatus(t, w, http.StatusOK)
	if ids := decode[struct {
		ListIDs []string `json:"list_ids"`
	}](t, w).ListIDs; len(ids) != 2 {
		t.Errorf("bruno should be in both lists, got %v", ids)
	}

	expectStatus(t, api.request(http.MethodDelete, members+"/u2", ana, nil), http.StatusOK)
	expectStatus(t, api.request(http.MethodDelete, members+"/u2", ana, nil), http.StatusNotFound)

	expectStatus(t, api.request(http.MethodDelete, "/api/v1/lists/"+designers.ID, bruno, nil), http.StatusNotFound)
	expectStatus(t, api.request(http.MethodDelete, "/api/v1/lists/"+designers.ID, ana, nil), http.StatusOK)
	if n := api.count(&models.UserListMember{}, "list_id = ?", designers.ID); n != 0 {
		t.Errorf("members of a deleted list should be removed, %d left", n)
	}
}
