package controllers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"klik-api/models"
	"klik-api/realtime"
)

type sseMessage struct {
	id    string
	event string
	data  string
}

// openStream connects to the realtime endpoint and returns the parsed events.
func openStream(t *testing.T, api *testAPI, token, query string, header http.Header) <-chan sseMessage {
	t.Helper()

	srv := httptest.NewServer(api.router)
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/realtime/stream?"+query, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream returned %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	out := make(chan sseMessage, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(resp.Body)
		var msg sseMessage
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if msg.event != "" || msg.data != "" {
					out <- msg
				}
				msg = sseMessage{}
			case strings.HasPrefix(line, "id:"):
				msg.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			case strings.HasPrefix(line, "event:"):
				msg.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				msg.data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		resp.Body.Close()
		srv.Close()
	})
	return out
}

func nextEvent(t *testing.T, events <-chan sseMessage) sseMessage {
	t.Helper()
	select {
	case msg, ok := <-events:
		if !ok {
			t.Fatal("stream closed")
		}
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return sseMessage{}
}

func decodeEvent(t *testing.T, msg sseMessage) realtime.Event {
	t.Helper()
	var ev realtime.Event
	if err := json.Unmarshal([]byte(msg.data), &ev); err != nil {
		t.Fatalf("bad event payload %q: %v", msg.data, err)
	}
	return ev
}

func TestStreamRejectsForeignChannels(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	api.user("u2", "bruno")
	carla := api.user("u3", "carla")

	conv := decode[startResponse](t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"})).Conversation

	expectStatus(t, api.request(http.MethodGet, "/api/v1/realtime/stream?channel=user:u2", ana, nil), http.StatusForbidden)
	expectStatus(t, api.request(http.MethodGet, "/api/v1/realtime/stream?channel=conversation:"+conv.ID, carla, nil), http.StatusForbidden)
	expectStatus(t, api.request(http.MethodGet, "/api/v1/realtime/stream?channel=posts", ana, nil), http.StatusBadRequest)
	expectStatus(t, api.request(http.MethodGet, "/api/v1/realtime/stream?channel=user:u1", "", nil), http.StatusUnauthorized)
}

func TestStreamDeliversNotifications(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")

	events := openStream(t, api, ana, "channel=user:u1", nil)
	if ready := nextEvent(t, events); ready.event != "ready" {
		t.Fatalf("expected ready event first, got %+v", ready)
	}

	expectStatus(t, api.request(http.MethodPost, "/api/v1/follows/u1", bruno, nil), http.StatusOK)

	msg := nextEvent(t, events)
	if msg.event != "insert" || msg.id == "" {
		t.Fatalf("unexpected event %+v", msg)
	}
	ev := decodeEvent(t, msg)
	if ev.Table != "notifications" || ev.Channel != "user:u1" {
		t.Errorf("unexpected event %+v", ev)
	}
	var payload struct {
		Type  string `json:"type"`
		Actor struct {
			Username string `json:"username"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Type != "follow" || payload.Actor.Username != "bruno" {
		t.Errorf("unexpected notification payload %+v", payload)
	}
}

func TestStreamReplaysMissedMessages(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")

	conv := decode[startResponse](t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"})).Conversation
	base := "/api/v1/conversations/" + conv.ID + "/messages"
	before := time.Now().Add(-time.Second)
	expectStatus(t, api.request(http.MethodPost, base, ana, map[string]string{"content": "sent while offline"}), http.StatusCreated)

	query := "channel=" + url.QueryEscape("conversation:"+conv.ID) + "&since=" + url.QueryEscape(before.Format(time.RFC3339Nano))
	events := openStream(t, api, bruno, query, nil)

	missed := nextEvent(t, events)
	if missed.event != "insert" {
		t.Fatalf("expected replayed message, got %+v", missed)
	}
	if ev := decodeEvent(t, missed); ev.Table != "messages" || !strings.Contains(string(ev.Payload), "sent while offline") {
		t.Errorf("unexpected replayed event %+v", ev)
	}
	if ready := nextEvent(t, events); ready.event != "ready" {
		t.Fatalf("expected ready after backlog, got %+v", ready)
	}

	expectStatus(t, api.request(http.MethodPost, base, ana, map[string]string{"content": "live"}), http.StatusCreated)
	live := nextEvent(t, events)
	if ev := decodeEvent(t, live); ev.Table != "messages" || !strings.Contains(string(ev.Payload), "live") {
		t.Errorf("unexpected live event %+v", ev)
	}
}

func TestStreamResumesFromLiveEventID(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")
	bruno := api.user("u2", "bruno")

	conv := decode[startResponse](t, api.request(http.MethodPost, "/api/v1/conversations", ana, map[string]string{"user_id": "u2"})).Conversation
	channel := "channel=" + url.QueryEscape("conversation:"+conv.ID)

	live := openStream(t, api, bruno, channel, nil)
	if ready := nextEvent(t, live); ready.event != "ready" {
		t.Fatalf("expected ready event first, got %+v", ready)
	}
	expectStatus(t, api.request(http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", ana, map[string]string{"content": "first"}), http.StatusCreated)
	msg := nextEvent(t, live)

	var first models.Message
	if err := api.db.First(&first, "conversation_id = ?", conv.ID).Error; err != nil {
		t.Fatal(err)
	}
	if msg.id != first.CreatedAt.UTC().Format(time.RFC3339Nano) {
		t.Fatalf("event id %q should be the message created_at %v", msg.id, first.CreatedAt.UTC())
	}

	// Committed by another sender with a created_at just after first.
	late := models.Message{ID: "late", ConversationID: conv.ID, SenderID: "u1", Content: "late", CreatedAt: first.CreatedAt.Add(time.Microsecond)}
	if err := api.db.Create(&late).Error; err != nil {
		t.Fatal(err)
	}

	resumed := openStream(t, api, bruno, channel, http.Header{"Last-Event-Id": {msg.id}})
	replayed := nextEvent(t, resumed)
	if ev := decodeEvent(t, replayed); ev.RowID != "late" {
		t.Fatalf("expected the late message to be replayed, got %+v", ev)
	}
	if ready := nextEvent(t, resumed); ready.event != "ready" {
		t.Fatalf("expected ready after backlog, got %+v", ready)
	}
}

func TestStreamAcceptsQueryToken(t *testing.T) {
	api := newTestAPI(t)
	ana := api.user("u1", "ana")

	events := openStream(t, api, "", "channel=user:u1&access_token="+url.QueryEscape(ana), nil)
	if ready := nextEvent(t, events); ready.event != "ready" {
		t.Fatalf("expected ready event, got %+v", ready)
	}
}
