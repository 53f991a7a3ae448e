// Package realtime delivers row-level change events (insert, update, delete)
// to subscribers of named channels such as "conversation:<id>" or "user:<id>".
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

type Event struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Table   string          `json:"table"`
	Type    EventType       `json:"type"`
	RowID   string          `json:"row_id"`
	Payload json.RawMessage `json:"payload"`
	Origin  string          `json:"origin,omitempty"`
	At      time.Time       `json:"at"`
}

// Bridge forwards locally published events to other API instances.
type Bridge interface {
	Forward(ctx context.Context, ev Event) error
}

func ConversationChannel(conversationID string) string {
	return "conversation:" + conversationID
}

func UserChannel(userID string) string {
	return "user:" + userID
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Event
	nextID uint64
	buffer int

	instanceID string
	bridge     Bridge
	seen       *recentIDs

	dropped atomic.Uint64
}

// NewHub creates a hub whose subscribers buffer up to buffer events. Events
// published to a full subscriber are dropped for that subscriber only.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:       make(map[string]map[uint64]chan Event),
		buffer:     buffer,
		instanceID: uuid.NewString(),
		seen:       newRecentIDs(4096),
	}
}

func (h *Hub) InstanceID() string {
	return h.instanceID
}

// SetBridge attaches a cross-instance bridge. It must be called before the hub
// starts publishing.
func (h *Hub) SetBridge(b Bridge) {
	h.mu.Lock()
	h.bridge = b
	h.mu.Unlock()
}

type Subscription struct {
	C <-chan Event

	hub     *Hub
	channel string
	id      uint64
	once    sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s.channel, s.id)
	})
}

func (h *Hub) Subscribe(channel string) *Subscription {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[uint64]chan Event)
	}
	h.subs[channel][id] = ch
	h.mu.Unlock()

	return &Subscription{C: ch, hub: h, channel: channel, id: id}
}

func (h *Hub) unsubscribe(channel string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[channel]
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(h.subs, channel)
	}
}

// Subscribers reports the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Publish wraps payload in an event, delivers it to local subscribers and
// forwards it through the bridge when one is attached. Bridge failures are
// logged; local delivery has already happened by then.
func (h *Hub) Publish(ctx context.Context, channel, table string, typ EventType, rowID string, payload interface{}) (Event, error) {
	return h.PublishAt(ctx, channel, table, typ, rowID, payload, time.Now())
}

// PublishAt is Publish with the event time set to at. Row events use the
// row's own timestamp so the SSE id matches the replay cursor.
func (h *Hub) PublishAt(ctx context.Context, channel, table string, typ EventType, rowID string, payload interface{}, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s event: %w", table, err)
	}

	ev := Event{
		ID:      uuid.NewString(),
		Channel: channel,
		Table:   table,
		Type:    typ,
		RowID:   rowID,
		Payload: data,
		Origin:  h.instanceID,
		At:      at.UTC(),
	}

	h.Deliver(ev)

	h.mu.RLock()
	bridge := h.bridge
	h.mu.RUnlock()
	if bridge != nil {
		if err := bridge.Forward(ctx, ev); err != nil {
			slog.Warn("failed to forward realtime event", "channel", channel, "error", err)
		}
	}

	return ev, nil
}

// Deliver hands ev to every local subscriber of its channel without blocking.
// An event id is delivered at most once per hub.
func (h *Hub) Deliver(ev Event) {
	if !h.seen.add(ev.ID) {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.Channel] {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// recentIDs remembers the last n event ids.
type recentIDs struct {
	mu    sync.Mutex
	set   map[string]struct{}
	ring  []string
	next  int
	limit int
}

func newRecentIDs(limit int) *recentIDs {
	return &recentIDs{
		set:   make(map[string]struct{}, limit),
		ring:  make([]string, limit),
		limit: limit,
	}
}

// add records id and reports whether it was new.
func (r *recentIDs) add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.set, old)
	}
	r.ring[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % r.limit
	return true
}
