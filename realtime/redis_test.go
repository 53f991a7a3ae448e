package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisBridgeRelaysBetweenHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newNode := func() *Hub {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		hub := NewHub(8)
		bridge := NewRedisBridge(client, hub)
		if err := bridge.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		hub.SetBridge(bridge)
		return hub
	}

	a := newNode()
	b := newNode()

	subA := a.Subscribe("conversation:c1")
	defer subA.Close()
	subB := b.Subscribe("conversation:c1")
	defer subB.Close()

	ev, err := a.Publish(ctx, "conversation:c1", "messages", EventInsert, "m1", map[string]string{"id": "m1"})
	if err != nil {
		t.Fatal(err)
	}

	if got := receive(t, subA); got.ID != ev.ID {
		t.Errorf("local subscriber got %s, want %s", got.ID, ev.ID)
	}
	if got := receive(t, subB); got.ID != ev.ID {
		t.Errorf("remote subscriber got %s, want %s", got.ID, ev.ID)
	}

	// The publishing node must not receive its own echo a second time.
	select {
	case dup := <-subA.C:
		t.Errorf("unexpected echo %+v", dup)
	case <-time.After(200 * time.Millisecond):
	}
}
