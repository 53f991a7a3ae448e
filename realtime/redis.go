package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const defaultTopic = "klik:realtime"

// RedisBridge shares hub events between API instances over Redis pub/sub.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	topic  string
}

func NewRedisBridge(client *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{client: client, hub: hub, topic: defaultTopic}
}

func (b *RedisBridge) Forward(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.client.Publish(ctx, b.topic, data).Err()
}

// Start subscribes to the shared topic and relays remote events into the hub
// until ctx is cancelled. It returns once the subscription is confirmed.
func (b *RedisBridge) Start(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.topic)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", b.topic, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping malformed realtime event", "error", err)
					continue
				}
				if ev.Origin == b.hub.InstanceID() {
					continue
				}
				b.hub.Deliver(ev)
			}
		}
	}()

	return nil
}
