package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisBusPublishDeliversToSubscriber(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	bus := NewRedisBus(client, "test:events:")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "test:events:camp-1")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("failed to confirm subscription: %v", err)
	}

	bus.Publish(ctx, Event{Name: "email_sent", CampaignID: "camp-1", Payload: map[string]interface{}{"recipient": "a@example.com"}})

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("expected a published message, got error: %v", err)
	}

	var evt Event
	if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
		t.Fatalf("failed to unmarshal published event: %v", err)
	}
	if evt.Name != "email_sent" || evt.CampaignID != "camp-1" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestRedisBusChannelNamespacesByPrefix(t *testing.T) {
	bus := NewRedisBus(nil, "")
	if got := bus.channel("camp-2"); got != "warmlane:events:camp-2" {
		t.Errorf("expected default prefix applied, got %q", got)
	}
}
