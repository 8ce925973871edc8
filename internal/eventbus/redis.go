package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmlane/internal/pkg/logger"
)

// RedisBus is the reference EventBus, publishing to a per-campaign Redis
// Pub/Sub channel so a UI gateway process can subscribe without this
// module knowing anything about websockets or SSE. Grounded on the
// teacher's internal/tracking/publisher.go fire-and-forget Publish
// shape, generalized from its SQS queue client to go-redis Pub/Sub (the
// transport this codebase already depends on throughout queue/ratelimit/
// distlock) since SQS has no notion of "whoever's currently listening".
type RedisBus struct {
	client *redis.Client
	prefix string
}

// NewRedisBus builds a RedisBus over an existing client. prefix
// namespaces channel names (recommended "warmlane:events:").
func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	if prefix == "" {
		prefix = "warmlane:events:"
	}
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) channel(campaignID string) string {
	return b.prefix + campaignID
}

// Publish marshals evt and publishes it, fire-and-forget: a publish
// failure is logged, never returned, since no caller's correctness
// depends on a UI update actually landing (§1: EventBus is an external
// collaborator specified only at its interface).
func (b *RedisBus) Publish(ctx context.Context, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Error("eventbus: marshal event failed", "event", evt.Name, "error", err.Error())
		return
	}

	go func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := b.client.Publish(publishCtx, b.channel(evt.CampaignID), data).Err(); err != nil {
			logger.Error("eventbus: publish failed", "event", evt.Name, "campaign_id", evt.CampaignID, "error", err.Error())
		}
	}()
}
