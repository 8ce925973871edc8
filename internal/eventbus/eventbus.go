// Package eventbus provides the EventBus abstraction (§1, §4.5): a
// fire-and-forget channel for real-time UI push, named-event payloads
// published as processEmailJob and the Event Ingestor drive campaign
// state (`email_sent`, `email_failed`). The UI-facing consumption side is
// an external collaborator (§1 Non-goals); this package only owns the
// publish side.
package eventbus

import "context"

// Event is one named, campaign-scoped notification pushed for real-time
// UI consumption (§4.5 steps 6-7: "push EventBus email_sent"/"email_failed").
type Event struct {
	Name       string                 `json:"name"`
	CampaignID string                 `json:"campaign_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Bus publishes events. Implementations must be safe for concurrent use
// and must not block the caller on a slow or absent subscriber.
type Bus interface {
	Publish(ctx context.Context, evt Event)
}
