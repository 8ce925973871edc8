package domain

import "time"

// ProviderEventType enumerates the raw event kinds a mail provider webhook
// delivers. Kept as a tagged variant rather than a dynamic map lookup
// (§9 Design Notes: "Dynamic types in events").
type ProviderEventType string

const (
	ProviderSend             ProviderEventType = "Send"
	ProviderDelivery         ProviderEventType = "Delivery"
	ProviderOpen              ProviderEventType = "Open"
	ProviderClick             ProviderEventType = "Click"
	ProviderBounce            ProviderEventType = "Bounce"
	ProviderComplaint         ProviderEventType = "Complaint"
	ProviderReject            ProviderEventType = "Reject"
	ProviderRenderingFailure  ProviderEventType = "Rendering Failure"
)

// StatusFor maps a raw provider event type to the SentEmail status it
// produces (§4.6). ok is false for unrecognized event types.
func (t ProviderEventType) StatusFor() (SentStatus, bool) {
	switch t {
	case ProviderSend:
		return SentSent, true
	case ProviderDelivery:
		return SentDelivered, true
	case ProviderOpen:
		return SentOpened, true
	case ProviderClick:
		return SentClicked, true
	case ProviderBounce:
		return SentBounced, true
	case ProviderComplaint, ProviderReject, ProviderRenderingFailure:
		return SentFailed, true
	default:
		return "", false
	}
}

// CampaignEvent is an append-only audit record of every provider event
// received for a campaign (§3). Never mutated or deleted.
type CampaignEvent struct {
	ID         string            `json:"id" dynamodbav:"id"`
	Campaign   string            `json:"campaign" dynamodbav:"campaign"`
	MessageID  string            `json:"message_id" dynamodbav:"message_id"`
	EventType  ProviderEventType `json:"event_type" dynamodbav:"event_type"`
	Timestamp  time.Time         `json:"timestamp" dynamodbav:"timestamp"`
	Recipient  string            `json:"recipient" dynamodbav:"recipient"`
	Details    string            `json:"details,omitempty" dynamodbav:"details,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty" dynamodbav:"user_agent,omitempty"`
	IPAddress  string            `json:"ip_address,omitempty" dynamodbav:"ip_address,omitempty"`
	Link       string            `json:"link,omitempty" dynamodbav:"link,omitempty"`
}
