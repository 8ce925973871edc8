package domain

import "time"

// SuppressionReason enumerates why an email was suppressed.
type SuppressionReason string

// This module's only producer is the Event Ingestor's SES/SNS webhook
// (§4.6), so the reason/source sets are trimmed to what that webhook and
// a manual/administrative suppression can actually report — no PMTA
// bounce feed or feedback-loop report ever reaches this service.
const (
	ReasonHardBounce  SuppressionReason = "hard_bounce"
	ReasonSoftBounce  SuppressionReason = "soft_bounce"
	ReasonComplaint   SuppressionReason = "spam_complaint"
	ReasonUnsubscribe SuppressionReason = "unsubscribe"
	ReasonInactive    SuppressionReason = "inactive"
	ReasonManual      SuppressionReason = "manual"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceESPWebhook SuppressionSource = "esp_webhook"
	SourceTracking   SuppressionSource = "tracking_unsubscribe"
	SourceManual     SuppressionSource = "manual"
	SourceImport     SuppressionSource = "import"
)

// Suppression represents a single entry in the global suppression list.
type Suppression struct {
	ID         string            `json:"id" db:"id"`
	Email      string            `json:"email" db:"email"`
	Reason     SuppressionReason `json:"reason" db:"reason"`
	Source     SuppressionSource `json:"source" db:"source"`
	CampaignID string            `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}
