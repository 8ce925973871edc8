package domain

import "time"

// EmailJobPayload is the unit of work pushed to the Delivery Queue by the
// scheduling pipeline (§4.4). One payload corresponds to exactly one
// (campaign, recipient, day) cell of a DailyPlan.
type EmailJobPayload struct {
	CampaignID   string            `json:"campaign_id"`
	Recipient    RecipientRef      `json:"recipient"`
	Sender       SenderRef         `json:"sender"`
	TemplateName string            `json:"template_name"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Metadata     SentEmailMetadata `json:"metadata"`
	ScheduledFor time.Time         `json:"scheduled_for"`
}
