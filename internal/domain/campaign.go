package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
//
// The happy path is draft -> running -> paused -> running -> completed.
// Any running or paused campaign may transition to failed on an
// unrecoverable error.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
)

// EmailListSource selects where the Recipient Pool reads its CSV from.
type EmailListSource string

const (
	ListSourceGlobal EmailListSource = "global"
	ListSourceCustom EmailListSource = "custom"
)

// SenderEmail is one configured sending identity within a domain.
type SenderEmail struct {
	Email  string `json:"email"`
	Domain string `json:"domain"`
	Active bool   `json:"active"`
}

// WarmupMode toggles the dedup scope: campaign-local when enabled (§4.2),
// global suppression across all campaigns otherwise. currentIndex tracks
// the windowing cursor into the eligible recipient list (§4.2 windowing).
type WarmupMode struct {
	Enabled      bool `json:"enabled"`
	CurrentIndex int  `json:"current_index"`
}

// Configuration is the immutable-while-running campaign configuration
// (§3). Mutations are rejected by the orchestrator while status=running.
type Configuration struct {
	Domains                []string          `json:"domains"`
	SenderEmails            []SenderEmail     `json:"sender_emails"`
	BaseDailyTotal          int               `json:"base_daily_total"`
	TargetSum               int               `json:"target_sum"`
	QuotaDays               int               `json:"quota_days"`
	MaxEmailPercentage      float64           `json:"max_email_percentage"`
	RandomizationIntensity  float64           `json:"randomization_intensity"`
	EmailListSource         EmailListSource   `json:"email_list_source"`
	CustomEmailListID       string            `json:"custom_email_list_id,omitempty"`
	WarmupMode              WarmupMode        `json:"warmup_mode"`
	TemplateData            map[string]string `json:"template_data,omitempty"`
}

// Progress is the campaign's mutable, atomically-updated running state.
type Progress struct {
	CurrentDay           int        `json:"current_day"`
	StartedOnUTCDay       string     `json:"started_on_utc_day,omitempty"`
	LastDayTransitionAt   *time.Time `json:"last_day_transition_at,omitempty"`
	TotalSent             int        `json:"total_sent"`
	TotalDelivered         int        `json:"total_delivered"`
	TotalFailed            int        `json:"total_failed"`
	TotalBounced           int        `json:"total_bounced"`
	TotalOpened            int        `json:"total_opened"`
	TotalClicked           int        `json:"total_clicked"`
	TotalUnsubscribed      int        `json:"total_unsubscribed"`
	LastSentAt             *time.Time `json:"last_sent_at,omitempty"`
}

// Plan is the campaign's append-only history of generated daily plans
// plus the rolling recipient-pool stats used to render them.
type Plan struct {
	TotalRecipients int              `json:"total_recipients"`
	EmailListStats  map[string]int   `json:"email_list_stats,omitempty"`
	DailyPlans      []DailyPlan      `json:"daily_plans"`
}

// Campaign is the persistent entity owned exclusively by the Campaign
// Store (§4.8). templateNames is an ordered set; one element is chosen
// uniformly at random per message (§4.4).
type Campaign struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	TemplateNames []string       `json:"template_names"`
	Status        CampaignStatus `json:"status"`
	CreatedBy     string         `json:"created_by"`

	Configuration Configuration `json:"configuration"`
	Progress      Progress      `json:"progress"`
	Plan          Plan          `json:"plan"`

	StartedAt    *time.Time `json:"started_at,omitempty"`
	PausedAt     *time.Time `json:"paused_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed
}

// IsActive returns true if the orchestrator still owns in-flight work for
// this campaign (running or paused, as opposed to draft/completed/failed).
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignRunning || c.Status == CampaignPaused
}
