package campaign

import (
	"context"
	"time"

	"github.com/ignite/warmlane/internal/domain"
)

// Repository is the Campaign Store's storage contract (§4.8). All mutating
// methods other than Create/Delete are atomic partial updates — `$inc`/
// `$set`/`$push` on `progress.*`, `plan.dailyPlans`, and
// `configuration.*` — never client-side read/modify/write, so concurrent
// workers and webhook events never clobber each other's counters (§5
// shared-resource policy).
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// ListByStatus returns every campaign in the given status, used by the
	// Day Transition Scheduler (§4.9) to find running campaigns.
	ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error)

	// Create inserts a new draft campaign.
	Create(ctx context.Context, c *domain.Campaign) error

	// Delete removes a campaign record. Callers must enforce the
	// running-campaign delete prohibition (§4.4); the store itself does
	// not reject it.
	Delete(ctx context.Context, id string) error

	// UpdateStatus atomically sets status plus whichever lifecycle
	// timestamp/error fields the transition carries (§4.4 state table).
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus, fields StatusFields) error

	// SetWarmupIndex atomically sets configuration.warmupMode.currentIndex,
	// the Recipient Pool windowing cursor (§4.2 windowing, §4.2 warm-up
	// exhaustion reset).
	SetWarmupIndex(ctx context.Context, id string, index int) error

	// AppendDailyPlan atomically pushes plan onto plan.dailyPlans and sets
	// the rolling plan.totalRecipients/plan.emailListStats (§4.3 step 5).
	AppendDailyPlan(ctx context.Context, id string, plan domain.DailyPlan, totalRecipients int, emailListStats map[string]int) error

	// AdvanceDay atomically sets progress.currentDay and
	// progress.lastDayTransitionAt (§4.9 step 4).
	AdvanceDay(ctx context.Context, id string, day int, at time.Time) error

	// IncrementProgress atomically applies delta's non-zero counters onto
	// progress.* (§4.5 steps 6-7, §4.6 campaign counters).
	IncrementProgress(ctx context.Context, id string, delta ProgressDelta) error
}

// StatusFields carries the side effects of one orchestrator transition
// (§4.4 state table "side effects" column). Pointer fields left nil are
// not touched; ClearPausedAt explicitly nulls pausedAt on resume.
type StatusFields struct {
	StartedAt       *time.Time
	StartedOnUTCDay string
	PausedAt        *time.Time
	ClearPausedAt   bool
	CompletedAt     *time.Time
	FailedAt        *time.Time
	ErrorMessage    string
}

// ProgressDelta is the set of atomic increments to apply to
// progress.total* counters in one call (§4.5 steps 6-7, §4.6). Zero
// fields are no-ops; LastSentAt, if set, overwrites progress.lastSentAt.
type ProgressDelta struct {
	Sent          int
	Delivered     int
	Failed        int
	Bounced       int
	Opened        int
	Clicked       int
	Unsubscribed  int
	LastSentAt    *time.Time
}
