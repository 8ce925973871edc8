package analytics

import (
	"context"

	"github.com/ignite/warmlane/internal/domain"
)

// SummaryDelta carries the non-zero counter increments for one write.
// UniqueOpens/UniqueClicks are only set when the caller has already
// determined this is the recipient's first open/click (§4.6, §4.10).
type SummaryDelta struct {
	Sent         int
	Delivered    int
	Failed       int
	Bounced      int
	Opened       int
	UniqueOpens  int
	Clicked      int
	UniqueClicks int
}

// Repository is the Analytics Aggregator's storage contract. Every
// increment method is an atomic partial update — push-if-absent for the
// domain/sender buckets — so concurrent workers and webhook deliveries
// never clobber each other's counts (§4.10, §5).
type Repository interface {
	// Get loads the full DailyAnalytics doc for a campaign-day. Returns
	// ErrNotFound if it has never been written.
	Get(ctx context.Context, campaignID string, day int) (*domain.DailyAnalytics, error)

	// EnsureExists upserts the 24-hour skeleton for a campaign-day if it
	// does not already exist (§4.10 "upsert with the 24-hour skeleton
	// pre-filled").
	EnsureExists(ctx context.Context, campaignID string, day int) error

	// IncrementSummary atomically applies delta to summary.* (§4.10).
	IncrementSummary(ctx context.Context, campaignID string, day int, delta SummaryDelta) error

	// IncrementHourly atomically applies delta to hourlyBreakdown[hour].*.
	IncrementHourly(ctx context.Context, campaignID string, day, hour int, delta SummaryDelta) error

	// IncrementDomain atomically applies delta to domainBreakdown[domain].*,
	// pushing a new bucket if this domain hasn't been seen yet for this day.
	IncrementDomain(ctx context.Context, campaignID string, day int, recipientDomain string, delta SummaryDelta) error

	// IncrementSender atomically applies delta to senderBreakdown[sender].*,
	// pushing a new bucket if this sender hasn't been seen yet for this day.
	IncrementSender(ctx context.Context, campaignID string, day int, senderEmail string, delta SummaryDelta) error

	// PutRates atomically overwrites the recomputed rates (§4.10 "on write,
	// recompute rates").
	PutRates(ctx context.Context, campaignID string, day int, rates domain.AnalyticsRates) error
}

// SentEmailSource supplies the per-day SentEmail rows that back
// getRealtimeStats (§4.10). internal/service/message.Service satisfies it.
type SentEmailSource interface {
	ListByCampaignDay(ctx context.Context, campaignID string, day int) ([]domain.SentEmail, error)
}
