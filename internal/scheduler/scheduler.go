// Package scheduler implements the Day Transition Scheduler (§4.9): a
// single process-wide daily ticker, plus an on-startup catch-up call,
// that advances every running campaign's plan day or completes it when
// its recipient pool is exhausted.
package scheduler

import (
	"context"
	"time"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/pkg/logger"
)

// CampaignController is the Orchestrator seam the scheduler drives.
type CampaignController interface {
	ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error)
	AdvanceDay(ctx context.Context, id string, newDay int) error
	Complete(ctx context.Context, id string) error
}

// EligibilityChecker resolves a campaign's remaining eligible recipients,
// the Day Transition Scheduler's completion gate (§4.2, §4.9 step 2).
// internal/recipients.Pool satisfies it.
type EligibilityChecker interface {
	Eligible(ctx context.Context, campaign *domain.Campaign) ([]string, error)
}

// Scheduler fires the daily UTC day-transition sweep.
type Scheduler struct {
	campaigns CampaignController
	pool      EligibilityChecker
	now       func() time.Time
}

// New builds a Day Transition Scheduler.
func New(campaigns CampaignController, pool EligibilityChecker) *Scheduler {
	return &Scheduler{campaigns: campaigns, pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Run blocks until ctx is cancelled, performing an immediate catch-up
// sweep and then one sweep every day at 00:00 UTC (§4.9).
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	for {
		wait := untilNextMidnightUTC(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

// untilNextMidnightUTC returns the duration from now until the next
// 00:00 UTC boundary.
func untilNextMidnightUTC(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next.Sub(now)
}

// sweep visits every running campaign once. One campaign's failure never
// blocks another's (§4.9: "Failure to transition one campaign must not
// block others").
func (s *Scheduler) sweep(ctx context.Context) {
	campaigns, err := s.campaigns.ListByStatus(ctx, domain.CampaignRunning)
	if err != nil {
		logger.Error("day scheduler: list running campaigns failed", "error", err.Error())
		return
	}

	now := s.now()
	for i := range campaigns {
		c := campaigns[i]
		if err := s.transitionOne(ctx, &c, now); err != nil {
			logger.Error("day scheduler: transition failed", "campaign_id", c.ID, "error", err.Error())
		}
	}
}

// transitionOne applies §4.9 steps 1-5 to a single campaign.
func (s *Scheduler) transitionOne(ctx context.Context, c *domain.Campaign, now time.Time) error {
	startedDay, err := time.Parse("2006-01-02", c.Progress.StartedOnUTCDay)
	if err != nil {
		return err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysPassed := int(today.Sub(startedDay).Hours() / 24)
	newDay := daysPassed + 1

	if newDay == c.Progress.CurrentDay {
		return nil
	}

	eligible, err := s.pool.Eligible(ctx, c)
	if err != nil {
		return err
	}
	if !c.Configuration.WarmupMode.Enabled && len(eligible) == 0 {
		return s.campaigns.Complete(ctx, c.ID)
	}

	return s.campaigns.AdvanceDay(ctx, c.ID, newDay)
}
