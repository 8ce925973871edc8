package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/kernel"
	"github.com/ignite/warmlane/internal/pkg/distlock"
	"github.com/ignite/warmlane/internal/pkg/logger"
	"github.com/ignite/warmlane/internal/planner"
	"github.com/ignite/warmlane/internal/queue"
	"github.com/ignite/warmlane/internal/recipients"
	"github.com/ignite/warmlane/internal/templating"
)

// LockFactory builds the per-campaign distributed lock used to serialize
// orchestrator transitions (§4.4: "transitions require holding a
// per-campaign mutex; only one transition observed at a time"). Production
// wiring uses distlock.NewLock so the lock holds across process
// restarts/multiple orchestrator instances.
type LockFactory func(campaignID string) distlock.DistLock

// KernelFactory builds a fresh Randomization Kernel for one scheduling
// pipeline run. Production wiring seeds from entropy (§4.1); tests inject
// a fixed seed for reproducibility (§8 property 8).
type KernelFactory func() *kernel.Kernel

// Service is the Campaign Store's business layer and the Orchestrator
// (§4.4, §4.8): lifecycle transitions, the scheduling pipeline, and the
// atomic counter updates shared with the Event Ingestor (service/message)
// and the Delivery Queue worker pool.
type Service struct {
	repo      Repository
	deliverer queue.Queue
	pool      *recipients.Pool
	templater *templating.Substituter
	newKernel KernelFactory
	lockFor   LockFactory
	now       func() time.Time
}

// New builds the Orchestrator. lockFor and newKernel may be nil; sensible
// single-process defaults are substituted.
func New(repo Repository, deliverer queue.Queue, pool *recipients.Pool, templater *templating.Substituter, newKernel KernelFactory, lockFor LockFactory) *Service {
	if newKernel == nil {
		newKernel = func() *kernel.Kernel { return kernel.NewFromEntropy(time.Now().UnixNano()) }
	}
	if lockFor == nil {
		lockFor = func(string) distlock.DistLock { return noopLock{} }
	}
	return &Service{
		repo:      repo,
		deliverer: deliverer,
		pool:      pool,
		templater: templater,
		newKernel: newKernel,
		lockFor:   lockFor,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// noopLock is substituted when the caller supplies no LockFactory
// (single-process tests); it always succeeds.
type noopLock struct{}

func (noopLock) Acquire(context.Context) (bool, error) { return true, nil }
func (noopLock) Release(context.Context) error         { return nil }

// withLock runs fn while holding campaignID's transition lock (§4.4).
func (s *Service) withLock(ctx context.Context, campaignID string, fn func() error) error {
	lock := s.lockFor(campaignID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("campaign: acquire transition lock: %w", err)
	}
	if !acquired {
		return ErrLockHeld
	}
	defer lock.Release(ctx)
	return fn()
}

// Create inserts a new draft campaign (§3).
func (s *Service) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	c.Status = domain.CampaignDraft
	c.CreatedAt = now
	c.UpdatedAt = now
	return s.repo.Create(ctx, c)
}

// Get loads a campaign by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// ListByStatus returns every campaign in a given status (used by the Day
// Transition Scheduler, §4.9).
func (s *Service) ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	return s.repo.ListByStatus(ctx, status)
}

// Delete removes a campaign, rejecting the call while running (§4.4:
// "running, paused | delete | rejected while running").
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.withLock(ctx, id, func() error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Status == domain.CampaignRunning {
			return ErrDeleteWhileRunning
		}
		return s.repo.Delete(ctx, id)
	})
}

// Start transitions a draft campaign to running and launches the
// scheduling pipeline for day 1 (§4.4 row 1). Completed campaigns are
// never restarted by Start — the spec's "new day? no" annotation; resuming
// a paused campaign is Resume's job, not Start's (see package doc).
func (s *Service) Start(ctx context.Context, id string) error {
	err := s.withLock(ctx, id, func() error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != domain.CampaignDraft {
			return ErrInvalidTransition
		}

		now := s.now()
		if err := s.repo.UpdateStatus(ctx, id, domain.CampaignRunning, StatusFields{
			StartedAt:       &now,
			StartedOnUTCDay: utcDayString(now),
		}); err != nil {
			return err
		}
		if err := s.repo.AdvanceDay(ctx, id, 1, now); err != nil {
			return err
		}
		return s.deliverer.RemoveByCampaign(ctx, id)
	})
	if err != nil {
		return err
	}

	go s.runSchedulingPipeline(context.Background(), id, false)
	return nil
}

// Pause removes all waiting and delayed jobs for this campaign from the
// Delivery Queue (active jobs run to completion under the stale-job guard)
// and marks it paused (§4.4 row 2). The global worker pool
// and every other campaign's jobs are untouched.
func (s *Service) Pause(ctx context.Context, id string) error {
	return s.withLock(ctx, id, func() error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != domain.CampaignRunning {
			return ErrInvalidTransition
		}

		now := s.now()
		if err := s.repo.UpdateStatus(ctx, id, domain.CampaignPaused, StatusFields{PausedAt: &now}); err != nil {
			return err
		}
		return s.deliverer.RemoveByCampaign(ctx, id)
	})
}

// Resume transitions a paused campaign back to running, purges residual
// jobs, and re-invokes the scheduling pipeline reusing the current day's
// plan if one already exists (§4.4 row 3).
func (s *Service) Resume(ctx context.Context, id string) error {
	err := s.withLock(ctx, id, func() error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != domain.CampaignPaused {
			return ErrInvalidTransition
		}

		if err := s.repo.UpdateStatus(ctx, id, domain.CampaignRunning, StatusFields{ClearPausedAt: true}); err != nil {
			return err
		}
		return s.deliverer.RemoveByCampaign(ctx, id)
	})
	if err != nil {
		return err
	}

	go s.runSchedulingPipeline(context.Background(), id, true)
	return nil
}

// Fail transitions any active campaign to failed on an unrecoverable
// error, recording the error and purging residual jobs (§4.4 "any active |
// fatal-error | failed").
func (s *Service) Fail(ctx context.Context, id string, cause error) error {
	return s.withLock(ctx, id, func() error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if !c.IsActive() {
			return ErrInvalidTransition
		}

		now := s.now()
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		if err := s.repo.UpdateStatus(ctx, id, domain.CampaignFailed, StatusFields{FailedAt: &now, ErrorMessage: msg}); err != nil {
			return err
		}
		return s.deliverer.RemoveByCampaign(ctx, id)
	})
}

// complete transitions a running campaign to completed because its
// recipient pool is exhausted (§4.4 "running | exhausted | completed").
func (s *Service) complete(ctx context.Context, id string) error {
	return s.withLock(ctx, id, func() error {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != domain.CampaignRunning {
			return nil // already moved on elsewhere; not an error
		}
		now := s.now()
		if err := s.repo.UpdateStatus(ctx, id, domain.CampaignCompleted, StatusFields{CompletedAt: &now}); err != nil {
			return err
		}
		return s.deliverer.RemoveByCampaign(ctx, id)
	})
}

// AdvanceDay is the Day Transition Scheduler's entry point (§4.9 steps
// 3-5): it purges residual jobs, atomically advances progress.currentDay,
// and re-invokes the scheduling pipeline for the new day. Callers must
// have already performed the completion check (§4.9 step 2).
func (s *Service) AdvanceDay(ctx context.Context, id string, newDay int) error {
	err := s.withLock(ctx, id, func() error {
		if err := s.deliverer.RemoveByCampaign(ctx, id); err != nil {
			return err
		}
		return s.repo.AdvanceDay(ctx, id, newDay, s.now())
	})
	if err != nil {
		return err
	}

	go s.runSchedulingPipeline(context.Background(), id, false)
	return nil
}

// Complete is the Day Transition Scheduler's exhaustion path (§4.9 step 2:
// "if warm-up disabled and eligible set is empty -> mark campaign
// completed, remove residual jobs").
func (s *Service) Complete(ctx context.Context, id string) error {
	return s.complete(ctx, id)
}

// RegeneratePlan discards the current day's DailyPlan (if any) and
// re-runs the scheduling pipeline for it synchronously, used by the
// campaign API's `regeneratePlan` surface (§6). Only valid while running.
func (s *Service) RegeneratePlan(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignRunning {
		return ErrInvalidTransition
	}
	if err := s.deliverer.RemoveByCampaign(ctx, id); err != nil {
		return err
	}
	s.runSchedulingPipeline(ctx, id, false)
	return nil
}

// PlanForDay returns the campaign's DailyPlan for a given day, used by
// the `getCampaignPlan`/`getTodaysPlan` API surface (§6).
func PlanForDay(c *domain.Campaign, day int) (domain.DailyPlan, bool) {
	return findDailyPlan(c.Plan.DailyPlans, day)
}

// runSchedulingPipeline drives §4.3-§4.4: resolve eligible recipients,
// window them under the warm-up cursor, build (or reuse) the day's
// DailyPlan, and push Delivery Queue jobs. Runs detached from the
// triggering request (§4.4: "run plan+schedule asynchronously").
func (s *Service) runSchedulingPipeline(ctx context.Context, campaignID string, reuseExistingPlan bool) {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		logger.Error("campaign pipeline: load failed", "campaign_id", campaignID, "error", err.Error())
		return
	}
	if c.Status != domain.CampaignRunning {
		return // paused/failed again before the pipeline got to run
	}

	day := c.Progress.CurrentDay
	if day < 1 {
		day = 1
	}

	eligible, err := s.pool.Eligible(ctx, c)
	if err != nil {
		logger.Error("campaign pipeline: eligibility failed", "campaign_id", campaignID, "error", err.Error())
		_ = s.Fail(ctx, campaignID, err)
		return
	}

	if len(eligible) == 0 && !c.Configuration.WarmupMode.Enabled {
		if err := s.complete(ctx, campaignID); err != nil {
			logger.Error("campaign pipeline: complete failed", "campaign_id", campaignID, "error", err.Error())
		}
		return
	}

	k := s.newKernel()
	quota := planner.Quota(k, c.Configuration, day)
	window, nextIndex := recipients.Window(eligible, c.Configuration.WarmupMode.Enabled, c.Configuration.WarmupMode.CurrentIndex, quota)
	if c.Configuration.WarmupMode.Enabled {
		if err := s.repo.SetWarmupIndex(ctx, campaignID, nextIndex); err != nil {
			logger.Error("campaign pipeline: set warmup index failed", "campaign_id", campaignID, "error", err.Error())
		}
	}

	now := s.now()
	plan, ok := findDailyPlan(c.Plan.DailyPlans, day)
	if !ok || !reuseExistingPlan {
		generated, err := planner.GenerateForDailyTotal(k, c.Configuration, day, len(window), now)
		if err != nil {
			logger.Error("campaign pipeline: plan generation failed", "campaign_id", campaignID, "error", err.Error())
			_ = s.Fail(ctx, campaignID, err)
			return
		}
		plan = generated
		stats := map[string]int{"eligible": len(eligible), "window": len(window)}
		if err := s.repo.AppendDailyPlan(ctx, campaignID, plan, len(eligible), stats); err != nil {
			logger.Error("campaign pipeline: append plan failed", "campaign_id", campaignID, "error", err.Error())
		}
	}

	items, err := s.buildBatchItems(plan, window, c, day, k, now)
	if err != nil {
		logger.Error("campaign pipeline: build jobs failed", "campaign_id", campaignID, "error", err.Error())
		_ = s.Fail(ctx, campaignID, err)
		return
	}

	const batchSize = 1000
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		if _, err := s.deliverer.EnqueueBatch(ctx, items[start:end]); err != nil {
			logger.Error("campaign pipeline: enqueue batch failed", "campaign_id", campaignID, "error", err.Error())
			return
		}
	}
}

func findDailyPlan(plans []domain.DailyPlan, day int) (domain.DailyPlan, bool) {
	for i := len(plans) - 1; i >= 0; i-- {
		if plans[i].Day == day {
			return plans[i], true
		}
	}
	return domain.DailyPlan{}, false
}

// buildBatchItems walks the DailyPlan's domain/sender/hour/minute cells in
// order, assigning recipients from window and computing each message's UTC
// send target (§4.4 scheduling algorithm).
func (s *Service) buildBatchItems(plan domain.DailyPlan, window []string, c *domain.Campaign, day int, k *kernel.Kernel, now time.Time) ([]queue.BatchItem, error) {
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999999999, time.UTC)

	var items []queue.BatchItem
	cursor := 0

	for _, dp := range plan.Domains {
		for _, sp := range dp.Senders {
			for _, hp := range sp.Hours {
				for minute := 0; minute < 60; minute++ {
					count := hp.Minutes[minute]
					if count == 0 {
						continue
					}
					for i := 0; i < count; i++ {
						if cursor >= len(window) {
							break
						}
						recipientEmail := window[cursor]
						cursor++

						secondsOffset := (i * 60) / count
						target := time.Date(now.Year(), now.Month(), now.Day(), hp.Hour, minute, secondsOffset, 0, time.UTC)
						if !target.After(now) || target.After(endOfDay) {
							continue
						}

						templateName := k.PickTemplate(c.TemplateNames)
						templateData, err := s.templater.Substitute(c.Configuration.TemplateData, recipientEmail, c.Name, day)
						if err != nil {
							return nil, fmt.Errorf("campaign: template substitution: %w", err)
						}

						payload := domain.EmailJobPayload{
							CampaignID:   c.ID,
							Recipient:    domain.RecipientRef{Email: recipientEmail, Domain: domainOf(recipientEmail)},
							Sender:       domain.SenderRef{Email: sp.Email, Domain: dp.Domain},
							TemplateName: templateName,
							TemplateData: templateData,
							Metadata: domain.SentEmailMetadata{
								Day:    day,
								Hour:   hp.Hour,
								Minute: minute,
								Second: secondsOffset,
							},
							ScheduledFor: target,
						}
						items = append(items, queue.BatchItem{Payload: payload, Delay: target.Sub(now)})
					}
				}
			}
		}
	}
	return items, nil
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}

func utcDayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
