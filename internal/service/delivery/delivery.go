// Package delivery implements processEmailJob (§4.5): the Delivery
// Queue's per-job handler, wired as a queue.ProcessFunc. It enforces the
// idempotency, staleness, and rate-limiting invariants and drives the
// Message Store, Campaign Store, Analytics Aggregator, and EventBus for
// every send attempt.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/eventbus"
	"github.com/ignite/warmlane/internal/mailtransport"
	"github.com/ignite/warmlane/internal/pkg/logger"
	"github.com/ignite/warmlane/internal/queue"
	"github.com/ignite/warmlane/internal/service/campaign"
	"github.com/ignite/warmlane/internal/service/message"
)

// staleAfter is the "age > 2h" staleness bound (§4.5 step 3).
const staleAfter = 2 * time.Hour

// MessageStore is the Message Store seam processEmailJob drives.
type MessageStore interface {
	Get(ctx context.Context, campaignID, email string, day int) (*domain.SentEmail, error)
	EnsureQueued(ctx context.Context, campaignID string, recipient domain.RecipientRef, sender domain.SenderRef, templateName string, metadata domain.SentEmailMetadata) (*domain.SentEmail, error)
	MarkSent(ctx context.Context, sent *domain.SentEmail, messageID string, processingTime time.Duration) error
	MarkFailed(ctx context.Context, sent *domain.SentEmail, errDetails string) error
}

// CampaignStore is the Campaign Store seam processEmailJob drives.
type CampaignStore interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	IncrementProgress(ctx context.Context, id string, delta campaign.ProgressDelta) error
}

// AnalyticsRecorder is the Analytics Aggregator seam for worker-side
// send outcomes (§4.5 steps 6-7, §4.10).
type AnalyticsRecorder interface {
	RecordEmailSent(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error
	RecordEmailFailed(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error
}

// RateLimiter is the token-bucket/sliding-window seam guarding every
// MailTransport call (§4.5 step 5). internal/ratelimit.Limiter satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Processor builds the queue.ProcessFunc implementing processEmailJob.
type Processor struct {
	messages  MessageStore
	campaigns CampaignStore
	analytics AnalyticsRecorder
	limiter   RateLimiter
	transport mailtransport.Transport
	events    eventbus.Bus
	now       func() time.Time
}

// New builds a Processor.
func New(messages MessageStore, campaigns CampaignStore, analyticsRecorder AnalyticsRecorder, limiter RateLimiter, transport mailtransport.Transport, events eventbus.Bus) *Processor {
	return &Processor{
		messages:  messages,
		campaigns: campaigns,
		analytics: analyticsRecorder,
		limiter:   limiter,
		transport: transport,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Process implements queue.ProcessFunc, applying every invariant of
// processEmailJob (§4.5).
func (p *Processor) Process(ctx context.Context, job queue.Job) error {
	payload := job.Payload
	now := p.now()

	existing, err := p.messages.Get(ctx, payload.CampaignID, payload.Recipient.Email, payload.Metadata.Day)
	if err != nil && !errors.Is(err, message.ErrNotFound) {
		return fmt.Errorf("delivery: lookup existing sent email: %w", err)
	}
	if existing != nil && existing.Status != domain.SentQueued && existing.Status != domain.SentFailed {
		logger.Debug("delivery: skipping already-processed job", "campaign_id", payload.CampaignID, "recipient", payload.Recipient.Email, "status", string(existing.Status))
		return nil
	}

	c, err := p.campaigns.Get(ctx, payload.CampaignID)
	if err != nil {
		return fmt.Errorf("delivery: load campaign: %w", err)
	}
	if c.Status != domain.CampaignRunning {
		logger.Debug("delivery: skipping job, campaign not running", "campaign_id", payload.CampaignID, "reason", "campaign_not_running")
		return nil
	}

	if isStale(job.ScheduledFor, now) {
		logger.Debug("delivery: skipping stale job", "campaign_id", payload.CampaignID, "reason", "stale_job", "scheduled_for", job.ScheduledFor)
		return nil
	}

	metadata := payload.Metadata
	metadata.AttemptNumber = job.AttemptsMade + 1
	sent, err := p.messages.EnsureQueued(ctx, payload.CampaignID, payload.Recipient, payload.Sender, payload.TemplateName, metadata)
	if err != nil {
		return fmt.Errorf("delivery: ensure queued: %w", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("delivery: rate limiter: %w", err)
	}

	sendStart := p.now()
	messageID, sendErr := p.transport.Send(ctx, payload.Sender.Email, payload.Recipient.Email, payload.TemplateName, payload.TemplateData, payload.CampaignID)
	if sendErr != nil {
		return p.handleFailure(ctx, sent, payload, sendErr)
	}

	return p.handleSuccess(ctx, sent, payload, messageID, p.now().Sub(sendStart))
}

// isStale implements §4.5 step 3: stale if scheduledFor isn't the same
// UTC calendar day as now, or the job has aged past staleAfter.
func isStale(scheduledFor, now time.Time) bool {
	sameDay := scheduledFor.Year() == now.Year() && scheduledFor.YearDay() == now.YearDay()
	if !sameDay {
		return true
	}
	return now.Sub(scheduledFor) > staleAfter
}

func (p *Processor) handleSuccess(ctx context.Context, sent *domain.SentEmail, payload domain.EmailJobPayload, messageID string, processingTime time.Duration) error {
	if err := p.messages.MarkSent(ctx, sent, messageID, processingTime); err != nil {
		return fmt.Errorf("delivery: mark sent: %w", err)
	}

	now := p.now()
	if err := p.campaigns.IncrementProgress(ctx, payload.CampaignID, campaign.ProgressDelta{Sent: 1, LastSentAt: &now}); err != nil {
		logger.Error("delivery: increment progress (sent) failed", "campaign_id", payload.CampaignID, "error", err.Error())
	}
	if err := p.analytics.RecordEmailSent(ctx, payload.CampaignID, payload.Metadata.Day, payload.Metadata.Hour, payload.Sender.Email, payload.Recipient.Domain); err != nil {
		logger.Error("delivery: record email sent failed", "campaign_id", payload.CampaignID, "error", err.Error())
	}
	p.events.Publish(ctx, eventbus.Event{
		Name:       "email_sent",
		CampaignID: payload.CampaignID,
		Payload:    map[string]interface{}{"recipient": payload.Recipient.Email, "message_id": messageID},
	})
	return nil
}

// handleFailure marks the SentEmail failed and rethrows so the queue
// retries under its backoff policy (§4.5 step 7).
func (p *Processor) handleFailure(ctx context.Context, sent *domain.SentEmail, payload domain.EmailJobPayload, sendErr error) error {
	if err := p.messages.MarkFailed(ctx, sent, sendErr.Error()); err != nil {
		logger.Error("delivery: mark failed failed", "campaign_id", payload.CampaignID, "error", err.Error())
	}
	if err := p.campaigns.IncrementProgress(ctx, payload.CampaignID, campaign.ProgressDelta{Failed: 1}); err != nil {
		logger.Error("delivery: increment progress (failed) failed", "campaign_id", payload.CampaignID, "error", err.Error())
	}
	if err := p.analytics.RecordEmailFailed(ctx, payload.CampaignID, payload.Metadata.Day, payload.Metadata.Hour, payload.Sender.Email, payload.Recipient.Domain); err != nil {
		logger.Error("delivery: record email failed failed", "campaign_id", payload.CampaignID, "error", err.Error())
	}
	p.events.Publish(ctx, eventbus.Event{
		Name:       "email_failed",
		CampaignID: payload.CampaignID,
		Payload:    map[string]interface{}{"recipient": payload.Recipient.Email, "error": sendErr.Error()},
	})
	return fmt.Errorf("delivery: send failed: %w", sendErr)
}
