package message

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/warmlane/internal/domain"
)

// Service implements the Message Store's business rules on top of a
// Repository: idempotent enqueue, send/failure mutation, and provider
// event application with first-open/first-click detection (§4.6, §4.7).
type Service struct {
	repo Repository
}

// New builds a Message Store service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureQueued upserts a SentEmail into the queued state for
// processEmailJob step 4 (§4.5). It is idempotent: calling it again for
// the same (campaign, recipient, day) just bumps attemptNumber.
func (s *Service) EnsureQueued(ctx context.Context, campaignID string, recipient domain.RecipientRef, sender domain.SenderRef, templateName string, metadata domain.SentEmailMetadata) (*domain.SentEmail, error) {
	existing, err := s.repo.Get(ctx, campaignID, recipient.Email, metadata.Day)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("message: ensure queued: %w", err)
	}

	if existing != nil {
		existing.Metadata.AttemptNumber = metadata.AttemptNumber
		existing.Status = domain.SentQueued
		if err := s.repo.Put(ctx, existing); err != nil {
			return nil, fmt.Errorf("message: re-queue: %w", err)
		}
		return existing, nil
	}

	sent := &domain.SentEmail{
		Campaign:     campaignID,
		Recipient:    recipient,
		Sender:       sender,
		TemplateName: templateName,
		Status:       domain.SentQueued,
		Metadata:     metadata,
	}
	if err := s.repo.Insert(ctx, sent); err != nil {
		return nil, err
	}
	return sent, nil
}

// MarkSent records a successful send (§4.5 step 6).
func (s *Service) MarkSent(ctx context.Context, sent *domain.SentEmail, messageID string, processingTime time.Duration) error {
	now := time.Now().UTC()
	sent.Status = domain.SentSent
	sent.MessageID = messageID
	sent.DeliveryStatus.SentAt = &now
	sent.Metadata.ProcessingTime = processingTime
	return s.repo.Put(ctx, sent)
}

// MarkFailed records a failed send attempt (§4.5 step 7).
func (s *Service) MarkFailed(ctx context.Context, sent *domain.SentEmail, errDetails string) error {
	now := time.Now().UTC()
	sent.Status = domain.SentFailed
	sent.DeliveryStatus.FailedAt = &now
	sent.ErrorDetails = errDetails
	return s.repo.Put(ctx, sent)
}

// ProviderEventResult reports what changed so the caller (Event Ingestor)
// can drive campaign counters and analytics (§4.6).
type ProviderEventResult struct {
	SentEmail  *domain.SentEmail
	NewStatus  domain.SentStatus
	FirstOpen  bool
	FirstClick bool
}

// ApplyProviderEvent mutates the SentEmail identified by messageID
// according to the mapped status, performing the first-open/first-click
// bookkeeping (§4.6, §9 "duplicate webhook controllers... first-open-aware
// version is authoritative"). Returns ErrNotFound if the message is
// unknown (§4.6: "if absent, warn and stop").
func (s *Service) ApplyProviderEvent(ctx context.Context, messageID string, eventType domain.ProviderEventType, userAgent, ipAddress string) (*ProviderEventResult, error) {
	sent, err := s.repo.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	mapped, ok := eventType.StatusFor()
	if !ok {
		return nil, fmt.Errorf("message: unrecognized provider event type %q", eventType)
	}

	now := time.Now().UTC()
	result := &ProviderEventResult{SentEmail: sent, NewStatus: mapped}

	if mapped.AdvancesFrom(sent.Status) {
		sent.Status = mapped
	}

	switch eventType {
	case domain.ProviderDelivery:
		sent.DeliveryStatus.DeliveredAt = &now
	case domain.ProviderBounce:
		sent.DeliveryStatus.BouncedAt = &now
	case domain.ProviderComplaint, domain.ProviderReject, domain.ProviderRenderingFailure:
		sent.DeliveryStatus.FailedAt = &now
	case domain.ProviderOpen:
		result.FirstOpen = sent.Tracking.OpenCount == 0
		sent.Tracking.OpenCount++
		sent.Tracking.LastOpenedAt = &now
		sent.DeliveryStatus.OpenedAt = &now
		if userAgent != "" {
			sent.Tracking.UserAgent = userAgent
		}
		if ipAddress != "" {
			sent.Tracking.IPAddress = ipAddress
		}
	case domain.ProviderClick:
		result.FirstClick = sent.Tracking.ClickCount == 0
		sent.Tracking.ClickCount++
		sent.Tracking.LastClickedAt = &now
		sent.DeliveryStatus.ClickedAt = &now
		if userAgent != "" {
			sent.Tracking.UserAgent = userAgent
		}
		if ipAddress != "" {
			sent.Tracking.IPAddress = ipAddress
		}
	}

	if err := s.repo.Put(ctx, sent); err != nil {
		return nil, fmt.Errorf("message: apply provider event: %w", err)
	}
	return result, nil
}

// Get loads a SentEmail by its unique key.
func (s *Service) Get(ctx context.Context, campaignID, email string, day int) (*domain.SentEmail, error) {
	return s.repo.Get(ctx, campaignID, email, day)
}

// EligibleRecipients filters candidates against the sent-dedup scope
// (§4.2 dedup scope rule: campaign-local under warm-up, global otherwise)
// and an unsubscribe set, returning the remaining eligible emails in the
// input's original order.
func (s *Service) EligibleRecipients(ctx context.Context, campaignID string, candidates []string, warmupEnabled bool, unsubscribed map[string]struct{}) ([]string, error) {
	sent, err := s.repo.SentRecipients(ctx, campaignID, !warmupEnabled)
	if err != nil {
		return nil, fmt.Errorf("message: eligible recipients: %w", err)
	}

	out := make([]string, 0, len(candidates))
	for _, email := range candidates {
		if _, dup := sent[email]; dup {
			continue
		}
		if _, unsub := unsubscribed[email]; unsub {
			continue
		}
		out = append(out, email)
	}
	return out, nil
}

// ResetWarmupCycle deletes every SentEmail for a campaign, the sole legal
// deletion path (§4.2 warm-up exhaustion, §8 property 10).
func (s *Service) ResetWarmupCycle(ctx context.Context, campaignID string) error {
	return s.repo.DeleteByCampaign(ctx, campaignID)
}

// ListByCampaignDay returns every SentEmail for a campaign on a plan day,
// the source rows for the Analytics Aggregator's getRealtimeStats (§4.10).
func (s *Service) ListByCampaignDay(ctx context.Context, campaignID string, day int) ([]domain.SentEmail, error) {
	return s.repo.ListByCampaignDay(ctx, campaignID, day)
}
