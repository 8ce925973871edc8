// Package analytics implements the Analytics Aggregator (§4.10): per-
// (campaign, day) rollups recomputed atomically on every write, plus a
// realtime snapshot derived straight from the Message Store.
package analytics

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/warmlane/internal/domain"
)

// Service implements the Analytics Aggregator's recorders and realtime
// query on top of a Repository and the Message Store.
type Service struct {
	repo     Repository
	messages SentEmailSource
}

// New builds an Analytics Aggregator.
func New(repo Repository, messages SentEmailSource) *Service {
	return &Service{repo: repo, messages: messages}
}

func (s *Service) record(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, delta SummaryDelta) error {
	if err := s.repo.EnsureExists(ctx, campaignID, day); err != nil {
		return fmt.Errorf("analytics: ensure exists: %w", err)
	}
	if err := s.repo.IncrementSummary(ctx, campaignID, day, delta); err != nil {
		return fmt.Errorf("analytics: increment summary: %w", err)
	}
	if err := s.repo.IncrementHourly(ctx, campaignID, day, hour, delta); err != nil {
		return fmt.Errorf("analytics: increment hourly: %w", err)
	}
	if recipientDomain != "" {
		if err := s.repo.IncrementDomain(ctx, campaignID, day, recipientDomain, delta); err != nil {
			return fmt.Errorf("analytics: increment domain: %w", err)
		}
	}
	if senderEmail != "" {
		if err := s.repo.IncrementSender(ctx, campaignID, day, senderEmail, delta); err != nil {
			return fmt.Errorf("analytics: increment sender: %w", err)
		}
	}
	return s.recomputeRates(ctx, campaignID, day)
}

// recomputeRates reloads the fresh summary and writes back the rates
// (§4.10 "on write, recompute rates").
func (s *Service) recomputeRates(ctx context.Context, campaignID string, day int) error {
	da, err := s.repo.Get(ctx, campaignID, day)
	if err != nil {
		return fmt.Errorf("analytics: reload for rates: %w", err)
	}
	da.RecomputeRates()
	return s.repo.PutRates(ctx, campaignID, day, da.Rates)
}

// RecordEmailSent records a successful worker dispatch (§4.5 step 6, §4.10).
func (s *Service) RecordEmailSent(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, senderEmail, recipientDomain, SummaryDelta{Sent: 1})
}

// RecordEmailFailed records a worker-side send failure (§4.5 step 7, §4.10).
func (s *Service) RecordEmailFailed(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, senderEmail, recipientDomain, SummaryDelta{Failed: 1})
}

// RecordEmailDelivered is the dedicated Delivery recorder the Event
// Ingestor uses for provider Delivery events (§4.6, §4.10).
func (s *Service) RecordEmailDelivered(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, senderEmail, recipientDomain, SummaryDelta{Delivered: 1})
}

// RecordEmailBounced increments summary.totalBounced for a Bounce event
// (§4.6: "on Bounce increment summary.totalBounced").
func (s *Service) RecordEmailBounced(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error {
	return s.record(ctx, campaignID, day, hour, senderEmail, recipientDomain, SummaryDelta{Bounced: 1})
}

// RecordEmailOpened increments summary.totalOpened, and additionally
// uniqueOpens when this is the recipient's first open (§4.6).
func (s *Service) RecordEmailOpened(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, firstOpen bool) error {
	delta := SummaryDelta{Opened: 1}
	if firstOpen {
		delta.UniqueOpens = 1
	}
	return s.record(ctx, campaignID, day, hour, senderEmail, recipientDomain, delta)
}

// RecordEmailClicked is the Click symmetric of RecordEmailOpened (§4.6).
func (s *Service) RecordEmailClicked(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, firstClick bool) error {
	delta := SummaryDelta{Clicked: 1}
	if firstClick {
		delta.UniqueClicks = 1
	}
	return s.record(ctx, campaignID, day, hour, senderEmail, recipientDomain, delta)
}

// RealtimeStats is the getRealtimeStats snapshot (§4.10), aggregated live
// from the Message Store rather than from the DailyAnalytics rollup.
type RealtimeStats struct {
	CampaignID  string
	Day         int
	ByStatus    map[domain.SentStatus]int
	TotalOpens  int
	TotalClicks int
}

// legacyStatusAliases normalizes provider-era status spellings that may
// still appear on older SentEmail rows (§4.10).
var legacyStatusAliases = map[string]domain.SentStatus{
	"send":     domain.SentSent,
	"delivery": domain.SentDelivered,
	"open":     domain.SentOpened,
	"click":    domain.SentClicked,
	"bounce":   domain.SentBounced,
}

func normalizeStatus(raw domain.SentStatus) domain.SentStatus {
	if alias, ok := legacyStatusAliases[strings.ToLower(string(raw))]; ok {
		return alias
	}
	return raw
}

// GetRealtimeStats aggregates every SentEmail for (campaignID, day) by
// status and sums open/click counts (§4.10).
func (s *Service) GetRealtimeStats(ctx context.Context, campaignID string, day int) (*RealtimeStats, error) {
	rows, err := s.messages.ListByCampaignDay(ctx, campaignID, day)
	if err != nil {
		return nil, fmt.Errorf("analytics: realtime stats: %w", err)
	}

	stats := &RealtimeStats{
		CampaignID: campaignID,
		Day:        day,
		ByStatus:   make(map[domain.SentStatus]int),
	}
	for _, row := range rows {
		stats.ByStatus[normalizeStatus(row.Status)]++
		stats.TotalOpens += row.Tracking.OpenCount
		stats.TotalClicks += row.Tracking.ClickCount
	}
	return stats, nil
}
