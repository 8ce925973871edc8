package suppression

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignite/warmlane/internal/domain"
)

// Service implements suppression business logic. It is safe for concurrent use.
// All methods are pure: they take typed inputs and return typed outputs.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsSuppressed checks whether an email address should be blocked from sending.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	return s.repo.IsSuppressed(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Suppress adds an email to the suppression list. Idempotent — if the
// email is already suppressed, the existing record is preserved. The
// Event Ingestor is the only automatic caller (a bounce or complaint on
// any campaign, §4.6); reason/source otherwise cover a manual or
// tracking-pixel-driven unsubscribe.
func (s *Service) Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, campaignID string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email is required")
	}

	entry := &domain.Suppression{
		Email:      email,
		Reason:     reason,
		Source:     source,
		CampaignID: campaignID,
	}

	return s.repo.Suppress(ctx, entry)
}

// Remove deletes a suppression entry. Returns an error if the email is not suppressed.
func (s *Service) Remove(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email is required")
	}
	return s.repo.Remove(ctx, email)
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error) {
	return s.repo.List(ctx, filter)
}

// Count returns the total number of suppressed emails.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Stats returns aggregate counts grouped by reason and source.
type Stats struct {
	Total    int            `json:"total"`
	ByReason map[string]int `json:"by_reason"`
	BySource map[string]int `json:"by_source"`
}

// GetStats computes suppression statistics.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:    total,
		ByReason: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, e := range entries {
		stats.ByReason[string(e.Reason)]++
		stats.BySource[string(e.Source)]++
	}
	return stats, nil
}

// AllEmails returns every suppressed email, the input set the Recipient
// Pool subtracts from eligibility alongside the ObjectStore unsubscribe
// file (§4.2).
func (s *Service) AllEmails(ctx context.Context) ([]string, error) {
	return s.repo.AllEmails(ctx)
}
