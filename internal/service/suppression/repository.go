package suppression

import (
	"context"

	"github.com/ignite/warmlane/internal/domain"
)

// Repository defines the data access contract for the suppression list.
// This module has no tenant/organization concept (internal/domain carries
// none on Campaign, SentEmail, or anywhere else), so unlike a multi-tenant
// suppression list every method here is scoped to the single mailing
// program as a whole.
type Repository interface {
	// IsSuppressed returns true if the email is on the suppression list.
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Suppress adds an email to the suppression list. If it already exists,
	// the existing record is preserved (idempotent).
	Suppress(ctx context.Context, s *domain.Suppression) error

	// Remove deletes a suppression entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, email string) error

	// List returns suppression entries matching the filter.
	List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error)

	// Count returns the total number of suppressed emails.
	Count(ctx context.Context) (int, error)

	// AllEmails returns every suppressed email address (for file sync and
	// the Recipient Pool's eligibility filter, §4.2).
	AllEmails(ctx context.Context) ([]string, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Reason string
	Source string
	Search string
	Limit  int
	Offset int
}
