// Package message owns the Message Store (§4.7): the exclusive keeper of
// SentEmail records, uniqueness-gated on (campaign, recipient.email,
// metadata.day).
package message

import (
	"context"

	"github.com/ignite/warmlane/internal/domain"
)

// Repository is implemented by the Message Store's storage backend
// (internal/repository/dynamo in production).
type Repository interface {
	// Get loads a SentEmail by its unique key. Returns ErrNotFound if absent.
	Get(ctx context.Context, campaignID, email string, day int) (*domain.SentEmail, error)

	// GetByMessageID loads a SentEmail by the provider-assigned message id
	// (§4.6: the Event Ingestor's sole join key).
	GetByMessageID(ctx context.Context, messageID string) (*domain.SentEmail, error)

	// Insert creates a new SentEmail. Returns ErrDuplicate if the
	// (campaign, recipient, day) key already exists.
	Insert(ctx context.Context, s *domain.SentEmail) error

	// Put overwrites (or creates) the full record, used for idempotent
	// queued-state upserts (§4.5 step 4) and post-send status mutation.
	Put(ctx context.Context, s *domain.SentEmail) error

	// SentRecipients returns the set of recipient emails already sent to,
	// scoped to a single campaign or globally across all campaigns per
	// the warm-up dedup rule (§4.2).
	SentRecipients(ctx context.Context, campaignID string, global bool) (map[string]struct{}, error)

	// DeleteByCampaign deletes every SentEmail for a campaign. The sole
	// legal use is the warm-up exhaustion reset (§4.2, §8 property 10).
	DeleteByCampaign(ctx context.Context, campaignID string) error

	// ListByCampaignDay returns every SentEmail for a campaign on a given
	// plan day, the source data for the Analytics Aggregator's realtime
	// stats (§4.10).
	ListByCampaignDay(ctx context.Context, campaignID string, day int) ([]domain.SentEmail, error)
}
