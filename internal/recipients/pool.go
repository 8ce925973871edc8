// Package recipients implements the Recipient Pool (§4.2): it produces
// the eligible recipient list for a campaign day by combining the
// ObjectStore CSV, the unsubscribe set, and the Message Store's
// already-sent dedup set, then applies the warm-up windowing cursor.
package recipients

import (
	"context"
	"fmt"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/objectstore"
	"github.com/ignite/warmlane/internal/service/message"
)

// Keys resolve an EmailListSource to the ObjectStore keys the campaign
// reads from.
type Keys struct {
	Recipients  string
	Unsubscribe string
}

// KeyResolver maps a campaign's configured list source to its ObjectStore
// keys (global vs custom list, §4.2 step 1).
type KeyResolver interface {
	Resolve(cfg domain.Configuration) Keys
}

// SuppressionChecker is the suppression-list seam the Recipient Pool
// consults in addition to the ObjectStore unsubscribe file, so a bounce
// or complaint recorded by the Event Ingestor removes a recipient from
// every future plan, not just this campaign's (§4.2, §4.6).
type SuppressionChecker interface {
	AllEmails(ctx context.Context) ([]string, error)
}

// Pool is the Recipient Pool service.
type Pool struct {
	store       objectstore.Store
	messages    *message.Service
	keys        KeyResolver
	suppression SuppressionChecker
}

// New builds a Recipient Pool over an ObjectStore and the Message Store
// service. suppression may be nil, in which case only the ObjectStore
// unsubscribe file is consulted.
func New(store objectstore.Store, messages *message.Service, keys KeyResolver, suppression SuppressionChecker) *Pool {
	return &Pool{store: store, messages: messages, keys: keys, suppression: suppression}
}

// Eligible returns emailList − sentSet − unsubscribedSet − suppressedSet
// for a campaign (§4.2 steps 1-4), honoring the warm-up-vs-global dedup
// scope rule.
func (p *Pool) Eligible(ctx context.Context, campaign *domain.Campaign) ([]string, error) {
	keys := p.keys.Resolve(campaign.Configuration)

	allEmails, err := objectstore.StreamRecipients(ctx, p.store, keys.Recipients)
	if err != nil {
		return nil, fmt.Errorf("recipients: stream recipients: %w", err)
	}

	unsubTimestamps, err := objectstore.StreamUnsubscribes(ctx, p.store, keys.Unsubscribe)
	if err != nil {
		return nil, fmt.Errorf("recipients: stream unsubscribes: %w", err)
	}
	unsub := make(map[string]struct{}, len(unsubTimestamps))
	for email := range unsubTimestamps {
		unsub[email] = struct{}{}
	}

	if p.suppression != nil {
		suppressed, err := p.suppression.AllEmails(ctx)
		if err != nil {
			return nil, fmt.Errorf("recipients: list suppressed emails: %w", err)
		}
		for _, email := range suppressed {
			unsub[email] = struct{}{}
		}
	}

	eligible, err := p.messages.EligibleRecipients(ctx, campaign.ID, allEmails, campaign.Configuration.WarmupMode.Enabled, unsub)
	if err != nil {
		return nil, fmt.Errorf("recipients: eligible recipients: %w", err)
	}

	if campaign.Configuration.WarmupMode.Enabled && len(eligible) == 0 {
		if err := p.messages.ResetWarmupCycle(ctx, campaign.ID); err != nil {
			return nil, fmt.Errorf("recipients: reset warmup cycle: %w", err)
		}
		campaign.Configuration.WarmupMode.CurrentIndex = 0
		eligible = filterUnsubscribedOnly(allEmails, unsub)
	}

	return eligible, nil
}

func filterUnsubscribedOnly(candidates []string, unsubscribed map[string]struct{}) []string {
	out := make([]string, 0, len(candidates))
	for _, email := range candidates {
		if _, unsub := unsubscribed[email]; unsub {
			continue
		}
		out = append(out, email)
	}
	return out
}

// Window slices eligible[currentIndex : currentIndex+quota) under warm-up
// mode, wrapping to 0 at the end of the list, and returns the next cursor
// position (§4.2 windowing). Outside warm-up mode the first quota emails
// of the eligible set (or all of them, if fewer) are returned and the
// cursor is left untouched.
func Window(eligible []string, warmupEnabled bool, currentIndex, quota int) (window []string, nextIndex int) {
	if !warmupEnabled || len(eligible) == 0 {
		if quota < len(eligible) {
			return eligible[:quota], currentIndex
		}
		return eligible, currentIndex
	}

	start := currentIndex % len(eligible)
	end := start + quota
	if end > len(eligible) {
		end = len(eligible)
	}
	window = eligible[start:end]

	next := end
	if next >= len(eligible) {
		next = 0
	}
	return window, next
}
