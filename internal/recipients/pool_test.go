package recipients

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/objectstore"
	"github.com/ignite/warmlane/internal/service/message"
)

type memStore struct {
	objects map[string]string
}

func (m *memStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type memRepo struct {
	sent map[string]*domain.SentEmail
}

func newMemRepo() *memRepo { return &memRepo{sent: make(map[string]*domain.SentEmail)} }

func (m *memRepo) Get(_ context.Context, campaignID, email string, day int) (*domain.SentEmail, error) {
	return nil, message.ErrNotFound
}
func (m *memRepo) GetByMessageID(_ context.Context, messageID string) (*domain.SentEmail, error) {
	return nil, message.ErrNotFound
}
func (m *memRepo) Insert(_ context.Context, s *domain.SentEmail) error {
	m.sent[s.Recipient.Email] = s
	return nil
}
func (m *memRepo) Put(_ context.Context, s *domain.SentEmail) error {
	m.sent[s.Recipient.Email] = s
	return nil
}
func (m *memRepo) SentRecipients(_ context.Context, campaignID string, global bool) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for email, s := range m.sent {
		if !global && s.Campaign != campaignID {
			continue
		}
		out[email] = struct{}{}
	}
	return out, nil
}
func (m *memRepo) DeleteByCampaign(_ context.Context, campaignID string) error {
	for email, s := range m.sent {
		if s.Campaign == campaignID {
			delete(m.sent, email)
		}
	}
	return nil
}
func (m *memRepo) ListByCampaignDay(_ context.Context, campaignID string, day int) ([]domain.SentEmail, error) {
	var out []domain.SentEmail
	for _, s := range m.sent {
		if s.Campaign == campaignID && s.Metadata.Day == day {
			out = append(out, *s)
		}
	}
	return out, nil
}

var fixedKeys = PrefixKeyResolver{
	GlobalRecipientsKey:  "recipients.csv",
	GlobalUnsubscribeKey: "unsubscribe.csv",
	CustomListPrefix:     "lists/",
}

func TestEligibleFiltersSentAndUnsubscribed(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"recipients.csv":  "Email\na@example.com\nb@example.com\nc@example.com\n",
		"unsubscribe.csv": "b@example.com,1700000000\n",
	}}
	repo := newMemRepo()
	repo.sent["c@example.com"] = &domain.SentEmail{Campaign: "camp-1", Recipient: domain.RecipientRef{Email: "c@example.com"}}

	pool := New(store, message.New(repo), fixedKeys, nil)
	campaign := &domain.Campaign{ID: "camp-1", Configuration: domain.Configuration{EmailListSource: domain.ListSourceGlobal}}

	eligible, err := pool.Eligible(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Eligible: %v", err)
	}
	if len(eligible) != 1 || eligible[0] != "a@example.com" {
		t.Errorf("expected only a@example.com eligible, got %v", eligible)
	}
}

type fakeSuppressionChecker struct {
	emails []string
}

func (f *fakeSuppressionChecker) AllEmails(_ context.Context) ([]string, error) {
	return f.emails, nil
}

func TestEligibleFiltersSuppressedAddresses(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"recipients.csv":  "Email\na@example.com\nb@example.com\nc@example.com\n",
		"unsubscribe.csv": "",
	}}
	repo := newMemRepo()
	pool := New(store, message.New(repo), fixedKeys, &fakeSuppressionChecker{emails: []string{"b@example.com"}})
	campaign := &domain.Campaign{ID: "camp-1", Configuration: domain.Configuration{EmailListSource: domain.ListSourceGlobal}}

	eligible, err := pool.Eligible(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Eligible: %v", err)
	}
	if len(eligible) != 2 || eligible[0] != "a@example.com" || eligible[1] != "c@example.com" {
		t.Errorf("expected b@example.com excluded as suppressed, got %v", eligible)
	}
}

func TestEligibleResetsWarmupCycleWhenExhausted(t *testing.T) {
	store := &memStore{objects: map[string]string{
		"recipients.csv":  "Email\na@example.com\nb@example.com\n",
		"unsubscribe.csv": "",
	}}
	repo := newMemRepo()
	repo.sent["a@example.com"] = &domain.SentEmail{Campaign: "camp-1", Recipient: domain.RecipientRef{Email: "a@example.com"}}
	repo.sent["b@example.com"] = &domain.SentEmail{Campaign: "camp-1", Recipient: domain.RecipientRef{Email: "b@example.com"}}

	pool := New(store, message.New(repo), fixedKeys, nil)
	campaign := &domain.Campaign{
		ID: "camp-1",
		Configuration: domain.Configuration{
			EmailListSource: domain.ListSourceGlobal,
			WarmupMode:      domain.WarmupMode{Enabled: true, CurrentIndex: 1},
		},
	}

	eligible, err := pool.Eligible(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Eligible: %v", err)
	}
	if len(eligible) != 2 {
		t.Fatalf("expected both recipients eligible after warmup reset, got %v", eligible)
	}
	if campaign.Configuration.WarmupMode.CurrentIndex != 0 {
		t.Errorf("expected currentIndex reset to 0, got %d", campaign.Configuration.WarmupMode.CurrentIndex)
	}
	if len(repo.sent) != 0 {
		t.Errorf("expected SentEmail records purged, got %d remaining", len(repo.sent))
	}
}

func TestWindowWrapsAtEndOfList(t *testing.T) {
	eligible := []string{"a", "b", "c", "d", "e"}

	window, next := Window(eligible, true, 3, 3)
	if len(window) != 2 || window[0] != "d" || window[1] != "e" {
		t.Errorf("expected window [d e], got %v", window)
	}
	if next != 0 {
		t.Errorf("expected wrap to 0, got %d", next)
	}

	window2, next2 := Window(eligible, true, 0, 3)
	if len(window2) != 3 || window2[0] != "a" {
		t.Errorf("expected window [a b c], got %v", window2)
	}
	if next2 != 3 {
		t.Errorf("expected next index 3, got %d", next2)
	}
}

func TestWindowOutsideWarmupReturnsCappedSet(t *testing.T) {
	eligible := []string{"a", "b", "c"}
	window, next := Window(eligible, false, 0, 2)
	if len(window) != 2 {
		t.Errorf("expected 2 emails without warmup, got %v", window)
	}
	if next != 0 {
		t.Errorf("expected cursor untouched, got %d", next)
	}
}
