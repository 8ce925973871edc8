package analytics

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/ignite/warmlane/internal/domain"
)

type memRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.DailyAnalytics
}

func newMemRepo() *memRepo {
	return &memRepo{docs: map[string]*domain.DailyAnalytics{}}
}

func (r *memRepo) key(campaignID string, day int) string {
	return campaignID + "|" + strconv.Itoa(day)
}

func (r *memRepo) Get(_ context.Context, campaignID string, day int) (*domain.DailyAnalytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	da, ok := r.docs[r.key(campaignID, day)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *da
	return &cp, nil
}

func (r *memRepo) EnsureExists(_ context.Context, campaignID string, day int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(campaignID, day)
	if _, ok := r.docs[k]; !ok {
		r.docs[k] = domain.NewDailyAnalytics(campaignID, day)
	}
	return nil
}

func (r *memRepo) apply(da *domain.DailyAnalytics, delta SummaryDelta) {
	da.Summary.TotalSent += delta.Sent
	da.Summary.TotalDelivered += delta.Delivered
	da.Summary.TotalFailed += delta.Failed
	da.Summary.TotalBounced += delta.Bounced
	da.Summary.TotalOpened += delta.Opened
	da.Summary.UniqueOpens += delta.UniqueOpens
	da.Summary.TotalClicked += delta.Clicked
	da.Summary.UniqueClicks += delta.UniqueClicks
}

func (r *memRepo) IncrementSummary(_ context.Context, campaignID string, day int, delta SummaryDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	da := r.docs[r.key(campaignID, day)]
	r.apply(da, delta)
	return nil
}

func (r *memRepo) IncrementHourly(_ context.Context, campaignID string, day, hour int, delta SummaryDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	da := r.docs[r.key(campaignID, day)]
	bucket := &da.HourlyBreakdown[hour]
	bucket.Hour = hour
	bucket.TotalSent += delta.Sent
	bucket.TotalDelivered += delta.Delivered
	bucket.TotalFailed += delta.Failed
	bucket.TotalBounced += delta.Bounced
	bucket.TotalOpened += delta.Opened
	bucket.UniqueOpens += delta.UniqueOpens
	bucket.TotalClicked += delta.Clicked
	bucket.UniqueClicks += delta.UniqueClicks
	return nil
}

func (r *memRepo) IncrementDomain(_ context.Context, campaignID string, day int, recipientDomain string, delta SummaryDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	da := r.docs[r.key(campaignID, day)]
	for i := range da.DomainBreakdown {
		if da.DomainBreakdown[i].Domain == recipientDomain {
			da.DomainBreakdown[i].TotalSent += delta.Sent
			da.DomainBreakdown[i].TotalDelivered += delta.Delivered
			return nil
		}
	}
	da.DomainBreakdown = append(da.DomainBreakdown, domain.DomainBucket{
		Domain:           recipientDomain,
		AnalyticsSummary: domain.AnalyticsSummary{TotalSent: delta.Sent, TotalDelivered: delta.Delivered},
	})
	return nil
}

func (r *memRepo) IncrementSender(_ context.Context, campaignID string, day int, senderEmail string, delta SummaryDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	da := r.docs[r.key(campaignID, day)]
	for i := range da.SenderBreakdown {
		if da.SenderBreakdown[i].Sender == senderEmail {
			da.SenderBreakdown[i].TotalSent += delta.Sent
			return nil
		}
	}
	da.SenderBreakdown = append(da.SenderBreakdown, domain.SenderBucket{
		Sender:           senderEmail,
		AnalyticsSummary: domain.AnalyticsSummary{TotalSent: delta.Sent},
	})
	return nil
}

func (r *memRepo) PutRates(_ context.Context, campaignID string, day int, rates domain.AnalyticsRates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	da := r.docs[r.key(campaignID, day)]
	da.Rates = rates
	return nil
}

type memSentEmails struct {
	rows []domain.SentEmail
}

func (m *memSentEmails) ListByCampaignDay(_ context.Context, campaignID string, day int) ([]domain.SentEmail, error) {
	var out []domain.SentEmail
	for _, r := range m.rows {
		if r.Campaign == campaignID && r.Metadata.Day == day {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestRecordEmailSentThenDeliveredRecomputesRates(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, &memSentEmails{})
	ctx := context.Background()

	if err := svc.RecordEmailSent(ctx, "camp-1", 1, 9, "a@sender.io", "example.com"); err != nil {
		t.Fatalf("RecordEmailSent: %v", err)
	}
	if err := svc.RecordEmailDelivered(ctx, "camp-1", 1, 9, "a@sender.io", "example.com"); err != nil {
		t.Fatalf("RecordEmailDelivered: %v", err)
	}

	da, err := repo.Get(ctx, "camp-1", 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if da.Summary.TotalSent != 1 || da.Summary.TotalDelivered != 1 {
		t.Fatalf("unexpected summary: %+v", da.Summary)
	}
	if da.Rates.DeliveryRate != 1 {
		t.Errorf("expected deliveryRate=1, got %v", da.Rates.DeliveryRate)
	}
	if da.HourlyBreakdown[9].TotalSent != 1 || da.HourlyBreakdown[9].TotalDelivered != 1 {
		t.Errorf("expected hour 9 bucket to carry both counters, got %+v", da.HourlyBreakdown[9])
	}
	if len(da.DomainBreakdown) != 1 || da.DomainBreakdown[0].Domain != "example.com" {
		t.Errorf("expected one domain bucket for example.com, got %+v", da.DomainBreakdown)
	}
}

func TestRecordEmailOpenedOnlyBumpsUniqueOpensOnFirstOpen(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, &memSentEmails{})
	ctx := context.Background()

	if err := svc.RecordEmailOpened(ctx, "camp-2", 1, 0, "", "", true); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := svc.RecordEmailOpened(ctx, "camp-2", 1, 0, "", "", false); err != nil {
		t.Fatalf("second open: %v", err)
	}

	da, err := repo.Get(ctx, "camp-2", 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if da.Summary.TotalOpened != 2 {
		t.Errorf("expected totalOpened=2, got %d", da.Summary.TotalOpened)
	}
	if da.Summary.UniqueOpens != 1 {
		t.Errorf("expected uniqueOpens=1, got %d", da.Summary.UniqueOpens)
	}
}

func TestGetRealtimeStatsNormalizesLegacyStatusNames(t *testing.T) {
	sent := &memSentEmails{rows: []domain.SentEmail{
		{Campaign: "camp-3", Status: "send", Metadata: domain.SentEmailMetadata{Day: 1}},
		{Campaign: "camp-3", Status: "delivery", Metadata: domain.SentEmailMetadata{Day: 1}},
		{Campaign: "camp-3", Status: domain.SentOpened, Metadata: domain.SentEmailMetadata{Day: 1}, Tracking: domain.Tracking{OpenCount: 2}},
		{Campaign: "camp-3", Status: domain.SentSent, Metadata: domain.SentEmailMetadata{Day: 2}},
	}}
	svc := New(newMemRepo(), sent)

	stats, err := svc.GetRealtimeStats(context.Background(), "camp-3", 1)
	if err != nil {
		t.Fatalf("GetRealtimeStats: %v", err)
	}
	if stats.ByStatus[domain.SentSent] != 1 {
		t.Errorf("expected legacy 'send' normalized to sent=1, got %d", stats.ByStatus[domain.SentSent])
	}
	if stats.ByStatus[domain.SentDelivered] != 1 {
		t.Errorf("expected legacy 'delivery' normalized to delivered=1, got %d", stats.ByStatus[domain.SentDelivered])
	}
	if stats.ByStatus[domain.SentOpened] != 1 {
		t.Errorf("expected opened=1, got %d", stats.ByStatus[domain.SentOpened])
	}
	if stats.TotalOpens != 2 {
		t.Errorf("expected totalOpens=2, got %d", stats.TotalOpens)
	}
	if len(stats.ByStatus) != 3 {
		t.Errorf("expected day filter to exclude camp-3 day 2 row, got byStatus=%+v", stats.ByStatus)
	}
}
