package ingestor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/service/campaign"
	"github.com/ignite/warmlane/internal/service/message"
)

type fakeDoer struct {
	requestedURL string
	status       int
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requestedURL = req.URL.String()
	return &http.Response{StatusCode: f.status, Body: http.NoBody}, nil
}

type fakeEventLog struct {
	events []domain.CampaignEvent
}

func (f *fakeEventLog) Append(_ context.Context, e *domain.CampaignEvent) error {
	f.events = append(f.events, *e)
	return nil
}

type fakeMessages struct {
	byMessageID map[string]*domain.SentEmail
}

func (f *fakeMessages) ApplyProviderEvent(_ context.Context, messageID string, eventType domain.ProviderEventType, userAgent, ipAddress string) (*message.ProviderEventResult, error) {
	sent, ok := f.byMessageID[messageID]
	if !ok {
		return nil, message.ErrNotFound
	}

	mapped, _ := eventType.StatusFor()
	result := &message.ProviderEventResult{SentEmail: sent, NewStatus: mapped}

	switch eventType {
	case domain.ProviderOpen:
		result.FirstOpen = sent.Tracking.OpenCount == 0
		sent.Tracking.OpenCount++
	case domain.ProviderClick:
		result.FirstClick = sent.Tracking.ClickCount == 0
		sent.Tracking.ClickCount++
	}
	sent.Status = mapped
	return result, nil
}

type fakeCampaigns struct {
	deltas []campaign.ProgressDelta
}

func (f *fakeCampaigns) IncrementProgress(_ context.Context, id string, delta campaign.ProgressDelta) error {
	f.deltas = append(f.deltas, delta)
	return nil
}

type fakeAnalytics struct {
	delivered, bounced, opened, clicked int
	lastFirstOpen, lastFirstClick       bool
}

func (f *fakeAnalytics) RecordEmailDelivered(_ context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error {
	f.delivered++
	return nil
}
func (f *fakeAnalytics) RecordEmailBounced(_ context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error {
	f.bounced++
	return nil
}
func (f *fakeAnalytics) RecordEmailOpened(_ context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, firstOpen bool) error {
	f.opened++
	f.lastFirstOpen = firstOpen
	return nil
}
func (f *fakeAnalytics) RecordEmailClicked(_ context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, firstClick bool) error {
	f.clicked++
	f.lastFirstClick = firstClick
	return nil
}

type suppressionCall struct {
	email  string
	reason domain.SuppressionReason
	source domain.SuppressionSource
}

type fakeSuppression struct {
	calls []suppressionCall
}

func (f *fakeSuppression) Suppress(_ context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, _ string) error {
	f.calls = append(f.calls, suppressionCall{email: email, reason: reason, source: source})
	return nil
}

func newTestHandler(messages *fakeMessages) (*Handler, *fakeEventLog, *fakeCampaigns, *fakeAnalytics) {
	events := &fakeEventLog{}
	campaigns := &fakeCampaigns{}
	analyticsRecorder := &fakeAnalytics{}
	return New(&fakeDoer{status: http.StatusOK}, events, messages, campaigns, analyticsRecorder, &fakeSuppression{}), events, campaigns, analyticsRecorder
}

func TestSubscriptionConfirmationGetsSubscribeURL(t *testing.T) {
	doer := &fakeDoer{status: http.StatusOK}
	h := New(doer, &fakeEventLog{}, &fakeMessages{byMessageID: map[string]*domain.SentEmail{}}, &fakeCampaigns{}, &fakeAnalytics{}, &fakeSuppression{})

	body := `{"Type":"SubscriptionConfirmation","SubscribeURL":"https://sns.example.com/confirm?token=abc"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(body))
	req.Header.Set("x-amz-sns-message-type", "SubscriptionConfirmation")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if doer.requestedURL != "https://sns.example.com/confirm?token=abc" {
		t.Errorf("expected the SubscribeURL to be fetched, got %q", doer.requestedURL)
	}
}

func TestSubscriptionConfirmationMissingURLReturns400(t *testing.T) {
	h := New(&fakeDoer{}, &fakeEventLog{}, &fakeMessages{byMessageID: map[string]*domain.SentEmail{}}, &fakeCampaigns{}, &fakeAnalytics{}, &fakeSuppression{})

	body := `{"Type":"SubscriptionConfirmation"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(body))
	req.Header.Set("x-amz-sns-message-type", "SubscriptionConfirmation")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestDeliveryEventIncrementsCampaignAndAnalytics(t *testing.T) {
	sent := &domain.SentEmail{
		Campaign:  "camp-1",
		MessageID: "msg-1",
		Sender:    domain.SenderRef{Email: "a@sender.io"},
		Recipient: domain.RecipientRef{Domain: "example.com"},
		Metadata:  domain.SentEmailMetadata{Day: 2, Hour: 10},
	}
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{"msg-1": sent}}
	h, events, campaigns, analyticsRecorder := newTestHandler(messages)

	raw := `{"eventType":"Delivery","mail":{"messageId":"msg-1","tags":{"X-Campaign-ID":["camp-1"]}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(raw))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one campaign event appended, got %d", len(events.events))
	}
	if len(campaigns.deltas) != 1 || campaigns.deltas[0].Delivered != 1 {
		t.Errorf("expected one Delivered=1 progress delta, got %+v", campaigns.deltas)
	}
	if analyticsRecorder.delivered != 1 {
		t.Errorf("expected one delivered analytics record, got %d", analyticsRecorder.delivered)
	}
	if sent.Status != domain.SentDelivered {
		t.Errorf("expected sent email status delivered, got %s", sent.Status)
	}
}

func TestBounceEventSuppressesRecipient(t *testing.T) {
	sent := &domain.SentEmail{
		Campaign:  "camp-1",
		MessageID: "msg-1",
		Recipient: domain.RecipientRef{Email: "bounced@example.com", Domain: "example.com"},
		Metadata:  domain.SentEmailMetadata{Day: 1, Hour: 3},
	}
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{"msg-1": sent}}
	events := &fakeEventLog{}
	campaigns := &fakeCampaigns{}
	suppressed := &fakeSuppression{}
	h := New(&fakeDoer{status: http.StatusOK}, events, messages, campaigns, &fakeAnalytics{}, suppressed)

	raw := `{"eventType":"Bounce","mail":{"messageId":"msg-1","tags":{"X-Campaign-ID":["camp-1"]}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(raw))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(suppressed.calls) != 1 {
		t.Fatalf("expected one suppression call, got %d", len(suppressed.calls))
	}
	if suppressed.calls[0].email != "bounced@example.com" || suppressed.calls[0].reason != domain.ReasonHardBounce {
		t.Errorf("unexpected suppression call: %+v", suppressed.calls[0])
	}
}

func TestComplaintEventSuppressesRecipientWithoutCounters(t *testing.T) {
	sent := &domain.SentEmail{
		Campaign:  "camp-1",
		MessageID: "msg-1",
		Recipient: domain.RecipientRef{Email: "complained@example.com"},
		Metadata:  domain.SentEmailMetadata{Day: 1, Hour: 3},
	}
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{"msg-1": sent}}
	campaigns := &fakeCampaigns{}
	suppressed := &fakeSuppression{}
	h := New(&fakeDoer{status: http.StatusOK}, &fakeEventLog{}, messages, campaigns, &fakeAnalytics{}, suppressed)

	raw := `{"eventType":"Complaint","mail":{"messageId":"msg-1","tags":{"X-Campaign-ID":["camp-1"]}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(raw))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(campaigns.deltas) != 0 {
		t.Errorf("expected no campaign counter changes for a complaint, got %+v", campaigns.deltas)
	}
	if len(suppressed.calls) != 1 || suppressed.calls[0].reason != domain.ReasonComplaint {
		t.Fatalf("expected one complaint suppression call, got %+v", suppressed.calls)
	}
}

func TestOpenEventOnlyCountsFirstOpenTowardCampaignCounter(t *testing.T) {
	sent := &domain.SentEmail{
		Campaign:  "camp-2",
		MessageID: "msg-2",
		Metadata:  domain.SentEmailMetadata{Day: 1, Hour: 5},
	}
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{"msg-2": sent}}
	h, _, campaigns, analyticsRecorder := newTestHandler(messages)

	raw := `{"eventType":"Open","mail":{"messageId":"msg-2","tags":{"X-Campaign-ID":["camp-2"]}},"open":{"userAgent":"ua","ipAddress":"1.2.3.4"}}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(raw))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("open %d: expected 200, got %d", i, rec.Code)
		}
	}

	if len(campaigns.deltas) != 1 {
		t.Fatalf("expected exactly one Opened campaign counter increment (first open only), got %d", len(campaigns.deltas))
	}
	if analyticsRecorder.opened != 2 {
		t.Errorf("expected two analytics open records (one per open), got %d", analyticsRecorder.opened)
	}
}

func TestMissingCampaignTagDropsEvent(t *testing.T) {
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{}}
	h, events, campaigns, _ := newTestHandler(messages)

	raw := `{"eventType":"Delivery","mail":{"messageId":"msg-3","tags":{}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(raw))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for dropped event, got %d", rec.Code)
	}
	if len(events.events) != 0 || len(campaigns.deltas) != 0 {
		t.Errorf("expected no side effects for an event missing the campaign tag")
	}
}

func TestUnknownMessageIDWarnsAndStops(t *testing.T) {
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{}}
	h, events, campaigns, analyticsRecorder := newTestHandler(messages)

	raw := `{"eventType":"Delivery","mail":{"messageId":"ghost","tags":{"X-Campaign-ID":["camp-4"]}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(raw))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(events.events) != 1 {
		t.Errorf("expected the campaign event to still be appended before the SentEmail lookup, got %d", len(events.events))
	}
	if len(campaigns.deltas) != 0 || analyticsRecorder.delivered != 0 {
		t.Errorf("expected no campaign/analytics side effects when the SentEmail is unknown")
	}
}

func TestNotificationEnvelopeUnwrapsMessageField(t *testing.T) {
	sent := &domain.SentEmail{
		Campaign: "camp-5",
		Metadata: domain.SentEmailMetadata{Day: 1, Hour: 1},
	}
	messages := &fakeMessages{byMessageID: map[string]*domain.SentEmail{"msg-5": sent}}
	h, _, campaigns, _ := newTestHandler(messages)

	inner := `{"eventType":"Bounce","mail":{"messageId":"msg-5","tags":{"X-Campaign-ID":["camp-5"]}}}`
	envelope := `{"Type":"Notification","Message":` + jsonQuote(inner) + `}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/ses", bytes.NewBufferString(envelope))
	req.Header.Set("x-amz-sns-message-type", "Notification")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(campaigns.deltas) != 1 || campaigns.deltas[0].Bounced != 1 {
		t.Errorf("expected one Bounced=1 progress delta, got %+v", campaigns.deltas)
	}
}

// jsonQuote escapes s as a JSON string literal for embedding in a
// hand-built envelope body.
func jsonQuote(s string) string {
	escaped := ""
	for _, r := range s {
		switch r {
		case '"':
			escaped += `\"`
		case '\\':
			escaped += `\\`
		default:
			escaped += string(r)
		}
	}
	return `"` + escaped + `"`
}
