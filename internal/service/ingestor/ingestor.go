// Package ingestor implements the Event Ingestor (§4.6): the HTTPS
// webhook endpoint that turns AWS SES/SNS delivery notifications into
// SentEmail mutations, campaign counter updates, and DailyAnalytics
// writes.
package ingestor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/pkg/httpretry"
	"github.com/ignite/warmlane/internal/pkg/logger"
	"github.com/ignite/warmlane/internal/service/campaign"
	"github.com/ignite/warmlane/internal/service/message"
)

// EventAppender records the append-only CampaignEvent audit log (§3).
type EventAppender interface {
	Append(ctx context.Context, e *domain.CampaignEvent) error
}

// MessageMutator is the Message Store seam the ingestor drives (§4.6).
type MessageMutator interface {
	ApplyProviderEvent(ctx context.Context, messageID string, eventType domain.ProviderEventType, userAgent, ipAddress string) (*message.ProviderEventResult, error)
}

// CampaignCounters is the Campaign Store seam for the ingestor's
// unique-per-recipient counter increments (§4.6).
type CampaignCounters interface {
	IncrementProgress(ctx context.Context, id string, delta campaign.ProgressDelta) error
}

// AnalyticsRecorder is the Analytics Aggregator seam the ingestor drives
// for delivery/bounce/open/click events (§4.6, §4.10).
type AnalyticsRecorder interface {
	RecordEmailDelivered(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error
	RecordEmailBounced(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string) error
	RecordEmailOpened(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, firstOpen bool) error
	RecordEmailClicked(ctx context.Context, campaignID string, day, hour int, senderEmail, recipientDomain string, firstClick bool) error
}

// SuppressionRecorder is the suppression-list seam the ingestor drives
// whenever a bounce or complaint arrives, so the Recipient Pool stops
// offering that address on future plans (§4.2, §4.6).
type SuppressionRecorder interface {
	Suppress(ctx context.Context, email string, reason domain.SuppressionReason, source domain.SuppressionSource, campaignID string) error
}

// Handler is the `/webhooks/ses` HTTP endpoint (§6).
type Handler struct {
	http        httpretry.HTTPDoer
	events      EventAppender
	messages    MessageMutator
	campaigns   CampaignCounters
	analytics   AnalyticsRecorder
	suppression SuppressionRecorder
}

// New builds an Event Ingestor handler. doer is used to confirm SNS
// subscriptions (internal/pkg/httpretry.RetryClient in production).
func New(doer httpretry.HTTPDoer, events EventAppender, messages MessageMutator, campaigns CampaignCounters, analyticsRecorder AnalyticsRecorder, suppression SuppressionRecorder) *Handler {
	return &Handler{http: doer, events: events, messages: messages, campaigns: campaigns, analytics: analyticsRecorder, suppression: suppression}
}

// snsEnvelope is the outer AWS SNS wrapper (§6).
type snsEnvelope struct {
	Type         string `json:"Type"`
	SubscribeURL string `json:"SubscribeURL"`
	Message      string `json:"Message"`
}

// engagementDetail carries the per-event metadata SES attaches to open
// and click notifications.
type engagementDetail struct {
	UserAgent string `json:"userAgent"`
	IPAddress string `json:"ipAddress"`
	Link      string `json:"link,omitempty"`
}

// sesEvent is the raw SES event shape, used both directly (local testing,
// non-SNS delivery) and as the payload unwrapped from an SNS Notification's
// Message field (§6).
type sesEvent struct {
	EventType string `json:"eventType"`
	Mail      struct {
		MessageID string              `json:"messageId"`
		Tags      map[string][]string `json:"tags"`
	} `json:"mail"`
	Open  *engagementDetail `json:"open,omitempty"`
	Click *engagementDetail `json:"click,omitempty"`
}

const campaignTagKey = "X-Campaign-ID"

// ServeHTTP implements the webhook contract in §6: 200 on processed or
// ignored events, 400 on a SubscriptionConfirmation missing its
// SubscribeURL, 500 on an unhandled error.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var envelope snsEnvelope
	_ = json.Unmarshal(body, &envelope)

	msgType := r.Header.Get("x-amz-sns-message-type")
	if msgType == "" {
		msgType = envelope.Type
	}

	switch msgType {
	case "SubscriptionConfirmation":
		h.confirmSubscription(w, r.Context(), envelope)
		return
	case "Notification":
		var event sesEvent
		if err := json.Unmarshal([]byte(envelope.Message), &event); err != nil {
			logger.Warn("ingestor: failed to parse notification message", "error", err.Error())
			w.WriteHeader(http.StatusOK)
			return
		}
		h.processEvent(w, r.Context(), event)
		return
	default:
		// Fallback: the body itself is the raw SES event shape (§6).
		var event sesEvent
		if err := json.Unmarshal(body, &event); err != nil {
			http.Error(w, fmt.Sprintf("invalid event payload: %v", err), http.StatusInternalServerError)
			return
		}
		h.processEvent(w, r.Context(), event)
		return
	}
}

func (h *Handler) confirmSubscription(w http.ResponseWriter, ctx context.Context, envelope snsEnvelope) {
	if envelope.SubscribeURL == "" {
		http.Error(w, "missing SubscribeURL", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, envelope.SubscribeURL, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to build confirmation request: %v", err), http.StatusInternalServerError)
		return
	}
	resp, err := h.http.Do(req)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to confirm subscription: %v", err), http.StatusInternalServerError)
		return
	}
	resp.Body.Close()

	logger.Info("ingestor: confirmed sns subscription", "subscribe_url", envelope.SubscribeURL)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) processEvent(w http.ResponseWriter, ctx context.Context, event sesEvent) {
	tags := event.Mail.Tags[campaignTagKey]
	if len(tags) == 0 {
		logger.Debug("ingestor: dropping event with no campaign tag", "message_id", event.Mail.MessageID)
		w.WriteHeader(http.StatusOK)
		return
	}
	campaignID := tags[0]

	providerEventType := domain.ProviderEventType(event.EventType)
	userAgent, ipAddress, link := "", "", ""
	switch providerEventType {
	case domain.ProviderOpen:
		if event.Open != nil {
			userAgent, ipAddress = event.Open.UserAgent, event.Open.IPAddress
		}
	case domain.ProviderClick:
		if event.Click != nil {
			userAgent, ipAddress, link = event.Click.UserAgent, event.Click.IPAddress, event.Click.Link
		}
	}

	if err := h.events.Append(ctx, &domain.CampaignEvent{
		ID:        uuid.New().String(),
		Campaign:  campaignID,
		MessageID: event.Mail.MessageID,
		EventType: providerEventType,
		Timestamp: time.Now().UTC(),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		Link:      link,
	}); err != nil {
		logger.Error("ingestor: failed to append campaign event", "error", err.Error(), "campaign", campaignID)
	}

	result, err := h.messages.ApplyProviderEvent(ctx, event.Mail.MessageID, providerEventType, userAgent, ipAddress)
	if err == message.ErrNotFound {
		logger.Warn("ingestor: no sent email for provider message id, stopping", "message_id", event.Mail.MessageID, "campaign", campaignID)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to apply provider event: %v", err), http.StatusInternalServerError)
		return
	}

	if err := h.driveCounters(ctx, campaignID, providerEventType, result); err != nil {
		http.Error(w, fmt.Sprintf("failed to update campaign/analytics state: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// driveCounters applies the unique-per-recipient campaign counter
// increments and DailyAnalytics recorders for the mapped event (§4.6).
func (h *Handler) driveCounters(ctx context.Context, campaignID string, eventType domain.ProviderEventType, result *message.ProviderEventResult) error {
	sent := result.SentEmail
	day, hour := sent.Metadata.Day, sent.Metadata.Hour
	sender, recipientDomain := sent.Sender.Email, sent.Recipient.Domain

	switch eventType {
	case domain.ProviderDelivery:
		if err := h.campaigns.IncrementProgress(ctx, campaignID, campaign.ProgressDelta{Delivered: 1}); err != nil {
			return err
		}
		return h.analytics.RecordEmailDelivered(ctx, campaignID, day, hour, sender, recipientDomain)
	case domain.ProviderBounce:
		if err := h.campaigns.IncrementProgress(ctx, campaignID, campaign.ProgressDelta{Bounced: 1}); err != nil {
			return err
		}
		h.suppress(ctx, campaignID, sent.Recipient.Email, domain.ReasonHardBounce)
		return h.analytics.RecordEmailBounced(ctx, campaignID, day, hour, sender, recipientDomain)
	case domain.ProviderComplaint:
		h.suppress(ctx, campaignID, sent.Recipient.Email, domain.ReasonComplaint)
		return nil
	case domain.ProviderOpen:
		if result.FirstOpen {
			if err := h.campaigns.IncrementProgress(ctx, campaignID, campaign.ProgressDelta{Opened: 1}); err != nil {
				return err
			}
		}
		return h.analytics.RecordEmailOpened(ctx, campaignID, day, hour, sender, recipientDomain, result.FirstOpen)
	case domain.ProviderClick:
		if result.FirstClick {
			if err := h.campaigns.IncrementProgress(ctx, campaignID, campaign.ProgressDelta{Clicked: 1}); err != nil {
				return err
			}
		}
		return h.analytics.RecordEmailClicked(ctx, campaignID, day, hour, sender, recipientDomain, result.FirstClick)
	default:
		// Send, Reject, Rendering Failure only mutate SentEmail
		// (already done above); no campaign counters or analytics
		// are defined for them in §4.6.
		return nil
	}
}

// suppress records a bounce/complaint on the suppression list so the
// Recipient Pool excludes this address from future plans. Best-effort:
// failures are logged, never surfaced to the webhook caller, matching
// how CampaignEvent append failures are handled above.
func (h *Handler) suppress(ctx context.Context, campaignID, email string, reason domain.SuppressionReason) {
	if h.suppression == nil || email == "" {
		return
	}
	if err := h.suppression.Suppress(ctx, email, reason, domain.SourceESPWebhook, campaignID); err != nil {
		logger.Error("ingestor: failed to record suppression", "error", err.Error(), "campaign", campaignID)
	}
}
