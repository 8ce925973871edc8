package domain

import (
	"strconv"
	"time"
)

// SentStatus is the lifecycle of a single SentEmail record. Status must
// progress monotonically: queued -> sent -> delivered -> opened/clicked,
// or -> failed/bounced (§3 invariant).
type SentStatus string

const (
	SentQueued       SentStatus = "queued"
	SentSent         SentStatus = "sent"
	SentDelivered    SentStatus = "delivered"
	SentFailed       SentStatus = "failed"
	SentBounced      SentStatus = "bounced"
	SentOpened       SentStatus = "opened"
	SentClicked      SentStatus = "clicked"
	SentUnsubscribed SentStatus = "unsubscribed"
)

// sentStatusRank orders the lifecycle for monotonicity checks. opened and
// clicked share a rank: either may follow delivered, and neither regresses
// the other.
var sentStatusRank = map[SentStatus]int{
	SentQueued:       0,
	SentSent:         1,
	SentDelivered:    2,
	SentOpened:       3,
	SentClicked:      3,
	SentFailed:       3,
	SentBounced:      3,
	SentUnsubscribed: 3,
}

// AdvancesFrom reports whether transitioning from 'from' to 'to' respects
// the monotonic lifecycle ordering (§3).
func (to SentStatus) AdvancesFrom(from SentStatus) bool {
	return sentStatusRank[to] >= sentStatusRank[from]
}

// RecipientRef identifies a message's recipient.
type RecipientRef struct {
	Email  string `json:"email" dynamodbav:"email"`
	Domain string `json:"domain" dynamodbav:"domain"`
}

// SenderRef identifies a message's sending identity.
type SenderRef struct {
	Email  string `json:"email" dynamodbav:"email"`
	Domain string `json:"domain" dynamodbav:"domain"`
}

// DeliveryStatus carries the per-status timestamps observed for a message.
type DeliveryStatus struct {
	SentAt         *time.Time `json:"sent_at,omitempty" dynamodbav:"sent_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty" dynamodbav:"delivered_at,omitempty"`
	FailedAt       *time.Time `json:"failed_at,omitempty" dynamodbav:"failed_at,omitempty"`
	BouncedAt      *time.Time `json:"bounced_at,omitempty" dynamodbav:"bounced_at,omitempty"`
	OpenedAt       *time.Time `json:"opened_at,omitempty" dynamodbav:"opened_at,omitempty"`
	ClickedAt      *time.Time `json:"clicked_at,omitempty" dynamodbav:"clicked_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty" dynamodbav:"unsubscribed_at,omitempty"`
}

// SentEmailMetadata records the plan cell and queue bookkeeping for a
// message (§3).
type SentEmailMetadata struct {
	Day             int           `json:"day" dynamodbav:"day"`
	Hour            int           `json:"hour" dynamodbav:"hour"`
	Minute          int           `json:"minute" dynamodbav:"minute"`
	Second          int           `json:"second" dynamodbav:"second"`
	AttemptNumber   int           `json:"attempt_number" dynamodbav:"attempt_number"`
	QueuedAt        time.Time     `json:"queued_at" dynamodbav:"queued_at"`
	ProcessingTime  time.Duration `json:"processing_time,omitempty" dynamodbav:"processing_time,omitempty"`
}

// Tracking holds engagement counters, which only ever increase (§3
// invariant: openCount/clickCount strictly non-decreasing).
type Tracking struct {
	OpenCount     int        `json:"open_count" dynamodbav:"open_count"`
	ClickCount    int        `json:"click_count" dynamodbav:"click_count"`
	LastOpenedAt  *time.Time `json:"last_opened_at,omitempty" dynamodbav:"last_opened_at,omitempty"`
	LastClickedAt *time.Time `json:"last_clicked_at,omitempty" dynamodbav:"last_clicked_at,omitempty"`
	UserAgent     string     `json:"user_agent,omitempty" dynamodbav:"user_agent,omitempty"`
	IPAddress     string     `json:"ip_address,omitempty" dynamodbav:"ip_address,omitempty"`
}

// SentEmail is one intended send per recipient per campaign per day,
// unique on (campaign, recipient.email, metadata.day) (§3). It is the
// Message Store's sole entity.
type SentEmail struct {
	Campaign       string            `json:"campaign" dynamodbav:"campaign"`
	Recipient      RecipientRef      `json:"recipient" dynamodbav:"recipient"`
	Sender         SenderRef         `json:"sender" dynamodbav:"sender"`
	TemplateName   string            `json:"template_name" dynamodbav:"template_name"`
	MessageID      string            `json:"message_id,omitempty" dynamodbav:"message_id,omitempty"`
	Status         SentStatus        `json:"status" dynamodbav:"status"`
	DeliveryStatus DeliveryStatus    `json:"delivery_status" dynamodbav:"delivery_status"`
	Metadata       SentEmailMetadata `json:"metadata" dynamodbav:"metadata"`
	Tracking       Tracking          `json:"tracking" dynamodbav:"tracking"`
	ErrorDetails   string            `json:"error_details,omitempty" dynamodbav:"error_details,omitempty"`
}

// Key returns the unique dedup key for this message (§3, §8 property 4).
func (s *SentEmail) Key() string {
	return s.Campaign + "|" + s.Recipient.Email + "|" + strconv.Itoa(s.Metadata.Day)
}
