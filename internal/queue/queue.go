// Package queue implements the Delivery Queue Engine (§4.5): a durable,
// delayed, per-campaign-isolated job queue with a bounded worker pool and
// exponential-backoff retries.
package queue

import (
	"context"
	"time"

	"github.com/ignite/warmlane/internal/domain"
)

// JobState is one of the queue's lifecycle states (§4.5: "listByCampaign
// required for pause/resume and stats").
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateDelayed   JobState = "delayed"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Job is one unit of work in the Delivery Queue.
type Job struct {
	ID            string                  `json:"id"`
	CampaignID    string                  `json:"campaign_id"`
	Payload       domain.EmailJobPayload  `json:"payload"`
	State         JobState                `json:"state"`
	Priority      int                     `json:"priority"`
	AttemptsMade  int                     `json:"attempts_made"`
	EnqueuedAt    time.Time               `json:"enqueued_at"`
	ScheduledFor  time.Time               `json:"scheduled_for"`
}

// MaxAttempts is the total attempts a job gets, including the first
// (§4.5: "up to 3 attempts total").
const MaxAttempts = 3

// BaseBackoff is the first retry's backoff delay; attempt n backs off
// BaseBackoff * 2^(n-1) (§4.5: "exponential backoff starting at 2s").
const BaseBackoff = 2 * time.Second

// Retention windows (§4.5).
const (
	CompletedRetention = 24 * time.Hour
	CompletedMaxCount  = 1000
	FailedRetention    = 7 * 24 * time.Hour
)

// DefaultConcurrency is the reference worker pool size (§4.5, §5).
const DefaultConcurrency = 50

// BatchItem is one job within an EnqueueBatch call. The scheduling
// pipeline computes a distinct delay per message (one per plan cell, §4.4
// step "emit one job per survivor with delay = T - now"), so batches
// carry a delay/priority per item rather than one shared value.
type BatchItem struct {
	Payload  domain.EmailJobPayload
	Delay    time.Duration
	Priority int
}

// Queue is the Delivery Queue Engine's contract (§4.5). A Redis-backed
// implementation is the reference (internal/queue.RedisQueue); any engine
// satisfying this contract is acceptable (§6).
type Queue interface {
	// Enqueue durably persists job for activation after delay, breaking
	// ties within equal (delay, priority) by enqueue order.
	Enqueue(ctx context.Context, job domain.EmailJobPayload, delay time.Duration, priority int) (string, error)

	// EnqueueBatch enqueues many jobs, each with its own delay and
	// priority, in one round trip (§4.4: "pushed in batches, recommended
	// 1000").
	EnqueueBatch(ctx context.Context, items []BatchItem) ([]string, error)

	// ListByCampaign returns every job for a campaign currently in state.
	ListByCampaign(ctx context.Context, campaignID string, state JobState) ([]Job, error)

	// RemoveByCampaign removes all waiting and delayed jobs for a
	// campaign (§4.5, §5: active jobs run to completion under the
	// stale-job guard and are not interrupted).
	RemoveByCampaign(ctx context.Context, campaignID string) error

	// Run starts concurrency worker goroutines consuming jobs and calling
	// process for each, blocking until ctx is canceled.
	Run(ctx context.Context, concurrency int, process ProcessFunc) error
}

// ProcessFunc handles one job. Returning an error marks the attempt
// failed and triggers the retry/backoff policy (§4.5 processEmailJob).
type ProcessFunc func(ctx context.Context, job Job) error
