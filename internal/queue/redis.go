package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/warmlane/internal/domain"
	"github.com/ignite/warmlane/internal/pkg/logger"
)

// RedisQueue is the reference Delivery Queue Engine implementation, built
// on sorted sets for the delayed/waiting tiers and per-campaign index
// sets for isolation (§4.5), in the spirit of the teacher's Lua-script
// atomic operations over go-redis (internal/pkg/distlock/redis_lock.go).
type RedisQueue struct {
	client *redis.Client
	prefix string
	seq    uint64
	seqMu  sync.Mutex
}

// NewRedisQueue builds a RedisQueue over an existing client. prefix
// namespaces all keys (recommended: "warmlane:queue:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "warmlane:queue:"
	}
	return &RedisQueue{client: client, prefix: prefix}
}

func (q *RedisQueue) jobKey(id string) string      { return q.prefix + "job:" + id }
func (q *RedisQueue) waitingKey() string           { return q.prefix + "waiting" }
func (q *RedisQueue) delayedKey() string           { return q.prefix + "delayed" }
func (q *RedisQueue) completedListKey() string     { return q.prefix + "completed" }
func (q *RedisQueue) failedListKey() string        { return q.prefix + "failed" }
func (q *RedisQueue) campaignKey(id string) string { return q.prefix + "campaign:" + id }

func (q *RedisQueue) nextSeq() uint64 {
	q.seqMu.Lock()
	defer q.seqMu.Unlock()
	q.seq++
	return q.seq
}

// waitingScore orders pop order: higher priority first, then FIFO within
// equal priority (§4.5: "FIFO within equal (delay, priority)").
func waitingScore(priority int, seq uint64) float64 {
	return float64(-priority)*1e12 + float64(seq)
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload domain.EmailJobPayload, delay time.Duration, priority int) (string, error) {
	ids, err := q.EnqueueBatch(ctx, []BatchItem{{Payload: payload, Delay: delay, Priority: priority}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (q *RedisQueue) EnqueueBatch(ctx context.Context, items []BatchItem) ([]string, error) {
	now := time.Now().UTC()
	ids := make([]string, len(items))

	pipe := q.client.Pipeline()
	for i, item := range items {
		id := uuid.NewString()
		ids[i] = id
		payload := item.Payload

		job := Job{
			ID:           id,
			CampaignID:   payload.CampaignID,
			Payload:      payload,
			Priority:     item.Priority,
			EnqueuedAt:   now,
			ScheduledFor: now.Add(item.Delay),
		}
		if item.Delay <= 0 {
			job.State = StateWaiting
		} else {
			job.State = StateDelayed
		}

		data, err := json.Marshal(job)
		if err != nil {
			return nil, fmt.Errorf("queue: marshal job: %w", err)
		}

		pipe.Set(ctx, q.jobKey(id), data, 0)
		pipe.SAdd(ctx, q.campaignKey(payload.CampaignID), id)

		if item.Delay <= 0 {
			pipe.ZAdd(ctx, q.waitingKey(), redis.Z{Score: waitingScore(item.Priority, q.nextSeq()), Member: id})
		} else {
			pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(job.ScheduledFor.UnixNano()), Member: id})
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue: enqueue batch: %w", err)
	}
	return ids, nil
}

func (q *RedisQueue) getJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (q *RedisQueue) saveJob(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	return q.client.Set(ctx, q.jobKey(job.ID), data, ttl).Err()
}

func (q *RedisQueue) ListByCampaign(ctx context.Context, campaignID string, state JobState) ([]Job, error) {
	ids, err := q.client.SMembers(ctx, q.campaignKey(campaignID)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: list campaign members: %w", err)
	}

	var out []Job
	for _, id := range ids {
		job, err := q.getJob(ctx, id)
		if err != nil {
			continue // evicted (retention expiry) or raced with removal
		}
		if job.State == state {
			out = append(out, *job)
		}
	}
	return out, nil
}

// RemoveByCampaign purges waiting and delayed jobs for a campaign. Active
// jobs are left to run to completion under the stale-job guard (§5
// cancellation semantics) rather than interrupted mid-flight.
func (q *RedisQueue) RemoveByCampaign(ctx context.Context, campaignID string) error {
	ids, err := q.client.SMembers(ctx, q.campaignKey(campaignID)).Result()
	if err != nil {
		return fmt.Errorf("queue: list campaign members: %w", err)
	}

	for _, id := range ids {
		job, err := q.getJob(ctx, id)
		if err != nil {
			continue
		}
		if job.State != StateWaiting && job.State != StateDelayed {
			continue
		}

		pipe := q.client.Pipeline()
		pipe.ZRem(ctx, q.waitingKey(), id)
		pipe.ZRem(ctx, q.delayedKey(), id)
		pipe.Del(ctx, q.jobKey(id))
		pipe.SRem(ctx, q.campaignKey(campaignID), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("queue: remove job %s: %w", id, err)
		}
	}
	return nil
}

// promote moves every delayed job whose readiness time has passed into
// the waiting set. Not perfectly atomic across the zset move and the job
// blob rewrite — acceptable for a reference implementation; production
// scale should do this with a single Lua script.
func (q *RedisQueue) promote(ctx context.Context) error {
	now := float64(time.Now().UnixNano())
	ids, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%f", now), Count: 500,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		job, err := q.getJob(ctx, id)
		if err != nil {
			q.client.ZRem(ctx, q.delayedKey(), id)
			continue
		}
		job.State = StateWaiting
		if err := q.saveJob(ctx, job, 0); err != nil {
			return err
		}

		pipe := q.client.Pipeline()
		pipe.ZRem(ctx, q.delayedKey(), id)
		pipe.ZAdd(ctx, q.waitingKey(), redis.Z{Score: waitingScore(job.Priority, q.nextSeq()), Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the promoter loop and concurrency worker goroutines,
// blocking until ctx is canceled (§4.5, §5: "parallel workers consuming
// one durable queue").
func (q *RedisQueue) Run(ctx context.Context, concurrency int, process ProcessFunc) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.promote(ctx); err != nil {
					logger.Error("queue promote failed", "error", err.Error())
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			q.worker(ctx, workerID, process)
		}(i)
	}

	wg.Wait()
	return nil
}

func (q *RedisQueue) worker(ctx context.Context, workerID int, process ProcessFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := q.client.BZPopMin(ctx, 1*time.Second, q.waitingKey()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue worker pop failed", "worker", workerID, "error", err.Error())
			continue
		}

		id, ok := result.Member.(string)
		if !ok {
			continue
		}
		q.handle(ctx, id, process)
	}
}

func (q *RedisQueue) handle(ctx context.Context, id string, process ProcessFunc) {
	job, err := q.getJob(ctx, id)
	if err != nil {
		return
	}

	job.State = StateActive
	if err := q.saveJob(ctx, job, 0); err != nil {
		logger.Error("queue mark active failed", "job_id", id, "error", err.Error())
	}

	procErr := process(ctx, *job)
	if procErr == nil {
		job.State = StateCompleted
		_ = q.saveJob(ctx, job, CompletedRetention)
		pipe := q.client.Pipeline()
		pipe.LPush(ctx, q.completedListKey(), id)
		pipe.LTrim(ctx, q.completedListKey(), 0, CompletedMaxCount-1)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Error("queue completed bookkeeping failed", "job_id", id, "error", err.Error())
		}
		return
	}

	job.AttemptsMade++
	if job.AttemptsMade < MaxAttempts {
		backoff := BaseBackoff * time.Duration(1<<uint(job.AttemptsMade-1))
		job.State = StateDelayed
		job.ScheduledFor = time.Now().UTC().Add(backoff)
		if err := q.saveJob(ctx, job, 0); err != nil {
			logger.Error("queue retry save failed", "job_id", id, "error", err.Error())
			return
		}
		if err := q.client.ZAdd(ctx, q.delayedKey(), redis.Z{
			Score: float64(job.ScheduledFor.UnixNano()), Member: id,
		}).Err(); err != nil {
			logger.Error("queue retry schedule failed", "job_id", id, "error", err.Error())
		}
		return
	}

	job.State = StateFailed
	_ = q.saveJob(ctx, job, FailedRetention)
	if err := q.client.LPush(ctx, q.failedListKey(), id).Err(); err != nil {
		logger.Error("queue failed bookkeeping failed", "job_id", id, "error", err.Error())
	}
}
