// Package queue is the redis-backed scan job queue shared by the API
// and the workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/privacychecker/audit-core/internal/audit"
)

var ErrTimeout = errors.New("queue timeout")

const queueName = "scan_jobs"

// ScanJob carries one crawler submission to a worker.
type ScanJob struct {
	ID         string           `json:"id"`
	Priority   int              `json:"priority"`
	Submission audit.Submission `json:"submission"`
	CreatedAt  time.Time        `json:"created_at"`
}

type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Push(ctx context.Context, job *ScanJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	// Priority is the sort score, lower pops first. Unprioritized jobs
	// fall back to FIFO by enqueue time.
	score := float64(job.Priority)
	if score == 0 {
		score = float64(time.Now().Unix())
	}

	if err := q.client.ZAdd(ctx, queueName, redis.Z{
		Score:  score,
		Member: data,
	}).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*ScanJob, error) {
	result, err := q.client.BZPopMin(ctx, timeout, queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("pop job: %w", err)
	}

	payload, ok := result.Member.(string)
	if !ok {
		return nil, errors.New("unexpected queue member type")
	}
	var job ScanJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, queueName).Result()
}
