package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olympiadqr/backend/internal/domain"
)

const (
	readyKey   = "jobs:ready"
	delayedKey = "jobs:delayed"
)

// RedisQueue brokers jobs through a Redis list. Delayed jobs park in a
// sorted set scored by their due time and are promoted on Dequeue.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue connects to the broker and verifies connectivity.
func NewRedisQueue(url string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, domain.WrapErr(domain.KindFatal, err, "parse broker url")
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "ping broker")
	}
	log.Printf("[JOBS] connected to broker")
	return &RedisQueue{rdb: rdb}, nil
}

// NewRedisQueueWithClient wraps an existing client.
func NewRedisQueueWithClient(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Close() error { return q.rdb.Close() }

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return domain.WrapErr(domain.KindFatal, err, "marshal job")
	}
	if err := q.rdb.LPush(ctx, readyKey, data).Err(); err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "enqueue job %s", job.Name)
	}
	return nil
}

func (q *RedisQueue) EnqueueIn(ctx context.Context, job Job, delay time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return domain.WrapErr(domain.KindFatal, err, "marshal job")
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, delayedKey, redis.Z{Score: due, Member: data}).Err(); err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "enqueue delayed job %s", job.Name)
	}
	return nil
}

// Dequeue promotes due delayed jobs and then blocks on the ready list.
func (q *RedisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if err := q.promoteDue(ctx); err != nil {
			return Job{}, err
		}
		res, err := q.rdb.BRPop(ctx, time.Second, readyKey).Result()
		if errors.Is(err, redis.Nil) {
			continue // poll delayed set again
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, domain.WrapErr(domain.KindRetryableIO, err, "dequeue job")
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return Job{}, domain.WrapErr(domain.KindFatal, err, "unmarshal job")
		}
		return job, nil
	}
}

func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.rdb.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "poll delayed jobs")
	}
	for _, member := range due {
		// Only the remover promotes; concurrent workers race on ZRem.
		removed, err := q.rdb.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return domain.WrapErr(domain.KindRetryableIO, err, "promote delayed job")
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, readyKey, member).Err(); err != nil {
			return domain.WrapErr(domain.KindRetryableIO, err, "promote delayed job")
		}
	}
	return nil
}

var _ Queue = (*RedisQueue)(nil)
