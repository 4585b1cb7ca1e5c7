package objstore

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olympiadqr/backend/internal/domain"
)

// Redis keeps blobs in Redis hashes, one hash per object carrying the
// bytes and the content type. Objects never expire; deletion is
// explicit.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies connectivity.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, domain.WrapErr(domain.KindFatal, err, "parse redis url")
	}
	opts.DialTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, domain.WrapErr(domain.KindRetryableIO, err, "ping redis")
	}
	log.Printf("[OBJSTORE] connected to redis")
	return &Redis{rdb: rdb, prefix: "objstore:"}, nil
}

// NewRedisWithClient wraps an existing client (shared with the queue).
func NewRedisWithClient(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, prefix: "objstore:"}
}

func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) key(bucket, key string) string {
	return r.prefix + bucket + ":" + key
}

func (r *Redis) Put(ctx context.Context, bucket, key string, obj Object) error {
	err := r.rdb.HSet(ctx, r.key(bucket, key),
		"data", obj.Data,
		"content_type", obj.ContentType,
	).Err()
	if err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "store object %s/%s", bucket, key)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, bucket, key string) (Object, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key(bucket, key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Object{}, domain.WrapErr(domain.KindRetryableIO, err, "fetch object %s/%s", bucket, key)
	}
	if len(vals) == 0 {
		return Object{}, domain.E(domain.KindNotFound, "object %s/%s not found", bucket, key)
	}
	return Object{
		Data:        []byte(vals["data"]),
		ContentType: vals["content_type"],
	}, nil
}

func (r *Redis) Delete(ctx context.Context, bucket, key string) error {
	if err := r.rdb.Del(ctx, r.key(bucket, key)).Err(); err != nil {
		return domain.WrapErr(domain.KindRetryableIO, err, "delete object %s/%s", bucket, key)
	}
	return nil
}

var _ Store = (*Redis)(nil)
