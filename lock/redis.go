package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis takes locks with bsm/redislock.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger logrus.FieldLogger
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0, // use default DB
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedis builds a locker whose keys expire after ttl. A key held by
// someone else is retried every 50ms for up to ttl.
func NewRedis(rdb redislock.RedisClient, ttl time.Duration, logger logrus.FieldLogger) *Redis {
	backoff := 50 * time.Millisecond
	attempts := int(ttl / backoff)
	if attempts < 1 {
		attempts = 1
	}
	return &Redis{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(backoff), attempts),
		logger: logger,
	}
}

func (r *Redis) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	held := make([]*redislock.Lock, 0, len(keys))

	release := func() {
		// the caller's context may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, l := range held {
			if err := l.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				r.logger.WithFields(logrus.Fields{
					"key": l.Key(),
				}).Warn("failed to release redis lock: " + err.Error())
			}
		}
	}

	for _, key := range keys {
		l, err := r.client.Obtain(ctx, "lock:"+key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
		if err != nil {
			release()
			if errors.Is(err, redislock.ErrNotObtained) {
				return func() {}, fmt.Errorf("%s: %w", key, ErrNotObtained)
			}
			return func() {}, fmt.Errorf("obtain %s: %w", key, err)
		}
		held = append(held, l)
	}
	return release, nil
}
