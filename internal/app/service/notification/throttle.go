package notification

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const throttleKeyPrefix = "creditledger:notify:"

// Throttle suppresses duplicate notifications across instances with a redis
// SET NX key per dedup key. A nil client or a redis failure lets everything
// through.
type Throttle struct {
	client *goredis.Client
	ttl    time.Duration
	log    *zap.SugaredLogger
}

func NewThrottle(client *goredis.Client, ttl time.Duration, log *zap.SugaredLogger) *Throttle {
	return &Throttle{client: client, ttl: ttl, log: log}
}

func (t *Throttle) Allow(ctx context.Context, key string) bool {
	if t == nil || t.client == nil || key == "" || t.ttl <= 0 {
		return true
	}
	ok, err := t.client.SetNX(ctx, throttleKeyPrefix+key, time.Now().UTC().Unix(), t.ttl).Result()
	if err != nil {
		t.log.Warnw("notification throttle unavailable", "key", key, "err", err)
		return true
	}
	return ok
}

// Release forgets key so that a later message may be delivered.
func (t *Throttle) Release(ctx context.Context, key string) {
	if t == nil || t.client == nil || key == "" {
		return
	}
	if err := t.client.Del(ctx, throttleKeyPrefix+key).Err(); err != nil {
		t.log.Warnw("notification throttle release failed", "key", key, "err", err)
	}
}
