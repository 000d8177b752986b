package loadest

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultRedisKey = "apiscope:load:workers"

// RedisCounter is a shared worker counter. Load generators add their workers
// when they start and subtract them when they finish, and the observer reads
// the total. It replaces process scanning when generators run on other hosts.
type RedisCounter struct {
	client *redis.Client
	key    string
	log    logrus.FieldLogger
}

func NewRedisCounter(client *redis.Client, key string, log logrus.FieldLogger) *RedisCounter {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisCounter{client: client, key: key, log: log}
}

// Track adjusts the counter by delta. The key expires after a day without
// updates so a crashed generator doesn't inflate estimates forever.
func (r *RedisCounter) Track(ctx context.Context, delta int) error {
	pipe := r.client.TxPipeline()
	pipe.IncrBy(ctx, r.key, int64(delta))
	pipe.Expire(ctx, r.key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "track %d workers", delta)
	}
	return nil
}

func (r *RedisCounter) Estimate(ctx context.Context) int {
	n, err := r.client.Get(ctx, r.key).Int()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		r.log.WithError(err).Warn("load estimate unavailable")
		return 0
	}
	if n < 0 {
		return 0
	}
	return n
}
