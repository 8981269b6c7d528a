package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard remembers webhook deliveries so exact replays can be dropped
// before touching the database. The gateway retries aggressively on anything
// it considers a failure, so replays are routine, not exceptional.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client, ttl: 24 * time.Hour}
}

// Seen marks the key and reports whether it had been marked before.
func (g *RedisGuard) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, "webhook:"+key, 1, g.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
