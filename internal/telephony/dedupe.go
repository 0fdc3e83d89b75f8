package telephony

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"voicedesk/pkg/utils"
)

// DeliveryGate decides whether a webhook delivery is the first of its kind.
// Claim returns false for a delivery already seen within the dedupe window.
// Release undoes a claim when processing fails, so the provider's retry of
// the same delivery is processed instead of being dropped as a duplicate.
type DeliveryGate interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisDeliveryGate claims deliveries atomically in Redis so that concurrent
// duplicate callbacks across instances are processed exactly once.
type RedisDeliveryGate struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDeliveryGate(rdb *redis.Client, ttl time.Duration) *RedisDeliveryGate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeliveryGate{rdb: rdb, ttl: ttl}
}

func (g *RedisDeliveryGate) Claim(ctx context.Context, key string) (bool, error) {
	return utils.ClaimDelivery(ctx, g.rdb, "webhook:delivery:"+key, g.ttl)
}

func (g *RedisDeliveryGate) Release(ctx context.Context, key string) error {
	return utils.ReleaseDelivery(ctx, g.rdb, "webhook:delivery:"+key)
}
