package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisDeduplicator SET NX поверх Redis
type RedisDeduplicator struct {
	client *redis.Client
}

// NewRedisDeduplicator создает дедупликатор
func NewRedisDeduplicator(client *redis.Client) *RedisDeduplicator {
	return &RedisDeduplicator{client: client}
}

var _ repository.Deduplicator = (*RedisDeduplicator)(nil)

func (d *RedisDeduplicator) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

func (d *RedisDeduplicator) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, key).Err()
}

// UpdateKey ключ для update_id Telegram в рамках проекта
func UpdateKey(projectID uuid.UUID, updateID int) string {
	return fmt.Sprintf("%s%s:%d", updateClaimPrefix, projectID, updateID)
}

// StripeEventKey ключ для id события Stripe
func StripeEventKey(eventID string) string {
	return stripeEventPrefix + eventID
}
