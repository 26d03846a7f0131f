package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/pkg/utils"
)

const attemptKeyPrefix = "attempts:"

// AttemptRepoImpl implements repository.AttemptRepository with expiring Redis counters.
type AttemptRepoImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAttemptRepo creates a new instance of AttemptRepoImpl. Counters expire
// ttl after their last increment.
func NewAttemptRepo(client *redis.Client, ttl time.Duration) *AttemptRepoImpl {
	return &AttemptRepoImpl{client: client, ttl: ttl}
}

// generateKey hashes the item id so arbitrary ids make safe keys.
func (r *AttemptRepoImpl) generateKey(date, itemID string) string {
	return fmt.Sprintf("%s%s:%s", attemptKeyPrefix, date, utils.HashKey(entity.NormalizeID(itemID)))
}

// Increment bumps the counter and refreshes its expiry in one round trip.
func (r *AttemptRepoImpl) Increment(ctx context.Context, date, itemID string) (int64, error) {
	key := r.generateKey(date, itemID)
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Reset forgets the item's attempts.
func (r *AttemptRepoImpl) Reset(ctx context.Context, date, itemID string) error {
	return r.client.Del(ctx, r.generateKey(date, itemID)).Err()
}
