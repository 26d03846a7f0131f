package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/user/odds-crawler/internal/repository"
)

const dateQueueKey = "crawler:dates"

// DateQueueRepoImpl implements repository.DateQueueRepository with a Redis list.
type DateQueueRepoImpl struct {
	client *redis.Client
}

// NewDateQueueRepo creates a new instance of DateQueueRepoImpl.
func NewDateQueueRepo(client *redis.Client) *DateQueueRepoImpl {
	return &DateQueueRepoImpl{client: client}
}

// Push queues date behind the ones already waiting.
func (r *DateQueueRepoImpl) Push(ctx context.Context, date string) error {
	return r.client.LPush(ctx, dateQueueKey, date).Err()
}

// Pop removes the oldest date. An empty list yields repository.ErrQueueEmpty.
func (r *DateQueueRepoImpl) Pop(ctx context.Context) (string, error) {
	date, err := r.client.RPop(ctx, dateQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	return date, err
}

// Size returns the current number of queued dates.
func (r *DateQueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, dateQueueKey).Result()
}
