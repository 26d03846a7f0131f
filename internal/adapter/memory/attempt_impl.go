// Package memory holds in-process repository implementations used when no
// external store is configured.
package memory

import (
	"context"
	"sync"

	"github.com/user/odds-crawler/internal/entity"
)

// AttemptRepoImpl counts attempts for the lifetime of the process.
type AttemptRepoImpl struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewAttemptRepo() *AttemptRepoImpl {
	return &AttemptRepoImpl{counts: map[string]int64{}}
}

func key(date, itemID string) string {
	return date + "/" + entity.NormalizeID(itemID)
}

func (r *AttemptRepoImpl) Increment(_ context.Context, date, itemID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(date, itemID)
	r.counts[k]++
	return r.counts[k], nil
}

func (r *AttemptRepoImpl) Reset(_ context.Context, date, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.counts, key(date, itemID))
	return nil
}
