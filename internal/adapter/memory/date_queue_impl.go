package memory

import (
	"context"
	"sync"

	"github.com/user/odds-crawler/internal/repository"
)

// DateQueueRepoImpl is a FIFO of dates held in memory.
type DateQueueRepoImpl struct {
	mu    sync.Mutex
	dates []string
}

func NewDateQueueRepo() *DateQueueRepoImpl {
	return &DateQueueRepoImpl{}
}

func (r *DateQueueRepoImpl) Push(_ context.Context, date string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, date)
	return nil
}

func (r *DateQueueRepoImpl) Pop(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.dates) == 0 {
		return "", repository.ErrQueueEmpty
	}
	d := r.dates[0]
	r.dates = r.dates[1:]
	return d, nil
}

func (r *DateQueueRepoImpl) Size(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.dates)), nil
}
