package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/utils"
)

const ledgerFileName = "items.json"

// LedgerRepoImpl stores one ledger file per date under <base>/listings/<date>/.
// Writers for the same date are serialised in-process; cross-process
// writers must be serialised by the caller.
type LedgerRepoImpl struct {
	base   string
	writer *AtomicWriter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerRepo creates a ledger store rooted at base.
func NewLedgerRepo(base string, writer *AtomicWriter) *LedgerRepoImpl {
	if writer == nil {
		writer = NewAtomicWriter()
	}
	return &LedgerRepoImpl{base: base, writer: writer, locks: make(map[string]*sync.Mutex)}
}

// Path returns the ledger file location for date.
func (r *LedgerRepoImpl) Path(date string) string {
	return filepath.Join(r.base, "listings", date, ledgerFileName)
}

func (r *LedgerRepoImpl) lock(date string) func() {
	r.mu.Lock()
	l, ok := r.locks[date]
	if !ok {
		l = &sync.Mutex{}
		r.locks[date] = l
	}
	r.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Load reads the ledger for date.
func (r *LedgerRepoImpl) Load(ctx context.Context, date string) (*entity.Ledger, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	unlock := r.lock(date)
	defer unlock()
	return r.load(ctx, date)
}

func (r *LedgerRepoImpl) load(ctx context.Context, date string) (*entity.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var l entity.Ledger
	if err := readJSON(r.Path(date), &l); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("ledger %s: %w", date, repository.ErrLedgerNotFound)
		}
		return nil, fmt.Errorf("ledger %s: %w: %v", date, repository.ErrPersistenceVerification, err)
	}
	if l.ScrapeDate == "" {
		l.ScrapeDate = date
	}
	if l.Items == nil {
		l.Items = []entity.Item{}
	}
	l.TotalItems = len(l.Items)
	return &l, nil
}

// loadOrNew returns the stored ledger or a fresh one when none exists.
func (r *LedgerRepoImpl) loadOrNew(ctx context.Context, date string) (*entity.Ledger, error) {
	l, err := r.load(ctx, date)
	if errors.Is(err, repository.ErrLedgerNotFound) {
		return entity.NewLedger(date), nil
	}
	return l, err
}

// Save rewrites the whole ledger.
func (r *LedgerRepoImpl) Save(ctx context.Context, l *entity.Ledger) error {
	date, err := utils.NormalizeDate(l.ScrapeDate)
	if err != nil {
		return err
	}
	unlock := r.lock(date)
	defer unlock()
	l.ScrapeDate = date
	return r.save(ctx, l)
}

func (r *LedgerRepoImpl) save(ctx context.Context, l *entity.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.TotalItems = len(l.Items)
	if err := r.writer.WriteJSON(r.Path(l.ScrapeDate), l); err != nil {
		return fmt.Errorf("save ledger %s: %w", l.ScrapeDate, err)
	}
	return nil
}

// AppendItems merges items into the ledger, creating it when absent.
func (r *LedgerRepoImpl) AppendItems(ctx context.Context, date string, items []entity.Item) (int, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return 0, err
	}
	unlock := r.lock(date)
	defer unlock()

	l, err := r.loadOrNew(ctx, date)
	if err != nil {
		return 0, err
	}
	added := l.AddItems(items)
	if added == 0 {
		return 0, nil
	}
	if err := r.save(ctx, l); err != nil {
		return 0, err
	}
	return added, nil
}

// MarkComplete flags the ledger as fully collected, creating an empty one if needed.
func (r *LedgerRepoImpl) MarkComplete(ctx context.Context, date string, at time.Time) error {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return err
	}
	unlock := r.lock(date)
	defer unlock()

	l, err := r.loadOrNew(ctx, date)
	if err != nil {
		return err
	}
	l.MarkComplete(at)
	return r.save(ctx, l)
}

// UpdateStatus moves one item to status. The file is only rewritten when
// the status actually changes.
func (r *LedgerRepoImpl) UpdateStatus(ctx context.Context, date, itemID string, status entity.Status) error {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return err
	}
	unlock := r.lock(date)
	defer unlock()

	l, err := r.load(ctx, date)
	if err != nil {
		return err
	}
	i := l.Find(itemID)
	if i >= 0 && l.Items[i].Status == status {
		return nil
	}
	if err := l.SetStatus(itemID, status); err != nil {
		return err
	}
	return r.save(ctx, l)
}
