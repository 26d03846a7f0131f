package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/utils"
)

// DetailRecordRepoImpl stores one file per item under <base>/details/<date>/.
type DetailRecordRepoImpl struct {
	base   string
	writer *AtomicWriter
}

// NewDetailRecordRepo creates a record store rooted at base.
func NewDetailRecordRepo(base string, writer *AtomicWriter) *DetailRecordRepoImpl {
	if writer == nil {
		writer = NewAtomicWriter()
	}
	return &DetailRecordRepoImpl{base: base, writer: writer}
}

// Path returns the record file location.
func (r *DetailRecordRepoImpl) Path(date, itemID string) string {
	return filepath.Join(r.base, "details", date, "item_"+safeName(itemID)+".json")
}

// Save writes rec atomically.
func (r *DetailRecordRepoImpl) Save(ctx context.Context, rec *entity.DetailRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	date, err := utils.NormalizeDate(rec.SourceDate)
	if err != nil {
		return err
	}
	if err := r.writer.WriteJSON(r.Path(date, rec.ItemID), rec); err != nil {
		return fmt.Errorf("save detail record %s: %w", rec.ItemID, err)
	}
	return nil
}

// Load reads the record of itemID for date.
func (r *DetailRecordRepoImpl) Load(ctx context.Context, date, itemID string) (*entity.DetailRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	path := r.Path(date, itemID)
	var rec entity.DetailRecord
	err = readJSON(path, &rec)
	if errors.Is(err, os.ErrNotExist) {
		err = r.loadArchived(date, filepath.Base(path), &rec)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("detail record %s/%s: %w", date, itemID, repository.ErrRecordNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

// loadArchived decodes a record from the date's bundle.
func (r *DetailRecordRepoImpl) loadArchived(date, fileName string, rec *entity.DetailRecord) error {
	raw, err := r.archivedRecord(date, fileName)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return fmt.Errorf("decode archived %s: %w", fileName, err)
	}
	return nil
}

// safeName keeps item ids from escaping the record directory.
func safeName(id string) string {
	id = entity.NormalizeID(id)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
