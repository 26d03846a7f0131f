package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/odds-crawler/internal/repository"
)

// AtomicWriter writes JSON documents with a write-verify-replace sequence:
// the payload goes to a temp file in the target directory, the temp file is
// read back and parsed, and only then renamed over the target. On any
// failure the temp file is removed and the target is left untouched.
type AtomicWriter struct {
	perm os.FileMode

	// test hooks
	afterTempWrite func(tmpPath string) error
	beforeReplace  func(tmpPath string) error
}

// NewAtomicWriter returns a writer creating files with mode 0644.
func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{perm: 0o644}
}

// WriteJSON atomically replaces path with the indented JSON encoding of v.
func (w *AtomicWriter) WriteJSON(path string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, w.perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if w.afterTempWrite != nil {
		if err = w.afterTempWrite(tmpPath); err != nil {
			return err
		}
	}

	if err = verifyJSON(tmpPath); err != nil {
		return err
	}

	if w.beforeReplace != nil {
		if err = w.beforeReplace(tmpPath); err != nil {
			return err
		}
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// verifyJSON re-reads path and checks it parses as a complete JSON document.
func verifyJSON(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: re-read %s: %v", repository.ErrPersistenceVerification, filepath.Base(path), err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s is empty", repository.ErrPersistenceVerification, filepath.Base(path))
	}
	var probe json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("%w: parse %s: %v", repository.ErrPersistenceVerification, filepath.Base(path), err)
	}
	return nil
}

// readJSON decodes path into v, returning os.ErrNotExist untouched.
func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
