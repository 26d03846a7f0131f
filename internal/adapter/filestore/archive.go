package filestore

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/odds-crawler/internal/repository"
	"github.com/user/odds-crawler/pkg/utils"
)

// ArchiveStatus says what Archive did to a date.
type ArchiveStatus string

const (
	ArchiveCreated   ArchiveStatus = "created"
	ArchiveExists    ArchiveStatus = "already_archived"
	ArchiveNoRecords ArchiveStatus = "no_records"
)

// ArchiveResult reports one Archive call.
type ArchiveResult struct {
	Date        string        `json:"date"`
	Status      ArchiveStatus `json:"status"`
	Path        string        `json:"path,omitempty"`
	Files       int           `json:"files"`
	BytesBefore int64         `json:"bytesBefore"`
	BytesAfter  int64         `json:"bytesAfter"`
}

const gzSuffix = ".json.gz"

// ArchivePath is the tar bundle of a date's records.
func (r *DetailRecordRepoImpl) ArchivePath(date string) string {
	return filepath.Join(r.base, "details", date, date+"_items.tar")
}

// Archive bundles a date's record files into one tar of gzipped records
// and removes the loose files once the bundle has been verified. An
// existing bundle is left alone unless force is set, in which case loose
// records are merged into it. Loose .json.gz files left by an interrupted
// run are picked up as they are.
func (r *DetailRecordRepoImpl) Archive(ctx context.Context, date string, force bool) (*ArchiveResult, error) {
	date, err := utils.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	res := &ArchiveResult{Date: date, Path: r.ArchivePath(date)}

	existing, err := os.Stat(res.Path)
	switch {
	case err == nil && !force:
		res.Status = ArchiveExists
		res.BytesAfter = existing.Size()
		return res, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	loose, err := r.looseRecords(date)
	if err != nil {
		return nil, err
	}
	if len(loose) == 0 {
		res.Status = ArchiveNoRecords
		if existing != nil {
			res.Status = ArchiveExists
			res.BytesAfter = existing.Size()
		}
		return res, nil
	}

	members := map[string][]byte{}
	if existing != nil {
		if members, err = readArchive(res.Path); err != nil {
			return nil, err
		}
		res.BytesBefore = existing.Size()
	}
	for _, path := range loose {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, data, size, err := gzipRecord(path)
		if err != nil {
			return nil, err
		}
		members[name] = data
		res.BytesBefore += size
	}

	if err := writeArchive(res.Path, members); err != nil {
		return nil, err
	}
	for _, path := range loose {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove archived record: %w", err)
		}
	}

	info, err := os.Stat(res.Path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	res.Status = ArchiveCreated
	res.Files = len(members)
	res.BytesAfter = info.Size()
	return res, nil
}

// looseRecords lists record files of date that are not yet in the bundle.
func (r *DetailRecordRepoImpl) looseRecords(date string) ([]string, error) {
	dir := filepath.Join(r.base, "details", date)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "item_") {
			continue
		}
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, gzSuffix) {
			out = append(out, filepath.Join(dir, name))
		}
	}
	return out, nil
}

// gzipRecord returns the archive member for a record file. Plain records
// must parse as JSON before they are compressed.
func gzipRecord(path string) (name string, data []byte, size int64, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, 0, fmt.Errorf("read record: %w", err)
	}
	base := filepath.Base(path)
	if strings.HasSuffix(base, gzSuffix) {
		if _, err := gunzip(raw); err != nil {
			return "", nil, 0, fmt.Errorf("%w: %s: %v", repository.ErrPersistenceVerification, base, err)
		}
		return base, raw, int64(len(raw)), nil
	}
	if !json.Valid(raw) {
		return "", nil, 0, fmt.Errorf("%w: %s is not valid JSON", repository.ErrPersistenceVerification, base)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = base
	if _, err := zw.Write(raw); err != nil {
		return "", nil, 0, fmt.Errorf("compress %s: %w", base, err)
	}
	if err := zw.Close(); err != nil {
		return "", nil, 0, fmt.Errorf("compress %s: %w", base, err)
	}
	return strings.TrimSuffix(base, ".json") + gzSuffix, buf.Bytes(), int64(len(raw)), nil
}

// writeArchive writes members to a temp tar, verifies it and renames it
// over path.
func writeArchive(path string, members map[string][]byte) (err error) {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	tw := tar.NewWriter(tmp)
	now := time.Now()
	for _, name := range names {
		data := members[name]
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), ModTime: now}
		if err = tw.WriteHeader(hdr); err != nil {
			tmp.Close()
			return fmt.Errorf("write archive header: %w", err)
		}
		if _, err = tw.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("write archive member: %w", err)
		}
	}
	if err = tw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	got, err := readArchive(tmpPath)
	if err != nil {
		return err
	}
	if len(got) != len(members) {
		return fmt.Errorf("%w: archive holds %d of %d records", repository.ErrPersistenceVerification, len(got), len(members))
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace archive: %w", err)
	}
	return nil
}

// readArchive returns every member of the tar at path, checking that
// each one decompresses.
func readArchive(path string) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	out := map[string][]byte{}
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read archive: %v", repository.ErrPersistenceVerification, err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", repository.ErrPersistenceVerification, hdr.Name, err)
		}
		if _, err := gunzip(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", repository.ErrPersistenceVerification, hdr.Name, err)
		}
		out[hdr.Name] = data
	}
}

// archivedRecord returns the decompressed member for a record file name,
// or os.ErrNotExist.
func (r *DetailRecordRepoImpl) archivedRecord(date, fileName string) ([]byte, error) {
	members, err := readArchive(r.ArchivePath(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	data, ok := members[strings.TrimSuffix(fileName, ".json")+gzSuffix]
	if !ok {
		return nil, os.ErrNotExist
	}
	return gunzip(data)
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
