package filestore

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/odds-crawler/internal/entity"
	"github.com/user/odds-crawler/internal/repository"
)

func saveRecords(t *testing.T, repo *DetailRecordRepoImpl, date string, ids ...string) {
	t.Helper()
	at := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	for _, id := range ids {
		rec := entity.NewDetailRecord(entity.Item{ID: id, URL: "https://example.com/match-" + id, SourceDate: date}, at)
		rec.Finish(entity.StatusSuccess, at.Add(time.Second))
		require.NoError(t, repo.Save(context.Background(), rec))
	}
}

func TestArchiveBundlesRecords(t *testing.T) {
	ctx := context.Background()
	repo := NewDetailRecordRepo(t.TempDir(), nil)
	saveRecords(t, repo, "20250315", "m1", "m2")

	res, err := repo.Archive(ctx, "2025-03-15", false)
	require.NoError(t, err)
	assert.Equal(t, ArchiveCreated, res.Status)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, repo.ArchivePath("20250315"), res.Path)
	assert.Positive(t, res.BytesBefore)
	assert.Positive(t, res.BytesAfter)

	_, err = os.Stat(repo.Path("20250315", "m1"))
	assert.ErrorIs(t, err, os.ErrNotExist, "loose records are removed once bundled")

	got, err := repo.Load(ctx, "20250315", "m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", got.ItemID)
	assert.Equal(t, entity.StatusSuccess, got.Status)

	_, err = repo.Load(ctx, "20250315", "m9")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)
}

func TestArchiveSkipsExistingUnlessForced(t *testing.T) {
	ctx := context.Background()
	repo := NewDetailRecordRepo(t.TempDir(), nil)
	saveRecords(t, repo, "20250315", "m1")
	_, err := repo.Archive(ctx, "20250315", false)
	require.NoError(t, err)

	saveRecords(t, repo, "20250315", "m2")
	res, err := repo.Archive(ctx, "20250315", false)
	require.NoError(t, err)
	assert.Equal(t, ArchiveExists, res.Status)
	_, err = os.Stat(repo.Path("20250315", "m2"))
	require.NoError(t, err, "an existing bundle is not touched without force")

	res, err = repo.Archive(ctx, "20250315", true)
	require.NoError(t, err)
	assert.Equal(t, ArchiveCreated, res.Status)
	assert.Equal(t, 2, res.Files, "forced runs merge into the existing bundle")

	for _, id := range []string{"m1", "m2"} {
		_, err := repo.Load(ctx, "20250315", id)
		assert.NoError(t, err, id)
	}
}

func TestArchivePicksUpCompressedLeftovers(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	repo := NewDetailRecordRepo(base, nil)
	saveRecords(t, repo, "20250315", "m1")

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"itemId":"m2","sourceDate":"20250315","status":"success"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	leftover := filepath.Join(base, "details", "20250315", "item_m2.json.gz")
	require.NoError(t, os.WriteFile(leftover, buf.Bytes(), 0o644))

	res, err := repo.Archive(ctx, "20250315", false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	_, err = os.Stat(leftover)
	assert.ErrorIs(t, err, os.ErrNotExist)

	got, err := repo.Load(ctx, "20250315", "m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", got.ItemID)
}

func TestArchiveWithoutRecords(t *testing.T) {
	repo := NewDetailRecordRepo(t.TempDir(), nil)
	res, err := repo.Archive(context.Background(), "20250315", false)
	require.NoError(t, err)
	assert.Equal(t, ArchiveNoRecords, res.Status)
	assert.Zero(t, res.Files)

	_, err = repo.Archive(context.Background(), "15/03/2025", false)
	assert.Error(t, err)
}

func TestArchiveRejectsCorruptRecord(t *testing.T) {
	base := t.TempDir()
	repo := NewDetailRecordRepo(base, nil)
	saveRecords(t, repo, "20250315", "m1")
	corrupt := filepath.Join(base, "details", "20250315", "item_m2.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"itemId": "m2"`), 0o644))

	_, err := repo.Archive(context.Background(), "20250315", false)
	assert.ErrorIs(t, err, repository.ErrPersistenceVerification)

	_, err = os.Stat(repo.ArchivePath("20250315"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(repo.Path("20250315", "m1"))
	assert.NoError(t, err, "loose records survive a failed archive")
}
