package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-annotator/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "test.db"), nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func createTestFile(t *testing.T, store *SQLiteStore, id string) *domain.FileRecord {
	t.Helper()
	f := &domain.FileRecord{
		ID:          id,
		DisplayName: id + ".pdf",
		MimeType:    "application/pdf",
		ByteSize:    1024,
		StoragePath: "uploads/" + id + ".pdf",
	}
	require.NoError(t, store.CreateFile(context.Background(), f))
	return f
}

func TestSQLiteStore_FileRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	created := createTestFile(t, store, "f1")
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1.pdf", got.DisplayName)
	assert.Equal(t, "application/pdf", got.MimeType)
	assert.Equal(t, int64(1024), got.ByteSize)
	assert.Equal(t, "uploads/f1.pdf", got.StoragePath)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_GetFileNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetFile(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestSQLiteStore_CreateFileValidates(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateFile(context.Background(), &domain.FileRecord{ID: "f1"})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "display_name", verr.Field)
}

func TestSQLiteStore_OperationLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestFile(t, store, "f1")

	op := &domain.Operation{
		ID:     "op1",
		FileID: "f1",
		Name:   domain.OperationCompress,
		Status: domain.StatusPending,
	}
	require.NoError(t, store.CreateOperation(ctx, op))

	got, err := store.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, domain.OperationCompress, got.Name)
	assert.Empty(t, got.OutputFileID)

	createTestFile(t, store, "out1")
	op.Status = domain.StatusCompleted
	op.Progress = 100
	op.OutputFileID = "out1"
	require.NoError(t, store.UpdateOperation(ctx, op))

	got, err = store.GetOperation(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "out1", got.OutputFileID)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestSQLiteStore_OperationRequiresFile(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateOperation(context.Background(), &domain.Operation{
		ID: "op1", FileID: "nope", Name: domain.OperationOCR, Status: domain.StatusPending,
	})
	assert.Error(t, err, "foreign key must reject unknown files")
}

func TestSQLiteStore_UpdateMissingOperation(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateOperation(context.Background(), &domain.Operation{
		ID: "ghost", FileID: "f1", Name: domain.OperationOCR, Status: domain.StatusFailed,
	})
	assert.ErrorIs(t, err, domain.ErrOperationNotFound)

	_, err = store.GetOperation(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrOperationNotFound)
}

func TestSQLiteStore_ListOperationsByFile(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestFile(t, store, "f1")
	createTestFile(t, store, "f2")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateOperation(ctx, &domain.Operation{
			ID: id, FileID: "f1", Name: domain.OperationRotate, Status: domain.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, store.CreateOperation(ctx, &domain.Operation{
		ID: "other", FileID: "f2", Name: domain.OperationSplit, Status: domain.StatusPending,
	}))

	ops, err := store.ListOperationsByFile(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{ops[0].ID, ops[1].ID, ops[2].ID})

	none, err := store.ListOperationsByFile(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := NewSQLiteStore(path, nopLogger{})
	require.NoError(t, err)
	createTestFile(t, store, "f1")
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path, nopLogger{})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetFile(context.Background(), "f1")
	assert.NoError(t, err)

	var versions int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}
