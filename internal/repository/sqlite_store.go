package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	// Pure Go SQLite driver.
	_ "modernc.org/sqlite"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/repository/migrations"
)

// Fixed-width UTC timestamps keep ORDER BY on the text column chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists files and processing operations in a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger domain.Logger
}

var (
	_ domain.FileRepository      = (*SQLiteStore)(nil)
	_ domain.OperationRepository = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at dbPath and applies pending migrations.
func NewSQLiteStore(dbPath string, logger domain.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, path: dbPath, logger: logger}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store ready", "path", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("Applied migration", "name", name)
	}

	return nil
}

// CreateFile inserts a new file record.
func (s *SQLiteStore) CreateFile(ctx context.Context, file *domain.FileRecord) error {
	if err := file.Validate(); err != nil {
		return err
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, display_name, mime_type, byte_size, storage_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, file.ID, file.DisplayName, file.MimeType, file.ByteSize, file.StoragePath,
		file.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetFile returns the file record with the given id.
func (s *SQLiteStore) GetFile(ctx context.Context, id string) (*domain.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, mime_type, byte_size, storage_path, created_at
		FROM files WHERE id = ?
	`, id)

	var f domain.FileRecord
	var createdAt string
	if err := row.Scan(&f.ID, &f.DisplayName, &f.MimeType, &f.ByteSize, &f.StoragePath, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}

// CreateOperation inserts a new operation.
func (s *SQLiteStore) CreateOperation(ctx context.Context, op *domain.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (id, file_id, operation, status, progress, output_file_id, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.FileID, string(op.Name), string(op.Status), op.Progress,
		nullString(op.OutputFileID), nullString(op.ErrorMessage),
		op.CreatedAt.UTC().Format(timeLayout), op.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}
	return nil
}

// GetOperation returns the operation with the given id.
func (s *SQLiteStore) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, operation, status, progress, output_file_id, error_message, created_at, updated_at
		FROM operations WHERE id = ?
	`, id)

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOperationNotFound
	}
	return op, err
}

// UpdateOperation stores the mutable fields of an operation.
func (s *SQLiteStore) UpdateOperation(ctx context.Context, op *domain.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	op.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE operations
		SET status = ?, progress = ?, output_file_id = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, string(op.Status), op.Progress, nullString(op.OutputFileID), nullString(op.ErrorMessage),
		op.UpdatedAt.Format(timeLayout), op.ID)
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOperationNotFound
	}
	return nil
}

// ListOperationsByFile returns the operations submitted for a file, newest first.
func (s *SQLiteStore) ListOperationsByFile(ctx context.Context, fileID string) ([]*domain.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, operation, status, progress, output_file_id, error_message, created_at, updated_at
		FROM operations WHERE file_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Operation, 0)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*domain.Operation, error) {
	var op domain.Operation
	var name, status, createdAt, updatedAt string
	var outputID, errMsg sql.NullString

	if err := row.Scan(&op.ID, &op.FileID, &name, &status, &op.Progress,
		&outputID, &errMsg, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning operation: %w", err)
	}

	op.Name = domain.OperationName(name)
	op.Status = domain.OperationStatus(status)
	op.OutputFileID = outputID.String
	op.ErrorMessage = errMsg.String
	op.CreatedAt = parseTime(createdAt)
	op.UpdatedAt = parseTime(updatedAt)
	return &op, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
