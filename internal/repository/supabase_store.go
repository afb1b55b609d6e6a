package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"pdf-annotator/internal/domain"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseStore implements the file and operation repositories on Supabase tables.
type SupabaseStore struct {
	supabaseClient domain.SupabaseClient
	logger         domain.Logger
}

var (
	_ domain.FileRepository      = (*SupabaseStore)(nil)
	_ domain.OperationRepository = (*SupabaseStore)(nil)
)

// NewSupabaseStore creates a new Supabase-backed file and operation store
func NewSupabaseStore(supabaseClient domain.SupabaseClient, logger domain.Logger) *SupabaseStore {
	return &SupabaseStore{
		supabaseClient: supabaseClient,
		logger:         logger,
	}
}

func (r *SupabaseStore) db() (*supabase.Client, error) {
	client := r.supabaseClient.DB()
	if client == nil {
		return nil, fmt.Errorf("supabase client not initialized")
	}
	return client, nil
}

func (r *SupabaseStore) CreateFile(ctx context.Context, file *domain.FileRecord) error {
	if err := file.Validate(); err != nil {
		return err
	}
	client, err := r.db()
	if err != nil {
		return err
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}

	row := map[string]interface{}{
		"id":           file.ID,
		"display_name": sanitizeText(file.DisplayName),
		"mime_type":    file.MimeType,
		"byte_size":    file.ByteSize,
		"storage_path": file.StoragePath,
		"created_at":   file.CreatedAt.UTC().Format(time.RFC3339Nano),
	}

	_, _, err = client.From("files").
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	r.logger.Debug("File record created", "id", file.ID)
	return nil
}

func (r *SupabaseStore) GetFile(ctx context.Context, id string) (*domain.FileRecord, error) {
	client, err := r.db()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("files").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrFileNotFound
	}
	return mapToFileRecord(rows[0]), nil
}

func (r *SupabaseStore) CreateOperation(ctx context.Context, op *domain.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	client, err := r.db()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if op.CreatedAt.IsZero() {
		op.CreatedAt = now
	}
	op.UpdatedAt = now

	row := operationRow(op)
	row["id"] = op.ID
	row["file_id"] = op.FileID
	row["operation"] = string(op.Name)
	row["created_at"] = op.CreatedAt.UTC().Format(time.RFC3339Nano)

	_, _, err = client.From("operations").
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create operation: %w", err)
	}
	return nil
}

func (r *SupabaseStore) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	client, err := r.db()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("operations").
		Select("*", "", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrOperationNotFound
	}
	return mapToOperation(rows[0]), nil
}

func (r *SupabaseStore) UpdateOperation(ctx context.Context, op *domain.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	client, err := r.db()
	if err != nil {
		return err
	}
	op.UpdatedAt = time.Now().UTC()

	data, _, err := client.From("operations").
		Update(operationRow(op), "representation", "").
		Eq("id", op.ID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update operation: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrOperationNotFound
	}
	return nil
}

func (r *SupabaseStore) ListOperationsByFile(ctx context.Context, fileID string) ([]*domain.Operation, error) {
	client, err := r.db()
	if err != nil {
		return nil, err
	}

	data, _, err := client.From("operations").
		Select("*", "", false).
		Eq("file_id", fileID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Operation, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapToOperation(row))
	}
	return out, nil
}

// operationRow holds the columns written on every update.
func operationRow(op *domain.Operation) map[string]interface{} {
	row := map[string]interface{}{
		"status":         string(op.Status),
		"progress":       op.Progress,
		"output_file_id": nil,
		"error_message":  nil,
		"updated_at":     op.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if op.OutputFileID != "" {
		row["output_file_id"] = op.OutputFileID
	}
	if op.ErrorMessage != "" {
		row["error_message"] = sanitizeText(op.ErrorMessage)
	}
	return row
}

func decodeRows(data []byte) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if len(data) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return rows, nil
}

func mapToFileRecord(data map[string]interface{}) *domain.FileRecord {
	return &domain.FileRecord{
		ID:          getString(data, "id"),
		DisplayName: getString(data, "display_name"),
		MimeType:    getString(data, "mime_type"),
		ByteSize:    getInt64(data, "byte_size"),
		StoragePath: getString(data, "storage_path"),
		CreatedAt:   getTime(data, "created_at"),
	}
}

func mapToOperation(data map[string]interface{}) *domain.Operation {
	return &domain.Operation{
		ID:           getString(data, "id"),
		FileID:       getString(data, "file_id"),
		Name:         domain.OperationName(getString(data, "operation")),
		Status:       domain.OperationStatus(getString(data, "status")),
		Progress:     getInt(data, "progress"),
		OutputFileID: getString(data, "output_file_id"),
		ErrorMessage: getString(data, "error_message"),
		CreatedAt:    getTime(data, "created_at"),
		UpdatedAt:    getTime(data, "updated_at"),
	}
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt64(data map[string]interface{}, key string) int64 {
	if val, ok := data[key]; ok && val != nil {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

func getInt(data map[string]interface{}, key string) int {
	return int(getInt64(data, key))
}

func getTime(data map[string]interface{}, key string) time.Time {
	return parseTime(getString(data, key))
}

var reControl = regexp.MustCompile(`[\x00]`)

// sanitizeText removes characters that PostgreSQL rejects in text fields (notably NUL bytes).
func sanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = reControl.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "\\u0000", "")
}
