package domain

import (
	"strings"
	"time"
)

// OperationName is one of the simulated processing operations.
type OperationName string

const (
	OperationConvert   OperationName = "convert"
	OperationCompress  OperationName = "compress"
	OperationEncrypt   OperationName = "encrypt"
	OperationDecrypt   OperationName = "decrypt"
	OperationMerge     OperationName = "merge"
	OperationSplit     OperationName = "split"
	OperationRotate    OperationName = "rotate"
	OperationWatermark OperationName = "watermark"
	OperationOCR       OperationName = "ocr"
)

var knownOperations = map[OperationName]struct{}{
	OperationConvert: {}, OperationCompress: {}, OperationEncrypt: {},
	OperationDecrypt: {}, OperationMerge: {}, OperationSplit: {},
	OperationRotate: {}, OperationWatermark: {}, OperationOCR: {},
}

// ParseOperationName validates an operation name.
func ParseOperationName(s string) (OperationName, error) {
	op := OperationName(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownOperations[op]; !ok {
		return "", ErrUnknownOperation
	}
	return op, nil
}

// OperationStatus is the lifecycle state of a processing operation.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusProcessing OperationStatus = "processing"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
	StatusCancelled  OperationStatus = "cancelled"
)

// IsTerminal reports whether no further updates will follow.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// FileRecord is a stored upload or processing output.
type FileRecord struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	MimeType    string    `json:"mime_type"`
	ByteSize    int64     `json:"byte_size"`
	StoragePath string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the required fields of a file record.
func (f *FileRecord) Validate() error {
	if f.ID == "" {
		return &ValidationError{Field: "id", Message: "file ID is required"}
	}
	if strings.TrimSpace(f.DisplayName) == "" {
		return &ValidationError{Field: "display_name", Message: "display name is required"}
	}
	if f.ByteSize < 0 {
		return &ValidationError{Field: "byte_size", Message: "byte size cannot be negative"}
	}
	return nil
}

// SourceRef converts the record into what the renderer consumes.
func (f *FileRecord) SourceRef() SourceRef {
	return SourceRef{
		Path:        f.StoragePath,
		DisplayName: f.DisplayName,
		ByteSize:    f.ByteSize,
		MimeType:    f.MimeType,
	}
}

// Operation is a submitted processing request and its progress.
type Operation struct {
	ID           string          `json:"id"`
	FileID       string          `json:"file_id"`
	Name         OperationName   `json:"operation"`
	Status       OperationStatus `json:"status"`
	Progress     int             `json:"progress"`
	OutputFileID string          `json:"output_file_id,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks the required fields and ranges of an operation.
func (o *Operation) Validate() error {
	if o.ID == "" {
		return &ValidationError{Field: "id", Message: "operation ID is required"}
	}
	if o.FileID == "" {
		return &ValidationError{Field: "file_id", Message: "file ID is required"}
	}
	if _, ok := knownOperations[o.Name]; !ok {
		return &ValidationError{Field: "operation", Message: "unknown operation"}
	}
	if o.Progress < 0 || o.Progress > 100 {
		return &ValidationError{Field: "progress", Message: "progress must be between 0 and 100"}
	}
	return nil
}
