package domain

import (
	"context"
	"io"
	"time"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetUploadPath() string
	GetMaxFileSize() int64
	GetLogLevel() string
	GetDatabasePath() string
	GetProcessingStore() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetSupabaseBucket() string
	GetAllowedOrigins() []string
	GetEditorConfigPath() string
}

// FileRepository persists file records.
type FileRepository interface {
	CreateFile(ctx context.Context, file *FileRecord) error
	GetFile(ctx context.Context, id string) (*FileRecord, error)
}

// OperationRepository persists processing operations.
type OperationRepository interface {
	CreateOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, id string) (*Operation, error)
	UpdateOperation(ctx context.Context, op *Operation) error
	ListOperationsByFile(ctx context.Context, fileID string) ([]*Operation, error)
}

// BlobStore stores raw file bytes.
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader) (int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// LocalPath returns a filesystem path the renderer can open.
	LocalPath(ctx context.Context, path string) (string, error)
}

// FileService handles uploads and downloads.
type FileService interface {
	Upload(ctx context.Context, displayName, mimeType string, r io.Reader) (*FileRecord, error)
	Get(ctx context.Context, id string) (*FileRecord, error)
	Open(ctx context.Context, id string) (*FileRecord, io.ReadCloser, error)
	SourceRef(ctx context.Context, id string) (SourceRef, error)
}

// ProcessingService runs the simulated processing operations.
type ProcessingService interface {
	Submit(ctx context.Context, fileID string, name OperationName) (string, error)
	Get(ctx context.Context, id string) (*Operation, error)
	Subscribe(ctx context.Context, id string) (<-chan Operation, error)
	Cancel(ctx context.Context, id string) error
	Shutdown()
}

// EditorSettings tunes the editing engine.
type EditorSettings struct {
	RenderDebounce      time.Duration
	HistoryDebounce     time.Duration
	RenderRetryDelay    time.Duration
	ZoomMin             int
	ZoomMax             int
	ZoomStep            int
	FontSizeMin         float64
	FontSizeMax         float64
	FontSizeDefault     float64
	DefaultColor        string
	FreehandMode        string
	HitPadding          float64
	MinShapeSize        float64
	ProcessingSteps     int
	ProcessingStepDelay time.Duration
}

const (
	FreehandPolyline = "polyline"
	FreehandSamples  = "samples"
)
