package config

import (
	"fmt"
	"io"
	"path/filepath"

	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/infra/mupdf"
	"pdf-annotator/internal/infra/supabase"
	"pdf-annotator/internal/repository"
	"pdf-annotator/internal/service"
	"pdf-annotator/internal/session"
	"pdf-annotator/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config            domain.Config
	Logger            domain.Logger
	EditorSettings    domain.EditorSettings
	SupabaseClient    domain.SupabaseClient
	FileRepository    domain.FileRepository
	OperationRepo     domain.OperationRepository
	BlobStore         domain.BlobStore
	Renderer          domain.DocumentRenderer
	FileService       *service.FileService
	ProcessingService *service.ProcessingService
	SessionService    *service.SessionService

	closers []io.Closer
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel())

	settings, err := LoadEditorSettings(config.GetEditorConfigPath(), appLogger)
	if err != nil {
		// Bad settings files fall back to defaults rather than stopping the server.
		appLogger.Error("Failed to load editor settings", err, "path", config.GetEditorConfigPath())
	}

	c := &Container{
		Config:         config,
		Logger:         appLogger,
		EditorSettings: settings,
	}

	switch config.GetProcessingStore() {
	case StoreSupabase:
		if err := c.wireSupabase(); err != nil {
			return nil, err
		}
	default:
		if err := c.wireSQLite(); err != nil {
			return nil, err
		}
	}

	c.Renderer = mupdf.NewRenderer(appLogger)
	c.FileService = service.NewFileService(c.FileRepository, c.BlobStore, config.GetMaxFileSize(), appLogger)
	c.ProcessingService = service.NewProcessingService(c.FileRepository, c.OperationRepo, c.BlobStore, settings, appLogger)
	c.SessionService = service.NewSessionService(c.FileService, c.Renderer, session.OptionsFromSettings(settings), appLogger)

	appLogger.Info("Container ready",
		"store", config.GetProcessingStore(),
		"upload_path", config.GetUploadPath(),
	)
	return c, nil
}

func (c *Container) wireSQLite() error {
	store, err := repository.NewSQLiteStore(c.Config.GetDatabasePath(), c.Logger)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	blobs, err := service.NewLocalBlobStore(c.Config.GetUploadPath())
	if err != nil {
		store.Close()
		return fmt.Errorf("open upload directory: %w", err)
	}

	c.FileRepository = store
	c.OperationRepo = store
	c.BlobStore = blobs
	c.closers = append(c.closers, store)
	return nil
}

func (c *Container) wireSupabase() error {
	client := supabase.NewSupabaseClient(c.Config, c.Logger)
	if err := client.Initialize(); err != nil {
		return fmt.Errorf("initialize supabase: %w", err)
	}
	store := repository.NewSupabaseStore(client, c.Logger)

	c.SupabaseClient = client
	c.FileRepository = store
	c.OperationRepo = store
	c.BlobStore = service.NewStorageService(
		c.Config.GetSupabaseURL(),
		c.Config.GetSupabaseKey(),
		c.Config.GetSupabaseBucket(),
		filepath.Join(c.Config.GetUploadPath(), "cache"),
	)
	return nil
}

// Shutdown stops background work and closes the store.
func (c *Container) Shutdown() {
	c.ProcessingService.Shutdown()
	c.SessionService.Shutdown()
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.Logger.Error("Failed to close resource", err)
		}
	}
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}
