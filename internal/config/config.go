package config

import (
	"os"
	"strconv"
	"strings"

	"pdf-annotator/internal/domain"
)

// Processing store backends.
const (
	StoreSQLite   = "sqlite"
	StoreSupabase = "supabase"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort       string
	UploadPath       string
	MaxFileSize      int64
	LogLevel         string
	DatabasePath     string
	ProcessingStore  string
	SupabaseURL      string
	SupabaseKey      string
	SupabaseBucket   string
	AllowedOrigins   []string
	EditorConfigPath string
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:       getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		UploadPath:       getEnvOrDefault("UPLOAD_PATH", "./uploads"),
		MaxFileSize:      getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
		DatabasePath:     getEnvOrDefault("DATABASE_PATH", "./data/annotator.db"),
		ProcessingStore:  strings.ToLower(getEnvOrDefault("PROCESSING_STORE", StoreSQLite)),
		SupabaseURL:      getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:      getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		SupabaseBucket:   getEnvOrDefault("SUPABASE_BUCKET", "documents"),
		AllowedOrigins:   getEnvListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
		EditorConfigPath: getEnvOrDefault("EDITOR_CONFIG_PATH", ""),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetUploadPath returns the upload directory path
func (c *AppConfig) GetUploadPath() string {
	return c.UploadPath
}

// GetMaxFileSize returns the maximum allowed file size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetDatabasePath returns the SQLite database file path
func (c *AppConfig) GetDatabasePath() string {
	return c.DatabasePath
}

// GetProcessingStore returns the backend for files and operations
func (c *AppConfig) GetProcessingStore() string {
	return c.ProcessingStore
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetSupabaseBucket returns the storage bucket for uploads
func (c *AppConfig) GetSupabaseBucket() string {
	return c.SupabaseBucket
}

// GetAllowedOrigins returns the CORS origins
func (c *AppConfig) GetAllowedOrigins() []string {
	return c.AllowedOrigins
}

// GetEditorConfigPath returns the editor settings file, empty for defaults
func (c *AppConfig) GetEditorConfigPath() string {
	return c.EditorConfigPath
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
