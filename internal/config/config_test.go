package config

import (
	"reflect"
	"testing"
)

const defaultMaxFileSize int64 = 50 * 1024 * 1024

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_PORT", "UPLOAD_PATH", "MAX_FILE_SIZE", "LOG_LEVEL",
		"DATABASE_PATH", "PROCESSING_STORE", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"SUPABASE_BUCKET", "ALLOWED_ORIGINS", "EDITOR_CONFIG_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := NewConfig()

	if cfg.GetServerPort() != "8080" {
		t.Fatalf("expected default server port 8080, got %s", cfg.GetServerPort())
	}
	if cfg.GetUploadPath() != "./uploads" {
		t.Fatalf("expected default upload path ./uploads, got %s", cfg.GetUploadPath())
	}
	if cfg.GetMaxFileSize() != defaultMaxFileSize {
		t.Fatalf("expected default max file size %d, got %d", defaultMaxFileSize, cfg.GetMaxFileSize())
	}
	if cfg.GetLogLevel() != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.GetLogLevel())
	}
	if cfg.GetDatabasePath() != "./data/annotator.db" {
		t.Fatalf("expected default database path, got %s", cfg.GetDatabasePath())
	}
	if cfg.GetProcessingStore() != StoreSQLite {
		t.Fatalf("expected default processing store sqlite, got %s", cfg.GetProcessingStore())
	}
	if cfg.GetSupabaseURL() != "" {
		t.Fatalf("expected default supabase url empty, got %s", cfg.GetSupabaseURL())
	}
	if cfg.GetSupabaseKey() != "" {
		t.Fatalf("expected default supabase key empty, got %s", cfg.GetSupabaseKey())
	}
	if cfg.GetSupabaseBucket() != "documents" {
		t.Fatalf("expected default bucket documents, got %s", cfg.GetSupabaseBucket())
	}
	if !reflect.DeepEqual(cfg.GetAllowedOrigins(), []string{"*"}) {
		t.Fatalf("expected default origins [*], got %v", cfg.GetAllowedOrigins())
	}
	if cfg.GetEditorConfigPath() != "" {
		t.Fatalf("expected no editor config path, got %s", cfg.GetEditorConfigPath())
	}
}

func TestNewConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("MAX_FILE_SIZE", "12345")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_PATH", "/tmp/jobs.db")
	t.Setenv("PROCESSING_STORE", "Supabase")
	t.Setenv("SUPABASE_URL", "http://localhost:54321")
	t.Setenv("SUPABASE_ANON_KEY", "test-key")
	t.Setenv("SUPABASE_BUCKET", "uploads")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com,")
	t.Setenv("EDITOR_CONFIG_PATH", "/etc/annotator/editor.toml")

	cfg := NewConfig()

	if cfg.GetServerPort() != "9090" {
		t.Fatalf("expected server port 9090, got %s", cfg.GetServerPort())
	}
	if cfg.GetMaxFileSize() != 12345 {
		t.Fatalf("expected max file size 12345, got %d", cfg.GetMaxFileSize())
	}
	if cfg.GetLogLevel() != "debug" {
		t.Fatalf("expected log level debug, got %s", cfg.GetLogLevel())
	}
	if cfg.GetDatabasePath() != "/tmp/jobs.db" {
		t.Fatalf("expected database path /tmp/jobs.db, got %s", cfg.GetDatabasePath())
	}
	if cfg.GetProcessingStore() != StoreSupabase {
		t.Fatalf("expected processing store supabase, got %s", cfg.GetProcessingStore())
	}
	if cfg.GetSupabaseURL() != "http://localhost:54321" {
		t.Fatalf("expected supabase url http://localhost:54321, got %s", cfg.GetSupabaseURL())
	}
	if cfg.GetSupabaseKey() != "test-key" {
		t.Fatalf("expected supabase key test-key, got %s", cfg.GetSupabaseKey())
	}
	if cfg.GetSupabaseBucket() != "uploads" {
		t.Fatalf("expected bucket uploads, got %s", cfg.GetSupabaseBucket())
	}
	want := []string{"http://localhost:3000", "https://app.example.com"}
	if !reflect.DeepEqual(cfg.GetAllowedOrigins(), want) {
		t.Fatalf("expected origins %v, got %v", want, cfg.GetAllowedOrigins())
	}
	if cfg.GetEditorConfigPath() != "/etc/annotator/editor.toml" {
		t.Fatalf("expected editor config path, got %s", cfg.GetEditorConfigPath())
	}
}

func TestNewConfig_Fallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9091")
	t.Setenv("MAX_FILE_SIZE", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " , ")

	cfg := NewConfig()

	if cfg.GetServerPort() != "9091" {
		t.Fatalf("expected server port 9091, got %s", cfg.GetServerPort())
	}
	if cfg.GetMaxFileSize() != defaultMaxFileSize {
		t.Fatalf("expected default max file size %d, got %d", defaultMaxFileSize, cfg.GetMaxFileSize())
	}
	if !reflect.DeepEqual(cfg.GetAllowedOrigins(), []string{"*"}) {
		t.Fatalf("expected default origins for blank list, got %v", cfg.GetAllowedOrigins())
	}
}
