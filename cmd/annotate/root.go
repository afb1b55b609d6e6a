package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pdf-annotator/internal/config"
	"pdf-annotator/internal/domain"
	"pdf-annotator/internal/infra/mupdf"
	"pdf-annotator/internal/session"
	"pdf-annotator/pkg/logger"
)

var (
	verbose      bool
	settingsPath string
)

// newRenderer opens documents for the commands.
var newRenderer = func(log domain.Logger) domain.DocumentRenderer {
	return mupdf.NewRenderer(log)
}

var rootCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Render and inspect PDF pages with the annotation engine",
	Long: `annotate opens a PDF with the same session engine the server uses.
It can paint a page with annotations into a PNG or dump the text
fragments the edit-text tool works on.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "editor settings file (TOML); defaults to $EDITOR_CONFIG_PATH")
}

func newLogger() domain.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.NewLoggerWithOutput(level, os.Stderr)
}

// openSession loads file into a fresh session.
func openSession(ctx context.Context, file string) (*session.Session, error) {
	log := newLogger()

	opts := session.DefaultOptions()
	path := settingsPath
	if path == "" {
		path = os.Getenv("EDITOR_CONFIG_PATH")
	}
	if path != "" {
		settings, err := config.LoadEditorSettings(path, log)
		if err != nil {
			return nil, err
		}
		opts = session.OptionsFromSettings(settings)
	}

	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", file, err)
	}

	s := session.New("cli", newRenderer(log), opts, log)
	src := domain.SourceRef{
		Path:        file,
		DisplayName: filepath.Base(file),
		ByteSize:    info.Size(),
		MimeType:    "application/pdf",
	}
	if err := s.Open(ctx, src); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
