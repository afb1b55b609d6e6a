package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lucasb-eyer/go-colorful"

	"pdf-annotator/internal/domain"
)

// Duration decodes TOML strings such as "50ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// SettingsFile is the on-disk layout of the editor settings.
type SettingsFile struct {
	Editor     EditorSection     `toml:"editor"`
	Processing ProcessingSection `toml:"processing"`
}

// EditorSection holds the [editor] table.
type EditorSection struct {
	RenderDebounce   Duration `toml:"render_debounce"`
	HistoryDebounce  Duration `toml:"history_debounce"`
	RenderRetryDelay Duration `toml:"render_retry_delay"`
	ZoomMin          int      `toml:"zoom_min"`
	ZoomMax          int      `toml:"zoom_max"`
	ZoomStep         int      `toml:"zoom_step"`
	FontSizeMin      float64  `toml:"font_size_min"`
	FontSizeMax      float64  `toml:"font_size_max"`
	FontSizeDefault  float64  `toml:"font_size_default"`
	DefaultColor     string   `toml:"default_color"`
	FreehandMode     string   `toml:"freehand_mode"`
	HitPadding       float64  `toml:"hit_padding"`
	MinShapeSize     float64  `toml:"min_shape_size"`
}

// ProcessingSection holds the [processing] table.
type ProcessingSection struct {
	Steps     int      `toml:"steps"`
	StepDelay Duration `toml:"step_delay"`
}

// NewDefaultSettings returns the stock editor settings.
func NewDefaultSettings() *SettingsFile {
	return &SettingsFile{
		Editor: EditorSection{
			RenderDebounce:   Duration{50 * time.Millisecond},
			HistoryDebounce:  Duration{0},
			RenderRetryDelay: Duration{500 * time.Millisecond},
			ZoomMin:          25,
			ZoomMax:          200,
			ZoomStep:         25,
			FontSizeMin:      8,
			FontSizeMax:      72,
			FontSizeDefault:  16,
			DefaultColor:     "#ff0000",
			FreehandMode:     domain.FreehandPolyline,
			HitPadding:       5,
			MinShapeSize:     5,
		},
		Processing: ProcessingSection{
			Steps:     10,
			StepDelay: Duration{300 * time.Millisecond},
		},
	}
}

// LoadEditorSettings reads the settings file at path on top of the
// defaults. An empty path or a missing file yields the defaults. Invalid
// values are reset to their defaults.
func LoadEditorSettings(path string, logger domain.Logger) (domain.EditorSettings, error) {
	cfg := NewDefaultSettings()
	if path != "" {
		if err := cfg.loadFromFile(path, logger); err != nil {
			return cfg.validate().Settings(), err
		}
	}
	return cfg.validate().Settings(), nil
}

func (c *SettingsFile) loadFromFile(path string, logger domain.Logger) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		if logger != nil {
			logger.Debug("Editor settings file not found; using defaults", "path", path)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("error checking settings file '%s': %w", path, err)
	}

	metadata, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to parse settings file '%s': %w", path, err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 && logger != nil {
		logger.Warn("Editor settings: unrecognized keys", "path", path, "keys", fmt.Sprint(undecoded))
	}
	if logger != nil {
		logger.Info("Editor settings loaded", "path", path)
	}
	return nil
}

// validate resets invalid values to their defaults.
func (c *SettingsFile) validate() *SettingsFile {
	def := NewDefaultSettings()
	e, d := &c.Editor, def.Editor

	if e.RenderDebounce.Duration < 0 {
		e.RenderDebounce = d.RenderDebounce
	}
	if e.HistoryDebounce.Duration < 0 {
		e.HistoryDebounce = d.HistoryDebounce
	}
	if e.RenderRetryDelay.Duration <= 0 {
		e.RenderRetryDelay = d.RenderRetryDelay
	}
	if e.ZoomMin <= 0 || e.ZoomMax < e.ZoomMin {
		e.ZoomMin, e.ZoomMax = d.ZoomMin, d.ZoomMax
	}
	if e.ZoomStep <= 0 {
		e.ZoomStep = d.ZoomStep
	}
	if e.FontSizeMin <= 0 || e.FontSizeMax < e.FontSizeMin {
		e.FontSizeMin, e.FontSizeMax = d.FontSizeMin, d.FontSizeMax
	}
	if e.FontSizeDefault < e.FontSizeMin || e.FontSizeDefault > e.FontSizeMax {
		e.FontSizeDefault = d.FontSizeDefault
	}
	if _, err := colorful.Hex(e.DefaultColor); err != nil {
		e.DefaultColor = d.DefaultColor
	}
	if e.FreehandMode != domain.FreehandPolyline && e.FreehandMode != domain.FreehandSamples {
		e.FreehandMode = d.FreehandMode
	}
	if e.HitPadding < 0 {
		e.HitPadding = d.HitPadding
	}
	if e.MinShapeSize < 0 {
		e.MinShapeSize = d.MinShapeSize
	}

	if c.Processing.Steps <= 0 {
		c.Processing.Steps = def.Processing.Steps
	}
	if c.Processing.StepDelay.Duration < 0 {
		c.Processing.StepDelay = def.Processing.StepDelay
	}
	return c
}

// Settings flattens the file layout into domain settings.
func (c *SettingsFile) Settings() domain.EditorSettings {
	return domain.EditorSettings{
		RenderDebounce:      c.Editor.RenderDebounce.Duration,
		HistoryDebounce:     c.Editor.HistoryDebounce.Duration,
		RenderRetryDelay:    c.Editor.RenderRetryDelay.Duration,
		ZoomMin:             c.Editor.ZoomMin,
		ZoomMax:             c.Editor.ZoomMax,
		ZoomStep:            c.Editor.ZoomStep,
		FontSizeMin:         c.Editor.FontSizeMin,
		FontSizeMax:         c.Editor.FontSizeMax,
		FontSizeDefault:     c.Editor.FontSizeDefault,
		DefaultColor:        c.Editor.DefaultColor,
		FreehandMode:        c.Editor.FreehandMode,
		HitPadding:          c.Editor.HitPadding,
		MinShapeSize:        c.Editor.MinShapeSize,
		ProcessingSteps:     c.Processing.Steps,
		ProcessingStepDelay: c.Processing.StepDelay.Duration,
	}
}
