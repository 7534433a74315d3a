package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/deskmcp/internal/audit"
)

// Config is the effective server configuration.
type Config struct {
	// Display is used as DISPLAY when the process environment has none.
	Display    string `yaml:"display"`
	XAuthority string `yaml:"xauthority"`
	// EnvFile is loaded before the display is resolved. Existing
	// environment variables win.
	EnvFile string `yaml:"env_file"`

	StartupTimeoutSeconds  int `yaml:"startup_timeout_seconds"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`

	OCR     OCRConfig     `yaml:"ocr"`
	Wait    WaitConfig    `yaml:"wait"`
	Input   InputConfig   `yaml:"input"`
	Hotkeys HotkeysConfig `yaml:"hotkeys"`
	Logging LoggingConfig `yaml:"logging"`
}

// OCRConfig configures the recognizer and capture provider.
type OCRConfig struct {
	Languages        []string `yaml:"languages"`
	SerializeCapture bool     `yaml:"serialize_capture"`
}

// WaitConfig holds polling and default timeouts for wait tools.
type WaitConfig struct {
	PollIntervalMs          int `yaml:"poll_interval_ms"`
	WindowTimeoutSeconds    int `yaml:"window_timeout_seconds"`
	ClipboardTimeoutSeconds int `yaml:"clipboard_timeout_seconds"`
}

type InputConfig struct {
	DefaultMouseSpeed int `yaml:"default_mouse_speed"`
}

type HotkeysConfig struct {
	// CancelWaits aborts every in-flight wait, e.g. "Mod4-Escape".
	CancelWaits string `yaml:"cancel_waits"`
}

// LoggingConfig configures the action log.
type LoggingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Level          string `yaml:"level"`
	File           string `yaml:"file"`
	MaxSizeMB      int    `yaml:"max_size_mb"`
	MaxFiles       int    `yaml:"max_files"`
	IncludeContent bool   `yaml:"include_content"`
	PreviewLength  int    `yaml:"preview_length"`
}

// DefaultConfig returns a config with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		StartupTimeoutSeconds:  10,
		ShutdownTimeoutSeconds: 5,
		OCR: OCRConfig{
			Languages:        []string{"eng"},
			SerializeCapture: true,
		},
		Wait: WaitConfig{
			PollIntervalMs:          100,
			WindowTimeoutSeconds:    15,
			ClipboardTimeoutSeconds: 10,
		},
		Input: InputConfig{
			DefaultMouseSpeed: 2,
		},
		Logging: LoggingConfig{
			Enabled:       false,
			Level:         "info",
			File:          "~/.local/share/deskmcp/actions.log",
			MaxSizeMB:     10,
			MaxFiles:      3,
			PreviewLength: 50,
		},
	}
}

// ValidationError points at the offending config key and, when known, the
// file position it was set at.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.StartupTimeoutSeconds <= 0 {
		return &ValidationError{Path: "startup_timeout_seconds", Err: fmt.Errorf("must be > 0")}
	}
	if c.ShutdownTimeoutSeconds <= 0 {
		return &ValidationError{Path: "shutdown_timeout_seconds", Err: fmt.Errorf("must be > 0")}
	}
	if len(c.OCR.Languages) == 0 {
		return &ValidationError{Path: "ocr.languages", Err: fmt.Errorf("must not be empty")}
	}
	for _, lang := range c.OCR.Languages {
		if strings.TrimSpace(lang) == "" {
			return &ValidationError{Path: "ocr.languages", Err: fmt.Errorf("contains an empty language code")}
		}
	}
	if c.Wait.PollIntervalMs <= 0 {
		return &ValidationError{Path: "wait.poll_interval_ms", Err: fmt.Errorf("must be > 0")}
	}
	if c.Wait.WindowTimeoutSeconds <= 0 {
		return &ValidationError{Path: "wait.window_timeout_seconds", Err: fmt.Errorf("must be > 0")}
	}
	if c.Wait.ClipboardTimeoutSeconds <= 0 {
		return &ValidationError{Path: "wait.clipboard_timeout_seconds", Err: fmt.Errorf("must be > 0")}
	}
	if c.Input.DefaultMouseSpeed < 0 || c.Input.DefaultMouseSpeed > 100 {
		return &ValidationError{Path: "input.default_mouse_speed", Err: fmt.Errorf("must be between 0 and 100")}
	}
	if _, err := audit.ParseLogLevel(c.Logging.Level); err != nil || strings.TrimSpace(c.Logging.Level) == "" {
		return &ValidationError{Path: "logging.level", Err: fmt.Errorf("must be one of: debug, info, warning, error")}
	}
	if c.Logging.Enabled && strings.TrimSpace(c.Logging.File) == "" {
		return &ValidationError{Path: "logging.file", Err: fmt.Errorf("is required when logging is enabled")}
	}
	if c.Logging.MaxSizeMB <= 0 {
		return &ValidationError{Path: "logging.max_size_mb", Err: fmt.Errorf("must be > 0")}
	}
	if c.Logging.MaxFiles < 0 {
		return &ValidationError{Path: "logging.max_files", Err: fmt.Errorf("must be >= 0")}
	}
	if c.Logging.PreviewLength < 0 {
		return &ValidationError{Path: "logging.preview_length", Err: fmt.Errorf("must be >= 0")}
	}
	return nil
}

func (c *Config) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Wait.PollIntervalMs) * time.Millisecond
}

func (c *Config) WindowTimeout() time.Duration {
	return time.Duration(c.Wait.WindowTimeoutSeconds) * time.Second
}

func (c *Config) ClipboardTimeout() time.Duration {
	return time.Duration(c.Wait.ClipboardTimeoutSeconds) * time.Second
}

// AuditConfig converts the logging section for the action logger.
func (c *Config) AuditConfig() (audit.Config, error) {
	level, err := audit.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return audit.Config{}, err
	}
	path, err := expandHome(c.Logging.File)
	if err != nil {
		return audit.Config{}, err
	}
	return audit.Config{
		Enabled:        c.Logging.Enabled,
		Level:          level,
		FilePath:       path,
		MaxSizeMB:      c.Logging.MaxSizeMB,
		MaxFiles:       c.Logging.MaxFiles,
		IncludeContent: c.Logging.IncludeContent,
		PreviewLength:  c.Logging.PreviewLength,
	}, nil
}
