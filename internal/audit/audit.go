// Package audit writes a line per tool call to a size-rotated log file.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the logging verbosity.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ActionType groups tool calls in the log.
type ActionType string

const (
	ActionRead      ActionType = "READ"
	ActionSend      ActionType = "SEND"
	ActionInput     ActionType = "INPUT"
	ActionWindow    ActionType = "WINDOW"
	ActionClipboard ActionType = "CLIPBOARD"
	ActionOCR       ActionType = "OCR"
	ActionWait      ActionType = "WAIT"
	ActionMonitor   ActionType = "MONITOR"
)

// actionLevel returns the log level for an action type. Queries log at
// debug, anything that changes desktop state at info.
func actionLevel(action ActionType) LogLevel {
	switch action {
	case ActionRead, ActionOCR, ActionMonitor, ActionWait:
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Config holds configuration for the action logger.
type Config struct {
	Enabled        bool
	Level          LogLevel
	FilePath       string
	MaxSizeMB      int
	MaxFiles       int
	IncludeContent bool
	PreviewLength  int
}

// Entry is one logged tool call.
type Entry struct {
	Action   ActionType
	Tool     string
	Outcome  string
	Duration time.Duration
	Details  map[string]interface{}
	// Content is previewed unless IncludeContent is set.
	Content string
}

// Logger handles action logging with file rotation. A nil Logger is valid
// and drops everything.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	config      Config
	currentSize int64
	now         func() time.Time
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg Config) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{config: cfg}, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &Logger{
		file:        f,
		config:      cfg,
		currentSize: stat.Size(),
		now:         time.Now,
	}, nil
}

// Log records a tool call.
func (l *Logger) Log(e Entry) {
	if l == nil || !l.config.Enabled {
		return
	}
	if actionLevel(e.Action) < l.config.Level && e.Outcome == "ok" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	maxBytes := int64(l.config.MaxSizeMB) * 1024 * 1024
	if maxBytes > 0 && l.currentSize >= maxBytes {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "audit: log rotation failed: %v\n", err)
		}
		if l.file == nil {
			return
		}
	}

	n, err := l.file.WriteString(l.format(e))
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: failed to write log entry: %v\n", err)
		return
	}
	l.currentSize += int64(n)
}

func (l *Logger) format(e Entry) string {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	var sb strings.Builder
	sb.WriteString(now().Format("2006-01-02 15:04:05"))
	sb.WriteString(" [")
	sb.WriteString(string(e.Action))
	sb.WriteString("] tool=")
	sb.WriteString(e.Tool)
	if e.Outcome != "" {
		sb.WriteString(" outcome=")
		sb.WriteString(e.Outcome)
	}
	sb.WriteString(fmt.Sprintf(" duration=%s", e.Duration.Round(time.Millisecond)))

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			switch val := e.Details[k].(type) {
			case string:
				sb.WriteString(fmt.Sprintf(" %s=%q", k, val))
			default:
				sb.WriteString(fmt.Sprintf(" %s=%v", k, val))
			}
		}
	}

	if e.Content != "" {
		content := e.Content
		if !l.config.IncludeContent {
			content = Truncate(content, l.config.PreviewLength)
		}
		sb.WriteString(fmt.Sprintf(" content=%q", content))
	}

	sb.WriteString("\n")
	return sb.String()
}

// Close closes the logger and releases resources.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate shifts actions.log to actions.log.1, .1 to .2 and so on, dropping
// the file past MaxFiles.
func (l *Logger) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	basePath := l.config.FilePath
	for i := l.config.MaxFiles; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", basePath, i)
		if i == l.config.MaxFiles {
			os.Remove(oldPath)
		} else {
			os.Rename(oldPath, fmt.Sprintf("%s.%d", basePath, i+1))
		}
	}

	if l.config.MaxFiles > 0 {
		if err := os.Rename(basePath, basePath+".1"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	} else {
		os.Remove(basePath)
	}

	f, err := os.OpenFile(basePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	l.file = f
	l.currentSize = 0
	return nil
}

// ParseLogLevel converts a string to LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Truncate returns a preview of a string, truncating if necessary. It never
// splits a multi-byte character.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
