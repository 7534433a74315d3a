package platform

import (
	"context"
	"errors"
)

var (
	// ErrEngineStartup is fatal: the automation engine never answered its
	// liveness probe.
	ErrEngineStartup = errors.New("engine startup failed")

	// ErrStaleReference means a window or control id no longer resolves.
	// Callers should re-query the directory.
	ErrStaleReference = errors.New("stale reference")

	// ErrCapture covers invalid capture regions and capture permission failures.
	ErrCapture = errors.New("screen capture failed")

	// ErrRecognition is returned when the OCR recognizer fails on a valid image.
	ErrRecognition = errors.New("text recognition failed")

	// ErrPersistence covers file I/O for clipboard save and restore.
	ErrPersistence = errors.New("clipboard persistence failed")

	// ErrNoMonitorFound means no display owns the requested point or window.
	ErrNoMonitorFound = errors.New("no monitor found")

	// ErrInvalidInput rejects malformed tool arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// Classify maps err to a stable code used in tool failures and logs.
// Cancellation wins over any wrapped sentinel.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrEngineStartup):
		return "engine_startup"
	case errors.Is(err, ErrStaleReference):
		return "stale_reference"
	case errors.Is(err, ErrCapture):
		return "capture"
	case errors.Is(err, ErrRecognition):
		return "recognition"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrNoMonitorFound):
		return "no_monitor"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "engine"
	}
}

// kindError tags a cause with a sentinel while keeping both visible to
// errors.Is and errors.As.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// Wrap tags err with kind. It returns nil for a nil err and leaves errors
// that already match kind untouched.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, cause: err}
}
