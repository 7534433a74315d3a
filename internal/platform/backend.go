package platform

import (
	"context"
	"image"
)

// StackOrder selects where Restack places a window in the z-order.
type StackOrder int

const (
	StackTop StackOrder = iota
	StackBottom
)

// MouseButton identifies a pointer button.
type MouseButton int

const (
	ButtonLeft MouseButton = iota + 1
	ButtonMiddle
	ButtonRight
)

// ListOptions filters window enumeration.
type ListOptions struct {
	IncludeHidden bool
}

// WindowEngine queries and mutates top-level windows and their controls.
// Implementations return ErrStaleReference for ids that no longer resolve.
type WindowEngine interface {
	ListWindows(ctx context.Context, opts ListOptions) ([]WindowInfo, error)
	Window(ctx context.Context, ref WindowRef) (WindowInfo, error)
	WindowText(ctx context.Context, ref WindowRef) (string, error)
	ListControls(ctx context.Context, ref WindowRef) ([]ControlInfo, error)
	// SendKeys delivers an AutoHotkey-style key sequence to a window or
	// control handle.
	SendKeys(ctx context.Context, handle uint32, keys string) error
	Activate(ctx context.Context, ref WindowRef) error
	SetAlwaysOnTop(ctx context.Context, ref WindowRef, on bool) error
	Restack(ctx context.Context, ref WindowRef, order StackOrder) error
	ActiveWindow(ctx context.Context) (WindowRef, error)
}

// InputEngine injects pointer input. All points are in Screen space.
type InputEngine interface {
	MoveMouse(ctx context.Context, to Point, speed int) error
	MousePosition(ctx context.Context) (Point, error)
	// SpaceOrigin returns the Screen position of (0,0) of space for the
	// active window.
	SpaceOrigin(ctx context.Context, space CoordinateSpace) (Point, error)
	Click(ctx context.Context, button MouseButton) error
}

// ClipboardEngine reads and writes the system clipboard.
type ClipboardEngine interface {
	ClipboardText(ctx context.Context) (string, error)
	SetClipboardText(ctx context.Context, text string) error
	// ClipboardAll returns the full clipboard payload as an opaque blob that
	// SetClipboardAll accepts back unchanged.
	ClipboardAll(ctx context.Context) ([]byte, error)
	SetClipboardAll(ctx context.Context, blob []byte) error
	// WatchClipboard signals once per observed change until ctx is done.
	// With anyData false only text changes are reported.
	WatchClipboard(ctx context.Context, anyData bool) (<-chan struct{}, error)
}

// HotkeyEngine manages global hotkey listeners.
type HotkeyEngine interface {
	RegisterHotkey(sequence string, fn func()) error
	StopHotkeys() error
}

// Engine is the automation backend owned by the session manager.
type Engine interface {
	WindowEngine
	InputEngine
	ClipboardEngine
	HotkeyEngine

	// Probe performs a trivial round trip to prove the engine is alive.
	Probe(ctx context.Context) error
	// Close terminates the engine. It is called once, at shutdown.
	Close() error
}

// EngineSource yields the shared engine, starting it if needed.
type EngineSource interface {
	Acquire(ctx context.Context) (Engine, error)
}

// DisplayProvider answers monitor topology queries.
type DisplayProvider interface {
	Monitors(ctx context.Context) ([]MonitorInfo, error)
}

// Capturer grabs pixels for one scoped acquisition.
type Capturer interface {
	Grab(ctx context.Context, region Region) (*image.RGBA, error)
	Close() error
}

// CaptureSource hands out Capturers. Reentrant reports whether several
// Capturers may grab concurrently.
type CaptureSource interface {
	Open() (Capturer, error)
	Reentrant() bool
}

// Fragment is one piece of text found by a Recognizer, in image pixel
// coordinates.
type Fragment struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
}

// Recognizer turns an image into text fragments in reading order.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)
	Close() error
}
