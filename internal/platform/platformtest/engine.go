// Package platformtest provides in-memory implementations of the platform
// interfaces for tests.
package platformtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// SentKeys records one SendKeys call.
type SentKeys struct {
	Handle uint32
	Keys   string
}

// Restacked records one Restack call.
type Restacked struct {
	Ref   platform.WindowRef
	Order platform.StackOrder
}

// Engine is a scriptable fake of platform.Engine and platform.DisplayProvider.
// Exported fields may be set before use; use the methods once the engine is
// shared with goroutines.
type Engine struct {
	mu sync.Mutex

	Windows  []platform.WindowInfo
	Hidden   map[platform.WindowRef]bool
	Texts    map[platform.WindowRef]string
	Controls map[platform.WindowRef][]platform.ControlInfo
	// ClientOffsets is the offset of a window's client area from its frame.
	ClientOffsets map[platform.WindowRef]platform.Point
	Active        platform.WindowRef
	Mouse         platform.Point
	MonitorList   []platform.MonitorInfo

	ClipText string
	ClipBlob []byte

	ProbeErr    error
	CloseErr    error
	ClosePanic  any
	HotkeyErr   error
	TextErrs    map[platform.WindowRef]error
	StopErr     error
	MonitorsErr error

	Sent      []SentKeys
	Moves     []platform.Point
	Clicks    []platform.MouseButton
	OnTop     map[platform.WindowRef]bool
	Restacks  []Restacked
	Activated []platform.WindowRef
	Hotkeys   map[string]func()
	Probes    int
	Closes    int
	Stops     int

	watchers map[int]watcher
	nextID   int
}

var (
	_ platform.Engine          = (*Engine)(nil)
	_ platform.DisplayProvider = (*Engine)(nil)
)

// NewEngine returns an empty fake with the pointer at the origin.
func NewEngine() *Engine {
	return &Engine{Mouse: platform.ScreenPoint(0, 0)}
}

// AddWindow appends a visible window and returns e for chaining.
func (e *Engine) AddWindow(w platform.WindowInfo) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	w.Bounds.Space = platform.Screen
	e.Windows = append(e.Windows, w)
	return e
}

// RemoveWindow deletes a window, as if it had been closed.
func (e *Engine) RemoveWindow(ref platform.WindowRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Windows = slices.DeleteFunc(e.Windows, func(w platform.WindowInfo) bool { return w.Ref == ref })
}

func (e *Engine) find(ref platform.WindowRef) (platform.WindowInfo, bool) {
	for _, w := range e.Windows {
		if w.Ref == ref {
			return w, true
		}
	}
	return platform.WindowInfo{}, false
}

func staleErr(ref platform.WindowRef) error {
	return fmt.Errorf("%w: window %s", platform.ErrStaleReference, ref)
}

func (e *Engine) Probe(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Probes++
	return e.ProbeErr
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.Closes++
	p, err := e.ClosePanic, e.CloseErr
	e.mu.Unlock()
	if p != nil {
		panic(p)
	}
	return err
}

func (e *Engine) ListWindows(ctx context.Context, opts platform.ListOptions) ([]platform.WindowInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]platform.WindowInfo, 0, len(e.Windows))
	for _, w := range e.Windows {
		if !opts.IncludeHidden && e.Hidden[w.Ref] {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (e *Engine) Window(ctx context.Context, ref platform.WindowRef) (platform.WindowInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.find(ref)
	if !ok {
		return platform.WindowInfo{}, staleErr(ref)
	}
	return w, nil
}

func (e *Engine) WindowText(ctx context.Context, ref platform.WindowRef) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.find(ref)
	if !ok {
		return "", staleErr(ref)
	}
	if err := e.TextErrs[ref]; err != nil {
		return "", err
	}
	if text, ok := e.Texts[ref]; ok {
		return text, nil
	}
	return w.Title, nil
}

func (e *Engine) ListControls(ctx context.Context, ref platform.WindowRef) ([]platform.ControlInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.find(ref); !ok {
		return nil, staleErr(ref)
	}
	return slices.Clone(e.Controls[ref]), nil
}

func (e *Engine) handleExists(handle uint32) bool {
	if _, ok := e.find(platform.WindowRef(handle)); ok {
		return true
	}
	for _, controls := range e.Controls {
		for _, c := range controls {
			if c.Ref.Handle == handle {
				return true
			}
		}
	}
	return false
}

func (e *Engine) SendKeys(ctx context.Context, handle uint32, keys string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.handleExists(handle) {
		return staleErr(platform.WindowRef(handle))
	}
	e.Sent = append(e.Sent, SentKeys{Handle: handle, Keys: keys})
	return nil
}

func (e *Engine) Activate(ctx context.Context, ref platform.WindowRef) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.find(ref); !ok {
		return staleErr(ref)
	}
	e.Active = ref
	e.Activated = append(e.Activated, ref)
	return nil
}

func (e *Engine) SetAlwaysOnTop(ctx context.Context, ref platform.WindowRef, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.find(ref); !ok {
		return staleErr(ref)
	}
	if e.OnTop == nil {
		e.OnTop = map[platform.WindowRef]bool{}
	}
	e.OnTop[ref] = on
	return nil
}

func (e *Engine) Restack(ctx context.Context, ref platform.WindowRef, order platform.StackOrder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.find(ref); !ok {
		return staleErr(ref)
	}
	e.Restacks = append(e.Restacks, Restacked{Ref: ref, Order: order})
	return nil
}

func (e *Engine) ActiveWindow(ctx context.Context) (platform.WindowRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.find(e.Active); !ok {
		return 0, fmt.Errorf("%w: no active window", platform.ErrStaleReference)
	}
	return e.Active, nil
}

func (e *Engine) MoveMouse(ctx context.Context, to platform.Point, speed int) error {
	if to.Space != platform.Screen {
		return fmt.Errorf("%w: MoveMouse needs a screen point", platform.ErrInvalidInput)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Mouse = to
	e.Moves = append(e.Moves, to)
	return nil
}

func (e *Engine) MousePosition(ctx context.Context) (platform.Point, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Mouse, nil
}

func (e *Engine) SpaceOrigin(ctx context.Context, space platform.CoordinateSpace) (platform.Point, error) {
	if space == platform.Screen {
		return platform.ScreenPoint(0, 0), nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.find(e.Active)
	if !ok {
		return platform.Point{}, fmt.Errorf("%w: no active window", platform.ErrStaleReference)
	}
	origin := platform.ScreenPoint(w.Bounds.X, w.Bounds.Y)
	if space == platform.Client {
		off := e.ClientOffsets[w.Ref]
		origin.X += off.X
		origin.Y += off.Y
	}
	return origin, nil
}

func (e *Engine) Click(ctx context.Context, button platform.MouseButton) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Clicks = append(e.Clicks, button)
	return nil
}

func (e *Engine) RegisterHotkey(sequence string, fn func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.HotkeyErr != nil {
		return e.HotkeyErr
	}
	if e.Hotkeys == nil {
		e.Hotkeys = map[string]func(){}
	}
	e.Hotkeys[sequence] = fn
	return nil
}

// Press fires the callback bound to sequence, as the X event loop would.
func (e *Engine) Press(sequence string) bool {
	e.mu.Lock()
	fn, ok := e.Hotkeys[sequence]
	e.mu.Unlock()
	if ok {
		fn()
	}
	return ok
}

func (e *Engine) StopHotkeys() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Stops++
	e.Hotkeys = nil
	return e.StopErr
}

func (e *Engine) Monitors(ctx context.Context) ([]platform.MonitorInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.MonitorsErr != nil {
		return nil, e.MonitorsErr
	}
	return slices.Clone(e.MonitorList), nil
}
