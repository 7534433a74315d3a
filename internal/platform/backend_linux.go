//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/1broseidon/deskmcp/internal/keyseq"
	"github.com/1broseidon/deskmcp/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// hotkeyLoopGrace bounds how long StopHotkeys waits for the event loop.
const hotkeyLoopGrace = time.Second

// LinuxEngine implements Engine and DisplayProvider on top of an X11
// connection.
type LinuxEngine struct {
	conn *x11.Connection
	clip *x11Clipboard

	hotkeyMu sync.Mutex
	hotkeys  int
}

var (
	_ Engine          = (*LinuxEngine)(nil)
	_ DisplayProvider = (*LinuxEngine)(nil)
)

// NewEngine opens a fresh X11 connection using the current DISPLAY.
func NewEngine(ctx context.Context) (Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := x11.NewConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxEngine(conn), nil
}

// NewLinuxEngine wraps an existing X11 connection.
func NewLinuxEngine(conn *x11.Connection) *LinuxEngine {
	return &LinuxEngine{conn: conn, clip: newX11Clipboard()}
}

// Probe queries the pointer position as a liveness check.
func (e *LinuxEngine) Probe(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- e.conn.Ping() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the X server.
func (e *LinuxEngine) Close() error {
	e.conn.Close()
	return nil
}

func (e *LinuxEngine) ListWindows(ctx context.Context, opts ListOptions) ([]WindowInfo, error) {
	ids, err := e.conn.ClientWindows(opts.IncludeHidden)
	if err != nil {
		return nil, err
	}

	out := make([]WindowInfo, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, err := e.conn.Describe(id)
		if err != nil {
			// Closed between listing and describing.
			continue
		}
		out = append(out, windowInfo(w))
	}
	return out, nil
}

func (e *LinuxEngine) Window(ctx context.Context, ref WindowRef) (WindowInfo, error) {
	w, err := e.conn.Describe(xproto.Window(ref))
	if err != nil {
		return WindowInfo{}, stale(ref, err)
	}
	return windowInfo(w), nil
}

func (e *LinuxEngine) WindowText(ctx context.Context, ref WindowRef) (string, error) {
	text, err := e.conn.WindowText(xproto.Window(ref))
	if err != nil {
		return "", stale(ref, err)
	}
	return text, nil
}

func (e *LinuxEngine) ListControls(ctx context.Context, ref WindowRef) ([]ControlInfo, error) {
	controls, err := e.conn.Controls(xproto.Window(ref))
	if err != nil {
		return nil, stale(ref, err)
	}

	out := make([]ControlInfo, 0, len(controls))
	for _, c := range controls {
		out = append(out, ControlInfo{
			Ref:    ControlRef{Handle: uint32(c.ID), Class: c.Class},
			Window: ref,
			Text:   c.Text,
			Bounds: Rect{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height, Space: WindowRelative},
		})
	}
	return out, nil
}

func (e *LinuxEngine) SendKeys(ctx context.Context, handle uint32, keys string) error {
	strokes, err := keyseq.Parse(keys)
	if err != nil {
		return Wrap(ErrInvalidInput, err)
	}
	if err := e.conn.SendKeys(xproto.Window(handle), strokes); err != nil {
		return stale(WindowRef(handle), err)
	}
	return nil
}

func (e *LinuxEngine) Activate(ctx context.Context, ref WindowRef) error {
	if !e.conn.Exists(xproto.Window(ref)) {
		return stale(ref, x11.ErrNoWindow)
	}
	return e.conn.FocusWindow(xproto.Window(ref))
}

func (e *LinuxEngine) SetAlwaysOnTop(ctx context.Context, ref WindowRef, on bool) error {
	if !e.conn.Exists(xproto.Window(ref)) {
		return stale(ref, x11.ErrNoWindow)
	}
	return e.conn.SetAbove(xproto.Window(ref), on)
}

func (e *LinuxEngine) Restack(ctx context.Context, ref WindowRef, order StackOrder) error {
	if !e.conn.Exists(xproto.Window(ref)) {
		return stale(ref, x11.ErrNoWindow)
	}
	return e.conn.Restack(xproto.Window(ref), order == StackTop)
}

func (e *LinuxEngine) ActiveWindow(ctx context.Context) (WindowRef, error) {
	win, err := e.conn.ActiveWindow()
	if err != nil {
		return 0, err
	}
	if win == 0 {
		return 0, fmt.Errorf("%w: no active window", ErrStaleReference)
	}
	return WindowRef(win), nil
}

func (e *LinuxEngine) MoveMouse(ctx context.Context, to Point, speed int) error {
	if to.Space != Screen {
		return fmt.Errorf("%w: MoveMouse needs a screen point, got %s", ErrInvalidInput, to.Space)
	}
	// X protocol coordinates are 16-bit signed.
	if to.X < math.MinInt16 || to.X > math.MaxInt16 || to.Y < math.MinInt16 || to.Y > math.MaxInt16 {
		return fmt.Errorf("%w: point (%d, %d) is outside the X coordinate range", ErrInvalidInput, to.X, to.Y)
	}
	return e.conn.MovePointer(ctx, to.X, to.Y, speed)
}

func (e *LinuxEngine) MousePosition(ctx context.Context) (Point, error) {
	x, y, err := e.conn.PointerPosition()
	if err != nil {
		return Point{}, err
	}
	return ScreenPoint(x, y), nil
}

func (e *LinuxEngine) SpaceOrigin(ctx context.Context, space CoordinateSpace) (Point, error) {
	if space == Screen {
		return ScreenPoint(0, 0), nil
	}

	ref, err := e.ActiveWindow(ctx)
	if err != nil {
		return Point{}, err
	}

	var x, y int
	switch space {
	case Client:
		x, y, _, _, err = e.conn.ClientRect(xproto.Window(ref))
	case WindowRelative:
		x, y, _, _, err = e.conn.FrameRect(xproto.Window(ref))
	default:
		return Point{}, fmt.Errorf("%w: unknown coordinate space %s", ErrInvalidInput, space)
	}
	if err != nil {
		return Point{}, stale(ref, err)
	}
	return ScreenPoint(x, y), nil
}

func (e *LinuxEngine) Click(ctx context.Context, button MouseButton) error {
	switch button {
	case ButtonLeft, ButtonMiddle, ButtonRight:
	default:
		return fmt.Errorf("%w: unknown mouse button %d", ErrInvalidInput, button)
	}
	// X button numbers match MouseButton values.
	return e.conn.Click(byte(button))
}

func (e *LinuxEngine) RegisterHotkey(sequence string, fn func()) error {
	e.hotkeyMu.Lock()
	defer e.hotkeyMu.Unlock()
	if err := e.conn.GrabHotkey(sequence, fn); err != nil {
		return fmt.Errorf("%w: hotkey %q: %v", ErrInvalidInput, sequence, err)
	}
	e.hotkeys++
	return nil
}

func (e *LinuxEngine) StopHotkeys() error {
	e.hotkeyMu.Lock()
	defer e.hotkeyMu.Unlock()
	if e.hotkeys == 0 {
		return nil
	}
	e.conn.ReleaseHotkeys()
	e.hotkeys = 0
	if !e.conn.StopEventLoop(hotkeyLoopGrace) {
		return errors.New("x11 event loop did not stop in time")
	}
	return nil
}

// Monitors lists active RandR outputs.
func (e *LinuxEngine) Monitors(ctx context.Context) ([]MonitorInfo, error) {
	monitors, err := e.conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	out := make([]MonitorInfo, 0, len(monitors))
	for _, m := range monitors {
		info := MonitorInfo{
			Handle:  m.ID,
			Name:    m.Name,
			Bounds:  Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height, Space: Screen},
			Primary: m.Primary,
		}
		if m.RefreshMillihertz > 0 {
			rate := m.RefreshMillihertz
			info.RefreshRateMillihertz = &rate
		}
		out = append(out, info)
	}
	return out, nil
}

func windowInfo(w x11.Window) WindowInfo {
	name := ""
	if w.ProcessPath != "" {
		name = filepath.Base(w.ProcessPath)
	}
	return WindowInfo{
		Ref:         WindowRef(w.ID),
		PID:         w.PID,
		Title:       w.Title,
		Class:       w.Class,
		ProcessPath: w.ProcessPath,
		ProcessName: name,
		Bounds:      Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height, Space: Screen},
	}
}

func stale(ref WindowRef, err error) error {
	if errors.Is(err, x11.ErrNoWindow) {
		return fmt.Errorf("%w: window %s", ErrStaleReference, ref)
	}
	return err
}
