// Package directory looks up top-level windows and their controls and acts
// on them by reference.
package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// Options tunes the wait primitive.
type Options struct {
	PollInterval   time.Duration
	DefaultTimeout time.Duration
	// Scope, when set, derives the context each wait runs under so waits
	// can be cancelled from outside.
	Scope func(context.Context) (context.Context, context.CancelFunc)
}

// Directory resolves windows and controls through the shared engine.
type Directory struct {
	source platform.EngineSource
	opts   Options
}

// New returns a Directory backed by source.
func New(source platform.EngineSource, opts Options) *Directory {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 15 * time.Second
	}
	return &Directory{source: source, opts: opts}
}

// resolve acquires the engine and confirms ref still names a window.
func (d *Directory) resolve(ctx context.Context, ref platform.WindowRef) (platform.Engine, platform.WindowInfo, error) {
	engine, err := d.source.Acquire(ctx)
	if err != nil {
		return nil, platform.WindowInfo{}, err
	}
	info, err := engine.Window(ctx, ref)
	if err != nil {
		return nil, platform.WindowInfo{}, err
	}
	return engine, info, nil
}

// ListWindows returns visible top-level windows in engine order.
func (d *Directory) ListWindows(ctx context.Context) ([]platform.WindowInfo, error) {
	engine, err := d.source.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return engine.ListWindows(ctx, platform.ListOptions{})
}

// FindByTitle returns the first visible window whose title contains title,
// or equals it when exact is set. An empty title never matches by
// substring.
func (d *Directory) FindByTitle(ctx context.Context, title string, exact bool) (platform.WindowRef, bool, error) {
	if !exact && title == "" {
		return 0, false, nil
	}
	windows, err := d.ListWindows(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, w := range windows {
		if exact && w.Title == title || !exact && strings.Contains(w.Title, title) {
			return w.Ref, true, nil
		}
	}
	return 0, false, nil
}

// GetText returns the text of a window and its controls.
func (d *Directory) GetText(ctx context.Context, ref platform.WindowRef) (string, error) {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	return engine.WindowText(ctx, ref)
}

// SendKeys types an AutoHotkey-style key sequence into a window.
func (d *Directory) SendKeys(ctx context.Context, ref platform.WindowRef, keys string) error {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return engine.SendKeys(ctx, uint32(ref), keys)
}

func (d *Directory) Activate(ctx context.Context, ref platform.WindowRef) error {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return engine.Activate(ctx, ref)
}

func (d *Directory) SetAlwaysOnTop(ctx context.Context, ref platform.WindowRef, on bool) error {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return engine.SetAlwaysOnTop(ctx, ref, on)
}

// ToTop raises a window to the top of the z-order.
func (d *Directory) ToTop(ctx context.Context, ref platform.WindowRef) error {
	return d.restack(ctx, ref, platform.StackTop)
}

// ToBottom lowers a window beneath all others.
func (d *Directory) ToBottom(ctx context.Context, ref platform.WindowRef) error {
	return d.restack(ctx, ref, platform.StackBottom)
}

func (d *Directory) restack(ctx context.Context, ref platform.WindowRef, order platform.StackOrder) error {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	return engine.Restack(ctx, ref, order)
}

// ListControls returns the controls of a window.
func (d *Directory) ListControls(ctx context.Context, ref platform.WindowRef) ([]platform.ControlInfo, error) {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return engine.ListControls(ctx, ref)
}

// SendKeysToControl types keys into a control picked by class. The class
// may be in ClassNN form ("Edit2") or bare ("Edit"), which picks the first
// control of that class.
func (d *Directory) SendKeysToControl(ctx context.Context, ref platform.WindowRef, class, keys string) error {
	engine, _, err := d.resolve(ctx, ref)
	if err != nil {
		return err
	}
	controls, err := engine.ListControls(ctx, ref)
	if err != nil {
		return err
	}
	control, ok := findControl(controls, strings.TrimSpace(class))
	if !ok {
		return fmt.Errorf("%w: window %s has no control %q", platform.ErrStaleReference, ref, class)
	}
	return engine.SendKeys(ctx, control.Ref.Handle, keys)
}

// SendKeysToControlByHandle types keys into a control addressed directly.
func (d *Directory) SendKeysToControlByHandle(ctx context.Context, handle uint32, keys string) error {
	engine, err := d.source.Acquire(ctx)
	if err != nil {
		return err
	}
	return engine.SendKeys(ctx, handle, keys)
}

func findControl(controls []platform.ControlInfo, class string) (platform.ControlInfo, bool) {
	if class == "" {
		return platform.ControlInfo{}, false
	}
	for _, c := range controls {
		if c.Ref.Class == class {
			return c, true
		}
	}
	for _, c := range controls {
		if isOrdinalOf(c.Ref.Class, class) {
			return c, true
		}
	}
	return platform.ControlInfo{}, false
}

// isOrdinalOf reports whether classNN is class followed by a number.
func isOrdinalOf(classNN, class string) bool {
	rest, ok := strings.CutPrefix(classNN, class)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
