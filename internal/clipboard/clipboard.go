// Package clipboard reads, writes, saves and restores the system clipboard
// and waits for it to change.
package clipboard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// Options tunes WaitForChange.
type Options struct {
	DefaultTimeout time.Duration
	Scope          func(context.Context) (context.Context, context.CancelFunc)
}

// Clipboard talks to the clipboard through the shared engine.
type Clipboard struct {
	source platform.EngineSource
	opts   Options
}

// New returns a Clipboard backed by source.
func New(source platform.EngineSource, opts Options) *Clipboard {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 10 * time.Second
	}
	return &Clipboard{source: source, opts: opts}
}

// GetText returns the clipboard as text.
func (c *Clipboard) GetText(ctx context.Context) (string, error) {
	engine, err := c.source.Acquire(ctx)
	if err != nil {
		return "", err
	}
	return engine.ClipboardText(ctx)
}

// SetText replaces the clipboard with text.
func (c *Clipboard) SetText(ctx context.Context, text string) error {
	engine, err := c.source.Acquire(ctx)
	if err != nil {
		return err
	}
	return engine.SetClipboardText(ctx, text)
}

// Save writes the full clipboard payload to path. The file is written next
// to its destination and renamed into place.
func (c *Clipboard) Save(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: save path is required", platform.ErrInvalidInput)
	}
	engine, err := c.source.Acquire(ctx)
	if err != nil {
		return err
	}
	blob, err := engine.ClipboardAll(ctx)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, blob); err != nil {
		return platform.Wrap(platform.ErrPersistence, err)
	}
	return nil
}

// Restore puts a payload written by Save back on the clipboard.
func (c *Clipboard) Restore(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: restore path is required", platform.ErrInvalidInput)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return platform.Wrap(platform.ErrPersistence, err)
	}
	engine, err := c.source.Acquire(ctx)
	if err != nil {
		return err
	}
	return engine.SetClipboardAll(ctx, blob)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// WaitForChange blocks until the clipboard changes or timeout passes. With
// anyData unset only text changes count. Timing out returns false, not an
// error. The engine watcher is stopped before returning.
func (c *Clipboard) WaitForChange(ctx context.Context, timeout time.Duration, anyData bool) (bool, error) {
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}
	if c.opts.Scope != nil {
		var cancel context.CancelFunc
		ctx, cancel = c.opts.Scope(ctx)
		defer cancel()
	}

	engine, err := c.source.Acquire(ctx)
	if err != nil {
		return false, err
	}

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	changes, err := engine.WatchClipboard(watchCtx, anyData)
	if err != nil {
		return false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case _, ok := <-changes:
		if !ok {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, fmt.Errorf("clipboard watcher stopped")
		}
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
