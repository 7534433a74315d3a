// Package session owns the process-wide automation engine. The engine is
// created lazily on first use, probed for liveness, shared by every caller
// and torn down exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// ErrReleased is returned by Acquire after Release has run.
var ErrReleased = errors.New("engine session released")

// errWaitsCancelled is the cause attached to wait scopes cancelled by the
// cancel-waits hotkey or by teardown.
var errWaitsCancelled = errors.New("waits cancelled")

// Factory creates a new engine. It is called at most once per successful
// initialization.
type Factory func(ctx context.Context) (platform.Engine, error)

// Options bound startup and teardown.
type Options struct {
	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// logf is replaced in tests.
var logf = log.Printf

type startup struct {
	done chan struct{}
	err  error
}

// Manager hands out the shared engine.
type Manager struct {
	factory Factory
	opts    Options

	mu         sync.Mutex
	engine     platform.Engine
	pending    *startup
	released   bool
	hotkeys    []string
	waitCtx    context.Context
	waitCancel context.CancelCauseFunc

	releaseOnce sync.Once
}

// New returns a Manager that builds its engine with factory.
func New(factory Factory, opts Options) *Manager {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 10 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	m := &Manager{factory: factory, opts: opts}
	m.waitCtx, m.waitCancel = context.WithCancelCause(context.Background())
	return m
}

// Acquire returns the shared engine, starting it on first use. Callers that
// arrive while a startup is in flight wait for it and share its outcome. A
// failed startup is not cached; the next call tries again.
func (m *Manager) Acquire(ctx context.Context) (platform.Engine, error) {
	for {
		m.mu.Lock()
		if m.released {
			m.mu.Unlock()
			return nil, ErrReleased
		}
		if m.engine != nil {
			e := m.engine
			m.mu.Unlock()
			return e, nil
		}
		if p := m.pending; p != nil {
			m.mu.Unlock()
			select {
			case <-p.done:
				if p.err != nil && !isContextErr(p.err) {
					return nil, p.err
				}
				// Either it worked, or the starter gave up on its own
				// context and this caller should try again.
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		p := &startup{done: make(chan struct{})}
		m.pending = p
		m.mu.Unlock()

		engine, err := m.start(ctx)

		m.mu.Lock()
		m.pending = nil
		if err == nil && m.released {
			// Release ran while we were starting; nobody owns this engine.
			m.closeQuietly(engine)
			engine, err = nil, ErrReleased
		}
		if err == nil {
			m.engine = engine
		}
		p.err = err
		close(p.done)
		m.mu.Unlock()

		return engine, err
	}
}

func (m *Manager) start(ctx context.Context) (platform.Engine, error) {
	sctx, cancel := context.WithTimeout(ctx, m.opts.StartupTimeout)
	defer cancel()

	engine, err := m.factory(sctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", platform.ErrEngineStartup, err)
	}

	if err := engine.Probe(sctx); err != nil {
		m.closeQuietly(engine)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: liveness probe: %v", platform.ErrEngineStartup, err)
	}
	return engine, nil
}

func (m *Manager) closeQuietly(engine platform.Engine) {
	defer func() {
		if r := recover(); r != nil {
			logf("Session: engine close panicked: %v", r)
		}
	}()
	if err := engine.Close(); err != nil {
		logf("Session: engine close failed: %v", err)
	}
}

// RegisterHotkey binds a global hotkey on the engine. The binding lives
// until Release.
func (m *Manager) RegisterHotkey(ctx context.Context, sequence string, fn func()) error {
	engine, err := m.Acquire(ctx)
	if err != nil {
		return err
	}

	safe := func() {
		defer func() {
			if r := recover(); r != nil {
				logf("Session: hotkey %s handler panicked: %v", sequence, r)
			}
		}()
		fn()
	}
	if err := engine.RegisterHotkey(sequence, safe); err != nil {
		return err
	}

	m.mu.Lock()
	m.hotkeys = append(m.hotkeys, sequence)
	m.mu.Unlock()
	return nil
}

// WaitScope derives a context for a wait primitive. It is cancelled when
// parent is, when CancelWaits is called, or when the session is released.
func (m *Manager) WaitScope(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	m.mu.Lock()
	scope := m.waitCtx
	m.mu.Unlock()

	stop := context.AfterFunc(scope, func() { cancel(errWaitsCancelled) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// CancelWaits stops every wait currently in flight. Waits started later are
// unaffected.
func (m *Manager) CancelWaits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitCancel(errWaitsCancelled)
	if !m.released {
		m.waitCtx, m.waitCancel = context.WithCancelCause(context.Background())
	}
}

// Monitors lets the Manager serve as a display provider when the engine
// implements one.
func (m *Manager) Monitors(ctx context.Context) ([]platform.MonitorInfo, error) {
	engine, err := m.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	provider, ok := engine.(platform.DisplayProvider)
	if !ok {
		return nil, errors.New("engine does not report monitor topology")
	}
	return provider.Monitors(ctx)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
