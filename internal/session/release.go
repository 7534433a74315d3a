package session

import (
	"context"
	"fmt"
	"time"
)

// step is one teardown action.
type step struct {
	name string
	run  func() error
}

// Release tears the session down. Only the first call does anything. The
// steps run in a fixed order: stop hotkey listeners, cancel in-flight waits,
// terminate the engine. A step that fails or panics is logged and the rest
// still run. Steps still going when the shutdown timeout expires are left
// behind so the process can exit.
func (m *Manager) Release(ctx context.Context) {
	m.releaseOnce.Do(func() {
		m.release(ctx)
	})
}

func (m *Manager) release(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ShutdownTimeout)
	defer cancel()

	m.mu.Lock()
	m.released = true
	engine := m.engine
	m.engine = nil
	m.hotkeys = nil
	m.mu.Unlock()

	var steps []step
	if engine != nil {
		steps = append(steps, step{name: "stop hotkeys", run: engine.StopHotkeys})
	}
	steps = append(steps, step{name: "cancel waits", run: func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.waitCancel(errWaitsCancelled)
		return nil
	}})
	if engine != nil {
		steps = append(steps, step{name: "close engine", run: engine.Close})
	}

	for _, s := range steps {
		start := time.Now()
		if err := runStep(ctx, s); err != nil {
			logf("Session: teardown step %q: %v", s.name, err)
			continue
		}
		logf("Session: teardown step %q done in %s", s.name, time.Since(start).Round(time.Millisecond))
	}
}

// runStep runs s.run with panic capture and gives up waiting once ctx is
// done. An abandoned step keeps running in its goroutine.
func runStep(ctx context.Context, s step) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- s.run()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("abandoned: %w", ctx.Err())
	}
}
