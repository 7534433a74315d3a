package platformtest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/1broseidon/deskmcp/internal/platform"
)

type fakeBlob struct {
	Text  string `json:"text"`
	Extra []byte `json:"extra,omitempty"`
}

func (e *Engine) ClipboardText(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ClipText, nil
}

func (e *Engine) SetClipboardText(ctx context.Context, text string) error {
	e.mu.Lock()
	e.ClipText = text
	e.ClipBlob = nil
	e.mu.Unlock()
	e.notify()
	return nil
}

func (e *Engine) ClipboardAll(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.Marshal(fakeBlob{Text: e.ClipText, Extra: e.ClipBlob})
}

func (e *Engine) SetClipboardAll(ctx context.Context, blob []byte) error {
	var b fakeBlob
	if err := json.Unmarshal(blob, &b); err != nil {
		return fmt.Errorf("%w: %v", platform.ErrInvalidInput, err)
	}
	e.mu.Lock()
	e.ClipText = b.Text
	e.ClipBlob = b.Extra
	e.mu.Unlock()
	e.notify()
	return nil
}

// SetClipboardData replaces the non-text payload, as another application
// copying an image would.
func (e *Engine) SetClipboardData(data []byte) {
	e.mu.Lock()
	e.ClipBlob = data
	e.mu.Unlock()
	e.notifyData()
}

func (e *Engine) WatchClipboard(ctx context.Context, anyData bool) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	if e.watchers == nil {
		e.watchers = map[int]watcher{}
	}
	id := e.nextID
	e.nextID++
	e.watchers[id] = watcher{ch: ch, anyData: anyData}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.watchers, id)
		e.mu.Unlock()
	}()
	return ch, nil
}

// Watchers returns how many clipboard watchers are still registered.
func (e *Engine) Watchers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.watchers)
}

type watcher struct {
	ch      chan struct{}
	anyData bool
}

func (e *Engine) notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.watchers {
		signal(w.ch)
	}
}

func (e *Engine) notifyData() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, w := range e.watchers {
		if w.anyData {
			signal(w.ch)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
