//go:build linux

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// clipboardBlob is the on-disk form of a saved clipboard. Each format is
// kept byte for byte; the json encoder base64s them.
type clipboardBlob struct {
	Version int    `json:"version"`
	Text    []byte `json:"text,omitempty"`
	Image   []byte `json:"image,omitempty"`
}

const clipboardBlobVersion = 1

// Seams for tests; the real package needs a display.
var (
	clipboardInit  = clipboard.Init
	clipboardRead  = clipboard.Read
	clipboardWatch = clipboard.Watch
	// The channel returned by clipboard.Write fires when another client
	// takes the selection, so it is never waited on.
	clipboardWrite = func(f clipboard.Format, b []byte) { clipboard.Write(f, b) }
	clipboardOffer = func(e *LinuxEngine, text, png []byte) error { return e.conn.OwnClipboard(text, png) }
)

type x11Clipboard struct {
	once    sync.Once
	initErr error
}

func newX11Clipboard() *x11Clipboard {
	return &x11Clipboard{}
}

func (c *x11Clipboard) ready() error {
	c.once.Do(func() {
		if err := clipboardInit(); err != nil {
			c.initErr = fmt.Errorf("clipboard unavailable: %w", err)
		}
	})
	return c.initErr
}

func (e *LinuxEngine) ClipboardText(ctx context.Context) (string, error) {
	if err := e.clip.ready(); err != nil {
		return "", err
	}
	return string(clipboardRead(clipboard.FmtText)), nil
}

func (e *LinuxEngine) SetClipboardText(ctx context.Context, text string) error {
	if err := e.clip.ready(); err != nil {
		return err
	}
	clipboardWrite(clipboard.FmtText, []byte(text))
	return nil
}

func (e *LinuxEngine) ClipboardAll(ctx context.Context) ([]byte, error) {
	if err := e.clip.ready(); err != nil {
		return nil, err
	}
	return encodeClipboardBlob(clipboardRead(clipboard.FmtText), clipboardRead(clipboard.FmtImage))
}

func (e *LinuxEngine) SetClipboardAll(ctx context.Context, data []byte) error {
	if err := e.clip.ready(); err != nil {
		return err
	}
	blob, err := decodeClipboardBlob(data)
	if err != nil {
		return err
	}
	switch {
	case blob.Text != nil && blob.Image != nil:
		// One owner has to answer for both formats.
		if err := clipboardOffer(e, blob.Text, blob.Image); err != nil {
			return fmt.Errorf("restore clipboard: %w", err)
		}
	case blob.Text != nil:
		clipboardWrite(clipboard.FmtText, blob.Text)
	case blob.Image != nil:
		clipboardWrite(clipboard.FmtImage, blob.Image)
	default:
		clipboardWrite(clipboard.FmtText, []byte{})
	}
	return nil
}

func (e *LinuxEngine) WatchClipboard(ctx context.Context, anyData bool) (<-chan struct{}, error) {
	if err := e.clip.ready(); err != nil {
		return nil, err
	}

	text := clipboardWatch(ctx, clipboard.FmtText)
	var image <-chan []byte
	if anyData {
		image = clipboardWatch(ctx, clipboard.FmtImage)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-text:
				if !ok {
					return
				}
			case _, ok := <-image:
				if !ok {
					return
				}
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}

func encodeClipboardBlob(text, image []byte) ([]byte, error) {
	return json.Marshal(clipboardBlob{Version: clipboardBlobVersion, Text: text, Image: image})
}

func decodeClipboardBlob(data []byte) (clipboardBlob, error) {
	var blob clipboardBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return clipboardBlob{}, fmt.Errorf("%w: not a saved clipboard: %v", ErrInvalidInput, err)
	}
	if blob.Version != clipboardBlobVersion {
		return clipboardBlob{}, fmt.Errorf("%w: unsupported clipboard blob version %d", ErrInvalidInput, blob.Version)
	}
	return blob, nil
}
