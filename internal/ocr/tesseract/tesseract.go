// Package tesseract adapts libtesseract to the platform.Recognizer
// interface. It needs cgo and the tesseract development libraries.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/otiai10/gosseract/v2"
)

// Recognizer recognizes text lines with libtesseract. The native client is
// not safe for concurrent use, so calls are serialized.
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

var _ platform.Recognizer = (*Recognizer)(nil)

// New loads the given traineddata languages ("eng", "deu", ...).
func New(languages []string) (*Recognizer, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract languages %s: %w", strings.Join(languages, "+"), err)
	}
	return &Recognizer{client: client}, nil
}

// Recognize returns one fragment per text line with confidence scaled to
// 0..1.
func (t *Recognizer) Recognize(ctx context.Context, img image.Image) ([]platform.Fragment, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, err
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, err
	}

	fragments := make([]platform.Fragment, 0, len(boxes))
	for _, b := range boxes {
		fragments = append(fragments, platform.Fragment{
			Box:        b.Box,
			Text:       b.Word,
			Confidence: b.Confidence / 100,
		})
	}
	return fragments, nil
}

func (t *Recognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
