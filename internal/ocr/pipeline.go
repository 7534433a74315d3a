// Package ocr captures a screen region and recognizes the text in it.
// Results are expressed relative to the captured region.
package ocr

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// RecognizerFactory builds the recognizer on first use.
type RecognizerFactory func() (platform.Recognizer, error)

// Pipeline runs capture then recognition. The recognizer is built once and
// shared; captures through a non-reentrant source run one at a time.
type Pipeline struct {
	source        platform.CaptureSource
	newRecognizer RecognizerFactory

	recMu sync.Mutex
	rec   platform.Recognizer

	captureMu sync.Mutex
}

// New returns a Pipeline over source. The recognizer is not built until the
// first capture.
func New(source platform.CaptureSource, newRecognizer RecognizerFactory) *Pipeline {
	return &Pipeline{source: source, newRecognizer: newRecognizer}
}

// recognizer returns the shared recognizer. A failed build is retried on the
// next call.
func (p *Pipeline) recognizer() (platform.Recognizer, error) {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	if p.rec != nil {
		return p.rec, nil
	}
	rec, err := p.newRecognizer()
	if err != nil {
		return nil, platform.Wrap(platform.ErrRecognition, err)
	}
	p.rec = rec
	return rec, nil
}

// Close releases the recognizer, if one was built.
func (p *Pipeline) Close() error {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	if p.rec == nil {
		return nil
	}
	err := p.rec.Close()
	p.rec = nil
	return err
}

// run grabs region and recognizes it while the capturer is still held. The
// capturer is closed whatever happens.
func (p *Pipeline) run(ctx context.Context, region platform.Region) ([]platform.Fragment, error) {
	if err := region.Validate(); err != nil {
		return nil, platform.Wrap(platform.ErrCapture, err)
	}

	capturer, err := p.source.Open()
	if err != nil {
		return nil, platform.Wrap(platform.ErrCapture, err)
	}
	defer capturer.Close()

	img, err := p.grab(ctx, capturer, region)
	if err != nil {
		return nil, err
	}

	rec, err := p.recognizer()
	if err != nil {
		return nil, err
	}
	fragments, err := rec.Recognize(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, platform.Wrap(platform.ErrRecognition, err)
	}
	return fragments, nil
}

func (p *Pipeline) grab(ctx context.Context, capturer platform.Capturer, region platform.Region) (*image.RGBA, error) {
	if !p.source.Reentrant() {
		p.captureMu.Lock()
		defer p.captureMu.Unlock()
	}
	img, err := capturer.Grab(ctx, region)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, platform.Wrap(platform.ErrCapture, err)
	}
	return img, nil
}

// CaptureText returns the recognized text of region, fragments joined by a
// single space in recognizer order. No text is an empty string, not an
// error.
func (p *Pipeline) CaptureText(ctx context.Context, region platform.Region) (string, error) {
	fragments, err := p.run(ctx, region)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if text := strings.TrimSpace(f.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// CaptureDetailed returns every recognized fragment of region with its
// bounding quadrilateral and confidence.
func (p *Pipeline) CaptureDetailed(ctx context.Context, region platform.Region) ([]platform.OcrResult, error) {
	fragments, err := p.run(ctx, region)
	if err != nil {
		return nil, err
	}
	out := make([]platform.OcrResult, 0, len(fragments))
	for _, f := range fragments {
		text := strings.TrimSpace(f.Text)
		if text == "" {
			continue
		}
		out = append(out, platform.OcrResult{
			Polygon:    polygon(f.Box, region.Width, region.Height),
			Text:       text,
			Confidence: min(max(f.Confidence, 0), 1),
		})
	}
	return out, nil
}

// polygon turns box into four corners clockwise from top-left, clamped to
// the region.
func polygon(box image.Rectangle, width, height int) [4]platform.Point {
	box = box.Canon()
	x0 := min(max(box.Min.X, 0), width)
	y0 := min(max(box.Min.Y, 0), height)
	x1 := min(max(box.Max.X, 0), width)
	y1 := min(max(box.Max.Y, 0), height)
	return [4]platform.Point{
		{X: x0, Y: y0, Space: platform.RegionRelative},
		{X: x1, Y: y0, Space: platform.RegionRelative},
		{X: x1, Y: y1, Space: platform.RegionRelative},
		{X: x0, Y: y1, Space: platform.RegionRelative},
	}
}
