package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/kbinani/screenshot"
)

// captureRect is swapped out in tests.
var captureRect = screenshot.CaptureRect

// ScreenSource captures from the X server through kbinani/screenshot.
type ScreenSource struct {
	reentrant bool
}

var _ platform.CaptureSource = (*ScreenSource)(nil)

// NewScreenSource returns a capture source. With serialize unset, captures
// may overlap.
func NewScreenSource(serialize bool) *ScreenSource {
	return &ScreenSource{reentrant: !serialize}
}

func (s *ScreenSource) Open() (platform.Capturer, error) {
	return screenCapturer{}, nil
}

func (s *ScreenSource) Reentrant() bool { return s.reentrant }

type screenCapturer struct{}

func (screenCapturer) Grab(ctx context.Context, region platform.Region) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rect := image.Rect(region.Left, region.Top, region.Left+region.Width, region.Top+region.Height)
	img, err := captureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("capture %dx%d at (%d,%d): %w", region.Width, region.Height, region.Left, region.Top, err)
	}
	return img, nil
}

func (screenCapturer) Close() error { return nil }
