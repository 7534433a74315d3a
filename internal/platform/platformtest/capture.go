package platformtest

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// CaptureSource hands out Capturers that return a solid image of the
// requested size. It counts opens, closes and peak concurrent grabs.
type CaptureSource struct {
	OpenErr   error
	GrabErr   error
	GrabDelay time.Duration
	Parallel  bool

	opened    atomic.Int32
	closed    atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32

	mu      sync.Mutex
	regions []platform.Region
}

var _ platform.CaptureSource = (*CaptureSource)(nil)

func (s *CaptureSource) Open() (platform.Capturer, error) {
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opened.Add(1)
	return &capturer{src: s}, nil
}

func (s *CaptureSource) Reentrant() bool { return s.Parallel }

// Opened returns how many Capturers were handed out.
func (s *CaptureSource) Opened() int { return int(s.opened.Load()) }

// Closed returns how many Capturers were closed.
func (s *CaptureSource) Closed() int { return int(s.closed.Load()) }

// MaxConcurrent returns the highest number of grabs seen in flight at once.
func (s *CaptureSource) MaxConcurrent() int { return int(s.maxActive.Load()) }

// Regions returns the regions grabbed so far.
func (s *CaptureSource) Regions() []platform.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]platform.Region(nil), s.regions...)
}

type capturer struct {
	src    *CaptureSource
	closed bool
}

func (c *capturer) Grab(ctx context.Context, region platform.Region) (*image.RGBA, error) {
	s := c.src
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.maxActive.Load()
		if n <= peak || s.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	s.mu.Lock()
	s.regions = append(s.regions, region)
	s.mu.Unlock()

	if s.GrabDelay > 0 {
		select {
		case <-time.After(s.GrabDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.GrabErr != nil {
		return nil, s.GrabErr
	}

	img := image.NewRGBA(image.Rect(0, 0, region.Width, region.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img, nil
}

func (c *capturer) Close() error {
	if !c.closed {
		c.closed = true
		c.src.closed.Add(1)
	}
	return nil
}

// Recognizer returns a fixed list of fragments for every image.
type Recognizer struct {
	Fragments []platform.Fragment
	Err       error

	calls  atomic.Int32
	closes atomic.Int32
}

var _ platform.Recognizer = (*Recognizer)(nil)

func (r *Recognizer) Recognize(ctx context.Context, img image.Image) ([]platform.Fragment, error) {
	r.calls.Add(1)
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]platform.Fragment(nil), r.Fragments...), nil
}

func (r *Recognizer) Close() error {
	r.closes.Add(1)
	return nil
}

// Calls returns how many images were recognized.
func (r *Recognizer) Calls() int { return int(r.calls.Load()) }
