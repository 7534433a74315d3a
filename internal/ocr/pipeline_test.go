package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/1broseidon/deskmcp/internal/platform/platformtest"
)

var region = platform.Region{Left: 100, Top: 200, Width: 300, Height: 80}

func newPipeline(src *platformtest.CaptureSource, rec *platformtest.Recognizer) (*Pipeline, *atomic.Int32) {
	var built atomic.Int32
	p := New(src, func() (platform.Recognizer, error) {
		built.Add(1)
		return rec, nil
	})
	return p, &built
}

func TestCaptureText(t *testing.T) {
	src := &platformtest.CaptureSource{}
	rec := &platformtest.Recognizer{Fragments: []platform.Fragment{
		{Text: "Hello\n", Confidence: 0.9},
		{Text: "   ", Confidence: 0.1},
		{Text: "world", Confidence: 0.8},
	}}
	p, _ := newPipeline(src, rec)

	got, err := p.CaptureText(context.Background(), region)
	if err != nil {
		t.Fatalf("CaptureText: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("CaptureText = %q, want %q", got, "Hello world")
	}
	if regions := src.Regions(); len(regions) != 1 || regions[0] != region {
		t.Fatalf("grabbed %+v", regions)
	}
}

func TestCaptureText_Empty(t *testing.T) {
	p, _ := newPipeline(&platformtest.CaptureSource{}, &platformtest.Recognizer{})
	got, err := p.CaptureText(context.Background(), region)
	if err != nil || got != "" {
		t.Fatalf("empty capture = %q, %v; want empty success", got, err)
	}
}

func TestCaptureDetailed_PolygonsAreRegionRelativeAndClamped(t *testing.T) {
	rec := &platformtest.Recognizer{Fragments: []platform.Fragment{
		{Box: image.Rect(10, 5, 120, 30), Text: "File", Confidence: 0.97},
		{Box: image.Rect(-4, 50, 320, 90), Text: "overflow", Confidence: 1.7},
		{Box: image.Rect(0, 0, 5, 5), Text: "", Confidence: 0.5},
		{Box: image.Rect(200, 10, 250, 20), Text: "neg", Confidence: -0.2},
	}}
	p, _ := newPipeline(&platformtest.CaptureSource{}, rec)

	got, err := p.CaptureDetailed(context.Background(), region)
	if err != nil {
		t.Fatalf("CaptureDetailed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3 (empty text dropped)", len(got))
	}

	first := got[0]
	rr := platform.RegionRelative
	want := [4]platform.Point{{X: 10, Y: 5, Space: rr}, {X: 120, Y: 5, Space: rr}, {X: 120, Y: 30, Space: rr}, {X: 10, Y: 30, Space: rr}}
	if first.Polygon != want || first.Text != "File" || first.Confidence != 0.97 {
		t.Fatalf("first = %+v", first)
	}

	for _, r := range got {
		for _, pt := range r.Polygon {
			if pt.Space != platform.RegionRelative {
				t.Fatalf("%q has point %+v in %s space, want region", r.Text, pt, pt.Space)
			}
			if pt.X < 0 || pt.X > region.Width || pt.Y < 0 || pt.Y > region.Height {
				t.Fatalf("%q has point %+v outside the region", r.Text, pt)
			}
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Fatalf("%q confidence %v outside [0,1]", r.Text, r.Confidence)
		}
	}
	if got[1].Polygon[2] != (platform.Point{X: 300, Y: 80, Space: rr}) {
		t.Fatalf("overflowing box not clamped: %+v", got[1].Polygon)
	}
}

func TestErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		src    *platformtest.CaptureSource
		rec    *platformtest.Recognizer
		region platform.Region
		want   error
	}{
		{"invalid region", &platformtest.CaptureSource{}, &platformtest.Recognizer{}, platform.Region{Width: 0, Height: 10}, platform.ErrCapture},
		{"open fails", &platformtest.CaptureSource{OpenErr: errors.New("no display")}, &platformtest.Recognizer{}, region, platform.ErrCapture},
		{"grab fails", &platformtest.CaptureSource{GrabErr: errors.New("BadMatch")}, &platformtest.Recognizer{}, region, platform.ErrCapture},
		{"recognizer fails", &platformtest.CaptureSource{}, &platformtest.Recognizer{Err: errors.New("tessdata missing")}, region, platform.ErrRecognition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPipeline(tt.src, tt.rec)
			_, err := p.CaptureText(context.Background(), tt.region)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if tt.src.Opened() != tt.src.Closed() {
				t.Fatalf("capturer leaked: opened %d closed %d", tt.src.Opened(), tt.src.Closed())
			}
		})
	}
}

func TestRecognizerBuiltOnce(t *testing.T) {
	src := &platformtest.CaptureSource{Parallel: true}
	rec := &platformtest.Recognizer{Fragments: []platform.Fragment{{Text: "x"}}}
	p, built := newPipeline(src, rec)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.CaptureText(context.Background(), region); err != nil {
				t.Errorf("CaptureText: %v", err)
			}
		}()
	}
	wg.Wait()

	if built.Load() != 1 {
		t.Fatalf("recognizer built %d times, want 1", built.Load())
	}
	if rec.Calls() != 8 {
		t.Fatalf("recognize calls = %d, want 8", rec.Calls())
	}
}

func TestRecognizerBuildFailureIsRetried(t *testing.T) {
	rec := &platformtest.Recognizer{}
	attempts := 0
	p := New(&platformtest.CaptureSource{}, func() (platform.Recognizer, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("libtesseract not found")
		}
		return rec, nil
	})

	if _, err := p.CaptureText(context.Background(), region); !errors.Is(err, platform.ErrRecognition) {
		t.Fatalf("expected ErrRecognition, got %v", err)
	}
	if _, err := p.CaptureText(context.Background(), region); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
}

func TestCaptureSerialization(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		src := &platformtest.CaptureSource{Parallel: parallel, GrabDelay: 20 * time.Millisecond}
		p, _ := newPipeline(src, &platformtest.Recognizer{})

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = p.CaptureText(context.Background(), region)
			}()
		}
		wg.Wait()

		if !parallel && src.MaxConcurrent() != 1 {
			t.Fatalf("non-reentrant source saw %d concurrent grabs", src.MaxConcurrent())
		}
		if src.Opened() != 4 || src.Closed() != 4 {
			t.Fatalf("opened %d closed %d, want 4 and 4", src.Opened(), src.Closed())
		}
	}
}

func TestCaptureCancelled(t *testing.T) {
	src := &platformtest.CaptureSource{GrabDelay: time.Second}
	p, _ := newPipeline(src, &platformtest.Recognizer{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := p.CaptureText(ctx, region); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if src.Closed() != 1 {
		t.Fatal("capturer must be closed on cancellation")
	}
}

func TestScreenSourceGrab(t *testing.T) {
	orig := captureRect
	defer func() { captureRect = orig }()

	var asked image.Rectangle
	captureRect = func(r image.Rectangle) (*image.RGBA, error) {
		asked = r
		return image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy())), nil
	}

	src := NewScreenSource(true)
	if src.Reentrant() {
		t.Fatal("serialized source must not be reentrant")
	}
	c, err := src.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	img, err := c.Grab(context.Background(), region)
	if err != nil {
		t.Fatalf("Grab: %v", err)
	}
	if asked != image.Rect(100, 200, 400, 280) {
		t.Fatalf("captured %v", asked)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 80 {
		t.Fatalf("image bounds %v", img.Bounds())
	}
}
