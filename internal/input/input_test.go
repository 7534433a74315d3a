package input

import (
	"context"
	"errors"
	"testing"

	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/1broseidon/deskmcp/internal/platform/platformtest"
)

func fixture() (*platformtest.Engine, *Mouse) {
	fake := platformtest.NewEngine().
		AddWindow(platform.WindowInfo{Ref: 0x10, Title: "Editor", Bounds: platform.Rect{X: 100, Y: 50, Width: 800, Height: 600}})
	fake.Active = 0x10
	fake.ClientOffsets = map[platform.WindowRef]platform.Point{0x10: platform.ScreenPoint(4, 30)}
	return fake, New(platformtest.NewSource(fake), 2)
}

func intp(v int) *int { return &v }

func TestMoveTo(t *testing.T) {
	fake, m := fixture()
	if err := m.MoveTo(context.Background(), 300, 400, nil); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if fake.Mouse != platform.ScreenPoint(300, 400) {
		t.Fatalf("pointer at %+v", fake.Mouse)
	}
	if err := m.MoveTo(context.Background(), 0, 0, intp(101)); !errors.Is(err, platform.ErrInvalidInput) {
		t.Fatalf("speed 101 should be rejected, got %v", err)
	}
}

func TestMoveRelative(t *testing.T) {
	fake, m := fixture()
	fake.Mouse = platform.ScreenPoint(10, 10)
	if err := m.MoveRelative(context.Background(), -5, 20, intp(0)); err != nil {
		t.Fatalf("MoveRelative: %v", err)
	}
	if fake.Mouse != platform.ScreenPoint(5, 30) {
		t.Fatalf("pointer at %+v", fake.Mouse)
	}
}

func TestPosition(t *testing.T) {
	fake, m := fixture()
	fake.Mouse = platform.ScreenPoint(150, 80)

	screen, err := m.Position(context.Background(), platform.Screen)
	if err != nil || screen != platform.ScreenPoint(150, 80) {
		t.Fatalf("screen position = %+v, %v", screen, err)
	}
	rel, err := m.Position(context.Background(), platform.WindowRelative)
	if err != nil || rel != (platform.Point{X: 50, Y: 30, Space: platform.WindowRelative}) {
		t.Fatalf("window-relative position = %+v, %v", rel, err)
	}
}

func TestPositionWithoutActiveWindow(t *testing.T) {
	fake, m := fixture()
	fake.Active = 0
	if _, err := m.Position(context.Background(), platform.WindowRelative); !errors.Is(err, platform.ErrStaleReference) {
		t.Fatalf("expected ErrStaleReference, got %v", err)
	}
}

func TestClick(t *testing.T) {
	tests := []struct {
		name     string
		button   platform.MouseButton
		at       *platform.Point
		wantMove *platform.Point
	}{
		{"in place", platform.ButtonLeft, nil, nil},
		{"screen", platform.ButtonRight, &platform.Point{X: 5, Y: 6}, &platform.Point{X: 5, Y: 6}},
		{"client", platform.ButtonLeft, &platform.Point{X: 10, Y: 20, Space: platform.Client}, &platform.Point{X: 114, Y: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, m := fixture()
			if err := m.Click(context.Background(), tt.button, tt.at); err != nil {
				t.Fatalf("Click: %v", err)
			}
			if len(fake.Clicks) != 1 || fake.Clicks[0] != tt.button {
				t.Fatalf("Clicks = %v", fake.Clicks)
			}
			if tt.wantMove == nil {
				if len(fake.Moves) != 0 {
					t.Fatalf("unexpected move %+v", fake.Moves)
				}
				return
			}
			if len(fake.Moves) != 1 || fake.Moves[0] != *tt.wantMove {
				t.Fatalf("Moves = %+v, want %+v", fake.Moves, *tt.wantMove)
			}
		})
	}
}
