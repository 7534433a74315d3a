//go:build linux

package platform

import (
	"context"
	"errors"
	"testing"
)

func TestMoveMouseRejectsOutOfRangePoints(t *testing.T) {
	// No connection: the range check must fail before the X server is touched.
	e := &LinuxEngine{}
	for _, p := range []Point{
		ScreenPoint(32768, 0),
		ScreenPoint(0, -32769),
		ScreenPoint(1<<20, 1<<20),
	} {
		if err := e.MoveMouse(context.Background(), p, 0); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("MoveMouse(%d, %d) error = %v, want ErrInvalidInput", p.X, p.Y, err)
		}
	}
}

func TestMoveMouseRejectsNonScreenPoints(t *testing.T) {
	e := &LinuxEngine{}
	err := e.MoveMouse(context.Background(), Point{X: 1, Y: 1, Space: Client}, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}
