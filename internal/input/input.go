// Package input moves and clicks the pointer in any coordinate space.
package input

import (
	"context"
	"fmt"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// MaxSpeed is the slowest pointer speed.
const MaxSpeed = 100

// Mouse drives the pointer through the shared engine.
type Mouse struct {
	source       platform.EngineSource
	defaultSpeed int
}

// New returns a Mouse that moves at defaultSpeed when callers pass none.
func New(source platform.EngineSource, defaultSpeed int) *Mouse {
	return &Mouse{source: source, defaultSpeed: clampSpeed(defaultSpeed)}
}

func clampSpeed(speed int) int {
	return min(max(speed, 0), MaxSpeed)
}

func (m *Mouse) speed(s *int) (int, error) {
	if s == nil {
		return m.defaultSpeed, nil
	}
	if *s < 0 || *s > MaxSpeed {
		return 0, fmt.Errorf("%w: speed %d, want 0..%d", platform.ErrInvalidInput, *s, MaxSpeed)
	}
	return *s, nil
}

// MoveTo moves the pointer to a Screen position.
func (m *Mouse) MoveTo(ctx context.Context, x, y int, speed *int) error {
	s, err := m.speed(speed)
	if err != nil {
		return err
	}
	engine, err := m.source.Acquire(ctx)
	if err != nil {
		return err
	}
	return engine.MoveMouse(ctx, platform.ScreenPoint(x, y), s)
}

// MoveRelative moves the pointer by an offset from where it is now.
func (m *Mouse) MoveRelative(ctx context.Context, dx, dy int, speed *int) error {
	s, err := m.speed(speed)
	if err != nil {
		return err
	}
	engine, err := m.source.Acquire(ctx)
	if err != nil {
		return err
	}
	at, err := engine.MousePosition(ctx)
	if err != nil {
		return err
	}
	return engine.MoveMouse(ctx, platform.ScreenPoint(at.X+dx, at.Y+dy), s)
}

// Position returns the pointer position expressed in space. Client and
// WindowRelative positions are relative to the active window.
func (m *Mouse) Position(ctx context.Context, space platform.CoordinateSpace) (platform.Point, error) {
	engine, err := m.source.Acquire(ctx)
	if err != nil {
		return platform.Point{}, err
	}
	at, err := engine.MousePosition(ctx)
	if err != nil {
		return platform.Point{}, err
	}
	if space == platform.Screen {
		return at, nil
	}
	origin, err := engine.SpaceOrigin(ctx, space)
	if err != nil {
		return platform.Point{}, err
	}
	return at.FromScreen(space, origin)
}

// Click presses button, first moving to at when it is not nil. at may be in
// Screen or Client space.
func (m *Mouse) Click(ctx context.Context, button platform.MouseButton, at *platform.Point) error {
	engine, err := m.source.Acquire(ctx)
	if err != nil {
		return err
	}
	if at != nil {
		target := *at
		if target.Space != platform.Screen {
			origin, err := engine.SpaceOrigin(ctx, target.Space)
			if err != nil {
				return err
			}
			if target, err = target.ToScreen(origin); err != nil {
				return err
			}
		}
		if err := engine.MoveMouse(ctx, target, 0); err != nil {
			return err
		}
	}
	return engine.Click(ctx, button)
}
