// Package display answers which monitor a point or window is on.
package display

import (
	"context"
	"fmt"
	"math"

	"github.com/1broseidon/deskmcp/internal/platform"
)

// Resolver maps points and windows to monitors.
type Resolver struct {
	provider platform.DisplayProvider
	windows  platform.EngineSource
}

// New returns a Resolver. windows is used to look up window frames.
func New(provider platform.DisplayProvider, windows platform.EngineSource) *Resolver {
	return &Resolver{provider: provider, windows: windows}
}

func (r *Resolver) monitors(ctx context.Context) ([]platform.MonitorInfo, error) {
	monitors, err := r.provider.Monitors(ctx)
	if err != nil {
		return nil, err
	}
	if len(monitors) == 0 {
		return nil, fmt.Errorf("%w: display reports no monitors", platform.ErrNoMonitorFound)
	}
	return monitors, nil
}

// EnumerateMonitors lists every active monitor.
func (r *Resolver) EnumerateMonitors(ctx context.Context) ([]platform.MonitorInfo, error) {
	return r.monitors(ctx)
}

// MonitorAtPoint returns the monitor containing (x, y), or the nearest one
// when the point is off every screen.
func (r *Resolver) MonitorAtPoint(ctx context.Context, x, y int) (platform.MonitorInfo, error) {
	monitors, err := r.monitors(ctx)
	if err != nil {
		return platform.MonitorInfo{}, err
	}
	for _, m := range monitors {
		if m.Bounds.Contains(x, y) {
			return m, nil
		}
	}

	best, bestDist := 0, math.MaxFloat64
	for i, m := range monitors {
		if d := distance(m.Bounds, x, y); d < bestDist {
			best, bestDist = i, d
		}
	}
	return monitors[best], nil
}

// distance from (x, y) to the closest pixel of r.
func distance(r platform.Rect, x, y int) float64 {
	cx := min(max(x, r.X), r.X+r.Width-1)
	cy := min(max(y, r.Y), r.Y+r.Height-1)
	return math.Hypot(float64(x-cx), float64(y-cy))
}

// MonitorOfWindow returns the monitor that holds the largest part of the
// window's frame.
func (r *Resolver) MonitorOfWindow(ctx context.Context, ref platform.WindowRef) (platform.MonitorInfo, error) {
	engine, err := r.windows.Acquire(ctx)
	if err != nil {
		return platform.MonitorInfo{}, err
	}
	win, err := engine.Window(ctx, ref)
	if err != nil {
		return platform.MonitorInfo{}, err
	}

	monitors, err := r.monitors(ctx)
	if err != nil {
		return platform.MonitorInfo{}, err
	}

	best, bestArea := -1, 0
	for i, m := range monitors {
		if area := m.Bounds.Intersect(win.Bounds).Area(); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return platform.MonitorInfo{}, fmt.Errorf("%w: window %s is off screen", platform.ErrNoMonitorFound, ref)
	}
	return monitors[best], nil
}

// PrimaryMonitor returns the RandR primary output, else the monitor at the
// origin, else the first one.
func (r *Resolver) PrimaryMonitor(ctx context.Context) (platform.MonitorInfo, error) {
	monitors, err := r.monitors(ctx)
	if err != nil {
		return platform.MonitorInfo{}, err
	}
	for _, m := range monitors {
		if m.Primary {
			return m, nil
		}
	}
	for _, m := range monitors {
		if m.Bounds.Contains(0, 0) {
			return m, nil
		}
	}
	return monitors[0], nil
}
