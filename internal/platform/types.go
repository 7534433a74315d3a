package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// CoordinateSpace identifies the origin a position is measured from.
type CoordinateSpace int

const (
	// Screen coordinates are relative to the top-left of the virtual desktop.
	Screen CoordinateSpace = iota
	// Client coordinates are relative to the active window's content area.
	Client
	// WindowRelative coordinates are relative to the outer frame of a window.
	WindowRelative
	// RegionRelative coordinates are relative to the top-left of a captured
	// region.
	RegionRelative
)

func (s CoordinateSpace) String() string {
	switch s {
	case Screen:
		return "screen"
	case Client:
		return "client"
	case WindowRelative:
		return "window"
	case RegionRelative:
		return "region"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// ParseCoordinateSpace accepts the names used on the tool surface.
func ParseCoordinateSpace(s string) (CoordinateSpace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "screen":
		return Screen, nil
	case "client":
		return Client, nil
	case "window", "relative":
		return WindowRelative, nil
	default:
		return Screen, fmt.Errorf("%w: unknown coordinate space %q", ErrInvalidInput, s)
	}
}

// Point is a pixel position tagged with the space it is expressed in.
type Point struct {
	X     int
	Y     int
	Space CoordinateSpace
}

// ScreenPoint is shorthand for a Point in Screen space.
func ScreenPoint(x, y int) Point {
	return Point{X: x, Y: y, Space: Screen}
}

// ToScreen converts p to Screen space given the Screen position of the
// origin of p's space. Points already in Screen space are returned as is.
func (p Point) ToScreen(origin Point) (Point, error) {
	if p.Space == Screen {
		return p, nil
	}
	if origin.Space != Screen {
		return Point{}, fmt.Errorf("%w: origin for %s point must be in screen space, got %s", ErrInvalidInput, p.Space, origin.Space)
	}
	return Point{X: p.X + origin.X, Y: p.Y + origin.Y, Space: Screen}, nil
}

// FromScreen converts a Screen point into space, where origin is the Screen
// position of that space's (0,0).
func (p Point) FromScreen(space CoordinateSpace, origin Point) (Point, error) {
	if p.Space != Screen || origin.Space != Screen {
		return Point{}, fmt.Errorf("%w: FromScreen needs screen-space point and origin", ErrInvalidInput)
	}
	if space == Screen {
		return p, nil
	}
	return Point{X: p.X - origin.X, Y: p.Y - origin.Y, Space: space}, nil
}

// Rect describes a rectangular area tagged with its coordinate space.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
	Space  CoordinateSpace
}

// Contains reports whether (x, y) lies inside r. The right and bottom edges
// are exclusive.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersect returns the overlapping area of r and o, or a zero-sized Rect.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{Space: r.Space}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1, Space: r.Space}
}

// Area returns width*height, or 0 for degenerate rectangles.
func (r Rect) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Region is a capture rectangle in Screen space.
type Region struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate rejects empty regions.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: region must have positive size, got %dx%d", ErrInvalidInput, r.Width, r.Height)
	}
	return nil
}

// Rect returns the region as a Screen-space Rect.
func (r Region) Rect() Rect {
	return Rect{X: r.Left, Y: r.Top, Width: r.Width, Height: r.Height, Space: Screen}
}

// WindowRef is the engine-assigned identifier of a top-level window.
type WindowRef uint32

// ParseWindowRef accepts hex ("0x1a00003"), octal ("0o17") or decimal ids.
func ParseWindowRef(s string) (WindowRef, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "ahk_id"))
	if s == "" {
		return 0, fmt.Errorf("%w: window id is required", ErrInvalidInput)
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: window id %q cannot be resolved", ErrStaleReference, s)
	}
	return WindowRef(n), nil
}

func (w WindowRef) String() string {
	return "0x" + strconv.FormatUint(uint64(w), 16)
}

// ControlRef addresses a control inside a window. Class is in ClassNN form,
// so two controls of the same class in one window differ by Handle and
// ordinal.
type ControlRef struct {
	Handle uint32
	Class  string
}

func (c ControlRef) String() string {
	return "0x" + strconv.FormatUint(uint64(c.Handle), 16) + "/" + c.Class
}

// ParseControlRef parses the String form of a ControlRef.
func ParseControlRef(s string) (ControlRef, error) {
	handle, class, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || class == "" {
		return ControlRef{}, fmt.Errorf("%w: control reference %q must look like <handle>/<class>", ErrInvalidInput, s)
	}
	w, err := ParseWindowRef(handle)
	if err != nil {
		return ControlRef{}, err
	}
	return ControlRef{Handle: uint32(w), Class: class}, nil
}

// WindowInfo is a snapshot of a top-level window. Callers re-query for
// fresh values.
type WindowInfo struct {
	Ref         WindowRef
	PID         int
	Title       string
	Class       string
	ProcessPath string
	ProcessName string
	Bounds      Rect
}

// ControlInfo is a snapshot of a control. Bounds are WindowRelative to the
// owning window.
type ControlInfo struct {
	Ref    ControlRef
	Window WindowRef
	Text   string
	Bounds Rect
}

// OcrResult is one recognized text fragment. Polygon points are in
// RegionRelative space.
type OcrResult struct {
	Polygon    [4]Point
	Text       string
	Confidence float64
}

// MonitorInfo describes a physical display.
type MonitorInfo struct {
	Handle uint32
	Name   string
	Bounds Rect
	// RefreshRateMillihertz is nil when the rate is unknown.
	RefreshRateMillihertz *int
	Primary               bool
}
