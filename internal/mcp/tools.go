package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/1broseidon/deskmcp/internal/directory"
	"github.com/1broseidon/deskmcp/internal/platform"
)

func (s *Server) handleGetWindowText(ctx context.Context, args WindowInput) (GetWindowTextOutput, error) {
	ref, err := platform.ParseWindowRef(args.WindowID)
	if err != nil {
		return GetWindowTextOutput{}, err
	}
	text, err := s.deps.Directory.GetText(ctx, ref)
	if err != nil {
		return GetWindowTextOutput{}, err
	}
	return GetWindowTextOutput{Text: text}, nil
}

func (s *Server) handleGetAllWindowInfo(ctx context.Context, _ EmptyInput) (GetAllWindowInfoOutput, error) {
	windows, err := s.deps.Directory.ListWindows(ctx)
	if err != nil {
		return GetAllWindowInfoOutput{}, err
	}
	out := GetAllWindowInfoOutput{Windows: make(map[string]WindowInfo, len(windows))}
	for _, w := range windows {
		out.Windows[w.Ref.String()] = windowInfo(w)
	}
	return out, nil
}

func (s *Server) handleSendKeysToWindow(ctx context.Context, args SendKeysToWindowInput) (any, error) {
	ref, err := platform.ParseWindowRef(args.WindowID)
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Directory.SendKeys(ctx, ref, args.Keys)
}

func (s *Server) handleListWindowControls(ctx context.Context, args WindowInput) (ListWindowControlsOutput, error) {
	ref, err := platform.ParseWindowRef(args.WindowID)
	if err != nil {
		return ListWindowControlsOutput{}, err
	}
	controls, err := s.deps.Directory.ListControls(ctx, ref)
	if err != nil {
		return ListWindowControlsOutput{}, err
	}
	out := ListWindowControlsOutput{Controls: make(map[string]ControlInfo, len(controls))}
	for _, c := range controls {
		out.Controls[c.Ref.String()] = ControlInfo{
			Hwnd:     platform.WindowRef(c.Ref.Handle).String(),
			Class:    c.Ref.Class,
			X:        c.Bounds.X,
			Y:        c.Bounds.Y,
			Width:    c.Bounds.Width,
			Height:   c.Bounds.Height,
			Text:     c.Text,
			WindowID: c.Window.String(),
		}
	}
	return out, nil
}

func (s *Server) handleSendKeysToControl(ctx context.Context, args SendKeysToControlInput) (any, error) {
	ref, err := platform.ParseWindowRef(args.WindowID)
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Directory.SendKeysToControl(ctx, ref, args.ControlClass, args.Keys)
}

func (s *Server) handleSendKeysToControlByHandle(ctx context.Context, args SendKeysToControlByHandleInput) (any, error) {
	handle, err := parseControlHandle(args.ControlHwnd)
	if err != nil {
		return nil, err
	}
	return nil, s.deps.Directory.SendKeysToControlByHandle(ctx, handle, args.Keys)
}

// parseControlHandle accepts a bare handle or the "<hwnd>/<class>" key
// list_window_controls returns.
func parseControlHandle(s string) (uint32, error) {
	if ref, err := platform.ParseControlRef(s); err == nil {
		return ref.Handle, nil
	}
	w, err := platform.ParseWindowRef(s)
	if err != nil {
		return 0, err
	}
	return uint32(w), nil
}

func (s *Server) windowAction(ctx context.Context, id string, fn func(context.Context, platform.WindowRef) error) (any, error) {
	ref, err := platform.ParseWindowRef(id)
	if err != nil {
		return nil, err
	}
	return nil, fn(ctx, ref)
}

func (s *Server) handleActivateWindow(ctx context.Context, args WindowInput) (any, error) {
	return s.windowAction(ctx, args.WindowID, s.deps.Directory.Activate)
}

func (s *Server) handleSetAlwaysOnTop(ctx context.Context, args WindowInput) (any, error) {
	return s.windowAction(ctx, args.WindowID, func(ctx context.Context, ref platform.WindowRef) error {
		return s.deps.Directory.SetAlwaysOnTop(ctx, ref, true)
	})
}

func (s *Server) handleDisableAlwaysOnTop(ctx context.Context, args WindowInput) (any, error) {
	return s.windowAction(ctx, args.WindowID, func(ctx context.Context, ref platform.WindowRef) error {
		return s.deps.Directory.SetAlwaysOnTop(ctx, ref, false)
	})
}

func (s *Server) handleSendWindowToTop(ctx context.Context, args WindowInput) (any, error) {
	return s.windowAction(ctx, args.WindowID, s.deps.Directory.ToTop)
}

func (s *Server) handleSendWindowToBottom(ctx context.Context, args WindowInput) (any, error) {
	return s.windowAction(ctx, args.WindowID, s.deps.Directory.ToBottom)
}

func (s *Server) handleFindWindowByTitle(ctx context.Context, args FindWindowByTitleInput) (FoundWindowOutput, error) {
	ref, ok, err := s.deps.Directory.FindByTitle(ctx, args.Title, args.Exact)
	if err != nil {
		return FoundWindowOutput{}, err
	}
	return foundWindow(ref, ok), nil
}

func (s *Server) handleWaitForWindow(ctx context.Context, args WaitForWindowInput) (FoundWindowOutput, error) {
	mode, err := directory.ParseMatchMode(args.TitleMatchMode)
	if err != nil {
		return FoundWindowOutput{}, err
	}
	timeout, err := seconds(args.Timeout, "timeout")
	if err != nil {
		return FoundWindowOutput{}, err
	}
	ref, ok, err := s.deps.Directory.WaitForWindow(ctx, directory.WaitCriteria{
		Title:        args.Title,
		Text:         args.Text,
		ExcludeTitle: args.ExcludeTitle,
		ExcludeText:  args.ExcludeText,
		MatchMode:    mode,
		DetectHidden: args.DetectHiddenWindows,
	}, timeout)
	if err != nil {
		return FoundWindowOutput{}, err
	}
	return foundWindow(ref, ok), nil
}

func foundWindow(ref platform.WindowRef, ok bool) FoundWindowOutput {
	if !ok {
		return FoundWindowOutput{Found: false}
	}
	id := ref.String()
	return FoundWindowOutput{WindowID: &id, Found: true}
}

// seconds converts an optional timeout. Nil means the component default.
func seconds(v *int, field string) (time.Duration, error) {
	if v == nil {
		return 0, nil
	}
	if *v <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0 seconds, got %d", platform.ErrInvalidInput, field, *v)
	}
	return time.Duration(*v) * time.Second, nil
}

func (s *Server) handleMoveMouse(ctx context.Context, args MoveMouseInput) (any, error) {
	return nil, s.deps.Mouse.MoveTo(ctx, args.X, args.Y, args.Speed)
}

func (s *Server) handleMoveMouseRelative(ctx context.Context, args MoveMouseRelativeInput) (any, error) {
	return nil, s.deps.Mouse.MoveRelative(ctx, args.XOffset, args.YOffset, args.Speed)
}

func (s *Server) handleMousePositionScreen(ctx context.Context, _ EmptyInput) (PositionOutput, error) {
	return s.mousePosition(ctx, platform.Screen)
}

func (s *Server) handleMousePositionWindow(ctx context.Context, _ EmptyInput) (PositionOutput, error) {
	return s.mousePosition(ctx, platform.WindowRelative)
}

func (s *Server) mousePosition(ctx context.Context, space platform.CoordinateSpace) (PositionOutput, error) {
	p, err := s.deps.Mouse.Position(ctx, space)
	if err != nil {
		return PositionOutput{}, err
	}
	return PositionOutput{X: p.X, Y: p.Y}, nil
}

func (s *Server) handleMouseClick(ctx context.Context, _ EmptyInput) (any, error) {
	return nil, s.deps.Mouse.Click(ctx, platform.ButtonLeft, nil)
}

func (s *Server) handleMouseClickScreen(ctx context.Context, args PointInput) (any, error) {
	at := platform.ScreenPoint(args.X, args.Y)
	return nil, s.deps.Mouse.Click(ctx, platform.ButtonLeft, &at)
}

func (s *Server) handleMouseClickClient(ctx context.Context, args PointInput) (any, error) {
	at := platform.Point{X: args.X, Y: args.Y, Space: platform.Client}
	return nil, s.deps.Mouse.Click(ctx, platform.ButtonLeft, &at)
}

func (s *Server) handleRightClick(ctx context.Context, _ EmptyInput) (any, error) {
	return nil, s.deps.Mouse.Click(ctx, platform.ButtonRight, nil)
}

func (s *Server) handleRightClickScreen(ctx context.Context, args PointInput) (any, error) {
	at := platform.ScreenPoint(args.X, args.Y)
	return nil, s.deps.Mouse.Click(ctx, platform.ButtonRight, &at)
}

func (s *Server) handleGetClipboard(ctx context.Context, _ EmptyInput) (ClipboardTextOutput, error) {
	text, err := s.deps.Clipboard.GetText(ctx)
	if err != nil {
		return ClipboardTextOutput{}, err
	}
	return ClipboardTextOutput{Text: text}, nil
}

func (s *Server) handleSetClipboard(ctx context.Context, args SetClipboardInput) (any, error) {
	return nil, s.deps.Clipboard.SetText(ctx, args.TextContent)
}

func (s *Server) handleWaitForClipboard(ctx context.Context, args WaitForClipboardInput) (WaitForClipboardOutput, error) {
	timeout, err := seconds(args.TimeoutSeconds, "timeout_seconds")
	if err != nil {
		return WaitForClipboardOutput{}, err
	}
	changed, err := s.deps.Clipboard.WaitForChange(ctx, timeout, args.AnyData)
	if err != nil {
		return WaitForClipboardOutput{}, err
	}
	return WaitForClipboardOutput{Changed: changed}, nil
}

func (s *Server) handleSaveClipboard(ctx context.Context, args ClipboardFileInput) (any, error) {
	return nil, s.deps.Clipboard.Save(ctx, args.SaveFilePath)
}

func (s *Server) handleRestoreClipboard(ctx context.Context, args ClipboardFileInput) (any, error) {
	return nil, s.deps.Clipboard.Restore(ctx, args.SaveFilePath)
}

func (s *Server) handleOCRRegion(ctx context.Context, args OCRRegionInput) (OCRRegionOutput, error) {
	text, err := s.deps.OCR.CaptureText(ctx, args.Region.toPlatform())
	if err != nil {
		return OCRRegionOutput{}, err
	}
	return OCRRegionOutput{Text: text}, nil
}

func (s *Server) handleDetailedOCRRegion(ctx context.Context, args OCRRegionInput) (DetailedOCRRegionOutput, error) {
	results, err := s.deps.OCR.CaptureDetailed(ctx, args.Region.toPlatform())
	if err != nil {
		return DetailedOCRRegionOutput{}, err
	}
	out := DetailedOCRRegionOutput{Results: make([]OCRDetail, 0, len(results))}
	for _, r := range results {
		box := make([][2]int, 0, len(r.Polygon))
		for _, p := range r.Polygon {
			box = append(box, [2]int{p.X, p.Y})
		}
		out.Results = append(out.Results, OCRDetail{BoundingBox: box, Text: r.Text, Confidence: r.Confidence})
	}
	return out, nil
}

func (s *Server) handleMonitorFromPoint(ctx context.Context, args PointInput) (MonitorInfo, error) {
	m, err := s.deps.Displays.MonitorAtPoint(ctx, args.X, args.Y)
	if err != nil {
		return MonitorInfo{}, err
	}
	return monitorInfo(m), nil
}

func (s *Server) handleMonitorOfWindow(ctx context.Context, args WindowInput) (MonitorInfo, error) {
	ref, err := platform.ParseWindowRef(args.WindowID)
	if err != nil {
		return MonitorInfo{}, err
	}
	m, err := s.deps.Displays.MonitorOfWindow(ctx, ref)
	if err != nil {
		return MonitorInfo{}, err
	}
	return monitorInfo(m), nil
}

func (s *Server) handleEnumerateMonitors(ctx context.Context, _ EmptyInput) (EnumerateMonitorsOutput, error) {
	monitors, err := s.deps.Displays.EnumerateMonitors(ctx)
	if err != nil {
		return EnumerateMonitorsOutput{}, err
	}
	out := EnumerateMonitorsOutput{Monitors: make([]MonitorInfo, 0, len(monitors))}
	for _, m := range monitors {
		out.Monitors = append(out.Monitors, monitorInfo(m))
	}
	return out, nil
}

func (s *Server) handlePrimaryMonitor(ctx context.Context, _ EmptyInput) (MonitorInfo, error) {
	m, err := s.deps.Displays.PrimaryMonitor(ctx)
	if err != nil {
		return MonitorInfo{}, err
	}
	return monitorInfo(m), nil
}

func windowInfo(w platform.WindowInfo) WindowInfo {
	return WindowInfo{
		WindowID:    w.Ref.String(),
		PID:         w.PID,
		Title:       w.Title,
		Class:       w.Class,
		ProcessPath: w.ProcessPath,
		ProcessName: w.ProcessName,
		X:           w.Bounds.X,
		Y:           w.Bounds.Y,
		Width:       w.Bounds.Width,
		Height:      w.Bounds.Height,
	}
}

func monitorInfo(m platform.MonitorInfo) MonitorInfo {
	return MonitorInfo{
		Name:                  m.Name,
		Size:                  [2]int{m.Bounds.Width, m.Bounds.Height},
		Position:              [2]int{m.Bounds.X, m.Bounds.Y},
		RefreshRateMillihertz: m.RefreshRateMillihertz,
		Handle:                m.Handle,
		Primary:               m.Primary,
	}
}

func (r Region) toPlatform() platform.Region {
	return platform.Region{Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height}
}
