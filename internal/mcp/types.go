package mcp

// WindowInput addresses a single top-level window.
type WindowInput struct {
	WindowID string `json:"window_id" jsonschema:"required,Window ID as returned by get_all_window_info or find_window_by_title (e.g. 0x1a00003)"`
}

// WindowInfo describes one top-level window. Position is the outer frame in
// screen coordinates.
type WindowInfo struct {
	WindowID    string `json:"window_id"`
	PID         int    `json:"pid"`
	Title       string `json:"title"`
	Class       string `json:"class"`
	ProcessPath string `json:"process_path"`
	ProcessName string `json:"process_name"`
	X           int    `json:"x_position"`
	Y           int    `json:"y_position"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// GetWindowTextOutput is the output for the get_window_text tool.
type GetWindowTextOutput struct {
	Text string `json:"text"`
}

// EmptyInput is used by tools that take no arguments.
type EmptyInput struct{}

// GetAllWindowInfoOutput is the output for the get_all_window_info tool.
type GetAllWindowInfoOutput struct {
	Windows map[string]WindowInfo `json:"windows"`
}

// SendKeysToWindowInput is the input for the send_keys_to_window tool.
type SendKeysToWindowInput struct {
	WindowID string `json:"window_id" jsonschema:"required,Target window ID"`
	Keys     string `json:"keys" jsonschema:"required,Keys in AutoHotkey Send syntax, e.g. 'Hello{Enter}' or '^s' for Ctrl+S"`
}

// ControlInfo describes a control inside a window. Position is relative to
// the window's outer frame.
type ControlInfo struct {
	Hwnd     string `json:"hwnd"`
	Class    string `json:"class"`
	X        int    `json:"x_position"`
	Y        int    `json:"y_position"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Text     string `json:"text"`
	WindowID string `json:"window_id"`
}

// ListWindowControlsOutput is keyed by "<hwnd>/<class>".
type ListWindowControlsOutput struct {
	Controls map[string]ControlInfo `json:"controls"`
}

// SendKeysToControlInput is the input for the send_keys_to_control tool.
type SendKeysToControlInput struct {
	WindowID     string `json:"window_id" jsonschema:"required,Window that owns the control"`
	ControlClass string `json:"control_class" jsonschema:"required,Control class in ClassNN form (e.g. Edit1) or a bare class for its first instance"`
	Keys         string `json:"keys" jsonschema:"required,Keys in AutoHotkey Send syntax"`
}

// SendKeysToControlByHandleInput is the input for send_keys_to_control_using_hwnd.
type SendKeysToControlByHandleInput struct {
	ControlHwnd string `json:"control_hwnd" jsonschema:"required,Native control handle from list_window_controls"`
	Keys        string `json:"keys" jsonschema:"required,Keys in AutoHotkey Send syntax"`
}

// MoveMouseInput is the input for move_mouse_to_screen_coordinates.
type MoveMouseInput struct {
	X     int  `json:"x" jsonschema:"required,Screen X coordinate"`
	Y     int  `json:"y" jsonschema:"required,Screen Y coordinate"`
	Speed *int `json:"speed,omitempty" jsonschema:"Movement speed 0 (instant) to 100 (slowest); default from config"`
}

// MoveMouseRelativeInput is the input for move_mouse_relative.
type MoveMouseRelativeInput struct {
	XOffset int  `json:"x_offset" jsonschema:"required,Horizontal offset in pixels"`
	YOffset int  `json:"y_offset" jsonschema:"required,Vertical offset in pixels"`
	Speed   *int `json:"speed,omitempty" jsonschema:"Movement speed 0 (instant) to 100 (slowest); default from config"`
}

// PointInput carries a coordinate pair.
type PointInput struct {
	X int `json:"x" jsonschema:"required,X coordinate"`
	Y int `json:"y" jsonschema:"required,Y coordinate"`
}

// PositionOutput is a pointer position.
type PositionOutput struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FindWindowByTitleInput is the input for find_window_by_title.
type FindWindowByTitleInput struct {
	Title string `json:"title" jsonschema:"required,Title text to search for"`
	Exact bool   `json:"exact,omitempty" jsonschema:"When true the title must match exactly; otherwise any title containing it matches"`
}

// FoundWindowOutput is returned by lookups that may find nothing.
type FoundWindowOutput struct {
	WindowID *string `json:"window_id,omitempty"`
	Found    bool    `json:"found"`
}

// ClipboardTextOutput is the output for get_clipboard_contents.
type ClipboardTextOutput struct {
	Text string `json:"text"`
}

// SetClipboardInput is the input for set_clipboard_contents.
type SetClipboardInput struct {
	TextContent string `json:"text_content" jsonschema:"Text to place on the clipboard"`
}

// WaitForClipboardInput is the input for wait_for_clipboard_contents_to_change.
type WaitForClipboardInput struct {
	TimeoutSeconds *int `json:"timeout_seconds,omitempty" jsonschema:"Seconds to wait (default: 10)"`
	AnyData        bool `json:"any_data,omitempty" jsonschema:"When true any clipboard content counts, not just text"`
}

// WaitForClipboardOutput reports whether the clipboard changed before the timeout.
type WaitForClipboardOutput struct {
	Changed bool `json:"changed"`
}

// Region is a screen rectangle.
type Region struct {
	Left   int `json:"left" jsonschema:"required,Left edge in screen coordinates"`
	Top    int `json:"top" jsonschema:"required,Top edge in screen coordinates"`
	Width  int `json:"width" jsonschema:"required,Width in pixels"`
	Height int `json:"height" jsonschema:"required,Height in pixels"`
}

// OCRRegionInput is the input for the OCR tools.
type OCRRegionInput struct {
	Region Region `json:"region" jsonschema:"required,Screen region to capture"`
}

// OCRRegionOutput is the output for ocr_region.
type OCRRegionOutput struct {
	Text string `json:"text"`
}

// OCRDetail is one recognized fragment. BoundingBox holds four [x,y]
// corners, clockwise from top-left, relative to the region.
type OCRDetail struct {
	BoundingBox [][2]int `json:"bounding_box"`
	Text        string   `json:"text"`
	Confidence  float64  `json:"confidence"`
}

// DetailedOCRRegionOutput is the output for detailed_ocr_region.
type DetailedOCRRegionOutput struct {
	Results []OCRDetail `json:"results"`
}

// MonitorInfo describes a display. Size is [width, height] and Position is
// [x, y] of its top-left corner.
type MonitorInfo struct {
	Name                  string `json:"name"`
	Size                  [2]int `json:"size"`
	Position              [2]int `json:"position"`
	RefreshRateMillihertz *int   `json:"refresh_rate_millihertz"`
	Handle                uint32 `json:"handle"`
	Primary               bool   `json:"primary"`
}

// EnumerateMonitorsOutput is the output for enumerate_monitors.
type EnumerateMonitorsOutput struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// ClipboardFileInput is the input for save/restore_clipboard_contents.
type ClipboardFileInput struct {
	SaveFilePath string `json:"save_file_path" jsonschema:"required,File the clipboard payload is written to or read from"`
}

// WaitForWindowInput is the input for wait_for_window.
type WaitForWindowInput struct {
	Title               string `json:"title,omitempty" jsonschema:"Window title to match; may include ahk_id, ahk_pid, ahk_exe or ahk_class qualifiers"`
	Text                string `json:"text,omitempty" jsonschema:"Text that must appear in the window"`
	ExcludeTitle        string `json:"exclude_title,omitempty" jsonschema:"Windows whose title matches this are skipped"`
	ExcludeText         string `json:"exclude_text,omitempty" jsonschema:"Windows containing this text are skipped"`
	TitleMatchMode      string `json:"title_match_mode,omitempty" jsonschema:"1 (starts with), 2 (contains, default), 3 (exact) or RegEx"`
	DetectHiddenWindows bool   `json:"detect_hidden_windows,omitempty" jsonschema:"When true hidden windows are considered"`
	Timeout             *int   `json:"timeout,omitempty" jsonschema:"Seconds to wait (default: 15)"`
}
