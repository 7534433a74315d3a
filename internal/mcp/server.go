package mcp

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/deskmcp/internal/audit"
	"github.com/1broseidon/deskmcp/internal/clipboard"
	"github.com/1broseidon/deskmcp/internal/directory"
	"github.com/1broseidon/deskmcp/internal/display"
	"github.com/1broseidon/deskmcp/internal/input"
	"github.com/1broseidon/deskmcp/internal/ocr"
	"github.com/1broseidon/deskmcp/internal/platform"
)

const (
	ServerName    = "deskmcp"
	ServerVersion = "0.1.0"
)

// Deps are the components the tools dispatch to.
type Deps struct {
	Directory *directory.Directory
	Mouse     *input.Mouse
	OCR       *ocr.Pipeline
	Displays  *display.Resolver
	Clipboard *clipboard.Clipboard
	Logger    *audit.Logger
}

// Server is the MCP server exposing desktop automation tools.
type Server struct {
	mcpServer *mcpsdk.Server
	deps      Deps
	logger    *audit.Logger

	now func() time.Time
}

// NewServer creates the server and registers every tool.
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: deps.Logger,
		now:    time.Now,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close releases server resources.
func (s *Server) Close() error {
	if s == nil || s.logger == nil {
		return nil
	}
	return s.logger.Close()
}

// auditDetailer is implemented by inputs that carry identifiers worth
// logging.
type auditDetailer interface {
	auditDetails() map[string]interface{}
}

// auditContenter is implemented by inputs and outputs that carry free text.
type auditContenter interface {
	auditContent() string
}

// toolError prefixes err with its classification so clients can tell stale
// references from capture failures without parsing messages.
func toolError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %w", platform.Classify(err), err)
}

// tool adapts fn to the SDK handler shape. It classifies failures, turns
// panics into internal failures and records the call in the action log.
func tool[In, Out any](s *Server, name string, action audit.ActionType, fn func(context.Context, In) (Out, error)) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in In) (_ *mcpsdk.CallToolResult, out Out, err error) {
		start := s.now()
		outcome := "ok"

		defer func() {
			if r := recover(); r != nil {
				log.Printf("MCP: tool %s panicked: %v\n%s", name, r, debug.Stack())
				var zero Out
				out = zero
				outcome = "internal"
				err = fmt.Errorf("[internal] %s failed unexpectedly: %v", name, r)
			}
			s.record(name, action, in, out, outcome, s.now().Sub(start))
		}()

		out, err = fn(ctx, in)
		if err != nil {
			outcome = platform.Classify(err)
			var zero Out
			return nil, zero, toolError(err)
		}
		return nil, out, nil
	}
}

func (s *Server) record(name string, action audit.ActionType, in, out any, outcome string, elapsed time.Duration) {
	if s.logger == nil {
		return
	}
	entry := audit.Entry{
		Action:   action,
		Tool:     name,
		Outcome:  outcome,
		Duration: elapsed,
	}
	if d, ok := in.(auditDetailer); ok {
		entry.Details = d.auditDetails()
	}
	if c, ok := in.(auditContenter); ok {
		entry.Content = c.auditContent()
	} else if c, ok := out.(auditContenter); ok && outcome == "ok" {
		entry.Content = c.auditContent()
	}
	s.logger.Log(entry)
}

func (s *Server) registerTools() {
	// Windows
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_window_text",
		Description: "Given a window ID, retrieve the text of the window: its title followed by the names of its child windows, one per line.",
	}, tool(s, "get_window_text", audit.ActionRead, s.handleGetWindowText))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_all_window_info",
		Description: "Returns information for all non-hidden top-level windows, keyed by window ID.",
	}, tool(s, "get_all_window_info", audit.ActionRead, s.handleGetAllWindowInfo))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_keys_to_window",
		Description: "Send keys to a window in AutoHotkey Send syntax. The window does not need focus.",
	}, tool(s, "send_keys_to_window", audit.ActionSend, s.handleSendKeysToWindow))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_window_controls",
		Description: "Given a window ID, return information about the controls in the window, keyed by '<hwnd>/<class>'.",
	}, tool(s, "list_window_controls", audit.ActionRead, s.handleListWindowControls))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_keys_to_control",
		Description: "Send keys to a control identified by the window ID and control class.",
	}, tool(s, "send_keys_to_control", audit.ActionSend, s.handleSendKeysToControl))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_keys_to_control_using_hwnd",
		Description: "Send keys to a control using its hwnd. More reliable when a window has several controls of the same class.",
	}, tool(s, "send_keys_to_control_using_hwnd", audit.ActionSend, s.handleSendKeysToControlByHandle))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "activate_window",
		Description: "Activates a window, making it the active window.",
	}, tool(s, "activate_window", audit.ActionWindow, s.handleActivateWindow))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_window_always_on_top",
		Description: "Makes a window stay above other windows.",
	}, tool(s, "set_window_always_on_top", audit.ActionWindow, s.handleSetAlwaysOnTop))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "disable_window_always_on_top",
		Description: "Disables the window 'always on top' state. Has no effect if it is not set.",
	}, tool(s, "disable_window_always_on_top", audit.ActionWindow, s.handleDisableAlwaysOnTop))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_window_to_top",
		Description: "Raises the window above other windows in the stacking order.",
	}, tool(s, "send_window_to_top", audit.ActionWindow, s.handleSendWindowToTop))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "send_window_to_bottom",
		Description: "Lowers the window below other windows in the stacking order.",
	}, tool(s, "send_window_to_bottom", audit.ActionWindow, s.handleSendWindowToBottom))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "find_window_by_title",
		Description: "Find a window whose title contains the given text, or equals it when exact is set. Returns found=false when there is none.",
	}, tool(s, "find_window_by_title", audit.ActionRead, s.handleFindWindowByTitle))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "wait_for_window",
		Description: "Like AutoHotkey's WinWait. Waits for a matching window and returns its ID. Returns found=false if the timeout (default 15s) passes.",
	}, tool(s, "wait_for_window", audit.ActionWait, s.handleWaitForWindow))

	// Mouse
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_mouse_to_screen_coordinates",
		Description: "Move the mouse to a position on the screen.",
	}, tool(s, "move_mouse_to_screen_coordinates", audit.ActionInput, s.handleMoveMouse))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_mouse_relative",
		Description: "Move the mouse by offsets relative to its current position.",
	}, tool(s, "move_mouse_relative", audit.ActionInput, s.handleMoveMouseRelative))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_mouse_position_on_screen",
		Description: "Get the mouse position relative to the screen.",
	}, tool(s, "get_mouse_position_on_screen", audit.ActionRead, s.handleMousePositionScreen))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_mouse_position_relative_to_active_window",
		Description: "Get the mouse position relative to the active window's frame.",
	}, tool(s, "get_mouse_position_relative_to_active_window", audit.ActionRead, s.handleMousePositionWindow))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mouse_click",
		Description: "Click the left mouse button at its current position.",
	}, tool(s, "mouse_click", audit.ActionInput, s.handleMouseClick))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mouse_click_at_screen_coordinates",
		Description: "Click the left mouse button at coordinates relative to the screen.",
	}, tool(s, "mouse_click_at_screen_coordinates", audit.ActionInput, s.handleMouseClickScreen))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "mouse_click_at_client_coordinates",
		Description: "Click the left mouse button at coordinates relative to the active window's client area.",
	}, tool(s, "mouse_click_at_client_coordinates", audit.ActionInput, s.handleMouseClickClient))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "right_click",
		Description: "Click the right mouse button at its current position.",
	}, tool(s, "right_click", audit.ActionInput, s.handleRightClick))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "right_click_at_screen_coordinates",
		Description: "Click the right mouse button at coordinates relative to the screen.",
	}, tool(s, "right_click_at_screen_coordinates", audit.ActionInput, s.handleRightClickScreen))

	// Clipboard
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_clipboard_contents",
		Description: "Return the clipboard contents as text.",
	}, tool(s, "get_clipboard_contents", audit.ActionRead, s.handleGetClipboard))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_clipboard_contents",
		Description: "Replace the clipboard contents with text.",
	}, tool(s, "set_clipboard_contents", audit.ActionClipboard, s.handleSetClipboard))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "wait_for_clipboard_contents_to_change",
		Description: "Wait timeout_seconds (default 10) for the clipboard text to change. Returns changed=false on timeout. With any_data, any content change counts.",
	}, tool(s, "wait_for_clipboard_contents_to_change", audit.ActionWait, s.handleWaitForClipboard))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "save_clipboard_contents",
		Description: "Save the full clipboard contents as a binary blob to save_file_path.",
	}, tool(s, "save_clipboard_contents", audit.ActionClipboard, s.handleSaveClipboard))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "restore_clipboard_contents",
		Description: "Restore clipboard contents previously saved to save_file_path.",
	}, tool(s, "restore_clipboard_contents", audit.ActionClipboard, s.handleRestoreClipboard))

	// OCR
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "ocr_region",
		Description: "Capture a screen region and run OCR on it, returning the text found.",
	}, tool(s, "ocr_region", audit.ActionOCR, s.handleOCRRegion))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "detailed_ocr_region",
		Description: "Capture a screen region and run OCR on it. Returns each piece of text with its bounding box relative to the region and a confidence between 0 and 1.",
	}, tool(s, "detailed_ocr_region", audit.ActionOCR, s.handleDetailedOCRRegion))

	// Monitors
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_monitor_from_point",
		Description: "Given screen coordinates, return the monitor at that point.",
	}, tool(s, "get_monitor_from_point", audit.ActionMonitor, s.handleMonitorFromPoint))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_monitor_of_window",
		Description: "Given a window ID, return the monitor showing most of the window.",
	}, tool(s, "get_monitor_of_window", audit.ActionMonitor, s.handleMonitorOfWindow))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "enumerate_monitors",
		Description: "List all connected monitors.",
	}, tool(s, "enumerate_monitors", audit.ActionMonitor, s.handleEnumerateMonitors))

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_primary_monitor",
		Description: "Return the primary monitor.",
	}, tool(s, "get_primary_monitor", audit.ActionMonitor, s.handlePrimaryMonitor))
}
