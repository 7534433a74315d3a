package mcp

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/deskmcp/internal/audit"
	"github.com/1broseidon/deskmcp/internal/clipboard"
	"github.com/1broseidon/deskmcp/internal/directory"
	"github.com/1broseidon/deskmcp/internal/display"
	"github.com/1broseidon/deskmcp/internal/input"
	"github.com/1broseidon/deskmcp/internal/ocr"
	"github.com/1broseidon/deskmcp/internal/platform"
	"github.com/1broseidon/deskmcp/internal/platform/platformtest"
)

type fixture struct {
	engine  *platformtest.Engine
	capture *platformtest.CaptureSource
	rec     *platformtest.Recognizer
	server  *Server
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T, logger *audit.Logger) *fixture {
	t.Helper()
	fake := platformtest.NewEngine().
		AddWindow(platform.WindowInfo{Ref: 0x100, PID: 11, Title: "Untitled - Notepad", Class: "Notepad", ProcessPath: "/usr/bin/notepad", ProcessName: "notepad", Bounds: platform.Rect{X: 100, Y: 100, Width: 800, Height: 600}}).
		AddWindow(platform.WindowInfo{Ref: 0x200, PID: 22, Title: "Calculator", Class: "Calc", Bounds: platform.Rect{X: 2000, Y: 100, Width: 300, Height: 400}})
	fake.Controls = map[platform.WindowRef][]platform.ControlInfo{
		0x100: {{Ref: platform.ControlRef{Handle: 0x101, Class: "Edit1"}, Window: 0x100, Text: "hello", Bounds: platform.Rect{X: 5, Y: 30, Width: 790, Height: 560, Space: platform.WindowRelative}}},
	}
	fake.ClientOffsets = map[platform.WindowRef]platform.Point{0x100: platform.ScreenPoint(4, 24)}
	fake.Active = 0x100
	fake.MonitorList = []platform.MonitorInfo{
		{Handle: 1, Name: "DP-1", Bounds: platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, RefreshRateMillihertz: intPtr(60000)},
		{Handle: 2, Name: "HDMI-1", Bounds: platform.Rect{X: 1920, Y: 0, Width: 2560, Height: 1440}, Primary: true},
	}

	src := platformtest.NewSource(fake)
	capture := &platformtest.CaptureSource{}
	rec := &platformtest.Recognizer{Fragments: []platform.Fragment{
		{Box: image.Rect(2, 3, 40, 20), Text: "OK", Confidence: 0.9},
	}}
	pipeline := ocr.New(capture, func() (platform.Recognizer, error) { return rec, nil })
	t.Cleanup(func() { pipeline.Close() })

	s := NewServer(Deps{
		Directory: directory.New(src, directory.Options{PollInterval: 5 * time.Millisecond}),
		Mouse:     input.New(src, 0),
		OCR:       pipeline,
		Displays:  display.New(fake, src),
		Clipboard: clipboard.New(src, clipboard.Options{}),
		Logger:    logger,
	})
	return &fixture{engine: fake, capture: capture, rec: rec, server: s}
}

func TestToolError_PrefixesClassification(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{platform.ErrStaleReference, "[stale_reference]"},
		{platform.Wrap(platform.ErrCapture, errors.New("denied")), "[capture]"},
		{context.Canceled, "[cancelled]"},
		{errors.New("boom"), "[engine]"},
	}
	for _, tt := range tests {
		got := toolError(tt.err)
		if !strings.HasPrefix(got.Error(), tt.want+" ") {
			t.Errorf("toolError(%v) = %q, want prefix %s", tt.err, got, tt.want)
		}
		if !errors.Is(got, tt.err) {
			t.Errorf("toolError(%v) lost the cause", tt.err)
		}
	}
	if toolError(nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestTool_RecoversPanics(t *testing.T) {
	f := newFixture(t, nil)
	h := tool(f.server, "explode", audit.ActionRead, func(context.Context, EmptyInput) (PositionOutput, error) {
		panic("kaboom")
	})
	_, out, err := h(context.Background(), nil, EmptyInput{})
	if err == nil || !strings.HasPrefix(err.Error(), "[internal] ") {
		t.Fatalf("expected internal failure, got %v", err)
	}
	if out != (PositionOutput{}) {
		t.Fatalf("expected zero output, got %+v", out)
	}
}

func TestWindowTools(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()

	all, err := s.handleGetAllWindowInfo(ctx, EmptyInput{})
	if err != nil {
		t.Fatal(err)
	}
	notepad, ok := all.Windows["0x100"]
	if !ok || notepad.ProcessName != "notepad" || notepad.X != 100 || notepad.Width != 800 {
		t.Fatalf("windows = %+v", all.Windows)
	}

	found, err := s.handleFindWindowByTitle(ctx, FindWindowByTitleInput{Title: "Calc"})
	if err != nil || !found.Found || *found.WindowID != "0x200" {
		t.Fatalf("find = %+v, %v", found, err)
	}
	found, err = s.handleFindWindowByTitle(ctx, FindWindowByTitleInput{Title: "Calc", Exact: true})
	if err != nil || found.Found || found.WindowID != nil {
		t.Fatalf("exact find = %+v, %v", found, err)
	}

	text, err := s.handleGetWindowText(ctx, WindowInput{WindowID: "0x100"})
	if err != nil || text.Text != "Untitled - Notepad" {
		t.Fatalf("text = %+v, %v", text, err)
	}

	if _, err := s.handleSendKeysToWindow(ctx, SendKeysToWindowInput{WindowID: "0x100", Keys: "hi{Enter}"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleSetAlwaysOnTop(ctx, WindowInput{WindowID: "0x100"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleDisableAlwaysOnTop(ctx, WindowInput{WindowID: "0x200"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleSendWindowToBottom(ctx, WindowInput{WindowID: "0x200"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleActivateWindow(ctx, WindowInput{WindowID: "ahk_id 0x200"}); err != nil {
		t.Fatal(err)
	}

	if len(f.engine.Sent) != 1 || f.engine.Sent[0].Keys != "hi{Enter}" {
		t.Fatalf("sent = %+v", f.engine.Sent)
	}
	if !f.engine.OnTop[0x100] || f.engine.OnTop[0x200] {
		t.Fatalf("on top = %v", f.engine.OnTop)
	}
	if len(f.engine.Restacks) != 1 || f.engine.Restacks[0].Order != platform.StackBottom {
		t.Fatalf("restacks = %+v", f.engine.Restacks)
	}
	if f.engine.Active != 0x200 {
		t.Fatalf("active = %s", f.engine.Active)
	}
}

func TestWindowTools_StaleAndInvalidReferences(t *testing.T) {
	f := newFixture(t, nil)
	h := tool(f.server, "get_window_text", audit.ActionRead, f.server.handleGetWindowText)

	_, _, err := h(context.Background(), nil, WindowInput{WindowID: "0xdead"})
	if err == nil || !strings.HasPrefix(err.Error(), "[stale_reference]") {
		t.Fatalf("expected stale reference, got %v", err)
	}
	_, _, err = h(context.Background(), nil, WindowInput{WindowID: ""})
	if err == nil || !strings.HasPrefix(err.Error(), "[invalid_input]") {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestControlTools(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()

	out, err := s.handleListWindowControls(ctx, WindowInput{WindowID: "0x100"})
	if err != nil {
		t.Fatal(err)
	}
	c, ok := out.Controls["0x101/Edit1"]
	if !ok || c.Text != "hello" || c.WindowID != "0x100" || c.Hwnd != "0x101" || c.Y != 30 {
		t.Fatalf("controls = %+v", out.Controls)
	}

	if _, err := s.handleSendKeysToControl(ctx, SendKeysToControlInput{WindowID: "0x100", ControlClass: "Edit", Keys: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleSendKeysToControlByHandle(ctx, SendKeysToControlByHandleInput{ControlHwnd: "0x101/Edit1", Keys: "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleSendKeysToControlByHandle(ctx, SendKeysToControlByHandleInput{ControlHwnd: "257", Keys: "c"}); err != nil {
		t.Fatal(err)
	}
	for i, sent := range f.engine.Sent {
		if sent.Handle != 0x101 {
			t.Fatalf("send %d went to %#x", i, sent.Handle)
		}
	}
	if len(f.engine.Sent) != 3 {
		t.Fatalf("sent = %+v", f.engine.Sent)
	}
}

func TestMouseTools(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()

	if _, err := s.handleMoveMouse(ctx, MoveMouseInput{X: 300, Y: 200}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleMoveMouseRelative(ctx, MoveMouseRelativeInput{XOffset: -50, YOffset: 10}); err != nil {
		t.Fatal(err)
	}
	pos, err := s.handleMousePositionScreen(ctx, EmptyInput{})
	if err != nil || pos != (PositionOutput{X: 250, Y: 210}) {
		t.Fatalf("screen position = %+v, %v", pos, err)
	}
	pos, err = s.handleMousePositionWindow(ctx, EmptyInput{})
	if err != nil || pos != (PositionOutput{X: 150, Y: 110}) {
		t.Fatalf("window position = %+v, %v", pos, err)
	}

	if _, err := s.handleMouseClickClient(ctx, PointInput{X: 10, Y: 10}); err != nil {
		t.Fatal(err)
	}
	if last := f.engine.Moves[len(f.engine.Moves)-1]; last != platform.ScreenPoint(114, 134) {
		t.Fatalf("client click moved to %+v", last)
	}
	if _, err := s.handleRightClickScreen(ctx, PointInput{X: 5, Y: 6}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleMouseClick(ctx, EmptyInput{}); err != nil {
		t.Fatal(err)
	}
	want := []platform.MouseButton{platform.ButtonLeft, platform.ButtonRight, platform.ButtonLeft}
	if len(f.engine.Clicks) != len(want) {
		t.Fatalf("clicks = %v", f.engine.Clicks)
	}
	for i := range want {
		if f.engine.Clicks[i] != want[i] {
			t.Fatalf("clicks = %v, want %v", f.engine.Clicks, want)
		}
	}

	if _, err := s.handleMoveMouse(ctx, MoveMouseInput{X: 1, Y: 1, Speed: intPtr(101)}); !errors.Is(err, platform.ErrInvalidInput) {
		t.Fatalf("speed 101: expected invalid input, got %v", err)
	}
}

func TestClipboardTools(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()

	if _, err := s.handleSetClipboard(ctx, SetClipboardInput{TextContent: "saved"}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "clip.bin")
	if _, err := s.handleSaveClipboard(ctx, ClipboardFileInput{SaveFilePath: path}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleSetClipboard(ctx, SetClipboardInput{TextContent: "other"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.handleRestoreClipboard(ctx, ClipboardFileInput{SaveFilePath: path}); err != nil {
		t.Fatal(err)
	}
	got, err := s.handleGetClipboard(ctx, EmptyInput{})
	if err != nil || got.Text != "saved" {
		t.Fatalf("clipboard = %+v, %v", got, err)
	}

	h := tool(s, "restore_clipboard_contents", audit.ActionClipboard, s.handleRestoreClipboard)
	_, _, err = h(ctx, nil, ClipboardFileInput{SaveFilePath: filepath.Join(t.TempDir(), "missing.bin")})
	if err == nil || !strings.HasPrefix(err.Error(), "[persistence]") {
		t.Fatalf("expected persistence failure, got %v", err)
	}

	changed, err := s.handleWaitForClipboard(ctx, WaitForClipboardInput{TimeoutSeconds: intPtr(1)})
	if err != nil || changed.Changed {
		t.Fatalf("idle clipboard wait = %+v, %v", changed, err)
	}
	if _, err := s.handleWaitForClipboard(ctx, WaitForClipboardInput{TimeoutSeconds: intPtr(0)}); !errors.Is(err, platform.ErrInvalidInput) {
		t.Fatalf("zero timeout: expected invalid input, got %v", err)
	}
}

func TestOCRTools(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()
	region := Region{Left: 0, Top: 0, Width: 200, Height: 50}

	text, err := s.handleOCRRegion(ctx, OCRRegionInput{Region: region})
	if err != nil || !strings.Contains(text.Text, "OK") {
		t.Fatalf("ocr = %+v, %v", text, err)
	}

	detailed, err := s.handleDetailedOCRRegion(ctx, OCRRegionInput{Region: region})
	if err != nil || len(detailed.Results) != 1 {
		t.Fatalf("detailed = %+v, %v", detailed, err)
	}
	r := detailed.Results[0]
	if r.Text != "OK" || r.Confidence < 0 || r.Confidence > 1 || len(r.BoundingBox) != 4 {
		t.Fatalf("result = %+v", r)
	}
	for _, p := range r.BoundingBox {
		if p[0] < 0 || p[0] > 200 || p[1] < 0 || p[1] > 50 {
			t.Fatalf("corner %v outside region", p)
		}
	}

	h := tool(s, "ocr_region", audit.ActionOCR, s.handleOCRRegion)
	_, _, err = h(ctx, nil, OCRRegionInput{Region: Region{Width: 0, Height: 10}})
	if err == nil || !strings.HasPrefix(err.Error(), "[capture]") {
		t.Fatalf("expected capture failure, got %v", err)
	}
}

func TestMonitorTools(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()

	primary, err := s.handlePrimaryMonitor(ctx, EmptyInput{})
	if err != nil || primary.Name != "HDMI-1" || primary.RefreshRateMillihertz != nil {
		t.Fatalf("primary = %+v, %v", primary, err)
	}
	at, err := s.handleMonitorFromPoint(ctx, PointInput{X: 2000, Y: 500})
	if err != nil || at.Handle != primary.Handle {
		t.Fatalf("point in primary = %+v, %v", at, err)
	}
	of, err := s.handleMonitorOfWindow(ctx, WindowInput{WindowID: "0x100"})
	if err != nil || of.Name != "DP-1" || of.Size != [2]int{1920, 1080} || *of.RefreshRateMillihertz != 60000 {
		t.Fatalf("monitor of window = %+v, %v", of, err)
	}
	all, err := s.handleEnumerateMonitors(ctx, EmptyInput{})
	if err != nil || len(all.Monitors) != 2 || all.Monitors[1].Position != [2]int{1920, 0} {
		t.Fatalf("monitors = %+v, %v", all, err)
	}
}

func TestWaitForWindowTool(t *testing.T) {
	f := newFixture(t, nil)
	s := f.server
	ctx := context.Background()

	out, err := s.handleWaitForWindow(ctx, WaitForWindowInput{Title: "Notepad", Timeout: intPtr(1)})
	if err != nil || !out.Found || *out.WindowID != "0x100" {
		t.Fatalf("wait = %+v, %v", out, err)
	}

	start := time.Now()
	out, err = s.handleWaitForWindow(ctx, WaitForWindowInput{Title: "Paint", Timeout: intPtr(1)})
	if err != nil || out.Found {
		t.Fatalf("missing window should time out quietly: %+v, %v", out, err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond || elapsed > 3*time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}

	if _, err := s.handleWaitForWindow(ctx, WaitForWindowInput{Title: "x", TitleMatchMode: "fuzzy"}); !errors.Is(err, platform.ErrInvalidInput) {
		t.Fatalf("bad match mode: expected invalid input, got %v", err)
	}
}

func TestAuditLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.log")
	logger, err := audit.NewLogger(audit.Config{Enabled: true, Level: audit.LevelDebug, FilePath: path, MaxSizeMB: 1, PreviewLength: 4})
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, logger)
	ctx := context.Background()

	send := tool(f.server, "send_keys_to_window", audit.ActionSend, f.server.handleSendKeysToWindow)
	if _, _, err := send(ctx, nil, SendKeysToWindowInput{WindowID: "0x100", Keys: "secret text"}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := send(ctx, nil, SendKeysToWindowInput{WindowID: "0x999", Keys: "x"}); err == nil {
		t.Fatal("expected stale reference")
	}
	if err := f.server.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %q", lines)
	}
	if !strings.Contains(lines[0], `[SEND] tool=send_keys_to_window outcome=ok`) || !strings.Contains(lines[0], `content="secr..."`) {
		t.Fatalf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "outcome=stale_reference") || !strings.Contains(lines[1], `window_id="0x999"`) {
		t.Fatalf("second line = %q", lines[1])
	}
}

func TestServerOverInMemoryTransport(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := f.server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	defer serverSession.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"get_all_window_info", "wait_for_window", "detailed_ocr_region", "get_primary_monitor", "restore_clipboard_contents", "mouse_click_at_client_coordinates"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "get_window_text",
		Arguments: map[string]any{"window_id": "0x100"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}

	res, err = session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "activate_window",
		Arguments: map[string]any{"window_id": "0xdead"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || len(res.Content) == 0 {
		t.Fatalf("expected tool error result, got %+v", res)
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok || !strings.HasPrefix(text.Text, "[stale_reference]") {
		t.Fatalf("error content = %#v", res.Content[0])
	}
}
