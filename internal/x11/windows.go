package x11

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// ErrNoWindow is returned when a window id does not name a live window.
var ErrNoWindow = errors.New("window does not exist")

// Window is a snapshot of a managed top-level window. X and Y are the
// screen position of the outer frame, including decorations.
type Window struct {
	ID          xproto.Window
	PID         int
	Title       string
	Class       string
	ProcessPath string
	X           int
	Y           int
	Width       int
	Height      int
}

// procExeLink is overridden in tests.
var procExeLink = func(pid int) (string, error) {
	return os.Readlink(filepath.Join("/proc", strconv.Itoa(pid), "exe"))
}

// ClientWindows returns the window manager's client list in its native
// order. Hidden windows are skipped unless includeHidden is set.
func (c *Connection) ClientWindows(includeHidden bool) ([]xproto.Window, error) {
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}

	out := make([]xproto.Window, 0, len(clients))
	for _, win := range clients {
		if !c.IsNormalWindow(win) {
			continue
		}
		if !includeHidden && c.IsHidden(win) {
			continue
		}
		out = append(out, win)
	}
	return out, nil
}

// Describe returns a snapshot of win, or ErrNoWindow if it is gone.
func (c *Connection) Describe(win xproto.Window) (Window, error) {
	x, y, w, h, err := c.FrameRect(win)
	if err != nil {
		return Window{}, err
	}

	info := Window{
		ID:     win,
		Title:  c.WindowTitle(win),
		Class:  c.WindowClass(win),
		X:      x,
		Y:      y,
		Width:  w,
		Height: h,
	}
	if pid, err := ewmh.WmPidGet(c.XUtil, win); err == nil {
		info.PID = int(pid)
		if path, err := procExeLink(info.PID); err == nil {
			info.ProcessPath = path
		}
	}
	return info, nil
}

// Exists reports whether win is still a live window.
func (c *Connection) Exists(win xproto.Window) bool {
	if win == 0 {
		return false
	}
	_, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(win)).Reply()
	return err == nil
}

// ClientRect returns the screen position and size of win's content area.
func (c *Connection) ClientRect(win xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: 0x%x", ErrNoWindow, uint32(win))
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		win,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: 0x%x", ErrNoWindow, uint32(win))
	}

	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// FrameRect returns the outer bounds of win, grown by the window manager's
// frame extents when it publishes them.
func (c *Connection) FrameRect(win xproto.Window) (x, y, width, height int, err error) {
	x, y, width, height, err = c.ClientRect(win)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	left, right, top, bottom := c.FrameExtents(win)
	return x - left, y - top, width + left + right, height + top + bottom, nil
}

// FrameExtents returns the window decoration sizes, or zeros when the
// window manager does not report them.
func (c *Connection) FrameExtents(win xproto.Window) (left, right, top, bottom int) {
	extents, err := ewmh.FrameExtentsGet(c.XUtil, win)
	if err != nil {
		return 0, 0, 0, 0
	}
	return int(extents.Left), int(extents.Right), int(extents.Top), int(extents.Bottom)
}

// WindowTitle prefers _NET_WM_NAME and falls back to WM_NAME.
func (c *Connection) WindowTitle(win xproto.Window) string {
	title, err := ewmh.WmNameGet(c.XUtil, win)
	if err == nil {
		title = strings.TrimSpace(title)
		if title != "" {
			return title
		}
	}

	title, err = icccm.WmNameGet(c.XUtil, win)
	if err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// WindowClass returns the class half of WM_CLASS.
func (c *Connection) WindowClass(win xproto.Window) string {
	wmClass, err := icccm.WmClassGet(c.XUtil, win)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(wmClass.Class)
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(win xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, win)
	if err != nil {
		return true
	}
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DIALOG":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}
	return len(types) == 0
}

// IsHidden reports minimized or unmapped windows.
func (c *Connection) IsHidden(win xproto.Window) bool {
	if states, err := ewmh.WmStateGet(c.XUtil, win); err == nil {
		for _, state := range states {
			if state == "_NET_WM_STATE_HIDDEN" {
				return true
			}
		}
	}
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), win).Reply()
	if err != nil {
		return true
	}
	return attrs.MapState != xproto.MapStateViewable
}

// ActiveWindow returns the focused client as reported by _NET_ACTIVE_WINDOW.
func (c *Connection) ActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
// The client message is built by hand; the xgbutil helper panics on this
// library version.
func (c *Connection) FocusWindow(win xproto.Window) error {
	atom, err := c.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return err
	}

	const sourceIndication = 2 // pager/direct action
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{sourceIndication, 0, 0, 0, 0}),
	}
	return c.sendToRoot(ev)
}

// SetAbove adds or removes _NET_WM_STATE_ABOVE on win.
func (c *Connection) SetAbove(win xproto.Window, on bool) error {
	action := ewmh.StateRemove
	if on {
		action = ewmh.StateAdd
	}
	return ewmh.WmStateReq(c.XUtil, win, action, "_NET_WM_STATE_ABOVE")
}

// Restack raises win to the top of its stacking layer, or lowers it to the
// bottom.
func (c *Connection) Restack(win xproto.Window, top bool) error {
	mode := uint32(xproto.StackModeBelow)
	if top {
		mode = uint32(xproto.StackModeAbove)
	}
	return xproto.ConfigureWindowChecked(
		c.XUtil.Conn(),
		win,
		xproto.ConfigWindowStackMode,
		[]uint32{mode},
	).Check()
}

func (c *Connection) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	return reply.Atom, nil
}

func (c *Connection) sendToRoot(ev xproto.ClientMessageEvent) error {
	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
