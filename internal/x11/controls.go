package x11

import (
	"strconv"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"
)

// Control is a child window of a top-level client. Class is in ClassNN
// form; X and Y are relative to the owning window's outer frame.
type Control struct {
	ID     xproto.Window
	Class  string
	Text   string
	X      int
	Y      int
	Width  int
	Height int
}

// Controls walks the descendants of top depth first and returns those that
// carry a WM_CLASS.
func (c *Connection) Controls(top xproto.Window) ([]Control, error) {
	fx, fy, _, _, err := c.FrameRect(top)
	if err != nil {
		return nil, err
	}

	ids := c.descendants(top)
	classes := make([]string, 0, len(ids))
	kept := make([]xproto.Window, 0, len(ids))
	for _, id := range ids {
		wmClass, err := icccm.WmClassGet(c.XUtil, id)
		if err != nil || strings.TrimSpace(wmClass.Class) == "" {
			continue
		}
		classes = append(classes, strings.TrimSpace(wmClass.Class))
		kept = append(kept, id)
	}

	numbered := ClassNN(classes)
	controls := make([]Control, 0, len(kept))
	for i, id := range kept {
		x, y, w, h, err := c.ClientRect(id)
		if err != nil {
			// Destroyed while we were walking.
			continue
		}
		controls = append(controls, Control{
			ID:     id,
			Class:  numbered[i],
			Text:   c.WindowTitle(id),
			X:      x - fx,
			Y:      y - fy,
			Width:  w,
			Height: h,
		})
	}
	return controls, nil
}

// WindowText returns the title of top followed by the text of every
// descendant that has a name, one per line.
func (c *Connection) WindowText(top xproto.Window) (string, error) {
	if !c.Exists(top) {
		return "", ErrNoWindow
	}
	lines := []string{}
	if title := c.WindowTitle(top); title != "" {
		lines = append(lines, title)
	}
	for _, id := range c.descendants(top) {
		if text := c.WindowTitle(id); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (c *Connection) descendants(win xproto.Window) []xproto.Window {
	tree, err := xproto.QueryTree(c.XUtil.Conn(), win).Reply()
	if err != nil {
		return nil
	}
	var out []xproto.Window
	for _, child := range tree.Children {
		out = append(out, child)
		out = append(out, c.descendants(child)...)
	}
	return out
}

// ClassNN numbers each class by its 1-based position among siblings of the
// same class: ["Edit", "Button", "Edit"] becomes ["Edit1", "Button1", "Edit2"].
func ClassNN(classes []string) []string {
	seen := make(map[string]int, len(classes))
	out := make([]string, len(classes))
	for i, class := range classes {
		seen[class]++
		out[i] = class + strconv.Itoa(seen[class])
	}
	return out
}
