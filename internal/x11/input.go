package x11

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/1broseidon/deskmcp/internal/keyseq"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil/keybind"
)

// stepDelay is the pause between interpolated pointer moves.
var stepDelay = 5 * time.Millisecond

// PointerPosition returns the pointer position on the root window.
func (c *Connection) PointerPosition() (x, y int, err error) {
	reply, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return 0, 0, err
	}
	return int(reply.RootX), int(reply.RootY), nil
}

// MovePointer moves the pointer to (x, y) along a straight line. speed
// follows the 0..100 scale where 0 jumps and larger values move slower.
func (c *Connection) MovePointer(ctx context.Context, x, y, speed int) error {
	fromX, fromY, err := c.PointerPosition()
	if err != nil {
		return err
	}

	for i, p := range PointerPath(fromX, fromY, x, y, speed) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepDelay):
			}
		}
		err := xproto.WarpPointerChecked(
			c.XUtil.Conn(),
			xproto.WindowNone,
			c.Root,
			0, 0, 0, 0,
			int16(p[0]), int16(p[1]),
		).Check()
		if err != nil {
			return fmt.Errorf("warp pointer: %w", err)
		}
	}
	return nil
}

// PointerPath interpolates the positions visited when moving from one point
// to another. The last element is always the destination.
func PointerPath(fromX, fromY, toX, toY, speed int) [][2]int {
	dx := float64(toX - fromX)
	dy := float64(toY - fromY)
	dist := math.Hypot(dx, dy)

	steps := 1
	if speed > 0 {
		steps = min(speed*4, int(dist))
	}
	if steps < 1 {
		steps = 1
	}

	path := make([][2]int, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		path = append(path, [2]int{
			fromX + int(math.Round(dx*t)),
			fromY + int(math.Round(dy*t)),
		})
	}
	return path
}

// Click presses and releases a pointer button (1 left, 2 middle, 3 right)
// at the current pointer position through XTEST.
func (c *Connection) Click(button byte) error {
	conn := c.XUtil.Conn()
	if err := xtest.FakeInputChecked(conn, xproto.ButtonPress, button, 0, c.Root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("button %d press: %w", button, err)
	}
	if err := xtest.FakeInputChecked(conn, xproto.ButtonRelease, button, 0, c.Root, 0, 0, 0).Check(); err != nil {
		return fmt.Errorf("button %d release: %w", button, err)
	}
	return nil
}

type keyEvent struct {
	keysym string
	state  uint16
	press  bool
}

// keyEvents expands strokes into press and release events with the X
// modifier state that applies to each.
func keyEvents(strokes []keyseq.Stroke) []keyEvent {
	var out []keyEvent
	for _, s := range strokes {
		state := modMask(s.Mods)
		switch s.Action {
		case keyseq.Down:
			out = append(out, keyEvent{keysym: s.Key, state: state, press: true})
		case keyseq.Up:
			out = append(out, keyEvent{keysym: s.Key, state: state, press: false})
		default:
			out = append(out,
				keyEvent{keysym: s.Key, state: state, press: true},
				keyEvent{keysym: s.Key, state: state, press: false},
			)
		}
	}
	return out
}

func modMask(m keyseq.Modifier) uint16 {
	var mask uint16
	if m&keyseq.ModShift != 0 {
		mask |= xproto.ModMaskShift
	}
	if m&keyseq.ModCtrl != 0 {
		mask |= xproto.ModMaskControl
	}
	if m&keyseq.ModAlt != 0 {
		mask |= xproto.ModMask1
	}
	if m&keyseq.ModSuper != 0 {
		mask |= xproto.ModMask4
	}
	return mask
}

// SendKeys delivers strokes to target as synthetic key events. Unlike XTEST
// input this does not need target to have focus.
func (c *Connection) SendKeys(target xproto.Window, strokes []keyseq.Stroke) error {
	if !c.Exists(target) {
		return fmt.Errorf("%w: 0x%x", ErrNoWindow, uint32(target))
	}

	for _, ev := range keyEvents(strokes) {
		codes := keybind.StrToKeycodes(c.XUtil, ev.keysym)
		if len(codes) == 0 {
			return fmt.Errorf("no keycode for keysym %q", ev.keysym)
		}

		kp := xproto.KeyPressEvent{
			Detail:     codes[0],
			Time:       xproto.TimeCurrentTime,
			Root:       c.Root,
			Event:      target,
			Child:      xproto.WindowNone,
			State:      ev.state,
			SameScreen: true,
		}
		buf := kp.Bytes()
		mask := uint32(xproto.EventMaskKeyPress)
		if !ev.press {
			buf[0] = xproto.KeyRelease
			mask = xproto.EventMaskKeyRelease
		}

		if err := xproto.SendEventChecked(c.XUtil.Conn(), true, target, mask, string(buf)).Check(); err != nil {
			return fmt.Errorf("send key %q: %w", ev.keysym, err)
		}
	}
	return nil
}
