package x11

import (
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

var ignoreModsOnce sync.Once

// GrabHotkey binds a global key combination in xgbutil notation
// ("Mod4-Escape", "Control-Shift-F12") on the root window. The event loop
// is started on first use.
func (c *Connection) GrabHotkey(keySequence string, callback func()) error {
	ignoreModsOnce.Do(func() {
		configureIgnoreMods(c.XUtil)
	})

	err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(c.XUtil, c.Root, keySequence, true)
	if err != nil {
		return err
	}

	c.StartEventLoop()
	return nil
}

// ReleaseHotkeys ungrabs every key bound on the root window.
func (c *Connection) ReleaseHotkeys() {
	keybind.Detach(c.XUtil, c.Root)
}

// configureIgnoreMods makes grabs fire regardless of CapsLock, NumLock and
// ScrollLock.
func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	xevent.IgnoreMods = ignoreMaskCombos(base)
}

// ignoreMaskCombos returns 0 plus every non-empty OR-combination of base.
func ignoreMaskCombos(base []uint16) []uint16 {
	unique := map[uint16]struct{}{0: {}}
	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		unique[mask] = struct{}{}
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}
	return ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
