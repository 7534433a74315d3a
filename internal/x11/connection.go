package x11

import (
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	loopOnce sync.Once
	loopDone chan struct{}

	clipMu sync.Mutex
	clip   *clipboardOwner
}

// NewConnection connects to the X server named by DISPLAY and initializes
// the extensions the engine needs (XTEST for input, RandR for monitors).
func NewConnection() (*Connection, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	if err := xtest.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("xtest init failed: %w", err)
	}
	if err := randr.Init(xu.Conn()); err != nil {
		xu.Conn().Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	// Required for global hotkeys and keysym lookups.
	keybind.Initialize(xu)

	return &Connection{
		XUtil:    xu,
		Root:     xu.RootWin(),
		loopDone: make(chan struct{}),
	}, nil
}

// StartEventLoop runs the X11 event loop in the background. Calling it more
// than once has no effect.
func (c *Connection) StartEventLoop() {
	c.loopOnce.Do(func() {
		go func() {
			defer close(c.loopDone)
			xevent.Main(c.XUtil)
		}()
	})
}

// StopEventLoop asks a running event loop to return. The loop only notices
// once the next event arrives, so it waits at most grace for it.
func (c *Connection) StopEventLoop(grace time.Duration) bool {
	started := true
	c.loopOnce.Do(func() { started = false })
	if !started {
		return true
	}
	xevent.Quit(c.XUtil)
	select {
	case <-c.loopDone:
		return true
	case <-time.After(grace):
		return false
	}
}

// Ping performs a round trip to the server.
func (c *Connection) Ping() error {
	_, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	return err
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
