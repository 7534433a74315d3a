package x11

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
)

// Targets the clipboard is offered under. Text is served as UTF-8 for every
// text target.
var (
	TextTargets = []string{"UTF8_STRING", "text/plain;charset=utf-8", "text/plain", "STRING", "TEXT"}
	ImageTarget = "image/png"
)

// ErrSelectionLost is returned when another client keeps the CLIPBOARD
// selection after we asked for it.
var ErrSelectionLost = errors.New("clipboard selection owned by another client")

type selectionOffer struct {
	target string
	// typ is the property type written back; text targets other than
	// STRING reply as UTF8_STRING.
	typ  string
	data []byte
}

// clipboardOffers lists what to serve for the saved formats. A nil slice
// means the format is absent; an empty one is offered as empty.
func clipboardOffers(text, png []byte) []selectionOffer {
	var offers []selectionOffer
	if text != nil {
		for _, t := range TextTargets {
			typ := "UTF8_STRING"
			if t == "STRING" {
				typ = "STRING"
			}
			offers = append(offers, selectionOffer{target: t, typ: typ, data: text})
		}
	}
	if png != nil {
		offers = append(offers, selectionOffer{target: ImageTarget, typ: ImageTarget, data: png})
	}
	return offers
}

// chunks splits data into pieces of at most size bytes. The INCR protocol
// ends with a zero-length piece, which is appended.
func chunks(data []byte, size int) [][]byte {
	var out [][]byte
	for len(data) > size {
		out = append(out, data[:size])
		data = data[size:]
	}
	if len(data) > 0 {
		out = append(out, data)
	}
	return append(out, []byte{})
}

func encodeAtoms(atoms []xproto.Atom) []byte {
	buf := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		xgb.Put32(buf[4*i:], uint32(a))
	}
	return buf
}

type resolvedOffer struct {
	typ  xproto.Atom
	data []byte
}

type incrKey struct {
	requestor xproto.Window
	property  xproto.Atom
}

type incrTransfer struct {
	typ    xproto.Atom
	pieces [][]byte
}

// clipboardOwner answers SelectionRequest events for the CLIPBOARD selection
// from an unmapped window on the engine connection.
type clipboardOwner struct {
	xu  *xgbutil.XUtil
	win xproto.Window

	clipboard xproto.Atom
	targets   xproto.Atom
	incr      xproto.Atom
	// maxPiece is the largest property payload sent in one request.
	maxPiece int

	mu        sync.Mutex
	offers    map[xproto.Atom]resolvedOffer
	order     []xproto.Atom
	transfers map[incrKey]*incrTransfer
}

func newClipboardOwner(xu *xgbutil.XUtil, root xproto.Window) (*clipboardOwner, error) {
	conn := xu.Conn()
	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, fmt.Errorf("allocate selection window: %w", err)
	}
	err = xproto.CreateWindowChecked(conn, 0, win, root, -1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, 0, 0, nil).Check()
	if err != nil {
		return nil, fmt.Errorf("create selection window: %w", err)
	}

	o := &clipboardOwner{
		xu:        xu,
		win:       win,
		transfers: map[incrKey]*incrTransfer{},
	}
	for name, dst := range map[string]*xproto.Atom{
		"CLIPBOARD": &o.clipboard,
		"TARGETS":   &o.targets,
		"INCR":      &o.incr,
	} {
		if *dst, err = xprop.Atm(xu, name); err != nil {
			return nil, err
		}
	}

	// Leave room for the ChangeProperty request header.
	o.maxPiece = int(xproto.Setup(conn).MaximumRequestLength)*4 - 32

	// xevent routes SelectionRequest by requestor, so a window callback on
	// win never fires; a hook sees every event.
	xevent.HookFun(o.hook).Connect(xu)
	return o, nil
}

// set replaces the offered data. Requests arriving before set returns see
// either the old or the new data, never a mix.
func (o *clipboardOwner) set(offers []selectionOffer) error {
	resolved := make(map[xproto.Atom]resolvedOffer, len(offers))
	order := make([]xproto.Atom, 0, len(offers))
	for _, off := range offers {
		target, err := xprop.Atm(o.xu, off.target)
		if err != nil {
			return err
		}
		typ, err := xprop.Atm(o.xu, off.typ)
		if err != nil {
			return err
		}
		resolved[target] = resolvedOffer{typ: typ, data: off.data}
		order = append(order, target)
	}

	o.mu.Lock()
	o.offers, o.order = resolved, order
	o.mu.Unlock()
	return nil
}

func (o *clipboardOwner) clear() {
	o.mu.Lock()
	o.offers, o.order = nil, nil
	o.mu.Unlock()
}

func (o *clipboardOwner) hook(xu *xgbutil.XUtil, ev interface{}) bool {
	switch e := ev.(type) {
	case xproto.SelectionRequestEvent:
		if e.Owner == o.win {
			o.answer(e)
			return false
		}
	case xproto.SelectionClearEvent:
		if e.Owner == o.win && e.Selection == o.clipboard {
			o.clear()
			return false
		}
	case xproto.PropertyNotifyEvent:
		if e.State == xproto.PropertyDelete && o.continueTransfer(e.Window, e.Atom) {
			return false
		}
	}
	return true
}

func (o *clipboardOwner) answer(ev xproto.SelectionRequestEvent) {
	property := ev.Property
	if property == xproto.AtomNone {
		// Obsolete clients name no property; the target doubles as one.
		property = ev.Target
	}
	if !o.write(ev, property) {
		property = xproto.AtomNone
	}

	notify := xproto.SelectionNotifyEvent{
		Time:      ev.Time,
		Requestor: ev.Requestor,
		Selection: ev.Selection,
		Target:    ev.Target,
		Property:  property,
	}
	xproto.SendEvent(o.xu.Conn(), false, ev.Requestor, xproto.EventMaskNoEvent, string(notify.Bytes()))
}

func (o *clipboardOwner) write(ev xproto.SelectionRequestEvent, property xproto.Atom) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ev.Selection != o.clipboard || len(o.offers) == 0 {
		return false
	}
	conn := o.xu.Conn()

	if ev.Target == o.targets {
		atoms := append([]xproto.Atom{o.targets}, o.order...)
		xproto.ChangeProperty(conn, xproto.PropModeReplace, ev.Requestor, property,
			xproto.AtomAtom, 32, uint32(len(atoms)), encodeAtoms(atoms))
		return true
	}

	offer, ok := o.offers[ev.Target]
	if !ok {
		return false
	}
	if len(offer.data) <= o.maxPiece {
		xproto.ChangeProperty(conn, xproto.PropModeReplace, ev.Requestor, property,
			offer.typ, 8, uint32(len(offer.data)), offer.data)
		return true
	}

	// Too large for one request: announce INCR and send pieces as the
	// requestor deletes the property.
	xproto.ChangeWindowAttributes(conn, ev.Requestor, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange})
	size := make([]byte, 4)
	xgb.Put32(size, uint32(len(offer.data)))
	xproto.ChangeProperty(conn, xproto.PropModeReplace, ev.Requestor, property,
		o.incr, 32, 1, size)
	// TODO: expire transfers whose requestor disappears mid-way.
	o.transfers[incrKey{ev.Requestor, property}] = &incrTransfer{
		typ:    offer.typ,
		pieces: chunks(offer.data, o.maxPiece),
	}
	return true
}

func (o *clipboardOwner) continueTransfer(requestor xproto.Window, property xproto.Atom) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	key := incrKey{requestor, property}
	t, ok := o.transfers[key]
	if !ok {
		return false
	}
	piece := t.pieces[0]
	t.pieces = t.pieces[1:]
	xproto.ChangeProperty(o.xu.Conn(), xproto.PropModeReplace, requestor, property,
		t.typ, 8, uint32(len(piece)), piece)
	if len(t.pieces) == 0 {
		delete(o.transfers, key)
	}
	return true
}

// OwnClipboard takes the CLIPBOARD selection and serves text and png under
// their targets until another client takes it over. Either may be nil.
func (c *Connection) OwnClipboard(text, png []byte) error {
	c.clipMu.Lock()
	defer c.clipMu.Unlock()

	if c.clip == nil {
		owner, err := newClipboardOwner(c.XUtil, c.Root)
		if err != nil {
			return err
		}
		c.clip = owner
	}
	if err := c.clip.set(clipboardOffers(text, png)); err != nil {
		return err
	}

	c.StartEventLoop()

	conn := c.XUtil.Conn()
	err := xproto.SetSelectionOwnerChecked(conn, c.clip.win, c.clip.clipboard, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("set selection owner: %w", err)
	}
	reply, err := xproto.GetSelectionOwner(conn, c.clip.clipboard).Reply()
	if err != nil {
		return fmt.Errorf("get selection owner: %w", err)
	}
	if reply.Owner != c.clip.win {
		c.clip.clear()
		return ErrSelectionLost
	}
	return nil
}
