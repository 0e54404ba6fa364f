package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/geom"
)

// frameBackground is the pixel value frames are painted with.
const frameBackground = 0x3c3836

// ScreenRect returns the root window's geometry.
func (c *Connection) ScreenRect() geom.Rect {
	s := c.XUtil.Screen()
	return geom.NewRect(0, 0, int(s.WidthInPixels), int(s.HeightInPixels))
}

// CreateFrame creates an unmapped input/output child of the root window.
// rect is clamped to what the request can carry.
func (c *Connection) CreateFrame(rect geom.Rect) (xproto.Window, error) {
	win, err := xproto.NewWindowId(c.Conn())
	if err != nil {
		return 0, errors.Wrap(err, "allocate frame id")
	}

	s := c.XUtil.Screen()
	err = xproto.CreateWindowChecked(c.Conn(), xproto.WindowClassCopyFromParent,
		win, c.Root,
		int16(geom.Clamp(rect.X, geom.MinCoord, geom.MaxCoord)),
		int16(geom.Clamp(rect.Y, geom.MinCoord, geom.MaxCoord)),
		uint16(geom.Clamp(rect.Width, 1, geom.MaxDim)),
		uint16(geom.Clamp(rect.Height, 1, geom.MaxDim)), 0,
		xproto.WindowClassInputOutput, s.RootVisual,
		xproto.CwBackPixel, []uint32{frameBackground}).Check()
	if err != nil {
		return 0, err
	}
	return win, nil
}

// DestroyWindow destroys win.
func (c *Connection) DestroyWindow(win xproto.Window) error {
	return xproto.DestroyWindowChecked(c.Conn(), win).Check()
}

// MapWindow maps win.
func (c *Connection) MapWindow(win xproto.Window) error {
	return xproto.MapWindowChecked(c.Conn(), win).Check()
}

// ReparentWindow moves win under parent at (x, y).
func (c *Connection) ReparentWindow(win, parent xproto.Window, x, y int) error {
	return xproto.ReparentWindowChecked(c.Conn(), win, parent, int16(x), int16(y)).Check()
}

// ConfigureWindow issues a ConfigureWindow request with the given value mask.
func (c *Connection) ConfigureWindow(win xproto.Window, mask uint16, values []uint32) error {
	return xproto.ConfigureWindowChecked(c.Conn(), win, mask, values).Check()
}

// SetEventMask replaces the event mask this client selects on win.
func (c *Connection) SetEventMask(win xproto.Window, mask uint32) error {
	return xproto.ChangeWindowAttributesChecked(c.Conn(), win,
		xproto.CwEventMask, []uint32{mask}).Check()
}

// ChangeSaveSet inserts win into, or deletes it from, the save-set.
func (c *Connection) ChangeSaveSet(win xproto.Window, mode byte) error {
	return xproto.ChangeSaveSetChecked(c.Conn(), mode, win).Check()
}

// GrabButton grabs button on win in synchronous pointer mode so presses
// are frozen until AllowEvents replays them.
func (c *Connection) GrabButton(win xproto.Window, button xproto.Button, modifiers uint16) error {
	return xproto.GrabButtonChecked(c.Conn(), false, win,
		xproto.EventMaskButtonPress,
		xproto.GrabModeSync, xproto.GrabModeAsync,
		xproto.WindowNone, xproto.CursorNone,
		byte(button), modifiers).Check()
}

// AllowEvents releases frozen pointer events.
func (c *Connection) AllowEvents(mode byte, t xproto.Timestamp) error {
	return xproto.AllowEventsChecked(c.Conn(), mode, t).Check()
}

// GrabPointer takes the pointer actively on win.
func (c *Connection) GrabPointer(win xproto.Window, mask uint16) error {
	reply, err := xproto.GrabPointer(c.Conn(), false, win, mask,
		xproto.GrabModeAsync, xproto.GrabModeAsync,
		xproto.WindowNone, xproto.CursorNone, xproto.TimeCurrentTime).Reply()
	if err != nil {
		return err
	}
	if reply.Status != xproto.GrabStatusSuccess {
		return errors.Newf("pointer grab refused (status %d)", reply.Status)
	}
	return nil
}

// UngrabPointer releases an active pointer grab.
func (c *Connection) UngrabPointer() error {
	return xproto.UngrabPointerChecked(c.Conn(), xproto.TimeCurrentTime).Check()
}

// SetInputFocus focuses win, reverting to the pointer root.
func (c *Connection) SetInputFocus(win xproto.Window) error {
	return xproto.SetInputFocusChecked(c.Conn(), xproto.InputFocusPointerRoot,
		win, xproto.TimeCurrentTime).Check()
}

// Geometry returns win's position and size relative to its parent.
func (c *Connection) Geometry(win xproto.Window) (geom.Rect, error) {
	g, err := xproto.GetGeometry(c.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return geom.Rect{}, err
	}
	return geom.NewRect(int(g.X), int(g.Y), int(g.Width), int(g.Height)), nil
}

// NormalHints reads WM_NORMAL_HINTS.
func (c *Connection) NormalHints(win xproto.Window) (*icccm.NormalHints, error) {
	return icccm.WmNormalHintsGet(c.XUtil, win)
}

// EwmhName reads _NET_WM_NAME.
func (c *Connection) EwmhName(win xproto.Window) (string, error) {
	return ewmh.WmNameGet(c.XUtil, win)
}

// IcccmName reads WM_NAME.
func (c *Connection) IcccmName(win xproto.Window) (string, error) {
	return icccm.WmNameGet(c.XUtil, win)
}

// SetWmState writes the ICCCM WM_STATE property.
func (c *Connection) SetWmState(win xproto.Window, state uint) error {
	return icccm.WmStateSet(c.XUtil, win, &icccm.WmState{State: state})
}

// SetNetWmState replaces _NET_WM_STATE with the named atoms.
func (c *Connection) SetNetWmState(win xproto.Window, states []string) error {
	return ewmh.WmStateSet(c.XUtil, win, states)
}

// DeleteProperty removes atom from win.
func (c *Connection) DeleteProperty(win xproto.Window, atom xproto.Atom) error {
	return xproto.DeletePropertyChecked(c.Conn(), win, atom).Check()
}

// ExistingWindows lists the viewable, non-override-redirect children of the
// root window in stacking order. Children that vanish while being
// inspected are skipped.
func (c *Connection) ExistingWindows() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(c.Conn(), c.Root).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "query root window tree")
	}

	cookies := make([]xproto.GetWindowAttributesCookie, len(tree.Children))
	for i, child := range tree.Children {
		cookies[i] = xproto.GetWindowAttributes(c.Conn(), child)
	}

	var out []xproto.Window
	for i, cookie := range cookies {
		attrs, err := cookie.Reply()
		if err != nil {
			continue
		}
		if attrs.OverrideRedirect || attrs.MapState != xproto.MapStateViewable {
			continue
		}
		out = append(out, tree.Children[i])
	}
	return out, nil
}
