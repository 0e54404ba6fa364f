package x11

import (
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/mousebind"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/logging"
)

// connectAttempts bounds how often NewConnection retries while the display
// server is still coming up.
const connectAttempts = 5

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	wake xproto.Atom
}

// NewConnection connects to display (empty means $DISPLAY), retrying with
// exponential backoff.
func NewConnection(display string) (*Connection, error) {
	var xu *xgbutil.XUtil

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		if display == "" {
			xu, err = xgbutil.NewConn()
		} else {
			xu, err = xgbutil.NewConnDisplay(display)
		}
		if err != nil {
			logging.L().Debug("X connection attempt failed",
				zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, backoff.WithMaxRetries(bo, connectAttempts-1))
	if err != nil {
		return nil, errors.Wrap(err, "connect to X server")
	}

	c := &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}
	if c.wake, err = xprop.Atm(xu, "_AWM_WAKE"); err != nil {
		xu.Conn().Close()
		return nil, errors.Wrap(err, "intern wake atom")
	}
	return c, nil
}

// Conn returns the raw xgb connection.
func (c *Connection) Conn() *xgb.Conn {
	return c.XUtil.Conn()
}

// Atom interns name, caching the result.
func (c *Connection) Atom(name string) (xproto.Atom, error) {
	return xprop.Atm(c.XUtil, name)
}

// AtomName resolves an atom to its name.
func (c *Connection) AtomName(atom xproto.Atom) (string, error) {
	return xprop.AtomName(c.XUtil, atom)
}

// RedirectRoot selects substructure redirection on the root window. The
// server answers with BadAccess when another client already holds it.
func (c *Connection) RedirectRoot(mask uint32) error {
	return xproto.ChangeWindowAttributesChecked(c.Conn(), c.Root,
		xproto.CwEventMask, []uint32{mask}).Check()
}

// SetSupported publishes _NET_SUPPORTED and the supporting WM check window.
func (c *Connection) SetSupported(atoms []string) error {
	if err := ewmh.SupportedSet(c.XUtil, atoms); err != nil {
		return errors.Wrap(err, "set _NET_SUPPORTED")
	}
	dummy := c.XUtil.Dummy()
	if err := ewmh.SupportingWmCheckSet(c.XUtil, c.Root, dummy); err != nil {
		return errors.Wrap(err, "set _NET_SUPPORTING_WM_CHECK on root")
	}
	if err := ewmh.SupportingWmCheckSet(c.XUtil, dummy, dummy); err != nil {
		return errors.Wrap(err, "set _NET_SUPPORTING_WM_CHECK on check window")
	}
	return ewmh.WmNameSet(c.XUtil, dummy, "awm")
}

// ModifierMask converts a modifier name such as "Mod4" into its mask.
func (c *Connection) ModifierMask(name string) (uint16, error) {
	mods, _, err := mousebind.ParseString(c.XUtil, name+"-1")
	if err != nil {
		return 0, errors.Wrapf(err, "parse modifier %q", name)
	}
	return mods, nil
}

// Wake sends a synthetic client message to the root window so a goroutine
// blocked in WaitForEvent returns.
func (c *Connection) Wake() error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: c.Root,
		Type:   c.wake,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{0, 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect,
		string(ev.Bytes()),
	).Check()
}

// WakeAtom is the message type used by Wake.
func (c *Connection) WakeAtom() xproto.Atom {
	return c.wake
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
