package x11

import (
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xinerama"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/geom"
)

// ErrNoExtension is returned when the server lacks the queried extension.
var ErrNoExtension = errors.New("extension not present")

// RandRVersion initialises RandR and negotiates protocol 1.5.
func (c *Connection) RandRVersion() (major, minor uint32, err error) {
	if err := randr.Init(c.Conn()); err != nil {
		return 0, 0, errors.Mark(errors.Wrap(err, "randr init"), ErrNoExtension)
	}
	reply, err := randr.QueryVersion(c.Conn(), 1, 5).Reply()
	if err != nil {
		return 0, 0, errors.Wrap(err, "randr query version")
	}
	return reply.MajorVersion, reply.MinorVersion, nil
}

// SelectRandRInput subscribes win to screen, CRTC and output changes.
func (c *Connection) SelectRandRInput(win xproto.Window) error {
	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange)
	return randr.SelectInputChecked(c.Conn(), win, mask).Check()
}

// RandRMonitors lists the active monitors through RandR 1.5.
func (c *Connection) RandRMonitors(win xproto.Window) ([]MonitorInfo, error) {
	cookie, err := GetMonitors(c.Conn(), win, true)
	if err != nil {
		return nil, err
	}
	reply, err := cookie.Reply()
	if err != nil {
		return nil, errors.Wrap(err, "randr get monitors")
	}
	if reply == nil {
		return nil, nil
	}
	return reply.Monitors, nil
}

// RandROutputs lists every output known to the current screen resources.
func (c *Connection) RandROutputs(win xproto.Window) ([]randr.Output, error) {
	res, err := randr.GetScreenResourcesCurrent(c.Conn(), win).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "randr get screen resources")
	}
	return res.Outputs, nil
}

// OutputInfo describes one RandR output.
func (c *Connection) OutputInfo(out randr.Output) (*randr.GetOutputInfoReply, error) {
	info, err := randr.GetOutputInfo(c.Conn(), out, xproto.TimeCurrentTime).Reply()
	if err != nil {
		return nil, errors.Wrapf(err, "randr get output info 0x%08x", uint32(out))
	}
	return info, nil
}

// CrtcRect returns the area scanned out by crtc.
func (c *Connection) CrtcRect(crtc randr.Crtc) (geom.Rect, error) {
	info, err := randr.GetCrtcInfo(c.Conn(), crtc, xproto.TimeCurrentTime).Reply()
	if err != nil {
		return geom.Rect{}, errors.Wrapf(err, "randr get crtc info 0x%08x", uint32(crtc))
	}
	return geom.NewRect(int(info.X), int(info.Y), int(info.Width), int(info.Height)), nil
}

// XineramaScreens lists the heads reported by Xinerama.
func (c *Connection) XineramaScreens() ([]geom.Rect, error) {
	if err := xinerama.Init(c.Conn()); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "xinerama init"), ErrNoExtension)
	}
	active, err := xinerama.IsActive(c.Conn()).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "xinerama is active")
	}
	if active.State == 0 {
		return nil, errors.Mark(errors.New("xinerama inactive"), ErrNoExtension)
	}

	reply, err := xinerama.QueryScreens(c.Conn()).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "xinerama query screens")
	}

	heads := make([]geom.Rect, 0, len(reply.ScreenInfo))
	for _, s := range reply.ScreenInfo {
		heads = append(heads, geom.NewRect(int(s.XOrg), int(s.YOrg), int(s.Width), int(s.Height)))
	}
	return heads, nil
}
