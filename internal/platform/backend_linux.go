//go:build linux

package platform

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/x11"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
// Window requests are served directly by the embedded connection.
type LinuxBackend struct {
	*x11.Connection
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{Connection: conn}
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection to display.
func NewLinuxBackendFromDisplay(display string) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, err
	}
	return &LinuxBackend{Connection: conn}, nil
}

// Root returns the X11 root window ID.
func (b *LinuxBackend) Root() xproto.Window {
	return b.Connection.Root
}

// BecomeWM claims substructure redirection on the root window.
func (b *LinuxBackend) BecomeWM() error {
	err := b.RedirectRoot(RootEventMask)
	if err == nil {
		return nil
	}
	var access xproto.AccessError
	if errors.As(err, &access) {
		return ErrAnotherWM
	}
	return errors.Wrap(err, "select substructure redirect on root")
}

// WaitForEvent blocks for the next event. Asynchronous protocol errors are
// returned as errors with a nil event; a closed connection yields ErrClosed.
func (b *LinuxBackend) WaitForEvent() (xgb.Event, error) {
	ev, xerr := b.Conn().WaitForEvent()
	switch {
	case ev == nil && xerr == nil:
		return nil, ErrClosed
	case xerr != nil:
		return nil, xerr
	}
	if cm, ok := ev.(xproto.ClientMessageEvent); ok && cm.Type == b.WakeAtom() {
		return nil, nil
	}
	return ev, nil
}

// RandRVersion reports the negotiated RandR protocol version.
func (b *LinuxBackend) RandRVersion() (uint32, uint32, error) {
	major, minor, err := b.Connection.RandRVersion()
	if errors.Is(err, x11.ErrNoExtension) {
		return 0, 0, errors.Mark(err, ErrNoExtension)
	}
	return major, minor, err
}

// RandRMonitors lists RandR 1.5 monitors.
func (b *LinuxBackend) RandRMonitors(win xproto.Window) ([]RandRMonitor, error) {
	infos, err := b.Connection.RandRMonitors(win)
	if err != nil {
		return nil, err
	}
	monitors := make([]RandRMonitor, 0, len(infos))
	for _, m := range infos {
		monitors = append(monitors, RandRMonitor{
			Name:    m.Name,
			Primary: m.Primary,
			Rect:    rectFromRandR(m),
			Outputs: m.Outputs,
		})
	}
	return monitors, nil
}

// OutputInfo describes one RandR output.
func (b *LinuxBackend) OutputInfo(out randr.Output) (OutputInfo, error) {
	info, err := b.Connection.OutputInfo(out)
	if err != nil {
		return OutputInfo{}, err
	}
	return OutputInfo{
		Name:      string(info.Name),
		Crtc:      info.Crtc,
		Connected: info.Connection == randr.ConnectionConnected,
	}, nil
}

// XineramaScreens lists Xinerama heads.
func (b *LinuxBackend) XineramaScreens() ([]geom.Rect, error) {
	heads, err := b.Connection.XineramaScreens()
	if errors.Is(err, x11.ErrNoExtension) {
		return nil, errors.Mark(err, ErrNoExtension)
	}
	return heads, err
}

func rectFromRandR(m x11.MonitorInfo) geom.Rect {
	return geom.NewRect(int(m.X), int(m.Y), int(m.Width), int(m.Height))
}
