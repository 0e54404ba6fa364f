package platform

import (
	"github.com/1broseidon/awm/internal/geom"
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/cockroachdb/errors"
)

var (
	// ErrAnotherWM means substructure redirection on the root window is
	// already held by another client.
	ErrAnotherWM = errors.New("another window manager is already running")
	// ErrClosed is returned by WaitForEvent once the connection is gone.
	ErrClosed = errors.New("connection to the X server closed")
	// ErrNoExtension means the server does not provide a required extension.
	ErrNoExtension = errors.New("extension not available")
	// ErrNoProperty means the requested property is not set on the window.
	ErrNoProperty = errors.New("property not set")
)

// Event masks used when framing clients.
const (
	FrameEventMask = xproto.EventMaskSubstructureNotify |
		xproto.EventMaskSubstructureRedirect |
		xproto.EventMaskButtonPress
	InnerEventMask = xproto.EventMaskPropertyChange |
		xproto.EventMaskStructureNotify
	RootEventMask = xproto.EventMaskSubstructureNotify |
		xproto.EventMaskSubstructureRedirect
	DragPointerMask = xproto.EventMaskButtonMotion |
		xproto.EventMaskButtonPress |
		xproto.EventMaskButtonRelease
)

// Names of atoms the window manager interns at startup.
const (
	AtomNetWmName            = "_NET_WM_NAME"
	AtomNetWmState           = "_NET_WM_STATE"
	AtomNetWmStateFullscreen = "_NET_WM_STATE_FULLSCREEN"
	AtomWmState              = "WM_STATE"
	AtomWake                 = "_AWM_WAKE"
)

// RandRMonitor is one entry of a RandR 1.5 GetMonitors reply.
type RandRMonitor struct {
	Name    xproto.Atom
	Primary bool
	Rect    geom.Rect
	Outputs []randr.Output
}

// OutputInfo is the subset of a RandR output description used for
// validating discovery candidates.
type OutputInfo struct {
	Name      string
	Crtc      randr.Crtc
	Connected bool
}

// Windows covers the requests issued against individual windows. Every
// mutating request is checked: the returned error carries the server's
// reply when the request failed.
type Windows interface {
	Root() xproto.Window
	ScreenRect() geom.Rect

	CreateFrame(rect geom.Rect) (xproto.Window, error)
	DestroyWindow(win xproto.Window) error
	MapWindow(win xproto.Window) error
	ReparentWindow(win, parent xproto.Window, x, y int) error
	ConfigureWindow(win xproto.Window, mask uint16, values []uint32) error
	SetEventMask(win xproto.Window, mask uint32) error
	ChangeSaveSet(win xproto.Window, mode byte) error
	GrabButton(win xproto.Window, button xproto.Button, modifiers uint16) error
	AllowEvents(mode byte, t xproto.Timestamp) error
	GrabPointer(win xproto.Window, mask uint16) error
	UngrabPointer() error
	SetInputFocus(win xproto.Window) error

	Geometry(win xproto.Window) (geom.Rect, error)
	NormalHints(win xproto.Window) (*icccm.NormalHints, error)
	EwmhName(win xproto.Window) (string, error)
	IcccmName(win xproto.Window) (string, error)
	SetWmState(win xproto.Window, state uint) error
	SetNetWmState(win xproto.Window, states []string) error
	DeleteProperty(win xproto.Window, atom xproto.Atom) error
}

// Outputs covers the multi-head extensions used for monitor discovery.
type Outputs interface {
	RandRVersion() (major, minor uint32, err error)
	SelectRandRInput(win xproto.Window) error
	RandRMonitors(win xproto.Window) ([]RandRMonitor, error)
	RandROutputs(win xproto.Window) ([]randr.Output, error)
	OutputInfo(out randr.Output) (OutputInfo, error)
	CrtcRect(crtc randr.Crtc) (geom.Rect, error)
	XineramaScreens() ([]geom.Rect, error)
	AtomName(atom xproto.Atom) (string, error)
}

// Backend is the transport the window manager core talks to. Events are
// delivered strictly in order; WaitForEvent blocks until one arrives and
// returns a nil event with a nil error when woken by Wake.
type Backend interface {
	Windows
	Outputs

	Atom(name string) (xproto.Atom, error)
	ModifierMask(name string) (uint16, error)
	BecomeWM() error
	// ExistingWindows lists the top-level windows already mapped when the
	// session starts.
	ExistingWindows() ([]xproto.Window, error)
	SetSupported(atoms []string) error
	WaitForEvent() (xgb.Event, error)
	Wake() error
	Close()
}

// IsBadWindow reports whether err is the server rejecting a window that no
// longer exists.
func IsBadWindow(err error) bool {
	var bw xproto.WindowError
	return errors.As(err, &bw)
}
