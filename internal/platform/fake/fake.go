// Package fake provides an in-memory platform.Backend that records every
// request, for exercising the window manager without an X server.
package fake

import (
	"slices"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/platform"
)

// Call is one recorded request.
type Call struct {
	Op     string
	Window xproto.Window
	Parent xproto.Window
	Mask   uint16
	Values []uint32
	X, Y   int
	Rect   geom.Rect
	Atom   xproto.Atom
	States []string
}

// Window is the server-side state of one fake window.
type Window struct {
	Rect      geom.Rect
	Parent    xproto.Window
	Mapped    bool
	Border    int
	EventMask uint32
	InSaveSet bool
	WmState   *uint
	NetState  []string
	Grabs     []xproto.Button
}

// Backend is a scriptable platform.Backend.
type Backend struct {
	mu sync.Mutex

	RootWindow xproto.Window
	Screen     geom.Rect

	Windows  map[xproto.Window]*Window
	Hints    map[xproto.Window]*icccm.NormalHints
	NetNames map[xproto.Window]string
	Names    map[xproto.Window]string

	// Fail maps an operation name (e.g. "CreateFrame") to the error it returns.
	Fail map[string]error
	// AnotherWM makes BecomeWM fail as if redirection were already taken.
	AnotherWM bool

	RandRMajor, RandRMinor uint32
	RandRErr               error
	Monitors               []platform.RandRMonitor
	MonitorsErr            error
	OutputList             []randr.Output
	OutputsErr             error
	Outputs                map[randr.Output]platform.OutputInfo
	Crtcs                  map[randr.Crtc]geom.Rect
	Xinerama               []geom.Rect
	XineramaErr            error

	Calls   []Call
	Focused xproto.Window
	Grabbed bool

	events   []xgb.Event
	wakes    int
	nextID   xproto.Window
	atoms    map[string]xproto.Atom
	supports []string
	closed   bool
}

var _ platform.Backend = (*Backend)(nil)

// New returns a backend with a 1920x1080 root window and RandR 1.5.
func New() *Backend {
	return &Backend{
		RootWindow: 0x1,
		Screen:     geom.NewRect(0, 0, 1920, 1080),
		Windows:    make(map[xproto.Window]*Window),
		Hints:      make(map[xproto.Window]*icccm.NormalHints),
		NetNames:   make(map[xproto.Window]string),
		Names:      make(map[xproto.Window]string),
		Fail:       make(map[string]error),
		Outputs:    make(map[randr.Output]platform.OutputInfo),
		Crtcs:      make(map[randr.Crtc]geom.Rect),
		RandRMajor: 1,
		RandRMinor: 5,
		nextID:     0x400000,
		atoms: map[string]xproto.Atom{
			"WM_NAME":         xproto.AtomWmName,
			"WM_NORMAL_HINTS": xproto.AtomWmNormalHints,
		},
	}
}

// AddWindow registers a client-owned top-level window.
func (b *Backend) AddWindow(win xproto.Window, rect geom.Rect) *Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := &Window{Rect: rect, Parent: b.RootWindow}
	b.Windows[win] = w
	return w
}

// Window returns the state of win, or nil.
func (b *Backend) Window(win xproto.Window) *Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Windows[win]
}

// Push queues events for WaitForEvent.
func (b *Backend) Push(evs ...xgb.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evs...)
}

// CallsFor returns the recorded calls of op against win.
func (b *Backend) CallsFor(op string, win xproto.Window) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.Calls {
		if c.Op == op && c.Window == win {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = nil
}

// Supported returns the atoms last published with SetSupported.
func (b *Backend) Supported() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.supports
}

// Closed reports whether Close was called.
func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) record(c Call) error {
	b.Calls = append(b.Calls, c)
	return b.Fail[c.Op]
}

func (b *Backend) window(win xproto.Window) (*Window, error) {
	w, ok := b.Windows[win]
	if !ok {
		return nil, xproto.WindowError{NiceName: "Window", BadValue: uint32(win)}
	}
	return w, nil
}

// checkGeometry rejects coordinates outside INT16 and extents outside
// CARD16 the way a server answers with BadValue.
func checkGeometry(mask uint16, vals []uint32) error {
	i := 0
	for _, bit := range []uint16{xproto.ConfigWindowX, xproto.ConfigWindowY, xproto.ConfigWindowWidth, xproto.ConfigWindowHeight} {
		if mask&bit == 0 {
			continue
		}
		v := vals[i]
		i++
		bad := false
		switch bit {
		case xproto.ConfigWindowX, xproto.ConfigWindowY:
			bad = int32(v) < geom.MinCoord || int32(v) > geom.MaxCoord
		default:
			bad = v == 0 || v > geom.MaxDim
		}
		if bad {
			return xproto.ValueError{NiceName: "Value", BadValue: v}
		}
	}
	return nil
}

func (b *Backend) Root() xproto.Window   { return b.RootWindow }
func (b *Backend) ScreenRect() geom.Rect { return b.Screen }

func (b *Backend) CreateFrame(rect geom.Rect) (xproto.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "CreateFrame", Rect: rect}); err != nil {
		return 0, err
	}
	b.nextID++
	b.Windows[b.nextID] = &Window{Rect: rect, Parent: b.RootWindow}
	return b.nextID, nil
}

func (b *Backend) DestroyWindow(win xproto.Window) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "DestroyWindow", Window: win}); err != nil {
		return err
	}
	if _, err := b.window(win); err != nil {
		return err
	}
	delete(b.Windows, win)
	return nil
}

func (b *Backend) MapWindow(win xproto.Window) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "MapWindow", Window: win}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.Mapped = true
	return nil
}

func (b *Backend) ReparentWindow(win, parent xproto.Window, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "ReparentWindow", Window: win, Parent: parent, X: x, Y: y}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.Parent = parent
	w.Rect.X, w.Rect.Y = x, y
	return nil
}

func (b *Backend) ConfigureWindow(win xproto.Window, mask uint16, values []uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	vals := append([]uint32(nil), values...)
	if err := b.record(Call{Op: "ConfigureWindow", Window: win, Mask: mask, Values: vals}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	if err := checkGeometry(mask, vals); err != nil {
		return err
	}

	i := 0
	next := func() uint32 {
		v := vals[i]
		i++
		return v
	}
	if mask&xproto.ConfigWindowX != 0 {
		w.Rect.X = int(int32(next()))
	}
	if mask&xproto.ConfigWindowY != 0 {
		w.Rect.Y = int(int32(next()))
	}
	if mask&xproto.ConfigWindowWidth != 0 {
		w.Rect.Width = int(next())
	}
	if mask&xproto.ConfigWindowHeight != 0 {
		w.Rect.Height = int(next())
	}
	if mask&xproto.ConfigWindowBorderWidth != 0 {
		w.Border = int(next())
	}
	return nil
}

func (b *Backend) SetEventMask(win xproto.Window, mask uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "SetEventMask", Window: win, Values: []uint32{mask}}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.EventMask = mask
	return nil
}

func (b *Backend) ChangeSaveSet(win xproto.Window, mode byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "ChangeSaveSet", Window: win, Values: []uint32{uint32(mode)}}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.InSaveSet = mode == xproto.SetModeInsert
	return nil
}

func (b *Backend) GrabButton(win xproto.Window, button xproto.Button, modifiers uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "GrabButton", Window: win, Mask: modifiers, Values: []uint32{uint32(button)}}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.Grabs = append(w.Grabs, button)
	return nil
}

func (b *Backend) AllowEvents(mode byte, t xproto.Timestamp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(Call{Op: "AllowEvents", Values: []uint32{uint32(mode), uint32(t)}})
}

func (b *Backend) GrabPointer(win xproto.Window, mask uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "GrabPointer", Window: win, Mask: mask}); err != nil {
		return err
	}
	b.Grabbed = true
	return nil
}

func (b *Backend) UngrabPointer() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Grabbed = false
	return b.record(Call{Op: "UngrabPointer"})
}

func (b *Backend) SetInputFocus(win xproto.Window) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "SetInputFocus", Window: win}); err != nil {
		return err
	}
	b.Focused = win
	return nil
}

func (b *Backend) Geometry(win xproto.Window) (geom.Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.Fail["Geometry"]; err != nil {
		return geom.Rect{}, err
	}
	w, err := b.window(win)
	if err != nil {
		return geom.Rect{}, err
	}
	return w.Rect, nil
}

func (b *Backend) NormalHints(win xproto.Window) (*icccm.NormalHints, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.Hints[win]
	if !ok {
		return nil, platform.ErrNoProperty
	}
	cp := *h
	return &cp, nil
}

func (b *Backend) EwmhName(win xproto.Window) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.NetNames[win]
	if !ok {
		return "", platform.ErrNoProperty
	}
	return name, nil
}

func (b *Backend) IcccmName(win xproto.Window) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.Names[win]
	if !ok {
		return "", platform.ErrNoProperty
	}
	return name, nil
}

func (b *Backend) SetWmState(win xproto.Window, state uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "SetWmState", Window: win, Values: []uint32{uint32(state)}}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.WmState = &state
	return nil
}

func (b *Backend) SetNetWmState(win xproto.Window, states []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "SetNetWmState", Window: win, States: states}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	w.NetState = append([]string(nil), states...)
	return nil
}

func (b *Backend) DeleteProperty(win xproto.Window, atom xproto.Atom) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "DeleteProperty", Window: win, Atom: atom}); err != nil {
		return err
	}
	w, err := b.window(win)
	if err != nil {
		return err
	}
	switch atom {
	case b.atoms[platform.AtomWmState]:
		w.WmState = nil
	case b.atoms[platform.AtomNetWmState]:
		w.NetState = nil
	}
	return nil
}

func (b *Backend) RandRVersion() (uint32, uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "RandRVersion"})
	return b.RandRMajor, b.RandRMinor, b.RandRErr
}

func (b *Backend) SelectRandRInput(win xproto.Window) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.record(Call{Op: "SelectRandRInput", Window: win})
}

func (b *Backend) RandRMonitors(xproto.Window) ([]platform.RandRMonitor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "RandRMonitors"})
	return b.Monitors, b.MonitorsErr
}

func (b *Backend) RandROutputs(xproto.Window) ([]randr.Output, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "RandROutputs"})
	return b.OutputList, b.OutputsErr
}

func (b *Backend) OutputInfo(out randr.Output) (platform.OutputInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.Outputs[out]
	if !ok {
		return platform.OutputInfo{}, errors.Newf("unknown output 0x%08x", uint32(out))
	}
	return info, nil
}

func (b *Backend) CrtcRect(crtc randr.Crtc) (geom.Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.Crtcs[crtc]
	if !ok {
		return geom.Rect{}, errors.Newf("unknown crtc 0x%08x", uint32(crtc))
	}
	return r, nil
}

func (b *Backend) XineramaScreens() ([]geom.Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "XineramaScreens"})
	return b.Xinerama, b.XineramaErr
}

func (b *Backend) Atom(name string) (xproto.Atom, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.atoms[name]; ok {
		return a, nil
	}
	a := xproto.Atom(0x200 + len(b.atoms))
	b.atoms[name] = a
	return a, nil
}

func (b *Backend) AtomName(atom xproto.Atom) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, a := range b.atoms {
		if a == atom {
			return name, nil
		}
	}
	return "", errors.Newf("unknown atom %d", atom)
}

// ModifierMask understands Mod1..Mod5, Shift and Control.
func (b *Backend) ModifierMask(name string) (uint16, error) {
	switch name {
	case "Shift", "shift":
		return xproto.ModMaskShift, nil
	case "Control", "control":
		return xproto.ModMaskControl, nil
	case "Mod1", "mod1":
		return xproto.ModMask1, nil
	case "Mod2", "mod2":
		return xproto.ModMask2, nil
	case "Mod3", "mod3":
		return xproto.ModMask3, nil
	case "Mod4", "mod4":
		return xproto.ModMask4, nil
	case "Mod5", "mod5":
		return xproto.ModMask5, nil
	}
	return 0, errors.Newf("unknown modifier %q", name)
}

func (b *Backend) BecomeWM() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(Call{Op: "BecomeWM", Window: b.RootWindow})
	if b.AnotherWM {
		return platform.ErrAnotherWM
	}
	return nil
}

// ExistingWindows returns the mapped children of the root window in
// handle order.
func (b *Backend) ExistingWindows() ([]xproto.Window, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Call{Op: "ExistingWindows"}); err != nil {
		return nil, err
	}
	var out []xproto.Window
	for win, w := range b.Windows {
		if w.Parent == b.RootWindow && w.Mapped {
			out = append(out, win)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (b *Backend) SetSupported(atoms []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.supports = append([]string(nil), atoms...)
	return b.record(Call{Op: "SetSupported", States: atoms})
}

// WaitForEvent pops the next queued event. Once the queue is empty the
// connection reports itself closed, which ends any dispatch loop.
func (b *Backend) WaitForEvent() (xgb.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.wakes > 0 {
		b.wakes--
		return nil, nil
	}
	if b.closed || len(b.events) == 0 {
		return nil, platform.ErrClosed
	}
	ev := b.events[0]
	b.events = b.events[1:]
	if err, ok := ev.(xgb.Error); ok {
		return nil, err
	}
	return ev, nil
}

func (b *Backend) Wake() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wakes++
	return nil
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}
