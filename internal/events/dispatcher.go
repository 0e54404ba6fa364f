// Package events routes protocol events to the client registry, the drag
// controller and monitor discovery.
package events

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/client"
	"github.com/1broseidon/awm/internal/drag"
	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/logging"
	"github.com/1broseidon/awm/internal/metrics"
	"github.com/1broseidon/awm/internal/monitor"
	"github.com/1broseidon/awm/internal/platform"
	"github.com/1broseidon/awm/internal/registry"
)

// _NET_WM_STATE client message actions.
const (
	netWmStateRemove = 0
	netWmStateAdd    = 1
	netWmStateToggle = 2
)

// Options are the user settings the dispatcher honours.
type Options struct {
	// MetaDragging lets a primary-button press anywhere in a client start a
	// drag while DragModifier is held.
	MetaDragging bool
	DragModifier uint16
}

type propertyHandler func(c *client.Client, deleted bool)

// Dispatcher handles one event at a time. It is re-entered by the drag
// controller for requests that arrive during a drag.
type Dispatcher struct {
	b     platform.Backend
	reg   *registry.Registry
	mons  *monitor.Store
	drag  *drag.Controller
	opts  Options
	atoms Atoms
	props map[xproto.Atom]propertyHandler

	// OutputsChanged is called for RandR change notifications.
	OutputsChanged func()
}

// New returns a dispatcher operating on reg and mons.
func New(b platform.Backend, reg *registry.Registry, mons *monitor.Store, atoms Atoms, opts Options) *Dispatcher {
	d := &Dispatcher{
		b:     b,
		reg:   reg,
		mons:  mons,
		opts:  opts,
		atoms: atoms,
	}
	d.drag = drag.NewController(b, d.Dispatch)
	d.props = map[xproto.Atom]propertyHandler{
		atoms.NetWmName:     (*client.Client).RefreshEwmhName,
		atoms.WmName:        (*client.Client).RefreshIcccmName,
		atoms.WmNormalHints: (*client.Client).RefreshNormalHints,
	}
	return d
}

// Name returns the short type name of ev for logs and metrics.
func Name(ev xgb.Event) string {
	name := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "Event")
}

// Dispatch routes ev to its handler. Unknown events are logged and dropped.
func (d *Dispatcher) Dispatch(ev xgb.Event) {
	metrics.EventsTotal.WithLabelValues(Name(ev)).Inc()

	switch e := ev.(type) {
	case xproto.ButtonPressEvent:
		d.buttonPress(e)
	case xproto.UnmapNotifyEvent:
		d.unmapNotify(e)
	case xproto.DestroyNotifyEvent:
		d.destroyNotify(e)
	case xproto.MapRequestEvent:
		d.mapRequest(e)
	case xproto.ConfigureRequestEvent:
		d.configureRequest(e)
	case xproto.PropertyNotifyEvent:
		d.propertyNotify(e)
	case xproto.ClientMessageEvent:
		d.clientMessage(e)
	case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
		if d.OutputsChanged != nil {
			d.OutputsChanged()
		}
	default:
		logging.L().Debug("unhandled event", zap.String("event", Name(ev)))
	}
}

func (d *Dispatcher) buttonPress(e xproto.ButtonPressEvent) {
	// The press was frozen by the synchronous grab; hand it on to the
	// application once we are done with it.
	defer func() {
		if err := d.b.AllowEvents(xproto.AllowReplayPointer, xproto.TimeCurrentTime); err != nil {
			logging.L().Warn("replay pointer", logging.XError(err))
		}
	}()

	c, onFrame := d.reg.ByFrame(e.Event)
	if !onFrame {
		var ok bool
		if c, ok = d.reg.ByInner(e.Event); !ok {
			return
		}
	}

	c.Focus()
	c.Raise()

	if e.Detail != xproto.ButtonIndex1 {
		return
	}
	meta := d.opts.MetaDragging && d.opts.DragModifier != 0 && e.State&d.opts.DragModifier == d.opts.DragModifier
	if !onFrame && !meta {
		return
	}
	if err := d.drag.Run(c, geom.Offset{X: int(e.RootX), Y: int(e.RootY)}); err != nil {
		logging.L().Warn("drag", logging.Handle("inner", c.Inner), zap.Error(err))
	}
}

func (d *Dispatcher) unmapNotify(e xproto.UnmapNotifyEvent) {
	// Reported to the root: either a frame, an unmanaged window, or a
	// client-sent withdrawal notice. Framed windows report to their frame.
	if e.Event == d.b.Root() {
		return
	}
	c, ok := d.reg.ByInner(e.Window)
	if !ok {
		return
	}
	d.unmanage(c, true)
}

func (d *Dispatcher) destroyNotify(e xproto.DestroyNotifyEvent) {
	c, ok := d.reg.ByInner(e.Window)
	if !ok {
		return
	}
	d.unmanage(c, false)
}

// unmanage drops c. withdraw clears the window manager's properties on the
// inner window, which only makes sense while it still exists.
func (d *Dispatcher) unmanage(c *client.Client, withdraw bool) {
	frame := c.Frame
	c.DestroyFrame(d.b.Root())
	d.reg.Remove(c.Inner, frame)
	metrics.ManagedClients.Set(float64(d.reg.Len()))

	if withdraw {
		for _, atom := range []xproto.Atom{d.atoms.WmState, d.atoms.NetWmState} {
			if err := d.b.DeleteProperty(c.Inner, atom); err != nil {
				logging.L().Debug("clear property on withdrawn window",
					logging.Handle("inner", c.Inner), logging.Handle("atom", atom), logging.XError(err))
			}
		}
	}

	logging.L().Info("unmanaged client",
		logging.Handle("inner", c.Inner),
		logging.Handle("frame", frame),
		zap.String("name", c.Name))
}

func (d *Dispatcher) mapRequest(e xproto.MapRequestEvent) {
	d.Manage(e.Window)
}

// Manage frames win, registers it and maps it. A window that cannot be
// framed is mapped undecorated; a managed one is only mapped again.
func (d *Dispatcher) Manage(win xproto.Window) {
	if _, ok := d.reg.ByInner(win); ok {
		d.mapRaw(win)
		return
	}

	c, err := client.NewFramed(d.b, win)
	if err == nil {
		if err = d.reg.Push(c); err != nil {
			c.DestroyFrame(d.b.Root())
		}
	}
	if err != nil {
		metrics.FrameFailures.Inc()
		logging.L().Error("manage client", logging.Handle("window", win), logging.XError(err))
		d.mapRaw(win)
		return
	}

	d.mapRaw(win)
	c.Focus()
	c.Raise()
	metrics.ManagedClients.Set(float64(d.reg.Len()))
}

func (d *Dispatcher) mapRaw(win xproto.Window) {
	if err := d.b.MapWindow(win); err != nil {
		logging.L().Warn("map window", logging.Handle("window", win), logging.XError(err))
	}
}

const geometryMask = xproto.ConfigWindowX | xproto.ConfigWindowY |
	xproto.ConfigWindowWidth | xproto.ConfigWindowHeight

func (d *Dispatcher) configureRequest(e xproto.ConfigureRequestEvent) {
	c, ok := d.reg.ByInner(e.Window)
	if !ok {
		d.configurePassthrough(e)
		return
	}
	if c.Fullscreen {
		logging.L().Debug("ignore configure request while fullscreen", logging.Handle("inner", c.Inner))
		return
	}

	if e.ValueMask&(xproto.ConfigWindowWidth|xproto.ConfigWindowHeight) != 0 {
		ext := c.Rect.Extent
		if e.ValueMask&xproto.ConfigWindowWidth != 0 {
			ext.Width = int(e.Width)
		}
		if e.ValueMask&xproto.ConfigWindowHeight != 0 {
			ext.Height = int(e.Height)
		}
		c.SetSize(ext)
	}
	if e.ValueMask&(xproto.ConfigWindowX|xproto.ConfigWindowY) != 0 {
		off := c.Rect.Offset
		if e.ValueMask&xproto.ConfigWindowX != 0 {
			off.X = int(e.X)
		}
		if e.ValueMask&xproto.ConfigWindowY != 0 {
			off.Y = int(e.Y)
		}
		c.SetPosition(off)
	}
}

// configurePassthrough forwards the geometry of a request for a window we
// do not manage. Border width is always forced to zero; stacking is
// dropped.
func (d *Dispatcher) configurePassthrough(e xproto.ConfigureRequestEvent) {
	mask := e.ValueMask&geometryMask | xproto.ConfigWindowBorderWidth
	values := make([]uint32, 0, 5)
	if mask&xproto.ConfigWindowX != 0 {
		values = append(values, uint32(int32(e.X)))
	}
	if mask&xproto.ConfigWindowY != 0 {
		values = append(values, uint32(int32(e.Y)))
	}
	if mask&xproto.ConfigWindowWidth != 0 {
		values = append(values, uint32(e.Width))
	}
	if mask&xproto.ConfigWindowHeight != 0 {
		values = append(values, uint32(e.Height))
	}
	values = append(values, 0)

	if err := d.b.ConfigureWindow(e.Window, mask, values); err != nil {
		logging.L().Warn("pass configure request through",
			logging.Handle("window", e.Window), zap.Uint16("mask", mask), logging.XError(err))
	}
}

func (d *Dispatcher) propertyNotify(e xproto.PropertyNotifyEvent) {
	c, ok := d.reg.ByInner(e.Window)
	if !ok {
		return
	}
	h, ok := d.props[e.Atom]
	if !ok {
		logging.L().Debug("no handler for property", logging.Handle("inner", e.Window), logging.Handle("atom", e.Atom))
		return
	}
	h(c, e.State == xproto.PropertyDelete)
}

func (d *Dispatcher) clientMessage(e xproto.ClientMessageEvent) {
	if e.Type != d.atoms.NetWmState || e.Format != 32 || len(e.Data.Data32) < 3 {
		logging.L().Debug("ignore client message", logging.Handle("window", e.Window), logging.Handle("type", e.Type))
		return
	}
	c, ok := d.reg.ByInner(e.Window)
	if !ok {
		return
	}

	action := e.Data.Data32[0]
	for _, prop := range e.Data.Data32[1:3] {
		if prop == 0 {
			continue
		}
		if xproto.Atom(prop) != d.atoms.NetWmStateFullscreen {
			name, _ := d.b.AtomName(xproto.Atom(prop))
			logging.L().Debug("window state not supported", logging.Handle("inner", c.Inner), zap.String("state", name))
			continue
		}
		d.setFullscreen(c, action)
	}
}

func (d *Dispatcher) setFullscreen(c *client.Client, action uint32) {
	var on bool
	switch action {
	case netWmStateRemove:
		on = false
	case netWmStateAdd:
		on = true
	case netWmStateToggle:
		on = !c.Fullscreen
	default:
		logging.L().Debug("unknown _NET_WM_STATE action", zap.Uint32("action", action))
		return
	}

	area := d.mons.AreaFor(c.FrameRect().Center(), d.b.ScreenRect())
	if err := c.SetFullscreen(on, area); err != nil {
		logging.L().Warn("fullscreen", logging.Handle("inner", c.Inner), zap.Bool("on", on), logging.XError(err))
		return
	}
	if on {
		c.Raise()
	}
}
