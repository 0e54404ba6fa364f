// Package drag implements pointer-driven moving and resizing of clients.
package drag

import (
	"strings"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/client"
	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/logging"
	"github.com/1broseidon/awm/internal/metrics"
	"github.com/1broseidon/awm/internal/platform"
)

// Edge is a bit set of the client sides being dragged.
type Edge uint8

const (
	EdgeLeft Edge = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom

	EdgeNone Edge = 0
)

func (e Edge) String() string {
	if e == EdgeNone {
		return "none"
	}
	var parts []string
	for _, s := range []struct {
		bit  Edge
		name string
	}{{EdgeLeft, "left"}, {EdgeRight, "right"}, {EdgeTop, "top"}, {EdgeBottom, "bottom"}} {
		if e&s.bit != 0 {
			parts = append(parts, s.name)
		}
	}
	return strings.Join(parts, "|")
}

// Kind names the gesture in logs and metrics.
func (e Edge) Kind() string {
	if e == EdgeNone {
		return "move"
	}
	return "resize"
}

// EdgeMask reports which sides of inner the pointer grabbed. The top edge
// starts above the title area: only the part of the top margin thicker
// than the side margin counts as title.
func EdgeMask(ptr geom.Offset, inner geom.Rect, margin geom.Margin) Edge {
	var e Edge
	if ptr.X <= inner.X {
		e |= EdgeLeft
	}
	if ptr.X >= inner.X+inner.Width {
		e |= EdgeRight
	}
	if ptr.Y <= inner.Y-(margin.Top-margin.Left) {
		e |= EdgeTop
	}
	if ptr.Y >= inner.Y+inner.Height {
		e |= EdgeBottom
	}
	return e
}

// Source is what a drag needs from the display: window requests and the
// event stream.
type Source interface {
	platform.Windows
	WaitForEvent() (xgb.Event, error)
}

// Dispatcher handles an event that arrived during a drag but belongs to
// the normal event path.
type Dispatcher func(ev xgb.Event)

// Controller runs drags. A drag blocks inside Run until the gesture ends.
type Controller struct {
	src      Source
	dispatch Dispatcher
}

// NewController returns a controller that forwards unrelated events to
// dispatch.
func NewController(src Source, dispatch Dispatcher) *Controller {
	return &Controller{src: src, dispatch: dispatch}
}

// state is one drag in progress.
type state struct {
	c      *client.Client
	edge   Edge
	ptr    geom.Offset
	origin geom.Rect
	// maxPos is where a left or top resize stops when the minimum size is
	// reached; minPos is the same for the maximum size.
	maxPos geom.Offset
	minPos geom.Offset
}

// Run drags c starting from the root pointer position ptr. It returns when
// a key or button event arrives, when the client loses its frame, or when
// the event stream is woken or closed.
func (ctl *Controller) Run(c *client.Client, ptr geom.Offset) error {
	if c.Fullscreen || !c.Framed() {
		return nil
	}

	st := newState(c, ptr)
	root := ctl.src.Root()
	if err := ctl.src.GrabPointer(root, platform.DragPointerMask); err != nil {
		return errors.Wrapf(err, "grab pointer for %s", st.edge.Kind())
	}
	defer func() {
		if err := ctl.src.UngrabPointer(); err != nil {
			logging.L().Warn("ungrab pointer", logging.XError(err))
		}
	}()

	metrics.DragsTotal.WithLabelValues(st.edge.Kind()).Inc()
	logging.L().Debug("drag started",
		logging.Handle("inner", c.Inner),
		zap.String("kind", st.edge.Kind()),
		zap.Stringer("edges", st.edge),
		zap.Stringer("origin", st.origin))

	last := ptr
	for {
		ev, err := ctl.src.WaitForEvent()
		if err != nil {
			if errors.Is(err, platform.ErrClosed) {
				return err
			}
			logging.L().Warn("protocol error during drag", logging.XError(err))
			continue
		}
		if ev == nil {
			return nil
		}

		switch e := ev.(type) {
		case xproto.MotionNotifyEvent:
			last = geom.Offset{X: int(e.RootX), Y: int(e.RootY)}
			st.step(last)
		case xproto.ConfigureRequestEvent, xproto.MapRequestEvent:
			ctl.dispatch(ev)
			st.step(last)
		case xproto.KeyPressEvent, xproto.KeyReleaseEvent,
			xproto.ButtonPressEvent, xproto.ButtonReleaseEvent:
			logging.L().Debug("drag finished", logging.Handle("inner", c.Inner), zap.Stringer("rect", c.Rect))
			return nil
		default:
			ctl.dispatch(ev)
		}

		if !c.Framed() {
			return nil
		}
	}
}

func newState(c *client.Client, ptr geom.Offset) *state {
	st := &state{
		c:      c,
		edge:   EdgeMask(ptr, c.Rect, c.Margin),
		ptr:    ptr,
		origin: c.Rect,
	}
	lo := c.EffectiveMin()
	st.maxPos = geom.Offset{
		X: c.Rect.X + c.Rect.Width - lo.Width,
		Y: c.Rect.Y + c.Rect.Height - lo.Height,
	}
	st.minPos = geom.Offset{
		X: c.Rect.X + c.Rect.Width - c.MaxSize.Width,
		Y: c.Rect.Y + c.Rect.Height - c.MaxSize.Height,
	}
	return st
}

// step applies the pointer position p to the client.
func (st *state) step(p geom.Offset) {
	dx, dy := p.X-st.ptr.X, p.Y-st.ptr.Y

	if st.edge == EdgeNone {
		st.c.SetPosition(geom.Offset{X: st.origin.X + dx, Y: st.origin.Y + dy})
		return
	}

	size := st.origin.Extent
	pos := st.origin.Offset
	if st.edge&EdgeLeft != 0 {
		size.Width -= dx
	}
	if st.edge&EdgeRight != 0 {
		size.Width += dx
	}
	if st.edge&EdgeTop != 0 {
		size.Height -= dy
	}
	if st.edge&EdgeBottom != 0 {
		size.Height += dy
	}

	mask := st.c.SetSize(size)
	if st.edge&(EdgeLeft|EdgeTop) == 0 {
		return
	}

	// Keep the opposite edge where it was: the new position follows from
	// the size that was actually applied, pinned at the travel limits.
	if st.edge&EdgeLeft != 0 {
		pos.X = pinned(mask&client.WidthApplied != 0, mask&client.WidthAtMax != 0,
			st.origin.X+st.origin.Width-st.c.Rect.Width, st.maxPos.X, st.minPos.X)
	}
	if st.edge&EdgeTop != 0 {
		pos.Y = pinned(mask&client.HeightApplied != 0, mask&client.HeightAtMax != 0,
			st.origin.Y+st.origin.Height-st.c.Rect.Height, st.maxPos.Y, st.minPos.Y)
	}
	st.c.SetPosition(pos)
}

func pinned(applied, atMax bool, free, maxPos, minPos int) int {
	switch {
	case applied:
		return free
	case atMax:
		return minPos
	default:
		return maxPos
	}
}
