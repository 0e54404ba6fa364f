// Package client implements framed clients and the geometry rules applied
// to them.
package client

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/logging"
	"github.com/1broseidon/awm/internal/platform"
)

// DefaultMargin is the decoration thickness around every inner window.
var DefaultMargin = geom.Margin{Left: 4, Right: 4, Top: 28, Bottom: 4}

// maxInner is the largest inner extent whose frame still fits a CARD16.
var maxInner = DefaultMargin.Shrink(geom.Extent{Width: geom.MaxDim, Height: geom.MaxDim})

// keepVisible is how much of a client must stay on screen when it is
// dragged past the left edge.
const keepVisible = 30

// Set-size result bits.
const (
	WidthApplied  uint8 = 1 << 0
	HeightApplied uint8 = 1 << 1
	WidthAtMax    uint8 = 1 << 2
	HeightAtMax   uint8 = 1 << 3
)

// Set-position result bits.
const (
	XApplied uint8 = 1 << 0
	YApplied uint8 = 1 << 1
)

// NameSource records which property supplied a client's name.
type NameSource int

const (
	NameNone NameSource = iota
	NameEWMH
	NameICCCM
)

func (s NameSource) String() string {
	switch s {
	case NameEWMH:
		return "ewmh"
	case NameICCCM:
		return "icccm"
	default:
		return "none"
	}
}

// Client is an application window and the frame wrapped around it.
type Client struct {
	Inner xproto.Window
	Frame xproto.Window

	Name       string
	NameSource NameSource

	// Rect is the inner window in root coordinates.
	Rect   geom.Rect
	Margin geom.Margin

	BaseSize geom.Extent
	MinSize  geom.Extent
	MaxSize  geom.Extent
	SizeInc  geom.Extent

	// hasMin is false when the application gave no minimum size hint, in
	// which case BaseSize serves as the minimum.
	hasMin bool

	Fullscreen bool
	restore    geom.Rect

	d platform.Windows
}

// New returns an unframed client for inner with default constraints.
func New(d platform.Windows, inner xproto.Window) *Client {
	return &Client{
		Inner:   inner,
		Margin:  DefaultMargin,
		MinSize: geom.Extent{Width: 1, Height: 1},
		MaxSize: maxInner,
		d:       d,
	}
}

// FrameRect is the frame window in root coordinates.
func (c *Client) FrameRect() geom.Rect {
	return geom.Rect{
		Offset: geom.Offset{X: c.Rect.X - c.Margin.Left, Y: c.Rect.Y - c.Margin.Top},
		Extent: c.Margin.Expand(c.Rect.Extent),
	}
}

// EffectiveMin is the lower size bound actually enforced.
func (c *Client) EffectiveMin() geom.Extent {
	lo := c.MinSize
	if !c.hasMin && (c.BaseSize.Width > 0 || c.BaseSize.Height > 0) {
		lo = c.BaseSize
	}
	return geom.Extent{Width: max(lo.Width, 1), Height: max(lo.Height, 1)}
}

// Framed reports whether the client currently owns a frame.
func (c *Client) Framed() bool {
	return c.Frame != 0
}

// NewFramed reads inner's geometry and hints, wraps it in a new frame and
// maps the frame. On failure no frame is left behind.
func NewFramed(d platform.Windows, inner xproto.Window) (*Client, error) {
	c := New(d, inner)

	rect, err := d.Geometry(inner)
	if err != nil {
		return nil, errors.Wrapf(err, "get geometry of 0x%08x", uint32(inner))
	}
	c.Rect = rect

	if hints, err := d.NormalHints(inner); err == nil {
		c.applyHints(hints)
	}
	c.refreshName()

	// Normalise the requested size against the hints before building the
	// frame around it.
	c.Rect.Extent, _ = c.constrain(c.Rect.Extent)

	frameRect := geom.Rect{Offset: rect.Offset, Extent: c.Margin.Expand(c.Rect.Extent)}
	c.Rect.Offset = geom.Offset{X: rect.X + c.Margin.Left, Y: rect.Y + c.Margin.Top}

	frame, err := d.CreateFrame(frameRect)
	if err != nil {
		return nil, errors.Wrapf(err, "create frame for 0x%08x", uint32(inner))
	}
	c.Frame = frame

	type step struct {
		what string
		do   func() error
	}
	steps := []step{
		{"resize inner", func() error {
			return d.ConfigureWindow(inner,
				xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowBorderWidth,
				[]uint32{uint32(c.Rect.Width), uint32(c.Rect.Height), 0})
		}},
		{"add to save-set", func() error { return d.ChangeSaveSet(inner, xproto.SetModeInsert) }},
		{"reparent", func() error { return d.ReparentWindow(inner, frame, c.Margin.Left, c.Margin.Top) }},
		{"map frame", func() error { return d.MapWindow(frame) }},
		{"select frame events", func() error { return d.SetEventMask(frame, platform.FrameEventMask) }},
		{"select inner events", func() error { return d.SetEventMask(inner, platform.InnerEventMask) }},
	}
	for btn := xproto.Button(1); btn <= 3; btn++ {
		btn := btn
		steps = append(steps, step{"grab button", func() error {
			return d.GrabButton(inner, btn, xproto.ModMaskAny)
		}})
	}

	for _, step := range steps {
		if err := step.do(); err != nil {
			if derr := d.DestroyWindow(frame); derr != nil {
				logging.L().Debug("destroy half-built frame", logging.Handle("frame", frame), logging.XError(derr))
			}
			c.Frame = 0
			return nil, errors.Wrapf(err, "%s (inner 0x%08x, frame 0x%08x)", step.what, uint32(inner), uint32(frame))
		}
	}

	if err := d.SetWmState(inner, icccm.StateNormal); err != nil {
		logging.L().Debug("set WM_STATE", logging.Handle("inner", inner), logging.XError(err))
	}

	logging.L().Info("framed client",
		logging.Handle("inner", inner),
		logging.Handle("frame", frame),
		zap.Stringer("rect", c.Rect),
		zap.String("name", c.Name))
	return c, nil
}

// DestroyFrame hands the inner window back to the root and destroys the
// frame. The reparent usually fails because the inner window is already
// gone; that failure is expected and only logged at debug level.
func (c *Client) DestroyFrame(root xproto.Window) {
	if !c.Framed() {
		return
	}
	if err := c.d.ReparentWindow(c.Inner, root, c.Rect.X, c.Rect.Y); err != nil {
		logging.L().Debug("reparent to root", logging.Handle("inner", c.Inner), logging.XError(err))
	}
	if err := c.d.ChangeSaveSet(c.Inner, xproto.SetModeDelete); err != nil {
		logging.L().Debug("remove from save-set", logging.Handle("inner", c.Inner), logging.XError(err))
	}
	if err := c.d.DestroyWindow(c.Frame); err != nil {
		logging.L().Warn("destroy frame", logging.Handle("frame", c.Frame), logging.XError(err))
	}
	c.Frame = 0
}

// Focus gives the inner window input focus.
func (c *Client) Focus() {
	if err := c.d.SetInputFocus(c.Inner); err != nil {
		logging.L().Warn("focus", logging.Handle("inner", c.Inner), logging.XError(err))
	}
}

// Raise restacks the frame above its siblings.
func (c *Client) Raise() {
	if err := c.d.ConfigureWindow(c.Frame, xproto.ConfigWindowStackMode,
		[]uint32{xproto.StackModeAbove}); err != nil {
		logging.L().Warn("raise", logging.Handle("frame", c.Frame), logging.XError(err))
	}
}
