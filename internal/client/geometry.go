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

// hintDim converts an untrusted hint value, capping it at limit.
func hintDim(v uint, limit int) int {
	if v > uint(limit) {
		return limit
	}
	return int(v)
}

// applyHints resets the size constraints and re-derives them from h. A nil
// h leaves the defaults in place.
func (c *Client) applyHints(h *icccm.NormalHints) {
	c.BaseSize = geom.Extent{}
	c.MinSize = geom.Extent{Width: 1, Height: 1}
	c.MaxSize = maxInner
	c.SizeInc = geom.Extent{}
	c.hasMin = false

	if h == nil {
		return
	}

	if h.Flags&icccm.SizeHintPBaseSize != 0 {
		c.BaseSize = geom.Extent{Width: hintDim(h.BaseWidth, maxInner.Width), Height: hintDim(h.BaseHeight, maxInner.Height)}
	}
	if h.Flags&icccm.SizeHintPMinSize != 0 {
		c.MinSize = geom.Extent{
			Width:  max(hintDim(h.MinWidth, maxInner.Width), 1),
			Height: max(hintDim(h.MinHeight, maxInner.Height), 1),
		}
		c.hasMin = true
	}
	if h.Flags&icccm.SizeHintPMaxSize != 0 {
		if h.MaxWidth > 0 {
			c.MaxSize.Width = hintDim(h.MaxWidth, maxInner.Width)
		}
		if h.MaxHeight > 0 {
			c.MaxSize.Height = hintDim(h.MaxHeight, maxInner.Height)
		}
	}
	if h.Flags&icccm.SizeHintPResizeInc != 0 {
		c.SizeInc = geom.Extent{Width: hintDim(h.WidthInc, maxInner.Width), Height: hintDim(h.HeightInc, maxInner.Height)}
	}

	// A maximum below the minimum would make every size request a clamp.
	lo := c.EffectiveMin()
	c.MaxSize.Width = max(c.MaxSize.Width, lo.Width)
	c.MaxSize.Height = max(c.MaxSize.Height, lo.Height)
}

// constrainAxis rounds v to the increment and clamps it. It reports whether
// v went through unclamped and whether it was clamped at hi.
func constrainAxis(v, base, inc, lo, hi int) (int, bool, bool) {
	v = geom.RoundTo(v, base, inc)
	switch {
	case v < lo:
		return lo, false, false
	case v > hi:
		return hi, false, true
	default:
		return v, true, false
	}
}

func (c *Client) constrain(ext geom.Extent) (geom.Extent, uint8) {
	lo := c.EffectiveMin()

	var mask uint8
	w, okW, maxW := constrainAxis(ext.Width, c.BaseSize.Width, c.SizeInc.Width, lo.Width, c.MaxSize.Width)
	h, okH, maxH := constrainAxis(ext.Height, c.BaseSize.Height, c.SizeInc.Height, lo.Height, c.MaxSize.Height)
	if okW {
		mask |= WidthApplied
	}
	if okH {
		mask |= HeightApplied
	}
	if maxW {
		mask |= WidthAtMax
	}
	if maxH {
		mask |= HeightAtMax
	}
	return geom.Extent{Width: w, Height: h}, mask
}

// SetSize resizes the inner window to ext after applying the size hints,
// and the frame to match. The result tells which axes went through
// unclamped (WidthApplied, HeightApplied) and which stopped at their
// maximum (WidthAtMax, HeightAtMax).
func (c *Client) SetSize(ext geom.Extent) uint8 {
	ext, mask := c.constrain(ext)
	c.Rect.Extent = ext

	if c.Framed() {
		frame := c.Margin.Expand(ext)
		c.configure(c.Frame, xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
			uint32(frame.Width), uint32(frame.Height))
	}
	c.configure(c.Inner, xproto.ConfigWindowWidth|xproto.ConfigWindowHeight,
		uint32(ext.Width), uint32(ext.Height))
	return mask
}

// SetPosition moves the client so its inner window sits at off. At least
// keepVisible pixels of the frame stay on screen past the left edge and
// the frame never leaves the top of the screen. The frame origin also
// stays inside INT16. XApplied and YApplied report the axes that ended up
// away from their lower bound.
func (c *Client) SetPosition(off geom.Offset) uint8 {
	frameW := c.Margin.Expand(c.Rect.Extent).Width
	minX := max(min(keepVisible-frameW, 0), geom.MinCoord) + c.Margin.Left
	minY := c.Margin.Top
	off.X = min(off.X, geom.MaxCoord+c.Margin.Left)
	off.Y = min(off.Y, geom.MaxCoord+c.Margin.Top)

	var mask uint8
	if off.X <= minX {
		off.X = minX
	} else {
		mask |= XApplied
	}
	if off.Y <= minY {
		off.Y = minY
	} else {
		mask |= YApplied
	}
	c.Rect.Offset = off

	if c.Framed() {
		fr := c.FrameRect()
		c.configure(c.Frame, xproto.ConfigWindowX|xproto.ConfigWindowY,
			uint32(int32(fr.X)), uint32(int32(fr.Y)))
	}
	return mask
}

func (c *Client) configure(win xproto.Window, mask uint16, values ...uint32) {
	if err := c.d.ConfigureWindow(win, mask, values); err != nil {
		logging.L().Warn("configure window",
			logging.Handle("window", win),
			zap.Uint16("mask", mask),
			logging.XError(err))
	}
}

// UpdateSizeHints replaces the size constraints with h and, for a framed
// client, re-applies the current geometry so it satisfies them.
func (c *Client) UpdateSizeHints(h *icccm.NormalHints) {
	c.applyHints(h)
	if !c.Framed() || c.Fullscreen {
		return
	}
	c.SetSize(c.Rect.Extent)
	c.SetPosition(c.Rect.Offset)
}

// RefreshNormalHints re-reads WM_NORMAL_HINTS. A deleted property drops
// every constraint.
func (c *Client) RefreshNormalHints(deleted bool) {
	if deleted {
		c.UpdateSizeHints(nil)
		return
	}
	hints, err := c.d.NormalHints(c.Inner)
	if err != nil {
		logging.L().Debug("read WM_NORMAL_HINTS", logging.Handle("inner", c.Inner), logging.XError(err))
		return
	}
	c.UpdateSizeHints(hints)
}

// refreshName prefers _NET_WM_NAME and falls back to WM_NAME.
func (c *Client) refreshName() {
	if name, err := c.d.EwmhName(c.Inner); err == nil && name != "" {
		c.Name, c.NameSource = name, NameEWMH
		return
	}
	if name, err := c.d.IcccmName(c.Inner); err == nil {
		c.Name, c.NameSource = name, NameICCCM
		return
	}
	c.Name, c.NameSource = "", NameNone
}

// RefreshEwmhName handles a change to _NET_WM_NAME.
func (c *Client) RefreshEwmhName(deleted bool) {
	if deleted {
		if c.NameSource == NameEWMH {
			c.Name, c.NameSource = "", NameNone
		}
		return
	}
	c.refreshName()
}

// RefreshIcccmName handles a change to WM_NAME. It is ignored while the
// name comes from _NET_WM_NAME.
func (c *Client) RefreshIcccmName(deleted bool) {
	if c.NameSource == NameEWMH {
		return
	}
	if deleted {
		if c.NameSource == NameICCCM {
			c.Name, c.NameSource = "", NameNone
		}
		return
	}
	name, err := c.d.IcccmName(c.Inner)
	if err != nil {
		logging.L().Debug("read WM_NAME", logging.Handle("inner", c.Inner), logging.XError(err))
		return
	}
	c.Name, c.NameSource = name, NameICCCM
}

// SetFullscreen makes the client cover area without decoration, or puts it
// back where it was before.
func (c *Client) SetFullscreen(on bool, area geom.Rect) error {
	if on == c.Fullscreen || !c.Framed() {
		return nil
	}

	xywh := xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight
	if on {
		if err := c.d.ConfigureWindow(c.Frame, uint16(xywh), []uint32{
			uint32(int32(area.X)), uint32(int32(area.Y)), uint32(area.Width), uint32(area.Height),
		}); err != nil {
			return errors.Wrapf(err, "cover %s with frame 0x%08x", area, uint32(c.Frame))
		}
		c.restore = c.Rect
		c.Margin = geom.Margin{}
		c.Rect = area
		c.configure(c.Inner, uint16(xywh), 0, 0, uint32(area.Width), uint32(area.Height))
		c.Fullscreen = true
		if err := c.d.SetNetWmState(c.Inner, []string{platform.AtomNetWmStateFullscreen}); err != nil {
			return errors.Wrap(err, "publish fullscreen state")
		}
		return nil
	}

	c.Fullscreen = false
	c.Margin = DefaultMargin
	c.configure(c.Inner, xproto.ConfigWindowX|xproto.ConfigWindowY,
		uint32(c.Margin.Left), uint32(c.Margin.Top))
	c.SetSize(c.restore.Extent)
	c.SetPosition(c.restore.Offset)
	if err := c.d.SetNetWmState(c.Inner, nil); err != nil {
		return errors.Wrap(err, "clear fullscreen state")
	}
	return nil
}
