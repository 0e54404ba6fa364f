package geom

import (
	"fmt"
	"math"
)

// Limits of the protocol's CARD16 extents and INT16 coordinates.
const (
	MaxDim   = math.MaxUint16
	MinCoord = math.MinInt16
	MaxCoord = math.MaxInt16
)

// Offset is a position in root window coordinates.
type Offset struct {
	X int
	Y int
}

// Extent is a width/height pair.
type Extent struct {
	Width  int
	Height int
}

// Rect is an offset plus an extent.
type Rect struct {
	Offset
	Extent
}

// Margin is the decoration thickness between a frame and its inner window.
type Margin struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// NewRect builds a Rect from its four components.
func NewRect(x, y, width, height int) Rect {
	return Rect{Offset{x, y}, Extent{width, height}}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", r.Width, r.Height, r.X, r.Y)
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(p Offset) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Center returns the middle point of r.
func (r Rect) Center() Offset {
	return Offset{r.X + r.Width/2, r.Y + r.Height/2}
}

// Horizontal is the combined left and right thickness.
func (m Margin) Horizontal() int { return m.Left + m.Right }

// Vertical is the combined top and bottom thickness.
func (m Margin) Vertical() int { return m.Top + m.Bottom }

// Expand grows an inner extent by the margin.
func (m Margin) Expand(e Extent) Extent {
	return Extent{e.Width + m.Horizontal(), e.Height + m.Vertical()}
}

// Shrink is the inverse of Expand.
func (m Margin) Shrink(e Extent) Extent {
	return Extent{e.Width - m.Horizontal(), e.Height - m.Vertical()}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RoundTo rounds v to the nearest multiple of step counted from base.
// A step of zero or less returns v unchanged.
func RoundTo(v, base, step int) int {
	if step <= 0 {
		return v
	}
	d := v - base
	q := d / step
	r := d - q*step
	if r < 0 {
		r += step
		q--
	}
	if 2*r >= step {
		q++
	}
	return base + q*step
}
