package client

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/platform"
	"github.com/1broseidon/awm/internal/platform/fake"
)

const inner = xproto.Window(0x100)

func framed(t *testing.T, b *fake.Backend) *Client {
	t.Helper()
	c, err := NewFramed(b, inner)
	require.NoError(t, err)
	return c
}

func TestNewFramed_WrapsWindowAtOriginalOffset(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(50, 60, 200, 150))

	c := framed(t, b)

	creates := b.CallsFor("CreateFrame", 0)
	require.Len(t, creates, 1)
	assert.Equal(t, geom.NewRect(50, 60, 208, 182), creates[0].Rect)

	frame := b.Window(c.Frame)
	require.NotNil(t, frame)
	assert.True(t, frame.Mapped)
	assert.Equal(t, uint32(platform.FrameEventMask), frame.EventMask)

	win := b.Window(inner)
	assert.Equal(t, c.Frame, win.Parent)
	assert.Equal(t, 4, win.Rect.X)
	assert.Equal(t, 28, win.Rect.Y)
	assert.Equal(t, 0, win.Border)
	assert.True(t, win.InSaveSet)
	assert.Equal(t, []xproto.Button{1, 2, 3}, win.Grabs)
	assert.Equal(t, uint32(platform.InnerEventMask), win.EventMask)
	require.NotNil(t, win.WmState)
	assert.Equal(t, uint(icccm.StateNormal), *win.WmState)

	assert.Equal(t, geom.NewRect(54, 88, 200, 150), c.Rect)
	assert.Equal(t, geom.NewRect(50, 60, 208, 182), c.FrameRect())
}

func TestNewFramed_DestroysFrameOnFailure(t *testing.T) {
	for _, op := range []string{"ChangeSaveSet", "ReparentWindow", "MapWindow", "GrabButton"} {
		t.Run(op, func(t *testing.T) {
			b := fake.New()
			b.AddWindow(inner, geom.NewRect(0, 0, 200, 150))
			b.Fail[op] = errors.New("denied")

			c, err := NewFramed(b, inner)
			require.Error(t, err)
			assert.Nil(t, c)

			destroys := b.CallsFor("DestroyWindow", 0x400001)
			assert.Len(t, destroys, 1)
			assert.Nil(t, b.Window(0x400001))
		})
	}
}

func TestNewFramed_MissingWindow(t *testing.T) {
	b := fake.New()
	_, err := NewFramed(b, inner)
	require.Error(t, err)
	assert.True(t, platform.IsBadWindow(err))
	assert.Empty(t, b.CallsFor("CreateFrame", 0))
}

func TestNewFramed_AppliesHintsBeforeFraming(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(0, 0, 10, 10))
	b.Hints[inner] = &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize,
		MinWidth:  64,
		MinHeight: 48,
	}

	c := framed(t, b)
	assert.Equal(t, geom.Extent{Width: 64, Height: 48}, c.Rect.Extent)
	assert.Equal(t, geom.Extent{Width: 72, Height: 80}, b.Window(c.Frame).Rect.Extent)
}

func TestSetSize_ClampsToMinimum(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(0, 0, 100, 100))
	c := New(b, inner)
	c.applyHints(&icccm.NormalHints{Flags: icccm.SizeHintPMinSize, MinWidth: 20, MinHeight: 20})

	mask := c.SetSize(geom.Extent{Width: 5, Height: 5})
	assert.Equal(t, geom.Extent{Width: 20, Height: 20}, c.Rect.Extent)
	assert.Zero(t, mask&(WidthApplied|HeightApplied))
	assert.Zero(t, mask&(WidthAtMax|HeightAtMax))
}

func TestSetSize_ReportsMaximumClamp(t *testing.T) {
	c := New(fake.New(), inner)
	c.applyHints(&icccm.NormalHints{Flags: icccm.SizeHintPMaxSize, MaxWidth: 300, MaxHeight: 0})

	mask := c.SetSize(geom.Extent{Width: 500, Height: 500})
	assert.Equal(t, geom.Extent{Width: 300, Height: 500}, c.Rect.Extent)
	assert.Equal(t, WidthAtMax|HeightApplied, mask)
}

func TestSetSize_RoundsToIncrement(t *testing.T) {
	tests := []struct {
		name string
		base uint
		req  int
		want int
	}{
		{name: "up", req: 101, want: 104},
		{name: "down", req: 99, want: 96},
		{name: "exact", req: 96, want: 96},
		{name: "from base", base: 3, req: 101, want: 99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(fake.New(), inner)
			c.applyHints(&icccm.NormalHints{
				Flags:     icccm.SizeHintPResizeInc | icccm.SizeHintPBaseSize,
				WidthInc:  8,
				BaseWidth: tt.base,
			})
			mask := c.SetSize(geom.Extent{Width: tt.req, Height: 50})
			assert.Equal(t, tt.want, c.Rect.Width)
			assert.NotZero(t, mask&WidthApplied)
		})
	}
}

func TestEffectiveMin_FallsBackToBase(t *testing.T) {
	c := New(fake.New(), inner)
	c.applyHints(&icccm.NormalHints{Flags: icccm.SizeHintPBaseSize, BaseWidth: 40, BaseHeight: 0})
	assert.Equal(t, geom.Extent{Width: 40, Height: 1}, c.EffectiveMin())

	c.applyHints(&icccm.NormalHints{
		Flags:     icccm.SizeHintPBaseSize | icccm.SizeHintPMinSize,
		BaseWidth: 40,
		MinWidth:  10,
		MinHeight: 10,
	})
	assert.Equal(t, geom.Extent{Width: 10, Height: 10}, c.EffectiveMin())
}

func TestApplyHints_MaxNeverBelowMin(t *testing.T) {
	c := New(fake.New(), inner)
	c.applyHints(&icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  100,
		MinHeight: 100,
		MaxWidth:  50,
		MaxHeight: 200,
	})
	assert.Equal(t, geom.Extent{Width: 100, Height: 200}, c.MaxSize)
}

func TestSetPosition_KeepsClientReachable(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(0, 0, 100, 100))
	c := framed(t, b)

	mask := c.SetPosition(geom.Offset{X: -500, Y: 300})
	assert.Equal(t, -74, c.Rect.X)
	assert.Zero(t, mask&XApplied)
	assert.NotZero(t, mask&YApplied)

	mask = c.SetPosition(geom.Offset{X: -60, Y: 0})
	assert.Equal(t, geom.Offset{X: -60, Y: 28}, c.Rect.Offset)
	assert.NotZero(t, mask&XApplied)
	assert.Zero(t, mask&YApplied)

	frame := b.Window(c.Frame)
	assert.Equal(t, geom.Offset{X: -64, Y: 0}, frame.Rect.Offset)
}

func TestSetPosition_FrameWidth100StopsAtMinus70(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(0, 0, 92, 100))
	c := framed(t, b)
	require.Equal(t, 100, c.FrameRect().Width)

	for _, x := range []int{-71, -500, geom.MinCoord} {
		c.SetPosition(geom.Offset{X: x, Y: 100})
		assert.Equal(t, -70, c.FrameRect().X)
		assert.Equal(t, -70, b.Window(c.Frame).Rect.X)
	}

	mask := c.SetPosition(geom.Offset{X: -65, Y: 100})
	assert.Equal(t, -69, c.FrameRect().X)
	assert.NotZero(t, mask&XApplied)
}

func TestRefreshNormalHints_ReappliesToFramedClient(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(10, 40, 200, 150))
	c := framed(t, b)

	b.Hints[inner] = &icccm.NormalHints{Flags: icccm.SizeHintPMaxSize, MaxWidth: 120, MaxHeight: 100}
	c.RefreshNormalHints(false)

	assert.Equal(t, geom.Extent{Width: 120, Height: 100}, c.Rect.Extent)
	assert.Equal(t, geom.Extent{Width: 128, Height: 132}, b.Window(c.Frame).Rect.Extent)
	assert.Equal(t, geom.Extent{Width: 120, Height: 100}, b.Window(inner).Rect.Extent)

	c.RefreshNormalHints(true)
	assert.Equal(t, geom.MaxDim-8, c.MaxSize.Width)
}

func TestRefreshNormalHints_CapsOversizedHints(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(10, 40, 200, 150))
	c := framed(t, b)

	b.Reset()
	b.Hints[inner] = &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  0xFFFFFFFF,
		MinHeight: 100000,
		MaxWidth:  0xFFFFFFFF,
		MaxHeight: 0xFFFFFFFF,
	}
	c.RefreshNormalHints(false)

	want := geom.Extent{Width: geom.MaxDim - 8, Height: geom.MaxDim - 32}
	assert.Equal(t, want, c.MinSize)
	assert.Equal(t, want, c.MaxSize)
	assert.Equal(t, want, c.Rect.Extent)

	// The server accepted both configures, so it agrees with the client.
	frame := b.Window(c.Frame)
	assert.Equal(t, geom.Extent{Width: geom.MaxDim, Height: geom.MaxDim}, frame.Rect.Extent)
	assert.Equal(t, want, b.Window(inner).Rect.Extent)

	c.SetPosition(geom.Offset{X: -100000, Y: 0})
	assert.Equal(t, geom.MinCoord, frame.Rect.X)
	assert.Equal(t, c.FrameRect(), frame.Rect)
}

func TestApplyHints_CapsEveryHint(t *testing.T) {
	c := New(fake.New(), inner)
	c.applyHints(&icccm.NormalHints{
		Flags:      icccm.SizeHintPBaseSize | icccm.SizeHintPResizeInc,
		BaseWidth:  0xFFFFFFFF,
		BaseHeight: 70000,
		WidthInc:   70000,
		HeightInc:  3,
	})
	assert.Equal(t, geom.Extent{Width: geom.MaxDim - 8, Height: geom.MaxDim - 32}, c.BaseSize)
	assert.Equal(t, geom.Extent{Width: geom.MaxDim - 8, Height: 3}, c.SizeInc)

	c.SetSize(geom.Extent{Width: 1 << 20, Height: 1 << 20})
	assert.LessOrEqual(t, c.FrameRect().Width, geom.MaxDim)
	assert.LessOrEqual(t, c.FrameRect().Height, geom.MaxDim)
}

func TestNames(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(0, 0, 100, 100))
	b.Names[inner] = "xterm"
	c := framed(t, b)
	assert.Equal(t, "xterm", c.Name)
	assert.Equal(t, NameICCCM, c.NameSource)

	b.NetNames[inner] = "xterm: ~"
	c.RefreshEwmhName(false)
	assert.Equal(t, "xterm: ~", c.Name)
	assert.Equal(t, NameEWMH, c.NameSource)

	b.Names[inner] = "ignored"
	c.RefreshIcccmName(false)
	assert.Equal(t, "xterm: ~", c.Name)

	c.RefreshEwmhName(true)
	assert.Equal(t, "", c.Name)
	assert.Equal(t, NameNone, c.NameSource)

	c.RefreshIcccmName(false)
	assert.Equal(t, "ignored", c.Name)
	assert.Equal(t, "icccm", c.NameSource.String())
}

func TestSetFullscreen_RoundTrip(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(50, 60, 200, 150))
	c := framed(t, b)
	area := geom.NewRect(0, 0, 1920, 1080)

	require.NoError(t, c.SetFullscreen(true, area))
	assert.True(t, c.Fullscreen)
	assert.Equal(t, area, b.Window(c.Frame).Rect)
	assert.Equal(t, area, b.Window(inner).Rect)
	assert.Equal(t, []string{platform.AtomNetWmStateFullscreen}, b.Window(inner).NetState)

	// Hints changes wait until the client leaves fullscreen.
	b.Reset()
	c.UpdateSizeHints(nil)
	assert.Empty(t, b.CallsFor("ConfigureWindow", c.Frame))

	require.NoError(t, c.SetFullscreen(false, area))
	assert.False(t, c.Fullscreen)
	assert.Equal(t, geom.NewRect(54, 88, 200, 150), c.Rect)
	assert.Equal(t, geom.NewRect(50, 60, 208, 182), b.Window(c.Frame).Rect)
	assert.Equal(t, geom.NewRect(4, 28, 200, 150), b.Window(inner).Rect)
	assert.Empty(t, b.Window(inner).NetState)
}

func TestDestroyFrame(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(50, 60, 200, 150))
	c := framed(t, b)
	frame := c.Frame

	c.DestroyFrame(b.Root())
	assert.False(t, c.Framed())
	assert.Nil(t, b.Window(frame))
	assert.Equal(t, b.Root(), b.Window(inner).Parent)
	assert.False(t, b.Window(inner).InSaveSet)

	// A second call is a no-op.
	b.Reset()
	c.DestroyFrame(b.Root())
	assert.Empty(t, b.Calls)
}

func TestDestroyFrame_InnerAlreadyGone(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(50, 60, 200, 150))
	c := framed(t, b)
	frame := c.Frame
	delete(b.Windows, inner)

	c.DestroyFrame(b.Root())
	assert.Nil(t, b.Window(frame))
	assert.Zero(t, c.Frame)
}

func TestFocusAndRaise(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(0, 0, 100, 100))
	c := framed(t, b)

	c.Focus()
	c.Raise()
	assert.Equal(t, inner, b.Focused)
	raises := b.CallsFor("ConfigureWindow", c.Frame)
	require.NotEmpty(t, raises)
	last := raises[len(raises)-1]
	assert.Equal(t, uint16(xproto.ConfigWindowStackMode), last.Mask)
	assert.Equal(t, []uint32{xproto.StackModeAbove}, last.Values)
}
