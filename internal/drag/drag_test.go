package drag

import (
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/awm/internal/client"
	"github.com/1broseidon/awm/internal/geom"
	"github.com/1broseidon/awm/internal/platform"
	"github.com/1broseidon/awm/internal/platform/fake"
)

const inner = xproto.Window(0x100)

func motion(x, y int) xproto.MotionNotifyEvent {
	return xproto.MotionNotifyEvent{RootX: int16(x), RootY: int16(y)}
}

// setup frames a 200x150 window at (100,100); its inner rect is then
// 200x150+104+128.
func setup(t *testing.T, hints *icccm.NormalHints) (*fake.Backend, *client.Client, *[]xgb.Event, *Controller) {
	t.Helper()
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(100, 100, 200, 150))
	if hints != nil {
		b.Hints[inner] = hints
	}
	c, err := client.NewFramed(b, inner)
	require.NoError(t, err)
	require.Equal(t, geom.NewRect(104, 128, 200, 150), c.Rect)

	var forwarded []xgb.Event
	ctl := NewController(b, func(ev xgb.Event) { forwarded = append(forwarded, ev) })
	return b, c, &forwarded, ctl
}

func TestEdgeMask(t *testing.T) {
	in := geom.NewRect(104, 128, 200, 150)
	tests := []struct {
		name string
		ptr  geom.Offset
		want Edge
	}{
		{name: "title bar", ptr: geom.Offset{X: 200, Y: 110}, want: EdgeNone},
		{name: "left", ptr: geom.Offset{X: 102, Y: 200}, want: EdgeLeft},
		{name: "right", ptr: geom.Offset{X: 306, Y: 200}, want: EdgeRight},
		{name: "top", ptr: geom.Offset{X: 200, Y: 102}, want: EdgeTop},
		{name: "bottom", ptr: geom.Offset{X: 200, Y: 280}, want: EdgeBottom},
		{name: "top left", ptr: geom.Offset{X: 101, Y: 101}, want: EdgeLeft | EdgeTop},
		{name: "bottom right", ptr: geom.Offset{X: 306, Y: 280}, want: EdgeRight | EdgeBottom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EdgeMask(tt.ptr, in, client.DefaultMargin))
		})
	}
}

func TestEdgeString(t *testing.T) {
	assert.Equal(t, "none", EdgeNone.String())
	assert.Equal(t, "left|bottom", (EdgeLeft | EdgeBottom).String())
	assert.Equal(t, "move", EdgeNone.Kind())
	assert.Equal(t, "resize", EdgeTop.Kind())
}

func TestRun_Move(t *testing.T) {
	b, c, _, ctl := setup(t, nil)
	b.Push(motion(220, 120), motion(250, 160), xproto.ButtonReleaseEvent{})

	require.NoError(t, ctl.Run(c, geom.Offset{X: 200, Y: 110}))
	assert.Equal(t, geom.NewRect(154, 178, 200, 150), c.Rect)
	assert.Equal(t, geom.Offset{X: 150, Y: 150}, b.Window(c.Frame).Rect.Offset)
	assert.False(t, b.Grabbed)

	grabs := b.CallsFor("GrabPointer", b.Root())
	require.Len(t, grabs, 1)
	assert.Equal(t, uint16(platform.DragPointerMask), grabs[0].Mask)
}

func TestRun_ResizeBottomRight(t *testing.T) {
	b, c, _, ctl := setup(t, nil)
	b.Push(motion(360, 300), xproto.KeyPressEvent{})

	require.NoError(t, ctl.Run(c, geom.Offset{X: 310, Y: 280}))
	assert.Equal(t, geom.NewRect(104, 128, 250, 170), c.Rect)
	assert.Equal(t, geom.Extent{Width: 258, Height: 202}, b.Window(c.Frame).Rect.Extent)
}

func TestRun_ResizeLeftKeepsRightEdge(t *testing.T) {
	hints := &icccm.NormalHints{
		Flags:     icccm.SizeHintPMinSize | icccm.SizeHintPMaxSize,
		MinWidth:  100,
		MinHeight: 100,
		MaxWidth:  250,
		MaxHeight: 400,
	}
	tests := []struct {
		name  string
		toX   int
		wantX int
		wantW int
	}{
		{name: "free", toX: 124, wantX: 124, wantW: 180},
		{name: "min clamp", toX: 300, wantX: 204, wantW: 100},
		{name: "max clamp", toX: 0, wantX: 54, wantW: 250},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, c, _, ctl := setup(t, hints)
			b.Push(motion(tt.toX, 200), xproto.ButtonPressEvent{})

			require.NoError(t, ctl.Run(c, geom.Offset{X: 104, Y: 200}))
			assert.Equal(t, tt.wantW, c.Rect.Width)
			assert.Equal(t, tt.wantX, c.Rect.X)
			assert.Equal(t, 304, c.Rect.X+c.Rect.Width)
		})
	}
}

func TestRun_ResizeTopMinClamp(t *testing.T) {
	hints := &icccm.NormalHints{Flags: icccm.SizeHintPMinSize, MinWidth: 50, MinHeight: 120}
	b, c, _, ctl := setup(t, hints)
	b.Push(motion(200, 200), xproto.ButtonReleaseEvent{})

	require.NoError(t, ctl.Run(c, geom.Offset{X: 200, Y: 100}))
	assert.Equal(t, 120, c.Rect.Height)
	assert.Equal(t, 158, c.Rect.Y)
	assert.Equal(t, 278, c.Rect.Y+c.Rect.Height)
}

func TestRun_DispatchesUnrelatedRequests(t *testing.T) {
	b, c, forwarded, ctl := setup(t, nil)
	req := xproto.ConfigureRequestEvent{Window: 0x900, ValueMask: xproto.ConfigWindowWidth, Width: 300}
	mapReq := xproto.MapRequestEvent{Window: 0x901}
	prop := xproto.PropertyNotifyEvent{Window: 0x902}
	b.Push(motion(250, 160), req, mapReq, prop, xproto.ButtonReleaseEvent{})

	require.NoError(t, ctl.Run(c, geom.Offset{X: 200, Y: 110}))
	assert.Equal(t, []xgb.Event{req, mapReq, prop}, *forwarded)
	assert.Equal(t, geom.Offset{X: 154, Y: 178}, c.Rect.Offset)
}

func TestRun_EndsWhenClientLosesFrame(t *testing.T) {
	b := fake.New()
	b.AddWindow(inner, geom.NewRect(100, 100, 200, 150))
	c, err := client.NewFramed(b, inner)
	require.NoError(t, err)

	ctl := NewController(b, func(xgb.Event) { c.DestroyFrame(b.Root()) })
	b.Push(xproto.UnmapNotifyEvent{Window: inner}, motion(500, 500))

	require.NoError(t, ctl.Run(c, geom.Offset{X: 200, Y: 110}))
	assert.Equal(t, geom.Offset{X: 104, Y: 128}, c.Rect.Offset)
	assert.False(t, b.Grabbed)
}

func TestRun_SkipsFullscreen(t *testing.T) {
	b, c, _, ctl := setup(t, nil)
	require.NoError(t, c.SetFullscreen(true, b.ScreenRect()))

	require.NoError(t, ctl.Run(c, geom.Offset{X: 10, Y: 10}))
	assert.Empty(t, b.CallsFor("GrabPointer", b.Root()))
}

func TestRun_ClosedConnection(t *testing.T) {
	b, c, _, ctl := setup(t, nil)
	b.Push(motion(250, 160))

	err := ctl.Run(c, geom.Offset{X: 200, Y: 110})
	assert.True(t, errors.Is(err, platform.ErrClosed))
	assert.False(t, b.Grabbed)
}

func TestRun_WakeEndsDrag(t *testing.T) {
	b, c, _, ctl := setup(t, nil)
	require.NoError(t, b.Wake())
	b.Push(motion(250, 160))

	require.NoError(t, ctl.Run(c, geom.Offset{X: 200, Y: 110}))
	assert.Equal(t, geom.Offset{X: 104, Y: 128}, c.Rect.Offset)
}

func TestRun_GrabFailure(t *testing.T) {
	b, c, _, ctl := setup(t, nil)
	b.Fail["GrabPointer"] = errors.New("AlreadyGrabbed")

	err := ctl.Run(c, geom.Offset{X: 200, Y: 110})
	require.Error(t, err)
	assert.Empty(t, b.CallsFor("UngrabPointer", 0))
}
