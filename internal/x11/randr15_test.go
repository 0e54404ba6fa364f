package x11

import (
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMonitorsRequestLayout(t *testing.T) {
	buf := getMonitorsRequest(140, xproto.Window(0x1a2), true)

	require.Len(t, buf, 12)
	assert.Equal(t, byte(140), buf[0])
	assert.Equal(t, byte(getMonitorsOpcode), buf[1])
	assert.Equal(t, uint16(3), xgb.Get16(buf[2:]))
	assert.Equal(t, uint32(0x1a2), xgb.Get32(buf[4:]))
	assert.Equal(t, byte(1), buf[8])
}

func encodeMonitor(name uint32, primary bool, x, y int16, w, h uint16, outputs ...uint32) []byte {
	buf := make([]byte, 24+4*len(outputs))
	xgb.Put32(buf[0:], name)
	if primary {
		buf[4] = 1
	}
	xgb.Put16(buf[6:], uint16(len(outputs)))
	xgb.Put16(buf[8:], uint16(x))
	xgb.Put16(buf[10:], uint16(y))
	xgb.Put16(buf[12:], w)
	xgb.Put16(buf[14:], h)
	for i, o := range outputs {
		xgb.Put32(buf[24+4*i:], o)
	}
	return buf
}

func TestDecodeGetMonitorsReply(t *testing.T) {
	header := make([]byte, 32)
	header[0] = 1
	xgb.Put16(header[2:], 7)
	xgb.Put32(header[8:], 1234)
	xgb.Put32(header[12:], 2)
	xgb.Put32(header[16:], 3)

	buf := append(header, encodeMonitor(300, true, 0, 0, 1920, 1080, 0x41)...)
	buf = append(buf, encodeMonitor(301, false, 1920, -10, 1280, 1024, 0x42, 0x43)...)

	reply, err := decodeGetMonitorsReply(buf)
	require.NoError(t, err)

	assert.Equal(t, uint16(7), reply.Sequence)
	assert.Equal(t, xproto.Timestamp(1234), reply.Timestamp)
	require.Len(t, reply.Monitors, 2)

	first := reply.Monitors[0]
	assert.Equal(t, xproto.Atom(300), first.Name)
	assert.True(t, first.Primary)
	assert.Equal(t, uint16(1920), first.Width)
	assert.Equal(t, []randr.Output{0x41}, first.Outputs)

	second := reply.Monitors[1]
	assert.Equal(t, int16(1920), second.X)
	assert.Equal(t, int16(-10), second.Y)
	assert.Equal(t, []randr.Output{0x42, 0x43}, second.Outputs)
}

func TestDecodeGetMonitorsReplyTruncated(t *testing.T) {
	header := make([]byte, 32)
	xgb.Put32(header[12:], 1)

	_, err := decodeGetMonitorsReply(header)
	assert.Error(t, err)

	_, err = decodeGetMonitorsReply(header[:16])
	assert.Error(t, err)
}
