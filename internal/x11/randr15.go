package x11

import (
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"
)

// The bundled randr package stops at protocol 1.4, so GetMonitors (1.5) is
// encoded here against xgb's exported request API.
const getMonitorsOpcode = 42

// MonitorInfo is one monitor described by a RandR 1.5 GetMonitors reply.
type MonitorInfo struct {
	Name      xproto.Atom
	Primary   bool
	Automatic bool
	X         int16
	Y         int16
	Width     uint16
	Height    uint16
	MmWidth   uint32
	MmHeight  uint32
	Outputs   []randr.Output
}

// GetMonitorsReply is the decoded RRGetMonitors reply.
type GetMonitorsReply struct {
	Sequence  uint16
	Length    uint32
	Timestamp xproto.Timestamp
	Monitors  []MonitorInfo
}

// GetMonitorsCookie is returned by GetMonitors.
type GetMonitorsCookie struct {
	*xgb.Cookie
}

// GetMonitors sends a checked RRGetMonitors request. randr.Init must have
// been called on c.
func GetMonitors(c *xgb.Conn, window xproto.Window, getActive bool) (GetMonitorsCookie, error) {
	c.ExtLock.RLock()
	opcode, ok := c.Extensions["RANDR"]
	c.ExtLock.RUnlock()
	if !ok {
		return GetMonitorsCookie{}, errors.New("RANDR extension not initialised")
	}

	cookie := c.NewCookie(true, true)
	c.NewRequest(getMonitorsRequest(opcode, window, getActive), cookie)
	return GetMonitorsCookie{cookie}, nil
}

// Reply blocks for the server's answer.
func (cook GetMonitorsCookie) Reply() (*GetMonitorsReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return decodeGetMonitorsReply(buf)
}

func getMonitorsRequest(opcode byte, window xproto.Window, getActive bool) []byte {
	size := 12
	b := 0
	buf := make([]byte, size)

	buf[b] = opcode
	b += 1

	buf[b] = getMonitorsOpcode
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put32(buf[b:], uint32(window))
	b += 4

	if getActive {
		buf[b] = 1
	}

	return buf
}

func decodeGetMonitorsReply(buf []byte) (*GetMonitorsReply, error) {
	if len(buf) < 32 {
		return nil, errors.Newf("short GetMonitors reply: %d bytes", len(buf))
	}

	v := new(GetMonitorsReply)
	b := 2 // reply determinant and pad

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Length = xgb.Get32(buf[b:])
	b += 4

	v.Timestamp = xproto.Timestamp(xgb.Get32(buf[b:]))
	b += 4

	nMonitors := int(xgb.Get32(buf[b:]))
	b += 4

	b += 4  // total output count
	b += 12 // pad

	v.Monitors = make([]MonitorInfo, 0, nMonitors)
	for i := 0; i < nMonitors; i++ {
		if len(buf) < b+24 {
			return nil, errors.Newf("GetMonitors reply truncated in monitor %d", i)
		}

		var m MonitorInfo
		m.Name = xproto.Atom(xgb.Get32(buf[b:]))
		b += 4
		m.Primary = buf[b] != 0
		b += 1
		m.Automatic = buf[b] != 0
		b += 1
		nOutput := int(xgb.Get16(buf[b:]))
		b += 2
		m.X = int16(xgb.Get16(buf[b:]))
		b += 2
		m.Y = int16(xgb.Get16(buf[b:]))
		b += 2
		m.Width = xgb.Get16(buf[b:])
		b += 2
		m.Height = xgb.Get16(buf[b:])
		b += 2
		m.MmWidth = xgb.Get32(buf[b:])
		b += 4
		m.MmHeight = xgb.Get32(buf[b:])
		b += 4

		if len(buf) < b+4*nOutput {
			return nil, errors.Newf("GetMonitors reply truncated in outputs of monitor %d", i)
		}
		m.Outputs = make([]randr.Output, nOutput)
		for j := range m.Outputs {
			m.Outputs[j] = randr.Output(xgb.Get32(buf[b:]))
			b += 4
		}

		v.Monitors = append(v.Monitors, m)
	}

	return v, nil
}
