package events

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/platform"
)

// Atoms are the property and message atoms the dispatcher reacts to.
type Atoms struct {
	WmName               xproto.Atom
	WmNormalHints        xproto.Atom
	WmState              xproto.Atom
	NetWmName            xproto.Atom
	NetWmState           xproto.Atom
	NetWmStateFullscreen xproto.Atom
}

// Interner resolves atom names.
type Interner interface {
	Atom(name string) (xproto.Atom, error)
}

// InternAtoms resolves every atom in Atoms. WM_NAME and WM_NORMAL_HINTS
// are predefined by the protocol.
func InternAtoms(in Interner) (Atoms, error) {
	a := Atoms{
		WmName:        xproto.AtomWmName,
		WmNormalHints: xproto.AtomWmNormalHints,
	}
	for _, f := range []struct {
		name string
		dst  *xproto.Atom
	}{
		{platform.AtomWmState, &a.WmState},
		{platform.AtomNetWmName, &a.NetWmName},
		{platform.AtomNetWmState, &a.NetWmState},
		{platform.AtomNetWmStateFullscreen, &a.NetWmStateFullscreen},
	} {
		atom, err := in.Atom(f.name)
		if err != nil {
			return Atoms{}, errors.Wrapf(err, "intern %s", f.name)
		}
		*f.dst = atom
	}
	return a, nil
}

// Supported lists the EWMH hints advertised in _NET_SUPPORTED.
func Supported() []string {
	return []string{
		platform.AtomNetWmName,
		platform.AtomNetWmState,
		platform.AtomNetWmStateFullscreen,
	}
}
