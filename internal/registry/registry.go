// Package registry indexes managed clients by both of their windows.
package registry

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/cockroachdb/errors"

	"github.com/1broseidon/awm/internal/client"
	"github.com/1broseidon/awm/internal/handlemap"
)

// ErrAlreadyExists marks a Push whose inner or frame window is already
// registered.
var ErrAlreadyExists = errors.New("client already registered")

// Registry maps inner and frame windows to the same *client.Client.
// It is owned by the event loop and is not safe for concurrent use.
type Registry struct {
	byInner handlemap.Map[xproto.Window, *client.Client]
	byFrame handlemap.Map[xproto.Window, *client.Client]
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Push registers c under both of its windows. If either key is taken the
// registry is left unchanged.
func (r *Registry) Push(c *client.Client) error {
	if r.byInner.Has(c.Inner) {
		return errors.Mark(errors.Newf("inner window 0x%08x already registered", uint32(c.Inner)), ErrAlreadyExists)
	}
	if r.byFrame.Has(c.Frame) {
		return errors.Mark(errors.Newf("frame window 0x%08x already registered", uint32(c.Frame)), ErrAlreadyExists)
	}
	if err := r.byInner.Insert(c.Inner, c); err != nil {
		return errors.Mark(err, ErrAlreadyExists)
	}
	if err := r.byFrame.Insert(c.Frame, c); err != nil {
		r.byInner.Delete(c.Inner)
		return errors.Mark(err, ErrAlreadyExists)
	}
	return nil
}

// ByInner looks a client up by its application window.
func (r *Registry) ByInner(win xproto.Window) (*client.Client, bool) {
	return r.byInner.Get(win)
}

// ByFrame looks a client up by its frame.
func (r *Registry) ByFrame(win xproto.Window) (*client.Client, bool) {
	return r.byFrame.Get(win)
}

// Remove drops the client registered under inner and frame.
func (r *Registry) Remove(inner, frame xproto.Window) {
	r.byInner.Delete(inner)
	r.byFrame.Delete(frame)
}

// Each visits every client in inner window order. fn may remove the client
// it is visiting.
func (r *Registry) Each(fn func(*client.Client)) {
	r.byInner.Range(func(_ xproto.Window, c *client.Client) bool {
		fn(c)
		return true
	})
}

// Len returns the number of managed clients.
func (r *Registry) Len() int {
	return r.byInner.Len()
}
