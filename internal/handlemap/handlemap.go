// Package handlemap provides a map keyed by X server handles.
package handlemap

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrExists is returned by Insert when the key is already present.
var ErrExists = errors.New("key already exists")

// Key is any 32-bit server handle type (windows, outputs, atoms).
type Key interface {
	~uint32
}

// Map is an integer-keyed map with explicit collision reporting.
// The zero value is ready to use.
type Map[K Key, V any] struct {
	m map[K]V
}

// New returns a map sized for n entries.
func New[K Key, V any](n int) *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V, n)}
}

// Get returns the value stored under k.
func (hm *Map[K, V]) Get(k K) (V, bool) {
	v, ok := hm.m[k]
	return v, ok
}

// Has reports whether k is present.
func (hm *Map[K, V]) Has(k K) bool {
	_, ok := hm.m[k]
	return ok
}

// Insert stores v under k. It fails without mutation if k exists.
func (hm *Map[K, V]) Insert(k K, v V) error {
	if hm.m == nil {
		hm.m = make(map[K]V)
	}
	if _, ok := hm.m[k]; ok {
		return errors.Wrapf(ErrExists, "key 0x%08x", uint32(k))
	}
	hm.m[k] = v
	return nil
}

// Delete removes k and returns the value it held.
func (hm *Map[K, V]) Delete(k K) (V, bool) {
	v, ok := hm.m[k]
	if ok {
		delete(hm.m, k)
	}
	return v, ok
}

// Len returns the number of entries.
func (hm *Map[K, V]) Len() int {
	return len(hm.m)
}

// Keys returns all keys in ascending order.
func (hm *Map[K, V]) Keys() []K {
	keys := make([]K, 0, len(hm.m))
	for k := range hm.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Range calls fn for each entry in ascending key order until fn returns false.
// fn may delete the entry it is visiting.
func (hm *Map[K, V]) Range(fn func(K, V) bool) {
	for _, k := range hm.Keys() {
		v, ok := hm.m[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Clear drops every entry.
func (hm *Map[K, V]) Clear() {
	clear(hm.m)
}
