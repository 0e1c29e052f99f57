// ABOUTME: ZOrder is an insertion-ordered map whose key order is the board's stacking order.
// ABOUTME: The last key is the topmost card; MoveToBack raises an entry without touching the others.
package core

import "encoding/json"

// ZOrder keeps values addressable by key while preserving a total order over keys.
// Index 0 is the bottom of the stack.
type ZOrder[K comparable, V any] struct {
	data map[K]V
	keys []K
}

// NewZOrder creates an empty ZOrder.
func NewZOrder[K comparable, V any]() *ZOrder[K, V] {
	return &ZOrder[K, V]{data: make(map[K]V)}
}

// Set stores val under key. New keys are placed on top; existing keys keep their position.
func (z *ZOrder[K, V]) Set(key K, val V) {
	if _, exists := z.data[key]; !exists {
		z.keys = append(z.keys, key)
	}
	z.data[key] = val
}

// Get retrieves a value by key.
func (z *ZOrder[K, V]) Get(key K) (V, bool) {
	v, ok := z.data[key]
	return v, ok
}

// Has reports whether key is present.
func (z *ZOrder[K, V]) Has(key K) bool {
	_, ok := z.data[key]
	return ok
}

// Delete removes key. Missing keys are ignored.
func (z *ZOrder[K, V]) Delete(key K) {
	if _, exists := z.data[key]; !exists {
		return
	}
	delete(z.data, key)
	if i := z.Index(key); i >= 0 {
		z.keys = append(z.keys[:i], z.keys[i+1:]...)
	}
}

// MoveToBack moves key to the top of the stack. It returns false when the key
// is missing or already on top, in which case nothing changes.
func (z *ZOrder[K, V]) MoveToBack(key K) bool {
	if _, exists := z.data[key]; !exists {
		return false
	}
	i := z.Index(key)
	if i == len(z.keys)-1 {
		return false
	}
	copy(z.keys[i:], z.keys[i+1:])
	z.keys[len(z.keys)-1] = key
	return true
}

// Index returns the stacking position of key, or -1.
func (z *ZOrder[K, V]) Index(key K) int {
	for i, k := range z.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Top returns the key of the topmost entry.
func (z *ZOrder[K, V]) Top() (K, bool) {
	if len(z.keys) == 0 {
		var zero K
		return zero, false
	}
	return z.keys[len(z.keys)-1], true
}

// Len returns the number of entries.
func (z *ZOrder[K, V]) Len() int {
	return len(z.keys)
}

// Keys returns keys bottom to top.
func (z *ZOrder[K, V]) Keys() []K {
	out := make([]K, len(z.keys))
	copy(out, z.keys)
	return out
}

// Values returns values bottom to top.
func (z *ZOrder[K, V]) Values() []V {
	out := make([]V, 0, len(z.keys))
	for _, k := range z.keys {
		out = append(out, z.data[k])
	}
	return out
}

// Range iterates bottom to top. Return false to stop.
func (z *ZOrder[K, V]) Range(fn func(K, V) bool) {
	for _, k := range z.keys {
		if !fn(k, z.data[k]) {
			break
		}
	}
}

// MarshalJSON encodes the values as an array in stacking order.
func (z *ZOrder[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(z.Values())
}
