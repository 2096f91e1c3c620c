// Package cache provides typed bindings over the raw prefs.Store. A binding
// loads its value once at construction and serves reads from memory; every
// write updates memory first and then persists. Bindings do not lock: the
// repository owning them serializes access.
package cache

import (
	"encoding/json"

	"github.com/confsync/confsync/internal/logger"
	"github.com/confsync/confsync/internal/prefs"
)

// Value binds one typed field to a string key. Absence is a first-class
// state: a key that was never written, was explicitly unset, or holds a
// value that no longer deserializes all read as absent. Corrupt data never
// reaches the caller as an error.
type Value[T any] struct {
	store   prefs.Store
	key     string
	val     T
	present bool
}

// NewValue creates the binding and performs the single initial load.
func NewValue[T any](store prefs.Store, key string) *Value[T] {
	v := &Value[T]{store: store, key: key}
	v.load()
	return v
}

func (v *Value[T]) load() {
	raw := v.store.GetString(v.key)
	if raw == "" {
		return
	}
	var decoded T
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.WithComponent("cache").Warnf("corrupt cache entry %q: %v, treating as absent", v.key, err)
		return
	}
	v.val = decoded
	v.present = true
}

// Get returns the in-memory snapshot. The second return is false when no
// value is cached.
func (v *Value[T]) Get() (T, bool) {
	return v.val, v.present
}

// Set replaces the in-memory value and persists it. Persistence failures are
// logged, not returned: the in-memory value stays authoritative for the life
// of the process and the next successful write repairs the store.
func (v *Value[T]) Set(value T) {
	v.val = value
	v.present = true

	raw, err := json.Marshal(value)
	if err != nil {
		logger.WithComponent("cache").Warnf("marshal cache entry %q: %v", v.key, err)
		return
	}
	if err := v.store.PutString(v.key, string(raw)); err != nil {
		logger.WithComponent("cache").Warnf("persist cache entry %q: %v", v.key, err)
	}
}

// Unset clears the binding and stores the empty marker.
func (v *Value[T]) Unset() {
	var zero T
	v.val = zero
	v.present = false
	if err := v.store.PutString(v.key, ""); err != nil {
		logger.WithComponent("cache").Warnf("persist cache entry %q: %v", v.key, err)
	}
}
