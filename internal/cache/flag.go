package cache

import (
	"github.com/confsync/confsync/internal/logger"
	"github.com/confsync/confsync/internal/prefs"
)

// Flag binds one boolean field to a boolean key. Booleans have no absent
// state; a key that was never written reads as the default supplied at
// construction.
type Flag struct {
	store prefs.Store
	key   string
	val   bool
}

// NewFlag creates the binding and performs the single initial load.
func NewFlag(store prefs.Store, key string, def bool) *Flag {
	return &Flag{
		store: store,
		key:   key,
		val:   store.GetBoolean(key, def),
	}
}

// Get returns the in-memory value.
func (f *Flag) Get() bool {
	return f.val
}

// Set replaces the in-memory value and persists it.
func (f *Flag) Set(value bool) {
	f.val = value
	if err := f.store.PutBoolean(f.key, value); err != nil {
		logger.WithComponent("cache").Warnf("persist cache flag %q: %v", f.key, err)
	}
}
