// Package prefs holds the raw per-key persistence primitive the sync layer
// writes through. Values are untyped strings and booleans; typed access and
// serialization live one level up, in the cache bindings.
package prefs

// Store is the per-key persistence contract. Reads never fail: a missing key
// yields the zero value (empty string) or the caller's default (booleans).
// Writes report storage errors but implementations must keep their in-memory
// view updated even when the flush to durable storage fails.
type Store interface {
	GetString(key string) string
	PutString(key, value string) error
	GetBoolean(key string, def bool) bool
	PutBoolean(key string, value bool) error
}
