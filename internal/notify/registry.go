// Package notify implements the refresh-listener registry: an append-only,
// ordered list of no-argument callbacks fired after state-changing
// repository operations.
package notify

import "sync"

// Registry holds registered callbacks in registration order.
//
// NotifyAll runs every callback synchronously on the calling goroutine, so a
// slow listener delays the operation that triggered it. Panics inside a
// callback are not recovered here; a listener that must not take down the
// caller has to guard itself.
type Registry struct {
	mu        sync.Mutex
	listeners []func()
}

// Register appends a callback. There is no deregistration: listeners live as
// long as the repository that owns the registry.
func (r *Registry) Register(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// NotifyAll invokes every registered callback in registration order.
func (r *Registry) NotifyAll() {
	r.mu.Lock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}
