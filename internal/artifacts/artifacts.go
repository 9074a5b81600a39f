// Package artifacts provides a keyed, at-most-once computation cache for
// values derived from a trace. Concurrent requesters of the same key share
// one in-flight computation; completed values and errors are retained, so a
// key is never computed twice.
package artifacts

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value any
	err   error
}

// Resolver memoizes computations by key.
type Resolver struct {
	group singleflight.Group

	mu   sync.Mutex
	done map[string]entry
}

func NewResolver() *Resolver {
	return &Resolver{done: make(map[string]entry)}
}

func (r *Resolver) resolve(key string, compute func() (any, error)) (any, error) {
	r.mu.Lock()
	if e, ok := r.done[key]; ok {
		r.mu.Unlock()
		return e.value, e.err
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Re-check under the group: a requester that lost the race to an
		// already-finished flight must still see the retained result.
		r.mu.Lock()
		if e, ok := r.done[key]; ok {
			r.mu.Unlock()
			return e.value, e.err
		}
		r.mu.Unlock()

		v, err := compute()
		r.mu.Lock()
		r.done[key] = entry{value: v, err: err}
		r.mu.Unlock()
		return v, err
	})
	return v, err
}

// Resolve returns the memoized value for key, computing it via compute on
// first request. The compute func for a given key must always produce the
// same type.
func Resolve[V any](r *Resolver, key string, compute func() (V, error)) (V, error) {
	v, err := r.resolve(key, func() (any, error) { return compute() })
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
