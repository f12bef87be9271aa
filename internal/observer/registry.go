package observer

import (
	"reflect"
	"slices"
	"sync"
)

// Registry is an ordered set of observer handles. Handles are compared by
// identity, so register pointers rather than values.
type Registry[O comparable] struct {
	mu      sync.Mutex
	entries []O
}

// Register appends o. Registering nil or an already present handle is an error
// and leaves the registry unchanged.
func (r *Registry[O]) Register(o O) error {
	if isNil(o) {
		return ErrNilObserver
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.entries, o) {
		return ErrDuplicateObserver
	}
	r.entries = append(r.entries, o)
	return nil
}

// Remove deletes o and reports whether it was present. Removing an absent
// handle is a no-op.
func (r *Registry[O]) Remove(o O) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.Index(r.entries, o)
	if i < 0 {
		return false
	}
	// Fresh backing array: snapshots handed out earlier keep their contents.
	r.entries = slices.Concat(r.entries[:i], r.entries[i+1:])
	return true
}

// Contains reports whether o is registered.
func (r *Registry[O]) Contains(o O) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.entries, o)
}

// Len returns the number of registered handles.
func (r *Registry[O]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the handles in registration order. Later mutations do not
// affect the returned slice.
func (r *Registry[O]) Snapshot() []O {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
