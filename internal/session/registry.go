package session

import (
	"fmt"
	"sync"
)

// Registry holds the live handles keyed by session id. Its capacity bounds
// how many sessions may exist at once; the two-party negotiator uses 1.
type Registry struct {
	mu       sync.Mutex
	capacity int
	handles  map[string]*Handle
	order    []string
}

// NewRegistry creates a registry. A capacity below 1 is treated as 1.
func NewRegistry(capacity int) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		capacity: capacity,
		handles:  make(map[string]*Handle),
	}
}

// Add registers h. It fails with ErrAlreadyNegotiating when the registry is
// full.
func (r *Registry) Add(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[h.id]; ok {
		return fmt.Errorf("session %s already registered", h.id)
	}
	if len(r.handles) >= r.capacity {
		return fmt.Errorf("%w: %d of %d sessions in use", ErrAlreadyNegotiating, len(r.handles), r.capacity)
	}
	r.handles[h.id] = h
	r.order = append(r.order, h.id)
	return nil
}

// Get returns the handle for id, or nil.
func (r *Registry) Get(id string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[id]
}

// Active returns the oldest live handle, or nil when there is none.
func (r *Registry) Active() *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return nil
	}
	return r.handles[r.order[0]]
}

// Remove drops the handle for id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
