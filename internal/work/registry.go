package work

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry maps work type ids to definitions. Types are registered once at
// wiring time and kept in priority order for listings.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*WorkType
	ordered []*WorkType // priority desc, then id asc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*WorkType)}
}

// Register adds a work type. Ids must be unique.
func (r *Registry) Register(wt *WorkType) error {
	switch {
	case wt == nil || wt.ID == "":
		return errors.New("work type must have an id")
	case wt.Execute == nil:
		return fmt.Errorf("work type %s has no Execute function", wt.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[wt.ID]; dup {
		return fmt.Errorf("work type %s already registered", wt.ID)
	}
	r.byID[wt.ID] = wt

	i := sort.Search(len(r.ordered), func(i int) bool {
		o := r.ordered[i]
		if o.Priority != wt.Priority {
			return o.Priority < wt.Priority
		}
		return o.ID > wt.ID
	})
	r.ordered = append(r.ordered, nil)
	copy(r.ordered[i+1:], r.ordered[i:])
	r.ordered[i] = wt
	return nil
}

// Get returns a work type by id, or nil.
func (r *Registry) Get(id string) *WorkType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	return r.Get(id) != nil
}

// ByPriority returns the work types, highest priority first and by id within
// a priority. The slice is a copy.
func (r *Registry) ByPriority() []*WorkType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*WorkType(nil), r.ordered...)
}

// Count returns the number of registered work types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
