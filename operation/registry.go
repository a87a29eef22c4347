package operation

import (
	"sort"
	"sync"

	"github.com/teranos/opsgate/errors"
)

// Registry indexes descriptors by identifier.
// Reads never observe a partially loaded set: Load replaces the whole index.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*Descriptor
}

// NewRegistry creates a registry holding descs
func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	r := &Registry{ops: make(map[string]*Descriptor)}
	if err := r.Load(descs); err != nil {
		return nil, err
	}
	return r, nil
}

// Load replaces the registered set with descs. On error the current set is
// left untouched.
func (r *Registry) Load(descs []*Descriptor) error {
	next := make(map[string]*Descriptor, len(descs))
	for _, d := range descs {
		if d == nil {
			return errors.New("cannot register nil descriptor")
		}
		if _, exists := next[d.ID()]; exists {
			return errors.Newf("operation already registered: %s", d.ID())
		}
		next[d.ID()] = d
	}

	r.mu.Lock()
	r.ops = next
	r.mu.Unlock()
	return nil
}

// Get retrieves a descriptor by identifier
func (r *Registry) Get(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.ops[id]
	return d, ok
}

// List returns all descriptors sorted by identifier.
// The slice is a fresh copy; descriptors themselves are immutable.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.ops))
	for _, d := range r.ops {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered operations
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
