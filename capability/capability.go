// Package capability tracks which optional runtime collaborators came up at
// startup. Operations declare the tags they need; the dispatch pipeline
// refuses to run an operation whose tags are not all present.
package capability

import (
	"sort"
	"sync"
)

// Known capability tags
const (
	Workspace     = "workspace"
	EmailDelivery = "email-delivery"
	StreamStore   = "stream-store"
)

// Set is the set of capabilities the runtime actually initialized.
// The zero value is an empty, usable set.
type Set struct {
	mu   sync.RWMutex
	tags map[string]struct{}
}

// NewSet creates a set containing tags
func NewSet(tags ...string) *Set {
	s := &Set{}
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add marks a capability as available
func (s *Set) Add(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags == nil {
		s.tags = make(map[string]struct{})
	}
	s.tags[tag] = struct{}{}
}

// Remove marks a capability as unavailable
func (s *Set) Remove(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, tag)
}

// Has reports whether tag is available
func (s *Set) Has(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tags[tag]
	return ok
}

// List returns the available tags in sorted order
func (s *Set) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags := make([]string, 0, len(s.tags))
	for t := range s.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Missing returns the subset of required that is not available, preserving
// the order of required. Returns nil when everything is present.
func (s *Set) Missing(required []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, t := range required {
		if _, ok := s.tags[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}
