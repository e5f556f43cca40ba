package transform

import "github.com/google/uuid"

// IdentitySet holds identifiers known to be the same record in source and
// target. Values in the set are never remapped.
type IdentitySet struct {
	ids map[uuid.UUID]struct{}
}

// NewIdentitySet creates an empty set.
func NewIdentitySet() *IdentitySet {
	return &IdentitySet{ids: make(map[uuid.UUID]struct{})}
}

// Add records id as identical in both environments.
func (s *IdentitySet) Add(id uuid.UUID) {
	s.ids[id] = struct{}{}
}

// Contains reports whether id is known to be identical.
func (s *IdentitySet) Contains(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the set size.
func (s *IdentitySet) Len() int {
	return len(s.ids)
}
