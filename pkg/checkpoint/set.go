package checkpoint

import (
	"encoding/json"
	"sort"
)

// Set is a membership-only collection of identifiers. It only grows.
// The zero value is an empty set ready for use.
type Set struct {
	items map[string]struct{}
}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := Set{}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is a member.
func (s *Set) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Add inserts id and reports whether it was not already present.
func (s *Set) Add(id string) bool {
	if s.items == nil {
		s.items = make(map[string]struct{})
	}
	if _, ok := s.items[id]; ok {
		return false
	}
	s.items[id] = struct{}{}
	return true
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.items)
}

// Items returns the members in sorted order.
func (s *Set) Items() []string {
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

// UnmarshalJSON accepts an array of strings; null decodes to an empty set.
func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	s.items = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.items[id] = struct{}{}
	}
	return nil
}
