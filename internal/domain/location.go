package domain

import "sort"

// LocationSet is a set of place names keyed by NormalizeName. The first
// spelling added for a key is kept for display and for graph filters.
type LocationSet struct {
	names map[string]string
}

// NewLocationSet builds a set from names; blanks are ignored.
func NewLocationSet(names ...string) LocationSet {
	s := LocationSet{names: make(map[string]string, len(names))}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name and reports whether it was new.
func (s *LocationSet) Add(name string) bool {
	key := NormalizeName(name)
	if key == "" {
		return false
	}
	if s.names == nil {
		s.names = make(map[string]string)
	}
	if _, ok := s.names[key]; ok {
		return false
	}
	s.names[key] = name
	return true
}

// Contains reports membership using the normalized key.
func (s LocationSet) Contains(name string) bool {
	_, ok := s.names[NormalizeName(name)]
	return ok
}

// Len returns the number of distinct locations.
func (s LocationSet) Len() int { return len(s.names) }

// IsEmpty reports whether the set has no members.
func (s LocationSet) IsEmpty() bool { return len(s.names) == 0 }

// Names returns display names sorted by normalized key.
func (s LocationSet) Names() []string {
	keys := s.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.names[k]
	}
	return out
}

// Keys returns the sorted normalized keys.
func (s LocationSet) Keys() []string {
	keys := make([]string, 0, len(s.names))
	for k := range s.names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
