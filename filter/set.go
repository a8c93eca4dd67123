package filter

import (
	"sort"

	"github.com/DaoCloud/listcache/log"
)

// Set holds the active filters of one list view, in the order the fields
// were first activated. Every effective change calls onChange; the owner
// must reset its pagination to offset 0 there.
type Set struct {
	fields   []string
	items    map[string]Descriptor
	onChange func()
}

func NewSet(onChange func()) *Set {
	return &Set{
		items:    map[string]Descriptor{},
		onChange: onChange,
	}
}

// SetFilter normalizes state and stores it under field. It returns the
// stored descriptor, or nil when the filter was removed (empty or malformed
// state).
func (s *Set) SetFilter(field string, state State) *Descriptor {
	d, err := Normalize(field, state)
	if err != nil {
		log.Warnf("filter rejected: %v", err)
		d = nil
	}
	if s.put(field, d) {
		s.changed()
	}
	return d
}

func (s *Set) RemoveFilter(field string) bool {
	if s.put(field, nil) {
		s.changed()
		return true
	}
	return false
}

// SetFilters replaces the whole set. Fields already active keep their
// position, new fields are appended in name order. It reports whether
// anything changed.
func (s *Set) SetFilters(states map[string]State) bool {
	changed := false
	for _, f := range append([]string{}, s.fields...) {
		if _, ok := states[f]; !ok {
			changed = s.put(f, nil) || changed
		}
	}
	names := make([]string, 0, len(states))
	for f := range states {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		d, err := Normalize(f, states[f])
		if err != nil {
			log.Warnf("filter rejected: %v", err)
			d = nil
		}
		changed = s.put(f, d) || changed
	}
	if changed {
		s.changed()
	}
	return changed
}

func (s *Set) Clear() bool {
	if len(s.fields) == 0 {
		return false
	}
	s.fields = nil
	s.items = map[string]Descriptor{}
	s.changed()
	return true
}

func (s *Set) Get(field string) (Descriptor, bool) {
	d, ok := s.items[field]
	return d, ok
}

// All returns the active descriptors in activation order.
func (s *Set) All() []Descriptor {
	res := make([]Descriptor, 0, len(s.fields))
	for _, f := range s.fields {
		res = append(res, s.items[f])
	}
	return res
}

func (s *Set) Len() int {
	return len(s.fields)
}

func (s *Set) put(field string, d *Descriptor) bool {
	old, exists := s.items[field]
	if d == nil {
		if !exists {
			return false
		}
		delete(s.items, field)
		for i, f := range s.fields {
			if f == field {
				s.fields = append(s.fields[:i], s.fields[i+1:]...)
				break
			}
		}
		return true
	}
	if exists && old.Equal(*d) {
		return false
	}
	if !exists {
		s.fields = append(s.fields, field)
	}
	s.items[field] = *d
	return true
}

func (s *Set) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
