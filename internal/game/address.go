package game

import (
	"encoding/json"
	"slices"
)

// Address identifies a participant.
type Address string

// AddressSet is an ordered set of addresses. The zero value is an empty set.
// Iteration is always in ascending order so that every derived outcome is
// deterministic.
type AddressSet struct {
	items []Address
}

// NewAddressSet builds a set, dropping duplicates.
func NewAddressSet(addrs ...Address) AddressSet {
	var s AddressSet
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

func (s *AddressSet) search(a Address) (int, bool) {
	return slices.BinarySearch(s.items, a)
}

// Add inserts a and reports whether it was absent.
func (s *AddressSet) Add(a Address) bool {
	i, found := s.search(a)
	if found {
		return false
	}
	s.items = slices.Insert(s.items, i, a)
	return true
}

// Remove deletes a and reports whether it was present.
func (s *AddressSet) Remove(a Address) bool {
	i, found := s.search(a)
	if !found {
		return false
	}
	s.items = slices.Delete(s.items, i, i+1)
	return true
}

func (s AddressSet) Contains(a Address) bool {
	_, found := s.search(a)
	return found
}

func (s AddressSet) Len() int { return len(s.items) }

func (s AddressSet) IsEmpty() bool { return len(s.items) == 0 }

// Slice returns a copy of the members in ascending order.
func (s AddressSet) Slice() []Address {
	return slices.Clone(s.items)
}

// Clone returns an independent copy.
func (s AddressSet) Clone() AddressSet {
	return AddressSet{items: slices.Clone(s.items)}
}

// Union returns the members of s and o.
func (s AddressSet) Union(o AddressSet) AddressSet {
	out := s.Clone()
	for _, a := range o.items {
		out.Add(a)
	}
	return out
}

// Intersects reports whether s and o share a member.
func (s AddressSet) Intersects(o AddressSet) bool {
	for _, a := range o.items {
		if s.Contains(a) {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same members.
func (s AddressSet) Equal(o AddressSet) bool {
	return slices.Equal(s.items, o.items)
}

// First returns the smallest member.
func (s AddressSet) First() (Address, bool) {
	if len(s.items) == 0 {
		return "", false
	}
	return s.items[0], true
}

func (s AddressSet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *AddressSet) UnmarshalJSON(data []byte) error {
	var addrs []Address
	if err := json.Unmarshal(data, &addrs); err != nil {
		return err
	}
	*s = NewAddressSet(addrs...)
	return nil
}
