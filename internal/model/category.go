package model

import "sort"

// Category is a project or tag an item can be a member of.
// BoardID identifies the category's workboard in column placements.
type Category struct {
	Name    string `json:"name"`
	BoardID string `json:"board_id"`
	ID      int64  `json:"id"`
}

// Column is a workboard column.
type Column struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BoardID string `json:"board_id"`
}

// EdgeSet is the set of category ids an item is a member of.
type EdgeSet map[int64]struct{}

// NewEdgeSet builds a set from ids.
func NewEdgeSet(ids ...int64) EdgeSet {
	s := make(EdgeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id into the set.
func (s EdgeSet) Add(id int64) {
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s EdgeSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// HasAll reports whether every id is in the set.
func (s EdgeSet) HasAll(ids []int64) bool {
	for _, id := range ids {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every member of s is in other.
func (s EdgeSet) SubsetOf(other EdgeSet) bool {
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending order.
func (s EdgeSet) Sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
