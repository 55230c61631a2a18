// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package trie

import "sort"

// PrefixSetMut accumulates changed nibble paths (accounts touched, storage
// slots touched) before a walk. It is write-only; call Freeze to obtain the
// queryable, sorted PrefixSet the walker consults.
type PrefixSetMut struct {
	keys []Nibbles
}

// NewPrefixSetMut returns an empty accumulator.
func NewPrefixSetMut() *PrefixSetMut {
	return &PrefixSetMut{}
}

// Insert records a changed key. Duplicate inserts are fine; Freeze dedupes.
func (m *PrefixSetMut) Insert(key Nibbles) {
	m.keys = append(m.keys, key.Clone())
}

// Len reports how many keys have been inserted (before dedup).
func (m *PrefixSetMut) Len() int { return len(m.keys) }

// Freeze sorts and dedupes the accumulated keys, producing a PrefixSet ready
// for the walker's monotone prefix queries.
func (m *PrefixSetMut) Freeze() *PrefixSet {
	keys := make([]Nibbles, len(m.keys))
	copy(keys, m.keys)
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	deduped := keys[:0]
	for i, k := range keys {
		if i > 0 && k.Compare(keys[i-1]) == 0 {
			continue
		}
		deduped = append(deduped, k)
	}
	return &PrefixSet{keys: deduped}
}

// PrefixSet is a frozen, sorted, deduplicated collection of changed nibble
// paths. Callers query it via Contains as they walk the trie in ascending
// key order; the internal cursor only ever moves forward, matching the
// walker's own traversal order, so a full walk costs amortized O(1) per
// query despite the set being arbitrarily large.
type PrefixSet struct {
	keys   []Nibbles
	cursor int // index of the first key not yet known to be < all future queries
}

// emptyPrefixSet is shared by callers that have no changes to report for a
// sub-tree (e.g. an account with untouched storage).
var emptyPrefixSet = &PrefixSet{}

// Contains reports whether any key in the set starts with prefix, advancing
// the internal cursor past keys that can no longer match any subsequent
// (lexicographically larger or equal) query. Queries must be issued in
// non-decreasing prefix order; the walker guarantees this by construction.
func (p *PrefixSet) Contains(prefix Nibbles) bool {
	if p == nil {
		return false
	}
	for p.cursor < len(p.keys) {
		k := p.keys[p.cursor]
		if k.HasPrefix(prefix) {
			return true
		}
		if k.Less(prefix) {
			p.cursor++
			continue
		}
		// k > prefix and doesn't extend it: prefix has no match, but k might
		// still match a later, larger prefix query, so don't advance.
		return false
	}
	return false
}

// Len reports the number of distinct keys in the frozen set.
func (p *PrefixSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}
