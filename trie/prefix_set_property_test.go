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

import (
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// TestPrefixSetContainsMatchesBruteForce checks PrefixSet.Contains against a
// brute-force scan for arbitrary inserted keys and arbitrary query order
// restricted to non-decreasing prefixes, the one invariant Contains requires
// of its caller (the walker visits keys in ascending order by construction).
func TestPrefixSetContainsMatchesBruteForce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "n")
		raw := make([]Nibbles, n)
		for i := range raw {
			length := rapid.IntRange(0, 6).Draw(rt, "len")
			key := make(Nibbles, length)
			for j := range key {
				key[j] = byte(rapid.IntRange(0, 15).Draw(rt, "nibble"))
			}
			raw[i] = key
		}

		mut := NewPrefixSetMut()
		for _, k := range raw {
			mut.Insert(k)
		}
		frozen := mut.Freeze()

		queries := make([]Nibbles, len(raw))
		copy(queries, raw)
		sort.Slice(queries, func(i, j int) bool { return queries[i].Less(queries[j]) })

		for _, q := range queries {
			want := false
			for _, k := range raw {
				if k.HasPrefix(q) {
					want = true
					break
				}
			}
			got := frozen.Contains(q)
			if got != want {
				rt.Fatalf("Contains(%v) = %v, want %v (keys=%v)", q, got, want, raw)
			}
		}
	})
}
