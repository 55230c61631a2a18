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

	"github.com/erigontech/erigon-lib/common"
)

// refPair is one (nibble key, raw leaf value) pair fed to referenceRoot.
type refPair struct {
	key Nibbles
	val []byte
}

// referenceRoot computes an MPT root directly from a (key, value) set by
// plain top-down recursion over the sorted keys, splitting on the longest
// shared nibble prefix at each step. It shares rlp_node.go's low-level byte
// encoders with HashBuilder (those are generic RLP primitives, not where
// the builder's bug lived) but none of HashBuilder's incremental
// insert/split machinery, so it cannot reproduce a defect specific to that
// machinery — it exists to check HashBuilder's output independently, not to
// mirror how HashBuilder gets there.
func referenceRoot(pairs []refPair) common.Hash {
	if len(pairs) == 0 {
		return common.EmptyRootHash
	}
	sorted := make([]refPair, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].key.Less(sorted[j].key) })
	return common.Keccak256(referenceEncode(sorted, 0))
}

// referenceRef computes the child reference (inlined or hashed, decided
// exactly once) for the subtree covering pairs from nibble offset pos.
func referenceRef(pairs []refPair, pos int) ref {
	return refFromEncoding(referenceEncode(pairs, pos))
}

// referenceEncode returns the raw RLP encoding of the node covering pairs
// from nibble offset pos: a leaf if only one pair remains, else an
// extension over the longest common prefix, else a 16-way branch split on
// the next nibble.
func referenceEncode(pairs []refPair, pos int) []byte {
	if len(pairs) == 1 {
		return encodeLeafOrExtension(pairs[0].key[pos:], true, encodeBytes(pairs[0].val))
	}

	prefixLen := 0
	for pos+prefixLen < len(pairs[0].key) {
		nb := pairs[0].key[pos+prefixLen]
		matches := true
		for _, p := range pairs[1:] {
			if pos+prefixLen >= len(p.key) || p.key[pos+prefixLen] != nb {
				matches = false
				break
			}
		}
		if !matches {
			break
		}
		prefixLen++
	}

	if prefixLen > 0 {
		childRef := referenceRef(pairs, pos+prefixLen)
		return encodeLeafOrExtension(pairs[0].key[pos:pos+prefixLen], false, childRef.rlpBytes())
	}

	var groups [16][]refPair
	for _, p := range pairs {
		nb := p.key[pos]
		groups[nb] = append(groups[nb], p)
	}
	var refs [16]ref
	for i := 0; i < 16; i++ {
		if len(groups[i]) == 0 {
			continue
		}
		refs[i] = referenceRef(groups[i], pos+1)
	}
	return encodeBranch(refs)
}
