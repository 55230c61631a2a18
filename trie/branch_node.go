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
	"encoding/binary"
	"math/bits"

	"github.com/erigontech/erigon-lib/common"
	"github.com/pkg/errors"
)

// BranchNodeCompact is the persisted shape of one branch node: which of its
// 16 children exist in the logical trie (state_mask), which of those are
// themselves persisted branch nodes worth descending into rather than
// recomputing (tree_mask), and which children's hashes are carried inline
// here (hash_mask) so a walk can short-circuit without touching the
// database again.
type BranchNodeCompact struct {
	StateMask uint16
	TreeMask  uint16
	HashMask  uint16
	Hashes    []common.Hash // len == popcount(HashMask), in ascending bit order

	// RootHash is set only for the synthetic top-level storage-root record
	// stored at the empty path of a StoragesTrie sub-trie.
	RootHash    common.Hash
	HasRootHash bool
}

// rootHashPresentBit is an out-of-band marker persisted alongside the three
// masks so BranchNodeCompact.Decode knows whether a RootHash field follows.
// Any single bit works as long as encode/decode agree; erigon dedicates the
// high bit of a fourth header word to it.
const rootHashPresentBit = 0x0001

// Validate checks the two structural invariants the spec calls out:
// tree_mask and hash_mask must each be subsets of state_mask, and the
// number of carried hashes must equal popcount(hash_mask).
func (b *BranchNodeCompact) Validate() error {
	if b.TreeMask&^b.StateMask != 0 {
		return errors.Wrap(ErrIntegrity, "tree_mask not a subset of state_mask")
	}
	if b.HashMask&^b.StateMask != 0 {
		return errors.Wrap(ErrIntegrity, "hash_mask not a subset of state_mask")
	}
	if bits.OnesCount16(b.HashMask) != len(b.Hashes) {
		return errors.Wrap(ErrIntegrity, "hash_mask popcount disagrees with hashes length")
	}
	return nil
}

// HasChild reports whether child nibble i exists in the logical trie.
func (b *BranchNodeCompact) HasChild(i int) bool { return b.StateMask&(1<<uint(i)) != 0 }

// HasTreeChild reports whether child i is itself a persisted branch worth
// descending into (as opposed to a leaf or an inlined/absent child).
func (b *BranchNodeCompact) HasTreeChild(i int) bool { return b.TreeMask&(1<<uint(i)) != 0 }

// HashFor returns the carried hash for child i and true, or the zero hash
// and false if child i's hash wasn't retained.
func (b *BranchNodeCompact) HashFor(i int) (common.Hash, bool) {
	if b.HashMask&(1<<uint(i)) == 0 {
		return common.Hash{}, false
	}
	// hashes are stored in ascending bit order; count set bits below i.
	idx := bits.OnesCount16(b.HashMask & ((1 << uint(i)) - 1))
	return b.Hashes[idx], true
}

// Encode serializes b per spec.md §6.4:
// state_mask(2B BE) | tree_mask(2B BE) | hash_mask(2B BE) | presence(2B BE)
// | [root_hash 32B if present] | hashes[popcount(hash_mask)] x 32B.
// The presence word is this engine's chosen encoding of the out-of-band
// root_hash marker; any encoding round-tripping through Decode satisfies
// the format.
func (b *BranchNodeCompact) Encode() []byte {
	presence := uint16(0)
	if b.HasRootHash {
		presence |= rootHashPresentBit
	}

	size := 8
	if b.HasRootHash {
		size += common.HashLength
	}
	size += len(b.Hashes) * common.HashLength

	out := make([]byte, size)
	binary.BigEndian.PutUint16(out[0:2], b.StateMask)
	binary.BigEndian.PutUint16(out[2:4], b.TreeMask)
	binary.BigEndian.PutUint16(out[4:6], b.HashMask)
	binary.BigEndian.PutUint16(out[6:8], presence)
	off := 8
	if b.HasRootHash {
		copy(out[off:off+common.HashLength], b.RootHash[:])
		off += common.HashLength
	}
	for _, h := range b.Hashes {
		copy(out[off:off+common.HashLength], h[:])
		off += common.HashLength
	}
	return out
}

// Decode parses the encoding Encode produces.
func Decode(enc []byte) (*BranchNodeCompact, error) {
	if len(enc) < 8 {
		return nil, errors.Wrap(ErrDecoding, "branch node record too short")
	}
	b := &BranchNodeCompact{
		StateMask: binary.BigEndian.Uint16(enc[0:2]),
		TreeMask:  binary.BigEndian.Uint16(enc[2:4]),
		HashMask:  binary.BigEndian.Uint16(enc[4:6]),
	}
	presence := binary.BigEndian.Uint16(enc[6:8])
	off := 8
	if presence&rootHashPresentBit != 0 {
		if len(enc) < off+common.HashLength {
			return nil, errors.Wrap(ErrDecoding, "branch node record missing root hash")
		}
		b.HasRootHash = true
		b.RootHash = common.BytesToHash(enc[off : off+common.HashLength])
		off += common.HashLength
	}
	n := bits.OnesCount16(b.HashMask)
	if len(enc)-off != n*common.HashLength {
		return nil, errors.Wrap(ErrDecoding, "branch node record hash count mismatch")
	}
	b.Hashes = make([]common.Hash, n)
	for i := 0; i < n; i++ {
		b.Hashes[i] = common.BytesToHash(enc[off : off+common.HashLength])
		off += common.HashLength
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}
