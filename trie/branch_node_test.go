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
	"testing"

	"github.com/erigontech/erigon-lib/common"
	"github.com/stretchr/testify/require"
)

func TestBranchNodeCompactRoundTrip(t *testing.T) {
	bn := &BranchNodeCompact{
		StateMask: 0b1011,
		TreeMask:  0b0001,
		HashMask:  0b1011,
		Hashes: []common.Hash{
			common.Keccak256([]byte("a")),
			common.Keccak256([]byte("b")),
			common.Keccak256([]byte("c")),
		},
	}
	enc := bn.Encode()
	decoded, err := Decode(enc)
	require.NoError(t, err)
	require.Equal(t, bn.StateMask, decoded.StateMask)
	require.Equal(t, bn.TreeMask, decoded.TreeMask)
	require.Equal(t, bn.HashMask, decoded.HashMask)
	require.Equal(t, bn.Hashes, decoded.Hashes)
	require.False(t, decoded.HasRootHash)
}

func TestBranchNodeCompactRoundTripWithRootHash(t *testing.T) {
	bn := &BranchNodeCompact{
		RootHash:    common.Keccak256([]byte("root")),
		HasRootHash: true,
	}
	decoded, err := Decode(bn.Encode())
	require.NoError(t, err)
	require.True(t, decoded.HasRootHash)
	require.Equal(t, bn.RootHash, decoded.RootHash)
	require.Equal(t, uint16(0), decoded.StateMask)
}

func TestBranchNodeCompactValidateRejectsBadSubset(t *testing.T) {
	bn := &BranchNodeCompact{StateMask: 0b0001, TreeMask: 0b0010}
	require.ErrorIs(t, bn.Validate(), ErrIntegrity)
}

func TestBranchNodeCompactValidateRejectsHashCountMismatch(t *testing.T) {
	bn := &BranchNodeCompact{StateMask: 0b0011, HashMask: 0b0011, Hashes: []common.Hash{{}}}
	require.ErrorIs(t, bn.Validate(), ErrIntegrity)
}

func TestBranchNodeCompactHasChildAndHashFor(t *testing.T) {
	h0 := common.Keccak256([]byte("x"))
	h2 := common.Keccak256([]byte("y"))
	bn := &BranchNodeCompact{
		StateMask: 0b0101,
		HashMask:  0b0101,
		Hashes:    []common.Hash{h0, h2},
	}
	require.True(t, bn.HasChild(0))
	require.False(t, bn.HasChild(1))
	require.True(t, bn.HasChild(2))

	h, ok := bn.HashFor(0)
	require.True(t, ok)
	require.Equal(t, h0, h)

	h, ok = bn.HashFor(2)
	require.True(t, ok)
	require.Equal(t, h2, h)

	_, ok = bn.HashFor(1)
	require.False(t, ok)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x01})
	require.ErrorIs(t, err, ErrDecoding)
}
