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

	"github.com/stretchr/testify/require"
)

func TestUnpackPackRoundTrip(t *testing.T) {
	for _, packed := range [][]byte{
		{},
		{0x01},
		{0xab, 0xcd},
		{0x12, 0x34, 0x56},
	} {
		n := UnpackNibbles(packed)
		require.Equal(t, len(packed)*2, len(n))
		require.Equal(t, packed, n.Pack())
	}
}

func TestUnpackNibbleOrder(t *testing.T) {
	n := UnpackNibbles([]byte{0xab})
	require.Equal(t, Nibbles{0xa, 0xb}, n)
}

func TestPackOddLengthPadsLowZeroNibble(t *testing.T) {
	n := Nibbles{0x1, 0x2, 0x3}
	require.Equal(t, []byte{0x12, 0x30}, n.Pack())
}

func TestCommonPrefixLen(t *testing.T) {
	require.Equal(t, 3, CommonPrefixLen(Nibbles{1, 2, 3, 4}, Nibbles{1, 2, 3, 9}))
	require.Equal(t, 0, CommonPrefixLen(Nibbles{1}, Nibbles{2}))
	require.Equal(t, 2, CommonPrefixLen(Nibbles{1, 2}, Nibbles{1, 2, 3}))
}

func TestHasPrefix(t *testing.T) {
	require.True(t, Nibbles{1, 2, 3}.HasPrefix(Nibbles{1, 2}))
	require.True(t, Nibbles{1, 2, 3}.HasPrefix(Nibbles{}))
	require.False(t, Nibbles{1, 2, 3}.HasPrefix(Nibbles{1, 3}))
	require.False(t, Nibbles{1}.HasPrefix(Nibbles{1, 2}))
}

func TestOrdering(t *testing.T) {
	require.True(t, Nibbles{1, 2}.Less(Nibbles{1, 3}))
	require.True(t, Nibbles{1}.Less(Nibbles{1, 0}))
	require.False(t, Nibbles{1, 3}.Less(Nibbles{1, 2}))
}

func TestAppendDoesNotAliasOriginal(t *testing.T) {
	base := Nibbles{1, 2}
	extended := base.Append(3, 4)
	require.Equal(t, Nibbles{1, 2, 3, 4}, extended)
	require.Equal(t, Nibbles{1, 2}, base)
}
