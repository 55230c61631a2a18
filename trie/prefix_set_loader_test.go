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

func TestChunkedBlockRangesCoversExactlyOnce(t *testing.T) {
	ranges := ChunkedBlockRanges(0, 9, 3)
	require.Equal(t, []BlockRange{
		{From: 0, To: 2},
		{From: 3, To: 5},
		{From: 6, To: 8},
		{From: 9, To: 9},
	}, ranges)
}

func TestChunkedBlockRangesExactMultiple(t *testing.T) {
	ranges := ChunkedBlockRanges(10, 19, 5)
	require.Equal(t, []BlockRange{
		{From: 10, To: 14},
		{From: 15, To: 19},
	}, ranges)
}

func TestChunkedBlockRangesSingleBlock(t *testing.T) {
	ranges := ChunkedBlockRanges(5, 5, 100)
	require.Equal(t, []BlockRange{{From: 5, To: 5}}, ranges)
}

func TestChunkedBlockRangesInvalidInputs(t *testing.T) {
	require.Nil(t, ChunkedBlockRanges(5, 4, 10))
	require.Nil(t, ChunkedBlockRanges(0, 10, 0))
}

func TestChunkedBlockRangesAdjacentAndContiguous(t *testing.T) {
	ranges := ChunkedBlockRanges(100, 250, 17)
	for i := 1; i < len(ranges); i++ {
		require.Equal(t, ranges[i-1].To+1, ranges[i].From)
	}
	require.Equal(t, uint64(100), ranges[0].From)
	require.Equal(t, uint64(250), ranges[len(ranges)-1].To)
	for _, r := range ranges {
		require.LessOrEqual(t, r.To-r.From+1, uint64(17))
	}
}
