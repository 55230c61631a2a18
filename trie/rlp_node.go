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
	"github.com/erigontech/erigon-lib/common"
)

// compactEncode implements the hex-prefix ("compact") encoding from the
// Yellow Paper: the high nibble of the first byte carries two flag bits
// (oddness of length, leaf-or-not); the low nibble holds the first nibble
// when the remainder is odd. {0x0,0x1,0x2,0x3} map to
// {extension-even, extension-odd, leaf-even, leaf-odd}.
func compactEncode(nibbles Nibbles, leaf bool) []byte {
	odd := len(nibbles) % 2
	var first byte
	if leaf {
		first = 2
	}
	first += byte(odd)

	buf := make([]byte, len(nibbles)/2+1)
	buf[0] = first << 4
	i := 0
	if odd == 1 {
		buf[0] |= nibbles[0]
		i = 1
	}
	for ; i < len(nibbles); i += 2 {
		buf[1+i/2] = nibbles[i]<<4 | nibbles[i+1]
	}
	return buf
}

// ref is a child reference as it appears inside a parent's RLP list: either
// the child's own RLP (when that encoding is below 32 bytes — "inlined")
// or its 32-byte keccak hash.
type ref struct {
	inline []byte // non-nil if inlined
	hash   common.Hash
	isHash bool
}

func refFromEncoding(encoded []byte) ref {
	if len(encoded) < 32 {
		return ref{inline: encoded}
	}
	return ref{hash: common.Keccak256(encoded), isHash: true}
}

// rlpBytes returns the RLP item for this reference as it belongs inside a
// parent list: the inline encoding verbatim, or the 32-byte hash as an RLP
// byte string, or the empty string item for an absent child.
func (r ref) rlpBytes() []byte {
	if r.inline != nil {
		return r.inline
	}
	if r.isHash {
		return encodeBytes(r.hash[:])
	}
	return []byte{0x80}
}

// --- minimal RLP primitive encoder for trie structure nodes only ---
//
// Account leaf RLP is delegated to github.com/ethereum/go-ethereum/rlp (see
// erigon-lib/types/accounts). A storage slot's leaf payload is its trimmed
// value bytes as-is (see storage_root.go), so the only RLP around it is the
// encodeBytes string every leaf value gets. Beyond that, this file only
// encodes the node shapes spec.md §4.6 mandates bit-exactly:
// leaf/extension two-item lists and the 17-item branch list.

func encodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(encodeLength(0x80, len(b)), b...)
}

func encodeLength(offset byte, n int) []byte {
	if n < 56 {
		return []byte{offset + byte(n)}
	}
	lenBytes := uintToMinimalBytes(uint64(n))
	out := make([]byte, 0, len(lenBytes)+1)
	out = append(out, offset+55+byte(len(lenBytes)))
	out = append(out, lenBytes...)
	return out
}

func uintToMinimalBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	i := 8
	for v > 0 {
		i--
		buf[i] = byte(v)
		v >>= 8
	}
	return buf[i:]
}

// encodeList wraps already RLP-encoded items in a list header.
func encodeList(items ...[]byte) []byte {
	total := 0
	for _, it := range items {
		total += len(it)
	}
	out := encodeLength(0xc0, total)
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

// encodeLeafOrExtension builds the 2-item [compact(path), value] RLP list
// used for both leaf nodes (leaf=true, value = leaf payload) and extension
// nodes (leaf=false, value = child ref bytes).
func encodeLeafOrExtension(path Nibbles, leaf bool, valueItem []byte) []byte {
	keyItem := encodeBytes(compactEncode(path, leaf))
	return encodeList(keyItem, valueItem)
}

// encodeBranch builds the 17-item [c0..c15, value] RLP list. value is
// always empty for state/storage tries (no values terminate on branches).
func encodeBranch(children [16]ref) []byte {
	items := make([][]byte, 0, 17)
	for i := 0; i < 16; i++ {
		items = append(items, children[i].rlpBytes())
	}
	items = append(items, []byte{0x80})
	return encodeList(items...)
}
