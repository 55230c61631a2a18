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
	"github.com/erigontech/erigon-lib/kv"
	"github.com/pkg/errors"
)

// LoadedPrefixSets holds the account-level and per-account storage-level
// change sets a block range produced, ready to drive a StateRoot walk.
type LoadedPrefixSets struct {
	Accounts *PrefixSet
	// Storage is keyed by the hashed address (32 bytes, as used in the
	// hashed storage table's key prefix).
	Storage map[common.Hash]*PrefixSet
}

// StorageFor returns the frozen storage prefix set for a hashed address, or
// the shared empty set if that account's storage was untouched.
func (l *LoadedPrefixSets) StorageFor(hashedAddr common.Hash) *PrefixSet {
	if l.Storage == nil {
		return emptyPrefixSet
	}
	if s, ok := l.Storage[hashedAddr]; ok {
		return s
	}
	return emptyPrefixSet
}

// LoadPrefixSets scans the account and storage change-set tables for every
// block in [fromBlock, toBlock] and builds the corresponding prefix sets,
// hashing each plain key with keccak256 to land in the same nibble space the
// hashed cursors and trie cursors operate in. The change-set tables store
// plain (unhashed) keys under a block-number-prefixed key, one entry per
// write within the block.
func LoadPrefixSets(tx kv.Tx, fromBlock, toBlock uint64) (*LoadedPrefixSets, error) {
	out := &LoadedPrefixSets{
		Accounts: NewPrefixSetMut().Freeze(),
		Storage:  make(map[common.Hash]*PrefixSet),
	}

	accounts := NewPrefixSetMut()
	storage := make(map[common.Hash]*PrefixSetMut)

	if err := scanAccountChanges(tx, fromBlock, toBlock, func(addr common.Address) {
		accounts.Insert(UnpackNibbles(common.Keccak256(addr[:]).Bytes()))
	}); err != nil {
		return nil, errors.Wrap(err, "loading account change set")
	}

	if err := scanStorageChanges(tx, fromBlock, toBlock, func(addr common.Address, slot common.Hash) {
		hashedAddr := common.Keccak256(addr[:])
		hashedSlot := common.Keccak256(slot[:])
		m, ok := storage[hashedAddr]
		if !ok {
			m = NewPrefixSetMut()
			storage[hashedAddr] = m
		}
		m.Insert(UnpackNibbles(hashedSlot.Bytes()))
	}); err != nil {
		return nil, errors.Wrap(err, "loading storage change set")
	}

	out.Accounts = accounts.Freeze()
	for addr, m := range storage {
		out.Storage[addr] = m.Freeze()
	}
	return out, nil
}

// accountChangeKeyLen is blockNum(8), with address(20) + prior account
// carried as the dupsort sub-value, erigon's AccountChangeSet layout.
const accountChangeKeyLen = 8

// storageChangeKeyLen is blockNum(8) + address(20) + incarnation(8), with
// the plain (unhashed) slot key + prior value carried as the dupsort
// sub-value, erigon's StorageChangeSet layout.
const storageChangeKeyLen = 8 + common.AddressLength + 8

func scanAccountChanges(tx kv.Tx, fromBlock, toBlock uint64, visit func(common.Address)) error {
	c, err := tx.CursorDupSort(kv.AccountChangeSetDeprecated)
	if err != nil {
		return err
	}
	defer c.Close()

	seek := encodeBlockNum(fromBlock)
	for k, v, err := c.Seek(seek); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if len(k) < 8 {
			return errors.Wrap(ErrDecoding, "account change set key too short")
		}
		blockNum := decodeBlockNum(k)
		if blockNum > toBlock {
			break
		}
		if len(k) != accountChangeKeyLen || len(v) < common.AddressLength {
			continue
		}
		// the prior account after the address isn't needed to know which key changed
		visit(common.BytesToAddress(v[:common.AddressLength]))
	}
	return nil
}

func scanStorageChanges(tx kv.Tx, fromBlock, toBlock uint64, visit func(common.Address, common.Hash)) error {
	c, err := tx.CursorDupSort(kv.StorageChangeSetDeprecated)
	if err != nil {
		return err
	}
	defer c.Close()

	seek := encodeBlockNum(fromBlock)
	for k, v, err := c.Seek(seek); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if len(k) < 8 {
			return errors.Wrap(ErrDecoding, "storage change set key too short")
		}
		blockNum := decodeBlockNum(k)
		if blockNum > toBlock {
			break
		}
		if len(k) != storageChangeKeyLen || len(v) < common.HashLength {
			continue
		}
		addr := common.BytesToAddress(k[8 : 8+common.AddressLength])
		slot := common.BytesToHash(v[:common.HashLength])
		visit(addr, slot)
	}
	return nil
}

func encodeBlockNum(n uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}

func decodeBlockNum(k []byte) uint64 {
	var n uint64
	for i := 0; i < 8; i++ {
		n = n<<8 | uint64(k[i])
	}
	return n
}

// BlockRange is a closed interval [From, To] of block numbers.
type BlockRange struct {
	From, To uint64
}

// ChunkedBlockRanges splits [start, end] into consecutive closed ranges of
// at most size blocks each, letting a caller recompute the state root
// incrementally over a long span without loading every change set at once.
// size must be > 0; start must be <= end.
func ChunkedBlockRanges(start, end, size uint64) []BlockRange {
	if size == 0 || start > end {
		return nil
	}
	var out []BlockRange
	for from := start; from <= end; from += size {
		to := from + size - 1
		if to > end {
			to = end
		}
		out = append(out, BlockRange{From: from, To: to})
		if to == end {
			break
		}
	}
	return out
}
