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
	"github.com/erigontech/erigon-lib/types/accounts"
	"github.com/holiman/uint256"
)

// AccountNodeItem is what AccountNodeIter yields: either a cached subtree
// (Branch) or a resolved account leaf, ready for the state root coordinator
// to feed into its hash builder.
type AccountNodeItem struct {
	IsBranch bool

	BranchPath Nibbles
	BranchHash common.Hash
	HasTree    bool

	HashedAddress common.Hash
	Account       *accounts.Account
}

// AccountNodeIter merges a TrieWalker over AccountsTrie with a raw scan of
// HashedAccount wherever the walker falls through to leaf level, producing
// one ordered stream the state root coordinator consumes without knowing
// which source a given key came from.
type AccountNodeIter struct {
	walker *TrieWalker
	hashed *HashedAccountCursor

	rawPrefix Nibbles // bounds the current leaf-level run
	inRaw     bool
}

// NewAccountNodeIter constructs the account-level iterator.
func NewAccountNodeIter(cursor trieCursorSeeker, hashed *HashedAccountCursor, changed *PrefixSet, resume []*walkFrame) *AccountNodeIter {
	return &AccountNodeIter{walker: NewTrieWalker(cursor, changed, resume), hashed: hashed}
}

// Snapshot exposes the underlying walker's frame stack for suspension.
func (it *AccountNodeIter) Snapshot() []*walkFrame { return it.walker.Snapshot() }

// Next returns the next item in ascending hashed-address order, or
// ok=false at end of trie.
func (it *AccountNodeIter) Next() (AccountNodeItem, bool, error) {
	if it.inRaw {
		k, acc, found, err := it.hashed.Next()
		if err != nil {
			return AccountNodeItem{}, false, err
		}
		if found && UnpackNibbles(k.Bytes()).HasPrefix(it.rawPrefix) {
			return AccountNodeItem{HashedAddress: k, Account: acc}, true, nil
		}
		it.inRaw = false
	}

	wi, ok, err := it.walker.Next()
	if err != nil {
		return AccountNodeItem{}, false, err
	}
	if !ok {
		return AccountNodeItem{}, false, nil
	}
	if wi.IsBranch {
		return AccountNodeItem{IsBranch: true, BranchPath: wi.BranchPath, BranchHash: wi.BranchHash, HasTree: wi.HasTree}, true, nil
	}

	it.rawPrefix = wi.LeafKey
	k, acc, found, err := it.hashed.Seek(wi.LeafKey)
	if err != nil {
		return AccountNodeItem{}, false, err
	}
	if !found || !UnpackNibbles(k.Bytes()).HasPrefix(it.rawPrefix) {
		return it.Next()
	}
	it.inRaw = true
	return AccountNodeItem{HashedAddress: k, Account: acc}, true, nil
}

// StorageNodeItem is StorageNodeIter's yield type, symmetric with
// AccountNodeItem at the slot level.
type StorageNodeItem struct {
	IsBranch bool

	BranchPath Nibbles
	BranchHash common.Hash
	HasTree    bool

	SlotHash common.Hash
	Value    *uint256.Int
}

// StorageNodeIter is AccountNodeIter's per-account counterpart, merging a
// TrieWalker over one account's StoragesTrie sub-trie with a raw scan of
// its HashedStorage slots.
type StorageNodeIter struct {
	walker *TrieWalker
	hashed *HashedStorageCursor

	rawPrefix Nibbles
	inRaw     bool
}

// NewStorageNodeIter constructs the storage-level iterator for one account.
func NewStorageNodeIter(cursor trieCursorSeeker, hashed *HashedStorageCursor, changed *PrefixSet, resume []*walkFrame) *StorageNodeIter {
	return &StorageNodeIter{walker: NewTrieWalker(cursor, changed, resume), hashed: hashed}
}

func (it *StorageNodeIter) Snapshot() []*walkFrame { return it.walker.Snapshot() }

// Next returns the next item in ascending slot-hash order, or ok=false at
// end of this account's storage trie.
func (it *StorageNodeIter) Next() (StorageNodeItem, bool, error) {
	if it.inRaw {
		k, v, found, err := it.hashed.Next()
		if err != nil {
			return StorageNodeItem{}, false, err
		}
		if found && UnpackNibbles(k.Bytes()).HasPrefix(it.rawPrefix) {
			return StorageNodeItem{SlotHash: k, Value: v}, true, nil
		}
		it.inRaw = false
	}

	wi, ok, err := it.walker.Next()
	if err != nil {
		return StorageNodeItem{}, false, err
	}
	if !ok {
		return StorageNodeItem{}, false, nil
	}
	if wi.IsBranch {
		return StorageNodeItem{IsBranch: true, BranchPath: wi.BranchPath, BranchHash: wi.BranchHash, HasTree: wi.HasTree}, true, nil
	}

	it.rawPrefix = wi.LeafKey
	k, v, found, err := it.hashed.Seek(wi.LeafKey)
	if err != nil {
		return StorageNodeItem{}, false, err
	}
	if !found || !UnpackNibbles(k.Bytes()).HasPrefix(it.rawPrefix) {
		return it.Next()
	}
	it.inRaw = true
	return StorageNodeItem{SlotHash: k, Value: v}, true, nil
}
