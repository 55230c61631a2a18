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
	"go.uber.org/zap"
)

// StorageRoot computes one account's storage trie root from its hashed
// storage slots and any cached StoragesTrie branch records, optionally
// restricting the rebuild to a prefix set of changed slots.
type StorageRoot struct {
	tx            kv.Tx
	cursors       HashedCursorFactory
	hashedAddress common.Hash
	changed       *PrefixSet
	logger        *zap.Logger
}

// NewStorageRoot returns a StorageRoot scoped to hashedAddress with no
// changed-prefix restriction (a full rebuild).
func NewStorageRoot(tx kv.Tx, hashedAddress common.Hash) *StorageRoot {
	return &StorageRoot{
		tx:            tx,
		cursors:       newTxHashedCursorFactory(tx),
		hashedAddress: hashedAddress,
		changed:       emptyPrefixSet,
	}
}

// WithHashedCursorFactory overrides the source of hashed storage cursors;
// see StateRoot.WithHashedCursorFactory.
func (s *StorageRoot) WithHashedCursorFactory(f HashedCursorFactory) *StorageRoot {
	s.cursors = f
	return s
}

// WithChangedPrefixes restricts the rebuild to slots whose hashed path is
// covered by prefixes; subtrees outside it are reused via cached hashes.
func (s *StorageRoot) WithChangedPrefixes(prefixes *PrefixSet) *StorageRoot {
	s.changed = prefixes
	return s
}

// WithLogger attaches an optional structured logger; nil (the default)
// disables logging entirely.
func (s *StorageRoot) WithLogger(logger *zap.Logger) *StorageRoot {
	s.logger = logger
	return s
}

// Root returns just the storage root hash.
func (s *StorageRoot) Root() (common.Hash, error) {
	root, _, _, err := s.calculate(false)
	return root, err
}

// RootWithUpdates returns the storage root, the number of leaves/branches
// walked, and the accumulated trie updates for this account's storage
// sub-trie.
func (s *StorageRoot) RootWithUpdates() (common.Hash, uint64, *TrieUpdates, error) {
	return s.calculate(true)
}

func (s *StorageRoot) calculate(retain bool) (common.Hash, uint64, *TrieUpdates, error) {
	hashedCursor, err := s.cursors.HashedStorageCursor(s.hashedAddress)
	if err != nil {
		return common.Hash{}, 0, nil, err
	}
	defer hashedCursor.Close()

	if _, _, found, err := hashedCursor.First(); err != nil {
		return common.Hash{}, 0, nil, err
	} else if !found {
		updates := NewTrieUpdates()
		updates.Delete(TrieKey{Kind: StorageRootRef, HashedAddress: s.hashedAddress})
		logDebug(s.logger, "empty storage, short-circuiting", zap.Stringer("address", s.hashedAddress))
		return common.EmptyRootHash, 0, updates, nil
	}

	trieCursor, err := NewStorageTrieCursor(s.tx, s.hashedAddress)
	if err != nil {
		return common.Hash{}, 0, nil, err
	}
	defer trieCursor.Close()

	hashedCursor2, err := s.cursors.HashedStorageCursor(s.hashedAddress)
	if err != nil {
		return common.Hash{}, 0, nil, err
	}
	defer hashedCursor2.Close()

	updates := NewTrieUpdates()
	keyer := func(path Nibbles) TrieKey {
		return TrieKey{Kind: StorageNode, HashedAddress: s.hashedAddress, Path: path}
	}
	builder := NewHashBuilder(retain, updates, keyer)

	iter := NewStorageNodeIter(trieCursor, hashedCursor2, s.changed, nil)
	var walked uint64
	for {
		item, ok, err := iter.Next()
		if err != nil {
			return common.Hash{}, 0, nil, errors.Wrap(ErrStorageAccess, err.Error())
		}
		if !ok {
			break
		}
		walked++
		if item.IsBranch {
			builder.AddBranch(item.BranchPath, item.BranchHash, item.HasTree)
			continue
		}
		if item.Value == nil {
			continue
		}
		builder.AddLeaf(UnpackNibbles(item.SlotHash.Bytes()), item.Value.Bytes())
	}

	root := builder.Root()
	if retain {
		updates.Update(TrieKey{Kind: StorageRootRef, HashedAddress: s.hashedAddress}, &BranchNodeCompact{RootHash: root, HasRootHash: true})
	}
	return root, walked, updates, nil
}
