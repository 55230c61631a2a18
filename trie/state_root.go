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
	"math"

	"github.com/erigontech/erigon-lib/common"
	"github.com/erigontech/erigon-lib/kv"
	"github.com/erigontech/erigon-lib/types/accounts"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// noThreshold disables cooperative suspension: root_with_progress will
// never return Progress, matching the source's with_no_threshold.
const noThreshold = math.MaxUint64

// StateRoot computes (or incrementally recomputes) the world-state account
// trie root, recursing into each touched account's storage root along the
// way. Configure it with the With* builder methods, then call one of
// Root/RootWithUpdates/RootWithProgress.
type StateRoot struct {
	tx                kv.Tx
	cursors           HashedCursorFactory
	changedAccounts    *PrefixSet
	changedStorage     map[common.Hash]*PrefixSet
	destroyedAccounts  map[common.Hash]struct{}
	threshold          uint64
	intermediate       *IntermediateStateRootState
	logger             *zap.Logger
}

// NewStateRoot returns a StateRoot with no changed-prefix restriction (a
// full rebuild) and no suspension threshold.
func NewStateRoot(tx kv.Tx) *StateRoot {
	return &StateRoot{
		tx:              tx,
		cursors:         newTxHashedCursorFactory(tx),
		changedAccounts: emptyPrefixSet,
		changedStorage:  map[common.Hash]*PrefixSet{},
		threshold:       noThreshold,
	}
}

// WithHashedCursorFactory overrides the source of hashed account/storage
// cursors, e.g. to interpose an in-memory overlay of uncommitted state ahead
// of the on-disk tables. Defaults to reading directly from tx.
func (s *StateRoot) WithHashedCursorFactory(f HashedCursorFactory) *StateRoot {
	s.cursors = f
	return s
}

func (s *StateRoot) WithChangedAccountPrefixes(p *PrefixSet) *StateRoot {
	s.changedAccounts = p
	return s
}

func (s *StateRoot) WithChangedStoragePrefixes(m map[common.Hash]*PrefixSet) *StateRoot {
	s.changedStorage = m
	return s
}

func (s *StateRoot) WithDestroyedAccounts(addrs map[common.Hash]struct{}) *StateRoot {
	s.destroyedAccounts = addrs
	return s
}

func (s *StateRoot) WithThreshold(t uint64) *StateRoot {
	s.threshold = t
	return s
}

func (s *StateRoot) WithNoThreshold() *StateRoot {
	s.threshold = noThreshold
	return s
}

func (s *StateRoot) WithIntermediateState(state *IntermediateStateRootState) *StateRoot {
	s.intermediate = state
	return s
}

func (s *StateRoot) WithLogger(logger *zap.Logger) *StateRoot {
	s.logger = logger
	return s
}

func (s *StateRoot) storagePrefixesFor(hashedAddr common.Hash) *PrefixSet {
	if p, ok := s.changedStorage[hashedAddr]; ok {
		return p
	}
	return emptyPrefixSet
}

// Root returns just the account trie root hash.
func (s *StateRoot) Root() (common.Hash, error) {
	progress, err := s.calculate(false, noThreshold)
	if err != nil {
		return common.Hash{}, err
	}
	return progress.Root, nil
}

// RootWithUpdates returns the account trie root and the full set of
// accumulated trie updates (account trie and every touched storage trie).
func (s *StateRoot) RootWithUpdates() (common.Hash, *TrieUpdates, error) {
	progress, err := s.calculate(true, noThreshold)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return progress.Root, progress.Updates, nil
}

// RootWithProgress runs the computation under s's configured threshold,
// returning either a Complete result or a Progress snapshot for the caller
// to resume later via WithIntermediateState.
func (s *StateRoot) RootWithProgress() (StateRootProgress, error) {
	return s.calculate(true, s.threshold)
}

func (s *StateRoot) calculate(retain bool, threshold uint64) (StateRootProgress, error) {
	trieCursor, err := NewAccountTrieCursor(s.tx)
	if err != nil {
		return StateRootProgress{}, err
	}
	defer trieCursor.Close()

	hashedCursor, err := s.cursors.HashedAccountCursor()
	if err != nil {
		return StateRootProgress{}, err
	}
	defer hashedCursor.Close()

	var resumeStack []*walkFrame
	var walked uint64
	updates := NewTrieUpdates()
	if s.intermediate != nil {
		resumeStack = s.intermediate.AccountStack
	}

	keyer := func(path Nibbles) TrieKey { return TrieKey{Kind: AccountNode, Path: path} }
	builder := NewHashBuilder(retain, updates, keyer)

	iter := NewAccountNodeIter(trieCursor, hashedCursor, s.changedAccounts, resumeStack)

	for {
		item, ok, err := iter.Next()
		if err != nil {
			return StateRootProgress{}, errors.Wrap(ErrStorageAccess, err.Error())
		}
		if !ok {
			break
		}
		walked++

		if item.IsBranch {
			builder.AddBranch(item.BranchPath, item.BranchHash, item.HasTree)
		} else {
			if err := s.visitAccountLeaf(builder, updates, retain, item.HashedAddress, item.Account); err != nil {
				return StateRootProgress{}, err
			}
		}

		if retain && threshold != noThreshold {
			pending := uint64(updates.Len())
			if pending >= threshold {
				return StateRootProgress{
					Complete: false,
					Snapshot: &IntermediateStateRootState{
						AccountStack: iter.Snapshot(),
					},
					WalkedCount: walked,
				}, nil
			}
		}
	}

	root := builder.Root()
	if retain {
		for addr := range s.destroyedAccounts {
			updates.Delete(TrieKey{Kind: StorageRootRef, HashedAddress: addr})
		}
	}
	return StateRootProgress{Complete: true, Root: root, Updates: updates, WalkedCount: walked}, nil
}

func (s *StateRoot) visitAccountLeaf(builder *HashBuilder, updates *TrieUpdates, retain bool, hashedAddr common.Hash, acc *accounts.Account) error {
	storageRoot := NewStorageRoot(s.tx, hashedAddr).
		WithChangedPrefixes(s.storagePrefixesFor(hashedAddr)).
		WithHashedCursorFactory(s.cursors).
		WithLogger(s.logger)

	var root common.Hash
	var err error
	if retain {
		var storageUpdates *TrieUpdates
		root, _, storageUpdates, err = storageRoot.RootWithUpdates()
		if err != nil {
			return err
		}
		updates.Merge(storageUpdates)
	} else {
		root, err = storageRoot.Root()
		if err != nil {
			return err
		}
	}

	enc, err := accounts.EncodeRLP(acc, root)
	if err != nil {
		return errors.Wrap(ErrDecoding, err.Error())
	}
	builder.AddLeaf(UnpackNibbles(hashedAddr.Bytes()), enc)
	return nil
}

// IncrementalRoot loads change sets for [fromBlock, toBlock] and returns the
// recomputed account trie root.
func IncrementalRoot(tx kv.Tx, r BlockRange) (common.Hash, error) {
	loaded, err := LoadPrefixSets(tx, r.From, r.To)
	if err != nil {
		return common.Hash{}, err
	}
	return NewStateRoot(tx).
		WithChangedAccountPrefixes(loaded.Accounts).
		WithChangedStoragePrefixes(loaded.Storage).
		Root()
}

// IncrementalRootWithUpdates is IncrementalRoot's updates-returning twin.
func IncrementalRootWithUpdates(tx kv.Tx, r BlockRange) (common.Hash, *TrieUpdates, error) {
	loaded, err := LoadPrefixSets(tx, r.From, r.To)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return NewStateRoot(tx).
		WithChangedAccountPrefixes(loaded.Accounts).
		WithChangedStoragePrefixes(loaded.Storage).
		RootWithUpdates()
}
