// Copyright 2021 The Erigon Authors
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

package kv

const (

	//HashedAccounts
	// key - address hash
	// value - account encoded for storage
	// Contains Storage:
	//key - address hash + incarnation + storage key hash
	//value - storage value(common.hash)
	HashedAccountsDeprecated = "HashedAccount"
	HashedStorageDeprecated  = "HashedStorage"
)

const (

	// AccountChangeSet and StorageChangeSet - of block N store values of state before block N changed them.
	// Because values "after" change stored in PlainState.
	// Logical format:
	//
	//	key - blockNum_u64 + key_in_plain_state
	//	value - value_in_plain_state_before_blockNum_changes
	//
	// Example: If block N changed account A from value X to Y. Then:
	//
	//	AccountChangeSet has record: bigEndian(N) + A -> X
	//	PlainState has record: A -> Y
	//
	// Both buckets are DupSort-ed and have physical format:
	// AccountChangeSet:
	//
	//	key - blockNum_u64
	//	value - address + account(encoded)
	//
	// StorageChangeSet:
	//
	//	key - blockNum_u64 + address + incarnation_u64
	//	value - plain_storage_key + value
	AccountChangeSetDeprecated = "AccountChangeSet"
	StorageChangeSetDeprecated = "StorageChangeSet"
)

const (
	// TrieOfAccounts and TrieOfStorage
	// hasState,groups - mark prefixes existing in hashed_account table
	// hasTree - mark prefixes existing in trie_account table (not related with branchNodes)
	// hasHash - mark prefixes which hashes are saved in current trie_account record (actually only hashes of branchNodes can be saved)
	//
	// Invariants:
	// - hasTree is subset of hasState
	// - hasHash is subset of hasState
	// - first level in account_trie always exists if hasState>0
	// - TrieStorage record of account.root (length=40) must have +1 hash - it's account.root
	// - each record in TrieAccount table must have parent (may be not direct) and this parent must have correct bit in hasTree bitmap
	// - if hasState has bit - then HashedAccount table must have record according to this bit
	// - each TrieAccount record must cover some state (means hasState is always > 0)
	// - TrieAccount records with length=1 can satisfy (hasBranch==0&&hasHash==0) condition
	// - Other records in TrieAccount and TrieStorage must (hasTree!=0 || hasHash!=0)
	TrieOfAccounts = "TrieAccount"
	TrieOfStorage  = "TrieStorage"
)
