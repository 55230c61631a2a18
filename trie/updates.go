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
)

// TrieOp is what happened to a persisted trie record during a root
// computation.
type TrieOp int

const (
	// TrieOpUpdate means the record's BranchNodeCompact should be
	// (re)written.
	TrieOpUpdate TrieOp = iota
	// TrieOpDelete means the record should be removed.
	TrieOpDelete
)

// TrieKeyKind discriminates the three places a TrieKey can point at.
type TrieKeyKind int

const (
	// AccountNode addresses a branch record in AccountsTrie at Path.
	AccountNode TrieKeyKind = iota
	// StorageRootRef addresses the synthetic top-level record (the empty
	// path) of one account's storage trie, identified by HashedAddress.
	StorageRootRef
	// StorageNode addresses a branch record within one account's storage
	// trie, at HashedAddress/Path.
	StorageNode
)

// TrieKey names one persisted BranchNodeCompact slot.
type TrieKey struct {
	Kind          TrieKeyKind
	HashedAddress common.Hash // unused for AccountNode
	Path          Nibbles     // unused for StorageRootRef
}

// cacheKey is TrieKey's comparable projection: Nibbles is a []byte and
// can't serve as a map key directly, so the accumulator indexes on a
// string of the raw nibble bytes (one byte per nibble) instead.
type cacheKey struct {
	kind TrieKeyKind
	addr common.Hash
	path string
}

func (k TrieKey) cacheKey() cacheKey {
	return cacheKey{kind: k.Kind, addr: k.HashedAddress, path: string(k.Path)}
}

// TrieUpdates accumulates the branch-node deltas produced by a root
// computation, keyed last-write-wins: inserting the same TrieKey twice
// keeps only the most recent TrieOp/value pair, matching a single
// in-memory overlay applied once at Flush time.
type TrieUpdates struct {
	ops    map[cacheKey]TrieOp
	values map[cacheKey]*BranchNodeCompact
	keys   map[cacheKey]TrieKey
	order  []cacheKey // insertion order, for deterministic iteration/tests
}

// NewTrieUpdates returns an empty accumulator.
func NewTrieUpdates() *TrieUpdates {
	return &TrieUpdates{
		ops:    make(map[cacheKey]TrieOp),
		values: make(map[cacheKey]*BranchNodeCompact),
		keys:   make(map[cacheKey]TrieKey),
	}
}

// Update records that key's branch node should be (re)written as bn.
func (u *TrieUpdates) Update(key TrieKey, bn *BranchNodeCompact) {
	ck := key.cacheKey()
	if _, ok := u.keys[ck]; !ok {
		u.order = append(u.order, ck)
	}
	u.keys[ck] = key
	u.ops[ck] = TrieOpUpdate
	u.values[ck] = bn
}

// Delete records that key's branch node should be removed.
func (u *TrieUpdates) Delete(key TrieKey) {
	ck := key.cacheKey()
	if _, ok := u.keys[ck]; !ok {
		u.order = append(u.order, ck)
	}
	u.keys[ck] = key
	u.ops[ck] = TrieOpDelete
	delete(u.values, ck)
}

// Len reports the number of distinct keys with a pending operation.
func (u *TrieUpdates) Len() int { return len(u.order) }

// Merge folds other into u, other's entries winning on key collision (other
// is assumed to be the more recent set of changes — e.g. a storage root's
// updates merged into its enclosing state root's accumulator).
func (u *TrieUpdates) Merge(other *TrieUpdates) {
	if other == nil {
		return
	}
	for _, ck := range other.order {
		key := other.keys[ck]
		switch other.ops[ck] {
		case TrieOpUpdate:
			u.Update(key, other.values[ck])
		case TrieOpDelete:
			u.Delete(key)
		}
	}
}

// Each calls fn once per pending entry, in insertion order.
func (u *TrieUpdates) Each(fn func(key TrieKey, op TrieOp, bn *BranchNodeCompact)) {
	for _, ck := range u.order {
		fn(u.keys[ck], u.ops[ck], u.values[ck])
	}
}

// Flush writes every pending operation to tx: updates are put into the
// appropriate trie table, deletes are removed from it.
func (u *TrieUpdates) Flush(tx kv.RwTx) error {
	var err error
	u.Each(func(key TrieKey, op TrieOp, bn *BranchNodeCompact) {
		if err != nil {
			return
		}
		err = flushOne(tx, key, op, bn)
	})
	return err
}

func flushOne(tx kv.RwTx, key TrieKey, op TrieOp, bn *BranchNodeCompact) error {
	switch key.Kind {
	case AccountNode:
		packed := key.Path.Pack()
		if op == TrieOpDelete {
			return tx.Delete(kv.TrieOfAccounts, packed)
		}
		return tx.Put(kv.TrieOfAccounts, packed, bn.Encode())

	case StorageRootRef:
		return flushStorageEntry(tx, key.HashedAddress, Nibbles{}, op, bn)

	case StorageNode:
		return flushStorageEntry(tx, key.HashedAddress, key.Path, op, bn)

	default:
		return nil
	}
}

func flushStorageEntry(tx kv.RwTx, hashedAddr common.Hash, path Nibbles, op TrieOp, bn *BranchNodeCompact) error {
	c, err := tx.RwCursorDupSort(kv.TrieOfStorage)
	if err != nil {
		return err
	}
	defer c.Close()

	addr := hashedAddr.Bytes()
	if op == TrieOpDelete {
		if v, derr := c.SeekBothRange(addr, encodeSubkeyPrefix(path)); derr == nil && v != nil {
			if subkey, _, ok, _ := decodeStorageTrieValue(v); ok && subkey.Compare(path) == 0 {
				return c.DeleteCurrent()
			}
		}
		return nil
	}
	return c.Put(addr, encodeStorageTrieValue(path, bn))
}

// encodeSubkeyPrefix builds a dupsort seek value carrying just the subkey
// length prefix, so SeekBothRange can land on the matching subkey.
func encodeSubkeyPrefix(path Nibbles) []byte {
	out := make([]byte, 1+len(path))
	out[0] = byte(len(path))
	copy(out[1:], path)
	return out
}
