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

// AccountTrieCursor reads cached BranchNodeCompact records from the
// AccountsTrie table, keyed directly by nibble path.
type AccountTrieCursor struct {
	c kv.Cursor
}

// NewAccountTrieCursor opens a cursor over the persisted account trie.
func NewAccountTrieCursor(tx kv.Tx) (*AccountTrieCursor, error) {
	c, err := tx.Cursor(kv.TrieOfAccounts)
	if err != nil {
		return nil, errors.Wrap(ErrStorageAccess, err.Error())
	}
	return &AccountTrieCursor{c: c}, nil
}

// Seek returns the branch record at the first persisted path >= prefix, or
// (nil, nil, false, nil) if there is none.
func (a *AccountTrieCursor) Seek(prefix Nibbles) (Nibbles, *BranchNodeCompact, bool, error) {
	k, v, err := a.c.Seek(prefix.Pack())
	if err != nil {
		return nil, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	return decodeTrieEntry(k, v)
}

func (a *AccountTrieCursor) Close() { a.c.Close() }

// StorageTrieCursor reads cached BranchNodeCompact records from the
// StoragesTrie dupsort table, scoped to one hashed address; subkey is the
// nibble path within that account's storage trie. The empty subkey carries
// the synthetic top-level record with RootHash set.
type StorageTrieCursor struct {
	c          kv.CursorDupSort
	packedAddr []byte
}

// NewStorageTrieCursor opens a cursor scoped to hashedAddr's storage trie.
func NewStorageTrieCursor(tx kv.Tx, hashedAddr common.Hash) (*StorageTrieCursor, error) {
	c, err := tx.CursorDupSort(kv.TrieOfStorage)
	if err != nil {
		return nil, errors.Wrap(ErrStorageAccess, err.Error())
	}
	return &StorageTrieCursor{c: c, packedAddr: hashedAddr.Bytes()}, nil
}

// Seek returns the branch record at the first persisted sub-path >= prefix
// within this account's storage trie, or (nil, nil, false, nil) if none.
func (s *StorageTrieCursor) Seek(prefix Nibbles) (Nibbles, *BranchNodeCompact, bool, error) {
	v, err := s.c.SeekBothRange(s.packedAddr, prefix.Pack())
	if err != nil {
		return nil, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	if v == nil {
		return nil, nil, false, nil
	}
	path, entry, ok, err := decodeStorageTrieValue(v)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	return path, entry.BranchNodeCompact, true, nil
}

// Root returns the synthetic top-level record at the empty subkey, if the
// storage trie has been persisted at all for this account.
func (s *StorageTrieCursor) Root() (*BranchNodeCompact, bool, error) {
	v, err := s.c.SeekBothRange(s.packedAddr, nil)
	if err != nil {
		return nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	_, bn, ok, decErr := decodeStorageTrieValue(v)
	if decErr != nil {
		return nil, false, decErr
	}
	if !ok || len(bn.keyPrefix) != 0 {
		return nil, false, nil
	}
	return bn.BranchNodeCompact, true, nil
}

func (s *StorageTrieCursor) Close() { s.c.Close() }

// storageTrieEntry bundles a decoded storage-trie dupsort value with its
// nibble-path subkey, since the subkey is embedded in the value rather than
// the dupsort key (the dupsort key is just the account address).
type storageTrieEntry struct {
	*BranchNodeCompact
	keyPrefix Nibbles
}

func decodeStorageTrieValue(v []byte) (Nibbles, *storageTrieEntry, bool, error) {
	if v == nil {
		return nil, nil, false, nil
	}
	if len(v) < 1 {
		return nil, nil, false, errors.Wrap(ErrDecoding, "storage trie value missing subkey length")
	}
	subkeyLen := int(v[0])
	if len(v) < 1+subkeyLen {
		return nil, nil, false, errors.Wrap(ErrDecoding, "storage trie value truncated subkey")
	}
	subkey := Nibbles(v[1 : 1+subkeyLen])
	bn, err := Decode(v[1+subkeyLen:])
	if err != nil {
		return nil, nil, false, err
	}
	return subkey, &storageTrieEntry{BranchNodeCompact: bn, keyPrefix: subkey}, true, nil
}

func decodeTrieEntry(k, v []byte) (Nibbles, *BranchNodeCompact, bool, error) {
	if k == nil {
		return nil, nil, false, nil
	}
	bn, err := Decode(v)
	if err != nil {
		return nil, nil, false, err
	}
	return UnpackNibbles(k), bn, true, nil
}

// encodeStorageTrieValue is the companion writer TrieUpdates.Flush uses: it
// prefixes the BranchNodeCompact encoding with a length-delimited subkey so
// StorageTrieCursor can recover which nibble path the dupsort sub-value
// belongs to.
func encodeStorageTrieValue(subkey Nibbles, bn *BranchNodeCompact) []byte {
	enc := bn.Encode()
	out := make([]byte, 1+len(subkey)+len(enc))
	out[0] = byte(len(subkey))
	copy(out[1:], subkey)
	copy(out[1+len(subkey):], enc)
	return out
}
