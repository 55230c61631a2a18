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
	"github.com/erigontech/erigon-lib/types/accounts"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// HashedAccountCursor walks the HashedAccount table in ascending hashed-key
// order, the leaf stream the account node iterator merges against the
// account trie cursor's branch records.
type HashedAccountCursor struct {
	c kv.Cursor
}

// NewHashedAccountCursor opens a cursor over the hashed account table.
func NewHashedAccountCursor(tx kv.Tx) (*HashedAccountCursor, error) {
	c, err := tx.Cursor(kv.HashedAccountsDeprecated)
	if err != nil {
		return nil, errors.Wrap(ErrStorageAccess, err.Error())
	}
	return &HashedAccountCursor{c: c}, nil
}

// Seek positions at the first hashed address >= key, returning it decoded,
// or (zero hash, nil, false, nil) at end of table.
func (h *HashedAccountCursor) Seek(key Nibbles) (common.Hash, *accounts.Account, bool, error) {
	k, v, err := h.c.Seek(key.Pack())
	if err != nil {
		return common.Hash{}, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	if k == nil {
		return common.Hash{}, nil, false, nil
	}
	acc, err := decodeHashedAccount(v)
	if err != nil {
		return common.Hash{}, nil, false, err
	}
	return common.BytesToHash(k), acc, true, nil
}

// Next advances to the next hashed address.
func (h *HashedAccountCursor) Next() (common.Hash, *accounts.Account, bool, error) {
	k, v, err := h.c.Next()
	if err != nil {
		return common.Hash{}, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	if k == nil {
		return common.Hash{}, nil, false, nil
	}
	acc, err := decodeHashedAccount(v)
	if err != nil {
		return common.Hash{}, nil, false, err
	}
	return common.BytesToHash(k), acc, true, nil
}

func (h *HashedAccountCursor) Close() { h.c.Close() }

func decodeHashedAccount(v []byte) (*accounts.Account, error) {
	acc := &accounts.Account{}
	if err := accounts.Decode(v, acc); err != nil {
		return nil, errors.Wrap(ErrDecoding, "hashed account: "+err.Error())
	}
	return acc, nil
}

// HashedStorageCursor walks one account's storage slots in ascending
// hashed-slot order within the HashedStorage dupsort table.
type HashedStorageCursor struct {
	c           kv.CursorDupSort
	hashedAddr  common.Hash
	packedAddr  []byte
}

// NewHashedStorageCursor opens a cursor scoped to hashedAddr's storage.
func NewHashedStorageCursor(tx kv.Tx, hashedAddr common.Hash) (*HashedStorageCursor, error) {
	c, err := tx.CursorDupSort(kv.HashedStorageDeprecated)
	if err != nil {
		return nil, errors.Wrap(ErrStorageAccess, err.Error())
	}
	return &HashedStorageCursor{c: c, hashedAddr: hashedAddr, packedAddr: hashedAddr.Bytes()}, nil
}

// Seek positions at the first slot hash >= key within this account's
// storage, returning it decoded, or (zero hash, nil, false, nil) if none
// remain.
func (h *HashedStorageCursor) Seek(key Nibbles) (common.Hash, *uint256.Int, bool, error) {
	v, err := h.c.SeekBothRange(h.packedAddr, key.Pack())
	if err != nil {
		return common.Hash{}, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	return h.decodeDupValue(v)
}

// First positions at the first slot of this account's storage.
func (h *HashedStorageCursor) First() (common.Hash, *uint256.Int, bool, error) {
	k, v, err := h.c.SeekExact(h.packedAddr)
	if err != nil {
		return common.Hash{}, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	if k == nil {
		return common.Hash{}, nil, false, nil
	}
	return h.decodeDupValue(v)
}

// Next advances to the next slot of this account's storage.
func (h *HashedStorageCursor) Next() (common.Hash, *uint256.Int, bool, error) {
	k, v, err := h.c.NextDup()
	if err != nil {
		return common.Hash{}, nil, false, errors.Wrap(ErrStorageAccess, err.Error())
	}
	if k == nil {
		return common.Hash{}, nil, false, nil
	}
	return h.decodeDupValue(v)
}

func (h *HashedStorageCursor) decodeDupValue(v []byte) (common.Hash, *uint256.Int, bool, error) {
	if v == nil || len(v) < common.HashLength {
		return common.Hash{}, nil, false, nil
	}
	slotHash := common.BytesToHash(v[:common.HashLength])
	val := new(uint256.Int).SetBytes(v[common.HashLength:])
	return slotHash, val, true, nil
}

func (h *HashedStorageCursor) Close() { h.c.Close() }
