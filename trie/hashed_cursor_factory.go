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

// HashedCursorFactory decouples StateRoot/StorageRoot from a bare kv.Tx: an
// upper layer can interpose an in-memory overlay of uncommitted state (a
// pending block's writes not yet flushed to the hashed tables) by supplying
// its own factory, without StateRoot/StorageRoot knowing the difference.
// txHashedCursorFactory, the default, just opens cursors on the underlying
// transaction.
type HashedCursorFactory interface {
	HashedAccountCursor() (*HashedAccountCursor, error)
	HashedStorageCursor(hashedAddress common.Hash) (*HashedStorageCursor, error)
}

// txHashedCursorFactory is the default HashedCursorFactory, reading directly
// from the transaction StateRoot/StorageRoot were constructed with.
type txHashedCursorFactory struct{ tx kv.Tx }

func newTxHashedCursorFactory(tx kv.Tx) HashedCursorFactory {
	return txHashedCursorFactory{tx: tx}
}

func (f txHashedCursorFactory) HashedAccountCursor() (*HashedAccountCursor, error) {
	return NewHashedAccountCursor(f.tx)
}

func (f txHashedCursorFactory) HashedStorageCursor(hashedAddress common.Hash) (*HashedStorageCursor, error) {
	return NewHashedStorageCursor(f.tx, hashedAddress)
}
