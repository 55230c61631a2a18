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

// Tx is a read-only view of the key-value store, consistent for its whole
// lifetime (MVCC snapshot semantics). All cursors opened from a Tx must not
// outlive it.
type Tx interface {
	// GetOne returns the value stored for key in table, or nil if absent.
	GetOne(table string, key []byte) ([]byte, error)
	// Cursor opens an ordered, non-duplicate cursor over table.
	Cursor(table string) (Cursor, error)
	// CursorDupSort opens a cursor over a duplicate-key (MultiMap) table,
	// where each key may have several ordered sub-values.
	CursorDupSort(table string) (CursorDupSort, error)
	Commit() error
	Rollback()
}

// RwTx is a Tx that additionally allows mutation. Engine code never uses
// this directly (the trie computation is read-only); it's exposed so
// callers can flush TrieUpdates (see trie.TrieUpdates.Flush) and so the
// in-memory test double in kv/memdb can be populated.
type RwTx interface {
	Tx
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	RwCursor(table string) (RwCursor, error)
	RwCursorDupSort(table string) (RwCursorDupSort, error)
}

// Cursor walks an ordered table in key order.
type Cursor interface {
	First() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	SeekExact(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Current() (k, v []byte, err error)
	Close()
}

// CursorDupSort is a Cursor over a table where each key may carry several
// ordered sub-values (erigon's "dupsort" tables); the trie cursors use this
// to scope a scan to one hashed_address's storage trie or storage slots.
type CursorDupSort interface {
	Cursor
	// SeekBothRange positions on (key, subkey >= value) and returns that
	// sub-value, or returns nil if no sub-value of key qualifies.
	SeekBothRange(key, value []byte) (v []byte, err error)
	FirstDup() (v []byte, err error)
	NextDup() (k, v []byte, err error)
	LastDup() (v []byte, err error)
	CountDuplicates() (uint64, error)
}

// RwCursor is a Cursor that can mutate the table in place at its position.
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
	DeleteCurrent() error
}

// RwCursorDupSort is the duplicate-key analogue of RwCursor.
type RwCursorDupSort interface {
	CursorDupSort
	RwCursor
	DeleteCurrentDuplicates() error
}
