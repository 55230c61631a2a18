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

// Package memdb is an in-memory kv.RwTx backed by a B-tree per table, used
// in tests in place of the real mdbx-backed store: no files, no cgo, and
// every cursor observes a sorted, duplicate-key-aware view matching the
// semantics AccountsTrie/StoragesTrie/HashedAccount/HashedStorage rely on.
package memdb

import (
	"bytes"
	"sort"
	"sync"

	"github.com/erigontech/erigon-lib/kv"
	"github.com/google/btree"
)

type kvPair struct {
	key []byte
	val []byte
}

func (p kvPair) Less(other btree.Item) bool {
	return bytes.Compare(p.key, other.(kvPair).key) < 0
}

// table is one named B-tree, with a flag marking it dupsort (multiple
// ordered values per key, erigon's "MultiMap" tables).
type table struct {
	dupsort bool
	tree    *btree.BTree
}

// DB is the whole in-memory store: a fixed set of named tables, each
// independently ordered. It is safe for concurrent use by serializing all
// access through a single mutex, which is adequate for test-scale data.
type DB struct {
	mu     sync.Mutex
	tables map[string]*table
}

// New returns an empty store with tables pre-declared; dupsortTables names
// which of them use duplicate-key semantics (SeekBothRange, NextDup, …).
func New(dupsortTables map[string]bool) *DB {
	db := &DB{tables: make(map[string]*table)}
	for name, dup := range dupsortTables {
		db.tables[name] = &table{dupsort: dup, tree: btree.New(32)}
	}
	return db
}

func (db *DB) table(name string) *table {
	t, ok := db.tables[name]
	if !ok {
		t = &table{tree: btree.New(32)}
		db.tables[name] = t
	}
	return t
}

// BeginRw opens a read-write transaction. memdb has no real MVCC isolation:
// the returned Tx simply holds db's lock until Commit/Rollback, which is
// sufficient for tests that never interleave reads with a concurrent
// writer.
func (db *DB) BeginRw() *Tx {
	db.mu.Lock()
	return &Tx{db: db}
}

// BeginRo opens a read-only transaction over the current contents.
func (db *DB) BeginRo() *Tx {
	db.mu.Lock()
	return &Tx{db: db, readOnly: true}
}

// Tx is memdb's kv.RwTx implementation.
type Tx struct {
	db       *DB
	readOnly bool
	done     bool
}

var _ kv.RwTx = (*Tx)(nil)

func (tx *Tx) Commit() error {
	tx.finish()
	return nil
}

func (tx *Tx) Rollback() { tx.finish() }

func (tx *Tx) finish() {
	if tx.done {
		return
	}
	tx.done = true
	tx.db.mu.Unlock()
}

func (tx *Tx) GetOne(tableName string, key []byte) ([]byte, error) {
	t := tx.db.table(tableName)
	item := t.tree.Get(kvPair{key: key})
	if item == nil {
		return nil, nil
	}
	return item.(kvPair).val, nil
}

func (tx *Tx) Put(tableName string, key, value []byte) error {
	if tx.readOnly {
		panic("memdb: write on read-only transaction")
	}
	t := tx.db.table(tableName)
	if t.dupsort {
		// dupsort entries are keyed on key ++ 0xff ++ value, so only an
		// identical (key, value) pair replaces an existing entry; a
		// different value under the same key is added as a new duplicate,
		// even when it starts with the same subkey.
		t.tree.ReplaceOrInsert(kvPair{key: dupsortTreeKey(key, value), val: value})
		return nil
	}
	t.tree.ReplaceOrInsert(kvPair{key: append([]byte(nil), key...), val: value})
	return nil
}

func (tx *Tx) Delete(tableName string, key []byte) error {
	t := tx.db.table(tableName)
	t.tree.Delete(kvPair{key: key})
	return nil
}

func (tx *Tx) Cursor(tableName string) (kv.Cursor, error) {
	return tx.RwCursor(tableName)
}

func (tx *Tx) CursorDupSort(tableName string) (kv.CursorDupSort, error) {
	return tx.RwCursorDupSort(tableName)
}

func (tx *Tx) RwCursor(tableName string) (kv.RwCursor, error) {
	return &cursor{tx: tx, table: tx.db.table(tableName)}, nil
}

func (tx *Tx) RwCursorDupSort(tableName string) (kv.RwCursorDupSort, error) {
	return &cursor{tx: tx, table: tx.db.table(tableName), dup: true}, nil
}

// dupsortTreeKey is only used internally to give every (key, subkey) pair a
// distinct, correctly ordered B-tree slot: primary key, then the raw value
// bytes (which the trie package always prefixes with the subkey).
func dupsortTreeKey(primary, value []byte) []byte {
	out := make([]byte, 0, len(primary)+1+len(value))
	out = append(out, primary...)
	out = append(out, 0xff) // separator outside nibble-length byte range use
	out = append(out, value...)
	return out
}

// cursor walks a snapshot of the tree taken on its first positioning call
// and retaken after each write made through the cursor: simplest correct
// behavior for a test double, since memdb transactions already serialize
// all access.
type cursor struct {
	tx    *Tx
	table *table
	dup   bool

	keys [][]byte
	vals [][]byte
	pos  int
	primary []byte // current dupsort primary key, for NextDup/CountDuplicates
}

func (c *cursor) loadAll() {
	if c.keys != nil {
		return
	}
	c.table.tree.Ascend(func(it btree.Item) bool {
		p := it.(kvPair)
		c.keys = append(c.keys, p.key)
		c.vals = append(c.vals, p.val)
		return true
	})
}

func (c *cursor) First() ([]byte, []byte, error) {
	c.loadAll()
	c.pos = 0
	return c.current()
}

func (c *cursor) Last() ([]byte, []byte, error) {
	c.loadAll()
	c.pos = len(c.keys) - 1
	return c.current()
}

func (c *cursor) Current() ([]byte, []byte, error) {
	c.loadAll()
	return c.current()
}

func (c *cursor) current() ([]byte, []byte, error) {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil, nil, nil
	}
	if c.dup {
		return c.primaryOf(c.pos), c.vals[c.pos], nil
	}
	return c.keys[c.pos], c.vals[c.pos], nil
}

// primaryOf recovers the real caller-facing key for a dupsort entry: the
// portion of the B-tree key before the 0xff separator dupsortTreeKey wrote.
func (c *cursor) primaryOf(i int) []byte {
	k := c.keys[i]
	// The tree key is primary ++ 0xff ++ value and the stored value is that
	// same value, so the separator sits exactly len(value)+1 bytes from the end.
	if j := len(k) - len(c.vals[i]) - 1; c.table.dupsort && j >= 0 && k[j] == 0xff {
		return k[:j]
	}
	return k
}

func (c *cursor) Next() ([]byte, []byte, error) {
	c.loadAll()
	c.pos++
	return c.current()
}

func (c *cursor) NextDup() ([]byte, []byte, error) {
	c.loadAll()
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil, nil, nil
	}
	cur := c.primaryOf(c.pos)
	c.pos++
	if c.pos >= len(c.keys) || !bytes.Equal(c.primaryOf(c.pos), cur) {
		return nil, nil, nil
	}
	return c.current()
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	c.loadAll()
	c.pos = sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], seek) >= 0 })
	return c.current()
}

func (c *cursor) SeekExact(key []byte) ([]byte, []byte, error) {
	k, v, err := c.Seek(key)
	if err != nil || k == nil || !bytes.Equal(k, key) {
		return nil, nil, err
	}
	return k, v, nil
}

func (c *cursor) SeekBothRange(key, value []byte) ([]byte, error) {
	c.loadAll()
	seek := dupsortTreeKey(key, value)
	c.pos = sort.Search(len(c.keys), func(i int) bool { return bytes.Compare(c.keys[i], seek) >= 0 })
	if c.pos >= len(c.keys) || !bytes.Equal(c.primaryOf(c.pos), key) {
		return nil, nil
	}
	return c.vals[c.pos], nil
}

func (c *cursor) FirstDup() ([]byte, error) {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil, nil
	}
	return c.vals[c.pos], nil
}

func (c *cursor) LastDup() ([]byte, error) {
	c.loadAll()
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil, nil
	}
	cur := c.primaryOf(c.pos)
	i := c.pos
	for i+1 < len(c.keys) && bytes.Equal(c.primaryOf(i+1), cur) {
		i++
	}
	return c.vals[i], nil
}

func (c *cursor) CountDuplicates() (uint64, error) {
	c.loadAll()
	if c.pos < 0 || c.pos >= len(c.keys) {
		return 0, nil
	}
	cur := c.primaryOf(c.pos)
	var n uint64
	for i := 0; i < len(c.keys); i++ {
		if bytes.Equal(c.primaryOf(i), cur) {
			n++
		}
	}
	return n, nil
}

func (c *cursor) Put(k, v []byte) error {
	if c.dup {
		c.table.tree.ReplaceOrInsert(kvPair{key: dupsortTreeKey(k, v), val: v})
	} else {
		c.table.tree.ReplaceOrInsert(kvPair{key: append([]byte(nil), k...), val: v})
	}
	c.invalidate()
	return nil
}

func (c *cursor) Delete(k []byte) error {
	c.table.tree.Delete(kvPair{key: k})
	c.invalidate()
	return nil
}

func (c *cursor) DeleteCurrent() error {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil
	}
	c.table.tree.Delete(kvPair{key: c.keys[c.pos]})
	c.invalidate()
	return nil
}

func (c *cursor) DeleteCurrentDuplicates() error {
	c.loadAll()
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil
	}
	cur := c.primaryOf(c.pos)
	for i := 0; i < len(c.keys); i++ {
		if bytes.Equal(c.primaryOf(i), cur) {
			c.table.tree.Delete(kvPair{key: c.keys[i]})
		}
	}
	c.invalidate()
	return nil
}

func (c *cursor) invalidate() { c.keys, c.vals = nil, nil }

func (c *cursor) Close() {}
