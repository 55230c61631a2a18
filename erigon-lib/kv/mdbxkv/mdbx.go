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

// Package mdbxkv adapts github.com/erigontech/mdbx-go to the kv.Tx/
// kv.RwTx interface, the production-grade backing store the rest of the
// engine (and the trieroot CLI) runs against. Tables are opened as DBIs
// lazily, on first use, with DupSort set for the tables the trie schema
// declares duplicate-key (kv.TrieOfStorage, kv.HashedStorageDeprecated,
// kv.AccountChangeSetDeprecated, kv.StorageChangeSetDeprecated).
package mdbxkv

import (
	"fmt"
	"os"
	"sync"

	"github.com/erigontech/erigon-lib/kv"
	"github.com/erigontech/mdbx-go/mdbx"
)

// DupsortTables lists the tables that must be opened with the DupSort DBI
// flag, matching the dupsort tables the trie package reads/writes.
var DupsortTables = map[string]bool{
	kv.TrieOfStorage:              true,
	kv.HashedStorageDeprecated:    true,
	kv.AccountChangeSetDeprecated: true,
	kv.StorageChangeSetDeprecated: true,
}

// Env wraps an open MDBX environment and lazily-opened per-table DBIs.
type Env struct {
	env *mdbx.Env

	mu   sync.Mutex
	dbis map[string]mdbx.DBI
}

// Open creates (if needed) and opens an MDBX environment rooted at path.
func Open(path string, maxTables uint64) (*Env, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("mdbxkv: create dir: %w", err)
	}
	env, err := mdbx.NewEnv(mdbx.Default)
	if err != nil {
		return nil, fmt.Errorf("mdbxkv: new env: %w", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, maxTables); err != nil {
		env.Close()
		return nil, fmt.Errorf("mdbxkv: set max dbs: %w", err)
	}
	if err := env.Open(path, mdbx.Default, 0644); err != nil {
		env.Close()
		return nil, fmt.Errorf("mdbxkv: open: %w", err)
	}
	return &Env{env: env, dbis: make(map[string]mdbx.DBI)}, nil
}

func (e *Env) Close() error { return e.env.Close() }

func (e *Env) dbi(txn *mdbx.Txn, table string) (mdbx.DBI, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dbi, ok := e.dbis[table]; ok {
		return dbi, nil
	}
	flags := uint(mdbx.Create)
	if DupsortTables[table] {
		flags |= mdbx.DupSort
	}
	dbi, err := txn.OpenDBISimple(table, flags)
	if err != nil {
		return 0, err
	}
	e.dbis[table] = dbi
	return dbi, nil
}

// BeginRo opens a read-only transaction.
func (e *Env) BeginRo() (*Tx, error) {
	txn, err := e.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, err
	}
	return &Tx{env: e, txn: txn}, nil
}

// BeginRw opens a read-write transaction.
func (e *Env) BeginRw() (*Tx, error) {
	txn, err := e.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, err
	}
	return &Tx{env: e, txn: txn}, nil
}

// Tx adapts an *mdbx.Txn to kv.RwTx.
type Tx struct {
	env *Env
	txn *mdbx.Txn
}

var _ kv.RwTx = (*Tx)(nil)

func (tx *Tx) Commit() error {
	_, err := tx.txn.Commit()
	return err
}

func (tx *Tx) Rollback() { tx.txn.Abort() }

func (tx *Tx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, err := tx.env.dbi(tx.txn, table)
	if err != nil {
		return nil, err
	}
	v, err := tx.txn.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (tx *Tx) Put(table string, key, value []byte) error {
	dbi, err := tx.env.dbi(tx.txn, table)
	if err != nil {
		return err
	}
	return tx.txn.Put(dbi, key, value, 0)
}

func (tx *Tx) Delete(table string, key []byte) error {
	dbi, err := tx.env.dbi(tx.txn, table)
	if err != nil {
		return err
	}
	err = tx.txn.Del(dbi, key, nil)
	if mdbx.IsNotFound(err) {
		return nil
	}
	return err
}

func (tx *Tx) Cursor(table string) (kv.Cursor, error) { return tx.openCursor(table) }

func (tx *Tx) CursorDupSort(table string) (kv.CursorDupSort, error) { return tx.openCursor(table) }

func (tx *Tx) RwCursor(table string) (kv.RwCursor, error) { return tx.openCursor(table) }

func (tx *Tx) RwCursorDupSort(table string) (kv.RwCursorDupSort, error) { return tx.openCursor(table) }

func (tx *Tx) openCursor(table string) (*cursor, error) {
	dbi, err := tx.env.dbi(tx.txn, table)
	if err != nil {
		return nil, err
	}
	c, err := tx.txn.OpenCursor(dbi)
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

// cursor adapts *mdbx.Cursor to kv.RwCursorDupSort, the union interface
// every call site in the trie package narrows down from.
type cursor struct {
	c *mdbx.Cursor
}

func nf(k []byte, v []byte, err error) ([]byte, []byte, error) {
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) First() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.First)
	return nf(k, v, err)
}

func (c *cursor) Last() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Last)
	return nf(k, v, err)
}

func (c *cursor) Current() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.GetCurrent)
	return nf(k, v, err)
}

func (c *cursor) Next() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Next)
	return nf(k, v, err)
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(seek, nil, mdbx.SetRange)
	return nf(k, v, err)
}

func (c *cursor) SeekExact(key []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(key, nil, mdbx.Set)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

func (c *cursor) SeekBothRange(key, value []byte) ([]byte, error) {
	_, v, err := c.c.Get(key, value, mdbx.GetBothRange)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func (c *cursor) FirstDup() ([]byte, error) {
	_, v, err := c.c.Get(nil, nil, mdbx.FirstDup)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func (c *cursor) NextDup() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.NextDup)
	return nf(k, v, err)
}

func (c *cursor) LastDup() ([]byte, error) {
	_, v, err := c.c.Get(nil, nil, mdbx.LastDup)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func (c *cursor) CountDuplicates() (uint64, error) {
	n, err := c.c.Count()
	return n, err
}

func (c *cursor) Put(k, v []byte) error { return c.c.Put(k, v, 0) }

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.c.Get(k, nil, mdbx.Set); err != nil {
		if mdbx.IsNotFound(err) {
			return nil
		}
		return err
	}
	return c.c.Del(0)
}

func (c *cursor) DeleteCurrent() error { return c.c.Del(0) }

func (c *cursor) DeleteCurrentDuplicates() error { return c.c.Del(mdbx.AllDups) }

func (c *cursor) Close() { c.c.Close() }
