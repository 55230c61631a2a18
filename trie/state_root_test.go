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
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"testing"

	"github.com/erigontech/erigon-lib/common"
	"github.com/erigontech/erigon-lib/kv"
	"github.com/erigontech/erigon-lib/kv/memdb"
	"github.com/erigontech/erigon-lib/types/accounts"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// encodeAccountForStorage is accounts.Decode's inverse, used only to build
// HashedAccount fixtures: the for-storage layout is otherwise written by
// the state-write path, which this package doesn't own.
func encodeAccountForStorage(acc *accounts.Account) []byte {
	var fieldSet byte
	var nonceBytes, balanceBytes, incarnationBytes []byte

	if acc.Nonce != 0 {
		fieldSet |= 1
		nonceBytes = trimBigEndian(acc.Nonce)
	}
	if !acc.Balance.IsZero() {
		fieldSet |= 2
		balanceBytes = acc.Balance.Bytes()
	}
	if acc.Incarnation != 0 {
		fieldSet |= 4
		incarnationBytes = trimBigEndian(acc.Incarnation)
	}
	hasCodeHash := acc.CodeHash != (common.Hash{}) && acc.CodeHash != accounts.EmptyCodeHash
	if hasCodeHash {
		fieldSet |= 8
	}

	buf := []byte{fieldSet}
	if fieldSet&1 != 0 {
		buf = append(buf, byte(len(nonceBytes)))
		buf = append(buf, nonceBytes...)
	}
	if fieldSet&2 != 0 {
		buf = append(buf, byte(len(balanceBytes)))
		buf = append(buf, balanceBytes...)
	}
	if fieldSet&4 != 0 {
		buf = append(buf, byte(len(incarnationBytes)))
		buf = append(buf, incarnationBytes...)
	}
	if fieldSet&8 != 0 {
		buf = append(buf, 32)
		buf = append(buf, acc.CodeHash.Bytes()...)
	}
	return buf
}

func trimBigEndian(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func putAccount(t *testing.T, tx kv.RwTx, addr common.Hash, acc *accounts.Account) {
	t.Helper()
	require.NoError(t, tx.Put(kv.HashedAccountsDeprecated, addr.Bytes(), encodeAccountForStorage(acc)))
}

func TestStateRootEmptyState(t *testing.T) {
	db := newTestDB()
	tx := db.BeginRo()
	defer tx.Rollback()

	root, err := NewStateRoot(tx).Root()
	require.NoError(t, err)
	require.Equal(t, common.EmptyRootHash, root)
}

func TestStateRootSingleAccountMatchesReference(t *testing.T) {
	db := newTestDB()
	tx := db.BeginRw()

	addr := common.Keccak256([]byte("lone-account"))
	acc := &accounts.Account{Nonce: 7, Balance: *uint256.NewInt(1_000_000)}
	putAccount(t, tx, addr, acc)
	require.NoError(t, tx.Commit())

	ro := db.BeginRo()
	defer ro.Rollback()

	root, err := NewStateRoot(ro).Root()
	require.NoError(t, err)

	enc, err := accounts.EncodeRLP(acc, common.EmptyRootHash)
	require.NoError(t, err)
	want := referenceRoot([]refPair{{key: UnpackNibbles(addr.Bytes()), val: enc}})
	require.Equal(t, want, root)
}

// TestStateRootMultipleAccountsMatchesReference gives several accounts
// hashed addresses that force the account trie to branch (one pair sharing
// only a leading nibble, one pair sharing all but the last nibble),
// mirroring the production shape of a multi-account state the double-hash
// regression would have broken.
func TestStateRootMultipleAccountsMatchesReference(t *testing.T) {
	db := newTestDB()
	tx := db.BeginRw()

	keyC := common.Hash{0x30}
	keyC[30] = 0xe0
	keyD := keyC
	keyD[31] = 0x01

	type fixture struct {
		addr common.Hash
		acc  *accounts.Account
	}
	fixtures := []fixture{
		{common.Hash{0x12}, &accounts.Account{Nonce: 1, Balance: *uint256.NewInt(10)}},
		{common.Hash{0x14}, &accounts.Account{Nonce: 2, Balance: *uint256.NewInt(20)}},
		{keyC, &accounts.Account{Nonce: 3, Balance: *uint256.NewInt(30)}},
		{keyD, &accounts.Account{Nonce: 4, Balance: *uint256.NewInt(40)}},
	}
	for _, f := range fixtures {
		putAccount(t, tx, f.addr, f.acc)
	}
	require.NoError(t, tx.Commit())

	ro := db.BeginRo()
	defer ro.Rollback()

	root, updates, err := NewStateRoot(ro).RootWithUpdates()
	require.NoError(t, err)
	// One StorageRootRef delete per (storage-less) account, plus the root
	// account branch, whose child 1 is itself a branch (non-empty tree_mask).
	require.Equal(t, len(fixtures)+1, updates.Len())

	pairs := make([]refPair, len(fixtures))
	for i, f := range fixtures {
		enc, err := accounts.EncodeRLP(f.acc, common.EmptyRootHash)
		require.NoError(t, err)
		pairs[i] = refPair{key: UnpackNibbles(f.addr.Bytes()), val: enc}
	}
	require.Equal(t, referenceRoot(pairs), root)
}

// TestStateRootWithStorageMatchesReference checks that a populated storage
// trie's root is correctly folded into its account's leaf before the
// account trie itself is hashed, exercising the branch-under-branch nesting
// (storage branch -> account leaf -> account branch) the hbHashed
// short-circuit path interacts with.
func TestStateRootWithStorageMatchesReference(t *testing.T) {
	db := newTestDB()
	tx := db.BeginRw()

	addr := common.Keccak256([]byte("account-with-storage"))
	slots := []struct {
		key common.Hash
		val *uint256.Int
	}{
		{common.Keccak256([]byte("slot-a")), uint256.NewInt(1)},
		{common.Keccak256([]byte("slot-b")), uint256.NewInt(2)},
		{common.Keccak256([]byte("slot-c")), uint256.NewInt(3)},
	}
	for _, s := range slots {
		val := s.val.Bytes()
		require.NoError(t, tx.Put(kv.HashedStorageDeprecated, addr.Bytes(), append(append([]byte{}, s.key.Bytes()...), val...)))
	}

	acc := &accounts.Account{Nonce: 1, Balance: *uint256.NewInt(5)}
	putAccount(t, tx, addr, acc)
	require.NoError(t, tx.Commit())

	ro := db.BeginRo()
	defer ro.Rollback()

	root, err := NewStateRoot(ro).Root()
	require.NoError(t, err)

	storagePairs := make([]refPair, len(slots))
	for i, s := range slots {
		storagePairs[i] = refPair{key: UnpackNibbles(s.key.Bytes()), val: s.val.Bytes()}
	}
	storageRoot := referenceRoot(storagePairs)

	enc, err := accounts.EncodeRLP(acc, storageRoot)
	require.NoError(t, err)
	want := referenceRoot([]refPair{{key: UnpackNibbles(addr.Bytes()), val: enc}})
	require.Equal(t, want, root)
}

// TestStateRootResumability checks the resumability invariant: composing a
// thresholded walk's Progress snapshots via WithIntermediateState visits
// every leaf exactly once and produces the same root as an unthresholded
// single pass.
func TestStateRootResumability(t *testing.T) {
	db := newTestDB()
	tx := db.BeginRw()

	const n = 40
	addrs := make([]common.Hash, n)
	for i := 0; i < n; i++ {
		addrs[i] = common.Keccak256([]byte(fmt.Sprintf("resumable-account-%d", i)))
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0 })

	for i, addr := range addrs {
		acc := &accounts.Account{Nonce: uint64(i + 1), Balance: *uint256.NewInt(uint64(1000 + i))}
		putAccount(t, tx, addr, acc)
	}
	require.NoError(t, tx.Commit())

	fullRoot := computeFullRoot(t, db)

	ro := db.BeginRo()
	defer ro.Rollback()

	var walked uint64
	var state *IntermediateStateRootState
	var last StateRootProgress
	for {
		sr := NewStateRoot(ro).WithThreshold(5)
		if state != nil {
			sr = sr.WithIntermediateState(state)
		}
		progress, err := sr.RootWithProgress()
		require.NoError(t, err)
		walked += progress.WalkedCount
		last = progress
		if progress.Complete {
			break
		}
		state = progress.Snapshot
	}

	require.Equal(t, uint64(n), walked)
	require.Equal(t, fullRoot, last.Root)
}

func computeFullRoot(t *testing.T, db *memdb.DB) common.Hash {
	t.Helper()
	tx := db.BeginRo()
	defer tx.Rollback()
	root, err := NewStateRoot(tx).Root()
	require.NoError(t, err)
	return root
}
