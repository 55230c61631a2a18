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

// Package accounts holds the world-state account record, the same shape
// reth's EthAccount wraps with a recomputed storage root before it is fed
// into the account hash builder.
package accounts

import (
	"bytes"
	"io"

	"github.com/erigontech/erigon-lib/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Account is the in-memory representation of HashedAccount's value.
// Incarnation is erigon-specific bookkeeping (bumped on SELFDESTRUCT/
// recreate) and is never part of the consensus RLP encoding.
type Account struct {
	Nonce       uint64
	Balance     uint256.Int
	CodeHash    common.Hash
	Incarnation uint64
}

// IsEmptyCodeHash reports whether the account has no contract code.
func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == (common.Hash{}) || a.CodeHash == EmptyCodeHash
}

// EmptyCodeHash is keccak256 of the empty byte string.
var EmptyCodeHash = common.Keccak256(nil)

// rlpAccount is the wire shape consumed by the account hash builder: the
// four consensus fields, storage root already resolved by the caller.
type rlpAccount struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     common.Hash
	CodeHash common.Hash
}

// EncodeRLP returns the RLP encoding of the account with the given storage
// root substituted in, ready to be fed to HashBuilder.AddLeaf.
func EncodeRLP(a *Account, storageRoot common.Hash) ([]byte, error) {
	codeHash := a.CodeHash
	if codeHash == (common.Hash{}) {
		codeHash = EmptyCodeHash
	}
	balance := a.Balance
	acc := rlpAccount{
		Nonce:    a.Nonce,
		Balance:  &balance,
		Root:     storageRoot,
		CodeHash: codeHash,
	}
	var buf bytes.Buffer
	if err := rlp.Encode(&buf, &acc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses the storage encoding written by the hashed-account table
// (nonce, balance, incarnation, code hash — erigon's "for-storage" layout,
// distinct from the consensus RLP quadruple EncodeRLP produces).
func Decode(enc []byte, a *Account) error {
	r := bytes.NewReader(enc)
	var fieldSet byte
	if err := readByte(r, &fieldSet); err != nil {
		return err
	}
	if fieldSet&1 != 0 {
		n, err := readUvarint(r)
		if err != nil {
			return err
		}
		a.Nonce = n
	}
	if fieldSet&2 != 0 {
		b, err := readBytes(r)
		if err != nil {
			return err
		}
		a.Balance.SetBytes(b)
	}
	if fieldSet&4 != 0 {
		n, err := readUvarint(r)
		if err != nil {
			return err
		}
		a.Incarnation = n
	}
	if fieldSet&8 != 0 {
		b, err := readBytes(r)
		if err != nil {
			return err
		}
		copy(a.CodeHash[:], b)
	}
	return nil
}

func readByte(r io.ByteReader, out *byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return err
	}
	*out = b
	return nil
}

func readUvarint(r io.ByteReader) (uint64, error) {
	l, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	for i := 0; i < int(l); i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		buf[8-int(l)+i] = b
	}
	return uint64FromBytes(buf), nil
}

func readBytes(r io.ByteReader) ([]byte, error) {
	l, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, l)
	for i := range buf {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

func uint64FromBytes(b [8]byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
