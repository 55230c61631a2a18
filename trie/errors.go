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

import "github.com/pkg/errors"

// The engine's error taxonomy has exactly three members, all fatal: nothing
// here is meant to be retried by the caller. Wrap with errors.Wrap to attach
// the operation that failed; callers distinguish the three with errors.Is.
var (
	// ErrStorageAccess reports a failure reading the hashed state or cached
	// trie tables (cursor errors, backing store failures).
	ErrStorageAccess = errors.New("trie: storage access failure")

	// ErrDecoding reports a malformed on-disk record: a BranchNodeCompact
	// that doesn't parse, a change-set key of the wrong length, and so on.
	ErrDecoding = errors.New("trie: decoding failure")

	// ErrIntegrity reports a BranchNodeCompact that fails Validate: a
	// tree_mask or hash_mask that isn't a subset of state_mask, or a hash
	// count that disagrees with popcount(hash_mask). Records decoded from
	// disk are validated too, so corrupt stored data surfaces as this error.
	ErrIntegrity = errors.New("trie: integrity violation")
)
