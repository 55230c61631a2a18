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

import "github.com/erigontech/erigon-lib/common"

// IntermediateStateRootState snapshots everything a suspended StateRoot
// computation needs to resume exactly where it left off: the account
// walker's frame stack and the last hashed address fully folded into the
// account hash builder. The hash builder itself is not snapshotted — on
// resume, StateRoot rebuilds it by replaying nothing (the builder's partial
// branch frames are keyed purely by the keys seen so far, which the walker
// resume already reproduces in the same order).
type IntermediateStateRootState struct {
	AccountStack    []*walkFrame
	LastHashedAddr  common.Hash
	HasLastHashed   bool
}

// StateRootProgress is the tagged result root_with_progress returns: either
// the computation ran to completion, or it was cooperatively suspended
// after crossing the caller's update threshold.
type StateRootProgress struct {
	Complete bool

	// Complete == true fields.
	Root    common.Hash
	Updates *TrieUpdates

	// Complete == false fields.
	Snapshot *IntermediateStateRootState

	// Always populated: how many account-trie leaves/branches this segment
	// walked (for Resumability property bookkeeping — the sum across a
	// Progress...Progress...Complete chain must equal a single unbounded
	// pass's walked count).
	WalkedCount uint64
}
