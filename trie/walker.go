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

// trieCursorSeeker abstracts AccountTrieCursor / StorageTrieCursor behind
// the one operation the walker needs, so TrieWalker serves both the
// account trie and a storage trie without duplicating its state machine.
type trieCursorSeeker interface {
	Seek(prefix Nibbles) (Nibbles, *BranchNodeCompact, bool, error)
}

// walkFrame is one stack entry of the walker's explicit recursion, per
// spec.md §4.8: a branch node partway through being visited, its child
// index advancing 0..15 before the frame finalizes.
type walkFrame struct {
	path     Nibbles // path to this branch (not including child nibble)
	node     *BranchNodeCompact
	childIdx int
}

// WalkItem is one element of the ordered stream TrieWalker produces: either
// a cached subtree that can be reused as-is (Branch) or a hashed-state leaf
// that must be hashed fresh (Leaf).
type WalkItem struct {
	IsBranch bool

	// Branch fields.
	BranchPath Nibbles
	BranchHash common.Hash
	HasTree    bool

	// Leaf fields.
	LeafKey Nibbles
}

// TrieWalker co-iterates a cached BranchNodeCompact cursor against the
// changed-key prefix set, emitting Branch short-circuits for untouched
// subtrees and descending (eventually bottoming out at hashed leaves,
// driven by the caller calling Next again) everywhere the prefix set says a
// key below may have changed. It never recurses on the Go call stack: all
// state lives in the explicit frame stack, so arbitrarily deep tries don't
// grow it.
type TrieWalker struct {
	cursor  trieCursorSeeker
	changed *PrefixSet
	stack   []*walkFrame
	done    bool

	// noRootRecord is set once the initial Seek finds no persisted root
	// record at all: the whole trie must then be rebuilt from hashed-state
	// leaves, signaled as one LeafKey{} item covering every key.
	noRootRecord      bool
	emittedFullRebuild bool
}

// NewTrieWalker starts a walk from the root, or resumes from a snapshot
// stack produced by a prior suspended run (see progress.go).
func NewTrieWalker(cursor trieCursorSeeker, changed *PrefixSet, resume []*walkFrame) *TrieWalker {
	w := &TrieWalker{cursor: cursor, changed: changed}
	if resume != nil {
		w.stack = resume
	} else {
		w.stack = []*walkFrame{}
	}
	return w
}

// Snapshot returns the current frame stack, for suspension (progress.go
// copies it into an IntermediateStateRootState).
func (w *TrieWalker) Snapshot() []*walkFrame {
	out := make([]*walkFrame, len(w.stack))
	copy(out, w.stack)
	return out
}

// Next advances the walk and returns the next item, or ok=false once the
// walk (of this sub-trie) is exhausted. A Branch item means the caller
// should feed it to the hash builder as a short circuit and call Next
// again. A Leaf item names a hashed key the caller must resolve from the
// hashed-state cursor (the walker itself never touches hashed state) and
// feed to the hash builder before calling Next again.
func (w *TrieWalker) Next() (WalkItem, bool, error) {
	if w.done {
		return WalkItem{}, false, nil
	}

	if w.noRootRecord {
		if w.emittedFullRebuild {
			w.done = true
			return WalkItem{}, false, nil
		}
		w.emittedFullRebuild = true
		return WalkItem{LeafKey: Nibbles{}}, true, nil
	}

	if len(w.stack) == 0 {
		path, node, ok, err := w.cursor.Seek(Nibbles{})
		if err != nil {
			return WalkItem{}, false, err
		}
		if !ok || len(path) != 0 {
			// No persisted root record: the whole trie must be rebuilt
			// from hashed-state leaves. Signal this once as a single
			// leaf-level run spanning the whole keyspace; node_iter.go
			// scans every hashed-state entry in response.
			w.noRootRecord = true
			w.emittedFullRebuild = true
			return WalkItem{LeafKey: Nibbles{}}, true, nil
		}
		w.stack = append(w.stack, &walkFrame{path: path, node: node})
	}

	for len(w.stack) > 0 {
		frame := w.stack[len(w.stack)-1]

		if frame.childIdx == 16 {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}

		i := frame.childIdx
		if !frame.node.HasChild(i) {
			frame.childIdx++
			continue
		}

		childPath := frame.path.Append(byte(i))

		if frame.node.HasTreeChild(i) && !w.changed.Contains(childPath) {
			h, _ := frame.node.HashFor(i)
			frame.childIdx++
			return WalkItem{IsBranch: true, BranchPath: childPath, BranchHash: h, HasTree: true}, true, nil
		}

		if frame.node.HasTreeChild(i) {
			// Subtree may contain a change: descend into its own cached
			// branch record instead of falling to hashed leaves.
			path, node, ok, err := w.cursor.Seek(childPath)
			if err != nil {
				return WalkItem{}, false, err
			}
			frame.childIdx++
			if ok && path.Compare(childPath) == 0 {
				w.stack = append(w.stack, &walkFrame{path: childPath, node: node})
				continue
			}
			// Cursor has nothing at this exact path: treat as leaf-level.
			return WalkItem{LeafKey: childPath}, true, nil
		}

		// Not a persisted branch child: it's a single hashed-state leaf.
		frame.childIdx++
		return WalkItem{LeafKey: childPath}, true, nil
	}

	w.done = true
	return WalkItem{}, false, nil
}
