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

// hbNodeKind mirrors go-ethereum's StackTrie node states, adapted to accept
// pre-hashed subtrees (branch short-circuits) as a distinct leaf kind
// instead of only raw values.
type hbNodeKind uint8

const (
	hbEmpty hbNodeKind = iota
	hbLeaf
	hbExt
	hbBranch
	hbHashed
)

// hbNode is one node of the hash builder's in-memory trie. Keys are stored
// relative to keyOffset, as in the stack-trie design: every insert walks
// from the root comparing the remaining key suffix against the node's
// stored chunk, splitting nodes in place. Nodes are kept until Root
// encodes the tree; none is hashed and released earlier.
type hbNode struct {
	kind      hbNodeKind
	key       Nibbles // chunk owned by this node, relative to keyOffset
	keyOffset int
	val       []byte // leaf payload (hbLeaf) or finished encoding (hbHashed)
	children  [16]*hbNode

	// fromShortCircuit marks a hbHashed node created by AddBranch rather
	// than by hashing a leaf: such a child is itself a persisted branch,
	// so the parent's tree_mask should record it.
	fromShortCircuit bool
}

func newHBLeaf(offset int, key Nibbles, val []byte) *hbNode {
	return &hbNode{kind: hbLeaf, keyOffset: offset, key: key[offset:], val: val}
}

// HashBuilder turns ordered leaves and branch short-circuits into a
// Merkle-Patricia root. Every inserted leaf and short-circuit hash stays in
// memory as a node of one tree until Root encodes it; branches are not
// finished early when their last child has been seen, so memory grows with
// the number of inserts rather than with trie depth. Leaves and AddBranch
// calls must arrive in strictly ascending key order, the order TrieWalker
// guarantees.
type HashBuilder struct {
	root    *hbNode
	retain  bool
	updates *TrieUpdates
	keyer   func(Nibbles) TrieKey
}

// NewHashBuilder returns an empty builder. When retain is true, every
// finalized branch with a non-empty tree_mask is recorded into updates via
// keyer, which maps a branch's nibble path to the TrieKey it should be
// persisted under (different for the account trie vs. a storage trie).
func NewHashBuilder(retain bool, updates *TrieUpdates, keyer func(Nibbles) TrieKey) *HashBuilder {
	return &HashBuilder{retain: retain, updates: updates, keyer: keyer}
}

// AddLeaf inserts a hashed-state leaf at its full nibble path.
func (b *HashBuilder) AddLeaf(key Nibbles, value []byte) {
	b.insert(key, value, false)
}

// AddBranch inserts a cached subtree hash at prefix, short-circuiting the
// walker's descent into it. hasTree reports whether that cached record
// itself carries a tree_mask; it is not consulted: every short-circuited
// subtree sets its parent's tree_mask bit on finalize, whatever hasTree is.
func (b *HashBuilder) AddBranch(prefix Nibbles, hash common.Hash, hasTree bool) {
	b.insert(prefix, hash.Bytes(), true)
	// mark the node we just created/reused as coming from a short circuit
	b.markShortCircuit(prefix, hasTree)
}

func (b *HashBuilder) markShortCircuit(prefix Nibbles, hasTree bool) {
	if b.root == nil {
		return
	}
	n := b.root
	for {
		diff := diffIndex(n.key, prefix, n.keyOffset)
		if diff == len(n.key) && n.keyOffset+diff == len(prefix) {
			n.fromShortCircuit = true
			_ = hasTree
			return
		}
		if n.kind != hbBranch || n.keyOffset+len(n.key) > len(prefix) {
			return
		}
		idx := prefix[n.keyOffset+len(n.key)]
		child := n.children[idx]
		if child == nil {
			return
		}
		n = child
	}
}

func diffIndex(nodeKey, full Nibbles, offset int) int {
	i := 0
	for i < len(nodeKey) && offset+i < len(full) && nodeKey[i] == full[offset+i] {
		i++
	}
	return i
}

// insert is the stack-trie insertion algorithm (see the teacher's
// StackTrie.insert), generalized to accept either a raw leaf value
// (asHash=false) or an already-computed 32-byte subtree hash (asHash=true,
// the branch-short-circuit case).
func (b *HashBuilder) insert(key Nibbles, value []byte, asHash bool) {
	if b.root == nil {
		b.root = b.makeLeafLike(0, key, value, asHash)
		return
	}
	insertInto(&b.root, key, value, asHash)
}

func (b *HashBuilder) makeLeafLike(offset int, key Nibbles, value []byte, asHash bool) *hbNode {
	n := newHBLeaf(offset, key, value)
	if asHash {
		n.kind = hbHashed
		n.fromShortCircuit = true
	}
	return n
}

func insertInto(np **hbNode, key Nibbles, value []byte, asHash bool) {
	n := *np
	switch n.kind {
	case hbBranch:
		idx := key[n.keyOffset]
		if n.children[idx] == nil {
			n.children[idx] = &hbNode{kind: hbEmpty, keyOffset: n.keyOffset + 1}
		}
		insertInto(&n.children[idx], key, value, asHash)

	case hbEmpty:
		leaf := newHBLeaf(n.keyOffset, key, value)
		if asHash {
			leaf.kind = hbHashed
			leaf.fromShortCircuit = true
		} else {
			leaf.kind = hbLeaf
		}
		*np = leaf

	case hbExt:
		diff := diffIndex(n.key, key, n.keyOffset)
		if diff == len(n.key) {
			insertInto(&n.children[0], key, value, asHash)
			return
		}
		splitExt(np, diff, key, value, asHash)

	case hbLeaf, hbHashed:
		diff := diffIndex(n.key, key, n.keyOffset)
		splitLeaf(np, diff, key, value, asHash)

	default:
		panic("hash builder: insert into finalized node")
	}
}

func splitExt(np **hbNode, diff int, key Nibbles, value []byte, asHash bool) {
	n := *np
	var tail *hbNode
	if diff < len(n.key)-1 {
		tail = &hbNode{kind: hbExt, keyOffset: n.keyOffset + diff + 1, key: n.key[diff+1:], children: [16]*hbNode{0: n.children[0]}}
	} else {
		tail = n.children[0]
	}

	var branch *hbNode
	if diff == 0 {
		branch = &hbNode{kind: hbBranch, keyOffset: n.keyOffset}
	} else {
		branch = &hbNode{kind: hbBranch, keyOffset: n.keyOffset + diff}
	}
	origIdx := n.key[diff]
	branch.children[origIdx] = tail

	newLeaf := newHBLeaf(branch.keyOffset+1, key, value)
	if asHash {
		newLeaf.kind = hbHashed
		newLeaf.fromShortCircuit = true
	} else {
		newLeaf.kind = hbLeaf
	}
	newIdx := key[branch.keyOffset]
	branch.children[newIdx] = newLeaf

	if diff == 0 {
		*np = branch
	} else {
		*np = &hbNode{kind: hbExt, keyOffset: n.keyOffset, key: n.key[:diff], children: [16]*hbNode{0: branch}}
	}
}

func splitLeaf(np **hbNode, diff int, key Nibbles, value []byte, asHash bool) {
	n := *np
	branchOffset := n.keyOffset + diff
	branch := &hbNode{kind: hbBranch, keyOffset: branchOffset}

	origIdx := n.key[diff]
	// Rebuild a full-length key for the original leaf from its stored
	// suffix: only positions after branchOffset carry real nibbles, the
	// leading ones are zero placeholders, since newHBLeaf keeps key[offset:].
	origFull := make(Nibbles, branchOffset+1+len(n.key)-diff-1)
	copy(origFull[branchOffset+1:], n.key[diff+1:])
	origChild := newHBLeaf(branchOffset+1, origFull, n.val)
	if n.kind == hbHashed {
		origChild.kind = hbHashed
		origChild.fromShortCircuit = n.fromShortCircuit
	} else {
		origChild.kind = hbLeaf
	}
	branch.children[origIdx] = origChild

	newIdx := key[branchOffset]
	newChild := newHBLeaf(branchOffset+1, key, value)
	if asHash {
		newChild.kind = hbHashed
		newChild.fromShortCircuit = true
	} else {
		newChild.kind = hbLeaf
	}
	branch.children[newIdx] = newChild

	if diff == 0 {
		*np = branch
	} else {
		*np = &hbNode{kind: hbExt, keyOffset: n.keyOffset, key: n.key[:diff], children: [16]*hbNode{0: branch}}
	}
}

// Root finalizes the builder and returns the trie root hash. Unlike a child
// reference, the root is always the keccak of its encoding, never inlined
// — except when the whole trie is itself one short-circuited subtree, in
// which case that subtree's already-computed hash *is* the root and must
// not be hashed again.
func (b *HashBuilder) Root() common.Hash {
	if b.root == nil {
		return common.EmptyRootHash
	}
	if b.root.kind == hbHashed {
		return common.BytesToHash(b.root.val)
	}
	return common.Keccak256(b.encode(b.root, nil))
}

// childRef returns n's reference as it belongs inside its parent's RLP
// list: inlined verbatim if its encoding is under 32 bytes, or its keccak
// hash otherwise, computed exactly once. A short-circuited subtree
// (hbHashed) already carries its own finished hash from a prior run — it is
// referenced by that hash directly and never re-encoded or re-hashed.
func (b *HashBuilder) childRef(n *hbNode, path Nibbles) ref {
	if n.kind == hbHashed {
		return ref{isHash: true, hash: common.BytesToHash(n.val)}
	}
	return refFromEncoding(b.encode(n, path))
}

// encode returns node n's raw RLP encoding (never hashed or inlined itself;
// callers decide that via childRef or Root). path is n's absolute nibble
// path, used to key any retained BranchNodeCompact update.
func (b *HashBuilder) encode(n *hbNode, path Nibbles) []byte {
	switch n.kind {
	case hbLeaf:
		item := encodeBytes(n.val)
		return encodeLeafOrExtension(n.key, true, item)

	case hbExt:
		childPath := append(path[:0:0], path...)
		childPath = append(childPath, n.key...)
		childRef := b.childRef(n.children[0], childPath)
		return encodeLeafOrExtension(n.key, false, childRef.rlpBytes())

	case hbBranch:
		return b.hashBranch(n, path)

	default:
		return []byte{0x80}
	}
}

func (b *HashBuilder) hashBranch(n *hbNode, path Nibbles) []byte {
	var refs [16]ref
	var stateMask, treeMask, hashMask uint16
	var hashes []common.Hash

	for i := 0; i < 16; i++ {
		child := n.children[i]
		if child == nil {
			continue
		}
		stateMask |= 1 << uint(i)
		childPath := append(append(path[:0:0], path...), byte(i))
		r := b.childRef(child, childPath)
		refs[i] = r
		if child.kind == hbBranch || (child.kind == hbHashed && child.fromShortCircuit) {
			treeMask |= 1 << uint(i)
		}
		if r.isHash {
			hashMask |= 1 << uint(i)
			hashes = append(hashes, r.hash)
		}
	}

	enc := encodeBranch(refs)
	if b.retain && treeMask != 0 {
		bn := &BranchNodeCompact{StateMask: stateMask, TreeMask: treeMask, HashMask: hashMask, Hashes: hashes}
		b.updates.Update(b.keyer(path.Clone()), bn)
	}
	return enc
}
