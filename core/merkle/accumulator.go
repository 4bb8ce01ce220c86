// Package merkle implements an incremental binary Merkle tree over a
// growing, key-indexed leaf set. Each key is assigned a sequential leaf
// index the first time it is written and keeps that index for the lifetime
// of the accumulator; updates rehash only the path from the touched leaf to
// the root. Unpopulated leaves hash as a per-level empty-subtree sentinel,
// so the root is well defined for partially filled trees.
//
// Leaf placement is driven by first-seen order, not by key ordering. Two
// accumulators fed the same updates in a different order will therefore
// produce different roots; downstream proof verification depends on the
// stable indices, not on a canonical key-sorted tree.
package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// maxDepth bounds the tree at 2^40 leaves, far beyond any realistic key set.
const maxDepth = 40

// zeroHashes[i] is the hash of an empty subtree of height i.
var zeroHashes = func() [maxDepth + 1]common.Hash {
	var zeros [maxDepth + 1]common.Hash
	for i := 1; i <= maxDepth; i++ {
		zeros[i] = crypto.Keccak256Hash(zeros[i-1][:], zeros[i-1][:])
	}
	return zeros
}()

// Accumulator is an incrementally updatable Merkle commitment over a keyed
// leaf set. It is not safe for concurrent use.
type Accumulator struct {
	depth    int
	keyIndex map[common.Hash]uint64
	keys     []common.Hash
	leaves   []common.Hash
	// nodes holds every computed internal hash, keyed by level then index.
	// Level 0 is the leaf layer; level depth holds the root at index 0.
	// Absent entries are empty subtrees.
	nodes map[int]map[uint64]common.Hash
	root  common.Hash
}

// UpdateRecord captures enough pre-state to undo a single Update. The
// chronicle keeps one while a composite root is in flight to the aggregator
// and replays it if the aggregator rejects the commitment.
type UpdateRecord struct {
	Key       common.Hash
	Index     uint64
	Previous  common.Hash
	Inserted  bool
	PrevDepth int
}

// New returns an empty accumulator. Its root is the empty-leaf sentinel.
func New() *Accumulator {
	return &Accumulator{
		keyIndex: make(map[common.Hash]uint64),
		nodes:    map[int]map[uint64]common.Hash{0: {}},
		root:     zeroHashes[0],
	}
}

// Update sets the leaf for key to value, assigning the key the next
// sequential leaf index if it has never been seen, and growing the tree by
// one level whenever the leaf count exceeds the current capacity. The
// returned record identifies the leaf and carries the undo state.
func (a *Accumulator) Update(key, value common.Hash) UpdateRecord {
	rec := UpdateRecord{Key: key, PrevDepth: a.depth}
	index, seen := a.keyIndex[key]
	if !seen {
		index = uint64(len(a.leaves))
		a.keyIndex[key] = index
		a.keys = append(a.keys, key)
		a.leaves = append(a.leaves, value)
		rec.Inserted = true
		for index >= a.capacity() {
			a.depth++
		}
	} else {
		rec.Previous = a.leaves[index]
		a.leaves[index] = value
	}
	rec.Index = index
	a.rehashPath(index, value)
	return rec
}

// Revert undoes the update described by rec, restoring the leaf set, index
// assignment, depth, and root to their prior values. It must be called with
// the record of the most recent Update.
func (a *Accumulator) Revert(rec UpdateRecord) {
	if rec.Inserted {
		delete(a.keyIndex, rec.Key)
		a.keys = a.keys[:len(a.keys)-1]
		a.leaves = a.leaves[:len(a.leaves)-1]
		delete(a.nodes[0], rec.Index)
		a.depth = rec.PrevDepth
		a.rehashPath(rec.Index, zeroHashes[0])
		if len(a.leaves) == 0 {
			a.root = zeroHashes[a.depth]
		}
		return
	}
	a.leaves[rec.Index] = rec.Previous
	a.rehashPath(rec.Index, rec.Previous)
}

// Root returns the cached root reflecting every update applied so far.
func (a *Accumulator) Root() common.Hash {
	return a.root
}

// Index reports the leaf index assigned to key, if it has one.
func (a *Accumulator) Index(key common.Hash) (uint64, bool) {
	index, ok := a.keyIndex[key]
	return index, ok
}

// Value returns the current leaf value for key, if the key has been written.
func (a *Accumulator) Value(key common.Hash) (common.Hash, bool) {
	index, ok := a.keyIndex[key]
	if !ok {
		return common.Hash{}, false
	}
	return a.leaves[index], true
}

// Keys returns every key in leaf-index order.
func (a *Accumulator) Keys() []common.Hash {
	return append([]common.Hash(nil), a.keys...)
}

// LeafCount returns the number of keys ever written.
func (a *Accumulator) LeafCount() uint64 {
	return uint64(len(a.leaves))
}

// Depth returns the current height of the tree.
func (a *Accumulator) Depth() int {
	return a.depth
}

func (a *Accumulator) capacity() uint64 {
	return 1 << uint(a.depth)
}

func (a *Accumulator) node(level int, index uint64) common.Hash {
	if byIndex, ok := a.nodes[level]; ok {
		if h, ok := byIndex[index]; ok {
			return h
		}
	}
	return zeroHashes[level]
}

func (a *Accumulator) setNode(level int, index uint64, h common.Hash) {
	byIndex, ok := a.nodes[level]
	if !ok {
		byIndex = make(map[uint64]common.Hash)
		a.nodes[level] = byIndex
	}
	byIndex[index] = h
}

// rehashPath writes the leaf hash at index and recomputes every ancestor up
// to the current depth. Sibling subtrees that were never populated resolve
// to the per-level sentinel, so growth after a capacity doubling needs no
// rehash of existing leaves.
func (a *Accumulator) rehashPath(index uint64, leaf common.Hash) {
	a.setNode(0, index, leaf)
	idx := index
	for level := 1; level <= a.depth; level++ {
		idx >>= 1
		left := a.node(level-1, idx*2)
		right := a.node(level-1, idx*2+1)
		a.setNode(level, idx, crypto.Keccak256Hash(left[:], right[:]))
	}
	a.root = a.node(a.depth, 0)
}
