package merkle

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func hashOf(s string) common.Hash {
	return crypto.Keccak256Hash([]byte(s))
}

func TestFirstUpdateAssignsIndexZero(t *testing.T) {
	acc := New()
	rec := acc.Update(hashOf("alice"), hashOf("v1"))
	require.True(t, rec.Inserted)
	require.Equal(t, uint64(0), rec.Index)
	require.Equal(t, uint64(1), acc.LeafCount())
	require.Equal(t, 0, acc.Depth())
}

func TestIndicesAreStableAcrossUpdates(t *testing.T) {
	acc := New()
	first := acc.Update(hashOf("alice"), hashOf("v1"))
	second := acc.Update(hashOf("bob"), hashOf("v2"))
	again := acc.Update(hashOf("alice"), hashOf("v3"))

	require.Equal(t, uint64(0), first.Index)
	require.Equal(t, uint64(1), second.Index)
	require.Equal(t, first.Index, again.Index)
	require.False(t, again.Inserted)

	value, ok := acc.Value(hashOf("alice"))
	require.True(t, ok)
	require.Equal(t, hashOf("v3"), value)
}

func TestCapacityDoublesAsLeavesGrow(t *testing.T) {
	acc := New()
	for i := 0; i < 9; i++ {
		acc.Update(hashOf(fmt.Sprintf("key-%d", i)), hashOf("v"))
	}
	// 9 leaves need a depth-4 tree (capacity 16).
	require.Equal(t, 4, acc.Depth())
	require.Equal(t, uint64(9), acc.LeafCount())
}

func TestRootIsPureFunctionOfUpdateSequence(t *testing.T) {
	sequence := []struct {
		key, value string
	}{
		{"alice", "10"},
		{"bob", "20"},
		{"carol", "30"},
		{"alice", "15"},
		{"dave", "40"},
		{"bob", "5"},
	}

	a, b := New(), New()
	for _, step := range sequence {
		a.Update(hashOf(step.key), hashOf(step.value))
	}
	for _, step := range sequence {
		b.Update(hashOf(step.key), hashOf(step.value))
	}
	require.Equal(t, a.Root(), b.Root())
}

func TestInsertionOrderChangesRoot(t *testing.T) {
	a, b := New(), New()
	a.Update(hashOf("alice"), hashOf("10"))
	a.Update(hashOf("bob"), hashOf("20"))
	b.Update(hashOf("bob"), hashOf("20"))
	b.Update(hashOf("alice"), hashOf("10"))
	// Leaf placement is first-seen order, so swapped insertion order must
	// yield a different commitment even for identical content.
	require.NotEqual(t, a.Root(), b.Root())
}

func TestRootMatchesManualTwoLeafComputation(t *testing.T) {
	acc := New()
	left := hashOf("left")
	right := hashOf("right")
	acc.Update(hashOf("a"), left)
	acc.Update(hashOf("b"), right)

	want := crypto.Keccak256Hash(left[:], right[:])
	require.Equal(t, want, acc.Root())
}

func TestGrowthTreatsMissingLeavesAsEmptySentinel(t *testing.T) {
	acc := New()
	leaf := hashOf("only")
	acc.Update(hashOf("a"), leaf)
	acc.Update(hashOf("b"), hashOf("other"))
	acc.Update(hashOf("c"), hashOf("third"))

	// Depth 2, leaves [a, b, c, empty].
	var empty common.Hash
	other := hashOf("other")
	third := hashOf("third")
	leftPair := crypto.Keccak256Hash(leaf[:], other[:])
	rightPair := crypto.Keccak256Hash(third[:], empty[:])
	want := crypto.Keccak256Hash(leftPair[:], rightPair[:])
	require.Equal(t, want, acc.Root())
}

func TestRevertRestoresOverwrittenLeaf(t *testing.T) {
	acc := New()
	acc.Update(hashOf("alice"), hashOf("10"))
	acc.Update(hashOf("bob"), hashOf("20"))
	rootBefore := acc.Root()

	rec := acc.Update(hashOf("alice"), hashOf("99"))
	require.NotEqual(t, rootBefore, acc.Root())

	acc.Revert(rec)
	require.Equal(t, rootBefore, acc.Root())
	value, ok := acc.Value(hashOf("alice"))
	require.True(t, ok)
	require.Equal(t, hashOf("10"), value)
}

func TestRevertRemovesFreshInsert(t *testing.T) {
	acc := New()
	acc.Update(hashOf("alice"), hashOf("10"))
	rootBefore := acc.Root()
	depthBefore := acc.Depth()

	rec := acc.Update(hashOf("bob"), hashOf("20"))
	acc.Revert(rec)

	require.Equal(t, rootBefore, acc.Root())
	require.Equal(t, depthBefore, acc.Depth())
	require.Equal(t, uint64(1), acc.LeafCount())
	_, ok := acc.Index(hashOf("bob"))
	require.False(t, ok)

	// Re-inserting after the revert assigns the freed index again.
	redo := acc.Update(hashOf("carol"), hashOf("30"))
	require.Equal(t, uint64(1), redo.Index)
}

func TestRevertFirstInsertYieldsEmptyRoot(t *testing.T) {
	acc := New()
	rec := acc.Update(hashOf("alice"), hashOf("10"))
	acc.Revert(rec)
	require.Equal(t, New().Root(), acc.Root())
	require.Equal(t, uint64(0), acc.LeafCount())
}
