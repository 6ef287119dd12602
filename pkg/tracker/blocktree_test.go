package tracker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/ds"
	"github.com/iotaledger/hive.go/lo"
)

func TestBlockTreeHeights(t *testing.T) {
	tree := newBlockTree()

	// a block with an unknown parent is treated as a chain root
	require.True(t, tree.Add("b1", "genesis"))
	require.Equal(t, uint64(1), lo.Return1(tree.Height("b1")))

	require.True(t, tree.Add("b2", "b1"))
	require.Equal(t, uint64(2), lo.Return1(tree.Height("b2")))

	// duplicates are rejected and leave the recorded height untouched
	require.False(t, tree.Add("b2", "genesis"))
	require.Equal(t, uint64(2), lo.Return1(tree.Height("b2")))

	_, exists := tree.Height("unknown")
	require.False(t, exists)
}

func TestBlockTreeAncestry(t *testing.T) {
	tree := newBlockTree()

	tree.Add("b1", "genesis")
	tree.Add("b2", "b1")
	tree.Add("b3", "b2")
	tree.Add("f1", "genesis")

	// the walk includes the starting block and stops at the first missing parent
	ancestors := tree.Ancestry("b3")
	require.Equal(t, 3, ancestors.Size())
	require.True(t, ancestors.Has("b1"))
	require.True(t, ancestors.Has("b2"))
	require.True(t, ancestors.Has("b3"))
	require.False(t, ancestors.Has("f1"))

	// an unknown block yields an empty set
	require.True(t, tree.Ancestry("unknown").IsEmpty())
}

func TestBlockTreeAncestryCycle(t *testing.T) {
	tree := newBlockTree()

	// a malformed parent cycle must not hang the walk
	tree.Add("a", "b")
	tree.Add("b", "a")

	ancestors := tree.Ancestry("b")
	require.Equal(t, 2, ancestors.Size())
}

func TestBlockTreePrune(t *testing.T) {
	tree := newBlockTree()

	tree.Add("b1", "genesis")
	tree.Add("b2", "b1")
	tree.Add("b3", "b2")
	tree.Add("f1", "genesis")
	tree.Add("f2", "f1")
	tree.Add("f3", "f2")

	unpinnable := tree.Prune("b2", tree.Ancestry("b2"))

	// b1 is an older ancestor, f1 and f2 sit at or below the finalized height
	require.ElementsMatch(t, []BlockID{"b1", "f1", "f2"}, unpinnable)

	// the finalized block and everything above it stay pinned
	require.ElementsMatch(t, []BlockID{"b2", "b3", "f3"}, tree.Blocks())

	// pruning against an unknown block is a no-op
	require.Empty(t, tree.Prune("unknown", ds.NewSet[BlockID]()))
	require.ElementsMatch(t, []BlockID{"b2", "b3", "f3"}, tree.Blocks())
}
