package tracker

import (
	"github.com/iotaledger/hive.go/ds"
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ds/walker"
)

// blockMetadata is the tracker-owned state of a single known block.
type blockMetadata struct {
	parent BlockID

	// height is assigned at ingestion time: one more than the parent's height if the
	// parent is known, otherwise 1 (the block is treated as a chain root). It makes
	// "older than the finalized block" well-defined for the prune decision.
	height uint64
}

// blockTree records the parent link of every block seen so far. Membership doubles as the
// pin set: a block stays in the tree exactly as long as the external store must keep it
// retrievable.
type blockTree struct {
	blocksByID *shrinkingmap.ShrinkingMap[BlockID, *blockMetadata]
}

func newBlockTree() *blockTree {
	return &blockTree{
		blocksByID: shrinkingmap.New[BlockID, *blockMetadata](),
	}
}

// Add records the block and its parent link. It returns false if the block was already
// known.
func (b *blockTree) Add(blockID BlockID, parentID BlockID) (added bool) {
	if b.blocksByID.Has(blockID) {
		return false
	}

	height := uint64(1)
	if parentMetadata, parentKnown := b.blocksByID.Get(parentID); parentKnown {
		height = parentMetadata.height + 1
	}

	b.blocksByID.Set(blockID, &blockMetadata{
		parent: parentID,
		height: height,
	})

	return true
}

// Has reports whether the given block is known (and therefore pinned).
func (b *blockTree) Has(blockID BlockID) bool {
	return b.blocksByID.Has(blockID)
}

// Height returns the ingestion-time height of the given block.
func (b *blockTree) Height(blockID BlockID) (height uint64, exists bool) {
	blockMeta, exists := b.blocksByID.Get(blockID)
	if !exists {
		return 0, false
	}

	return blockMeta.height, true
}

// Blocks returns the identifiers of all known blocks.
func (b *blockTree) Blocks() (blockIDs []BlockID) {
	b.blocksByID.ForEachKey(func(blockID BlockID) bool {
		blockIDs = append(blockIDs, blockID)

		return true
	})

	return blockIDs
}

// Ancestry collects the given block and all of its known ancestors by following parent
// links until the first missing parent, which is treated as the chain root. An unknown
// block yields an empty set. The walk is guarded against cycles even though none should
// occur on a well-formed chain.
func (b *blockTree) Ancestry(blockID BlockID) (ancestors ds.Set[BlockID]) {
	ancestors = ds.NewSet[BlockID]()

	for ancestryWalker := walker.New[BlockID](false).Push(blockID); ancestryWalker.HasNext(); {
		currentID := ancestryWalker.Next()

		blockMeta, exists := b.blocksByID.Get(currentID)
		if !exists {
			continue
		}

		ancestors.Add(currentID)
		ancestryWalker.Push(blockMeta.parent)
	}

	return ancestors
}

// Prune removes every block that can no longer be needed once the given block is
// finalized: ancestors strictly older than the finalized block itself, and blocks on
// abandoned forks, i.e. non-ancestors at or below the finalized block's height. The
// finalized block and all blocks above it stay pinned because future events may still
// reference them.
func (b *blockTree) Prune(finalizedID BlockID, ancestors ds.Set[BlockID]) (unpinnable []BlockID) {
	finalizedMeta, exists := b.blocksByID.Get(finalizedID)
	if !exists {
		return nil
	}

	b.blocksByID.ForEach(func(blockID BlockID, blockMeta *blockMetadata) bool {
		if blockID == finalizedID {
			return true
		}

		if ancestors.Has(blockID) || blockMeta.height <= finalizedMeta.height {
			unpinnable = append(unpinnable, blockID)
		}

		return true
	})

	for _, blockID := range unpinnable {
		b.blocksByID.Delete(blockID)
	}

	return unpinnable
}
