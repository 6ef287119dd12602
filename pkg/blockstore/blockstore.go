// Package blockstore provides a pinned, kvstore-backed block store that serves as the
// chain oracle for the lifecycle tracker: it answers body, validity and success queries
// from stored block records and releases records on unpin hints.
package blockstore

import (
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/kvstore/mapdb"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/hive.go/runtime/syncutils"

	"github.com/settletrack/settletrack/pkg/tracker"
)

// BlockStore keeps block bodies and transaction verdicts retrievable until they are
// unpinned. Missing blocks yield empty answers, never errors, which keeps the oracle
// contract total.
type BlockStore struct {
	blocks *kvstore.TypedStore[tracker.BlockID, *BlockData]

	underlyingStore kvstore.KVStore

	mutex syncutils.RWMutex

	log.Logger
}

var _ tracker.Oracle = (*BlockStore)(nil)

// New creates a new BlockStore. Unless overridden via WithKVStore, records live in an
// in-memory map store.
func New(logger log.Logger, opts ...options.Option[BlockStore]) *BlockStore {
	return options.Apply(&BlockStore{
		Logger: logger,
	}, opts, func(b *BlockStore) {
		if b.underlyingStore == nil {
			b.underlyingStore = mapdb.NewMapDB()
		}

		b.blocks = kvstore.NewTypedStore(b.underlyingStore,
			blockIDToBytes,
			blockIDFromBytes,
			(*BlockData).Bytes,
			blockDataFromBytes,
		)
	})
}

// WithKVStore sets the underlying key-value store the block records are kept in.
func WithKVStore(store kvstore.KVStore) options.Option[BlockStore] {
	return func(b *BlockStore) {
		b.underlyingStore = store
	}
}

// StoreBlock pins the given block data under the given identifier.
func (b *BlockStore) StoreBlock(blockID tracker.BlockID, blockData *BlockData) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.blocks.Set(blockID, blockData)
}

// Block returns the stored data of the given block.
func (b *BlockStore) Block(blockID tracker.BlockID) (blockData *BlockData, exists bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return b.block(blockID)
}

func (b *BlockStore) block(blockID tracker.BlockID) (blockData *BlockData, exists bool) {
	blockData, err := b.blocks.Get(blockID)
	if err != nil {
		return nil, false
	}

	return blockData, true
}

// BlockBody returns the ordered transactions of the given block, or nil if the block is
// not stored.
func (b *BlockStore) BlockBody(blockID tracker.BlockID) (txIDs []tracker.TransactionID) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	blockData, exists := b.block(blockID)
	if !exists {
		return nil
	}

	txIDs = make([]tracker.TransactionID, 0, len(blockData.Transactions))
	for _, txRecord := range blockData.Transactions {
		txIDs = append(txIDs, txRecord.ID)
	}

	return txIDs
}

// IsTransactionValid reports whether the transaction is recorded as valid within the
// given block.
func (b *BlockStore) IsTransactionValid(blockID tracker.BlockID, txID tracker.TransactionID) bool {
	txRecord, exists := b.transactionRecord(blockID, txID)

	return exists && txRecord.Valid
}

// IsTransactionSuccessful reports whether the transaction is recorded as successful
// within the given block.
func (b *BlockStore) IsTransactionSuccessful(blockID tracker.BlockID, txID tracker.TransactionID) bool {
	txRecord, exists := b.transactionRecord(blockID, txID)

	return exists && txRecord.Successful
}

// Unpin drops the records of the given blocks. Unknown identifiers are ignored, so
// redundant unpin hints are safe.
func (b *BlockStore) Unpin(blockIDs []tracker.BlockID) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, blockID := range blockIDs {
		if err := b.blocks.Delete(blockID); err != nil {
			b.LogDebug("failed to unpin block", "blockID", blockID, "err", err)
		}
	}
}

// PinnedBlocks returns the identifiers of all stored blocks.
func (b *BlockStore) PinnedBlocks() (blockIDs []tracker.BlockID) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if err := b.blocks.IterateKeys(kvstore.EmptyPrefix, func(blockID tracker.BlockID) bool {
		blockIDs = append(blockIDs, blockID)

		return true
	}); err != nil {
		b.LogDebug("failed to iterate pinned blocks", "err", err)
	}

	return blockIDs
}

// Size returns the number of stored blocks.
func (b *BlockStore) Size() int {
	return len(b.PinnedBlocks())
}

func (b *BlockStore) transactionRecord(blockID tracker.BlockID, txID tracker.TransactionID) (*TransactionRecord, bool) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	blockData, exists := b.block(blockID)
	if !exists {
		return nil, false
	}

	for _, txRecord := range blockData.Transactions {
		if txRecord.ID == txID {
			return txRecord, true
		}
	}

	return nil, false
}
