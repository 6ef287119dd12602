package tracker

import (
	"context"

	"github.com/iotaledger/hive.go/ds"
	"github.com/iotaledger/hive.go/ds/orderedmap"
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
	"github.com/iotaledger/hive.go/ds/types"
	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/syncutils"
)

// Tracker follows transactions from submission through settlement to finalization. It
// consumes the inbound event feed, decides when to emit the settled and done
// notifications, and decides which blocks become safe to release from the external store.
//
// The Tracker is the sole owner of its state. Events are processed to completion one at a
// time; the mutex only shields the read API against a concurrently dispatching caller.
type Tracker struct {
	Events *Events

	oracle Oracle

	transactionsByID *shrinkingmap.ShrinkingMap[TransactionID, *transactionMetadata]
	arrivalQueue     *orderedmap.OrderedMap[TransactionID, types.Empty]
	blockTree        *blockTree
	outcomes         *outcomeCache

	mutex syncutils.RWMutex

	log.Logger
}

// New creates a new Tracker that settles against the given oracle.
func New(logger log.Logger, oracle Oracle) *Tracker {
	return &Tracker{
		Events:           NewEvents(),
		Logger:           logger,
		oracle:           oracle,
		transactionsByID: shrinkingmap.New[TransactionID, *transactionMetadata](),
		arrivalQueue:     orderedmap.New[TransactionID, types.Empty](),
		blockTree:        newBlockTree(),
		outcomes:         newOutcomeCache(oracle),
	}
}

// ProcessEvent dispatches a single inbound event. Unrecognized events are ignored.
func (t *Tracker) ProcessEvent(trackerEvent Event) {
	switch typedEvent := trackerEvent.(type) {
	case *NewBlockEvent:
		t.OnNewBlock(typedEvent.Block, typedEvent.Parent)
	case *NewTransactionEvent:
		t.OnNewTransaction(typedEvent.Transaction)
	case *FinalizedEvent:
		t.OnFinalized(typedEvent.Block)
	default:
		t.LogDebug("ignoring unrecognized event", "event", trackerEvent)
	}
}

// Run consumes the given event feed until the context is cancelled or the feed is closed.
// Each event is fully processed before the next one is accepted.
func (t *Tracker) Run(ctx context.Context, trackerEvents <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case trackerEvent, ok := <-trackerEvents:
			if !ok {
				return nil
			}

			t.ProcessEvent(trackerEvent)
		}
	}
}

// OnNewBlock records the block's parent link and settles every not yet settled
// transaction in its body, in body order. Transactions appearing unannounced in the body
// arrive and settle simultaneously.
func (t *Tracker) OnNewBlock(blockID BlockID, parentID BlockID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.blockTree.Add(blockID, parentID) {
		t.LogDebug("ignoring already known block", "blockID", blockID)

		return
	}

	t.LogTrace("block pinned", "blockID", blockID, "parentID", parentID)

	for _, txID := range t.oracle.BlockBody(blockID) {
		t.settleTransaction(txID, blockID)
	}
}

// OnNewTransaction registers a submitted transaction as pending. Duplicate submissions
// are no-ops, which keeps the first-seen arrival order intact even if the same
// transaction is announced multiple times or has already settled.
func (t *Tracker) OnNewTransaction(txID TransactionID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.transactionsByID.Has(txID) {
		t.LogTrace("ignoring duplicate transaction submission", "txID", txID)

		return
	}

	t.transactionsByID.Set(txID, &transactionMetadata{state: TransactionStatePending})
	t.arrivalQueue.Set(txID, types.Void)

	t.LogTrace("transaction pending", "txID", txID)
}

// OnFinalized finalizes the given block and all of its known ancestors (finalization is
// retroactive and transitive, covering skipped Finalized events). Settled transactions
// whose settlement block is covered become done and are reported in arrival order.
// Afterwards, blocks that can no longer be needed are unpinned as a batch. A block never
// announced via NewBlock yields an empty ancestry and is ignored.
func (t *Tracker) OnFinalized(blockID BlockID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	finalizedBlocks := t.blockTree.Ancestry(blockID)
	if finalizedBlocks.IsEmpty() {
		t.LogDebug("ignoring finalization of unknown block", "blockID", blockID)

		return
	}

	for _, txID := range t.settledTransactionsIn(finalizedBlocks) {
		t.completeTransaction(txID)
	}

	unpinnedBlocks := t.blockTree.Prune(blockID, finalizedBlocks)
	if len(unpinnedBlocks) == 0 {
		return
	}

	for _, unpinnedID := range unpinnedBlocks {
		t.outcomes.EvictBlock(unpinnedID)
	}

	t.LogDebug("unpinning blocks", "blockIDs", unpinnedBlocks)

	t.oracle.Unpin(unpinnedBlocks)
	t.Events.BlocksUnpinned.Trigger(unpinnedBlocks)
}

// settleTransaction moves the transaction to the settled state and emits the settlement
// notification. A transaction that already settled is skipped: the first settlement wins,
// even if it unexpectedly reappears in a later block body.
func (t *Tracker) settleTransaction(txID TransactionID, blockID BlockID) {
	txMeta, exists := t.transactionsByID.Get(txID)
	if exists && txMeta.state != TransactionStatePending {
		t.LogTrace("ignoring already settled transaction", "txID", txID, "blockID", blockID)

		return
	}

	if !exists {
		txMeta = &transactionMetadata{state: TransactionStatePending}
		t.transactionsByID.Set(txID, txMeta)
		t.arrivalQueue.Set(txID, types.Void)
	}

	outcome := t.outcomes.Outcome(blockID, txID)

	txMeta.state = TransactionStateSettled
	txMeta.settlementBlock = blockID

	t.LogTrace("transaction settled", "txID", txID, "outcome", outcome)

	t.Events.TransactionSettled.Trigger(txID, outcome)
}

// completeTransaction moves a settled transaction to the done state, drops its arrival
// queue entry and emits the completion notification with the outcome computed at
// settlement time.
func (t *Tracker) completeTransaction(txID TransactionID) {
	txMeta, exists := t.transactionsByID.Get(txID)
	if !exists || txMeta.state != TransactionStateSettled {
		panic(ierrors.Errorf("transaction %s cannot become done: invalid tracking state", txID))
	}

	outcome := t.outcomes.Outcome(txMeta.settlementBlock, txID)

	txMeta.state = TransactionStateDone
	t.arrivalQueue.Delete(txID)

	t.LogTrace("transaction done", "txID", txID, "outcome", outcome)

	t.Events.TransactionDone.Trigger(txID, outcome)
}

// settledTransactionsIn returns the settled transactions whose settlement block is in the
// given set, in their original arrival order.
func (t *Tracker) settledTransactionsIn(blockIDs ds.Set[BlockID]) (txIDs []TransactionID) {
	t.arrivalQueue.ForEach(func(txID TransactionID, _ types.Empty) bool {
		if txMeta, exists := t.transactionsByID.Get(txID); exists &&
			txMeta.state == TransactionStateSettled && blockIDs.Has(txMeta.settlementBlock) {
			txIDs = append(txIDs, txID)
		}

		return true
	})

	return txIDs
}

// TransactionState returns the current lifecycle state of the given transaction.
func (t *Tracker) TransactionState(txID TransactionID) (state TransactionState, known bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	txMeta, exists := t.transactionsByID.Get(txID)
	if !exists {
		return 0, false
	}

	return txMeta.state, true
}

// SettlementBlock returns the block the given transaction settled in. It is only set once
// the transaction reached the settled state.
func (t *Tracker) SettlementBlock(txID TransactionID) (blockID BlockID, exists bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	txMeta, exists := t.transactionsByID.Get(txID)
	if !exists || txMeta.state == TransactionStatePending {
		return EmptyBlockID, false
	}

	return txMeta.settlementBlock, true
}

// PinnedBlocks returns the blocks the tracker still needs the external store to retain.
func (t *Tracker) PinnedBlocks() []BlockID {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.blockTree.Blocks()
}

// IsBlockPinned reports whether the given block is still pinned.
func (t *Tracker) IsBlockPinned(blockID BlockID) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.blockTree.Has(blockID)
}
