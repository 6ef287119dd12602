package tracker

import (
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/runtime/event"
)

// Events exposes the notifications produced by the Tracker. Triggering is synchronous, so
// the order in which hooks are invoked is exactly the order in which the tracker emits.
type Events struct {
	// TransactionSettled is triggered exactly once per transaction, when the block that
	// first includes it is processed. Transactions settling in the same block are emitted
	// in block-body order.
	TransactionSettled *event.Event2[TransactionID, *Outcome]

	// TransactionDone is triggered exactly once per transaction, when its settlement block
	// is finalized. Transactions completing on the same finalization are emitted in their
	// original arrival order.
	TransactionDone *event.Event2[TransactionID, *Outcome]

	// BlocksUnpinned is triggered with the batch of blocks that became releasable after a
	// finalization.
	BlocksUnpinned *event.Event1[[]BlockID]

	event.Group[Events, *Events]
}

// NewEvents creates a new Events instance.
var NewEvents = event.CreateGroupConstructor(func() *Events {
	return &Events{
		TransactionSettled: event.New2[TransactionID, *Outcome](),
		TransactionDone:    event.New2[TransactionID, *Outcome](),
		BlocksUnpinned:     event.New1[[]BlockID](),
	}
})

// Sink is a consumer of ordered lifecycle notifications.
type Sink interface {
	OnTransactionSettled(txID TransactionID, outcome *Outcome)
	OnTransactionDone(txID TransactionID, outcome *Outcome)
}

// AttachSink subscribes the given sink to the settlement and completion notifications and
// returns a function that detaches it again.
func (t *Tracker) AttachSink(sink Sink) (detach func()) {
	return lo.Batch(
		t.Events.TransactionSettled.Hook(sink.OnTransactionSettled).Unhook,
		t.Events.TransactionDone.Hook(sink.OnTransactionDone).Unhook,
	)
}
