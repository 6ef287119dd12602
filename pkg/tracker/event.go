package tracker

// Event is the tagged union of inbound events the tracker consumes. Events outside this
// union are ignored by the dispatcher.
type Event interface {
	trackerEvent()
}

// NewBlockEvent announces a block together with its parent reference.
type NewBlockEvent struct {
	Block  BlockID
	Parent BlockID
}

// NewTransactionEvent announces the submission of a transaction.
type NewTransactionEvent struct {
	Transaction TransactionID
}

// FinalizedEvent announces that a block was finalized. Not every finalized block is
// announced individually: finalizing a block implies finalization of all its ancestors.
type FinalizedEvent struct {
	Block BlockID
}

func (e *NewBlockEvent) trackerEvent()       {}
func (e *NewTransactionEvent) trackerEvent() {}
func (e *FinalizedEvent) trackerEvent()      {}
