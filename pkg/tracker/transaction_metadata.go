package tracker

// TransactionState describes how far a transaction has progressed through its lifecycle.
type TransactionState byte

const (
	// TransactionStatePending is the state of a transaction that was submitted but not yet
	// included in a block.
	TransactionStatePending TransactionState = iota

	// TransactionStateSettled is the state of a transaction that was included in a block
	// which is not yet finalized.
	TransactionStateSettled

	// TransactionStateDone is the state of a transaction whose settlement block was
	// finalized, either directly or through one of its descendants.
	TransactionStateDone
)

func (t TransactionState) String() string {
	switch t {
	case TransactionStatePending:
		return "pending"
	case TransactionStateSettled:
		return "settled"
	case TransactionStateDone:
		return "done"
	default:
		return "unknown"
	}
}

// transactionMetadata is the tracker-owned state of a single transaction. The settlement
// block is set exactly once, on the transition to TransactionStateSettled, and never
// changes afterwards.
type transactionMetadata struct {
	state           TransactionState
	settlementBlock BlockID
}
