package tracker

// BlockID uniquely identifies a block on the chain. It is opaque to the tracker and only
// ever compared for equality or passed back to the oracle.
type BlockID string

// TransactionID uniquely identifies a transaction.
type TransactionID string

// EmptyBlockID is the zero value of a BlockID.
var EmptyBlockID = BlockID("")
