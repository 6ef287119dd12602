package tracker

// Oracle is the synchronous, read-only view of the chain the tracker settles against. It
// is assumed total and truthful: every method returns an answer, never an error, and the
// answer for a given (block, transaction) pair never changes.
//
// The tracker caches validity and success verdicts, so each pair is looked up at most
// once over the tracker's lifetime.
type Oracle interface {
	// BlockBody returns the ordered list of transactions included in the given block.
	BlockBody(blockID BlockID) []TransactionID

	// IsTransactionValid reports whether the transaction is valid within the given block.
	IsTransactionValid(blockID BlockID, txID TransactionID) bool

	// IsTransactionSuccessful reports whether the transaction executed successfully within
	// the given block. The answer is only meaningful for valid transactions.
	IsTransactionSuccessful(blockID BlockID, txID TransactionID) bool

	// Unpin signals that the given blocks are no longer needed by the tracker. It is a
	// fire-and-forget hint and safe to call redundantly.
	Unpin(blockIDs []BlockID)
}
