package tracker

import (
	"github.com/iotaledger/hive.go/stringify"
)

// Outcome is the verdict for a transaction within its settlement block. It is computed at
// most once per (block, transaction) pair and is immutable afterwards: the validity and
// success of a transaction within a specific block never change.
type Outcome struct {
	// BlockID is the block the transaction settled in.
	BlockID BlockID

	// Valid reports whether the transaction is valid within the settlement block.
	Valid bool

	// Successful reports whether the valid transaction executed successfully. It is only
	// meaningful if Valid is true.
	Successful bool
}

func (o *Outcome) String() string {
	return stringify.Struct("Outcome",
		stringify.NewStructField("blockID", string(o.BlockID)),
		stringify.NewStructField("valid", o.Valid),
		stringify.NewStructField("successful", o.Successful),
	)
}
