package tracker

import (
	"github.com/iotaledger/hive.go/ds/shrinkingmap"
)

type outcomeKey struct {
	blockID BlockID
	txID    TransactionID
}

// outcomeCache memoizes the oracle's verdicts per (block, transaction) pair so that each
// pair triggers at most one validity/success lookup, ever. The cached value is
// authoritative: once present it is served without consulting the oracle again.
type outcomeCache struct {
	oracle Oracle

	outcomesByKey *shrinkingmap.ShrinkingMap[outcomeKey, *Outcome]
}

func newOutcomeCache(oracle Oracle) *outcomeCache {
	return &outcomeCache{
		oracle:        oracle,
		outcomesByKey: shrinkingmap.New[outcomeKey, *Outcome](),
	}
}

// Outcome returns the verdict for the given (block, transaction) pair, computing it
// through the oracle on first access. Success is only looked up for valid transactions.
func (c *outcomeCache) Outcome(blockID BlockID, txID TransactionID) *Outcome {
	outcome, _ := c.outcomesByKey.GetOrCreate(outcomeKey{blockID: blockID, txID: txID}, func() *Outcome {
		newOutcome := &Outcome{BlockID: blockID}
		if newOutcome.Valid = c.oracle.IsTransactionValid(blockID, txID); newOutcome.Valid {
			newOutcome.Successful = c.oracle.IsTransactionSuccessful(blockID, txID)
		}

		return newOutcome
	})

	return outcome
}

// EvictBlock drops all cached verdicts that reference the given block. It is called once
// a block is unpinned, at which point no future notification can need them.
func (c *outcomeCache) EvictBlock(blockID BlockID) {
	var evictableKeys []outcomeKey
	c.outcomesByKey.ForEachKey(func(key outcomeKey) bool {
		if key.blockID == blockID {
			evictableKeys = append(evictableKeys, key)
		}

		return true
	})

	for _, key := range evictableKeys {
		c.outcomesByKey.Delete(key)
	}
}

// Size returns the number of cached verdicts.
func (c *outcomeCache) Size() int {
	return c.outcomesByKey.Size()
}
