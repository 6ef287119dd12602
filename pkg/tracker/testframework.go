package tracker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/log"
)

// TestFramework drives a Tracker against a scriptable mock oracle and records every
// notification it emits. The at-most-once and ordering invariants are enforced directly
// in the notification hooks, so any violating event sequence fails the test at the point
// of emission.
type TestFramework struct {
	Instance *Tracker
	Oracle   *MockOracle

	test *testing.T

	parentsByBlock map[BlockID]BlockID

	notificationLog []string
	settledOutcomes map[TransactionID]*Outcome
	doneOutcomes    map[TransactionID]*Outcome
	unpinnedBatches [][]BlockID
}

func NewTestFramework(test *testing.T) *TestFramework {
	t := &TestFramework{
		test:            test,
		Oracle:          NewMockOracle(),
		parentsByBlock:  make(map[BlockID]BlockID),
		settledOutcomes: make(map[TransactionID]*Outcome),
		doneOutcomes:    make(map[TransactionID]*Outcome),
	}

	t.Instance = New(log.NewLogger().NewChildLogger(test.Name()), t.Oracle)

	t.Instance.Events.TransactionSettled.Hook(func(txID TransactionID, outcome *Outcome) {
		_, alreadySettled := t.settledOutcomes[txID]
		require.False(test, alreadySettled, "duplicate settled notification for transaction %s", txID)

		t.settledOutcomes[txID] = outcome
		t.notificationLog = append(t.notificationLog, fmt.Sprintf("settled:%s", txID))
	})

	t.Instance.Events.TransactionDone.Hook(func(txID TransactionID, outcome *Outcome) {
		_, alreadyDone := t.doneOutcomes[txID]
		require.False(test, alreadyDone, "duplicate done notification for transaction %s", txID)

		_, wasSettled := t.settledOutcomes[txID]
		require.True(test, wasSettled, "done notification for transaction %s precedes its settled notification", txID)

		t.doneOutcomes[txID] = outcome
		t.notificationLog = append(t.notificationLog, fmt.Sprintf("done:%s", txID))
	})

	t.Instance.Events.BlocksUnpinned.Hook(func(blockIDs []BlockID) {
		t.unpinnedBatches = append(t.unpinnedBatches, blockIDs)
	})

	return t
}

// CreateBlock registers a block body with the oracle. All transactions are valid and
// successful unless marked otherwise before the block is issued.
func (t *TestFramework) CreateBlock(alias string, parentAlias string, txAliases ...string) {
	txIDs := make([]TransactionID, 0, len(txAliases))
	for _, txAlias := range txAliases {
		txIDs = append(txIDs, TransactionID(txAlias))
	}

	t.parentsByBlock[BlockID(alias)] = BlockID(parentAlias)
	t.Oracle.SetBlockBody(BlockID(alias), txIDs)
}

// MarkTransactionInvalid scripts the oracle to report the transaction as invalid within
// the given block.
func (t *TestFramework) MarkTransactionInvalid(blockAlias string, txAlias string) {
	t.Oracle.SetValidity(BlockID(blockAlias), TransactionID(txAlias), false)
}

// MarkTransactionFailed scripts the oracle to report the transaction as valid but
// unsuccessful within the given block.
func (t *TestFramework) MarkTransactionFailed(blockAlias string, txAlias string) {
	t.Oracle.SetSuccess(BlockID(blockAlias), TransactionID(txAlias), false)
}

func (t *TestFramework) SubmitTransaction(txAlias string) {
	t.Instance.OnNewTransaction(TransactionID(txAlias))
}

func (t *TestFramework) IssueBlock(alias string) {
	parentID, exists := t.parentsByBlock[BlockID(alias)]
	require.True(t.test, exists, "block %s was not created", alias)

	t.Instance.OnNewBlock(BlockID(alias), parentID)
}

func (t *TestFramework) Finalize(alias string) {
	t.Instance.OnFinalized(BlockID(alias))
}

// AssertNotificationOrder checks the complete notification sequence emitted so far.
// Entries have the form "settled:tx1" and "done:tx1".
func (t *TestFramework) AssertNotificationOrder(expected ...string) {
	require.Equal(t.test, expected, t.notificationLog, "notification order does not match")
}

func (t *TestFramework) AssertSettledOutcome(txAlias string, expected *Outcome) {
	outcome, exists := t.settledOutcomes[TransactionID(txAlias)]
	require.True(t.test, exists, "transaction %s was not reported settled", txAlias)
	require.Equal(t.test, expected, outcome)
}

func (t *TestFramework) AssertDoneOutcome(txAlias string, expected *Outcome) {
	outcome, exists := t.doneOutcomes[TransactionID(txAlias)]
	require.True(t.test, exists, "transaction %s was not reported done", txAlias)
	require.Equal(t.test, expected, outcome)
}

// AssertSameOutcome checks that the done notification reused the exact outcome computed
// at settlement time instead of recomputing it.
func (t *TestFramework) AssertSameOutcome(txAlias string) {
	settledOutcome, settled := t.settledOutcomes[TransactionID(txAlias)]
	doneOutcome, done := t.doneOutcomes[TransactionID(txAlias)]

	require.True(t.test, settled && done, "transaction %s did not receive both notifications", txAlias)
	require.Same(t.test, settledOutcome, doneOutcome, "done outcome of %s was recomputed", txAlias)
}

func (t *TestFramework) AssertTransactionState(txAlias string, expected TransactionState) {
	state, known := t.Instance.TransactionState(TransactionID(txAlias))
	require.True(t.test, known, "transaction %s is not tracked", txAlias)
	require.Equal(t.test, expected, state)
}

func (t *TestFramework) AssertPinnedBlocks(aliases ...string) {
	expected := make([]BlockID, 0, len(aliases))
	for _, alias := range aliases {
		expected = append(expected, BlockID(alias))
	}

	require.ElementsMatch(t.test, expected, t.Instance.PinnedBlocks(), "pinned blocks do not match")
}

// AssertUnpinnedBatch checks the content of the n-th unpin batch (order within a batch is
// irrelevant, the batch is a set).
func (t *TestFramework) AssertUnpinnedBatch(batchIndex int, aliases ...string) {
	require.Greater(t.test, len(t.unpinnedBatches), batchIndex, "unpin batch %d was never emitted", batchIndex)

	expected := make([]BlockID, 0, len(aliases))
	for _, alias := range aliases {
		expected = append(expected, BlockID(alias))
	}

	require.ElementsMatch(t.test, expected, t.unpinnedBatches[batchIndex], "unpinned batch %d does not match", batchIndex)
}

func (t *TestFramework) AssertUnpinnedBatchCount(expected int) {
	require.Len(t.test, t.unpinnedBatches, expected, "unpin batch count does not match")
}

// AssertValidityQueryCount checks how often the oracle was asked for the validity of the
// given (block, transaction) pair.
func (t *TestFramework) AssertValidityQueryCount(blockAlias string, txAlias string, expected int) {
	require.Equal(t.test, expected, t.Oracle.ValidityQueryCount(BlockID(blockAlias), TransactionID(txAlias)),
		"validity query count for (%s, %s) does not match", blockAlias, txAlias)
}

// MockOracle is a scriptable chain oracle that counts its queries and records the unpin
// hints it receives.
type MockOracle struct {
	bodiesByBlock map[BlockID][]TransactionID
	validity      map[outcomeKey]bool
	success       map[outcomeKey]bool

	validityQueries map[outcomeKey]int
	successQueries  map[outcomeKey]int

	UnpinnedBatches [][]BlockID
}

var _ Oracle = (*MockOracle)(nil)

func NewMockOracle() *MockOracle {
	return &MockOracle{
		bodiesByBlock:   make(map[BlockID][]TransactionID),
		validity:        make(map[outcomeKey]bool),
		success:         make(map[outcomeKey]bool),
		validityQueries: make(map[outcomeKey]int),
		successQueries:  make(map[outcomeKey]int),
	}
}

func (m *MockOracle) SetBlockBody(blockID BlockID, txIDs []TransactionID) {
	m.bodiesByBlock[blockID] = txIDs
}

func (m *MockOracle) SetValidity(blockID BlockID, txID TransactionID, valid bool) {
	m.validity[outcomeKey{blockID: blockID, txID: txID}] = valid
}

func (m *MockOracle) SetSuccess(blockID BlockID, txID TransactionID, successful bool) {
	m.success[outcomeKey{blockID: blockID, txID: txID}] = successful
}

func (m *MockOracle) BlockBody(blockID BlockID) []TransactionID {
	return m.bodiesByBlock[blockID]
}

func (m *MockOracle) IsTransactionValid(blockID BlockID, txID TransactionID) bool {
	key := outcomeKey{blockID: blockID, txID: txID}
	m.validityQueries[key]++

	if valid, scripted := m.validity[key]; scripted {
		return valid
	}

	return true
}

func (m *MockOracle) IsTransactionSuccessful(blockID BlockID, txID TransactionID) bool {
	key := outcomeKey{blockID: blockID, txID: txID}
	m.successQueries[key]++

	if successful, scripted := m.success[key]; scripted {
		return successful
	}

	return true
}

func (m *MockOracle) Unpin(blockIDs []BlockID) {
	m.UnpinnedBatches = append(m.UnpinnedBatches, blockIDs)
}

func (m *MockOracle) ValidityQueryCount(blockID BlockID, txID TransactionID) int {
	return m.validityQueries[outcomeKey{blockID: blockID, txID: txID}]
}

func (m *MockOracle) SuccessQueryCount(blockID BlockID, txID TransactionID) int {
	return m.successQueries[outcomeKey{blockID: blockID, txID: txID}]
}
