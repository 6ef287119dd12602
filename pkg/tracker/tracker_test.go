package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackerSettleAndFinalize(t *testing.T) {
	tf := NewTestFramework(t)

	tf.SubmitTransaction("t1")
	tf.AssertTransactionState("t1", TransactionStatePending)

	tf.CreateBlock("b1", "genesis", "t1")
	tf.IssueBlock("b1")

	// the transaction settles with a valid and successful outcome
	tf.AssertNotificationOrder("settled:t1")
	tf.AssertSettledOutcome("t1", &Outcome{BlockID: "b1", Valid: true, Successful: true})
	tf.AssertTransactionState("t1", TransactionStateSettled)
	tf.AssertPinnedBlocks("b1")

	tf.Finalize("b1")

	// the done notification fires exactly once and reuses the settlement outcome
	tf.AssertNotificationOrder("settled:t1", "done:t1")
	tf.AssertDoneOutcome("t1", &Outcome{BlockID: "b1", Valid: true, Successful: true})
	tf.AssertSameOutcome("t1")
	tf.AssertTransactionState("t1", TransactionStateDone)

	// the finalized block itself stays pinned
	tf.AssertPinnedBlocks("b1")
	tf.AssertUnpinnedBatchCount(0)
}

func TestTrackerUnannouncedTransaction(t *testing.T) {
	tf := NewTestFramework(t)

	// t2 was never submitted, it arrives and settles through the block body
	tf.CreateBlock("b2", "genesis", "t2")
	tf.MarkTransactionInvalid("b2", "t2")
	tf.IssueBlock("b2")

	tf.AssertNotificationOrder("settled:t2")
	tf.AssertSettledOutcome("t2", &Outcome{BlockID: "b2", Valid: false, Successful: false})

	// success is never looked up for an invalid transaction
	require.Equal(t, 0, tf.Oracle.SuccessQueryCount("b2", "t2"))
}

func TestTrackerFinalizationGap(t *testing.T) {
	tf := NewTestFramework(t)

	tf.SubmitTransaction("t3")

	tf.CreateBlock("b1", "genesis", "t3")
	tf.CreateBlock("b2", "b1")
	tf.CreateBlock("b3", "b2")
	tf.IssueBlock("b1")
	tf.IssueBlock("b2")
	tf.IssueBlock("b3")

	// b1 and b2 never receive their own Finalized event
	tf.Finalize("b3")

	tf.AssertNotificationOrder("settled:t3", "done:t3")
	tf.AssertTransactionState("t3", TransactionStateDone)

	// the resolved ancestors below the finalized block are released
	tf.AssertUnpinnedBatchCount(1)
	tf.AssertUnpinnedBatch(0, "b1", "b2")
	tf.AssertPinnedBlocks("b3")

	// the unpin hint also reached the oracle
	require.Len(t, tf.Oracle.UnpinnedBatches, 1)
	require.ElementsMatch(t, []BlockID{"b1", "b2"}, tf.Oracle.UnpinnedBatches[0])
}

func TestTrackerNotificationOrder(t *testing.T) {
	tf := NewTestFramework(t)

	// t3 arrives first via submission, t1 and t2 arrive through the block body
	tf.SubmitTransaction("t3")

	tf.CreateBlock("b1", "genesis", "t1", "t2", "t3")
	tf.IssueBlock("b1")

	// settlement notifications follow block-body order
	tf.AssertNotificationOrder("settled:t1", "settled:t2", "settled:t3")

	tf.Finalize("b1")

	// done notifications follow the original arrival order instead
	tf.AssertNotificationOrder(
		"settled:t1", "settled:t2", "settled:t3",
		"done:t3", "done:t1", "done:t2",
	)
}

func TestTrackerArrivalOrderAcrossBlocks(t *testing.T) {
	tf := NewTestFramework(t)

	tf.SubmitTransaction("t1")
	tf.SubmitTransaction("t2")

	// t2 settles before t1, in an earlier block
	tf.CreateBlock("b1", "genesis", "t2")
	tf.CreateBlock("b2", "b1", "t1")
	tf.IssueBlock("b1")
	tf.IssueBlock("b2")

	tf.AssertNotificationOrder("settled:t2", "settled:t1")

	// both become done on the same finalization and are reported in arrival order
	tf.Finalize("b2")

	tf.AssertNotificationOrder("settled:t2", "settled:t1", "done:t1", "done:t2")
}

func TestTrackerDuplicateSubmission(t *testing.T) {
	tf := NewTestFramework(t)

	tf.SubmitTransaction("t1")
	tf.SubmitTransaction("t1")

	tf.CreateBlock("b1", "genesis", "t1")
	tf.IssueBlock("b1")

	// resubmission of an already settled transaction is a no-op
	tf.SubmitTransaction("t1")

	tf.Finalize("b1")
	tf.SubmitTransaction("t1")

	tf.AssertNotificationOrder("settled:t1", "done:t1")
	tf.AssertTransactionState("t1", TransactionStateDone)
}

func TestTrackerFirstSettlementWins(t *testing.T) {
	tf := NewTestFramework(t)

	// t1 unexpectedly appears in two block bodies, the first inclusion wins
	tf.CreateBlock("b1", "genesis", "t1")
	tf.CreateBlock("b2", "b1", "t1")
	tf.IssueBlock("b1")
	tf.IssueBlock("b2")

	tf.AssertNotificationOrder("settled:t1")

	blockID, exists := tf.Instance.SettlementBlock("t1")
	require.True(t, exists)
	require.Equal(t, BlockID("b1"), blockID)

	tf.Finalize("b2")

	tf.AssertNotificationOrder("settled:t1", "done:t1")
	tf.AssertDoneOutcome("t1", &Outcome{BlockID: "b1", Valid: true, Successful: true})
}

func TestTrackerUnknownFinalizedBlock(t *testing.T) {
	tf := NewTestFramework(t)

	tf.SubmitTransaction("t1")
	tf.CreateBlock("b1", "genesis", "t1")
	tf.IssueBlock("b1")

	// a block never seen via NewBlock yields an empty ancestry walk
	tf.Finalize("unseen")

	tf.AssertNotificationOrder("settled:t1")
	tf.AssertTransactionState("t1", TransactionStateSettled)
	tf.AssertPinnedBlocks("b1")
	tf.AssertUnpinnedBatchCount(0)
}

func TestTrackerOutcomeCaching(t *testing.T) {
	tf := NewTestFramework(t)

	tf.CreateBlock("b1", "genesis", "t1")
	tf.IssueBlock("b1")
	tf.AssertValidityQueryCount("b1", "t1", 1)
	require.Equal(t, 1, tf.Oracle.SuccessQueryCount("b1", "t1"))

	// finalization reuses the cached outcome instead of asking the oracle again
	tf.Finalize("b1")
	tf.AssertValidityQueryCount("b1", "t1", 1)
	require.Equal(t, 1, tf.Oracle.SuccessQueryCount("b1", "t1"))

	tf.AssertSameOutcome("t1")
}

func TestTrackerForkPruning(t *testing.T) {
	tf := NewTestFramework(t)

	// main chain: b1 <- b2, abandoned fork: f1 <- f2 <- f3
	tf.CreateBlock("b1", "genesis")
	tf.CreateBlock("b2", "b1")
	tf.CreateBlock("f1", "genesis", "tf1")
	tf.CreateBlock("f2", "f1")
	tf.CreateBlock("f3", "f2")
	tf.IssueBlock("b1")
	tf.IssueBlock("b2")
	tf.IssueBlock("f1")
	tf.IssueBlock("f2")
	tf.IssueBlock("f3")

	tf.AssertNotificationOrder("settled:tf1")

	tf.Finalize("b2")

	// b1 is a resolved ancestor; f1 and f2 are fork blocks at or below the finalized
	// height; f3 is above it and might still be referenced by a future event
	tf.AssertUnpinnedBatchCount(1)
	tf.AssertUnpinnedBatch(0, "b1", "f1", "f2")
	tf.AssertPinnedBlocks("b2", "f3")

	// the transaction settled on the abandoned fork never becomes done
	tf.AssertNotificationOrder("settled:tf1")
	tf.AssertTransactionState("tf1", TransactionStateSettled)
}

func TestTrackerRepeatedFinalization(t *testing.T) {
	tf := NewTestFramework(t)

	tf.CreateBlock("b1", "genesis", "t1")
	tf.CreateBlock("b2", "b1")
	tf.IssueBlock("b1")
	tf.IssueBlock("b2")

	tf.Finalize("b2")
	tf.AssertUnpinnedBatchCount(1)
	tf.AssertUnpinnedBatch(0, "b1")

	// finalizing the same block again emits nothing new
	tf.Finalize("b2")

	tf.AssertNotificationOrder("settled:t1", "done:t1")
	tf.AssertUnpinnedBatchCount(1)
	tf.AssertPinnedBlocks("b2")
}

func TestTrackerEventDispatch(t *testing.T) {
	tf := NewTestFramework(t)

	tf.CreateBlock("b1", "genesis", "t2")

	tf.Instance.ProcessEvent(&NewTransactionEvent{Transaction: "t1"})
	tf.Instance.ProcessEvent(&NewBlockEvent{Block: "b1", Parent: "genesis"})
	tf.Instance.ProcessEvent(&FinalizedEvent{Block: "b1"})

	// events outside the known union are ignored
	tf.Instance.ProcessEvent(bogusEvent{})

	tf.AssertNotificationOrder("settled:t2", "done:t2")
	tf.AssertTransactionState("t1", TransactionStatePending)
}

type bogusEvent struct{}

func (bogusEvent) trackerEvent() {}

func TestTrackerRun(t *testing.T) {
	tf := NewTestFramework(t)

	tf.CreateBlock("b1", "genesis", "t1")

	trackerEvents := make(chan Event, 3)
	resultChan := make(chan error, 1)

	go func() {
		resultChan <- tf.Instance.Run(context.Background(), trackerEvents)
	}()

	trackerEvents <- &NewBlockEvent{Block: "b1", Parent: "genesis"}
	trackerEvents <- &FinalizedEvent{Block: "b1"}
	close(trackerEvents)

	// a closed feed terminates the loop cleanly
	require.NoError(t, <-resultChan)

	tf.AssertNotificationOrder("settled:t1", "done:t1")
}

func TestTrackerRunCancellation(t *testing.T) {
	tf := NewTestFramework(t)

	ctx, cancel := context.WithCancel(context.Background())
	trackerEvents := make(chan Event)
	resultChan := make(chan error, 1)

	go func() {
		resultChan <- tf.Instance.Run(ctx, trackerEvents)
	}()

	cancel()

	select {
	case err := <-resultChan:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

type recordingSink struct {
	settled []TransactionID
	done    []TransactionID
}

func (r *recordingSink) OnTransactionSettled(txID TransactionID, _ *Outcome) {
	r.settled = append(r.settled, txID)
}

func (r *recordingSink) OnTransactionDone(txID TransactionID, _ *Outcome) {
	r.done = append(r.done, txID)
}

func TestTrackerSink(t *testing.T) {
	tf := NewTestFramework(t)

	sink := new(recordingSink)
	detach := tf.Instance.AttachSink(sink)

	tf.CreateBlock("b1", "genesis", "t1")
	tf.CreateBlock("b2", "b1", "t2")
	tf.IssueBlock("b1")
	tf.Finalize("b1")

	require.Equal(t, []TransactionID{"t1"}, sink.settled)
	require.Equal(t, []TransactionID{"t1"}, sink.done)

	// a detached sink no longer receives notifications
	detach()

	tf.IssueBlock("b2")
	tf.Finalize("b2")

	require.Equal(t, []TransactionID{"t1"}, sink.settled)
	require.Equal(t, []TransactionID{"t1"}, sink.done)
}
