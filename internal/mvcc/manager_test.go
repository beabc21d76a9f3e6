package mvcc

import "testing"

func TestBeginAssignsMonotoneIDs(t *testing.T) {
	m := NewTransactionManager()

	t1 := m.Begin()
	if t1.ID != 1 {
		t.Errorf("expected first TxnID to be 1, got %d", t1.ID)
	}

	t2 := m.Begin()
	if t2.ID <= t1.ID {
		t.Errorf("expected t2.ID > t1.ID, got %d <= %d", t2.ID, t1.ID)
	}
}

func TestBeginSnapshotExcludesSelf(t *testing.T) {
	m := NewTransactionManager()
	txn := m.Begin()

	if txn.Snapshot.IsActive(txn.ID) {
		t.Error("a transaction must never appear in its own snapshot's active set")
	}
	if txn.Snapshot.MyTxnID != txn.ID {
		t.Errorf("expected MyTxnID == ID, got %d != %d", txn.Snapshot.MyTxnID, txn.ID)
	}
	if txn.Snapshot.Xmax != txn.ID {
		t.Errorf("expected Xmax == ID for the first transaction, got %d != %d", txn.Snapshot.Xmax, txn.ID)
	}
	if txn.Snapshot.Xmin != txn.Snapshot.Xmax {
		t.Errorf("expected Xmin == Xmax when no one else is active, got %d != %d", txn.Snapshot.Xmin, txn.Snapshot.Xmax)
	}
}

func TestSnapshotCapturesInProgressTransactions(t *testing.T) {
	m := NewTransactionManager()

	t1 := m.Begin()
	t2 := m.Begin()

	if !t2.Snapshot.IsActive(t1.ID) {
		t.Error("t2's snapshot should see t1 as active")
	}
	if t2.Snapshot.Xmin != t1.ID {
		t.Errorf("expected t2's Xmin to equal t1's ID (the oldest active), got %d != %d", t2.Snapshot.Xmin, t1.ID)
	}

	m.Commit(t1)

	// Snapshots are frozen at BEGIN and never mutated by later commits.
	if !t2.Snapshot.IsActive(t1.ID) {
		t.Error("t2's snapshot must still show t1 as active after t1 commits")
	}

	t3 := m.Begin()
	if t3.Snapshot.IsActive(t1.ID) {
		t.Error("t3 should not see t1 as active: t1 already committed")
	}
	if !t3.Snapshot.IsActive(t2.ID) {
		t.Error("t3 should see t2 as active")
	}
}

func TestCommitAndAbortRemoveFromActiveTable(t *testing.T) {
	m := NewTransactionManager()

	t1 := m.Begin()
	t2 := m.Begin()

	if len(m.ActiveTxns()) != 2 {
		t.Fatalf("expected 2 active transactions, got %d", len(m.ActiveTxns()))
	}

	m.Commit(t1)
	if len(m.ActiveTxns()) != 1 {
		t.Errorf("expected 1 active transaction after commit, got %d", len(m.ActiveTxns()))
	}

	m.Abort(t2)
	if len(m.ActiveTxns()) != 0 {
		t.Errorf("expected 0 active transactions after abort, got %d", len(m.ActiveTxns()))
	}
}

func TestGlobalOldestXminNoActiveReturnsCounter(t *testing.T) {
	m := NewTransactionManager()

	if got := m.GlobalOldestXmin(); got != m.NextTxnID() {
		t.Errorf("expected GlobalOldestXmin() to equal the next TxnID when idle, got %d != %d", got, m.NextTxnID())
	}

	t1 := m.Begin()
	m.Commit(t1)

	if got := m.GlobalOldestXmin(); got != m.NextTxnID() {
		t.Errorf("expected GlobalOldestXmin() to equal the next TxnID after all commit, got %d != %d", got, m.NextTxnID())
	}
}

func TestGlobalOldestXminTracksSnapshotXmin(t *testing.T) {
	m := NewTransactionManager()

	t1 := m.Begin()
	t2 := m.Begin()
	m.Commit(t1)

	// t2 is still active; its snapshot.Xmin is t1's ID (the oldest active
	// at t2's BEGIN), not t2's own ID.
	if got := m.GlobalOldestXmin(); got != t2.Snapshot.Xmin {
		t.Errorf("expected GlobalOldestXmin() == t2.Snapshot.Xmin, got %d != %d", got, t2.Snapshot.Xmin)
	}
}

func TestNextTxnIDPeeksWithoutConsuming(t *testing.T) {
	m := NewTransactionManager()
	before := m.NextTxnID()
	txn := m.Begin()
	if txn.ID != before {
		t.Errorf("expected the assigned id to equal the previously peeked NextTxnID, got %d != %d", txn.ID, before)
	}
	if m.NextTxnID() != before+1 {
		t.Errorf("expected NextTxnID to advance by one after Begin, got %d", m.NextTxnID())
	}
}
