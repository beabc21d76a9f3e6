package mvcc

// MVCCEngine orchestrates begin/insert/update/delete/select/commit/abort/gc
// over a TransactionManager, CommitTable, VisibilityEngine, SimpleStorage
// and ConflictDetector.
type MVCCEngine struct {
	txns     *TransactionManager
	commits  *CommitTable
	vis      *VisibilityEngine
	store    *SimpleStorage
	conflict *ConflictDetector
}

// NewMVCCEngine wires a fresh engine: one TransactionManager, one
// CommitTable, one VisibilityEngine bound to it, one SimpleStorage, one
// ConflictDetector bound to the store and registry.
func NewMVCCEngine() *MVCCEngine {
	commits := NewCommitTable()
	store := NewSimpleStorage()
	return &MVCCEngine{
		txns:     NewTransactionManager(),
		commits:  commits,
		vis:      NewVisibilityEngine(commits),
		store:    store,
		conflict: NewConflictDetector(store, commits),
	}
}

// TxnManager exposes the underlying TransactionManager, for tests and
// diagnostics that need direct access to transaction state.
func (e *MVCCEngine) TxnManager() *TransactionManager { return e.txns }

// CommitTable exposes the underlying CommitTable.
func (e *MVCCEngine) CommitTable() *CommitTable { return e.commits }

// Storage exposes the underlying SimpleStorage.
func (e *MVCCEngine) Storage() *SimpleStorage { return e.store }

// Visibility exposes the underlying VisibilityEngine.
func (e *MVCCEngine) Visibility() *VisibilityEngine { return e.vis }

// Begin delegates to the TransactionManager.
func (e *MVCCEngine) Begin() *Transaction {
	return e.txns.Begin()
}

// Insert buffers a new row `{key, data, xmin=txn.ID, xmax=⊥}` for commit.
// It never fails: no visibility check, no uniqueness check.
func (e *MVCCEngine) Insert(txn *Transaction, key string, data Record) {
	txn.AddWrite(key, VersionedRow{Key: key, Data: data, Xmin: txn.ID})
}

// Update buffers a tombstone of the version currently visible to txn's
// snapshot plus a new version merging data onto it. Fails with KeyNotFound
// if no versions exist under key, or KeyNotVisible if versions exist but
// none is visible.
func (e *MVCCEngine) Update(txn *Transaction, key string, data Record) error {
	visible, err := e.findVisible(txn, key)
	if err != nil {
		return err
	}

	tombstone := visible.Tombstoned(txn.ID)
	next := VersionedRow{
		Key:  key,
		Data: merge(visible.Data, data),
		Xmin: txn.ID,
	}

	txn.AddWrite(key, tombstone)
	txn.AddWrite(key, next)
	return nil
}

// Delete buffers a tombstone of the version currently visible to txn's
// snapshot, preserving the original Xmin so GC bounds remain meaningful.
// Fails the same way Update does.
func (e *MVCCEngine) Delete(txn *Transaction, key string) error {
	visible, err := e.findVisible(txn, key)
	if err != nil {
		return err
	}
	txn.AddWrite(key, visible.Tombstoned(txn.ID))
	return nil
}

// findVisible looks up the first version under key visible to txn's
// snapshot, distinguishing "no versions at all" from "versions exist but
// none visible".
func (e *MVCCEngine) findVisible(txn *Transaction, key string) (VersionedRow, error) {
	versions := e.store.AllVersions(key)
	if len(versions) == 0 {
		return VersionedRow{}, newNotFoundError(key)
	}
	for _, row := range versions {
		if e.vis.IsVisible(row, txn.Snapshot) {
			return row, nil
		}
	}
	return VersionedRow{}, newNotVisibleError(key)
}

// Selection is one row returned by Select: the key plus its visible data.
type Selection struct {
	Key  string
	Data Record
}

// Select records a read of each key, then returns, for each key, txn's own
// latest buffered write if it has one (a buffered delete hides the key),
// otherwise the first stored version visible to txn's snapshot. If keys is
// nil, every key currently in the store is used. Return order follows
// input key order.
func (e *MVCCEngine) Select(txn *Transaction, keys []string) []Selection {
	if keys == nil {
		keys = e.store.AllKeys()
	}

	out := make([]Selection, 0, len(keys))
	for _, key := range keys {
		txn.AddRead(key)
		if pending := txn.Writes()[key]; len(pending) > 0 {
			last := pending[len(pending)-1]
			if !(last.HasXmax && last.Xmax == txn.ID) {
				out = append(out, Selection{Key: key, Data: last.Data})
			}
			continue
		}
		versions := e.store.AllVersions(key)
		for _, row := range versions {
			if e.vis.IsVisible(row, txn.Snapshot) {
				out = append(out, Selection{Key: key, Data: row.Data})
				break
			}
		}
	}
	return out
}

// Commit runs the ConflictDetector; on conflict it aborts txn and returns
// the conflict error without marking it committed. Otherwise it appends
// every buffered write to the store in order, marks txn committed, removes
// it from the active table, and runs a GC pass.
func (e *MVCCEngine) Commit(txn *Transaction) error {
	if reason := e.conflict.Detect(txn); reason != nil {
		e.Abort(txn)
		return reason
	}

	for _, rows := range txn.Writes() {
		for _, row := range rows {
			e.store.Append(row)
		}
	}

	e.commits.MarkCommitted(txn.ID)
	e.txns.Commit(txn)
	e.GarbageCollect()
	return nil
}

// Abort marks txn aborted and removes it from the active table. Its write
// buffer is discarded; it was never applied to the store.
func (e *MVCCEngine) Abort(txn *Transaction) {
	e.commits.MarkAborted(txn.ID)
	e.txns.Abort(txn)
}

// GarbageCollect drops versions no live snapshot can observe. It runs
// automatically at the end of every successful commit but is safe to call
// at any other time.
func (e *MVCCEngine) GarbageCollect() int {
	return e.store.GarbageCollect(e.txns.GlobalOldestXmin(), e.vis)
}
