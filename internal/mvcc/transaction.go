package mvcc

// Transaction holds a transaction's identity, its frozen snapshot, and its
// pending write buffer. Nothing is removed from the write buffer before
// commit or abort; an update appends two rows for the same key (a tombstone
// then a new version) and both must survive in that order, which is why the
// buffer is a map of slices rather than a map enforcing per-key uniqueness.
type Transaction struct {
	ID       TxnID
	Snapshot Snapshot

	writes map[string][]VersionedRow
	reads  map[string]struct{}
}

func newTransaction(id TxnID, snap Snapshot) *Transaction {
	return &Transaction{
		ID:       id,
		Snapshot: snap,
		writes:   make(map[string][]VersionedRow),
		reads:    make(map[string]struct{}),
	}
}

// AddRead records key into the transaction's read set. Informational only,
// the core never uses it to enforce anything, but it gives the REPL's
// `explain` command something real to report.
func (t *Transaction) AddRead(key string) {
	t.reads[key] = struct{}{}
}

// AddWrite appends row to the per-key write list, preserving arrival order.
func (t *Transaction) AddWrite(key string, row VersionedRow) {
	t.writes[key] = append(t.writes[key], row)
}

// Writes returns the transaction's pending write buffer. The returned map
// is owned by the transaction; callers must not mutate it.
func (t *Transaction) Writes() map[string][]VersionedRow {
	return t.writes
}

// Reads returns the transaction's read set.
func (t *Transaction) Reads() map[string]struct{} {
	return t.reads
}
