package mvcc

// Snapshot is an immutable value capturing the visibility horizon of a
// transaction at the instant it began. Fields are exported so tests can
// construct arbitrary snapshots directly without going through
// TransactionManager.Begin.
type Snapshot struct {
	// Xmin is the smallest TxnID in Active, or Xmax if Active is empty.
	Xmin TxnID
	// Xmax is the TxnID assigned to the owning transaction at BEGIN.
	Xmax TxnID
	// Active is the set of TxnIDs strictly less than Xmax that were still
	// in progress at the instant of BEGIN. It excludes the owner itself.
	Active map[TxnID]struct{}
	// MyTxnID is the owning transaction's own id; always equal to Xmax.
	MyTxnID TxnID
}

// NewSnapshot builds a Snapshot from an explicit active set. Xmin is the
// smallest element of active if non-empty, else xmax.
func NewSnapshot(xmax TxnID, active []TxnID) Snapshot {
	activeSet := make(map[TxnID]struct{}, len(active))
	xmin := xmax
	for _, id := range active {
		activeSet[id] = struct{}{}
		if id < xmin {
			xmin = id
		}
	}
	return Snapshot{
		Xmin:    xmin,
		Xmax:    xmax,
		Active:  activeSet,
		MyTxnID: xmax,
	}
}

// IsActive reports whether tid was in progress when this snapshot was taken.
func (s Snapshot) IsActive(tid TxnID) bool {
	_, ok := s.Active[tid]
	return ok
}
