// Package mvcc is the transactional kernel: transaction manager, snapshot
// construction, row-version store, visibility predicate, per-transaction
// write buffer, commit-time conflict detector, and version garbage
// collector. It has no dependency outside the standard library; see
// DESIGN.md for why a visibility predicate over an in-memory version list
// is not a good fit for any third-party container or state-machine library.
package mvcc

// TxnID is a transaction identifier. Values are drawn from a strictly
// monotone counter starting at 1 and are never reused; a TxnID also
// identifies every row version that transaction creates.
type TxnID uint64

// FrozenTxnID marks a row as authored by no real transaction and therefore
// visible to every snapshot regardless of the active set, the moral
// equivalent of PostgreSQL's frozen tuples, used to seed rows without
// spending a transaction slot.
const FrozenTxnID TxnID = 0
