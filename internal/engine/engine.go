// Package engine is the ambient orchestration shim between cmd/snapdb and
// internal/mvcc: it adds logging and Prometheus metrics around the core
// without the core ever depending on either.
package engine

import (
	"snapdb/internal/logger"
	"snapdb/internal/metrics"
	"snapdb/internal/mvcc"
)

// Engine wraps an *mvcc.MVCCEngine with observability.
type Engine struct {
	core    *mvcc.MVCCEngine
	log     *logger.Logger
	metrics *metrics.Collector
}

// New wires a fresh Engine around a brand new MVCCEngine.
func New(log *logger.Logger, m *metrics.Collector) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Engine{core: mvcc.NewMVCCEngine(), log: log, metrics: m}
}

// Core exposes the underlying transactional kernel for callers (tests, the
// REPL's `select`/`inspect`/`history`/`\status` commands) that need direct access to
// transaction and storage state.
func (e *Engine) Core() *mvcc.MVCCEngine { return e.core }

// Begin starts a transaction, logs it, and bumps the begun/active counters.
func (e *Engine) Begin() *mvcc.Transaction {
	txn := e.core.Begin()
	e.metrics.TxnsBegun.Inc()
	e.metrics.ActiveTxns.Set(float64(len(e.core.TxnManager().ActiveTxns())))
	e.log.Txn(txn.ID).Debug("begin", "snapshot_xmin", txn.Snapshot.Xmin, "snapshot_xmax", txn.Snapshot.Xmax)
	return txn
}

// Insert delegates to the core (never fails).
func (e *Engine) Insert(txn *mvcc.Transaction, key string, data mvcc.Record) {
	e.core.Insert(txn, key, data)
	e.log.Txn(txn.ID).Key(key).Debug("insert")
}

// Update delegates to the core, logging failures at debug level (they are
// not engine faults — the caller may retry within the same transaction).
func (e *Engine) Update(txn *mvcc.Transaction, key string, data mvcc.Record) error {
	err := e.core.Update(txn, key, data)
	log := e.log.Txn(txn.ID).Key(key)
	if err != nil {
		log.Debug("update failed", "error", err)
		return err
	}
	log.Debug("update")
	return nil
}

// Delete delegates to the core.
func (e *Engine) Delete(txn *mvcc.Transaction, key string) error {
	err := e.core.Delete(txn, key)
	log := e.log.Txn(txn.ID).Key(key)
	if err != nil {
		log.Debug("delete failed", "error", err)
		return err
	}
	log.Debug("delete")
	return nil
}

// Select delegates to the core.
func (e *Engine) Select(txn *mvcc.Transaction, keys []string) []mvcc.Selection {
	return e.core.Select(txn, keys)
}

// Commit delegates to the core, updating conflict/committed/aborted
// counters depending on the outcome and re-sampling the row-version gauge.
func (e *Engine) Commit(txn *mvcc.Transaction) error {
	err := e.core.Commit(txn)
	e.metrics.ActiveTxns.Set(float64(len(e.core.TxnManager().ActiveTxns())))
	e.metrics.RowVersions.Set(float64(e.countVersions()))

	if err != nil {
		var mvccErr *mvcc.Error
		if isConflict(err, &mvccErr) {
			e.metrics.Conflicts.Inc()
		}
		e.metrics.TxnsAborted.Inc()
		e.log.Txn(txn.ID).Warn("commit failed", "error", err)
		return err
	}

	e.metrics.TxnsCommitted.Inc()
	e.log.Txn(txn.ID).Debug("commit")
	return nil
}

// Abort delegates to the core.
func (e *Engine) Abort(txn *mvcc.Transaction) {
	e.core.Abort(txn)
	e.metrics.TxnsAborted.Inc()
	e.metrics.ActiveTxns.Set(float64(len(e.core.TxnManager().ActiveTxns())))
	e.log.Txn(txn.ID).Debug("abort")
}

// SeedFrozen writes data under key directly into storage with FrozenTxnID as
// its creator, bypassing the transaction manager entirely. A frozen row is
// visible to every snapshot regardless of the active set, so this is how
// the demonstration harness establishes baseline fixtures without spending
// a real transaction slot on them.
func (e *Engine) SeedFrozen(key string, data mvcc.Record) {
	e.core.Storage().Append(mvcc.VersionedRow{Key: key, Data: data, Xmin: mvcc.FrozenTxnID})
	e.metrics.RowVersions.Set(float64(e.countVersions()))
	e.log.Key(key).Debug("seed frozen")
}

// GarbageCollect runs a GC pass and records how many versions it reclaimed.
func (e *Engine) GarbageCollect() int {
	dropped := e.core.GarbageCollect()
	if dropped > 0 {
		e.metrics.GCVersions.Add(float64(dropped))
		e.metrics.RowVersions.Set(float64(e.countVersions()))
		e.log.Debug("garbage collected", "versions_dropped", dropped)
	}
	return dropped
}

func (e *Engine) countVersions() int {
	total := 0
	for _, key := range e.core.Storage().AllKeys() {
		total += len(e.core.Storage().AllVersions(key))
	}
	return total
}

func isConflict(err error, target **mvcc.Error) bool {
	me, ok := err.(*mvcc.Error)
	if !ok {
		return false
	}
	*target = me
	return me.Kind == mvcc.WriteWriteConflict
}
