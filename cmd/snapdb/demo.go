package main

import (
	"fmt"

	"snapdb/internal/engine"
	"snapdb/internal/logger"
	"snapdb/internal/metrics"
	"snapdb/internal/mvcc"
)

type scenario struct {
	name string
	run  func(eng *engine.Engine) error
}

// runDemo exercises the six reference isolation scenarios against a fresh
// engine and reports PASS/FAIL for each. It returns false if any scenario
// fails.
func runDemo(log *logger.Logger) bool {
	scenarios := []scenario{
		{"snapshot isolation after commit", scenarioSnapshotIsolation},
		{"uncommitted writes stay invisible", scenarioUncommittedInvisibility},
		{"first committer wins", scenarioFirstCommitterWins},
		{"aborted writes stay invisible", scenarioAbortedInvisibility},
		{"repeatable read", scenarioRepeatableRead},
		{"delete visibility across a concurrent reader", scenarioDeleteVisibility},
	}

	allPassed := true
	for _, s := range scenarios {
		eng := engine.New(log, metrics.NewCollector())
		if err := s.run(eng); err != nil {
			fmt.Printf("FAIL  %s: %s\n", s.name, err)
			allPassed = false
			continue
		}
		fmt.Printf("PASS  %s\n", s.name)
	}
	return allPassed
}

func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func scenarioSnapshotIsolation(eng *engine.Engine) error {
	writer := eng.Begin()
	eng.Insert(writer, "acct", mvcc.Record{"balance": 100})
	if err := eng.Commit(writer); err != nil {
		return fail("commit failed: %w", err)
	}

	reader := eng.Begin()
	rows := eng.Select(reader, []string{"acct"})
	if len(rows) != 1 || rows[0].Data["balance"] != 100 {
		return fail("expected balance 100, got %v", rows)
	}
	return nil
}

func scenarioUncommittedInvisibility(eng *engine.Engine) error {
	writer := eng.Begin()
	eng.Insert(writer, "acct", mvcc.Record{"balance": 100})

	reader := eng.Begin()
	rows := eng.Select(reader, []string{"acct"})
	if len(rows) != 0 {
		return fail("uncommitted insert leaked to concurrent reader: %v", rows)
	}
	return eng.Commit(writer)
}

func scenarioFirstCommitterWins(eng *engine.Engine) error {
	eng.SeedFrozen("acct", mvcc.Record{"balance": 100})

	a := eng.Begin()
	b := eng.Begin()

	if err := eng.Update(a, "acct", mvcc.Record{"balance": 90}); err != nil {
		return fail("a update failed: %w", err)
	}
	if err := eng.Commit(a); err != nil {
		return fail("a commit failed: %w", err)
	}

	if err := eng.Update(b, "acct", mvcc.Record{"balance": 200}); err != nil {
		return fail("b update failed: %w", err)
	}
	if err := eng.Commit(b); err == nil {
		return fail("expected write-write conflict on second committer, got nil")
	}
	return nil
}

func scenarioAbortedInvisibility(eng *engine.Engine) error {
	writer := eng.Begin()
	eng.Insert(writer, "acct", mvcc.Record{"balance": 100})
	eng.Abort(writer)

	reader := eng.Begin()
	rows := eng.Select(reader, []string{"acct"})
	if len(rows) != 0 {
		return fail("aborted insert visible: %v", rows)
	}
	return nil
}

func scenarioRepeatableRead(eng *engine.Engine) error {
	eng.SeedFrozen("acct", mvcc.Record{"balance": 100})

	reader := eng.Begin()
	first := eng.Select(reader, []string{"acct"})

	writer := eng.Begin()
	if err := eng.Update(writer, "acct", mvcc.Record{"balance": 500}); err != nil {
		return fail("writer update failed: %w", err)
	}
	if err := eng.Commit(writer); err != nil {
		return fail("writer commit failed: %w", err)
	}

	second := eng.Select(reader, []string{"acct"})
	if len(first) != 1 || len(second) != 1 || first[0].Data["balance"] != second[0].Data["balance"] {
		return fail("repeatable read violated: first=%v second=%v", first, second)
	}
	return nil
}

func scenarioDeleteVisibility(eng *engine.Engine) error {
	eng.SeedFrozen("acct", mvcc.Record{"balance": 100})

	reader := eng.Begin()
	before := eng.Select(reader, []string{"acct"})
	if len(before) != 1 {
		return fail("expected reader to see row before delete, got %v", before)
	}

	deleter := eng.Begin()
	if err := eng.Delete(deleter, "acct"); err != nil {
		return fail("delete failed: %w", err)
	}
	if err := eng.Commit(deleter); err != nil {
		return fail("delete commit failed: %w", err)
	}

	after := eng.Select(reader, []string{"acct"})
	if len(after) != 1 {
		return fail("reader's repeatable read broke after concurrent delete: %v", after)
	}

	fresh := eng.Begin()
	freshRows := eng.Select(fresh, []string{"acct"})
	if len(freshRows) != 0 {
		return fail("fresh snapshot should not see deleted row: %v", freshRows)
	}
	return nil
}
