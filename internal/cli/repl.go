// Package cli provides the interactive REPL for snapdb
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"snapdb/internal/auth"
	"snapdb/internal/config"
	"snapdb/internal/engine"
	"snapdb/internal/logger"
	"snapdb/internal/mvcc"
)

// REPL implements the Read-Eval-Print Loop for snapdb's MVCC verbs.
type REPL struct {
	config *config.Config
	log    *logger.Logger
	engine *engine.Engine
	rl     *readline.Instance

	txn *mvcc.Transaction // nil when no transaction is open
}

// NewREPL creates a new REPL instance bound to eng.
func NewREPL(cfg *config.Config, log *logger.Logger, eng *engine.Engine) *REPL {
	return &REPL{
		config: cfg,
		log:    log,
		engine: eng,
	}
}

// Run starts the REPL loop. If cfg.Auth.CredentialFile is set, the operator
// must authenticate before the prompt appears.
func (r *REPL) Run() error {
	rlConfig := &readline.Config{
		Prompt:          "snapdb> ",
		HistoryFile:     getHistoryFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    newCompleter(),
	}

	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	if r.config != nil && r.config.Auth.CredentialFile != "" {
		if err := r.authenticate(); err != nil {
			return err
		}
	}

	r.printWelcome()

	for {
		r.rl.SetPrompt(r.prompt())

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			fmt.Println("\nGoodbye!")
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if r.dispatch(line) == commandExit {
			fmt.Println("Goodbye!")
			return nil
		}
	}
}

func (r *REPL) authenticate() error {
	gate, err := auth.NewGate(r.config.Auth.CredentialFile)
	if err != nil {
		return fmt.Errorf("failed to load credential file: %w", err)
	}

	password, err := r.rl.ReadPassword("password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := gate.Authenticate(strings.TrimSpace(string(password))); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	return nil
}

func (r *REPL) prompt() string {
	if r.txn != nil {
		return fmt.Sprintf("snapdb[txn %d]> ", r.txn.ID)
	}
	return "snapdb> "
}

type commandResult int

const (
	commandOK commandResult = iota
	commandExit
	commandError
)

func (r *REPL) dispatch(input string) commandResult {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "exit", "quit", "\\q":
		return commandExit

	case "help", "\\?":
		r.printHelp()
		return commandOK

	case "begin":
		return r.cmdBegin()

	case "insert":
		return r.cmdInsert(args)

	case "update":
		return r.cmdUpdate(args)

	case "delete":
		return r.cmdDelete(args)

	case "select":
		return r.cmdSelect(args)

	case "commit":
		return r.cmdCommit()

	case "abort", "rollback":
		return r.cmdAbort()

	case "gc":
		return r.cmdGC()

	case "snapshot":
		return r.cmdSnapshot()

	case "inspect":
		return r.cmdInspect(args)

	case "explain":
		return r.cmdExplain()

	case "history":
		return r.cmdHistory()

	case "\\status":
		r.printStatus()
		return commandOK

	case "\\clear":
		fmt.Print("\033[H\033[2J")
		return commandOK

	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		fmt.Println("Type help for available commands")
		return commandError
	}
}

func (r *REPL) requireTxn() bool {
	if r.txn == nil {
		fmt.Println("no transaction open; run begin first")
		return false
	}
	return true
}

func (r *REPL) cmdBegin() commandResult {
	if r.txn != nil {
		fmt.Printf("transaction %d already open\n", r.txn.ID)
		return commandError
	}
	r.txn = r.engine.Begin()
	fmt.Printf("transaction %d started (xmin=%d xmax=%d)\n", r.txn.ID, r.txn.Snapshot.Xmin, r.txn.Snapshot.Xmax)
	return commandOK
}

// cmdInsert parses: insert <key> [field=value ...]
func (r *REPL) cmdInsert(args []string) commandResult {
	if !r.requireTxn() {
		return commandError
	}
	if len(args) < 1 {
		fmt.Println("usage: insert <key> [field=value ...]")
		return commandError
	}
	key := args[0]
	data := parseRecord(args[1:])
	r.engine.Insert(r.txn, key, data)
	fmt.Printf("inserted %q\n", key)
	return commandOK
}

// cmdUpdate parses: update <key> [field=value ...]
func (r *REPL) cmdUpdate(args []string) commandResult {
	if !r.requireTxn() {
		return commandError
	}
	if len(args) < 1 {
		fmt.Println("usage: update <key> [field=value ...]")
		return commandError
	}
	key := args[0]
	data := parseRecord(args[1:])
	if err := r.engine.Update(r.txn, key, data); err != nil {
		fmt.Printf("update failed: %s\n", err)
		return commandError
	}
	fmt.Printf("updated %q\n", key)
	return commandOK
}

func (r *REPL) cmdDelete(args []string) commandResult {
	if !r.requireTxn() {
		return commandError
	}
	if len(args) != 1 {
		fmt.Println("usage: delete <key>")
		return commandError
	}
	if err := r.engine.Delete(r.txn, args[0]); err != nil {
		fmt.Printf("delete failed: %s\n", err)
		return commandError
	}
	fmt.Printf("deleted %q\n", args[0])
	return commandOK
}

func (r *REPL) cmdSelect(args []string) commandResult {
	if !r.requireTxn() {
		return commandError
	}
	if len(args) == 0 {
		args = r.engine.Core().Storage().AllKeys()
		sort.Strings(args)
	}
	rows := r.engine.Select(r.txn, args)
	if len(rows) == 0 {
		fmt.Println("(no visible rows)")
		return commandOK
	}
	for _, row := range rows {
		fmt.Printf("%s => %v\n", row.Key, map[string]any(row.Data))
	}
	return commandOK
}

func (r *REPL) cmdCommit() commandResult {
	if !r.requireTxn() {
		return commandError
	}
	err := r.engine.Commit(r.txn)
	r.txn = nil
	if err != nil {
		fmt.Printf("commit failed: %s\n", err)
		return commandError
	}
	fmt.Println("commit ok")
	return commandOK
}

func (r *REPL) cmdAbort() commandResult {
	if !r.requireTxn() {
		return commandError
	}
	r.engine.Abort(r.txn)
	r.txn = nil
	fmt.Println("transaction aborted")
	return commandOK
}

func (r *REPL) cmdGC() commandResult {
	dropped := r.engine.GarbageCollect()
	fmt.Printf("garbage collected %d version(s)\n", dropped)
	return commandOK
}

func (r *REPL) cmdSnapshot() commandResult {
	if !r.requireTxn() {
		return commandError
	}
	snap := r.txn.Snapshot
	active := make([]string, 0, len(snap.Active))
	for tid := range snap.Active {
		active = append(active, strconv.FormatUint(uint64(tid), 10))
	}
	fmt.Printf("xmin=%d xmax=%d active=[%s]\n", snap.Xmin, snap.Xmax, strings.Join(active, ","))
	return commandOK
}

func (r *REPL) cmdInspect(args []string) commandResult {
	if len(args) != 1 {
		fmt.Println("usage: inspect <key>")
		return commandError
	}
	key := args[0]
	core := r.engine.Core()
	oldest := core.TxnManager().GlobalOldestXmin()
	snap := mvcc.NewSnapshot(core.TxnManager().NextTxnID(), core.TxnManager().ActiveTxns())
	if r.txn != nil {
		snap = r.txn.Snapshot
	}

	versions := core.Storage().AllVersions(key)
	if len(versions) == 0 {
		fmt.Println("(no versions on record)")
		return commandOK
	}
	for i, v := range versions {
		status := core.Visibility().Status(v, snap, oldest)
		fmt.Printf("version %d: xmin=%d hasXmax=%v xmax=%d status=%s\n", i, v.Xmin, v.HasXmax, v.Xmax, status)
	}
	return commandOK
}

func (r *REPL) cmdExplain() commandResult {
	if !r.requireTxn() {
		return commandError
	}
	reads := r.txn.Reads()
	if len(reads) == 0 {
		fmt.Println("no keys read yet in this transaction")
		return commandOK
	}
	keys := make([]string, 0, len(reads))
	for k := range reads {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("transaction %d has read: %s\n", r.txn.ID, strings.Join(keys, ", "))
	return commandOK
}

func (r *REPL) cmdHistory() commandResult {
	keys := r.engine.Core().Storage().AllKeys()
	sort.Strings(keys)
	for _, key := range keys {
		versions := r.engine.Core().Storage().AllVersions(key)
		fmt.Printf("%s: %d version(s)\n", key, len(versions))
	}
	return commandOK
}

// parseRecord turns a list of field=value tokens into an mvcc.Record,
// coercing values that parse as int64 or float64 into numbers.
func parseRecord(fields []string) mvcc.Record {
	data := make(mvcc.Record, len(fields))
	for _, f := range fields {
		parts := strings.SplitN(f, "=", 2)
		if len(parts) != 2 {
			continue
		}
		data[parts[0]] = coerce(parts[1])
	}
	return data
}

func coerce(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func (r *REPL) printWelcome() {
	fmt.Println(`
  ___ _ __   __ _ _ __   __| | |__
 / __| '_ \ / _' | '_ \ / _' | '_ \
 \__ \ | | | (_| | |_) | (_| | |_) |
 |___/_| |_|\__,_| .__/ \__,_|_.__/
                  |_|

    In-memory MVCC row store
    Type help for available commands
    `)
}

func (r *REPL) printHelp() {
	fmt.Println(`
snapdb Commands
===============

Transaction Commands:
  begin                             Start a transaction
  commit                            Commit the open transaction
  abort, rollback                   Abort the open transaction
  snapshot                          Show the open transaction's snapshot

Data Commands (require an open transaction):
  insert <key> [field=value ...]    Insert a row
  update <key> [field=value ...]    Update a row
  delete <key>                      Delete a row
  select [key ...]                  Read rows (all keys if none given)

Diagnostics:
  inspect <key>                     Show every version of a key and its status
  explain                           Show the open transaction's read set
  history                           Show version counts per key
  gc                                Run a garbage collection pass

Other:
  \status                           Show server status
  \clear                            Clear screen
  help, \?                          Show this help
  exit, quit, \q                    Exit`)
}

func (r *REPL) printStatus() {
	fmt.Println("\nsnapdb Status")
	fmt.Println("=============")
	core := r.engine.Core()
	fmt.Printf("Active transactions: %d\n", len(core.TxnManager().ActiveTxns()))
	fmt.Printf("Keys stored:         %d\n", len(core.Storage().AllKeys()))
	if r.config != nil {
		fmt.Printf("Log level:           %s\n", r.config.Log.Level)
		fmt.Printf("GC on commit:        %v\n", r.config.Engine.GCOnCommit)
	}
	fmt.Println()
}

func getHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.snapdb_history"
}

// newCompleter creates an auto-completer for the REPL.
func newCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("begin"),
		readline.PcItem("commit"),
		readline.PcItem("abort"),
		readline.PcItem("rollback"),
		readline.PcItem("insert"),
		readline.PcItem("update"),
		readline.PcItem("delete"),
		readline.PcItem("select"),
		readline.PcItem("snapshot"),
		readline.PcItem("inspect"),
		readline.PcItem("explain"),
		readline.PcItem("history"),
		readline.PcItem("gc"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
		readline.PcItem("\\status"),
		readline.PcItem("\\clear"),
		readline.PcItem("\\?"),
		readline.PcItem("\\q"),
	)
}
