// snapdb is an in-memory, single-node MVCC row store with snapshot
// isolation. This binary is a demonstration harness around
// internal/mvcc: it does not open a network port for client traffic,
// it exposes a REPL, a scenario walkthrough, and a Prometheus endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"snapdb/internal/cli"
	"snapdb/internal/config"
	"snapdb/internal/engine"
	"snapdb/internal/logger"
	"snapdb/internal/metrics"
	"snapdb/internal/mvcc"
)

var (
	version   = "0.1.0"
	buildDate = "dev"
	cfgFile   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snapdb",
		Short: "snapdb - an in-memory MVCC row store",
		Long: `snapdb is a single-node, in-memory row store built around
multi-version concurrency control with snapshot isolation.

Start the interactive shell:
  snapdb repl

Walk through the reference isolation scenarios:
  snapdb demo

Run with a specific config file:
  snapdb --config /path/to/snapdb.yaml repl`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(
		versionCmd(),
		initCmd(),
		demoCmd(),
		replCmd(),
		serveCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("snapdb %s (built %s)\n", version, buildDate)
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [config-path]",
		Short: "Write a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := "snapdb.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.CreateDefaultConfig(path); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Wrote configuration file: %s\n", path)
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive REPL",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustSetup()
			defer func() { _ = log.Sync() }()

			m := metrics.NewCollector()
			eng := engine.New(log, m)
			repl := cli.NewREPL(cfg, log, eng)
			if err := repl.Run(); err != nil {
				log.Error("repl error", "error", err)
				os.Exit(1)
			}
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose Prometheus metrics while driving a synthetic workload",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, log := mustSetup()
			defer func() { _ = log.Sync() }()

			m := metrics.NewCollector()
			eng := engine.New(log, m)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if cfg.Metrics.Enabled {
				mux := http.NewServeMux()
				mux.Handle("/metrics", m.Handler())
				srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: mux}
				go func() {
					log.Info("metrics endpoint listening", "addr", cfg.Metrics.ListenAddr)
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Error("metrics server failed", "error", err)
					}
				}()
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			runWorkload(ctx, log, cfg, eng)
		},
	}
}

// runWorkload drives a small synthetic transaction stream so the exposed
// metrics move over time; it is illustrative, not a benchmark.
func runWorkload(ctx context.Context, log *logger.Logger, cfg *config.Config, eng *engine.Engine) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var gcTicker *time.Ticker
	if !cfg.Engine.GCOnCommit && cfg.Engine.GCIntervalMS > 0 {
		gcTicker = time.NewTicker(time.Duration(cfg.Engine.GCIntervalMS) * time.Millisecond)
		defer gcTicker.Stop()
	}

	counter := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			counter++
			key := fmt.Sprintf("k%d", counter%16)
			txn := eng.Begin()
			eng.Insert(txn, key, mvcc.Record{"seq": counter})
			if err := eng.Commit(txn); err != nil {
				log.Debug("synthetic commit failed", "error", err)
			}
		case gc := <-gcTickerChan(gcTicker):
			_ = gc
			eng.GarbageCollect()
		}
	}
}

func gcTickerChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through the reference snapshot-isolation scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			log, err := logger.New("info", "text", "stderr")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer func() { _ = log.Sync() }()

			if !runDemo(log) {
				os.Exit(1)
			}
		},
	}
}

func mustSetup() (*config.Config, *logger.Logger) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, log
}
