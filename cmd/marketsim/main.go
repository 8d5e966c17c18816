// Command marketsim runs one market simulation described by a YAML
// configuration and prints the run summary. Optionally it persists the
// event stream to SQLite and serves it live over websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"marketsim/internal/config"
	"marketsim/internal/sim"
	"marketsim/internal/stats"
	"marketsim/internal/stream"
	"marketsim/pkg/ticks"
)

func main() {
	var (
		configPath = flag.String("config", "", "configuration file (default: built-in single-CDA run)")
		seed       = flag.Int64("seed", 0, "override the configured seed (0 keeps it)")
		runs       = flag.Int("runs", 1, "number of runs; run i uses seed+i")
		dbPath     = flag.String("db", "", "override the configured event database path")
		streamAddr = flag.String("stream", "", "override the configured stream listen address")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *dbPath != "" {
		cfg.Output.DBPath = *dbPath
	}
	if *streamAddr != "" {
		cfg.Output.StreamAddr = *streamAddr
	}

	logger := newLogger(cfg.Logging.Level)
	slog.SetDefault(logger)

	ctx := context.Background()

	var store *stats.Store
	if cfg.Output.DBPath != "" {
		var err error
		store, err = stats.NewStore(cfg.Output.DBPath)
		if err != nil {
			logger.Error("failed to open event store", "path", cfg.Output.DBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	var hub *stream.Hub
	if cfg.Output.StreamAddr != "" {
		hub = stream.NewHub(logger)
		go hub.Run()
		defer hub.Stop()
		go func() {
			if err := hub.ListenAndServe(cfg.Output.StreamAddr); err != nil {
				logger.Error("stream server failed", "error", err)
			}
		}()
	}

	for i := 0; i < *runs; i++ {
		runCfg := *cfg
		runCfg.Run.Seed = cfg.Run.Seed + int64(i)
		s := sim.New(&runCfg, logger)

		if store != nil {
			runID, err := store.BeginRun(ctx, runCfg.Run.Seed, ticks.NewTime(cfg.Run.Horizon), time.Now().Unix())
			if err != nil {
				logger.Error("failed to begin run", "error", err)
				os.Exit(1)
			}
			s.Bus().Subscribe(store.Recorder(ctx, runID, func(err error) {
				logger.Warn("event write failed", "error", err)
			}))
			logger.Info("recording run", "db", cfg.Output.DBPath, "run_id", runID)
		}
		if hub != nil {
			s.Bus().Subscribe(hub.Subscriber())
		}

		res := s.Run()
		if *runs > 1 {
			fmt.Printf("--- run %d (seed %d) ---\n", i+1, runCfg.Run.Seed)
		}
		stats.WriteSummary(os.Stdout, res.Summary)
	}
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch level {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}
