// Command replay reads a recorded run from the event database, rebuilds
// its summary through the same collector that produced the live report,
// and optionally dumps every event.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"marketsim/internal/stats"
)

func main() {
	var (
		dbPath  = flag.String("db", "marketsim.db", "event database to read")
		runID   = flag.Int64("run", 0, "run id to replay (0 = most recent)")
		verbose = flag.Bool("v", false, "print every event")
	)
	flag.Parse()

	store, err := stats.NewStore(*dbPath)
	if err != nil {
		slog.Error("failed to open event store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	id := *runID
	if id == 0 {
		id, err = store.LastRun(ctx)
		if err != nil {
			slog.Error("failed to find last run", "error", err)
			os.Exit(1)
		}
		if id == 0 {
			slog.Error("event store holds no runs", "path", *dbPath)
			os.Exit(1)
		}
	}

	events, err := store.LoadEvents(ctx, id)
	if err != nil {
		slog.Error("failed to load events", "run_id", id, "error", err)
		os.Exit(1)
	}

	collector := stats.NewCollector()
	for _, ev := range events {
		if *verbose {
			fmt.Printf("%8d %-12s %+v\n", ev.EventTime().Ticks(), ev.EventKind(), ev)
		}
		collector.Accept(ev)
	}

	fmt.Printf("run %d: %d events\n", id, len(events))
	stats.WriteSummary(os.Stdout, collector.Summary())
}
