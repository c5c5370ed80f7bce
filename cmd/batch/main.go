// Command batch scores every job in a manifest in parallel, printing
// one line per job and optionally recording results to a run log and a
// score database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"matterswarm/internal/batch"
	"matterswarm/internal/runlog"
	"matterswarm/internal/scoredb"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
)

func main() {
	var (
		manifestPath = flag.String("manifest", "", "batch manifest (json)")
		workers      = flag.Int("workers", 4, "concurrent scoring workers")
		dbPath       = flag.String("db", "", "optional sqlite score database")
		logPath      = flag.String("log", "", "optional run log (.jsonl.zst)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[batch] ", log.LstdFlags|log.Lmicroseconds)

	if *manifestPath == "" {
		fmt.Fprintln(os.Stderr, "missing -manifest")
		os.Exit(2)
	}

	m, err := batch.LoadManifest(*manifestPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "manifest:", err)
		os.Exit(2)
	}

	tune, err := tuning.Load(m.Tuning)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(2)
	}

	var lw *runlog.Writer
	if *logPath != "" {
		if lw, err = runlog.NewWriter(*logPath); err != nil {
			fmt.Fprintln(os.Stderr, "run log:", err)
			os.Exit(2)
		}
		defer lw.Close()
	}

	var db *scoredb.DB
	if *dbPath != "" {
		if db, err = scoredb.Open(*dbPath); err != nil {
			fmt.Fprintln(os.Stderr, "score db:", err)
			os.Exit(2)
		}
		defer db.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	failures := 0
	sink := func(r batch.Result) error {
		run := scoredb.Run{Name: r.Job.Name, Energy: r.Energy, Steps: r.Steps}
		switch {
		case r.Err != nil:
			run.Status = "error"
			run.Err = r.Err.Error()
			failures++
			logger.Printf("%s error: %v", r.Job.Name, r.Err)
		case r.Status != validate.Match:
			run.Status = "mismatch"
			failures++
			logger.Printf("%s mismatch energy=%d steps=%d", r.Job.Name, r.Energy, r.Steps)
		default:
			run.Status = "match"
			logger.Printf("%s match energy=%d steps=%d", r.Job.Name, r.Energy, r.Steps)
		}
		if lw != nil {
			if err := lw.Write(run); err != nil {
				return fmt.Errorf("run log: %w", err)
			}
		}
		if db != nil {
			db.RecordRun(run)
		}
		return nil
	}

	if err := batch.Run(ctx, m, *workers, tune.Costs, sink); err != nil {
		fmt.Fprintln(os.Stderr, "batch:", err)
		os.Exit(2)
	}

	logger.Printf("scored %d job(s), %d failure(s)", len(m.Jobs), failures)
	if failures > 0 {
		os.Exit(1)
	}
}
