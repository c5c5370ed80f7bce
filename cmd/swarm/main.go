// Command swarm searches for a legal trace that transforms the source
// model into the target and writes it out.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"matterswarm/internal/model"
	"matterswarm/internal/swarm"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
)

func main() {
	var (
		targetPath = flag.String("m", "", "target model; empty for deconstruction")
		sourcePath = flag.String("s", "", "source model; empty for construction from an empty matrix")
		outPath    = flag.String("o", "out.nbt", "output trace path (.nbt, .nbt.zst)")
		tuningPath = flag.String("tuning", "", "optional tuning overlay (yaml)")
		seed       = flag.Int64("seed", 1, "rng seed for route randomization")
		maxTicks   = flag.Int("max-ticks", 0, "tick budget override (0 = tuning default)")
		attempts   = flag.Int("route-attempts", 0, "per-route attempt override")
		budgetMs   = flag.Int("route-budget-ms", 0, "per-route time budget override")
		bots       = flag.Int("bots", 0, "worker bot count override")
	)
	flag.Parse()

	if *targetPath == "" && *sourcePath == "" {
		fmt.Fprintln(os.Stderr, "need -m and/or -s")
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(2)
	}

	var src, tgt *model.Matrix
	if *sourcePath != "" {
		if src, err = model.ReadFile(*sourcePath); err != nil {
			fmt.Fprintln(os.Stderr, "source model:", err)
			os.Exit(2)
		}
	}
	if *targetPath != "" {
		if tgt, err = model.ReadFile(*targetPath); err != nil {
			fmt.Fprintln(os.Stderr, "target model:", err)
			os.Exit(2)
		}
	}

	cfg := swarm.FromTuning(tune.Search, *seed)
	if *maxTicks > 0 {
		cfg.MaxTicks = *maxTicks
	}
	if *attempts > 0 {
		cfg.MaxRouteAttempts = *attempts
	}
	if *budgetMs > 0 {
		cfg.RouteBudget = time.Duration(*budgetMs) * time.Millisecond
	}
	if *bots > 0 {
		cfg.BotCount = *bots
	}

	start := time.Now()
	cmds, energy, err := swarm.Solve(src, tgt, cfg, tune.Costs)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	if err := trace.WriteFile(*outPath, cmds); err != nil {
		fmt.Fprintln(os.Stderr, "write trace:", err)
		os.Exit(2)
	}

	fmt.Printf("Commands: %d\n", len(cmds))
	fmt.Printf("ENERGY: %d\n", energy)
	fmt.Printf("Elapsed: %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Println("SUCCESS")
}
