// Command gravitize rewrites an existing valid trace into a cheaper
// one with the same outcome.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"matterswarm/internal/gravitize"
	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
)

func main() {
	var (
		targetPath = flag.String("m", "", "target model; empty for deconstruction")
		sourcePath = flag.String("s", "", "source model; empty for construction from an empty matrix")
		inPath     = flag.String("t", "", "input trace")
		outPath    = flag.String("f", "", "output trace (default: overwrite input)")
		tuningPath = flag.String("tuning", "", "optional tuning overlay (yaml)")
		seed       = flag.Int64("seed", 1, "rng seed for rewrite selection")
		iters      = flag.Int("iters", 0, "iteration budget override (0 = tuning default)")
	)
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "missing -t")
		os.Exit(2)
	}
	if *targetPath == "" && *sourcePath == "" {
		fmt.Fprintln(os.Stderr, "need -m and/or -s")
		os.Exit(2)
	}
	if *outPath == "" {
		*outPath = *inPath
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

	cmds, err := trace.ReadFile(*inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "trace:", err)
		os.Exit(2)
	}

	cfg := gravitize.Config{Seed: *seed, MaxIters: tune.Search.OptimizerIters}
	if *iters > 0 {
		cfg.MaxIters = *iters
	}

	start := time.Now()
	out, energy, err := gravitize.Optimize(src, tgt, cmds, cfg, tune.Costs)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}

	// Write-then-rename so an interrupted run never clobbers the input.
	// The tmp name keeps the real suffix so compression choice matches.
	tmp := filepath.Join(filepath.Dir(*outPath), ".tmp."+filepath.Base(*outPath))
	if err := trace.WriteFile(tmp, out); err != nil {
		fmt.Fprintln(os.Stderr, "write trace:", err)
		os.Exit(2)
	}
	if err := os.Rename(tmp, *outPath); err != nil {
		_ = os.Remove(tmp)
		fmt.Fprintln(os.Stderr, "rename trace:", err)
		os.Exit(2)
	}

	fmt.Printf("Commands: %d\n", len(out))
	fmt.Printf("ENERGY: %d\n", energy)
	fmt.Printf("Elapsed: %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Println("SUCCESS")
}
