// Command score simulates a trace against source/target models and
// prints the energy verdict.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"matterswarm/internal/model"
	"matterswarm/internal/sim"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
)

func main() {
	var (
		targetPath = flag.String("m", "", "target model (.mdl, .mdl.zst); empty for deconstruction")
		sourcePath = flag.String("s", "", "source model; empty for construction from an empty matrix")
		tracePath  = flag.String("t", "", "trace to score (.nbt, .nbt.zst)")
		tuningPath = flag.String("tuning", "", "optional tuning overlay (yaml)")
	)
	flag.Parse()

	if *tracePath == "" {
		fmt.Fprintln(os.Stderr, "missing -t")
		os.Exit(2)
	}
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

	cmds, err := trace.ReadFile(*tracePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "trace:", err)
		os.Exit(2)
	}
	fmt.Printf("Commands: %d\n", len(cmds))

	res, err := validate.Run(src, tgt, cmds, tune.Costs)
	if err != nil {
		// Simulator aborts carry no meaningful energy.
		fmt.Printf("ERROR: %v\n", err)
		if errors.Is(err, sim.ErrCellConflict) ||
			errors.Is(err, sim.ErrObstructedMove) ||
			errors.Is(err, sim.ErrIllegalHalt) ||
			errors.Is(err, sim.ErrIllegalCommand) ||
			errors.Is(err, trace.ErrTruncatedTrace) {
			os.Exit(1)
		}
		os.Exit(2)
	}

	fmt.Printf("Steps: %d\n", res.Steps)
	fmt.Printf("ENERGY: %d\n", res.Energy)
	if res.Status != validate.Match {
		fmt.Printf("ERROR: result differs from target at (%d,%d,%d)\n",
			res.FirstDiff.X, res.FirstDiff.Y, res.FirstDiff.Z)
		os.Exit(1)
	}
	fmt.Println("SUCCESS")
}
