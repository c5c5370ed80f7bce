// Package swarm produces a first valid trace transforming a source
// lattice into a target lattice by bounded randomized search: a fission
// fan-out along the x axis, per-bot slab construction with randomized
// corner routing, and a single-bot serial fallback. Every emitted trace
// re-runs through the simulator before being returned.
package swarm

import (
	"errors"
	"fmt"
	"time"

	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
)

// ErrSearchExhausted marks a budget exhausted before a valid trace was
// found. Recoverable: the caller may retry with larger budgets. A partial
// trace, when one exists, is returned alongside it.
var ErrSearchExhausted = errors.New("search exhausted")

// Config carries the caller-supplied budgets. Every random choice flows
// from Seed, so equal inputs reproduce equal traces.
type Config struct {
	Seed             int64
	MaxTicks         int
	MaxRouteAttempts int
	RouteBudget      time.Duration
	BotCount         int
}

// FromTuning maps the yaml search defaults onto a Config.
func FromTuning(s tuning.Search, seed int64) Config {
	return Config{
		Seed:             seed,
		MaxTicks:         s.MaxTicks,
		MaxRouteAttempts: s.RouteAttempts,
		RouteBudget:      time.Duration(s.RouteBudgetMs) * time.Millisecond,
		BotCount:         s.BotCount,
	}
}

// Solve searches for a trace turning src into tgt, returning the trace
// and its simulated energy. A nil src means an all-Empty lattice of
// tgt's resolution; a nil tgt an all-Empty lattice of src's. The result
// always validates as a Match before being returned.
func Solve(src, tgt *model.Matrix, cfg Config, costs tuning.Costs) ([]trace.Command, int64, error) {
	if src == nil && tgt == nil {
		return nil, 0, fmt.Errorf("swarm: neither source nor target model given")
	}
	if src == nil {
		src = tgt.EmptyLike()
	}
	if tgt == nil {
		tgt = src.EmptyLike()
	}
	if src.R() != tgt.R() {
		return nil, 0, fmt.Errorf("swarm: source resolution %d != target resolution %d: %w",
			src.R(), tgt.R(), model.ErrMalformedModel)
	}
	if cfg.MaxTicks <= 0 {
		return nil, 0, fmt.Errorf("swarm: tick budget %d: %w", cfg.MaxTicks, ErrSearchExhausted)
	}
	if cfg.MaxRouteAttempts <= 0 {
		cfg.MaxRouteAttempts = 1
	}
	if cfg.RouteBudget <= 0 {
		cfg.RouteBudget = 50 * time.Millisecond
	}

	g := newGen(src, cfg)
	cmds, err := g.planSwarm(tgt)
	if err != nil {
		// Multi-bot choreography could not be placed; retry from scratch
		// with the single-bot serial plan before giving up.
		g = newGen(src, cfg)
		cmds, err = g.planSerial(tgt)
		if err != nil {
			return cmds, 0, err
		}
	}

	res, verr := validate.Run(src, tgt, cmds, costs)
	if verr != nil {
		return cmds, 0, fmt.Errorf("swarm: generated trace rejected by simulator: %v: %w", verr, ErrSearchExhausted)
	}
	if res.Status != validate.Match {
		return cmds, 0, fmt.Errorf("swarm: generated trace mismatches target at (%d,%d,%d): %w",
			res.FirstDiff.X, res.FirstDiff.Y, res.FirstDiff.Z, ErrSearchExhausted)
	}
	return cmds, res.Energy, nil
}
