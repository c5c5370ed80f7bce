// Package validate scores a trace: it runs the simulator to completion
// and compares the resulting lattice against the declared target.
// Read-only: it owns its own simulator state and mutates nothing shared.
package validate

import (
	"fmt"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/sim"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
)

type Status int

const (
	Match Status = iota
	Mismatch
)

func (s Status) String() string {
	if s == Match {
		return "match"
	}
	return "mismatch"
}

// Result is the structured outcome of a scoring run. FirstDiff is set
// only for Mismatch: the first differing coordinate in x-major order.
type Result struct {
	Status    Status
	Energy    int64
	Steps     int
	FirstDiff coord.Coord
}

// Run simulates cmds starting from src and compares the final lattice
// against tgt. A nil src means an all-Empty source of tgt's resolution
// (construction); a nil tgt means an all-Empty target of src's resolution
// (deconstruction). Simulator and codec failures come back as errors;
// Mismatch is a result, not an error.
func Run(src, tgt *model.Matrix, cmds []trace.Command, costs tuning.Costs) (Result, error) {
	if src == nil && tgt == nil {
		return Result{}, fmt.Errorf("validate: neither source nor target model given")
	}
	if src == nil {
		src = tgt.EmptyLike()
	}
	if tgt == nil {
		tgt = src.EmptyLike()
	}
	if src.R() != tgt.R() {
		return Result{}, fmt.Errorf("validate: source resolution %d != target resolution %d: %w",
			src.R(), tgt.R(), model.ErrMalformedModel)
	}

	st := sim.New(src.Clone(), costs)
	if err := st.Run(cmds); err != nil {
		return Result{}, err
	}

	res := Result{Status: Match, Energy: st.Energy, Steps: st.Steps}
	if diff, ok := st.Matrix.FirstDiff(tgt); ok {
		res.Status = Mismatch
		res.FirstDiff = diff
	}
	return res, nil
}
