// Package gravitize improves an existing valid trace by guided
// perturbation: wait-only rounds are elided, adjacent moves merge, and
// wandering move chains are re-routed so bots settle toward the ground
// plane first. Every candidate re-runs through the simulator; a rewrite
// is kept only when it stays legal, still matches the target and costs
// strictly less energy, so accepted energy is monotonically decreasing.
package gravitize

import (
	"fmt"
	"math/rand"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
)

type Config struct {
	Seed     int64
	MaxIters int
}

// Optimize hill-climbs from an already-matching trace. It returns the
// best trace found and its energy; when nothing improves, the input
// comes back unchanged.
func Optimize(src, tgt *model.Matrix, cmds []trace.Command, cfg Config, costs tuning.Costs) ([]trace.Command, int64, error) {
	res, err := validate.Run(src, tgt, cmds, costs)
	if err != nil {
		return nil, 0, fmt.Errorf("gravitize: input trace: %w", err)
	}
	if res.Status != validate.Match {
		return nil, 0, fmt.Errorf("gravitize: input trace mismatches target at (%d,%d,%d)",
			res.FirstDiff.X, res.FirstDiff.Y, res.FirstDiff.Z)
	}

	rounds, err := splitRounds(cmds)
	if err != nil {
		return nil, 0, err
	}
	best := cmds
	bestEnergy := res.Energy

	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	for iter := 0; iter < cfg.MaxIters; iter++ {
		cand, ok := propose(rounds, rng)
		if !ok {
			break
		}
		flat := flatten(cand)
		r, err := validate.Run(src, tgt, flat, costs)
		if err != nil || r.Status != validate.Match || r.Energy >= bestEnergy {
			continue
		}
		rounds = cand
		best = flat
		bestEnergy = r.Energy
	}
	return best, bestEnergy, nil
}

// splitRounds recovers the per-tick round structure from the flat
// stream by tracking the live bot count: fission adds one, each fusion
// secondary removes one, halt ends the trace.
func splitRounds(cmds []trace.Command) ([][]trace.Command, error) {
	n := 1
	var rounds [][]trace.Command
	i := 0
	for n > 0 && i < len(cmds) {
		if i+n > len(cmds) {
			return nil, fmt.Errorf("gravitize: round needs %d command(s), have %d: %w",
				n, len(cmds)-i, trace.ErrTruncatedTrace)
		}
		round := cmds[i : i+n]
		i += n
		for _, c := range round {
			switch c.Op {
			case trace.OpFission:
				n++
			case trace.OpFusionS:
				n--
			case trace.OpHalt:
				n = 0
			}
		}
		rounds = append(rounds, round)
	}
	if i != len(cmds) {
		return nil, fmt.Errorf("gravitize: %d command(s) after halt: %w", len(cmds)-i, trace.ErrTruncatedTrace)
	}
	return rounds, nil
}

func flatten(rounds [][]trace.Command) []trace.Command {
	var out []trace.Command
	for _, r := range rounds {
		out = append(out, r...)
	}
	return out
}

func copyRounds(rounds [][]trace.Command) [][]trace.Command {
	out := make([][]trace.Command, len(rounds))
	for i, r := range rounds {
		out[i] = append([]trace.Command(nil), r...)
	}
	return out
}

type site struct {
	kind   int
	t0, t1 int
	col    int
}

const (
	kindWaitRound = iota
	kindChain
	kindMergeLMove
)

func isMove(c trace.Command) bool {
	return c.Op == trace.OpSMove || c.Op == trace.OpLMove
}

func moveDiff(c trace.Command) coord.Diff {
	d := c.Move.Diff()
	if c.Op == trace.OpLMove {
		d2 := c.Move2.Diff()
		d = coord.Diff{X: d.X + d2.X, Y: d.Y + d2.Y, Z: d.Z + d2.Z}
	}
	return d
}

// propose picks one rewrite site at random and applies it, returning a
// fresh rounds slice. ok is false when the trace offers nothing to
// rewrite at all.
func propose(rounds [][]trace.Command, rng *rand.Rand) ([][]trace.Command, bool) {
	var sites []site
	for t, round := range rounds {
		allWait := true
		for _, c := range round {
			if c.Op != trace.OpWait {
				allWait = false
				break
			}
		}
		if allWait {
			sites = append(sites, site{kind: kindWaitRound, t0: t, t1: t})
		}
	}
	sites = append(sites, chainSites(rounds)...)
	sites = append(sites, mergeSites(rounds)...)
	if len(sites) == 0 {
		return nil, false
	}
	s := sites[rng.Intn(len(sites))]
	switch s.kind {
	case kindWaitRound:
		out := copyRounds(rounds)
		return append(out[:s.t0], out[s.t0+1:]...), true
	case kindMergeLMove:
		return mergeLMove(rounds, s), true
	default:
		return rewriteChain(rounds, s), true
	}
}

// mergeSites finds consecutive solo SMoves on different axes short
// enough to become one LMove, trading the base cost for a whole tick.
func mergeSites(rounds [][]trace.Command) []site {
	var sites []site
	for t := 0; t+1 < len(rounds); t++ {
		if len(rounds[t]) != len(rounds[t+1]) {
			continue
		}
		for col := range rounds[t] {
			if !soloMoveRound(rounds[t], col) || !soloMoveRound(rounds[t+1], col) {
				continue
			}
			a, b := rounds[t][col], rounds[t+1][col]
			if a.Op != trace.OpSMove || b.Op != trace.OpSMove {
				continue
			}
			if a.Move.Axis == b.Move.Axis {
				continue // the chain rewrite already covers this
			}
			if abs(a.Move.Len) > 5 || abs(b.Move.Len) > 5 {
				continue
			}
			sites = append(sites, site{kind: kindMergeLMove, t0: t, t1: t + 1, col: col})
		}
	}
	return sites
}

func mergeLMove(rounds [][]trace.Command, s site) [][]trace.Command {
	out := copyRounds(rounds)
	a, b := out[s.t0][s.col], out[s.t1][s.col]
	out[s.t0][s.col] = trace.LMove(a.Move.Axis, a.Move.Len, b.Move.Axis, b.Move.Len)
	return append(out[:s.t1], out[s.t1+1:]...)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// chainSites finds maximal runs of rounds where one column only moves
// and every other column only waits, within a span of constant width.
func chainSites(rounds [][]trace.Command) []site {
	var sites []site
	for t := 0; t < len(rounds); t++ {
		width := len(rounds[t])
		for col := 0; col < width; col++ {
			if !soloMoveRound(rounds[t], col) {
				continue
			}
			if t > 0 && len(rounds[t-1]) == width && soloMoveRound(rounds[t-1], col) {
				continue // not maximal; counted from its start
			}
			end := t
			for end+1 < len(rounds) && len(rounds[end+1]) == width && soloMoveRound(rounds[end+1], col) {
				end++
			}
			if end > t {
				sites = append(sites, site{kind: kindChain, t0: t, t1: end, col: col})
			}
		}
	}
	return sites
}

func soloMoveRound(round []trace.Command, col int) bool {
	for i, c := range round {
		if i == col {
			if !isMove(c) {
				return false
			}
		} else if c.Op != trace.OpWait {
			return false
		}
	}
	return true
}

// rewriteChain replaces a move chain with the settle path realizing the
// same net displacement: descend first, cross, climb last. Detours the
// randomized search left behind collapse to nothing.
func rewriteChain(rounds [][]trace.Command, s site) [][]trace.Command {
	width := len(rounds[s.t0])
	net := coord.Diff{}
	for t := s.t0; t <= s.t1; t++ {
		d := moveDiff(rounds[t][s.col])
		net = coord.Diff{X: net.X + d.X, Y: net.Y + d.Y, Z: net.Z + d.Z}
	}
	moves := settleMoves(net)

	out := copyRounds(rounds[:s.t0])
	for _, mv := range moves {
		round := make([]trace.Command, width)
		for i := range round {
			round[i] = trace.Wait()
		}
		round[s.col] = mv
		out = append(out, round)
	}
	return append(out, copyRounds(rounds[s.t1+1:])...)
}

// settleMoves decomposes a net displacement into SMoves, taking any
// downward leg first and any upward leg last.
func settleMoves(d coord.Diff) []trace.Command {
	var legs []coord.Linear
	if d.Y < 0 {
		legs = append(legs, coord.Linear{Axis: coord.AxisY, Len: d.Y})
	}
	if d.X != 0 {
		legs = append(legs, coord.Linear{Axis: coord.AxisX, Len: d.X})
	}
	if d.Z != 0 {
		legs = append(legs, coord.Linear{Axis: coord.AxisZ, Len: d.Z})
	}
	if d.Y > 0 {
		legs = append(legs, coord.Linear{Axis: coord.AxisY, Len: d.Y})
	}
	var out []trace.Command
	for _, leg := range legs {
		rest := leg.Len
		for rest != 0 {
			step := rest
			if step > 15 {
				step = 15
			}
			if step < -15 {
				step = -15
			}
			out = append(out, trace.SMove(leg.Axis, step))
			rest -= step
		}
	}
	return out
}
