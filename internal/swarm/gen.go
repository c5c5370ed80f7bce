package swarm

import (
	"fmt"
	"math/rand"
	"sort"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/sim"
	"matterswarm/internal/trace"
)

// genBot mirrors the simulator's bot bookkeeping (id order, seed pool
// splits) so the generated rounds line up with what the simulator will
// demand. box clamps all of the bot's movement; in the parallel build
// phase boxes are disjoint x-slabs, which keeps volatile sets disjoint.
type genBot struct {
	id    uint8
	pos   coord.Coord
	seeds []uint8
	queue []trace.Command
	box   coord.Region
}

type gen struct {
	r      int
	cur    *model.Matrix
	bots   []*genBot
	rounds [][]trace.Command
	rng    *rand.Rand
	cfg    Config
}

func newGen(src *model.Matrix, cfg Config) *gen {
	r := src.R()
	seeds := make([]uint8, 0, sim.MaxBots-1)
	for id := uint8(2); id <= sim.MaxBots; id++ {
		seeds = append(seeds, id)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	return &gen{
		r:   r,
		cur: src.Clone(),
		bots: []*genBot{{
			id:    1,
			seeds: seeds,
			box:   wholeBox(r),
		}},
		rng: rand.New(rand.NewSource(seed)),
		cfg: cfg,
	}
}

func wholeBox(r int) coord.Region {
	return coord.Region{Max: coord.Coord{X: r - 1, Y: r - 1, Z: r - 1}}
}

func (g *gen) overBudget() bool { return len(g.rounds) >= g.cfg.MaxTicks }

func (g *gen) exhausted(format string, args ...any) error {
	args = append(args, ErrSearchExhausted)
	return fmt.Errorf("swarm: "+format+": %w", args...)
}

// flatten returns the rounds as the wire-order command stream.
func (g *gen) flatten() []trace.Command {
	var out []trace.Command
	for _, round := range g.rounds {
		out = append(out, round...)
	}
	return out
}

// emit appends one round built from per-bot commands; bots without an
// entry Wait. Commands are laid out in id order, as the simulator expects.
func (g *gen) emit(cmds map[uint8]trace.Command) {
	round := make([]trace.Command, 0, len(g.bots))
	for _, b := range g.bots {
		if cmd, ok := cmds[b.id]; ok {
			round = append(round, cmd)
		} else {
			round = append(round, trace.Wait())
		}
	}
	g.rounds = append(g.rounds, round)
}

func (g *gen) solo(b *genBot, cmd trace.Command) {
	g.emit(map[uint8]trace.Command{b.id: cmd})
}

// drainSolo replays a bot's queued commands one round at a time while
// every other bot waits.
func (g *gen) drainSolo(b *genBot) error {
	for _, cmd := range b.queue {
		if g.overBudget() {
			return g.exhausted("tick budget %d exceeded", g.cfg.MaxTicks)
		}
		g.solo(b, cmd)
	}
	b.queue = nil
	return nil
}

// drainAll interleaves every bot's queue: each round all bots with
// pending commands advance together, the rest wait. Queue contents must
// have pairwise disjoint volatile sets, which slab boxes guarantee.
func (g *gen) drainAll() error {
	for {
		pending := false
		cmds := make(map[uint8]trace.Command, len(g.bots))
		for _, b := range g.bots {
			if len(b.queue) > 0 {
				cmds[b.id] = b.queue[0]
				b.queue = b.queue[1:]
				pending = true
			}
		}
		if !pending {
			return nil
		}
		if g.overBudget() {
			return g.exhausted("tick budget %d exceeded", g.cfg.MaxTicks)
		}
		g.emit(cmds)
	}
}

// queueLegs decomposes axis-aligned legs into SMoves of legal width,
// appending them to the bot's queue and advancing its tracked position.
func (b *genBot) queueLegs(legs []coord.Linear) {
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
			b.queue = append(b.queue, trace.SMove(leg.Axis, step))
			b.pos = b.pos.Add(coord.Linear{Axis: leg.Axis, Len: step}.Diff())
			rest -= step
		}
	}
}

// fissionChild splits a child off b at the adjacent cell d, mirroring the
// simulator's deterministic seed-pool split (child takes the lowest id).
func (g *gen) fissionChild(b *genBot, d coord.Diff) (*genBot, error) {
	if len(b.seeds) < 1 {
		return nil, g.exhausted("bot %d has no seeds left", b.id)
	}
	tgt := b.pos.Add(d)
	if !g.cur.Inside(tgt) || g.cur.Filled(tgt) {
		return nil, g.exhausted("fission target (%d,%d,%d) unavailable", tgt.X, tgt.Y, tgt.Z)
	}
	if g.overBudget() {
		return nil, g.exhausted("tick budget %d exceeded", g.cfg.MaxTicks)
	}
	g.solo(b, trace.Fission(d, 0))
	child := &genBot{
		id:  b.seeds[0],
		pos: tgt,
		box: wholeBox(g.r),
	}
	b.seeds = b.seeds[1:]
	g.bots = append(g.bots, child)
	sort.Slice(g.bots, func(i, j int) bool { return g.bots[i].id < g.bots[j].id })
	return child, nil
}

// fuse merges secondary into primary; they must already be adjacent.
func (g *gen) fuse(primary, secondary *genBot) error {
	d := secondary.pos.Sub(primary.pos)
	if !d.IsNear() {
		return g.exhausted("fusion pair bots %d,%d not adjacent", primary.id, secondary.id)
	}
	if g.overBudget() {
		return g.exhausted("tick budget %d exceeded", g.cfg.MaxTicks)
	}
	g.emit(map[uint8]trace.Command{
		primary.id:   trace.FusionP(d),
		secondary.id: trace.FusionS(d.Neg()),
	})
	primary.seeds = append(primary.seeds, secondary.id)
	primary.seeds = append(primary.seeds, secondary.seeds...)
	sort.Slice(primary.seeds, func(i, j int) bool { return primary.seeds[i] < primary.seeds[j] })
	for i, b := range g.bots {
		if b.id == secondary.id {
			g.bots = append(g.bots[:i], g.bots[i+1:]...)
			break
		}
	}
	return nil
}

// otherBotCells snapshots every other bot's position, used as extra
// obstacles during the sequential phases.
func (g *gen) otherBotCells(me *genBot) map[coord.Coord]bool {
	out := make(map[coord.Coord]bool, len(g.bots))
	for _, b := range g.bots {
		if b != me {
			out[b.pos] = true
		}
	}
	return out
}
