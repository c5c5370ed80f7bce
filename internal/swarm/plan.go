package swarm

import (
	"sort"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/sim"
	"matterswarm/internal/trace"
)

var (
	down = coord.Diff{Y: -1}
	up   = coord.Diff{Y: 1}
)

// workCells diffs the current lattice against the target: cells to clear
// come back top-down, cells to fill bottom-up, so clearing never undercuts
// later work and filling always approaches from above.
func workCells(cur, tgt *model.Matrix) (removals, fills []coord.Coord) {
	r := cur.R()
	for x := 0; x < r; x++ {
		for y := 0; y < r; y++ {
			for z := 0; z < r; z++ {
				c := coord.Coord{X: x, Y: y, Z: z}
				switch {
				case cur.Filled(c) && !tgt.Filled(c):
					removals = append(removals, c)
				case !cur.Filled(c) && tgt.Filled(c):
					fills = append(fills, c)
				}
			}
		}
	}
	byLayer := func(cells []coord.Coord, asc bool) {
		sort.Slice(cells, func(i, j int) bool {
			a, b := cells[i], cells[j]
			if a.Y != b.Y {
				if asc {
					return a.Y < b.Y
				}
				return a.Y > b.Y
			}
			if a.X != b.X {
				return a.X < b.X
			}
			return a.Z < b.Z
		})
	}
	byLayer(removals, false)
	byLayer(fills, true)
	return removals, fills
}

// clearCells voids each cell from the hover position above it, draining
// the bot's queue as solo rounds.
func (g *gen) clearCells(b *genBot, cells []coord.Coord) error {
	for _, c := range cells {
		hover := c.Add(up)
		if !g.cur.Inside(hover) {
			return g.exhausted("no hover above (%d,%d,%d)", c.X, c.Y, c.Z)
		}
		legs, err := g.route(b, hover, g.otherBotCells(b))
		if err != nil {
			return err
		}
		b.queueLegs(legs)
		b.queue = append(b.queue, trace.Void(down))
		g.cur.Void(c)
		if err := g.drainSolo(b); err != nil {
			return err
		}
	}
	return nil
}

// queueFills plans a bot's fill work into its queue without draining:
// route to the hover above each cell, fill downward. Used by both the
// serial plan (drained solo) and the slab workers (drained interleaved).
func (g *gen) queueFills(b *genBot, cells []coord.Coord) error {
	for _, c := range cells {
		hover := c.Add(up)
		if !g.cur.Inside(hover) {
			return g.exhausted("no hover above (%d,%d,%d)", c.X, c.Y, c.Z)
		}
		legs, err := g.route(b, hover, nil)
		if err != nil {
			return err
		}
		b.queueLegs(legs)
		b.queue = append(b.queue, trace.Fill(down))
		g.cur.Fill(c)
	}
	return nil
}

// goTo queues a routed move and drains it as solo rounds.
func (g *gen) goTo(b *genBot, to coord.Coord) error {
	legs, err := g.route(b, to, g.otherBotCells(b))
	if err != nil {
		return err
	}
	b.queueLegs(legs)
	return g.drainSolo(b)
}

// planSerial is the trivial fallback: one bot clears, fills, returns to
// the origin and halts.
func (g *gen) planSerial(tgt *model.Matrix) ([]trace.Command, error) {
	b := g.bots[0]
	removals, fills := workCells(g.cur, tgt)
	if err := g.clearCells(b, removals); err != nil {
		return g.flatten(), err
	}
	if err := g.queueFills(b, fills); err != nil {
		return g.flatten(), err
	}
	if err := g.drainSolo(b); err != nil {
		return g.flatten(), err
	}
	if err := g.goTo(b, coord.Coord{}); err != nil {
		return g.flatten(), err
	}
	if g.overBudget() {
		return g.flatten(), g.exhausted("tick budget %d exceeded", g.cfg.MaxTicks)
	}
	g.solo(b, trace.Halt())
	return g.flatten(), nil
}

type slab struct {
	xlo, xhi int
	cells    []coord.Coord
}

// partitionSlabs splits the fill set into contiguous x-ranges with
// roughly equal cell counts, one per worker.
func partitionSlabs(fills []coord.Coord, n, r int) []slab {
	if n < 2 || len(fills) == 0 {
		return nil
	}
	hist := make([]int, r)
	for _, c := range fills {
		hist[c.X]++
	}
	per := (len(fills) + n - 1) / n
	var slabs []slab
	acc, lo := 0, -1
	for x := 0; x < r; x++ {
		if hist[x] == 0 && lo == -1 {
			continue
		}
		if lo == -1 {
			lo = x
		}
		acc += hist[x]
		if acc >= per && len(slabs) < n-1 {
			slabs = append(slabs, slab{xlo: lo, xhi: x})
			acc, lo = 0, -1
		}
	}
	if lo != -1 {
		slabs = append(slabs, slab{xlo: lo, xhi: r - 1})
	}
	for _, c := range fills {
		for i := range slabs {
			if c.X >= slabs[i].xlo && c.X <= slabs[i].xhi {
				slabs[i].cells = append(slabs[i].cells, c)
				break
			}
		}
	}
	out := slabs[:0]
	for _, s := range slabs {
		if len(s.cells) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// planSwarm is the multi-bot plan: clear serially, fission a worker fan
// along the ground row, build the slabs in parallel, regroup on the top
// layer, fuse back to one bot and halt at the origin.
func (g *gen) planSwarm(tgt *model.Matrix) ([]trace.Command, error) {
	b1 := g.bots[0]
	removals, fills := workCells(g.cur, tgt)
	if err := g.clearCells(b1, removals); err != nil {
		return g.flatten(), err
	}

	n := g.cfg.BotCount
	if n > sim.MaxBots {
		n = sim.MaxBots
	}
	if n > g.r-1 {
		n = g.r - 1
	}
	slabs := partitionSlabs(fills, n, g.r)
	n = len(slabs)
	if n < 2 {
		return g.flatten(), g.exhausted("fill set does not split into slabs")
	}
	// Gather columns x=0..n-1 must stay clear of every slab.
	for k, s := range slabs {
		if s.xlo <= k {
			return g.flatten(), g.exhausted("slab %d starts at x=%d, too close to the gather line", k, s.xlo)
		}
		home := coord.Coord{X: s.xlo}
		if g.cur.Filled(home) {
			return g.flatten(), g.exhausted("home cell (%d,0,0) is full", home.X)
		}
	}

	if err := g.goTo(b1, coord.Coord{}); err != nil {
		return g.flatten(), err
	}

	// Fan out: farthest slab first so each child walks over nothing but
	// empty row cells ahead of the already-seated workers.
	worker := make([]*genBot, n)
	worker[0] = b1
	for k := n - 1; k >= 1; k-- {
		child, err := g.fissionChild(b1, coord.Diff{X: 1})
		if err != nil {
			return g.flatten(), err
		}
		if err := g.goTo(child, coord.Coord{X: slabs[k].xlo}); err != nil {
			return g.flatten(), err
		}
		worker[k] = child
	}
	if err := g.goTo(b1, coord.Coord{X: slabs[0].xlo}); err != nil {
		return g.flatten(), err
	}

	// Parallel build inside disjoint slab boxes.
	for k, s := range slabs {
		worker[k].box = coord.Region{
			Min: coord.Coord{X: s.xlo},
			Max: coord.Coord{X: s.xhi, Y: g.r - 1, Z: g.r - 1},
		}
		if err := g.queueFills(worker[k], s.cells); err != nil {
			return g.flatten(), err
		}
	}
	if err := g.drainAll(); err != nil {
		return g.flatten(), err
	}

	// Regroup on the top layer at x=0..n-1, z=0.
	for k := 0; k < n; k++ {
		worker[k].box = wholeBox(g.r)
		if err := g.goTo(worker[k], coord.Coord{X: k, Y: g.r - 1}); err != nil {
			return g.flatten(), err
		}
	}
	for len(g.bots) > 1 {
		sec := g.botAt(b1.pos.Add(coord.Diff{X: 1}))
		if sec == nil {
			return g.flatten(), g.exhausted("no fusion partner next to bot 1")
		}
		if err := g.fuse(b1, sec); err != nil {
			return g.flatten(), err
		}
		if len(g.bots) > 1 {
			b1.queue = append(b1.queue, trace.SMove(coord.AxisX, 1))
			b1.pos = b1.pos.Add(coord.Diff{X: 1})
			if err := g.drainSolo(b1); err != nil {
				return g.flatten(), err
			}
		}
	}

	if err := g.goTo(b1, coord.Coord{}); err != nil {
		return g.flatten(), err
	}
	if g.overBudget() {
		return g.flatten(), g.exhausted("tick budget %d exceeded", g.cfg.MaxTicks)
	}
	g.solo(b1, trace.Halt())
	return g.flatten(), nil
}

func (g *gen) botAt(c coord.Coord) *genBot {
	for _, b := range g.bots {
		if b.pos == c {
			return b
		}
	}
	return nil
}
