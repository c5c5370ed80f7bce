package swarm

import (
	"time"

	"matterswarm/internal/coord"
)

// segClear reports whether an axis-aligned run from `from` stays inside
// the box and lattice and crosses only Empty, unoccupied cells. The
// starting cell itself holds the moving bot and is not checked.
func (g *gen) segClear(from coord.Coord, leg coord.Linear, box coord.Region, obstacles map[coord.Coord]bool) bool {
	step := coord.Linear{Axis: leg.Axis, Len: 1}
	if leg.Len < 0 {
		step.Len = -1
	}
	cur := from
	for i := 0; i < abs(leg.Len); i++ {
		cur = cur.Add(step.Diff())
		if !box.Contains(cur) || !g.cur.Inside(cur) {
			return false
		}
		if g.cur.Filled(cur) || obstacles[cur] {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// legsBetween builds axis-aligned legs visiting the given axis order,
// dropping zero legs, and checks them. ok is false on any obstruction.
func (g *gen) legsBetween(from, to coord.Coord, order [3]coord.Axis, box coord.Region, obstacles map[coord.Coord]bool) ([]coord.Linear, bool) {
	var legs []coord.Linear
	cur := from
	for _, axis := range order {
		var l int
		switch axis {
		case coord.AxisX:
			l = to.X - cur.X
		case coord.AxisY:
			l = to.Y - cur.Y
		default:
			l = to.Z - cur.Z
		}
		if l == 0 {
			continue
		}
		leg := coord.Linear{Axis: axis, Len: l}
		if !g.segClear(cur, leg, box, obstacles) {
			return nil, false
		}
		cur = cur.Add(leg.Diff())
		legs = append(legs, leg)
	}
	return legs, true
}

// riseRoute is the deterministic first try: climb to a travel altitude,
// cross horizontally, settle to the destination. During bottom-up
// construction the plane just above the highest built layer is always
// clear, so this almost always lands on the first candidate.
func (g *gen) riseRoute(from, to coord.Coord, box coord.Region, obstacles map[coord.Coord]bool) ([]coord.Linear, bool) {
	for _, yh := range []int{max(from.Y, to.Y), g.r - 1} {
		legs, ok := g.viaAltitude(from, to, yh, box, obstacles)
		if ok {
			return legs, true
		}
	}
	return nil, false
}

func (g *gen) viaAltitude(from, to coord.Coord, yh int, box coord.Region, obstacles map[coord.Coord]bool) ([]coord.Linear, bool) {
	var legs []coord.Linear
	cur := from
	for _, leg := range []coord.Linear{
		{Axis: coord.AxisY, Len: yh - from.Y},
		{Axis: coord.AxisX, Len: to.X - from.X},
		{Axis: coord.AxisZ, Len: to.Z - from.Z},
		{Axis: coord.AxisY, Len: to.Y - yh},
	} {
		if leg.Len == 0 {
			continue
		}
		if !g.segClear(cur, leg, box, obstacles) {
			return nil, false
		}
		cur = cur.Add(leg.Diff())
		legs = append(legs, leg)
	}
	return legs, true
}

// axisOrders mirrors the reference router's six corner-path jumps: every
// visiting order of the three axes.
var axisOrders = [6][3]coord.Axis{
	{coord.AxisX, coord.AxisY, coord.AxisZ},
	{coord.AxisX, coord.AxisZ, coord.AxisY},
	{coord.AxisY, coord.AxisX, coord.AxisZ},
	{coord.AxisY, coord.AxisZ, coord.AxisX},
	{coord.AxisZ, coord.AxisX, coord.AxisY},
	{coord.AxisZ, coord.AxisY, coord.AxisX},
}

// cornerRoute tries the six direct corner paths in seeded-random order.
func (g *gen) cornerRoute(from, to coord.Coord, box coord.Region, obstacles map[coord.Coord]bool) ([]coord.Linear, bool) {
	for _, pick := range g.rng.Perm(len(axisOrders)) {
		if legs, ok := g.legsBetween(from, to, axisOrders[pick], box, obstacles); ok {
			return legs, true
		}
	}
	return nil, false
}

func (g *gen) randomFreeCell(box coord.Region, obstacles map[coord.Coord]bool) (coord.Coord, bool) {
	for i := 0; i < 32; i++ {
		c := coord.Coord{
			X: box.Min.X + g.rng.Intn(box.Max.X-box.Min.X+1),
			Y: box.Min.Y + g.rng.Intn(box.Max.Y-box.Min.Y+1),
			Z: box.Min.Z + g.rng.Intn(box.Max.Z-box.Min.Z+1),
		}
		if !g.cur.Filled(c) && !obstacles[c] {
			return c, true
		}
	}
	return coord.Coord{}, false
}

// route finds legs from a bot's position to `to` within its box: the
// deterministic rise route first, then bounded randomized sampling —
// direct corner paths and single random waypoints — until the attempt or
// time budget runs out.
func (g *gen) route(b *genBot, to coord.Coord, obstacles map[coord.Coord]bool) ([]coord.Linear, error) {
	if b.pos == to {
		return nil, nil
	}
	if legs, ok := g.riseRoute(b.pos, to, b.box, obstacles); ok {
		return legs, nil
	}
	deadline := time.Now().Add(g.cfg.RouteBudget)
	for attempt := 0; attempt < g.cfg.MaxRouteAttempts; attempt++ {
		if time.Now().After(deadline) {
			break
		}
		if legs, ok := g.cornerRoute(b.pos, to, b.box, obstacles); ok {
			return legs, nil
		}
		w, ok := g.randomFreeCell(b.box, obstacles)
		if !ok {
			continue
		}
		first, ok := g.cornerRoute(b.pos, w, b.box, obstacles)
		if !ok {
			continue
		}
		second, ok := g.cornerRoute(w, to, b.box, obstacles)
		if !ok {
			continue
		}
		return append(first, second...), nil
	}
	return nil, g.exhausted("no route for bot %d from (%d,%d,%d) to (%d,%d,%d)",
		b.id, b.pos.X, b.pos.Y, b.pos.Z, to.X, to.Y, to.Z)
}
