// Package sim executes instruction traces against a lattice, tick by
// tick. It is the single interpreter of command semantics: the validator
// scores through it and both trace producers use it as their legality and
// cost oracle. A State is owned by exactly one run and is never shared.
package sim

import (
	"errors"
	"fmt"
	"sort"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
)

// MaxBots bounds the identifier space: the seed bot owns ids 2..MaxBots.
const MaxBots = 40

var (
	ErrCellConflict   = errors.New("cell conflict")
	ErrObstructedMove = errors.New("obstructed move")
	ErrIllegalHalt    = errors.New("illegal halt")
	ErrIllegalCommand = errors.New("illegal command")
)

type Harmonics uint8

const (
	Low Harmonics = iota
	High
)

func (h Harmonics) String() string {
	if h == High {
		return "High"
	}
	return "Low"
}

// Bot is one active unit: its id, position and the pool of unassigned ids
// it may hand to children. Seeds stay sorted ascending.
type Bot struct {
	ID    uint8
	Pos   coord.Coord
	Seeds []uint8
}

// State is the run context: lattice, harmonics, live bots (sorted by id),
// elapsed ticks and accumulated energy.
type State struct {
	Matrix    *model.Matrix
	Harmonics Harmonics
	Bots      []*Bot
	Steps     int
	Energy    int64

	costs  tuning.Costs
	halted bool
}

// New builds the initial state: the given lattice, Low harmonics, and one
// seed bot at the origin owning every other identifier.
func New(m *model.Matrix, costs tuning.Costs) *State {
	seeds := make([]uint8, 0, MaxBots-1)
	for id := uint8(2); id <= MaxBots; id++ {
		seeds = append(seeds, id)
	}
	return &State{
		Matrix: m,
		Bots:   []*Bot{{ID: 1, Seeds: seeds}},
		costs:  costs,
	}
}

func (s *State) Halted() bool { return s.halted }

// Run consumes the whole stream, one round per tick, until Halt. The
// stream must end exactly at the halting round.
func (s *State) Run(cmds []trace.Command) error {
	i := 0
	for !s.halted {
		n := len(s.Bots)
		if i+n > len(cmds) {
			return fmt.Errorf("tick %d: need %d command(s), have %d: %w",
				s.Steps, n, len(cmds)-i, trace.ErrTruncatedTrace)
		}
		if err := s.Step(cmds[i : i+n]); err != nil {
			return err
		}
		i += n
	}
	if i != len(cmds) {
		return fmt.Errorf("%d command(s) after halt: %w", len(cmds)-i, trace.ErrTruncatedTrace)
	}
	return nil
}

type pendingFusion struct {
	bot     *Bot
	partner coord.Coord
	matched bool
}

type groupEntry struct {
	op     trace.Op
	corner coord.Coord
}

// Step applies one round: exactly one command per live bot, in id order.
// Any violation is terminal for the run.
func (s *State) Step(round []trace.Command) error {
	if s.halted {
		return fmt.Errorf("tick %d: step after halt: %w", s.Steps, ErrIllegalCommand)
	}
	if len(round) != len(s.Bots) {
		return fmt.Errorf("tick %d: %d command(s) for %d bot(s): %w",
			s.Steps, len(round), len(s.Bots), ErrIllegalCommand)
	}

	// Field and upkeep terms use the harmonics in force when the tick
	// starts; flips take effect at tick end.
	r := int64(s.Matrix.R())
	field := s.costs.FieldLow
	if s.Harmonics == High {
		field = s.costs.FieldHigh
	}
	s.Energy += field*r*r*r + s.costs.PerBot*int64(len(s.Bots))

	vol := make(map[coord.Coord]uint8)
	claim := func(id uint8, cells ...coord.Coord) error {
		for _, c := range cells {
			if prev, ok := vol[c]; ok && prev != id {
				return fmt.Errorf("tick %d: cell (%d,%d,%d) volatile for bots %d and %d: %w",
					s.Steps, c.X, c.Y, c.Z, prev, id, ErrCellConflict)
			}
			vol[c] = id
		}
		return nil
	}

	var (
		flips      int
		haltSeen   bool
		moves      = make(map[*Bot]coord.Coord)
		fills      []coord.Coord
		voids      []coord.Coord
		children   []*Bot
		primaries  []*pendingFusion
		secondarys []*pendingFusion
		groups     = make(map[coord.Region][]groupEntry)
		groupIDs   = make(map[coord.Region]uint8)
	)

	// Region voxels are volatile for the whole group, not any one member:
	// claim them under a pseudo-owner so members do not conflict with each
	// other but overlapping regions and outside bots still do.
	groupID := func(reg coord.Region) uint8 {
		if id, ok := groupIDs[reg]; ok {
			return id
		}
		id := uint8(MaxBots + 1 + len(groupIDs))
		groupIDs[reg] = id
		return id
	}

	for i, cmd := range round {
		b := s.Bots[i]
		switch cmd.Op {
		case trace.OpWait:
			if err := claim(b.ID, b.Pos); err != nil {
				return err
			}

		case trace.OpFlip:
			if err := claim(b.ID, b.Pos); err != nil {
				return err
			}
			flips++

		case trace.OpHalt:
			if err := claim(b.ID, b.Pos); err != nil {
				return err
			}
			if len(s.Bots) != 1 || b.Pos != (coord.Coord{}) || s.Harmonics != Low {
				return fmt.Errorf("tick %d: halt with %d bot(s) at (%d,%d,%d), harmonics %s: %w",
					s.Steps, len(s.Bots), b.Pos.X, b.Pos.Y, b.Pos.Z, s.Harmonics, ErrIllegalHalt)
			}
			if !s.Matrix.Grounded() {
				return fmt.Errorf("tick %d: halt with ungrounded lattice: %w", s.Steps, ErrIllegalHalt)
			}
			haltSeen = true

		case trace.OpSMove:
			dst, err := s.sweep(b, cmd.Move, maxSMoveLen, claim)
			if err != nil {
				return err
			}
			moves[b] = dst
			s.Energy += s.costs.SMovePerUnit * int64(absInt(cmd.Move.Len))

		case trace.OpLMove:
			mid, err := s.sweep(b, cmd.Move, maxLMoveLen, claim)
			if err != nil {
				return err
			}
			saved := b.Pos
			b.Pos = mid
			dst, err := s.sweep(b, cmd.Move2, maxLMoveLen, claim)
			b.Pos = saved
			if err != nil {
				return err
			}
			moves[b] = dst
			s.Energy += s.costs.SMovePerUnit*int64(absInt(cmd.Move.Len)+absInt(cmd.Move2.Len)) + s.costs.LMoveBase

		case trace.OpFill, trace.OpVoid:
			tgt, err := s.nearTarget(b, cmd.Near)
			if err != nil {
				return err
			}
			if err := claim(b.ID, b.Pos, tgt); err != nil {
				return err
			}
			if cmd.Op == trace.OpFill {
				if s.Matrix.Filled(tgt) {
					s.Energy += s.costs.FillFull
				} else {
					s.Energy += s.costs.FillEmpty
					fills = append(fills, tgt)
				}
			} else {
				if s.Matrix.Filled(tgt) {
					s.Energy += s.costs.VoidFull
					voids = append(voids, tgt)
				} else {
					s.Energy += s.costs.VoidEmpty
				}
			}

		case trace.OpFission:
			tgt, err := s.nearTarget(b, cmd.Near)
			if err != nil {
				return err
			}
			if s.Matrix.Filled(tgt) {
				return fmt.Errorf("tick %d: bot %d fission into full cell (%d,%d,%d): %w",
					s.Steps, b.ID, tgt.X, tgt.Y, tgt.Z, ErrIllegalCommand)
			}
			m := int(cmd.M)
			if len(b.Seeds) < m+1 {
				return fmt.Errorf("tick %d: bot %d fission m=%d with %d seed(s): %w",
					s.Steps, b.ID, m, len(b.Seeds), ErrIllegalCommand)
			}
			if err := claim(b.ID, b.Pos, tgt); err != nil {
				return err
			}
			child := &Bot{
				ID:    b.Seeds[0],
				Pos:   tgt,
				Seeds: append([]uint8(nil), b.Seeds[1:m+1]...),
			}
			b.Seeds = append([]uint8(nil), b.Seeds[m+1:]...)
			children = append(children, child)
			s.Energy += s.costs.Fission

		case trace.OpFusionP, trace.OpFusionS:
			partner, err := s.nearTarget(b, cmd.Near)
			if err != nil {
				return err
			}
			if err := claim(b.ID, b.Pos); err != nil {
				return err
			}
			p := &pendingFusion{bot: b, partner: partner}
			if cmd.Op == trace.OpFusionP {
				primaries = append(primaries, p)
			} else {
				secondarys = append(secondarys, p)
			}

		case trace.OpGFill, trace.OpGVoid:
			at, err := s.nearTarget(b, cmd.Near)
			if err != nil {
				return err
			}
			far := at.Add(cmd.Far)
			if !s.Matrix.Inside(far) {
				return fmt.Errorf("tick %d: bot %d group region leaves lattice: %w", s.Steps, b.ID, ErrIllegalCommand)
			}
			reg := coord.RegionFromCorners(at, far)
			if reg.Dimension() == 0 {
				return fmt.Errorf("tick %d: bot %d degenerate group region: %w", s.Steps, b.ID, ErrIllegalCommand)
			}
			if err := claim(b.ID, b.Pos); err != nil {
				return err
			}
			if err := claim(groupID(reg), reg.Voxels()...); err != nil {
				return err
			}
			groups[reg] = append(groups[reg], groupEntry{op: cmd.Op, corner: at})

		default:
			return fmt.Errorf("tick %d: bot %d: op %s: %w", s.Steps, b.ID, cmd.Op, ErrIllegalCommand)
		}
	}

	if err := s.resolveFusions(primaries, secondarys); err != nil {
		return err
	}
	gf, gv, err := s.resolveGroups(groups)
	if err != nil {
		return err
	}
	fills = append(fills, gf...)
	voids = append(voids, gv...)

	// Apply staged effects: positions, matter, roster.
	for b, p := range moves {
		b.Pos = p
	}
	for _, c := range fills {
		s.Matrix.Fill(c)
	}
	for _, c := range voids {
		s.Matrix.Void(c)
	}
	if len(children) > 0 {
		s.Bots = append(s.Bots, children...)
		sort.Slice(s.Bots, func(i, j int) bool { return s.Bots[i].ID < s.Bots[j].ID })
	}

	if flips%2 == 1 {
		if s.Harmonics == High && !s.Matrix.Grounded() {
			return fmt.Errorf("tick %d: flip to low harmonics with ungrounded lattice: %w",
				s.Steps, ErrIllegalCommand)
		}
		s.Harmonics ^= 1
	}

	s.Steps++
	if haltSeen {
		s.halted = true
	}
	return nil
}

const (
	maxSMoveLen = 15
	maxLMoveLen = 5
)

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// sweep validates one linear move leg from the bot's position: every cell
// along the path, start included, is claimed volatile and must be Empty
// (the start holds the bot itself).
func (s *State) sweep(b *Bot, l coord.Linear, maxLen int, claim func(uint8, ...coord.Coord) error) (coord.Coord, error) {
	if !l.Axis.Valid() || l.Len == 0 || absInt(l.Len) > maxLen {
		return coord.Coord{}, fmt.Errorf("tick %d: bot %d move %+v: %w", s.Steps, b.ID, l, ErrIllegalCommand)
	}
	if err := claim(b.ID, b.Pos); err != nil {
		return coord.Coord{}, err
	}
	step := coord.Linear{Axis: l.Axis, Len: 1}
	if l.Len < 0 {
		step.Len = -1
	}
	cur := b.Pos
	for i := 0; i < absInt(l.Len); i++ {
		cur = cur.Add(step.Diff())
		if !s.Matrix.Inside(cur) {
			return coord.Coord{}, fmt.Errorf("tick %d: bot %d moves out of lattice at (%d,%d,%d): %w",
				s.Steps, b.ID, cur.X, cur.Y, cur.Z, ErrObstructedMove)
		}
		if s.Matrix.Filled(cur) {
			return coord.Coord{}, fmt.Errorf("tick %d: bot %d blocked by full cell (%d,%d,%d): %w",
				s.Steps, b.ID, cur.X, cur.Y, cur.Z, ErrObstructedMove)
		}
		if err := claim(b.ID, cur); err != nil {
			return coord.Coord{}, err
		}
	}
	return cur, nil
}

func (s *State) nearTarget(b *Bot, d coord.Diff) (coord.Coord, error) {
	if !d.IsNear() {
		return coord.Coord{}, fmt.Errorf("tick %d: bot %d near diff %+v: %w", s.Steps, b.ID, d, ErrIllegalCommand)
	}
	tgt := b.Pos.Add(d)
	if !s.Matrix.Inside(tgt) {
		return coord.Coord{}, fmt.Errorf("tick %d: bot %d target (%d,%d,%d) outside lattice: %w",
			s.Steps, b.ID, tgt.X, tgt.Y, tgt.Z, ErrIllegalCommand)
	}
	return tgt, nil
}

// resolveFusions pairs each primary with the secondary at the declared
// offset, removes the secondary and returns its identifiers to the
// primary's pool.
func (s *State) resolveFusions(primaries, secondarys []*pendingFusion) error {
	if len(primaries) != len(secondarys) {
		return fmt.Errorf("tick %d: %d fusion primaries, %d secondaries: %w",
			s.Steps, len(primaries), len(secondarys), ErrIllegalCommand)
	}
	for _, p := range primaries {
		var mate *pendingFusion
		for _, sec := range secondarys {
			if !sec.matched && sec.bot.Pos == p.partner && sec.partner == p.bot.Pos {
				mate = sec
				break
			}
		}
		if mate == nil {
			return fmt.Errorf("tick %d: bot %d fusion primary has no reciprocal secondary at (%d,%d,%d): %w",
				s.Steps, p.bot.ID, p.partner.X, p.partner.Y, p.partner.Z, ErrIllegalCommand)
		}
		mate.matched = true
		p.bot.Seeds = append(p.bot.Seeds, mate.bot.ID)
		p.bot.Seeds = append(p.bot.Seeds, mate.bot.Seeds...)
		sort.Slice(p.bot.Seeds, func(i, j int) bool { return p.bot.Seeds[i] < p.bot.Seeds[j] })
		s.removeBot(mate.bot.ID)
		s.Energy += s.costs.Fusion
	}
	return nil
}

func (s *State) removeBot(id uint8) {
	for i, b := range s.Bots {
		if b.ID == id {
			s.Bots = append(s.Bots[:i], s.Bots[i+1:]...)
			return
		}
	}
}

// resolveGroups checks each grouped fill/clear region: every corner named
// by exactly one participating bot, all participants agreeing on the
// operation. Matter changes are charged per covered voxel.
func (s *State) resolveGroups(groups map[coord.Region][]groupEntry) (fills, voids []coord.Coord, err error) {
	for reg, entries := range groups {
		corners := reg.Corners()
		if len(entries) != len(corners) {
			return nil, nil, fmt.Errorf("tick %d: group region wants %d corner bot(s), has %d: %w",
				s.Steps, len(corners), len(entries), ErrIllegalCommand)
		}
		seen := make(map[coord.Coord]bool, len(entries))
		op := entries[0].op
		for _, e := range entries {
			if e.op != op {
				return nil, nil, fmt.Errorf("tick %d: group region mixes %s and %s: %w",
					s.Steps, op, e.op, ErrIllegalCommand)
			}
			if seen[e.corner] {
				return nil, nil, fmt.Errorf("tick %d: group corner (%d,%d,%d) named twice: %w",
					s.Steps, e.corner.X, e.corner.Y, e.corner.Z, ErrIllegalCommand)
			}
			seen[e.corner] = true
			found := false
			for _, c := range corners {
				if c == e.corner {
					found = true
					break
				}
			}
			if !found {
				return nil, nil, fmt.Errorf("tick %d: (%d,%d,%d) is not a corner of the group region: %w",
					s.Steps, e.corner.X, e.corner.Y, e.corner.Z, ErrIllegalCommand)
			}
		}
		for _, c := range reg.Voxels() {
			if op == trace.OpGFill {
				if s.Matrix.Filled(c) {
					s.Energy += s.costs.FillFull
				} else {
					s.Energy += s.costs.FillEmpty
					fills = append(fills, c)
				}
			} else {
				if s.Matrix.Filled(c) {
					s.Energy += s.costs.VoidFull
					voids = append(voids, c)
				} else {
					s.Energy += s.costs.VoidEmpty
				}
			}
		}
	}
	return fills, voids, nil
}
