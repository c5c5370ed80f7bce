// Package trace implements the instruction stream: the closed command set
// the simulator interprets and its densely packed wire codec. Encoding is
// the exact inverse of decoding.
package trace

import (
	"errors"
	"fmt"

	"matterswarm/internal/coord"
)

var (
	ErrTruncatedTrace = errors.New("truncated trace")
	ErrUnknownOpcode  = errors.New("unknown opcode")
)

type Op uint8

const (
	OpHalt Op = iota
	OpWait
	OpFlip
	OpSMove
	OpLMove
	OpFusionP
	OpFusionS
	OpFission
	OpFill
	OpVoid
	OpGFill
	OpGVoid
)

var opNames = [...]string{
	"Halt", "Wait", "Flip", "SMove", "LMove",
	"FusionP", "FusionS", "Fission", "Fill", "Void", "GFill", "GVoid",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Command is one instruction for one bot. Operand fields are meaningful
// per op: Move for SMove and the first LMove leg, Move2 for the second
// LMove leg, Near for fission/fusion/fill/void/group ops, Far for the
// group ops' region extent, M for the fission seed split.
type Command struct {
	Op    Op
	Move  coord.Linear
	Move2 coord.Linear
	Near  coord.Diff
	Far   coord.Diff
	M     uint8
}

func Halt() Command { return Command{Op: OpHalt} }
func Wait() Command { return Command{Op: OpWait} }
func Flip() Command { return Command{Op: OpFlip} }

func SMove(axis coord.Axis, length int) Command {
	return Command{Op: OpSMove, Move: coord.Linear{Axis: axis, Len: length}}
}

func LMove(a1 coord.Axis, l1 int, a2 coord.Axis, l2 int) Command {
	return Command{
		Op:    OpLMove,
		Move:  coord.Linear{Axis: a1, Len: l1},
		Move2: coord.Linear{Axis: a2, Len: l2},
	}
}

func Fission(near coord.Diff, m uint8) Command { return Command{Op: OpFission, Near: near, M: m} }
func Fill(near coord.Diff) Command             { return Command{Op: OpFill, Near: near} }
func Void(near coord.Diff) Command             { return Command{Op: OpVoid, Near: near} }
func FusionP(near coord.Diff) Command          { return Command{Op: OpFusionP, Near: near} }
func FusionS(near coord.Diff) Command          { return Command{Op: OpFusionS, Near: near} }
func GFill(near, far coord.Diff) Command       { return Command{Op: OpGFill, Near: near, Far: far} }
func GVoid(near, far coord.Diff) Command       { return Command{Op: OpGVoid, Near: near, Far: far} }

const (
	maxSMove = 15
	maxLMove = 5
	maxFar   = 30
)

func decodeNear(b uint8) (coord.Diff, error) {
	if b > 26 {
		return coord.Diff{}, fmt.Errorf("near diff %d: %w", b, ErrUnknownOpcode)
	}
	d := coord.Diff{
		X: int(b/9) - 1,
		Y: int(b%9)/3 - 1,
		Z: int(b%3) - 1,
	}
	if !d.IsNear() {
		return coord.Diff{}, fmt.Errorf("near diff %d not near: %w", b, ErrUnknownOpcode)
	}
	return d, nil
}

func encodeNear(d coord.Diff) (uint8, error) {
	if !d.IsNear() {
		return 0, fmt.Errorf("encode: diff %+v is not near", d)
	}
	return uint8((d.X+1)*9 + (d.Y+1)*3 + (d.Z + 1)), nil
}

func decodeAxis(b uint8) (coord.Axis, error) {
	a := coord.Axis(b)
	if !a.Valid() {
		return 0, fmt.Errorf("axis bits %02b: %w", b, ErrUnknownOpcode)
	}
	return a, nil
}

// Decode parses a densely packed byte stream into the flat command
// sequence. The simulator imposes the per-tick round structure.
func Decode(data []byte) ([]Command, error) {
	var out []Command
	for i := 0; i < len(data); i++ {
		b := data[i]
		take := func(n int) ([]byte, error) {
			if i+n >= len(data) {
				return nil, fmt.Errorf("offset %d: command needs %d operand byte(s): %w", i, n, ErrTruncatedTrace)
			}
			op := data[i+1 : i+1+n]
			i += n
			return op, nil
		}
		switch b {
		case 0b11111111:
			out = append(out, Halt())
			continue
		case 0b11111110:
			out = append(out, Wait())
			continue
		case 0b11111101:
			out = append(out, Flip())
			continue
		}
		hi := b >> 3
		switch b & 0b111 {
		case 0b111:
			near, err := decodeNear(hi)
			if err != nil {
				return nil, err
			}
			out = append(out, FusionP(near))
		case 0b110:
			near, err := decodeNear(hi)
			if err != nil {
				return nil, err
			}
			out = append(out, FusionS(near))
		case 0b101:
			near, err := decodeNear(hi)
			if err != nil {
				return nil, err
			}
			op, err := take(1)
			if err != nil {
				return nil, err
			}
			out = append(out, Fission(near, op[0]))
		case 0b011:
			near, err := decodeNear(hi)
			if err != nil {
				return nil, err
			}
			out = append(out, Fill(near))
		case 0b010:
			near, err := decodeNear(hi)
			if err != nil {
				return nil, err
			}
			out = append(out, Void(near))
		case 0b001, 0b000:
			near, err := decodeNear(hi)
			if err != nil {
				return nil, err
			}
			op, err := take(3)
			if err != nil {
				return nil, err
			}
			far, err := decodeFar(op)
			if err != nil {
				return nil, err
			}
			if b&0b111 == 0b001 {
				out = append(out, GFill(near, far))
			} else {
				out = append(out, GVoid(near, far))
			}
		case 0b100:
			cmd, err := decodeMove(b, &i, data)
			if err != nil {
				return nil, err
			}
			out = append(out, cmd)
		default:
			return nil, fmt.Errorf("byte 0x%02x: %w", b, ErrUnknownOpcode)
		}
	}
	return out, nil
}

func decodeMove(b uint8, i *int, data []byte) (Command, error) {
	if *i+1 >= len(data) {
		return Command{}, fmt.Errorf("offset %d: move needs operand byte: %w", *i, ErrTruncatedTrace)
	}
	*i++
	d := data[*i]
	if b&0b1000 == 0 {
		// SMove: [00aa0100] [000iiiii]
		if b&0b11000000 != 0 {
			return Command{}, fmt.Errorf("byte 0x%02x: %w", b, ErrUnknownOpcode)
		}
		axis, err := decodeAxis((b >> 4) & 0b11)
		if err != nil {
			return Command{}, err
		}
		if d&0b11100000 != 0 {
			return Command{}, fmt.Errorf("smove operand 0x%02x: %w", d, ErrUnknownOpcode)
		}
		length := int(d&0b11111) - maxSMove
		if length < -maxSMove || length > maxSMove {
			return Command{}, fmt.Errorf("smove length %d: %w", length, ErrUnknownOpcode)
		}
		return SMove(axis, length), nil
	}
	// LMove: [bbaa1100] [jjjjiiii]
	a1, err := decodeAxis((b >> 4) & 0b11)
	if err != nil {
		return Command{}, err
	}
	a2, err := decodeAxis((b >> 6) & 0b11)
	if err != nil {
		return Command{}, err
	}
	l1 := int(d&0b1111) - maxLMove
	l2 := int((d>>4)&0b1111) - maxLMove
	if l1 < -maxLMove || l1 > maxLMove || l2 < -maxLMove || l2 > maxLMove {
		return Command{}, fmt.Errorf("lmove lengths %d,%d: %w", l1, l2, ErrUnknownOpcode)
	}
	return LMove(a1, l1, a2, l2), nil
}

func decodeFar(op []byte) (coord.Diff, error) {
	var v [3]int
	for k, b := range op {
		if b > 2*maxFar {
			return coord.Diff{}, fmt.Errorf("far byte 0x%02x: %w", b, ErrUnknownOpcode)
		}
		v[k] = int(b) - maxFar
	}
	d := coord.Diff{X: v[0], Y: v[1], Z: v[2]}
	if d.IsZero() {
		return coord.Diff{}, fmt.Errorf("zero far diff: %w", ErrUnknownOpcode)
	}
	return d, nil
}

// Encode serializes commands back to the wire form. It rejects commands
// whose operands are out of range rather than emit undecodable bytes.
func Encode(cmds []Command) ([]byte, error) {
	out := make([]byte, 0, len(cmds)*2)
	for k, cmd := range cmds {
		bytes, err := encodeOne(cmd)
		if err != nil {
			return nil, fmt.Errorf("command %d (%s): %w", k, cmd.Op, err)
		}
		out = append(out, bytes...)
	}
	return out, nil
}

func encodeOne(cmd Command) ([]byte, error) {
	switch cmd.Op {
	case OpHalt:
		return []byte{0b11111111}, nil
	case OpWait:
		return []byte{0b11111110}, nil
	case OpFlip:
		return []byte{0b11111101}, nil
	case OpSMove:
		if !cmd.Move.Axis.Valid() || cmd.Move.Len < -maxSMove || cmd.Move.Len > maxSMove {
			return nil, fmt.Errorf("bad smove %+v", cmd.Move)
		}
		return []byte{
			0b0100 | uint8(cmd.Move.Axis)<<4,
			uint8(cmd.Move.Len + maxSMove),
		}, nil
	case OpLMove:
		for _, l := range []coord.Linear{cmd.Move, cmd.Move2} {
			if !l.Axis.Valid() || l.Len < -maxLMove || l.Len > maxLMove {
				return nil, fmt.Errorf("bad lmove leg %+v", l)
			}
		}
		return []byte{
			0b1100 | uint8(cmd.Move.Axis)<<4 | uint8(cmd.Move2.Axis)<<6,
			uint8(cmd.Move.Len+maxLMove) | uint8(cmd.Move2.Len+maxLMove)<<4,
		}, nil
	case OpFusionP, OpFusionS, OpFill, OpVoid:
		nd, err := encodeNear(cmd.Near)
		if err != nil {
			return nil, err
		}
		low := map[Op]uint8{OpFusionP: 0b111, OpFusionS: 0b110, OpFill: 0b011, OpVoid: 0b010}[cmd.Op]
		return []byte{nd<<3 | low}, nil
	case OpFission:
		nd, err := encodeNear(cmd.Near)
		if err != nil {
			return nil, err
		}
		return []byte{nd<<3 | 0b101, cmd.M}, nil
	case OpGFill, OpGVoid:
		nd, err := encodeNear(cmd.Near)
		if err != nil {
			return nil, err
		}
		if cmd.Far.IsZero() || cmd.Far.LInf() > maxFar {
			return nil, fmt.Errorf("bad far diff %+v", cmd.Far)
		}
		low := uint8(0b001)
		if cmd.Op == OpGVoid {
			low = 0b000
		}
		return []byte{
			nd<<3 | low,
			uint8(cmd.Far.X + maxFar),
			uint8(cmd.Far.Y + maxFar),
			uint8(cmd.Far.Z + maxFar),
		}, nil
	default:
		return nil, fmt.Errorf("unencodable op %s", cmd.Op)
	}
}
