package trace

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"matterswarm/internal/coord"
)

func TestEncode_WireVectors(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"halt", Halt(), []byte{0b11111111}},
		{"wait", Wait(), []byte{0b11111110}},
		{"flip", Flip(), []byte{0b11111101}},
		{"smove x+12", SMove(coord.AxisX, 12), []byte{0b00010100, 0b00011011}},
		{"smove z-4", SMove(coord.AxisZ, -4), []byte{0b00110100, 0b00001011}},
		{"lmove x+3 y-5", LMove(coord.AxisX, 3, coord.AxisY, -5), []byte{0b10011100, 0b00001000}},
		{"fission <0,0,1> m=5", Fission(coord.Diff{Z: 1}, 5), []byte{0b01110101, 0b00000101}},
		{"fill <0,-1,0>", Fill(coord.Diff{Y: -1}), []byte{0b01010011}},
		{"void <1,0,0>", Void(coord.Diff{X: 1}), []byte{0b10110010}},
		{"fusionp <-1,1,0>", FusionP(coord.Diff{X: -1, Y: 1}), []byte{0b00111111}},
		{"fusions <1,-1,0>", FusionS(coord.Diff{X: 1, Y: -1}), []byte{0b10011110}},
		{"gfill <0,-1,0> far <10,-15,20>", GFill(coord.Diff{Y: -1}, coord.Diff{X: 10, Y: -15, Z: 20}),
			[]byte{0b01010001, 40, 15, 50}},
		{"gvoid <1,0,0> far <5,5,-5>", GVoid(coord.Diff{X: 1}, coord.Diff{X: 5, Y: 5, Z: -5}),
			[]byte{0b10110000, 35, 35, 25}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode([]Command{tc.cmd})
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("encode = %08b, want %08b", got, tc.want)
			}
			back, err := Decode(got)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(back) != 1 || !reflect.DeepEqual(back[0], tc.cmd) {
				t.Fatalf("decode = %+v, want %+v", back, tc.cmd)
			}
		})
	}
}

func TestDecode_RoundTripStream(t *testing.T) {
	cmds := []Command{
		Flip(),
		SMove(coord.AxisY, 15),
		SMove(coord.AxisY, -15),
		LMove(coord.AxisZ, 5, coord.AxisX, -5),
		Fission(coord.Diff{X: 1}, 0),
		Fill(coord.Diff{Y: -1}),
		Wait(),
		GVoid(coord.Diff{Z: 1}, coord.Diff{X: 30, Y: 1, Z: -30}),
		GVoid(coord.Diff{Z: -1}, coord.Diff{X: -30, Y: 1, Z: 30}),
		FusionP(coord.Diff{X: 1}),
		FusionS(coord.Diff{X: -1}),
		Flip(),
		Halt(),
	}
	data, err := Encode(cmds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(back, cmds) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, cmds)
	}
}

func TestCodec_ZeroLengthLegs(t *testing.T) {
	// Zero-length legs are encodable on the wire (operand 15 for SMove,
	// nibble 5 for LMove legs) even though the simulator rejects them.
	data := []byte{
		0b00010100, 0b00001111, // smove x 0
		0b10011100, 0b01010101, // lmove x 0, y 0
	}
	cmds, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []Command{
		SMove(coord.AxisX, 0),
		LMove(coord.AxisX, 0, coord.AxisY, 0),
	}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("decode = %+v, want %+v", cmds, want)
	}
	back, err := Encode(cmds)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(back, data) {
		t.Fatalf("re-encode = %08b, want %08b", back, data)
	}
}

func TestDecode_Truncated(t *testing.T) {
	cases := [][]byte{
		{0b00010100},                   // smove without operand
		{0b01110101},                   // fission without m
		{0b01010001, 40, 15},           // gfill with short far
		{0b11111110, 0b10011100},       // lmove without operand after wait
	}
	for _, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrTruncatedTrace) {
			t.Errorf("Decode(%08b) err = %v, want ErrTruncatedTrace", data, err)
		}
	}
}

func TestDecode_UnknownOpcode(t *testing.T) {
	cases := [][]byte{
		{0b11111011},             // fill with nd=31
		{0b11011111},             // fusionp with nd=27
		{0b00000111},             // fusionp with nd=0 (zero diff, not near)
		{0b00010100, 0b00111111}, // smove operand high bits set
		{0b01010001, 61, 15, 20}, // gfill far byte out of range
		{0b01010001, 30, 30, 30}, // gfill zero far diff
	}
	for _, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrUnknownOpcode) {
			t.Errorf("Decode(%08b) err = %v, want ErrUnknownOpcode", data, err)
		}
	}
}

func TestEncode_RejectsOutOfRange(t *testing.T) {
	cases := []Command{
		SMove(coord.AxisX, 16),
		LMove(coord.AxisX, 6, coord.AxisY, 1),
		Fill(coord.Diff{X: 1, Y: 1, Z: 1}),
		GFill(coord.Diff{X: 1}, coord.Diff{}),
		GVoid(coord.Diff{X: 1}, coord.Diff{X: 31}),
	}
	for _, cmd := range cases {
		if _, err := Encode([]Command{cmd}); err == nil {
			t.Errorf("Encode(%+v) succeeded, want error", cmd)
		}
	}
}
