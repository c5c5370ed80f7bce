package validate

import (
	"errors"
	"testing"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/sim"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
)

func voxelModel(t *testing.T, r int, cells ...coord.Coord) *model.Matrix {
	t.Helper()
	m, err := model.New(r)
	if err != nil {
		t.Fatalf("model.New(%d): %v", r, err)
	}
	for _, c := range cells {
		m.Fill(c)
	}
	return m
}

func TestRun_Construction(t *testing.T) {
	tgt := voxelModel(t, 3, coord.Coord{X: 1, Z: 1})
	res, err := Run(nil, tgt, []trace.Command{
		trace.Fill(coord.Diff{X: 1, Z: 1}),
		trace.Halt(),
	}, tuning.Default().Costs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != Match {
		t.Fatalf("status = %s, want Match", res.Status)
	}
	if res.Energy <= 0 || res.Steps != 2 {
		t.Fatalf("energy = %d, steps = %d", res.Energy, res.Steps)
	}
}

func TestRun_MoveFillReturn(t *testing.T) {
	// Walk to the bottom-center cell, fill it, return to the origin, halt.
	tgt := voxelModel(t, 3, coord.Coord{X: 1, Z: 1})
	res, err := Run(nil, tgt, []trace.Command{
		trace.SMove(coord.AxisX, 1),
		trace.Fill(coord.Diff{Z: 1}),
		trace.SMove(coord.AxisX, -1),
		trace.Halt(),
	}, tuning.Default().Costs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != Match {
		t.Fatalf("status = %s, want Match", res.Status)
	}
	if res.Energy <= 0 || res.Steps != 4 {
		t.Fatalf("energy = %d, steps = %d", res.Energy, res.Steps)
	}
}

func TestRun_Deconstruction(t *testing.T) {
	src := voxelModel(t, 3, coord.Coord{Z: 1})
	res, err := Run(src, nil, []trace.Command{
		trace.Void(coord.Diff{Z: 1}),
		trace.Halt(),
	}, tuning.Default().Costs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != Match {
		t.Fatalf("status = %s, want Match", res.Status)
	}
}

func TestRun_MismatchReportsFirstDiff(t *testing.T) {
	tgt := voxelModel(t, 3, coord.Coord{X: 1, Z: 1})
	res, err := Run(nil, tgt, []trace.Command{trace.Halt()}, tuning.Default().Costs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Status != Mismatch {
		t.Fatalf("status = %s, want Mismatch", res.Status)
	}
	if want := (coord.Coord{X: 1, Z: 1}); res.FirstDiff != want {
		t.Fatalf("first diff = %+v, want %+v", res.FirstDiff, want)
	}
}

func TestRun_ResolutionMismatch(t *testing.T) {
	src := voxelModel(t, 3)
	tgt := voxelModel(t, 4)
	if _, err := Run(src, tgt, []trace.Command{trace.Halt()}, tuning.Default().Costs); !errors.Is(err, model.ErrMalformedModel) {
		t.Fatalf("err = %v, want ErrMalformedModel", err)
	}
}

func TestRun_AbortPassesThrough(t *testing.T) {
	tgt := voxelModel(t, 3, coord.Coord{Z: 1})
	_, err := Run(nil, tgt, []trace.Command{trace.SMove(coord.AxisY, -1)}, tuning.Default().Costs)
	if !errors.Is(err, sim.ErrObstructedMove) {
		t.Fatalf("err = %v, want ErrObstructedMove", err)
	}
}

func TestRun_SourceUntouched(t *testing.T) {
	src := voxelModel(t, 3, coord.Coord{Z: 1})
	if _, err := Run(src, nil, []trace.Command{
		trace.Void(coord.Diff{Z: 1}),
		trace.Halt(),
	}, tuning.Default().Costs); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !src.Filled(coord.Coord{Z: 1}) {
		t.Fatal("validator mutated the source model")
	}
}
