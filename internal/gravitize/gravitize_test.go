package gravitize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
)

func voxelModel(t *testing.T, r int, cells ...coord.Coord) *model.Matrix {
	t.Helper()
	m, err := model.New(r)
	require.NoError(t, err)
	for _, c := range cells {
		m.Fill(c)
	}
	return m
}

func TestOptimize_RejectsMismatchedInput(t *testing.T) {
	tgt := voxelModel(t, 3, coord.Coord{X: 1, Z: 1})
	_, _, err := Optimize(nil, tgt, []trace.Command{trace.Halt()}, Config{Seed: 1, MaxIters: 10}, tuning.Default().Costs)
	require.Error(t, err)
}

func TestOptimize_RemovesWaitRounds(t *testing.T) {
	tgt := voxelModel(t, 3, coord.Coord{X: 1, Z: 1})
	costs := tuning.Default().Costs
	cmds := []trace.Command{
		trace.Wait(),
		trace.Fill(coord.Diff{X: 1, Z: 1}),
		trace.Wait(),
		trace.Halt(),
	}
	before, err := validate.Run(nil, tgt, cmds, costs)
	require.NoError(t, err)

	out, energy, err := Optimize(nil, tgt, cmds, Config{Seed: 1, MaxIters: 50}, costs)
	require.NoError(t, err)
	require.Less(t, energy, before.Energy)
	require.Len(t, out, 2, "both wait rounds should be gone")

	res, err := validate.Run(nil, tgt, out, costs)
	require.NoError(t, err)
	require.Equal(t, validate.Match, res.Status)
	require.Equal(t, energy, res.Energy)
}

func TestOptimize_CollapsesDetour(t *testing.T) {
	tgt := voxelModel(t, 5, coord.Coord{Z: 1})
	costs := tuning.Default().Costs
	// The bot wanders before filling from where it started.
	cmds := []trace.Command{
		trace.SMove(coord.AxisX, 2),
		trace.SMove(coord.AxisY, 3),
		trace.SMove(coord.AxisY, -3),
		trace.SMove(coord.AxisX, -2),
		trace.Fill(coord.Diff{Z: 1}),
		trace.Halt(),
	}
	before, err := validate.Run(nil, tgt, cmds, costs)
	require.NoError(t, err)

	out, energy, err := Optimize(nil, tgt, cmds, Config{Seed: 1, MaxIters: 200}, costs)
	require.NoError(t, err)
	require.Less(t, energy, before.Energy)
	require.Less(t, len(out), len(cmds))

	res, err := validate.Run(nil, tgt, out, costs)
	require.NoError(t, err)
	require.Equal(t, validate.Match, res.Status)
}

func TestOptimize_MergesShortMoves(t *testing.T) {
	tgt := voxelModel(t, 8, coord.Coord{X: 5, Z: 1})
	costs := tuning.Default().Costs
	cmds := []trace.Command{
		trace.SMove(coord.AxisX, 2),
		trace.SMove(coord.AxisX, 3),
		trace.Fill(coord.Diff{Z: 1}),
		trace.SMove(coord.AxisX, -5),
		trace.Halt(),
	}
	before, err := validate.Run(nil, tgt, cmds, costs)
	require.NoError(t, err)

	out, energy, err := Optimize(nil, tgt, cmds, Config{Seed: 3, MaxIters: 200}, costs)
	require.NoError(t, err)
	require.Less(t, energy, before.Energy)

	res, err := validate.Run(nil, tgt, out, costs)
	require.NoError(t, err)
	require.Equal(t, validate.Match, res.Status)
}

func TestOptimize_MergesIntoLMove(t *testing.T) {
	tgt := voxelModel(t, 5, coord.Coord{X: 2, Z: 3})
	costs := tuning.Default().Costs
	cmds := []trace.Command{
		trace.SMove(coord.AxisX, 2),
		trace.SMove(coord.AxisZ, 2),
		trace.Fill(coord.Diff{Z: 1}),
		trace.SMove(coord.AxisZ, -2),
		trace.SMove(coord.AxisX, -2),
		trace.Halt(),
	}
	before, err := validate.Run(nil, tgt, cmds, costs)
	require.NoError(t, err)

	out, energy, err := Optimize(nil, tgt, cmds, Config{Seed: 5, MaxIters: 300}, costs)
	require.NoError(t, err)
	require.Less(t, energy, before.Energy)
	require.Less(t, len(out), len(cmds))

	res, err := validate.Run(nil, tgt, out, costs)
	require.NoError(t, err)
	require.Equal(t, validate.Match, res.Status)
}

func TestOptimize_NoopWhenAlreadyTight(t *testing.T) {
	tgt := voxelModel(t, 3, coord.Coord{X: 1, Z: 1})
	costs := tuning.Default().Costs
	cmds := []trace.Command{
		trace.Fill(coord.Diff{X: 1, Z: 1}),
		trace.Halt(),
	}
	out, energy, err := Optimize(nil, tgt, cmds, Config{Seed: 1, MaxIters: 100}, costs)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(cmds, out))

	res, err := validate.Run(nil, tgt, cmds, costs)
	require.NoError(t, err)
	require.Equal(t, res.Energy, energy)
}

func TestOptimize_DeterministicPerSeed(t *testing.T) {
	tgt := voxelModel(t, 5, coord.Coord{Z: 1})
	costs := tuning.Default().Costs
	cmds := []trace.Command{
		trace.SMove(coord.AxisX, 1),
		trace.Wait(),
		trace.SMove(coord.AxisX, -1),
		trace.Fill(coord.Diff{Z: 1}),
		trace.Halt(),
	}
	a, ae, err := Optimize(nil, tgt, cmds, Config{Seed: 9, MaxIters: 100}, costs)
	require.NoError(t, err)
	b, be, err := Optimize(nil, tgt, cmds, Config{Seed: 9, MaxIters: 100}, costs)
	require.NoError(t, err)
	require.Equal(t, ae, be)
	require.Empty(t, cmp.Diff(a, b))
}

func TestSplitRounds(t *testing.T) {
	cmds := []trace.Command{
		trace.Fission(coord.Diff{X: 1}, 0),
		trace.Wait(), trace.Wait(),
		trace.FusionP(coord.Diff{X: 1}), trace.FusionS(coord.Diff{X: -1}),
		trace.Halt(),
	}
	rounds, err := splitRounds(cmds)
	require.NoError(t, err)
	require.Len(t, rounds, 4)
	require.Len(t, rounds[1], 2)
	require.Len(t, rounds[3], 1)

	_, err = splitRounds(cmds[:4])
	require.ErrorIs(t, err, trace.ErrTruncatedTrace)

	_, err = splitRounds(append(append([]trace.Command(nil), cmds...), trace.Wait()))
	require.ErrorIs(t, err, trace.ErrTruncatedTrace)
}
