package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"matterswarm/internal/coord"
	"matterswarm/internal/model"
	"matterswarm/internal/trace"
	"matterswarm/internal/tuning"
	"matterswarm/internal/validate"
)

// writeFixtures lays out one solvable problem in dir and returns the
// relative model and trace names.
func writeFixtures(t *testing.T, dir string) (modelName, traceName string) {
	t.Helper()
	m, err := model.New(3)
	require.NoError(t, err)
	m.Fill(coord.Coord{X: 1, Z: 1})
	require.NoError(t, model.WriteFile(filepath.Join(dir, "p1.mdl"), m))

	cmds := []trace.Command{
		trace.Fill(coord.Diff{X: 1, Z: 1}),
		trace.Halt(),
	}
	require.NoError(t, trace.WriteFile(filepath.Join(dir, "p1.nbt"), cmds))
	return "p1.mdl", "p1.nbt"
}

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadManifest_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	path := writeManifest(t, dir, `{
	  "jobs": [
	    {"name": "p1", "target": "p1.mdl", "trace": "p1.nbt"}
	  ]
	}`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Jobs, 1)
	require.Equal(t, filepath.Join(dir, "p1.mdl"), m.Jobs[0].Target)
	require.Equal(t, filepath.Join(dir, "p1.nbt"), m.Jobs[0].Trace)
	require.Empty(t, m.Jobs[0].Source)
}

func TestLoadManifest_SchemaRejections(t *testing.T) {
	cases := map[string]string{
		"no jobs":         `{"jobs": []}`,
		"missing trace":   `{"jobs": [{"name": "p1", "target": "p1.mdl"}]}`,
		"no model at all": `{"jobs": [{"name": "p1", "trace": "p1.nbt"}]}`,
		"unknown field":   `{"jobs": [{"name": "p1", "target": "p1.mdl", "trace": "p1.nbt", "extra": 1}]}`,
		"wrong type":      `{"jobs": "p1"}`,
		"top-level field": `{"jobs": [{"name": "p1", "target": "p1.mdl", "trace": "p1.nbt"}], "extra": 1}`,
	}
	dir := t.TempDir()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, dir, body))
			require.Error(t, err)
		})
	}
}

func TestRun_ResultsInManifestOrder(t *testing.T) {
	dir := t.TempDir()
	modelName, traceName := writeFixtures(t, dir)
	path := writeManifest(t, dir, `{
	  "jobs": [
	    {"name": "good", "target": "`+modelName+`", "trace": "`+traceName+`"},
	    {"name": "missing", "target": "absent.mdl", "trace": "`+traceName+`"},
	    {"name": "mismatch", "target": "`+modelName+`", "trace": "empty.nbt"}
	  ]
	}`)
	require.NoError(t, trace.WriteFile(filepath.Join(dir, "empty.nbt"), []trace.Command{trace.Halt()}))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	var got []Result
	err = Run(context.Background(), m, 3, tuning.Default().Costs, func(r Result) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Equal(t, "good", got[0].Job.Name)
	require.NoError(t, got[0].Err)
	require.Equal(t, validate.Match, got[0].Status)
	require.Positive(t, got[0].Energy)

	require.Equal(t, "missing", got[1].Job.Name)
	require.Error(t, got[1].Err)

	require.Equal(t, "mismatch", got[2].Job.Name)
	require.NoError(t, got[2].Err)
	require.Equal(t, validate.Mismatch, got[2].Status)
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	modelName, traceName := writeFixtures(t, dir)
	path := writeManifest(t, dir, `{
	  "jobs": [{"name": "p1", "target": "`+modelName+`", "trace": "`+traceName+`"}]
	}`)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Run(ctx, m, 1, tuning.Default().Costs, func(Result) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
