package scoredb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDB_RecordAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")
	db, err := Open(path)
	require.NoError(t, err)

	db.RecordRun(Run{Name: "p1", Status: "match", Energy: 500, Steps: 12})
	db.RecordRun(Run{Name: "p1", Status: "match", Energy: 320, Steps: 9})
	db.RecordRun(Run{Name: "p1", Status: "mismatch", Energy: 100, Steps: 3})
	db.RecordRun(Run{Name: "p2", Status: "error", Err: "truncated trace"})
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	// Mismatched runs never count toward the best score.
	best, ok, err := db.BestEnergy("p1")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 320, best)

	_, ok, err = db.BestEnergy("p2")
	require.NoError(t, err)
	require.False(t, ok)

	runs, err := db.Runs("p1")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "match", runs[0].Status)
	require.EqualValues(t, 500, runs[0].Energy)
	require.Equal(t, "mismatch", runs[2].Status)

	runs, err = db.Runs("p2")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "truncated trace", runs[0].Err)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
