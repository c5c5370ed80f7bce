package runlog

import (
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Name   string `json:"name"`
	Energy int64  `json:"energy"`
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "sweep.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	want := []record{
		{Name: "p1", Energy: 214},
		{Name: "p2", Energy: 468},
	}
	for _, r := range want {
		if err := w.Write(r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := Read[record](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestWriter_AppendAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.jsonl.zst")
	for i, name := range []string{"first", "second"} {
		w, err := NewWriter(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := w.Write(record{Name: name}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	got, err := Read[record](path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Name != "first" || got[1].Name != "second" {
		t.Fatalf("got %+v", got)
	}
}

func TestWriter_WriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.jsonl.zst")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(record{Name: "late"}); err != os.ErrClosed {
		t.Fatalf("write after close err = %v, want os.ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}
