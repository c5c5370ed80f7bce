package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_ReferenceCosts(t *testing.T) {
	c := Default().Costs
	if c.FieldLow != 3 || c.FieldHigh != 30 || c.PerBot != 20 {
		t.Errorf("field costs = %d/%d/%d", c.FieldLow, c.FieldHigh, c.PerBot)
	}
	if c.FillEmpty != 12 || c.VoidFull != -12 || c.Fusion != -24 {
		t.Errorf("matter costs = %d/%d/%d", c.FillEmpty, c.VoidFull, c.Fusion)
	}
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != Default() {
		t.Fatalf("Load(\"\") = %+v, want defaults", got)
	}
}

func TestLoad_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := []byte("costs:\n  field_high: 60\nsearch:\n  bot_count: 8\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Costs.FieldHigh != 60 {
		t.Errorf("field_high = %d, want 60", got.Costs.FieldHigh)
	}
	if got.Search.BotCount != 8 {
		t.Errorf("bot_count = %d, want 8", got.Search.BotCount)
	}
	// Everything not named keeps its default.
	if got.Costs.FieldLow != 3 || got.Search.MaxTicks != 500000 {
		t.Errorf("unexpected overlay spill: %+v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
