package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	contents := "initial_capital: 5000\nfees:\n  taker_bps: 7\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if opts.InitialCapital != 5000 {
		t.Fatalf("expected InitialCapital 5000, got %v", opts.InitialCapital)
	}
	if opts.Fees.TakerBps != 7 {
		t.Fatalf("expected TakerBps 7, got %v", opts.Fees.TakerBps)
	}
	// Unmentioned fields keep their defaults.
	if opts.Fees.MakerBps != Defaults().Fees.MakerBps {
		t.Fatalf("expected MakerBps unchanged, got %v", opts.Fees.MakerBps)
	}
	if opts.RefreshIntervalMs != Defaults().RefreshIntervalMs {
		t.Fatalf("expected RefreshIntervalMs unchanged, got %v", opts.RefreshIntervalMs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
