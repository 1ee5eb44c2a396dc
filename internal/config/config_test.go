package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Orchestrator == "" {
		t.Fatalf("default orchestrator must be set")
	}
	if cfg.DefaultFetchLimit != 1 {
		t.Fatalf("default fetch limit")
	}
	if cfg.Lease.SweepEnabled {
		t.Fatalf("sweeper should be off by default")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "drover.json")
	data := []byte(`{"orchestrator":"research-prod","defaultFetchLimit":4,"lease":{"sweepEnabled":true,"ttlMs":60000}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Orchestrator != "research-prod" {
		t.Fatalf("orchestrator: %q", cfg.Orchestrator)
	}
	if cfg.DefaultFetchLimit != 4 {
		t.Fatalf("limit: %d", cfg.DefaultFetchLimit)
	}
	if !cfg.Lease.SweepEnabled || cfg.Lease.TTLMs != 60000 {
		t.Fatalf("lease: %+v", cfg.Lease)
	}
	// untouched fields keep defaults
	if cfg.Lease.SweepMax != Default().Lease.SweepMax {
		t.Fatalf("sweep max should default")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "drover.yaml")
	data := []byte("orchestrator: research-staging\nlease:\n  sweepEnabled: true\n  sweepIntervalMs: 5000\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Orchestrator != "research-staging" {
		t.Fatalf("orchestrator: %q", cfg.Orchestrator)
	}
	if !cfg.Lease.SweepEnabled || cfg.Lease.SweepIntervalMs != 5000 {
		t.Fatalf("lease: %+v", cfg.Lease)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("DROVER_ORCHESTRATOR", "env-orch")
	os.Setenv("DROVER_DEFAULT_FETCH_LIMIT", "8")
	os.Setenv("DROVER_VERIFY_CONSUMER_ON_SAVE", "true")
	os.Setenv("DROVER_LEASE_SWEEP_ENABLED", "true")
	t.Cleanup(func() {
		os.Unsetenv("DROVER_ORCHESTRATOR")
		os.Unsetenv("DROVER_DEFAULT_FETCH_LIMIT")
		os.Unsetenv("DROVER_VERIFY_CONSUMER_ON_SAVE")
		os.Unsetenv("DROVER_LEASE_SWEEP_ENABLED")
	})
	FromEnv(&cfg)
	if cfg.Orchestrator != "env-orch" {
		t.Fatalf("env orchestrator")
	}
	if cfg.DefaultFetchLimit != 8 {
		t.Fatalf("env limit")
	}
	if !cfg.VerifyConsumerOnSave {
		t.Fatalf("env verify flag")
	}
	if !cfg.Lease.SweepEnabled {
		t.Fatalf("env sweep flag")
	}
}

func TestDefaultDataDirNotEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatalf("DefaultDataDir should not be empty")
	}
}
