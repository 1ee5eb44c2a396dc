package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// Orchestrator identifies which processing engine this instance claims
	// tasks for. Rows tagged with a different orchestrator are invisible to
	// the fetcher. Configuration, never a compiled-in literal.
	Orchestrator string `json:"orchestrator" yaml:"orchestrator"`

	// DefaultFetchLimit bounds fetch-pending batches when a caller passes no
	// limit (or a non-positive one).
	DefaultFetchLimit int `json:"defaultFetchLimit" yaml:"defaultFetchLimit"`

	// VerifyConsumerOnSave rejects save-result calls whose consumer does not
	// match the stored lease holder. Off by default; the upstream contract
	// trusts the task id alone.
	VerifyConsumerOnSave bool `json:"verifyConsumerOnSave" yaml:"verifyConsumerOnSave"`

	Lease LeaseConfig `json:"lease" yaml:"lease"`
}

// LeaseConfig controls the optional stale-lease sweeper.
type LeaseConfig struct {
	// SweepEnabled turns on background reclamation of abandoned claims.
	SweepEnabled bool `json:"sweepEnabled" yaml:"sweepEnabled"`
	// TTLMs is how long a claim may stay STARTED before the sweeper reopens
	// it. Ignored unless SweepEnabled.
	TTLMs int64 `json:"ttlMs" yaml:"ttlMs"`
	// SweepIntervalMs is the sweeper tick interval.
	SweepIntervalMs int64 `json:"sweepIntervalMs" yaml:"sweepIntervalMs"`
	// SweepMax bounds reclamations per tick.
	SweepMax int `json:"sweepMax" yaml:"sweepMax"`
}

// TTL returns the lease TTL as a duration.
func (l LeaseConfig) TTL() time.Duration { return time.Duration(l.TTLMs) * time.Millisecond }

// SweepInterval returns the sweeper tick as a duration.
func (l LeaseConfig) SweepInterval() time.Duration {
	return time.Duration(l.SweepIntervalMs) * time.Millisecond
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Orchestrator:      "crewai-deep-research",
		DefaultFetchLimit: 1,
		Lease: LeaseConfig{
			SweepEnabled:    false,
			TTLMs:           10 * 60 * 1000,
			SweepIntervalMs: 30 * 1000,
			SweepMax:        256,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse json %s: %w", path, err)
		}
	}
	return cfg, nil
}
