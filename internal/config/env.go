package config

import (
	"os"
	"strconv"
)

// FromEnv overlays DROVER_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("DROVER_ORCHESTRATOR"); v != "" {
		cfg.Orchestrator = v
	}
	if v := os.Getenv("DROVER_DEFAULT_FETCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultFetchLimit = n
		}
	}
	if v := os.Getenv("DROVER_VERIFY_CONSUMER_ON_SAVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.VerifyConsumerOnSave = b
		}
	}
	if v := os.Getenv("DROVER_LEASE_SWEEP_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Lease.SweepEnabled = b
		}
	}
	if v := os.Getenv("DROVER_LEASE_TTL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Lease.TTLMs = n
		}
	}
	if v := os.Getenv("DROVER_LEASE_SWEEP_INTERVAL_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Lease.SweepIntervalMs = n
		}
	}
	if v := os.Getenv("DROVER_LEASE_SWEEP_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Lease.SweepMax = n
		}
	}
}
