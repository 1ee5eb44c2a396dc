// Package config loads Drover's configuration from a JSON or YAML file with
// DROVER_* environment overlays. The orchestrator identity lives here so the
// same binary can serve different engine deployments without code changes.
package config
