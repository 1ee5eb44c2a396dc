// Package pebblestore wraps cockroachdb/pebble with Drover's durability
// policy (fsync modes with optional group-commit) and small helpers for
// batched, atomic multi-key updates. All task-state mutations in
// internal/task commit through a single batch here, which is what makes each
// engine operation an indivisible unit.
package pebblestore
