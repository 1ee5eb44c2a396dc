// Package task implements the task-lease and state-transition engine.
//
// A task row moves through two lifecycles: the outer status (IN_PROGRESS →
// SUBMITTED → DONE for completing tasks, or IN_PROGRESS forever for
// draft-only ones) and the draft cycle (null → STARTED → COMPLETED,
// reopenable via FB_REQUESTED). CANCELLED and FAILED park a row outside the
// claimable set until feedback reopens it.
//
// # Keyspace
//
//	task/{id}                           - Task row (JSON)
//	ready/{orch}/{start_ms}/{id}        - Claim-eligible index, FIFO by start date
//	proc/{proc_inst_id}/{start_ms}/{id} - Process instance index
//	lease_idx/{expires_ms}/{id}         - Lease deadline index (sweeper)
//
// # Claim discipline
//
// FetchPending is the only way a consumer comes to hold a row. It scans the
// ready index oldest-first, takes a per-row latch with try semantics (a row
// latched by a concurrent operation is skipped, not awaited), re-validates
// eligibility against the authoritative row, and commits the whole batch of
// claims atomically. Two concurrent fetches therefore always return disjoint
// row sets, and neither ever blocks on the other.
//
// The ready index is advisory: a stale entry (row claimed or cancelled since
// the entry was cut) fails row re-validation and is dropped during the scan.
//
// Single-row writes (save, feedback, cancel) take the same latch but wait
// for it, since they must not be skipped.
package task
