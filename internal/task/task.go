package task

import (
	"encoding/json"
	"fmt"
)

// Status is the outer lifecycle of a task as a whole.
type Status string

// Task statuses.
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusSubmitted  Status = "SUBMITTED"
)

// AgentMode declares whether a task expects only draft iterations or a single
// completing pass.
type AgentMode string

// Agent modes.
const (
	ModeDraft    AgentMode = "DRAFT"
	ModeComplete AgentMode = "COMPLETE"
)

// DraftStatus tracks the sub-state of the current draft/feedback cycle. The
// zero value means the task has never been started.
type DraftStatus string

// Draft cycle states. DraftFeedbackRequested is written by an external actor
// to reopen an item; DraftCancelled tells an in-flight worker to stop;
// DraftFailed records a worker error with the lease released.
const (
	DraftNone              DraftStatus = ""
	DraftStarted           DraftStatus = "STARTED"
	DraftCompleted         DraftStatus = "COMPLETED"
	DraftFeedbackRequested DraftStatus = "FB_REQUESTED"
	DraftCancelled         DraftStatus = "CANCELLED"
	DraftFailed            DraftStatus = "FAILED"
)

// Task is one work item row.
type Task struct {
	ID          string          `json:"id"`
	Status      Status          `json:"status"`
	AgentMode   AgentMode       `json:"agent_mode"`
	AgentOrch   string          `json:"agent_orch"`
	DraftStatus DraftStatus     `json:"draft_status,omitempty"`
	Draft       json.RawMessage `json:"draft,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Feedback    json.RawMessage `json:"feedback,omitempty"`
	Consumer    string          `json:"consumer,omitempty"`
	StartDateMs int64           `json:"start_date_ms"`
	TenantID    string          `json:"tenant_id,omitempty"`
	ProcInstID  string          `json:"proc_inst_id,omitempty"`

	// LeaseExpiresMs is set on claim when a lease TTL is configured; the
	// sweeper uses it to find abandoned claims. Zero when unclaimed or when
	// expiry is disabled.
	LeaseExpiresMs int64 `json:"lease_expires_ms,omitempty"`
}

// EligibleForFetch reports whether a row may be claimed by the given
// orchestrator: a fresh, never-started item, or one explicitly reopened for
// another cycle.
func (t *Task) EligibleForFetch(orch string) bool {
	if t.Status != StatusInProgress || t.AgentOrch != orch {
		return false
	}
	if t.DraftStatus == DraftFeedbackRequested {
		return true
	}
	if t.AgentMode != ModeDraft && t.AgentMode != ModeComplete {
		return false
	}
	return t.Draft == nil && t.DraftStatus == DraftNone
}

func encodeTask(t *Task) ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("task: marshal %s: %w", t.ID, err)
	}
	return b, nil
}

func decodeTask(b []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("task: unmarshal: %w", err)
	}
	return &t, nil
}
