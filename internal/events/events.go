package events

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/droverhq/drover/internal/storage/pebble"
	"github.com/droverhq/drover/pkg/id"
)

// Type names a lifecycle transition recorded for a task.
type Type string

// Event types, in rough lifecycle order.
const (
	TypeCreated        Type = "created"
	TypeClaimed        Type = "claimed"
	TypeDraftSaved     Type = "draft_saved"
	TypeCycleCompleted Type = "cycle_completed"
	TypeSubmitted      Type = "submitted"
	TypeReopened       Type = "reopened"
	TypeCancelled      Type = "cancelled"
	TypeFailed         Type = "failed"
	TypeDone           Type = "done"
	TypeReclaimed      Type = "reclaimed"
)

// Event is a single append-only record in a task's history.
type Event struct {
	Type     Type   `json:"type"`
	AtMs     int64  `json:"at_ms"`
	Consumer string `json:"consumer,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Recorder appends and lists per-task lifecycle events. Appends ride inside
// the same batch as the state mutation they describe, so history and state
// commit together.
type Recorder struct {
	db  *pebblestore.DB
	gen *id.Generator
}

// NewRecorder creates a Recorder over the given store.
func NewRecorder(db *pebblestore.DB) *Recorder {
	return &Recorder{db: db, gen: id.NewGenerator()}
}

// eventKey builds evt/{taskID}/{eventID}; event ids are time-ordered so a
// prefix scan yields history in append order.
func eventKey(taskID string, evID id.ID) []byte {
	prefix := "evt/" + taskID + "/"
	key := make([]byte, len(prefix)+32)
	copy(key, prefix)
	copy(key[len(prefix):], evID.String())
	return key
}

// eventPrefix returns the scan prefix for a task's events.
func eventPrefix(taskID string) []byte {
	return []byte("evt/" + taskID + "/")
}

// AppendToBatch stages an event write into b. The caller owns the commit.
func (r *Recorder) AppendToBatch(b *pebble.Batch, taskID string, ev Event) error {
	if ev.AtMs <= 0 {
		ev.AtMs = id.NowMs()
	}
	val, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	return b.Set(eventKey(taskID, r.gen.Next()), val, nil)
}

// List returns up to limit events for a task in append order.
func (r *Recorder) List(taskID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	prefix := eventPrefix(taskID)
	hi := append(append([]byte{}, prefix...), 0xFF)
	iter, err := r.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: hi})
	if err != nil {
		return nil, fmt.Errorf("events: iterator: %w", err)
	}
	defer iter.Close()

	var out []Event
	for ok := iter.First(); ok && len(out) < limit; ok = iter.Next() {
		var ev Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
