package task

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/pebble"
)

// DoneData is one completed output or pending feedback surfaced for a
// process instance.
type DoneData struct {
	TaskID   string          `json:"task_id"`
	Output   json.RawMessage `json:"output,omitempty"`
	Feedback json.RawMessage `json:"feedback,omitempty"`
}

// Reader is the read-only query path for completed outputs and requested
// feedback.
type Reader struct {
	store *Store
}

// NewReader creates a Reader over the store.
func NewReader(store *Store) *Reader {
	return &Reader{store: store}
}

// FetchDone returns, oldest start date first, one entry per task of the
// process instance that is either finished with an output present or still
// in progress with feedback attached. Pure read; no locking, no side
// effects.
func (r *Reader) FetchDone(ctx context.Context, procInstID string) ([]DoneData, error) {
	if procInstID == "" {
		return nil, nil
	}
	lo, hi := keyRange(ProcPrefix(procInstID))
	iter, err := r.store.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []DoneData
	for ok := iter.First(); ok; ok = iter.Next() {
		taskID, valid := indexedID(iter.Key(), ProcPrefix(procInstID))
		if !valid {
			continue
		}
		t, err := r.store.Get(ctx, taskID)
		if err != nil {
			continue
		}
		switch {
		case t.Status == StatusDone && t.Output != nil:
			out = append(out, DoneData{TaskID: t.ID, Output: t.Output, Feedback: t.Feedback})
		case t.Status == StatusInProgress && t.Feedback != nil:
			out = append(out, DoneData{TaskID: t.ID, Feedback: t.Feedback})
		}
	}
	return out, nil
}
