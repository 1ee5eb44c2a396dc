package task

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/pebble"

	"github.com/droverhq/drover/internal/events"
)

// Writer records intermediate or final results for claimed rows and advances
// the draft state machine.
type Writer struct {
	store *Store

	// verifyOwner rejects saves whose consumer does not match the stored
	// lease holder. The upstream contract trusts the task id alone, so this
	// is off unless configured; see DESIGN.md.
	verifyOwner bool
}

// NewWriter creates a Writer over the store.
func NewWriter(store *Store) *Writer {
	return &Writer{store: store}
}

// WithOwnerCheck enables save-time lease ownership verification.
func (w *Writer) WithOwnerCheck(on bool) *Writer {
	w.verifyOwner = on
	return w
}

// SaveResult stores payload for the task. Non-final saves update the draft
// only. A final save in COMPLETE mode submits the task (output set, status
// SUBMITTED); a final save in DRAFT mode completes the cycle leaving status
// and output untouched. Final saves release the lease. Repeated calls are
// idempotent; the last write wins. consumerID is consulted only when the
// owner check is enabled and may be empty otherwise.
func (w *Writer) SaveResult(ctx context.Context, taskID, consumerID string, payload json.RawMessage, final bool) error {
	s := w.store
	s.latches.acquire(taskID)
	defer s.latches.release(taskID)

	t, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if w.verifyOwner && consumerID != "" && t.Consumer != "" && t.Consumer != consumerID {
		return ErrNotOwner
	}

	b := s.db.NewBatch()
	defer b.Close()

	if !final {
		t.Draft = payload
		if err := s.writeTask(b, t); err != nil {
			return err
		}
		if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeDraftSaved, Consumer: t.Consumer}); err != nil {
			return err
		}
		return s.db.CommitBatch(ctx, b)
	}

	evType := events.TypeCycleCompleted
	t.Draft = payload
	if t.AgentMode == ModeComplete {
		t.Output = payload
		t.Status = StatusSubmitted
		evType = events.TypeSubmitted
	}
	t.DraftStatus = DraftCompleted
	consumer := t.Consumer
	t.Consumer = ""
	w.dropLease(b, t)

	if err := s.writeTask(b, t); err != nil {
		return err
	}
	if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: evType, Consumer: consumer}); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// RequestFeedback stores an externally supplied feedback document and reopens
// the row for another cycle. The fetch step reinterprets FB_REQUESTED as
// eligible again.
func (w *Writer) RequestFeedback(ctx context.Context, taskID string, feedback json.RawMessage) error {
	s := w.store
	s.latches.acquire(taskID)
	defer s.latches.release(taskID)

	t, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != StatusInProgress {
		return ErrAlreadySubmitted
	}

	b := s.db.NewBatch()
	defer b.Close()

	t.Feedback = feedback
	t.DraftStatus = DraftFeedbackRequested
	t.Consumer = ""
	w.dropLease(b, t)

	if err := s.writeTask(b, t); err != nil {
		return err
	}
	if err := b.Set(ReadyKey(t.AgentOrch, t.StartDateMs, t.ID), nil, nil); err != nil {
		return err
	}
	if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeReopened}); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// Cancel marks the row cancelled and releases any lease. In-flight workers
// observe the cancelled draft status through the status read and stop.
// Cancelling a row whose outer lifecycle has already finished returns
// ErrAlreadySubmitted; the terminal record stays intact.
func (w *Writer) Cancel(ctx context.Context, taskID string) error {
	s := w.store
	s.latches.acquire(taskID)
	defer s.latches.release(taskID)

	t, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != StatusInProgress {
		return ErrAlreadySubmitted
	}

	b := s.db.NewBatch()
	defer b.Close()

	t.DraftStatus = DraftCancelled
	t.Consumer = ""
	w.dropLease(b, t)

	if err := s.writeTask(b, t); err != nil {
		return err
	}
	// The row may still sit in the ready index if it was never claimed.
	if err := b.Delete(ReadyKey(t.AgentOrch, t.StartDateMs, t.ID), nil); err != nil {
		return err
	}
	if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeCancelled}); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// Fail records a worker failure on a claimed row: draft status FAILED, lease
// and consumer released. The row leaves the claimable set until feedback
// reopens it. detail carries the worker's error text into the event history.
func (w *Writer) Fail(ctx context.Context, taskID, consumerID, detail string) error {
	s := w.store
	s.latches.acquire(taskID)
	defer s.latches.release(taskID)

	t, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status != StatusInProgress {
		return ErrAlreadySubmitted
	}
	if w.verifyOwner && consumerID != "" && t.Consumer != "" && t.Consumer != consumerID {
		return ErrNotOwner
	}

	b := s.db.NewBatch()
	defer b.Close()

	consumer := t.Consumer
	t.DraftStatus = DraftFailed
	t.Consumer = ""
	w.dropLease(b, t)

	if err := s.writeTask(b, t); err != nil {
		return err
	}
	if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeFailed, Consumer: consumer, Detail: detail}); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// MarkDone advances a submitted row to DONE, exposing its output on the
// done-data read path. Called by the application that consumed the submitted
// output, never by the engine itself. Idempotent; rows that have not been
// submitted yet return ErrNotSubmitted.
func (w *Writer) MarkDone(ctx context.Context, taskID string) error {
	s := w.store
	s.latches.acquire(taskID)
	defer s.latches.release(taskID)

	t, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if t.Status == StatusDone {
		return nil
	}
	if t.Status != StatusSubmitted {
		return ErrNotSubmitted
	}

	b := s.db.NewBatch()
	defer b.Close()

	t.Status = StatusDone
	if err := s.writeTask(b, t); err != nil {
		return err
	}
	if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeDone}); err != nil {
		return err
	}
	return s.db.CommitBatch(ctx, b)
}

// dropLease stages removal of the lease deadline index entry, if any.
func (w *Writer) dropLease(b *pebble.Batch, t *Task) {
	if t.LeaseExpiresMs > 0 {
		_ = b.Delete(LeaseIdxKey(t.LeaseExpiresMs, t.ID), nil)
		t.LeaseExpiresMs = 0
	}
}
