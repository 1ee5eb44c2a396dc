package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/droverhq/drover/internal/events"
	pebblestore "github.com/droverhq/drover/internal/storage/pebble"
	"github.com/droverhq/drover/pkg/id"
)

// ErrNotFound is returned when an operation targets a nonexistent task id.
var ErrNotFound = errors.New("task not found")

// ErrAlreadySubmitted is returned when feedback targets a task whose outer
// lifecycle has already finished.
var ErrAlreadySubmitted = errors.New("task already submitted")

// ErrNotOwner is returned by the optional save-time ownership check when the
// caller does not hold the row's lease.
var ErrNotOwner = errors.New("consumer does not hold the lease")

// ErrNotSubmitted is returned when a row is marked done before a final
// COMPLETE-mode save has submitted it.
var ErrNotSubmitted = errors.New("task not submitted")

// Store is the durable table of work items and the single source of truth
// for task state. All mutations commit through single atomic batches; the
// per-row latch table provides the lock-or-skip claim primitive.
type Store struct {
	db      *pebblestore.DB
	orch    string
	latches *rowLatches
	rec     *events.Recorder
	gen     *id.Generator
}

// NewStore creates a Store claiming rows for the given orchestrator identity.
func NewStore(db *pebblestore.DB, orch string) *Store {
	return &Store{
		db:      db,
		orch:    orch,
		latches: newRowLatches(),
		rec:     events.NewRecorder(db),
		gen:     id.NewGenerator(),
	}
}

// Orchestrator returns the engine identity rows are claimed for.
func (s *Store) Orchestrator() string { return s.orch }

// Events exposes the per-task event recorder.
func (s *Store) Events() *events.Recorder { return s.rec }

// Create inserts a new work item. Missing fields get producer defaults: a
// sortable id, IN_PROGRESS status, the store's orchestrator identity, and the
// current time as start date. Fresh rows are indexed as claim-eligible.
func (s *Store) Create(ctx context.Context, t *Task) (*Task, error) {
	if t.AgentMode != ModeDraft && t.AgentMode != ModeComplete {
		return nil, fmt.Errorf("task: unknown agent mode %q", t.AgentMode)
	}
	if t.ID == "" {
		t.ID = s.gen.Next().String()
	}
	if t.Status == "" {
		t.Status = StatusInProgress
	}
	if t.AgentOrch == "" {
		t.AgentOrch = s.orch
	}
	if t.StartDateMs <= 0 {
		t.StartDateMs = id.NowMs()
	}
	t.DraftStatus = DraftNone
	t.Consumer = ""

	s.latches.acquire(t.ID)
	defer s.latches.release(t.ID)

	if _, err := s.db.Get(TaskKey(t.ID)); err == nil {
		return nil, fmt.Errorf("task: id %s already exists", t.ID)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := s.writeTask(b, t); err != nil {
		return nil, err
	}
	if t.EligibleForFetch(t.AgentOrch) {
		if err := b.Set(ReadyKey(t.AgentOrch, t.StartDateMs, t.ID), nil, nil); err != nil {
			return nil, err
		}
	}
	if t.ProcInstID != "" {
		if err := b.Set(ProcKey(t.ProcInstID, t.StartDateMs, t.ID), nil, nil); err != nil {
			return nil, err
		}
	}
	if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeCreated}); err != nil {
		return nil, err
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return t, nil
}

// Get loads a task row by id.
func (s *Store) Get(ctx context.Context, taskID string) (*Task, error) {
	val, err := s.db.Get(TaskKey(taskID))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeTask(val)
}

// List returns up to limit task rows in id order. Admin surface; the service
// layer applies filtering.
func (s *Store) List(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 100
	}
	lo, hi := keyRange(TaskPrefix())
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Task
	for ok := iter.First(); ok && len(out) < limit; ok = iter.Next() {
		t, err := decodeTask(iter.Value())
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// writeTask stages the row into a batch.
func (s *Store) writeTask(b *pebble.Batch, t *Task) error {
	val, err := encodeTask(t)
	if err != nil {
		return err
	}
	return b.Set(TaskKey(t.ID), val, nil)
}
