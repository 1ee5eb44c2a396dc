package events

import (
	"context"
	"testing"

	pebblestore "github.com/droverhq/drover/internal/storage/pebble"
)

func openTestRecorder(t *testing.T) (*Recorder, *pebblestore.DB) {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRecorder(db), db
}

func TestAppendAndListInOrder(t *testing.T) {
	r, db := openTestRecorder(t)
	ctx := context.Background()

	types := []Type{TypeCreated, TypeClaimed, TypeDraftSaved, TypeSubmitted}
	for _, typ := range types {
		b := db.NewBatch()
		if err := r.AppendToBatch(b, "t1", Event{Type: typ, Consumer: "w1"}); err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
		if err := db.CommitBatch(ctx, b); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}

	evs, err := r.List("t1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != len(types) {
		t.Fatalf("want %d events, got %d", len(types), len(evs))
	}
	for i, ev := range evs {
		if ev.Type != types[i] {
			t.Fatalf("event %d: want %s got %s", i, types[i], ev.Type)
		}
		if ev.AtMs == 0 {
			t.Fatalf("event %d missing timestamp", i)
		}
	}
}

func TestListScopedToTask(t *testing.T) {
	r, db := openTestRecorder(t)
	ctx := context.Background()

	b := db.NewBatch()
	_ = r.AppendToBatch(b, "a", Event{Type: TypeCreated})
	_ = r.AppendToBatch(b, "b", Event{Type: TypeCreated})
	if err := db.CommitBatch(ctx, b); err != nil {
		t.Fatalf("commit: %v", err)
	}

	evs, err := r.List("a", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected only task a's event, got %d", len(evs))
	}
}

func TestListRespectsLimit(t *testing.T) {
	r, db := openTestRecorder(t)
	ctx := context.Background()

	b := db.NewBatch()
	for i := 0; i < 5; i++ {
		_ = r.AppendToBatch(b, "t", Event{Type: TypeDraftSaved})
	}
	if err := db.CommitBatch(ctx, b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	evs, err := r.List("t", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("limit not applied: %d", len(evs))
	}
}
