package task

import (
	"context"
	"testing"
	"time"
)

func TestReclaimStaleReopensExpiredLeases(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, &Task{AgentMode: ModeDraft})

	f := NewFetcher(s).WithLeaseTTL(1)
	if _, err := f.FetchPending(context.Background(), 1, "worker-a", ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	sw := NewSweeper(s, time.Minute, 16, nil)
	n, err := sw.ReclaimStale(context.Background(), time.Now().UnixMilli()+time.Hour.Milliseconds(), 16)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed %d, want 1", n)
	}

	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DraftStatus != DraftFeedbackRequested || got.Consumer != "" || got.LeaseExpiresMs != 0 {
		t.Fatalf("reclaim state: %+v", got)
	}

	// The row is claimable again.
	again, err := NewFetcher(s).FetchPending(context.Background(), 1, "worker-b", "")
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(again) != 1 || again[0].Task.ID != created.ID {
		t.Fatalf("refetch = %+v, want %s", again, created.ID)
	}
}

func TestReclaimLeavesLiveLeasesAlone(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, &Task{AgentMode: ModeComplete})

	f := NewFetcher(s).WithLeaseTTL(time.Hour.Milliseconds())
	if _, err := f.FetchPending(context.Background(), 1, "worker-a", ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	sw := NewSweeper(s, time.Minute, 16, nil)
	n, err := sw.ReclaimStale(context.Background(), time.Now().UnixMilli(), 16)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 0 {
		t.Fatalf("reclaimed %d live leases", n)
	}
	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DraftStatus != DraftStarted || got.Consumer != "worker-a" {
		t.Fatalf("live lease disturbed: %+v", got)
	}
}

func TestReclaimIgnoresFinishedRows(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, &Task{AgentMode: ModeComplete})

	f := NewFetcher(s).WithLeaseTTL(1)
	if _, err := f.FetchPending(context.Background(), 1, "worker-a", ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	// The final save drops the lease before its deadline passes.
	if err := NewWriter(s).SaveResult(context.Background(), created.ID, "worker-a", []byte(`{}`), true); err != nil {
		t.Fatalf("save: %v", err)
	}

	sw := NewSweeper(s, time.Minute, 16, nil)
	n, err := sw.ReclaimStale(context.Background(), time.Now().UnixMilli()+time.Hour.Milliseconds(), 16)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 0 {
		t.Fatalf("reclaimed %d finished rows", n)
	}
	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusSubmitted {
		t.Fatalf("status = %q, want SUBMITTED", got.Status)
	}
}
