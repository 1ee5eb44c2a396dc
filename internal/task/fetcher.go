package task

import (
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/droverhq/drover/internal/events"
	"github.com/droverhq/drover/pkg/id"
)

// Claimed is one row returned by a fetch, carrying the pre-claim draft status
// so callers can distinguish a first claim from a reclaim after feedback.
type Claimed struct {
	Task            Task        `json:"task"`
	PrevDraftStatus DraftStatus `json:"prev_draft_status,omitempty"`
}

// Fetcher claims batches of eligible pending rows for named consumers.
type Fetcher struct {
	store *Store

	// leaseTTLMs, when positive, stamps each claim with a deadline the
	// sweeper can act on. Zero disables expiry, matching the upstream
	// contract.
	leaseTTLMs int64

	// skipHook, when set, runs after a tenant-mismatch skip. Test seam.
	skipHook func(taskID string)
}

// NewFetcher creates a Fetcher over the store.
func NewFetcher(store *Store) *Fetcher {
	return &Fetcher{store: store}
}

// WithLeaseTTL enables claim deadlines. ttlMs <= 0 disables them.
func (f *Fetcher) WithLeaseTTL(ttlMs int64) *Fetcher {
	f.leaseTTLMs = ttlMs
	return f
}

// FetchPending atomically claims up to limit eligible rows for consumerID,
// oldest start date first. A row currently latched by another in-flight
// operation is skipped, never awaited. tenantFilter, when non-empty,
// restricts eligibility to exact tenant matches without changing the claim
// strategy. Each returned row has draft_status=STARTED and the consumer
// recorded; the pre-claim draft status rides alongside. An empty result is a
// normal outcome, not an error.
func (f *Fetcher) FetchPending(ctx context.Context, limit int, consumerID, tenantFilter string) ([]Claimed, error) {
	if limit <= 0 {
		limit = 1
	}
	s := f.store
	lo, hi := keyRange(ReadyPrefix(s.orch))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	nowMs := id.NowMs()
	var claimed []Claimed
	var taken []string
	defer func() { s.latches.release(taken...) }()

	for ok := iter.First(); ok && len(claimed) < limit; ok = iter.Next() {
		key := iter.Key()
		taskID, valid := indexedID(key, ReadyPrefix(s.orch))
		if !valid {
			continue
		}
		// Contested rows are excluded from this batch, not awaited.
		if !s.latches.tryAcquire(taskID) {
			continue
		}
		taken = append(taken, taskID)

		t, err := s.Get(ctx, taskID)
		if err != nil {
			// Dangling index entry; drop it and move on.
			_ = b.Delete(append([]byte{}, key...), nil)
			continue
		}
		if !t.EligibleForFetch(s.orch) {
			// The index is advisory; the row is authoritative.
			_ = b.Delete(append([]byte{}, key...), nil)
			continue
		}
		if tenantFilter != "" && t.TenantID != tenantFilter {
			// Mismatched rows keep their ready entry and their latch is
			// freed at the skip, not when the scan finishes.
			s.latches.release(taskID)
			taken = taken[:len(taken)-1]
			if f.skipHook != nil {
				f.skipHook(taskID)
			}
			continue
		}

		prev := t.DraftStatus
		t.DraftStatus = DraftStarted
		t.Consumer = consumerID
		if f.leaseTTLMs > 0 {
			t.LeaseExpiresMs = nowMs + f.leaseTTLMs
			if err := b.Set(LeaseIdxKey(t.LeaseExpiresMs, t.ID), nil, nil); err != nil {
				return nil, err
			}
		}
		if err := s.writeTask(b, t); err != nil {
			return nil, err
		}
		if err := b.Delete(append([]byte{}, key...), nil); err != nil {
			return nil, err
		}
		if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeClaimed, Consumer: consumerID}); err != nil {
			return nil, err
		}
		claimed = append(claimed, Claimed{Task: *t, PrevDraftStatus: prev})
	}

	if len(claimed) == 0 && b.Empty() {
		return nil, nil
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	return claimed, nil
}
