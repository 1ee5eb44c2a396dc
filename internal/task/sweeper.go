package task

import (
	"context"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/droverhq/drover/internal/events"
	"github.com/droverhq/drover/pkg/id"
	logpkg "github.com/droverhq/drover/pkg/log"
)

// Sweeper reverts stale STARTED rows whose lease deadline passed back to the
// reopened state, so work abandoned by a crashed consumer becomes claimable
// again. Additive hardening; the engine runs fine without it.
type Sweeper struct {
	store    *Store
	interval time.Duration
	max      int
	logger   logpkg.Logger
	stop     chan struct{}
}

// NewSweeper creates a Sweeper ticking at interval and reclaiming at most
// max rows per tick.
func NewSweeper(store *Store, interval time.Duration, max int, logger logpkg.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if max <= 0 {
		max = 256
	}
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Sweeper{store: store, interval: interval, max: max, logger: logger.With(logpkg.Component("sweeper"))}
}

// ReclaimStale scans the lease deadline index and reopens rows whose
// deadline is at or before nowMs. Rows latched by an in-flight operation are
// skipped and picked up on a later tick. Returns the number reclaimed.
func (sw *Sweeper) ReclaimStale(ctx context.Context, nowMs int64, max int) (int, error) {
	if nowMs <= 0 {
		nowMs = id.NowMs()
	}
	if max <= 0 {
		max = sw.max
	}
	s := sw.store
	lo, hi := keyRange(LeaseIdxPrefix())
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()

	reclaimed := 0
	var taken []string
	defer func() { s.latches.release(taken...) }()

	for ok := iter.First(); ok && reclaimed < max; ok = iter.Next() {
		key := iter.Key()
		taskID, valid := indexedID(key, LeaseIdxPrefix())
		if !valid {
			continue
		}
		// Deadlines sort ascending; past the horizon we are done.
		if indexedMs(key, LeaseIdxPrefix()) > nowMs {
			break
		}
		if !s.latches.tryAcquire(taskID) {
			continue
		}
		taken = append(taken, taskID)

		_ = b.Delete(append([]byte{}, key...), nil)
		t, err := s.Get(ctx, taskID)
		if err != nil {
			continue
		}
		if t.DraftStatus != DraftStarted || t.LeaseExpiresMs == 0 || t.LeaseExpiresMs > nowMs {
			// Lease was released or renewed since the index entry was cut.
			continue
		}

		consumer := t.Consumer
		t.DraftStatus = DraftFeedbackRequested
		t.Consumer = ""
		t.LeaseExpiresMs = 0
		if err := s.writeTask(b, t); err != nil {
			return reclaimed, err
		}
		if err := b.Set(ReadyKey(t.AgentOrch, t.StartDateMs, t.ID), nil, nil); err != nil {
			return reclaimed, err
		}
		if err := s.rec.AppendToBatch(b, t.ID, events.Event{Type: events.TypeReclaimed, Consumer: consumer}); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}

	if b.Empty() {
		return 0, nil
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return reclaimed, err
	}
	if reclaimed > 0 {
		sw.logger.Info("reclaimed stale leases", logpkg.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// Start runs the background reclamation loop until Stop.
func (sw *Sweeper) Start() {
	if sw.stop != nil {
		return
	}
	sw.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()
		for {
			select {
			case <-sw.stop:
				return
			case <-ticker.C:
				if _, err := sw.ReclaimStale(context.Background(), id.NowMs(), sw.max); err != nil {
					sw.logger.Error("reclaim tick failed", logpkg.Err(err))
				}
			}
		}
	}()
}

// Stop halts the background loop.
func (sw *Sweeper) Stop() {
	if sw.stop != nil {
		close(sw.stop)
		sw.stop = nil
	}
}
