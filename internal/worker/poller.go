package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/droverhq/drover/internal/task"
	logpkg "github.com/droverhq/drover/pkg/log"
)

// Engine is the surface a poller needs from the task service. Satisfied by
// the in-process service and by HTTP API clients alike.
type Engine interface {
	FetchPending(ctx context.Context, limit int, consumerID, tenantFilter string) ([]task.Claimed, error)
	SaveResult(ctx context.Context, taskID, consumerID string, payload json.RawMessage, final bool) error
	Fail(ctx context.Context, taskID, consumerID, detail string) error
	Get(ctx context.Context, taskID string) (*task.Task, error)
}

// Handler executes one claimed task and returns the final payload. The
// context is cancelled when the row is cancelled or reopened for feedback
// while the handler runs; handlers should stop and return ctx.Err().
type Handler interface {
	Handle(ctx context.Context, claim task.Claimed) (json.RawMessage, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, claim task.Claimed) (json.RawMessage, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, claim task.Claimed) (json.RawMessage, error) {
	return f(ctx, claim)
}

// Options configures a Poller.
type Options struct {
	// Consumer identifies this worker on claims. Defaults to a generated
	// worker-<uuid> id.
	Consumer string
	// Tenant restricts claims to one tenant. Empty claims across tenants.
	Tenant string
	// Limit is the claim batch size per poll. Defaults to 1.
	Limit int
	// Interval between polls of the pending queue. Defaults to 7s.
	Interval time.Duration
	// WatchInterval between cancellation checks while a handler runs.
	// Defaults to 5s.
	WatchInterval time.Duration
	Logger        logpkg.Logger
}

// Poller claims pending tasks in a loop and hands them to a Handler, saving
// the handler's result as the final payload. While a handler runs, the row's
// draft status is watched so cancellation or reopening interrupts the work.
type Poller struct {
	engine  Engine
	handler Handler
	opts    Options
	logger  logpkg.Logger
}

// New creates a Poller over the engine.
func New(engine Engine, handler Handler, opts Options) *Poller {
	if opts.Consumer == "" {
		opts.Consumer = "worker-" + uuid.NewString()
	}
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 7 * time.Second
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.With(logpkg.Component("worker"), logpkg.Str("consumer", opts.Consumer))
	return &Poller{engine: engine, handler: handler, opts: opts, logger: logger}
}

// Consumer returns the identity this poller claims under.
func (p *Poller) Consumer() string { return p.opts.Consumer }

// Run polls until ctx is cancelled. Handler failures are non-fatal; the loop
// keeps polling.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling started")
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	for {
		p.pollOnce(ctx)
		select {
		case <-ctx.Done():
			p.logger.Info("polling stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce claims one batch and processes it sequentially.
func (p *Poller) pollOnce(ctx context.Context) {
	claims, err := p.engine.FetchPending(ctx, p.opts.Limit, p.opts.Consumer, p.opts.Tenant)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("fetch pending failed", logpkg.Err(err))
		}
		return
	}
	for _, claim := range claims {
		if ctx.Err() != nil {
			return
		}
		p.processClaim(ctx, claim)
	}
}

// processClaim runs the handler for one claim under a cancellation watch and
// saves the final result.
func (p *Poller) processClaim(ctx context.Context, claim task.Claimed) {
	taskID := claim.Task.ID
	p.logger.Info("processing task",
		logpkg.Str("task_id", taskID),
		logpkg.Str("prev_draft_status", string(claim.PrevDraftStatus)))

	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	interrupted := make(chan task.DraftStatus, 1)
	go p.watchInterrupt(hctx, taskID, cancel, interrupted)

	payload, err := p.handler.Handle(hctx, claim)
	cancel()
	if err != nil {
		select {
		case st := <-interrupted:
			p.logger.Info("task interrupted",
				logpkg.Str("task_id", taskID),
				logpkg.Str("draft_status", string(st)))
		default:
			if ctx.Err() != nil {
				// Shutdown, not a worker error; the row keeps its lease.
				return
			}
			p.logger.Error("handler failed", logpkg.Str("task_id", taskID), logpkg.Err(err))
			if ferr := p.engine.Fail(ctx, taskID, p.opts.Consumer, err.Error()); ferr != nil {
				p.logger.Warn("record failure failed", logpkg.Str("task_id", taskID), logpkg.Err(ferr))
			}
		}
		return
	}

	if err := p.engine.SaveResult(ctx, taskID, p.opts.Consumer, payload, true); err != nil {
		p.logger.Error("save result failed", logpkg.Str("task_id", taskID), logpkg.Err(err))
		return
	}
	p.logger.Info("task finished", logpkg.Str("task_id", taskID))
}

// watchInterrupt polls the row's draft status and cancels the handler when
// the row is cancelled or reopened for feedback.
func (p *Poller) watchInterrupt(ctx context.Context, taskID string, cancel context.CancelFunc, interrupted chan<- task.DraftStatus) {
	ticker := time.NewTicker(p.opts.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		t, err := p.engine.Get(ctx, taskID)
		if err != nil {
			continue
		}
		if t.DraftStatus == task.DraftCancelled || t.DraftStatus == task.DraftFeedbackRequested {
			select {
			case interrupted <- t.DraftStatus:
			default:
			}
			cancel()
			return
		}
	}
}
