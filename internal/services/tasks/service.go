package tasksvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/droverhq/drover/internal/events"
	"github.com/droverhq/drover/internal/runtime"
	"github.com/droverhq/drover/internal/task"
	logpkg "github.com/droverhq/drover/pkg/log"
)

// Service provides task operations over the engine.
// It coordinates the Store, Fetcher, Writer, Reader, and the optional
// stale-lease Sweeper, applying configured defaults.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger

	fetcher *task.Fetcher
	writer  *task.Writer
	reader  *task.Reader
	sweeper *task.Sweeper

	// Defaults
	defaultFetchLimit int
}

// New creates a new tasks service with default settings.
func New(rt *runtime.Runtime) *Service {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	logger = logger.With(logpkg.F("component", "tasks"))
	return NewWithLogger(rt, logger)
}

// NewWithLogger creates a new tasks service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.F("component", "tasks"))
	}

	cfg := rt.Config()
	store := rt.Store()

	fetcher := task.NewFetcher(store)
	if cfg.Lease.SweepEnabled && cfg.Lease.TTLMs > 0 {
		fetcher = fetcher.WithLeaseTTL(cfg.Lease.TTLMs)
	}

	s := &Service{
		rt:                rt,
		logger:            logger,
		fetcher:           fetcher,
		writer:            task.NewWriter(store).WithOwnerCheck(cfg.VerifyConsumerOnSave),
		reader:            task.NewReader(store),
		defaultFetchLimit: cfg.DefaultFetchLimit,
	}
	if s.defaultFetchLimit <= 0 {
		s.defaultFetchLimit = 1
	}
	if cfg.Lease.SweepEnabled {
		s.sweeper = task.NewSweeper(store, cfg.Lease.SweepInterval(), cfg.Lease.SweepMax, logger)
	}
	return s
}

// StartSweeper launches the background lease reclamation loop if configured.
func (s *Service) StartSweeper() {
	if s.sweeper != nil {
		s.sweeper.Start()
		s.logger.Info("lease sweeper started")
	}
}

// StopSweeper halts the background loop.
func (s *Service) StopSweeper() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
}

// Create inserts a new work item and returns it with defaults applied.
func (s *Service) Create(ctx context.Context, t *task.Task) (*task.Task, error) {
	created, err := s.rt.Store().Create(ctx, t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		logpkg.Str("task_id", created.ID),
		logpkg.Str("agent_mode", string(created.AgentMode)))
	return created, nil
}

// FetchPending claims up to limit eligible rows for consumerID. A
// non-positive limit falls back to the configured default.
func (s *Service) FetchPending(ctx context.Context, limit int, consumerID, tenantFilter string) ([]task.Claimed, error) {
	if consumerID == "" {
		return nil, fmt.Errorf("tasks: consumer id required")
	}
	if limit <= 0 {
		limit = s.defaultFetchLimit
	}
	claimed, err := s.fetcher.FetchPending(ctx, limit, consumerID, tenantFilter)
	if err != nil {
		return nil, err
	}
	if len(claimed) > 0 {
		s.logger.Debug("claimed tasks",
			logpkg.Int("count", len(claimed)),
			logpkg.Str("consumer", consumerID))
	}
	return claimed, nil
}

// SaveResult stores an intermediate or final payload for the task.
func (s *Service) SaveResult(ctx context.Context, taskID, consumerID string, payload json.RawMessage, final bool) error {
	if taskID == "" {
		return fmt.Errorf("tasks: task id required")
	}
	if err := s.writer.SaveResult(ctx, taskID, consumerID, payload, final); err != nil {
		return err
	}
	if final {
		s.logger.Info("final result saved", logpkg.Str("task_id", taskID))
	}
	return nil
}

// Fail records a worker failure on the task, releasing the lease so the row
// can be reopened with feedback.
func (s *Service) Fail(ctx context.Context, taskID, consumerID, detail string) error {
	if taskID == "" {
		return fmt.Errorf("tasks: task id required")
	}
	if err := s.writer.Fail(ctx, taskID, consumerID, detail); err != nil {
		return err
	}
	s.logger.Warn("task failed",
		logpkg.Str("task_id", taskID),
		logpkg.Str("detail", detail))
	return nil
}

// MarkDone advances a submitted row to DONE so its output appears on the
// done-data read path.
func (s *Service) MarkDone(ctx context.Context, taskID string) error {
	if err := s.writer.MarkDone(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("task done", logpkg.Str("task_id", taskID))
	return nil
}

// FetchDone returns completed outputs and pending feedback for a process
// instance.
func (s *Service) FetchDone(ctx context.Context, procInstID string) ([]task.DoneData, error) {
	if procInstID == "" {
		return nil, fmt.Errorf("tasks: proc_inst_id required")
	}
	return s.reader.FetchDone(ctx, procInstID)
}

// Get loads one task row.
func (s *Service) Get(ctx context.Context, taskID string) (*task.Task, error) {
	return s.rt.Store().Get(ctx, taskID)
}

// RequestFeedback attaches feedback and reopens the row for another cycle.
func (s *Service) RequestFeedback(ctx context.Context, taskID string, feedback json.RawMessage) error {
	if err := s.writer.RequestFeedback(ctx, taskID, feedback); err != nil {
		return err
	}
	s.logger.Info("feedback requested", logpkg.Str("task_id", taskID))
	return nil
}

// Cancel marks the row cancelled, signalling any in-flight worker to stop.
func (s *Service) Cancel(ctx context.Context, taskID string) error {
	if err := s.writer.Cancel(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("task cancelled", logpkg.Str("task_id", taskID))
	return nil
}

// List returns up to limit rows, optionally filtered by a CEL expression over
// row fields (id, status, draft_status, tenant_id, has_output, ...).
func (s *Service) List(ctx context.Context, limit int, filterExpr string) ([]*task.Task, error) {
	filter, err := newCELFilter(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("tasks: filter: %w", err)
	}
	if limit <= 0 {
		limit = 100
	}
	// Over-scan when filtering so matches fill the page.
	scan := limit
	if filter.enabled {
		scan = limit * 10
	}
	rows, err := s.rt.Store().List(ctx, scan)
	if err != nil {
		return nil, err
	}
	if !filter.enabled {
		return rows, nil
	}
	out := rows[:0]
	for _, t := range rows {
		if filter.Eval(t) {
			out = append(out, t)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Events returns the lifecycle history of one task.
func (s *Service) Events(ctx context.Context, taskID string, limit int) ([]events.Event, error) {
	if _, err := s.rt.Store().Get(ctx, taskID); err != nil {
		return nil, err
	}
	return s.rt.Store().Events().List(taskID, limit)
}
