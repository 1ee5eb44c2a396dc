package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/droverhq/drover/internal/runtime"
	tasksvc "github.com/droverhq/drover/internal/services/tasks"
	"github.com/droverhq/drover/internal/task"
)

// TasksController handles all task-related HTTP endpoints.
//
// It provides the producer surface (create, feedback, cancel, mark-done),
// the consumer surface (fetch-pending, save-result, fail, status), the read
// path (fetch-done), and admin operations (get, list, events).
type TasksController struct {
	rt  *runtime.Runtime
	svc *tasksvc.Service
}

// NewTasksController creates a new tasks controller.
func NewTasksController(rt *runtime.Runtime, svc *tasksvc.Service) *TasksController {
	return &TasksController{rt: rt, svc: svc}
}

// RegisterRoutes registers all task-related routes with the given mux.
func (c *TasksController) RegisterRoutes(mux *http.ServeMux) {
	// Producer surface
	mux.HandleFunc("/v1/tasks/create", c.handleCreate)
	mux.HandleFunc("/v1/tasks/feedback", c.handleFeedback)
	mux.HandleFunc("/v1/tasks/cancel", c.handleCancel)
	mux.HandleFunc("/v1/tasks/mark-done", c.handleMarkDone)

	// Consumer surface
	mux.HandleFunc("/v1/tasks/fetch-pending", c.handleFetchPending)
	mux.HandleFunc("/v1/tasks/save-result", c.handleSaveResult)
	mux.HandleFunc("/v1/tasks/fail", c.handleFail)
	mux.HandleFunc("/v1/tasks/status", c.handleStatus)

	// Result read path
	mux.HandleFunc("/v1/tasks/fetch-done", c.handleFetchDone)

	// Admin
	mux.HandleFunc("/v1/tasks/get", c.handleGet)
	mux.HandleFunc("/v1/tasks/list", c.handleList)
	mux.HandleFunc("/v1/tasks/events", c.handleEvents)
}

// writeTaskError maps engine sentinels onto HTTP statuses.
func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, task.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, "task already submitted")
	case errors.Is(err, task.ErrNotSubmitted):
		writeError(w, http.StatusConflict, "task not submitted")
	case errors.Is(err, task.ErrNotOwner):
		writeError(w, http.StatusForbidden, "consumer does not hold the lease")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type createReq struct {
	ID          string         `json:"id"`
	AgentMode   task.AgentMode `json:"agent_mode"`
	AgentOrch   string         `json:"agent_orch"`
	TenantID    string         `json:"tenant_id"`
	ProcInstID  string         `json:"proc_inst_id"`
	StartDateMs int64          `json:"start_date_ms"`
}

// handleCreate inserts a new work item.
// POST /v1/tasks/create
func (c *TasksController) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	created, err := c.svc.Create(r.Context(), &task.Task{
		ID:          req.ID,
		AgentMode:   req.AgentMode,
		AgentOrch:   req.AgentOrch,
		TenantID:    req.TenantID,
		ProcInstID:  req.ProcInstID,
		StartDateMs: req.StartDateMs,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

type fetchPendingReq struct {
	Limit    int    `json:"limit"`
	Consumer string `json:"consumer"`
	TenantID string `json:"tenant_id"`
}

// handleFetchPending atomically claims up to limit eligible rows.
// POST /v1/tasks/fetch-pending
func (c *TasksController) handleFetchPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req fetchPendingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Consumer == "" {
		writeError(w, http.StatusBadRequest, "consumer required")
		return
	}
	claimed, err := c.svc.FetchPending(r.Context(), req.Limit, req.Consumer, req.TenantID)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	if claimed == nil {
		claimed = []task.Claimed{}
	}
	writeJSON(w, map[string]any{"tasks": claimed})
}

type saveResultReq struct {
	TaskID   string          `json:"task_id"`
	Consumer string          `json:"consumer"`
	Payload  json.RawMessage `json:"payload"`
	Final    bool            `json:"final"`
}

// handleSaveResult stores an intermediate or final payload.
// POST /v1/tasks/save-result
func (c *TasksController) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req saveResultReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id required")
		return
	}
	if err := c.svc.SaveResult(r.Context(), req.TaskID, req.Consumer, req.Payload, req.Final); err != nil {
		writeTaskError(w, err)
		return
	}
	writeNoContent(w)
}

type failReq struct {
	TaskID   string `json:"task_id"`
	Consumer string `json:"consumer"`
	Detail   string `json:"detail"`
}

// handleFail records a worker failure and releases the row's lease.
// POST /v1/tasks/fail
func (c *TasksController) handleFail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req failReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id required")
		return
	}
	if err := c.svc.Fail(r.Context(), req.TaskID, req.Consumer, req.Detail); err != nil {
		writeTaskError(w, err)
		return
	}
	writeNoContent(w)
}

type markDoneReq struct {
	TaskID string `json:"task_id"`
}

// handleMarkDone advances a submitted row to DONE.
// POST /v1/tasks/mark-done
func (c *TasksController) handleMarkDone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req markDoneReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id required")
		return
	}
	if err := c.svc.MarkDone(r.Context(), req.TaskID); err != nil {
		writeTaskError(w, err)
		return
	}
	writeNoContent(w)
}

// handleFetchDone returns completed outputs and pending feedback for a
// process instance.
// GET /v1/tasks/fetch-done?proc_inst_id=<id>
func (c *TasksController) handleFetchDone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	procInstID := r.URL.Query().Get("proc_inst_id")
	if procInstID == "" {
		writeError(w, http.StatusBadRequest, "proc_inst_id parameter required")
		return
	}
	done, err := c.svc.FetchDone(r.Context(), procInstID)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	if done == nil {
		done = []task.DoneData{}
	}
	writeJSON(w, map[string]any{"proc_inst_id": procInstID, "data": done})
}

// handleStatus returns the lifecycle fields workers poll between saves.
// GET /v1/tasks/status?task_id=<id>
func (c *TasksController) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id parameter required")
		return
	}
	t, err := c.svc.Get(r.Context(), taskID)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"task_id":      t.ID,
		"status":       t.Status,
		"draft_status": t.DraftStatus,
	})
}

type feedbackReq struct {
	TaskID   string          `json:"task_id"`
	Feedback json.RawMessage `json:"feedback"`
}

// handleFeedback attaches feedback and reopens the row for another cycle.
// POST /v1/tasks/feedback
func (c *TasksController) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req feedbackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id required")
		return
	}
	if err := c.svc.RequestFeedback(r.Context(), req.TaskID, req.Feedback); err != nil {
		writeTaskError(w, err)
		return
	}
	writeNoContent(w)
}

type cancelReq struct {
	TaskID string `json:"task_id"`
}

// handleCancel marks the row cancelled.
// POST /v1/tasks/cancel
func (c *TasksController) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "task_id required")
		return
	}
	if err := c.svc.Cancel(r.Context(), req.TaskID); err != nil {
		writeTaskError(w, err)
		return
	}
	writeNoContent(w)
}

// handleGet returns a full task row.
// GET /v1/tasks/get?task_id=<id>
func (c *TasksController) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id parameter required")
		return
	}
	t, err := c.svc.Get(r.Context(), taskID)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, t)
}

// handleList returns rows, optionally filtered by a CEL expression.
// GET /v1/tasks/list?limit=<n>&filter=<expr>
func (c *TasksController) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rows, err := c.svc.List(r.Context(), parseLimit(r.URL.Query().Get("limit")), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if rows == nil {
		rows = []*task.Task{}
	}
	writeJSON(w, map[string]any{"tasks": rows})
}

// handleEvents returns the lifecycle history of one task.
// GET /v1/tasks/events?task_id=<id>&limit=<n>
func (c *TasksController) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task_id parameter required")
		return
	}
	evs, err := c.svc.Events(r.Context(), taskID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, map[string]any{"task_id": taskID, "events": evs})
}
