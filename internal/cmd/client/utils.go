package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/droverhq/drover/internal/task"
)

// apiURLFromEnv returns the HTTP server base URL from DROVER_HTTP or a
// default.
func apiURLFromEnv() string {
	if v := os.Getenv("DROVER_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

// API is a thin client over the server's HTTP surface. It satisfies the
// worker harness's Engine interface so pollers can run remotely.
type API struct {
	base string
	hc   *http.Client
}

// NewAPI creates a client for the given base URL.
func NewAPI(base string) *API {
	return &API{base: base, hc: http.DefaultClient}
}

func (a *API) postJSON(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *API) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base+path, nil)
	if err != nil {
		return err
	}
	return a.do(req, out)
}

func (a *API) do(req *http.Request, out any) error {
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Create inserts a new work item.
func (a *API) Create(ctx context.Context, t *task.Task) (*task.Task, error) {
	var created task.Task
	if err := a.postJSON(ctx, "/v1/tasks/create", t, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// FetchPending claims up to limit eligible rows for consumerID.
func (a *API) FetchPending(ctx context.Context, limit int, consumerID, tenantFilter string) ([]task.Claimed, error) {
	var resp struct {
		Tasks []task.Claimed `json:"tasks"`
	}
	err := a.postJSON(ctx, "/v1/tasks/fetch-pending", map[string]any{
		"limit":     limit,
		"consumer":  consumerID,
		"tenant_id": tenantFilter,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// SaveResult stores an intermediate or final payload.
func (a *API) SaveResult(ctx context.Context, taskID, consumerID string, payload json.RawMessage, final bool) error {
	return a.postJSON(ctx, "/v1/tasks/save-result", map[string]any{
		"task_id":  taskID,
		"consumer": consumerID,
		"payload":  payload,
		"final":    final,
	}, nil)
}

// Fail records a worker failure, releasing the row's lease.
func (a *API) Fail(ctx context.Context, taskID, consumerID, detail string) error {
	return a.postJSON(ctx, "/v1/tasks/fail", map[string]any{
		"task_id":  taskID,
		"consumer": consumerID,
		"detail":   detail,
	}, nil)
}

// MarkDone advances a submitted row to DONE.
func (a *API) MarkDone(ctx context.Context, taskID string) error {
	return a.postJSON(ctx, "/v1/tasks/mark-done", map[string]any{"task_id": taskID}, nil)
}

// Get loads a full task row.
func (a *API) Get(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	if err := a.getJSON(ctx, "/v1/tasks/get?task_id="+url.QueryEscape(taskID), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// FetchDone returns completed outputs and pending feedback for a process
// instance.
func (a *API) FetchDone(ctx context.Context, procInstID string) ([]task.DoneData, error) {
	var resp struct {
		Data []task.DoneData `json:"data"`
	}
	if err := a.getJSON(ctx, "/v1/tasks/fetch-done?proc_inst_id="+url.QueryEscape(procInstID), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Feedback attaches feedback and reopens the row.
func (a *API) Feedback(ctx context.Context, taskID string, feedback json.RawMessage) error {
	return a.postJSON(ctx, "/v1/tasks/feedback", map[string]any{
		"task_id":  taskID,
		"feedback": feedback,
	}, nil)
}

// Cancel marks the row cancelled.
func (a *API) Cancel(ctx context.Context, taskID string) error {
	return a.postJSON(ctx, "/v1/tasks/cancel", map[string]any{"task_id": taskID}, nil)
}

// List returns rows, optionally filtered by a CEL expression.
func (a *API) List(ctx context.Context, limit int, filter string) ([]*task.Task, error) {
	var resp struct {
		Tasks []*task.Task `json:"tasks"`
	}
	path := "/v1/tasks/list?limit=" + strconv.Itoa(limit)
	if filter != "" {
		path += "&filter=" + url.QueryEscape(filter)
	}
	if err := a.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Events returns the lifecycle history of one task.
func (a *API) Events(ctx context.Context, taskID string, limit int) (json.RawMessage, error) {
	var resp struct {
		Events json.RawMessage `json:"events"`
	}
	path := "/v1/tasks/events?task_id=" + url.QueryEscape(taskID)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	if err := a.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// printJSON pretty-prints a value to the command's stdout.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
