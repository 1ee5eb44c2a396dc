package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfgpkg "github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/runtime"
	pebblestore "github.com/droverhq/drover/internal/storage/pebble"
	"github.com/droverhq/drover/internal/task"
	logpkg "github.com/droverhq/drover/pkg/log"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return New(rt, logger)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestCreateFetchSaveDoneFlow(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/tasks/create",
		`{"agent_mode":"COMPLETE","proc_inst_id":"proc-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: %d body=%s", w.Code, w.Body.String())
	}
	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create returned no id")
	}

	w = do(t, s, http.MethodPost, "/v1/tasks/fetch-pending",
		`{"limit":1,"consumer":"worker-a"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch status: %d body=%s", w.Code, w.Body.String())
	}
	var fetched struct {
		Tasks []task.Claimed `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetch: %v", err)
	}
	if len(fetched.Tasks) != 1 || fetched.Tasks[0].Task.ID != created.ID {
		t.Fatalf("fetch = %+v", fetched)
	}

	w = do(t, s, http.MethodPost, "/v1/tasks/save-result",
		`{"task_id":"`+created.ID+`","consumer":"worker-a","payload":{"answer":42},"final":true}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("save status: %d body=%s", w.Code, w.Body.String())
	}

	// Final save in COMPLETE mode submits; not DONE yet, so fetch-done is empty.
	w = do(t, s, http.MethodGet, "/v1/tasks/fetch-done?proc_inst_id=proc-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("fetch-done status: %d", w.Code)
	}
	var done struct {
		Data []task.DoneData `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode fetch-done: %v", err)
	}
	if len(done.Data) != 0 {
		t.Fatalf("fetch-done before DONE = %+v", done.Data)
	}

	// The application marks the submitted row DONE; its output surfaces.
	w = do(t, s, http.MethodPost, "/v1/tasks/mark-done", `{"task_id":"`+created.ID+`"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("mark-done status: %d body=%s", w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodGet, "/v1/tasks/fetch-done?proc_inst_id=proc-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("fetch-done status: %d", w.Code)
	}
	done.Data = nil
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode fetch-done: %v", err)
	}
	if len(done.Data) != 1 || string(done.Data[0].Output) != `{"answer":42}` {
		t.Fatalf("fetch-done after DONE = %+v", done.Data)
	}

	w = do(t, s, http.MethodGet, "/v1/tasks/status?task_id="+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status status: %d", w.Code)
	}
	var st struct {
		Status      task.Status      `json:"status"`
		DraftStatus task.DraftStatus `json:"draft_status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Status != task.StatusDone || st.DraftStatus != task.DraftCompleted {
		t.Fatalf("status = %+v", st)
	}
}

func TestFailHandler(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"COMPLETE"}`)
	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	do(t, s, http.MethodPost, "/v1/tasks/fetch-pending", `{"limit":1,"consumer":"worker-a"}`)

	w = do(t, s, http.MethodPost, "/v1/tasks/fail",
		`{"task_id":"`+created.ID+`","consumer":"worker-a","detail":"exit status 1"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("fail status: %d body=%s", w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodGet, "/v1/tasks/status?task_id="+created.ID, "")
	if !strings.Contains(w.Body.String(), "FAILED") {
		t.Fatalf("status body = %s", w.Body.String())
	}
}

func TestMarkDoneBeforeSubmitConflict(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"COMPLETE"}`)
	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	w = do(t, s, http.MethodPost, "/v1/tasks/mark-done", `{"task_id":"`+created.ID+`"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status: %d body=%s", w.Code, w.Body.String())
	}
}

func TestCancelAfterSubmitConflict(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"COMPLETE"}`)
	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	do(t, s, http.MethodPost, "/v1/tasks/fetch-pending", `{"limit":1,"consumer":"worker-a"}`)
	do(t, s, http.MethodPost, "/v1/tasks/save-result",
		`{"task_id":"`+created.ID+`","payload":{},"final":true}`)

	w = do(t, s, http.MethodPost, "/v1/tasks/cancel", `{"task_id":"`+created.ID+`"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status: %d body=%s", w.Code, w.Body.String())
	}
}

func TestFetchPendingRequiresConsumer(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/fetch-pending", `{"limit":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestSaveResultUnknownTask(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/save-result",
		`{"task_id":"missing","payload":{},"final":false}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d body=%s", w.Code, w.Body.String())
	}
}

func TestFeedbackConflictAfterSubmit(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"COMPLETE"}`)
	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	do(t, s, http.MethodPost, "/v1/tasks/fetch-pending", `{"limit":1,"consumer":"worker-a"}`)
	do(t, s, http.MethodPost, "/v1/tasks/save-result",
		`{"task_id":"`+created.ID+`","payload":{},"final":true}`)

	w = do(t, s, http.MethodPost, "/v1/tasks/feedback",
		`{"task_id":"`+created.ID+`","feedback":{"note":"again"}}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status: %d body=%s", w.Code, w.Body.String())
	}
}

func TestCancelHandler(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"DRAFT"}`)
	var created task.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	w = do(t, s, http.MethodPost, "/v1/tasks/cancel", `{"task_id":"`+created.ID+`"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel status: %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/v1/tasks/status?task_id="+created.ID, "")
	if !strings.Contains(w.Body.String(), "CANCELLED") {
		t.Fatalf("status body = %s", w.Body.String())
	}
}

func TestListWithFilterParam(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"DRAFT","tenant_id":"acme"}`)
	do(t, s, http.MethodPost, "/v1/tasks/create", `{"agent_mode":"DRAFT","tenant_id":"globex"}`)

	w := do(t, s, http.MethodGet, "/v1/tasks/list?filter="+`tenant_id%20==%20%22acme%22`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status: %d body=%s", w.Code, w.Body.String())
	}
	var listed struct {
		Tasks []*task.Task `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Tasks) != 1 || listed.Tasks[0].TenantID != "acme" {
		t.Fatalf("list = %+v", listed.Tasks)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/v1/tasks/create", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", w.Code)
	}
}
