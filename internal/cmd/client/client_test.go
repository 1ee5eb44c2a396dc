package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cfgpkg "github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/runtime"
	"github.com/droverhq/drover/internal/server/http/controllers"
	tasksvc "github.com/droverhq/drover/internal/services/tasks"
	pebblestore "github.com/droverhq/drover/internal/storage/pebble"
	"github.com/droverhq/drover/internal/task"
	logpkg "github.com/droverhq/drover/pkg/log"
)

func newTestAPI(t *testing.T) *API {
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
	svc := tasksvc.NewWithLogger(rt, logger)
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(rt, svc).RegisterAllRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAPI(srv.URL)
}

func TestAPIRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	ctx := context.Background()

	created, err := api.Create(ctx, &task.Task{AgentMode: task.ModeComplete, ProcInstID: "proc-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("create returned no id")
	}

	claimed, err := api.FetchPending(ctx, 1, "worker-a", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(claimed) != 1 || claimed[0].Task.ID != created.ID {
		t.Fatalf("fetch = %+v", claimed)
	}

	if err := api.SaveResult(ctx, created.ID, "worker-a", json.RawMessage(`{"v":1}`), true); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := api.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != task.StatusSubmitted {
		t.Fatalf("status = %q", got.Status)
	}

	rows, err := api.List(ctx, 10, `status == "SUBMITTED"`)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("list = %+v", rows)
	}

	evs, err := api.Events(ctx, created.ID, 10)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(evs, &decoded); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(decoded) < 2 {
		t.Fatalf("event count = %d", len(decoded))
	}
}

func TestAPISurfacesServerErrors(t *testing.T) {
	api := newTestAPI(t)
	if _, err := api.Get(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
	if err := api.Cancel(context.Background(), "missing"); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestTaskCreateCommand(t *testing.T) {
	api := newTestAPI(t)
	root := NewTaskCommand(func() string { return api.base })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"create", "--agent-mode", "DRAFT", "--tenant", "acme"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var created task.Task
	if err := json.Unmarshal(out.Bytes(), &created); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if created.AgentMode != task.ModeDraft || created.TenantID != "acme" {
		t.Fatalf("created = %+v", created)
	}
}
