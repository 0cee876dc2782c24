package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowforge/dagflow/internal/config"
	"github.com/flowforge/dagflow/internal/events"
	"github.com/flowforge/dagflow/internal/execstate"
	"github.com/flowforge/dagflow/internal/executor"
	"github.com/flowforge/dagflow/internal/logging"
	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/internal/workflowstore"
	"github.com/flowforge/dagflow/pkg/types"
)

func newTestHandlers(t *testing.T) (*Handlers, execstate.StateStore) {
	t.Helper()
	store := execstate.NewMemoryStore()
	workflows := workflowstore.NewMemoryStore()

	registry := node.NewRegistry()
	registry.Register("stub", func(spec *types.NodeSpec) (node.Node, error) {
		return stubNode{}, nil
	}, false)

	logger := logging.New(logging.LevelInfo, store, slog.Default())
	exec := executor.New(&executor.Config{MaxWorkers: 2}, store, logger, registry)
	bus := events.NewBus()
	exec.SetEventBus(bus)

	h := NewHandlers(exec, store, workflows, nil, bus, &config.Config{}, slog.Default())
	return h, store
}

type stubNode struct{}

func (stubNode) Execute(ctx context.Context, snapshot, input map[string]interface{}) types.NodeResult {
	return types.NodeResult{Success: true, Data: map[string]interface{}{"ok": true}}
}
func (stubNode) Validate() bool          { return true }
func (stubNode) Describe() node.Describe { return node.Describe{} }

func validWorkflow(id string) types.Workflow {
	return types.Workflow{
		ID:   id,
		Name: "test workflow",
		Nodes: map[string]types.NodeSpec{
			"n1": {ID: "n1", Name: "n1", Type: "stub"},
		},
	}
}

func TestSubmitRunAndGetRun(t *testing.T) {
	h, store := newTestHandlers(t)

	wf := validWorkflow("wf-1")
	body, _ := json.Marshal(SubmitRunRequest{Workflow: wf})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/wf-1/runs", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "wf-1"})
	w := httptest.NewRecorder()

	h.SubmitRun(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmitRunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ExecutionID == "" {
		t.Fatal("expected non-empty execution id")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if exec, err := store.GetExecution(req.Context(), resp.ExecutionID); err == nil && exec.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+resp.ExecutionID, nil)
	getReq = mux.SetURLVars(getReq, map[string]string{"id": resp.ExecutionID})
	getW := httptest.NewRecorder()
	h.GetRun(getW, getReq)

	if getW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getW.Code, getW.Body.String())
	}
}

func TestSubmitRunWorkflowIDMismatch(t *testing.T) {
	h, _ := newTestHandlers(t)

	wf := validWorkflow("wf-other")
	body, _ := json.Marshal(SubmitRunRequest{Workflow: wf})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows/wf-1/runs", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "wf-1"})
	w := httptest.NewRecorder()

	h.SubmitRun(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	w := httptest.NewRecorder()

	h.GetRun(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	h, _ := newTestHandlers(t)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetWorkflowNotConfigured(t *testing.T) {
	h, _ := newTestHandlers(t)
	h.workflows = nil

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/wf-1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "wf-1"})
	w := httptest.NewRecorder()

	h.GetWorkflow(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
