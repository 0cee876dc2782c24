package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/flowforge/dagflow/internal/config"
	"github.com/flowforge/dagflow/internal/events"
	"github.com/flowforge/dagflow/internal/execstate"
	"github.com/flowforge/dagflow/internal/executor"
	"github.com/flowforge/dagflow/internal/validator"
	"github.com/flowforge/dagflow/internal/workflowstore"
	"github.com/flowforge/dagflow/pkg/types"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	executor  *executor.Executor
	store     execstate.StateStore
	workflows workflowstore.WorkflowStore
	validator *validator.Validator
	config    *config.Config
	bus       *events.Bus
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(exec *executor.Executor, store execstate.StateStore, workflows workflowstore.WorkflowStore, v *validator.Validator, bus *events.Bus, cfg *config.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		executor:  exec,
		store:     store,
		workflows: workflows,
		validator: v,
		config:    cfg,
		bus:       bus,
		logger:    logger,
	}
}

// --- Health Endpoints ---

// Health handles /health and /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles /ready, checking the StateStore is reachable.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store != nil {
		if _, err := h.store.ListRunning(ctx); err != nil {
			h.respondError(w, r, http.StatusServiceUnavailable, "", "state store unhealthy", err)
			return
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Run submission & observation ---

// SubmitRunRequest is the request body for POST /api/v1/workflows/{id}/runs.
type SubmitRunRequest struct {
	Workflow types.Workflow         `json:"workflow"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// SubmitRunResponse is the response body after submitting a run.
type SubmitRunResponse struct {
	ExecutionID string `json:"executionId"`
	WorkflowID  string `json:"workflowId"`
	Status      string `json:"status"`
	EventsURL   string `json:"eventsUrl"`
}

// SubmitRun handles POST /api/v1/workflows/{id}/runs. It decodes a full
// Workflow definition and initial context, validates the workflow,
// persists the definition for later retrieval, and executes it
// asynchronously, returning only the new Execution's id; this is the
// only place the engine is driven from HTTP (SPEC_FULL.md §4.11) —
// workflow authoring and parsing are not endpoints of their own.
func (h *Handlers) SubmitRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID := mux.Vars(r)["id"]

	var req SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, workflowID, "invalid request body", err)
		return
	}
	if req.Workflow.ID == "" {
		req.Workflow.ID = workflowID
	}
	if req.Workflow.ID != workflowID {
		h.respondError(w, r, http.StatusBadRequest, workflowID, "workflow id mismatch", errors.New("path id does not match workflow.id"))
		return
	}

	if h.validator != nil {
		raw, err := json.Marshal(req.Workflow)
		if err == nil {
			var asMap map[string]interface{}
			if jerr := json.Unmarshal(raw, &asMap); jerr == nil {
				result := h.validator.ValidateWorkflow(asMap)
				if !result.Valid {
					h.respondJSON(w, http.StatusBadRequest, result)
					return
				}
			}
		}
	}
	if err := req.Workflow.Validate(); err != nil {
		h.respondError(w, r, http.StatusBadRequest, workflowID, "invalid workflow", err)
		return
	}

	if h.workflows != nil {
		if _, err := h.workflows.Create(ctx, &req.Workflow); err != nil {
			if errors.Is(err, workflowstore.ErrWorkflowExists) {
				if _, err := h.workflows.Update(ctx, &req.Workflow); err != nil {
					h.logger.Warn("workflow definition update failed", "error", err, "workflowId", req.Workflow.ID)
				}
			} else {
				h.logger.Warn("workflow definition save failed", "error", err, "workflowId", req.Workflow.ID)
			}
		}
	}

	execID, err := h.executor.ExecuteAsync(ctx, &req.Workflow, req.Context)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, workflowID, "failed to start execution", err)
		return
	}

	h.respondJSON(w, http.StatusAccepted, SubmitRunResponse{
		ExecutionID: execID,
		WorkflowID:  req.Workflow.ID,
		Status:      string(types.StatusPending),
		EventsURL:   "/api/v1/runs/" + execID + "/events",
	})
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	exec, err := h.store.GetExecution(ctx, id)
	if err != nil {
		if errors.Is(err, execstate.ErrExecutionNotFound) {
			h.respondNotFound(w, r, ErrCodeExecutionNotFound, id, "execution not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, id, "failed to get execution", err)
		return
	}
	h.respondJSON(w, http.StatusOK, exec)
}

// CancelRun handles POST /api/v1/runs/{id}/cancel.
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	exec, err := h.store.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, execstate.ErrExecutionNotFound) {
			h.respondNotFound(w, r, ErrCodeExecutionNotFound, id, "execution not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, id, "failed to cancel execution", err)
		return
	}
	h.respondJSON(w, http.StatusOK, exec)
}

// WorkflowHistory handles GET /api/v1/workflows/{id}/history.
func (h *Handlers) WorkflowHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	workflowID := mux.Vars(r)["id"]

	history, err := h.store.ListHistory(ctx, workflowID)
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, workflowID, "failed to list history", err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"workflowId": workflowID, "history": history})
}

// GetWorkflow handles GET /api/v1/workflows/{id}, returning the
// definition last submitted with a run for that id. Supplements the
// minimum SPEC_FULL.md surface: nothing here authors or edits a
// workflow, it only recalls what SubmitRun already persisted.
func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	if h.workflows == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "", "workflow store not configured", errors.New("no workflowstore.WorkflowStore wired"))
		return
	}
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	rec, err := h.workflows.Get(ctx, id)
	if err != nil {
		if errors.Is(err, workflowstore.ErrWorkflowNotFound) {
			h.respondNotFound(w, r, ErrCodeWorkflowNotFound, id, "workflow not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, id, "failed to get workflow", err)
		return
	}
	h.respondJSON(w, http.StatusOK, rec)
}

// --- Helper Methods ---

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// respondError writes the generic status-derived error envelope.
// resourceID is the workflow or execution id the request named, if
// any — pass "" when the failure isn't about a specific resource.
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, status int, resourceID, message string, err error) {
	h.logger.Error(message, "error", err, "status", status, "resourceId", resourceID)
	details := map[string]interface{}{}
	if err != nil {
		details["cause"] = err.Error()
	}
	writeErrorResponse(w, r, status, HTTPStatusToErrorCode(status), resourceID, message, details)
}

// respondNotFound writes a 404 with a resource-specific error code
// (ErrCodeWorkflowNotFound or ErrCodeExecutionNotFound) instead of the
// generic ErrCodeNotFound HTTPStatusToErrorCode would produce, so
// clients can tell which kind of id they got wrong.
func (h *Handlers) respondNotFound(w http.ResponseWriter, r *http.Request, code, resourceID, message string, err error) {
	h.logger.Warn(message, "error", err, "resourceId", resourceID)
	details := map[string]interface{}{}
	if err != nil {
		details["cause"] = err.Error()
	}
	writeErrorResponse(w, r, http.StatusNotFound, code, resourceID, message, details)
}
