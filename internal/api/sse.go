package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowforge/dagflow/internal/events"
	"github.com/flowforge/dagflow/internal/execstate"
	"github.com/flowforge/dagflow/internal/metrics"
)

// StreamEvents handles GET /api/v1/runs/{id}/events, streaming an
// execution's log and status events as Server-Sent Events. Grounded
// on the teacher's internal/api/sse.go, adapted to subscribe through
// internal/events.Bus (this engine's in-process replacement for the
// teacher's store.Subscribe) instead of a RunStore's event log.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	executionID := mux.Vars(r)["id"]
	requestID := GetRequestID(ctx, r)

	exec, err := h.store.GetExecution(ctx, executionID)
	if err != nil {
		if errors.Is(err, execstate.ErrExecutionNotFound) {
			h.respondNotFound(w, r, ErrCodeExecutionNotFound, executionID, "execution not found", err)
			return
		}
		h.respondError(w, r, http.StatusInternalServerError, executionID, "failed to get execution", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondError(w, r, http.StatusInternalServerError, executionID, "streaming not supported", nil)
		return
	}

	metrics.SSEActiveConnections.Inc()
	defer metrics.SSEActiveConnections.Dec()

	h.logger.Info("SSE connection opened",
		slog.String("execution_id", executionID),
		slog.String("request_id", requestID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	// Replay the current snapshot first, since the Bus itself keeps no
	// history: a client that subscribes after the run has progressed
	// still learns where it stands before live events start arriving.
	h.writeSSE(w, flusher, &events.Event{ExecutionID: executionID, Type: "snapshot", Status: string(exec.Status)})
	if exec.IsTerminal() {
		h.writeSSE(w, flusher, &events.Event{ExecutionID: executionID, Type: "complete", Status: string(exec.Status)})
		return
	}

	if h.bus == nil {
		return
	}
	eventCh, cleanup := h.bus.Subscribe(executionID)
	defer cleanup()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	startTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			metrics.SSEConnectionDuration.Observe(time.Since(startTime).Seconds())
			h.logger.Info("SSE connection closed (client disconnect)",
				slog.String("execution_id", executionID),
				slog.Duration("duration", time.Since(startTime)),
			)
			return

		case evt, ok := <-eventCh:
			if !ok {
				return
			}
			h.writeSSE(w, flusher, evt)
			if evt.Type == "complete" {
				metrics.SSEConnectionDuration.Observe(time.Since(startTime).Seconds())
				return
			}

		case <-heartbeat.C:
			h.writeComment(w, flusher, "heartbeat")
		}
	}
}

func (h *Handlers) writeSSE(w http.ResponseWriter, flusher http.Flusher, evt *events.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal SSE event", "error", err)
		return
	}
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		h.logger.Error("failed to write SSE event", "error", err)
		return
	}
	flusher.Flush()
}

func (h *Handlers) writeComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	if _, err := w.Write([]byte(": " + comment + "\n\n")); err != nil {
		h.logger.Error("failed to write SSE comment", "error", err)
		return
	}
	flusher.Flush()
}
