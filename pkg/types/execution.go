package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the wire format for Execution timestamps:
// YYYY-MM-DD HH:MM:SS.uuuuuu (microsecond precision).
const TimeLayout = "2006-01-02 15:04:05.000000"

// Status is the run-level state machine value.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrCancelled is the reserved error string used when an execution is
// transitioned to failed via cancellation.
const ErrCancelled = "cancelled"

// LogEntry is a single structured log line, scoped to a node when NodeID
// is non-empty.
type LogEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	ExecutionID string                 `json:"executionId,omitempty"`
	NodeID      string                 `json:"nodeId,omitempty"`
}

// NodeResult is what every Node.Execute call returns.
type NodeResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Logs    []LogEntry  `json:"logs,omitempty"`
}

// Execution is the observable state of a single workflow run.
type Execution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflowId"`
	Status      Status                 `json:"status"`
	Context     map[string]interface{} `json:"context"`
	Logs        map[string][]LogEntry  `json:"logs"`
	Error       string                 `json:"error,omitempty"`
	StartTime   *time.Time             `json:"-"`
	EndTime     *time.Time             `json:"-"`
	cancelled   bool
}

// executionJSON mirrors Execution for the wire format described in
// spec.md §6, where StartTime/EndTime/Duration are formatted strings.
type executionJSON struct {
	ID         string                 `json:"id"`
	WorkflowID string                 `json:"workflowId"`
	Status     Status                 `json:"status"`
	Context    map[string]interface{} `json:"context"`
	Logs       map[string][]LogEntry  `json:"logs"`
	Error      string                 `json:"error,omitempty"`
	StartTime  string                 `json:"startTime,omitempty"`
	EndTime    string                 `json:"endTime,omitempty"`
	Duration   *float64               `json:"duration,omitempty"`
}

// MarshalJSON renders Execution using the wire format from spec.md §6.
func (e *Execution) MarshalJSON() ([]byte, error) {
	out := executionJSON{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		Status:     e.Status,
		Context:    e.Context,
		Logs:       e.Logs,
		Error:      e.Error,
	}
	if e.StartTime != nil {
		out.StartTime = e.StartTime.Format(TimeLayout)
	}
	if e.EndTime != nil {
		out.EndTime = e.EndTime.Format(TimeLayout)
	}
	if d, ok := e.Duration(); ok {
		secs := d.Seconds()
		out.Duration = &secs
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the wire format produced by MarshalJSON.
func (e *Execution) UnmarshalJSON(data []byte) error {
	var in executionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.ID = in.ID
	e.WorkflowID = in.WorkflowID
	e.Status = in.Status
	e.Context = in.Context
	e.Logs = in.Logs
	e.Error = in.Error
	if in.StartTime != "" {
		t, err := time.Parse(TimeLayout, in.StartTime)
		if err != nil {
			return fmt.Errorf("parse startTime: %w", err)
		}
		e.StartTime = &t
	}
	if in.EndTime != "" {
		t, err := time.Parse(TimeLayout, in.EndTime)
		if err != nil {
			return fmt.Errorf("parse endTime: %w", err)
		}
		e.EndTime = &t
	}
	return nil
}

// Duration returns EndTime-StartTime when both are set.
func (e *Execution) Duration() (time.Duration, bool) {
	if e.StartTime == nil || e.EndTime == nil {
		return 0, false
	}
	return e.EndTime.Sub(*e.StartTime), true
}

// NewExecution builds a pending Execution over the initial context. The
// returned context map is the same reference the caller
// supplied; callers in this codebase always pass a dedicated copy.
func NewExecution(id, workflowID string, initialContext map[string]interface{}) *Execution {
	if initialContext == nil {
		initialContext = map[string]interface{}{}
	}
	return &Execution{
		ID:         id,
		WorkflowID: workflowID,
		Status:     StatusPending,
		Context:    initialContext,
		Logs:       map[string][]LogEntry{},
	}
}

// Start transitions pending -> running.
func (e *Execution) Start(now time.Time) error {
	if e.Status != StatusPending {
		return fmt.Errorf("execution %s: cannot start from status %s", e.ID, e.Status)
	}
	e.Status = StatusRunning
	e.StartTime = &now
	return nil
}

// Complete transitions running -> completed.
func (e *Execution) Complete(now time.Time) error {
	if e.Status != StatusRunning {
		return fmt.Errorf("execution %s: cannot complete from status %s", e.ID, e.Status)
	}
	e.Status = StatusCompleted
	e.EndTime = &now
	return nil
}

// Fail transitions running (or pending) -> failed with the given error
// message.
// Terminal statuses are sinks: failing an already-terminal execution is
// a no-op returning nil, matching the teacher's idempotent-cancel style.
func (e *Execution) Fail(now time.Time, errMsg string) error {
	if e.Status == StatusFailed || e.Status == StatusCompleted {
		return nil
	}
	if e.Status != StatusRunning && e.Status != StatusPending {
		return fmt.Errorf("execution %s: cannot fail from status %s", e.ID, e.Status)
	}
	e.Status = StatusFailed
	e.Error = errMsg
	e.EndTime = &now
	return nil
}

// Cancel transitions running -> failed(cancelled). It is idempotent: a
// second call on an already-terminal execution is a no-op.
func (e *Execution) Cancel(now time.Time) error {
	e.cancelled = true
	if e.Status != StatusRunning {
		return nil
	}
	return e.Fail(now, ErrCancelled)
}

// CancelRequested reports whether Cancel has been called on this value,
// regardless of whether the transition has already completed.
func (e *Execution) CancelRequested() bool {
	return e.cancelled
}

// IsTerminal reports whether the execution is in a sink state.
func (e *Execution) IsTerminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}
