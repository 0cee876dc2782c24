// Package execstate provides execution-state persistence: the abstract
// StateStore collaborator, an in-memory implementation, and a
// Redis-backed implementation for multi-process observability.
package execstate

import (
	"context"
	"errors"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

// ErrExecutionNotFound is returned by GetExecution when no record
// exists for the given id.
var ErrExecutionNotFound = errors.New("execution not found")

// Retention constants from spec.md §4.5/§6.
const (
	ExecutionTTL = time.Hour
	HistoryTTL   = 7 * 24 * time.Hour
	LogTTL       = 30 * 24 * time.Hour
	HistoryLimit = 100
)

// StateStore is the abstract persistence collaborator for executions.
// Every operation is best-effort: callers treat failures as logged
// warnings, never as reasons to abort a run (spec.md §7).
type StateStore interface {
	SaveExecution(ctx context.Context, exec *types.Execution) error
	GetExecution(ctx context.Context, id string) (*types.Execution, error)

	AddToRunning(ctx context.Context, id string) error
	RemoveFromRunning(ctx context.Context, id string) error
	ListRunning(ctx context.Context) ([]string, error)

	AppendHistory(ctx context.Context, workflowID string, exec *types.Execution) error
	ListHistory(ctx context.Context, workflowID string) ([]*types.Execution, error)

	AppendLog(ctx context.Context, date string, entry types.LogEntry) error

	// Cancel loads the execution, and if running, transitions it to
	// failed("cancelled") and saves it. Returns ErrExecutionNotFound if
	// no such execution exists.
	Cancel(ctx context.Context, id string) (*types.Execution, error)

	Close() error
}

// dateKey formats t as a per-day log bucket key (UTC, YYYY-MM-DD), the
// form AppendLog's date argument takes. Nothing in this package calls
// it; internal/logging formats the same key itself.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
