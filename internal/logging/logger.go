// Package logging implements the execution-scoped structured log
// pipeline: level filtering, an in-process buffer, StateStore-backed
// persistence, and the JSON/CSV/text export formats from spec.md §4.6.
package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowforge/dagflow/internal/execstate"
	"github.com/flowforge/dagflow/pkg/types"
)

// Level is one of the five severities the logger filters on, ordered
// debug < info < warning < error < critical.
type Level string

const (
	LevelDebug    Level = "debug"
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

var rank = map[Level]int{
	LevelDebug:    0,
	LevelInfo:     1,
	LevelWarning:  2,
	LevelError:    3,
	LevelCritical: 4,
}

// Logger buffers log entries in-process and optionally mirrors them to
// a StateStore. A nil store is valid: the logger then only buffers.
type Logger struct {
	minLevel Level
	store    execstate.StateStore
	slog     *slog.Logger
	buffer   []types.LogEntry
	now      func() time.Time
}

// New builds a Logger filtering below minLevel. store may be nil.
// base is the ambient slog.Logger this Logger mirrors every entry to
// (so operators see the same lines on stdout/stderr regardless of
// whether a StateStore is configured); a nil base falls back to
// slog.Default().
func New(minLevel Level, store execstate.StateStore, base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{minLevel: minLevel, store: store, slog: base, now: time.Now}
}

func (l *Logger) enabled(level Level) bool {
	return rank[level] >= rank[l.minLevel]
}

// Log records an entry scoped to executionID/nodeID (either may be
// empty), mirrors it to the ambient slog logger, buffers it, and — if
// a StateStore is attached — appends it best-effort (errors are logged
// as a warning via slog, never surfaced to the caller, per spec.md §7).
func (l *Logger) Log(ctx context.Context, level Level, message string, data map[string]interface{}, executionID, nodeID string) {
	if !l.enabled(level) {
		return
	}

	entry := types.LogEntry{
		Timestamp:   l.now(),
		Level:       string(level),
		Message:     message,
		Data:        data,
		ExecutionID: executionID,
		NodeID:      nodeID,
	}
	l.buffer = append(l.buffer, entry)

	l.mirror(entry)

	if l.store == nil {
		return
	}
	date := entry.Timestamp.UTC().Format("2006-01-02")
	if err := l.store.AppendLog(ctx, date, entry); err != nil {
		l.slog.Warn("append log to state store failed", slog.String("error", err.Error()))
	}
}

func (l *Logger) mirror(entry types.LogEntry) {
	attrs := []any{slog.String("execution_id", entry.ExecutionID), slog.String("node_id", entry.NodeID)}
	switch Level(entry.Level) {
	case LevelDebug:
		l.slog.Debug(entry.Message, attrs...)
	case LevelWarning:
		l.slog.Warn(entry.Message, attrs...)
	case LevelError, LevelCritical:
		l.slog.Error(entry.Message, attrs...)
	default:
		l.slog.Info(entry.Message, attrs...)
	}
}

func (l *Logger) Debug(ctx context.Context, message string, data map[string]interface{}, executionID, nodeID string) {
	l.Log(ctx, LevelDebug, message, data, executionID, nodeID)
}

func (l *Logger) Info(ctx context.Context, message string, data map[string]interface{}, executionID, nodeID string) {
	l.Log(ctx, LevelInfo, message, data, executionID, nodeID)
}

func (l *Logger) Warning(ctx context.Context, message string, data map[string]interface{}, executionID, nodeID string) {
	l.Log(ctx, LevelWarning, message, data, executionID, nodeID)
}

func (l *Logger) Error(ctx context.Context, message string, data map[string]interface{}, executionID, nodeID string) {
	l.Log(ctx, LevelError, message, data, executionID, nodeID)
}

func (l *Logger) Critical(ctx context.Context, message string, data map[string]interface{}, executionID, nodeID string) {
	l.Log(ctx, LevelCritical, message, data, executionID, nodeID)
}

// Buffer returns the in-process ordered buffer accumulated so far.
func (l *Logger) Buffer() []types.LogEntry {
	return l.buffer
}
