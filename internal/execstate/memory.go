package execstate

import (
	"context"
	"sync"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

// expiring wraps a stored value with the time after which it is no
// longer returned (evaluated lazily on read, mirroring the teacher's
// in-memory store's lazy-expiry approach rather than a background
// sweeper).
type expiring[T any] struct {
	value   T
	expires time.Time
}

// MemoryStore is a non-durable, process-local StateStore. It is the
// default backend and the fallback target when a configured Redis
// backend is unavailable at startup (spec.md §7 / SPEC_FULL.md §7).
type MemoryStore struct {
	mu        sync.Mutex
	execs     map[string]expiring[*types.Execution]
	running   map[string]struct{}
	history   map[string][]expiring[*types.Execution]
	logs      map[string][]expiring[types.LogEntry]
	now       func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		execs:   make(map[string]expiring[*types.Execution]),
		running: make(map[string]struct{}),
		history: make(map[string][]expiring[*types.Execution]),
		logs:    make(map[string][]expiring[types.LogEntry]),
		now:     time.Now,
	}
}

func (m *MemoryStore) SaveExecution(_ context.Context, exec *types.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs[exec.ID] = expiring[*types.Execution]{value: cloneExecution(exec), expires: m.now().Add(ExecutionTTL)}
	return nil
}

func (m *MemoryStore) GetExecution(_ context.Context, id string) (*types.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok || m.now().After(e.expires) {
		return nil, ErrExecutionNotFound
	}
	return cloneExecution(e.value), nil
}

func (m *MemoryStore) AddToRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[id] = struct{}{}
	return nil
}

func (m *MemoryStore) RemoveFromRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
	return nil
}

func (m *MemoryStore) ListRunning(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.running))
	for id := range m.running {
		out = append(out, id)
	}
	return out, nil
}

func (m *MemoryStore) AppendHistory(_ context.Context, workflowID string, exec *types.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := expiring[*types.Execution]{value: cloneExecution(exec), expires: m.now().Add(HistoryTTL)}
	list := append([]expiring[*types.Execution]{entry}, m.history[workflowID]...)
	if len(list) > HistoryLimit {
		list = list[:HistoryLimit]
	}
	m.history[workflowID] = list
	return nil
}

func (m *MemoryStore) ListHistory(_ context.Context, workflowID string) ([]*types.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]*types.Execution, 0, len(m.history[workflowID]))
	for _, e := range m.history[workflowID] {
		if now.After(e.expires) {
			continue
		}
		out = append(out, cloneExecution(e.value))
	}
	return out, nil
}

func (m *MemoryStore) AppendLog(_ context.Context, date string, entry types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[date] = append(m.logs[date], expiring[types.LogEntry]{value: entry, expires: m.now().Add(LogTTL)})
	return nil
}

func (m *MemoryStore) Cancel(_ context.Context, id string) (*types.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.execs[id]
	if !ok || m.now().After(e.expires) {
		return nil, ErrExecutionNotFound
	}
	exec := e.value
	if err := exec.Cancel(m.now()); err != nil {
		return nil, err
	}
	m.execs[id] = expiring[*types.Execution]{value: exec, expires: m.now().Add(ExecutionTTL)}
	return cloneExecution(exec), nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneExecution(e *types.Execution) *types.Execution {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
