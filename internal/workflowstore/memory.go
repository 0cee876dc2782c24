package workflowstore

import (
	"context"
	"sync"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

// MemoryStore implements WorkflowStore using in-memory storage.
// Suitable for testing and local development.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*Record
}

// NewMemoryStore creates a new in-memory workflow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{workflows: make(map[string]*Record)}
}

func (s *MemoryStore) Create(_ context.Context, workflow *types.Workflow) (*Record, error) {
	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflow.ID]; exists {
		return nil, ErrWorkflowExists
	}

	now := time.Now().UTC()
	rec := &Record{Workflow: *workflow, CreatedAt: now, UpdatedAt: now}
	s.workflows[workflow.ID] = rec

	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, workflow *types.Workflow) (*Record, error) {
	if err := workflow.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workflows[workflow.ID]
	if !ok {
		return nil, ErrWorkflowNotFound
	}

	rec := &Record{Workflow: *workflow, CreatedAt: existing.CreatedAt, UpdatedAt: time.Now().UTC()}
	s.workflows[workflow.ID] = rec

	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrWorkflowNotFound
	}
	delete(s.workflows, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, opts *ListOptions) ([]*Record, error) {
	if opts == nil {
		opts = &ListOptions{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, rec := range s.workflows {
		cp := *rec
		out = append(out, &cp)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []*Record{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}

	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
