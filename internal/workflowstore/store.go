// Package workflowstore provides persistence for Workflow definitions,
// distinct from internal/execstate's per-run Execution state.
package workflowstore

import (
	"context"
	"errors"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

// Common errors returned by WorkflowStore implementations.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrWorkflowExists   = errors.New("workflow already exists")
)

// Record wraps a stored Workflow with persistence metadata.
type Record struct {
	Workflow  types.Workflow `json:"workflow"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ListOptions configures List queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// WorkflowStore persists Workflow definitions submitted through the
// API, ahead of any run against them. Implementations must be safe
// for concurrent use.
type WorkflowStore interface {
	// Create saves a new workflow. Returns ErrWorkflowExists if the id
	// is already taken.
	Create(ctx context.Context, workflow *types.Workflow) (*Record, error)

	// Get retrieves a workflow by id. Returns ErrWorkflowNotFound if
	// not found.
	Get(ctx context.Context, id string) (*Record, error)

	// Update replaces an existing workflow's definition. Returns
	// ErrWorkflowNotFound if not found.
	Update(ctx context.Context, workflow *types.Workflow) (*Record, error)

	// Delete removes a workflow. Returns ErrWorkflowNotFound if not
	// found.
	Delete(ctx context.Context, id string) error

	// List returns all workflows matching opts.
	List(ctx context.Context, opts *ListOptions) ([]*Record, error)

	// Close releases any resources.
	Close() error
}
