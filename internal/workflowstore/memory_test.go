package workflowstore

import (
	"context"
	"testing"

	"github.com/flowforge/dagflow/pkg/types"
)

func wf(id string) *types.Workflow {
	return &types.Workflow{
		ID:   id,
		Name: "test workflow",
		Nodes: map[string]types.NodeSpec{
			"A": {ID: "A", Name: "A", Type: "http"},
		},
	}
}

func TestMemoryStore_Create(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("creates new workflow", func(t *testing.T) {
		rec, err := store.Create(ctx, wf("wf-1"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if rec.Workflow.ID != "wf-1" {
			t.Errorf("expected id wf-1, got %q", rec.Workflow.ID)
		}
		if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
			t.Error("timestamps should be set")
		}
	})

	t.Run("returns error for duplicate id", func(t *testing.T) {
		if _, err := store.Create(ctx, wf("dup")); err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		if _, err := store.Create(ctx, wf("dup")); err != ErrWorkflowExists {
			t.Errorf("expected ErrWorkflowExists, got %v", err)
		}
	})

	t.Run("rejects an invalid workflow", func(t *testing.T) {
		invalid := &types.Workflow{ID: "", Name: "no id"}
		if _, err := store.Create(ctx, invalid); err == nil {
			t.Error("expected validation error for empty id")
		}
	})
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	if _, err := store.Get(context.Background(), "missing"); err != ErrWorkflowNotFound {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateAndDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if _, err := store.Create(ctx, wf("wf-2")); err != nil {
		t.Fatal(err)
	}

	updated := wf("wf-2")
	updated.Description = "now with a description"
	rec, err := store.Update(ctx, updated)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if rec.Workflow.Description != "now with a description" {
		t.Errorf("update not applied: %+v", rec.Workflow)
	}

	if err := store.Delete(ctx, "wf-2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "wf-2"); err != ErrWorkflowNotFound {
		t.Errorf("expected ErrWorkflowNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_ListPagination(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, wf(id)); err != nil {
			t.Fatal(err)
		}
	}

	out, err := store.List(ctx, &ListOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("expected 2 results with Limit=2, got %d", len(out))
	}
}
