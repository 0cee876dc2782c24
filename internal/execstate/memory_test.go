package execstate

import (
	"context"
	"testing"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

func TestSaveAndGetExecution(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	exec := types.NewExecution("exec-1", "wf-1", nil)

	if err := store.SaveExecution(ctx, exec); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetExecution(ctx, "exec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "exec-1" || got.WorkflowID != "wf-1" {
		t.Errorf("got = %+v", got)
	}
}

func TestGetExecutionNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.GetExecution(context.Background(), "missing"); err != ErrExecutionNotFound {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestRunningSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.AddToRunning(ctx, "a")
	store.AddToRunning(ctx, "b")

	running, _ := store.ListRunning(ctx)
	if len(running) != 2 {
		t.Errorf("running = %v, want 2 entries", running)
	}

	store.RemoveFromRunning(ctx, "a")
	running, _ = store.ListRunning(ctx)
	if len(running) != 1 || running[0] != "b" {
		t.Errorf("running = %v, want [b]", running)
	}
}

func TestHistoryCappedAtLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < HistoryLimit+10; i++ {
		exec := types.NewExecution("e", "wf", nil)
		store.AppendHistory(ctx, "wf", exec)
	}

	hist, err := store.ListHistory(ctx, "wf")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != HistoryLimit {
		t.Errorf("history length = %d, want %d", len(hist), HistoryLimit)
	}
}

func TestHistoryMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := types.NewExecution("first", "wf", nil)
	second := types.NewExecution("second", "wf", nil)
	store.AppendHistory(ctx, "wf", first)
	store.AppendHistory(ctx, "wf", second)

	hist, _ := store.ListHistory(ctx, "wf")
	if hist[0].ID != "second" {
		t.Errorf("hist[0] = %s, want most recent first", hist[0].ID)
	}
}

func TestCancelRunningExecution(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	exec := types.NewExecution("exec-2", "wf", nil)
	exec.Start(time.Now())
	store.SaveExecution(ctx, exec)

	cancelled, err := store.Cancel(ctx, "exec-2")
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != types.StatusFailed || cancelled.Error != types.ErrCancelled {
		t.Errorf("cancelled = %+v", cancelled)
	}
}

func TestCancelNotFound(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Cancel(context.Background(), "missing"); err != ErrExecutionNotFound {
		t.Errorf("err = %v, want ErrExecutionNotFound", err)
	}
}

func TestExecutionExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Now()
	store.now = func() time.Time { return base }

	exec := types.NewExecution("exec-3", "wf", nil)
	store.SaveExecution(ctx, exec)

	store.now = func() time.Time { return base.Add(ExecutionTTL + time.Second) }
	if _, err := store.GetExecution(ctx, "exec-3"); err != ErrExecutionNotFound {
		t.Errorf("expected expiry, got err = %v", err)
	}
}
