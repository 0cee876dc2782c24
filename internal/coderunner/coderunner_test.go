package coderunner

import (
	"context"
	"testing"
)

type fakeRunner struct {
	result Result
	err    error
	ran    bool
}

func (f *fakeRunner) Run(ctx context.Context, executionID, nodeID string, spec Spec) (Result, error) {
	f.ran = true
	return f.result, f.err
}

func TestDispatcherUsesLocalWhenNoImage(t *testing.T) {
	local := NewLocalRunner(nil, "")
	k8s := &fakeRunner{}
	d := NewDispatcher(local, k8s)

	result, err := d.Run(context.Background(), "exec-1", "node-1", Spec{Command: []string{"sh", "-c", "echo hi"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if k8s.ran {
		t.Fatal("expected local runner to be used, not the k8s runner")
	}
}

func TestDispatcherUsesK8sWhenImageSet(t *testing.T) {
	local := NewLocalRunner(nil, "")
	k8s := &fakeRunner{result: Result{ExitCode: 0}}
	d := NewDispatcher(local, k8s)

	_, err := d.Run(context.Background(), "exec-1", "node-1", Spec{Image: "alpine", Command: []string{"echo"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !k8s.ran {
		t.Fatal("expected k8s runner to be used when Image is set")
	}
}

func TestDispatcherErrorsWithoutK8sBackend(t *testing.T) {
	local := NewLocalRunner(nil, "")
	d := NewDispatcher(local, nil)

	_, err := d.Run(context.Background(), "exec-1", "node-1", Spec{Image: "alpine", Command: []string{"echo"}})
	if err == nil {
		t.Fatal("expected error when Image is set but no k8s backend is configured")
	}
}
