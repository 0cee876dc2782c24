package refnodes

import (
	"context"
	"fmt"
	"testing"

	"github.com/flowforge/dagflow/internal/coderunner"
	"github.com/flowforge/dagflow/pkg/types"
)

type fakeRunner struct {
	result coderunner.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, executionID, nodeID string, spec coderunner.Spec) (coderunner.Result, error) {
	return f.result, f.err
}

func TestCodeNodeSuccess(t *testing.T) {
	factory := NewCodeNodeFactory(&fakeRunner{result: coderunner.Result{ExitCode: 0}})
	n, err := factory(&types.NodeSpec{ID: "n1", Config: map[string]interface{}{
		"command": []interface{}{"echo", "hi"},
	}})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	result := n.Execute(context.Background(), nil, map[string]interface{}{})
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
}

func TestCodeNodeNonZeroExit(t *testing.T) {
	factory := NewCodeNodeFactory(&fakeRunner{result: coderunner.Result{ExitCode: 1}})
	n, _ := factory(&types.NodeSpec{ID: "n1", Config: map[string]interface{}{
		"command": []interface{}{"false"},
	}})

	result := n.Execute(context.Background(), nil, map[string]interface{}{})
	if result.Success {
		t.Fatal("expected failure for non-zero exit code")
	}
}

func TestCodeNodeRunnerError(t *testing.T) {
	factory := NewCodeNodeFactory(&fakeRunner{err: fmt.Errorf("boom")})
	n, _ := factory(&types.NodeSpec{ID: "n1", Config: map[string]interface{}{
		"command": []interface{}{"echo"},
	}})

	result := n.Execute(context.Background(), nil, map[string]interface{}{})
	if result.Success {
		t.Fatal("expected failure when runner returns an error")
	}
}

func TestCodeNodeMissingCommand(t *testing.T) {
	factory := NewCodeNodeFactory(&fakeRunner{})
	n, _ := factory(&types.NodeSpec{ID: "n1"})

	result := n.Execute(context.Background(), nil, map[string]interface{}{})
	if result.Success {
		t.Fatal("expected failure for missing command")
	}
}

func TestCodeNodeValidate(t *testing.T) {
	factory := NewCodeNodeFactory(&fakeRunner{})
	n, _ := factory(&types.NodeSpec{ID: "n1", Config: map[string]interface{}{"command": []interface{}{"echo"}}})
	if !n.Validate() {
		t.Fatal("expected Validate to pass with command set")
	}
	n2, _ := factory(&types.NodeSpec{ID: "n2"})
	if n2.Validate() {
		t.Fatal("expected Validate to fail without command")
	}
}
