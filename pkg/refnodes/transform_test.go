package refnodes

import (
	"context"
	"testing"

	"github.com/flowforge/dagflow/pkg/types"
)

func TestTransformNodeEvaluatesExpression(t *testing.T) {
	n, err := NewTransformNode(&types.NodeSpec{
		ID:     "n1",
		Type:   "transform",
		Config: map[string]interface{}{"expression": "input.a + input.b"},
	})
	if err != nil {
		t.Fatalf("NewTransformNode: %v", err)
	}

	result := n.Execute(context.Background(), nil, map[string]interface{}{"a": 2, "b": 3})
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Data != 5 {
		t.Fatalf("expected 5, got %v", result.Data)
	}
}

func TestTransformNodeMissingExpression(t *testing.T) {
	n, _ := NewTransformNode(&types.NodeSpec{ID: "n1", Type: "transform"})
	result := n.Execute(context.Background(), nil, map[string]interface{}{})
	if result.Success {
		t.Fatal("expected failure for missing expression")
	}
}

func TestTransformNodeCompileError(t *testing.T) {
	n, _ := NewTransformNode(&types.NodeSpec{
		ID:     "n1",
		Type:   "transform",
		Config: map[string]interface{}{"expression": "input.a +++ "},
	})
	result := n.Execute(context.Background(), nil, map[string]interface{}{"a": 1})
	if result.Success {
		t.Fatal("expected failure for invalid expression")
	}
}

func TestTransformNodeUsesContextSnapshot(t *testing.T) {
	n, _ := NewTransformNode(&types.NodeSpec{
		ID:     "n1",
		Type:   "transform",
		Config: map[string]interface{}{"expression": "context.greeting"},
	})
	result := n.Execute(context.Background(), map[string]interface{}{"greeting": "hi"}, map[string]interface{}{})
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.Data != "hi" {
		t.Fatalf("expected 'hi', got %v", result.Data)
	}
}

func TestTransformNodeValidate(t *testing.T) {
	n, _ := NewTransformNode(&types.NodeSpec{ID: "n1", Config: map[string]interface{}{"expression": "1"}})
	if !n.Validate() {
		t.Fatal("expected Validate to pass with expression set")
	}
	n2, _ := NewTransformNode(&types.NodeSpec{ID: "n2"})
	if n2.Validate() {
		t.Fatal("expected Validate to fail without expression")
	}
}
