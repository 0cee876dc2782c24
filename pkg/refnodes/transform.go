package refnodes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/pkg/types"
)

// TransformNode evaluates an expr-lang expression against an
// environment built from the node's input and the run's context
// snapshot. Compiled programs are cached per expression string, the
// same caching shape as the teacher's scheduler.ExprEvaluator.
type TransformNode struct {
	spec *types.NodeSpec

	mu           sync.Mutex
	compiled     *vm.Program
	compiledExpr string
}

// NewTransformNode is a node.Factory for type "transform".
func NewTransformNode(spec *types.NodeSpec) (node.Node, error) {
	return &TransformNode{spec: spec}, nil
}

func (n *TransformNode) expression(cfg map[string]interface{}) string {
	e, _ := cfg["expression"].(string)
	return e
}

func (n *TransformNode) Validate() bool {
	cfg := n.spec.Config
	if cfg == nil {
		return false
	}
	return n.expression(cfg) != ""
}

func (n *TransformNode) Describe() node.Describe {
	return node.Describe{
		Description: "Evaluates an expr-lang expression against input and context, returning the result.",
		Category:    "data",
		InputSchema: map[string]interface{}{
			"expression": "string",
		},
		OutputSchema: map[string]interface{}{
			"result": "any",
		},
	}
}

func (n *TransformNode) Execute(ctx context.Context, contextSnapshot map[string]interface{}, input map[string]interface{}) types.NodeResult {
	cfg, _ := input["config"].(map[string]interface{})
	if cfg == nil {
		cfg = n.spec.Config
	}

	expression := n.expression(cfg)
	if expression == "" {
		return types.NodeResult{Success: false, Error: "transform node: expression is required"}
	}

	env := map[string]interface{}{
		"input":   input,
		"context": contextSnapshot,
	}

	n.mu.Lock()
	prog := n.compiled
	if n.compiledExpr != expression {
		prog = nil
	}
	n.mu.Unlock()

	if prog == nil {
		compiled, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return types.NodeResult{Success: false, Error: fmt.Sprintf("transform node: compile: %v", err)}
		}
		n.mu.Lock()
		n.compiled, n.compiledExpr = compiled, expression
		n.mu.Unlock()
		prog = compiled
	}

	result, err := expr.Run(prog, env)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("transform node: evaluate: %v", err)}
	}

	return types.NodeResult{
		Success: true,
		Data:    result,
		Logs: []types.LogEntry{{
			Timestamp: time.Now().UTC(),
			Level:     "info",
			Message:   "transform evaluated",
		}},
	}
}
