package refnodes

import (
	"context"
	"fmt"

	"github.com/flowforge/dagflow/internal/coderunner"
	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/pkg/types"
)

// CodeNode shells out to a subprocess (or, when config carries an
// image, a Kubernetes Job) to run an arbitrary command. Exit code 0 is
// success; non-zero is failure. Grounded on the teacher's
// driver.LocalSubprocessDriver/driver.K8sDriver, now unified behind
// coderunner.Runner.
type CodeNode struct {
	spec   *types.NodeSpec
	runner coderunner.Runner
}

// NewCodeNodeFactory returns a node.Factory bound to runner, for
// registration under type "code".
func NewCodeNodeFactory(runner coderunner.Runner) node.Factory {
	return func(spec *types.NodeSpec) (node.Node, error) {
		return &CodeNode{spec: spec, runner: runner}, nil
	}
}

func (n *CodeNode) Validate() bool {
	cfg := n.spec.Config
	if cfg == nil {
		return false
	}
	cmd, ok := cfg["command"].([]interface{})
	return ok && len(cmd) > 0
}

func (n *CodeNode) Describe() node.Describe {
	return node.Describe{
		Description: "Runs a command as a subprocess or Kubernetes Job and reports its exit code.",
		Category:    "compute",
		InputSchema: map[string]interface{}{
			"command": "[]string",
			"image":   "string (optional, selects the Kubernetes backend)",
			"env":     "map[string]string",
		},
		OutputSchema: map[string]interface{}{
			"exitCode": "number",
		},
	}
}

func (n *CodeNode) Execute(ctx context.Context, _ map[string]interface{}, input map[string]interface{}) types.NodeResult {
	cfg, _ := input["config"].(map[string]interface{})
	if cfg == nil {
		cfg = n.spec.Config
	}

	spec, err := buildSpec(cfg)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("code node: %v", err)}
	}

	executionID, _ := input["executionId"].(string)
	result, err := n.runner.Run(ctx, executionID, n.spec.ID, spec)
	if err != nil {
		return types.NodeResult{
			Success: false,
			Data:    map[string]interface{}{"exitCode": result.ExitCode},
			Logs:    result.Logs,
			Error:   fmt.Sprintf("code node %s: %v", n.spec.ID, err),
		}
	}

	if result.ExitCode != 0 {
		return types.NodeResult{
			Success: false,
			Data:    map[string]interface{}{"exitCode": result.ExitCode},
			Logs:    result.Logs,
			Error:   fmt.Sprintf("code node %s: exit code %d", n.spec.ID, result.ExitCode),
		}
	}

	return types.NodeResult{
		Success: true,
		Data:    map[string]interface{}{"exitCode": result.ExitCode},
		Logs:    result.Logs,
	}
}

func buildSpec(cfg map[string]interface{}) (coderunner.Spec, error) {
	rawCmd, _ := cfg["command"].([]interface{})
	if len(rawCmd) == 0 {
		return coderunner.Spec{}, fmt.Errorf("command is required")
	}
	command := make([]string, 0, len(rawCmd))
	for _, c := range rawCmd {
		s, ok := c.(string)
		if !ok {
			return coderunner.Spec{}, fmt.Errorf("command entries must be strings")
		}
		command = append(command, s)
	}

	env := map[string]string{}
	if rawEnv, ok := cfg["env"].(map[string]interface{}); ok {
		for k, v := range rawEnv {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}

	image, _ := cfg["image"].(string)

	timeout := 0.0
	if ts, ok := cfg["timeoutSeconds"].(float64); ok {
		timeout = ts
	}

	return coderunner.Spec{Command: command, Env: env, Image: image, TimeoutSeconds: timeout}, nil
}
