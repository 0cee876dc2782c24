package coderunner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

// LocalRunner executes code nodes as local subprocesses, parsing NDJSON
// from stdout into structured log entries and treating stderr lines as
// error-level logs. Grounded on the teacher's
// internal/driver/subprocess.go.
type LocalRunner struct {
	envPassthrough map[string]string
	cwd            string
}

// NewLocalRunner creates a subprocess-backed Runner. envPassthrough is
// merged into every subprocess's environment ahead of Spec.Env.
func NewLocalRunner(envPassthrough map[string]string, cwd string) *LocalRunner {
	return &LocalRunner{envPassthrough: envPassthrough, cwd: cwd}
}

func (r *LocalRunner) Run(ctx context.Context, executionID, nodeID string, spec Spec) (Result, error) {
	if len(spec.Command) == 0 {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: empty command", nodeID)
	}

	mergedEnv := os.Environ()
	for k, v := range r.envPassthrough {
		mergedEnv = append(mergedEnv, fmt.Sprintf("%s=%s", k, v))
	}
	for k, v := range spec.Env {
		mergedEnv = append(mergedEnv, fmt.Sprintf("%s=%s", k, v))
	}
	mergedEnv = append(mergedEnv,
		fmt.Sprintf("EXECUTION_ID=%s", executionID),
		fmt.Sprintf("NODE_ID=%s", nodeID),
	)

	execCtx := ctx
	var cancel context.CancelFunc
	if spec.TimeoutSeconds > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(spec.TimeoutSeconds*float64(time.Second)))
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, spec.Command[0], spec.Command[1:]...)
	cmd.Env = mergedEnv
	if r.cwd != "" {
		cmd.Dir = r.cwd
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: stdout pipe: %w", nodeID, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: stderr pipe: %w", nodeID, err)
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: start: %w", nodeID, err)
	}

	var mu sync.Mutex
	var collected []string
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			mu.Lock()
			collected = append(collected, "stdout:"+line)
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			mu.Lock()
			collected = append(collected, "stderr:"+line)
			mu.Unlock()
		}
	}()

	wg.Wait()

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return Result{ExitCode: 124, Logs: r.render(executionID, nodeID, collected)}, fmt.Errorf("code node %s: timed out after %.1fs", nodeID, spec.TimeoutSeconds)
		} else if execCtx.Err() == context.Canceled {
			return Result{ExitCode: 130, Logs: r.render(executionID, nodeID, collected)}, context.Canceled
		} else if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	}

	return Result{ExitCode: exitCode, Logs: r.render(executionID, nodeID, collected)}, nil
}

// render converts the raw stdout/stderr lines collected during Run into
// LogEntry values, parsing NDJSON stdout lines where possible.
func (r *LocalRunner) render(executionID, nodeID string, lines []string) []types.LogEntry {
	out := make([]types.LogEntry, 0, len(lines))
	for _, raw := range lines {
		stream, line, _ := strings.Cut(raw, ":")
		if stream == "stderr" {
			out = append(out, withIDs(logEntry("error", line), executionID, nodeID))
			continue
		}

		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			out = append(out, withIDs(logEntry("info", line), executionID, nodeID))
			continue
		}

		level, _ := obj["level"].(string)
		if level == "" {
			level = "info"
		}
		message, _ := obj["message"].(string)
		if message == "" {
			message = line
		}
		entry := logEntry(level, message)
		entry.Data = obj
		out = append(out, withIDs(entry, executionID, nodeID))
	}
	return out
}

func withIDs(e types.LogEntry, executionID, nodeID string) types.LogEntry {
	e.ExecutionID = executionID
	e.NodeID = nodeID
	return e
}
