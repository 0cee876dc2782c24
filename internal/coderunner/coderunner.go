// Package coderunner executes refnodes.CodeNode invocations against one
// of two isolation backends: a local subprocess or a Kubernetes Job.
// It supersedes the teacher's internal/driver package, folding the
// same NDJSON-over-stdout convention into the engine's one-shot
// NodeResult contract instead of a RunStore event stream.
package coderunner

import (
	"context"
	"fmt"
	"time"

	"github.com/flowforge/dagflow/pkg/types"
)

// Spec describes a single code-node invocation.
type Spec struct {
	Command        []string
	Env            map[string]string
	Image          string // non-empty selects the Kubernetes Job backend
	TimeoutSeconds float64
}

// Result is the outcome of running Spec once.
type Result struct {
	ExitCode int
	Logs     []types.LogEntry
}

// Runner executes a single code-node invocation to completion.
type Runner interface {
	Run(ctx context.Context, executionID, nodeID string, spec Spec) (Result, error)
}

func logEntry(level, message string) types.LogEntry {
	return types.LogEntry{Timestamp: time.Now().UTC(), Level: level, Message: message}
}

// Dispatcher picks the Kubernetes backend for specs that name an
// image and the local subprocess backend otherwise, so a single
// refnodes.CodeNode can be registered regardless of which backends are
// configured. k8sRunner may be nil when no Kubernetes backend is
// configured; a Spec.Image with a nil k8sRunner is a configuration
// error surfaced at Run time.
type Dispatcher struct {
	local *LocalRunner
	k8s   Runner
}

// NewDispatcher builds a Dispatcher. k8sRunner may be nil.
func NewDispatcher(local *LocalRunner, k8sRunner Runner) *Dispatcher {
	return &Dispatcher{local: local, k8s: k8sRunner}
}

func (d *Dispatcher) Run(ctx context.Context, executionID, nodeID string, spec Spec) (Result, error) {
	if spec.Image == "" {
		return d.local.Run(ctx, executionID, nodeID, spec)
	}
	if d.k8s == nil {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: image %q requires a Kubernetes backend, none configured", nodeID, spec.Image)
	}
	return d.k8s.Run(ctx, executionID, nodeID, spec)
}
