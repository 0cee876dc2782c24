package coderunner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowforge/dagflow/internal/k8s"
	"github.com/flowforge/dagflow/pkg/types"
)

// K8sRunner executes code nodes as Kubernetes Jobs, selected when
// Spec.Image is set. Grounded on the teacher's internal/driver/k8s.go
// and internal/k8s/{client,job,watch}.go.
type K8sRunner struct {
	client     *k8s.Client
	jobBuilder *k8s.JobBuilder
}

// NewK8sRunner creates a Job-backed Runner against the given client.
func NewK8sRunner(client *k8s.Client, jobCfg *k8s.JobConfig) *K8sRunner {
	if jobCfg == nil {
		jobCfg = k8s.DefaultJobConfig()
	}
	jobCfg.Namespace = client.Namespace()
	return &K8sRunner{client: client, jobBuilder: k8s.NewJobBuilder(jobCfg)}
}

func (r *K8sRunner) Run(ctx context.Context, executionID, nodeID string, spec Spec) (Result, error) {
	jobSpec := &k8s.JobSpec{
		NodeID:  nodeID,
		Image:   spec.Image,
		Command: spec.Command,
		Env:     spec.Env,
	}
	if spec.TimeoutSeconds > 0 {
		jobSpec.Timeout = time.Duration(spec.TimeoutSeconds * float64(time.Second))
	}

	job, err := r.jobBuilder.BuildJob(executionID, nodeID, jobSpec)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: build job: %w", nodeID, err)
	}

	createdJob, err := r.client.CreateJob(ctx, job)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("code node %s: create job: %w", nodeID, err)
	}
	jobName := createdJob.Name

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()

	var logLines []string
	exitCode := 0
	var runErr error
	done := make(chan struct{})

	watcher := k8s.NewJobWatcher(r.client, jobName, executionID, nodeID, &k8s.WatchConfig{
		OnLog: func(line string, isStderr bool) {
			logLines = append(logLines, line)
		},
		OnComplete: func(code int, err error) {
			exitCode = code
			runErr = err
			close(done)
			watchCancel()
		},
	})

	go watcher.Watch(watchCtx)

	select {
	case <-done:
	case <-ctx.Done():
		_ = r.client.DeleteJob(context.Background(), jobName)
		return Result{ExitCode: 130}, ctx.Err()
	}

	return Result{ExitCode: exitCode, Logs: renderK8sLogs(executionID, nodeID, logLines)}, runErr
}

func renderK8sLogs(executionID, nodeID string, lines []string) []types.LogEntry {
	out := make([]types.LogEntry, 0, len(lines))
	for _, line := range lines {
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
