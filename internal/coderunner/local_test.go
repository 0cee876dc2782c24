package coderunner

import (
	"context"
	"testing"
)

func TestLocalRunnerSuccess(t *testing.T) {
	r := NewLocalRunner(nil, "")
	result, err := r.Run(context.Background(), "exec-1", "node-1", Spec{
		Command: []string{"sh", "-c", "echo hello"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
	if len(result.Logs) != 1 || result.Logs[0].Message != "hello" {
		t.Fatalf("unexpected logs: %+v", result.Logs)
	}
}

func TestLocalRunnerNonZeroExit(t *testing.T) {
	r := NewLocalRunner(nil, "")
	result, err := r.Run(context.Background(), "exec-1", "node-1", Spec{
		Command: []string{"sh", "-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestLocalRunnerEmptyCommand(t *testing.T) {
	r := NewLocalRunner(nil, "")
	_, err := r.Run(context.Background(), "exec-1", "node-1", Spec{})
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestLocalRunnerStderrBecomesErrorLog(t *testing.T) {
	r := NewLocalRunner(nil, "")
	result, err := r.Run(context.Background(), "exec-1", "node-1", Spec{
		Command: []string{"sh", "-c", "echo oops 1>&2"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Logs) != 1 || result.Logs[0].Level != "error" {
		t.Fatalf("expected a single error-level log, got %+v", result.Logs)
	}
}

func TestLocalRunnerParsesNDJSON(t *testing.T) {
	r := NewLocalRunner(nil, "")
	result, err := r.Run(context.Background(), "exec-1", "node-1", Spec{
		Command: []string{"sh", "-c", `echo '{"level":"warning","message":"careful"}'`},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Logs) != 1 || result.Logs[0].Level != "warning" || result.Logs[0].Message != "careful" {
		t.Fatalf("unexpected logs: %+v", result.Logs)
	}
}

func TestLocalRunnerTimeout(t *testing.T) {
	r := NewLocalRunner(nil, "")
	result, err := r.Run(context.Background(), "exec-1", "node-1", Spec{
		Command:        []string{"sh", "-c", "sleep 5"},
		TimeoutSeconds: 0.1,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if result.ExitCode != 124 {
		t.Fatalf("expected exit code 124 for timeout, got %d", result.ExitCode)
	}
}
