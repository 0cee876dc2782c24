// Package executor drives DAG execution level by level: partitioning
// each level into sync/async nodes, assembling inputs, applying the
// failure policy, and maintaining the Execution state machine.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowforge/dagflow/internal/artifact"
	"github.com/flowforge/dagflow/internal/dag"
	"github.com/flowforge/dagflow/internal/events"
	"github.com/flowforge/dagflow/internal/execstate"
	"github.com/flowforge/dagflow/internal/logging"
	"github.com/flowforge/dagflow/internal/metrics"
	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/internal/wfcontext"
	"github.com/flowforge/dagflow/pkg/types"
)

const defaultMaxWorkers = 4

// nowFunc is overridden in tests that need deterministic timestamps.
var nowFunc = time.Now

// Executor is the heart of the engine: it owns a bounded worker pool,
// a StateStore, a Logger, and the Registry used to construct Node
// instances from a Workflow's NodeSpecs.
type Executor struct {
	maxWorkers int
	store      execstate.StateStore
	logger     *logging.Logger
	registry   *node.Registry
	tracer     trace.Tracer
	bus        *events.Bus

	artifacts         *artifact.Service
	artifactThreshold int
}

// Config configures an Executor.
type Config struct {
	MaxWorkers int
}

// DefaultConfig returns the spec's default maxWorkers of 4.
func DefaultConfig() *Config {
	return &Config{MaxWorkers: defaultMaxWorkers}
}

// New builds an Executor. store and logger may be nil: a nil store
// means no persistence, a nil logger builds one over slog.Default.
func New(cfg *Config, store execstate.StateStore, logger *logging.Logger, registry *node.Registry) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	if logger == nil {
		logger = logging.New(logging.LevelInfo, store, slog.Default())
	}
	return &Executor{
		maxWorkers: maxWorkers,
		store:      store,
		logger:     logger,
		registry:   registry,
		tracer:     otel.Tracer("github.com/flowforge/dagflow/internal/executor"),
	}
}

// SetEventBus wires an events.Bus used to publish progress events as
// the workflow runs, for internal/api's SSE endpoint. Optional: the
// zero value (nil) disables publishing, leaving the StateStore as
// the only observable record.
func (e *Executor) SetEventBus(bus *events.Bus) {
	e.bus = bus
}

func (e *Executor) publish(evt *events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(evt)
}

// SetArtifactService wires an artifact.Service used to offload node
// outputs larger than thresholdBytes to object storage, replacing
// them in the shared Context with a small artifact.Ref. Optional: a
// nil service (the default) leaves every output inline.
func (e *Executor) SetArtifactService(svc *artifact.Service, thresholdBytes int) {
	e.artifacts = svc
	e.artifactThreshold = thresholdBytes
}

// levelResult is what a single node invocation produces, carried back
// through either the inline sync path or the async worker pool.
type levelResult struct {
	nodeID    string
	result    types.NodeResult
	spec      *types.NodeSpec
	startedAt time.Time
}

// Execute runs workflow to completion (or failure) and returns the
// final Execution record. The error return is reserved for conditions
// that prevent even producing a record (e.g. a nil workflow); run
// failures are reported through the returned Execution's own Status.
func (e *Executor) Execute(ctx context.Context, workflow *types.Workflow, initialContext map[string]interface{}) (*types.Execution, error) {
	if workflow == nil {
		return nil, fmt.Errorf("executor: workflow is nil")
	}
	exec := types.NewExecution(uuid.NewString(), workflow.ID, cloneMap(initialContext))
	return e.run(ctx, workflow, exec)
}

// ExecuteAsync creates and persists a pending Execution synchronously,
// then runs it to completion on a background goroutine, returning the
// new Execution's id immediately. This is what internal/api's run
// submission endpoint uses: the caller observes progress through the
// StateStore (GetExecution/events) rather than blocking on the run.
func (e *Executor) ExecuteAsync(ctx context.Context, workflow *types.Workflow, initialContext map[string]interface{}) (string, error) {
	if workflow == nil {
		return "", fmt.Errorf("executor: workflow is nil")
	}
	exec := types.NewExecution(uuid.NewString(), workflow.ID, cloneMap(initialContext))
	e.persist(ctx, exec)
	go e.run(context.Background(), workflow, exec)
	return exec.ID, nil
}

func (e *Executor) run(ctx context.Context, workflow *types.Workflow, exec *types.Execution) (*types.Execution, error) {
	ctx, span := e.tracer.Start(ctx, "executor.Execute", trace.WithAttributes(
		attribute.String("workflow.id", workflow.ID),
	))
	defer span.End()

	span.SetAttributes(attribute.String("execution.id", exec.ID))
	e.persist(ctx, exec)

	graph := dag.Build(workflow)
	if errs := graph.Validate(); len(errs) > 0 {
		e.failExecution(ctx, exec, fmt.Sprintf("invalid workflow: %s", joinErrs(errs)))
		span.SetStatus(codes.Error, "invalid workflow")
		return exec, nil
	}

	if err := exec.Start(nowFunc()); err != nil {
		return exec, err
	}
	e.persist(ctx, exec)
	if e.store != nil {
		_ = e.store.AddToRunning(ctx, exec.ID)
	}
	e.logger.Info(ctx, "workflow execution started", map[string]interface{}{"workflowId": workflow.ID}, exec.ID, "")
	e.publish(&events.Event{ExecutionID: exec.ID, Type: "status", Status: string(exec.Status)})
	metrics.ExecutionsActive.Inc()
	defer metrics.ExecutionsActive.Dec()

	wctx := wfcontext.New(exec.Context)
	completed := map[string]struct{}{}
	failed := map[string]struct{}{}
	fatal := map[string]struct{}{}
	nodeOutputs := map[string]map[string]interface{}{}

	nodes, err := e.buildNodes(workflow)
	if err != nil {
		e.failExecution(ctx, exec, err.Error())
		return exec, nil
	}

	for _, group := range graph.GetParallelGroups() {
		if e.cancelledSince(ctx, exec.ID) {
			break
		}

		runnable := make([]string, 0, len(group.Nodes))
		for _, id := range group.Nodes {
			if unreachable(graph, id, fatal) {
				fatal[id] = struct{}{}
				continue
			}
			runnable = append(runnable, id)
		}

		syncIDs, asyncIDs := partitionByMode(workflow, runnable)

		for _, id := range syncIDs {
			res := e.runOne(ctx, workflow, nodes, id, wctx, nodeOutputs, graph, exec.ID)
			e.applyResult(ctx, exec, workflow, res, wctx, completed, failed, fatal, nodeOutputs)
		}

		results := e.runAsync(ctx, workflow, nodes, asyncIDs, wctx, nodeOutputs, graph, exec.ID)
		for _, res := range results {
			e.applyResult(ctx, exec, workflow, res, wctx, completed, failed, fatal, nodeOutputs)
		}

		if e.cancelledSince(ctx, exec.ID) {
			break
		}
		exec.Context = wctx.Data()
		e.persist(ctx, exec)

		if len(fatal) > 0 {
			ids := make([]string, 0, len(fatal))
			for id := range fatal {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			e.failExecution(ctx, exec, fmt.Sprintf("Some nodes failed: %s", joinErrs(ids)))
			span.SetStatus(codes.Error, "node failure")
			return exec, nil
		}
	}

	if e.cancelledSince(ctx, exec.ID) {
		return e.refresh(ctx, exec), nil
	}

	exec.Context = wctx.Data()
	if err := exec.Complete(nowFunc()); err != nil {
		return exec, err
	}
	e.logger.Info(ctx, "workflow execution completed", nil, exec.ID, "")
	e.persist(ctx, exec)
	if e.store != nil {
		_ = e.store.RemoveFromRunning(ctx, exec.ID)
		_ = e.store.AppendHistory(ctx, workflow.ID, exec)
	}
	e.publish(&events.Event{ExecutionID: exec.ID, Type: "complete", Status: string(exec.Status)})
	recordOutcome(exec)
	return exec, nil
}

func (e *Executor) buildNodes(workflow *types.Workflow) (map[string]node.Node, error) {
	nodes := make(map[string]node.Node, len(workflow.Nodes))
	if e.registry == nil {
		return nodes, nil
	}
	for id, spec := range workflow.Nodes {
		specCopy := spec
		n, err := e.registry.Create(&specCopy)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", id, err)
		}
		nodes[id] = n
	}
	return nodes, nil
}

// runOne executes a single node inline and returns its levelResult.
func (e *Executor) runOne(ctx context.Context, workflow *types.Workflow, nodes map[string]node.Node, id string, wctx *wfcontext.Context, nodeOutputs map[string]map[string]interface{}, graph *dag.Graph, executionID string) levelResult {
	started := nowFunc()
	spec := specFor(workflow, id)
	n, ok := nodes[id]
	if !ok {
		return levelResult{nodeID: id, spec: spec, startedAt: started, result: types.NodeResult{Success: false, Error: fmt.Sprintf("node %s has no implementation", id)}}
	}

	ctx, span := e.tracer.Start(ctx, "executor.node", trace.WithAttributes(
		attribute.String("node.id", id),
		attribute.String("node.type", spec.Type),
	))
	defer span.End()

	input := assembleInput(workflow, wctx, nodeOutputs, id)
	renderedConfig, ok2 := wctx.ProcessTemplates(spec.Config).(map[string]interface{})
	if !ok2 {
		renderedConfig = spec.Config
	}
	// "config" is a reserved input key: node implementations read their
	// own (template-rendered) config from here rather than the static
	// value captured at construction time, since the shared Context
	// keeps evolving between levels.
	input["config"] = renderedConfig
	input["executionId"] = executionID

	snapshot := wctx.Snapshot()
	result := invoke(ctx, n, snapshot, input)
	if result.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, result.Error)
	}
	return levelResult{nodeID: id, spec: spec, startedAt: started, result: result}
}

// runAsync submits ids to the bounded worker pool and blocks until all
// resolve (the level barrier described in spec.md §5).
func (e *Executor) runAsync(ctx context.Context, workflow *types.Workflow, nodes map[string]node.Node, ids []string, wctx *wfcontext.Context, nodeOutputs map[string]map[string]interface{}, graph *dag.Graph, executionID string) []levelResult {
	if len(ids) == 0 {
		return nil
	}

	sem := make(chan struct{}, e.maxWorkers)
	var wg sync.WaitGroup
	results := make([]levelResult, len(ids))

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.runOne(ctx, workflow, nodes, id, wctx, nodeOutputs, graph, executionID)
		}(i, id)
	}
	wg.Wait()
	return results
}

// applyResult implements the failure policy (spec.md §4.2.2) and
// publishes the node's output into the shared context on success.
func (e *Executor) applyResult(ctx context.Context, exec *types.Execution, workflow *types.Workflow, res levelResult, wctx *wfcontext.Context, completed, failed, fatal map[string]struct{}, nodeOutputs map[string]map[string]interface{}) {
	id := res.nodeID
	result := res.result

	nodeType := "unknown"
	if res.spec != nil {
		nodeType = res.spec.Type
	}
	metrics.NodeDuration.WithLabelValues(nodeType).Observe(time.Since(res.startedAt).Seconds())

	logs := make([]types.LogEntry, len(result.Logs))
	copy(logs, result.Logs)
	exec.Logs[id] = append(exec.Logs[id], logs...)
	for _, entry := range logs {
		e.logger.Log(ctx, logging.Level(entry.Level), entry.Message, entry.Data, exec.ID, id)
		e.publish(&events.Event{ExecutionID: exec.ID, NodeID: id, Type: "log", Message: entry.Message, Data: entry.Data})
	}

	if result.Success {
		metrics.NodesTotal.WithLabelValues("completed").Inc()
		completed[id] = struct{}{}
		data, _ := result.Data.(map[string]interface{})
		if data == nil && result.Data != nil {
			data = map[string]interface{}{"value": result.Data}
		}
		if data == nil {
			data = map[string]interface{}{}
		}
		data = e.offloadIfLarge(ctx, exec.ID, id, data)
		nodeOutputs[id] = data
		wctx.Set(fmt.Sprintf("nodes.%s.output", id), data)
		e.logger.Debug(ctx, "node completed", map[string]interface{}{"nodeId": id}, exec.ID, id)
		e.publish(&events.Event{ExecutionID: exec.ID, NodeID: id, Type: "status", Status: "completed"})
		return
	}

	metrics.NodesTotal.WithLabelValues("failed").Inc()
	failed[id] = struct{}{}
	e.logger.Error(ctx, fmt.Sprintf("node %s failed: %s", id, result.Error), map[string]interface{}{"nodeId": id}, exec.ID, id)
	e.publish(&events.Event{ExecutionID: exec.ID, NodeID: id, Type: "status", Status: "failed", Message: result.Error})

	stop := true
	if res.spec != nil {
		stop = res.spec.StopWorkflowOnFail()
	}
	if stop {
		fatal[id] = struct{}{}
		return
	}
	completed[id] = struct{}{}
}

func (e *Executor) cancelledSince(ctx context.Context, execID string) bool {
	if e.store == nil {
		return false
	}
	stored, err := e.store.GetExecution(ctx, execID)
	if err != nil {
		return false
	}
	return stored.IsTerminal() && stored.Error == types.ErrCancelled
}

func (e *Executor) refresh(ctx context.Context, exec *types.Execution) *types.Execution {
	if e.store == nil {
		return exec
	}
	stored, err := e.store.GetExecution(ctx, exec.ID)
	if err != nil {
		return exec
	}
	return stored
}

func (e *Executor) failExecution(ctx context.Context, exec *types.Execution, message string) {
	_ = exec.Fail(nowFunc(), message)
	e.logger.Error(ctx, message, nil, exec.ID, "")
	e.persist(ctx, exec)
	if e.store != nil {
		_ = e.store.RemoveFromRunning(ctx, exec.ID)
		_ = e.store.AppendHistory(ctx, exec.WorkflowID, exec)
	}
	e.publish(&events.Event{ExecutionID: exec.ID, Type: "complete", Status: string(exec.Status), Message: message})
	recordOutcome(exec)
}

// recordOutcome reports an execution's final status and duration (when
// it actually started) to Prometheus. A workflow rejected at validate
// time never starts, so its duration is skipped rather than reported
// as zero.
func recordOutcome(exec *types.Execution) {
	metrics.ExecutionsTotal.WithLabelValues(string(exec.Status)).Inc()
	if d, ok := exec.Duration(); ok {
		metrics.ExecutionDuration.WithLabelValues(string(exec.Status)).Observe(d.Seconds())
	}
}

func (e *Executor) persist(ctx context.Context, exec *types.Execution) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveExecution(ctx, exec); err != nil {
		e.logger.Warning(ctx, "persist execution failed", map[string]interface{}{"error": err.Error()}, exec.ID, "")
	}
}

// offloadIfLarge replaces data with an artifact.Ref when its marshaled
// size exceeds e.artifactThreshold, keeping large node outputs out of
// the Context/StateStore and leaving a small pointer in their place.
// A nil artifact Service or non-positive threshold disables this.
func (e *Executor) offloadIfLarge(ctx context.Context, executionID, nodeID string, data map[string]interface{}) map[string]interface{} {
	if e.artifacts == nil || e.artifactThreshold <= 0 {
		return data
	}
	encoded, err := json.Marshal(data)
	if err != nil || len(encoded) <= e.artifactThreshold {
		return data
	}
	ref, err := e.artifacts.Store(ctx, executionID, nodeID, "output.json", bytes.NewReader(encoded), "application/json")
	if err != nil {
		e.logger.Warning(ctx, "artifact offload failed", map[string]interface{}{"error": err.Error()}, executionID, nodeID)
		return data
	}
	e.logger.Debug(ctx, "node output offloaded to artifact storage", map[string]interface{}{"uri": ref.URI, "size": ref.Size}, executionID, nodeID)
	return map[string]interface{}{"artifact": ref}
}

// invoke runs a node's Execute, converting a panic into the synthetic
// failed NodeResult described in spec.md §4.2.2.
func invoke(ctx context.Context, n node.Node, snapshot, input map[string]interface{}) (result types.NodeResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.NodeResult{
				Success: false,
				Error:   fmt.Sprintf("panic: %v", r),
				Logs:    []types.LogEntry{{Level: "error", Message: fmt.Sprintf("node panicked: %v", r)}},
			}
		}
	}()
	return n.Execute(ctx, snapshot, input)
}

func partitionByMode(workflow *types.Workflow, ids []string) (sync, async []string) {
	for _, id := range ids {
		spec := specFor(workflow, id)
		if spec != nil && spec.Mode() == types.ExecutionModeAsync {
			async = append(async, id)
		} else {
			sync = append(sync, id)
		}
	}
	return sync, async
}

// unreachable reports whether id has a dependency in fatal — per
// spec.md §4.2.2, dependents of a fatally-failed node never satisfy
// canExecute. In practice the executor already halts the run on the
// level where a fatal failure occurs, so this only matters if a future
// caller drives levels without that eager halt.
func unreachable(graph *dag.Graph, id string, fatal map[string]struct{}) bool {
	for _, dep := range graph.Deps(id) {
		if _, ok := fatal[dep]; ok {
			return true
		}
	}
	return false
}

func specFor(workflow *types.Workflow, id string) *types.NodeSpec {
	if spec, ok := workflow.Nodes[id]; ok {
		return &spec
	}
	return nil
}

// assembleInput implements spec.md §4.2.1: input keyed by upstream node
// id (whole published data, or the fromOutput slot within it when that
// slot exists), additionally keyed by each connection's toInput slot
// (last connection wins on a slot collision), overridden by any
// explicit nodes.<id>.input placed in the context by the caller.
func assembleInput(workflow *types.Workflow, wctx *wfcontext.Context, nodeOutputs map[string]map[string]interface{}, nodeID string) map[string]interface{} {
	input := map[string]interface{}{}

	for _, c := range workflow.Connections {
		if c.To != nodeID {
			continue
		}
		data, ok := nodeOutputs[c.From]
		if !ok {
			continue
		}

		var value interface{} = data
		if slot := c.FromOutputOrDefault(); slot != "" {
			if v, ok := data[slot]; ok {
				value = v
			}
		}

		input[c.From] = value
		input[c.ToInputOrDefault()] = value
	}

	if override, ok := wctx.Get(fmt.Sprintf("nodes.%s.input", nodeID)); ok {
		if m, ok := override.(map[string]interface{}); ok {
			for k, v := range m {
				input[k] = v
			}
		}
	}

	return input
}

func joinErrs(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += ", "
		}
		out += e
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
