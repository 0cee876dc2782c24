// Package types defines the wire-level data model shared across the
// engine: workflows, nodes, connections, and execution records.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ExecutionMode selects whether a node runs inline on the executor or is
// dispatched to the worker pool.
type ExecutionMode string

const (
	ExecutionModeSync  ExecutionMode = "sync"
	ExecutionModeAsync ExecutionMode = "async"
)

// NodeSpec is a single node definition within a Workflow.
type NodeSpec struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// StopWorkflowOnFail returns the node's stopWorkflowOnFail config value,
// defaulting to true when absent or of the wrong type.
func (n *NodeSpec) StopWorkflowOnFail() bool {
	if n.Config == nil {
		return true
	}
	if v, ok := n.Config["stopWorkflowOnFail"]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return true
}

// Mode returns the node's executionMode config value, defaulting to sync.
func (n NodeSpec) Mode() ExecutionMode {
	if n.Config != nil {
		if v, ok := n.Config["executionMode"]; ok {
			if s, ok := v.(string); ok {
				switch ExecutionMode(s) {
				case ExecutionModeSync, ExecutionModeAsync:
					return ExecutionMode(s)
				}
			}
		}
	}
	return ExecutionModeSync
}

// ValidateMode reports a ConfigurationError-shaped error if executionMode
// is set to something other than "sync" or "async".
func (n *NodeSpec) ValidateMode() error {
	if n.Config == nil {
		return nil
	}
	v, ok := n.Config["executionMode"]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("node %s: executionMode must be a string", n.ID)
	}
	switch ExecutionMode(s) {
	case ExecutionModeSync, ExecutionModeAsync, "":
		return nil
	default:
		return fmt.Errorf("node %s: invalid executionMode %q", n.ID, s)
	}
}

// Connection is a directed edge from one node's output slot to another's
// input slot.
type Connection struct {
	From       string `json:"from"`
	To         string `json:"to"`
	FromOutput string `json:"fromOutput,omitempty"`
	ToInput    string `json:"toInput,omitempty"`
}

// FromOutputOrDefault returns FromOutput, defaulting to "output".
func (c *Connection) FromOutputOrDefault() string {
	if c.FromOutput == "" {
		return "output"
	}
	return c.FromOutput
}

// ToInputOrDefault returns ToInput, defaulting to "input".
func (c *Connection) ToInputOrDefault() string {
	if c.ToInput == "" {
		return "input"
	}
	return c.ToInput
}

// Workflow is an immutable (during execution) definition of a DAG of
// nodes and the connections between them. Nodes is keyed by node id for
// O(1) lookups throughout the dag/executor packages, but the wire format
// (spec.md §6) carries nodes as a JSON array, so Workflow implements its
// own MarshalJSON/UnmarshalJSON to convert between the two.
type Workflow struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Nodes       map[string]NodeSpec `json:"-"`
	Connections []Connection        `json:"connections,omitempty"`

	// duplicateNodeIDs records ids that appeared more than once in the
	// array this Workflow was decoded from. A map can't represent the
	// duplicate itself, so UnmarshalJSON keeps the first occurrence and
	// surfaces the collision here for Validate to reject.
	duplicateNodeIDs []string
}

// workflowJSON mirrors Workflow for the wire format, where nodes is an
// array of node definitions rather than an object keyed by id.
type workflowJSON struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Nodes       []NodeSpec   `json:"nodes"`
	Connections []Connection `json:"connections,omitempty"`
}

// MarshalJSON renders Workflow.Nodes as an array ordered by node id, so
// the wire output is deterministic despite the underlying map. Defined
// on a value receiver (unlike UnmarshalJSON) so it still applies when a
// Workflow is embedded by value in a larger struct, as SubmitRunRequest
// does, and json.Marshal is handed that struct rather than a pointer.
func (w Workflow) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(w.Nodes))
	for id := range w.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]NodeSpec, 0, len(w.Nodes))
	for _, id := range ids {
		nodes = append(nodes, w.Nodes[id])
	}

	return json.Marshal(workflowJSON{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Nodes:       nodes,
		Connections: w.Connections,
	})
}

// UnmarshalJSON parses the array wire form of nodes into the internal
// by-id map. A duplicate id keeps its first occurrence in the map and is
// recorded in duplicateNodeIDs rather than rejected outright here, so
// Validate is the single place that turns it into a ValidationError.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var in workflowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	nodes := make(map[string]NodeSpec, len(in.Nodes))
	var duplicates []string
	for _, n := range in.Nodes {
		if _, exists := nodes[n.ID]; exists {
			duplicates = append(duplicates, n.ID)
			continue
		}
		nodes[n.ID] = n
	}

	w.ID = in.ID
	w.Name = in.Name
	w.Description = in.Description
	w.Nodes = nodes
	w.Connections = in.Connections
	w.duplicateNodeIDs = duplicates
	return nil
}

// Validate checks the structural invariants spec.md requires before a
// Workflow can be handed to the executor: non-empty id/name, non-empty
// node ids, no duplicate node ids, connection endpoints that reference
// existing nodes, and well-formed executionMode values.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow id is required")
	}
	if w.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(w.duplicateNodeIDs) > 0 {
		return fmt.Errorf("workflow %s: duplicate node id %q", w.ID, w.duplicateNodeIDs[0])
	}
	for id, n := range w.Nodes {
		if id == "" {
			return fmt.Errorf("workflow %s: node id must not be empty", w.ID)
		}
		if n.ID != "" && n.ID != id {
			return fmt.Errorf("workflow %s: node key %q does not match node id %q", w.ID, id, n.ID)
		}
		if err := n.ValidateMode(); err != nil {
			return fmt.Errorf("workflow %s: %w", w.ID, err)
		}
	}
	for _, c := range w.Connections {
		if _, ok := w.Nodes[c.From]; !ok {
			return fmt.Errorf("workflow %s: connection references unknown node %q", w.ID, c.From)
		}
		if _, ok := w.Nodes[c.To]; !ok {
			return fmt.Errorf("workflow %s: connection references unknown node %q", w.ID, c.To)
		}
	}
	return nil
}
