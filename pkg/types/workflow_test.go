package types

import (
	"encoding/json"
	"testing"
)

func TestWorkflowUnmarshalArrayWireFormat(t *testing.T) {
	data := []byte(`{
		"id": "wf-1",
		"name": "example",
		"nodes": [
			{"id": "A", "name": "fetch", "type": "http"},
			{"id": "B", "name": "transform", "type": "jq", "config": {"executionMode": "async"}}
		],
		"connections": [
			{"from": "A", "to": "B"}
		]
	}`)

	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(wf.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(wf.Nodes))
	}
	if wf.Nodes["A"].Type != "http" {
		t.Errorf("node A: expected type http, got %q", wf.Nodes["A"].Type)
	}
	if wf.Nodes["B"].Mode() != ExecutionModeAsync {
		t.Errorf("node B: expected async mode, got %q", wf.Nodes["B"].Mode())
	}
	if err := wf.Validate(); err != nil {
		t.Fatalf("expected valid workflow, got: %v", err)
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	original := Workflow{
		ID:   "wf-1",
		Name: "example",
		Nodes: map[string]NodeSpec{
			"A": {ID: "A", Name: "fetch", Type: "http"},
			"B": {ID: "B", Name: "transform", Type: "jq", Config: map[string]interface{}{"executionMode": "async"}},
		},
		Connections: []Connection{
			{From: "A", To: "B"},
		},
	}

	data, err := json.Marshal(&original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var roundTripped Workflow
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if roundTripped.ID != original.ID || roundTripped.Name != original.Name {
		t.Fatalf("id/name mismatch: got %+v", roundTripped)
	}
	if len(roundTripped.Nodes) != len(original.Nodes) {
		t.Fatalf("expected %d nodes, got %d", len(original.Nodes), len(roundTripped.Nodes))
	}
	for id, node := range original.Nodes {
		got, ok := roundTripped.Nodes[id]
		if !ok {
			t.Fatalf("missing node %q after round trip", id)
		}
		if got.Type != node.Type || got.Name != node.Name {
			t.Errorf("node %q mismatch: got %+v, want %+v", id, got, node)
		}
	}
	if len(roundTripped.Connections) != len(original.Connections) {
		t.Fatalf("expected %d connections, got %d", len(original.Connections), len(roundTripped.Connections))
	}
}

func TestWorkflowMarshalOrdersNodesByID(t *testing.T) {
	wf := Workflow{
		ID:   "wf-1",
		Name: "example",
		Nodes: map[string]NodeSpec{
			"z-node": {ID: "z-node", Type: "http"},
			"a-node": {ID: "a-node", Type: "http"},
		},
	}

	data, err := json.Marshal(&wf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Nodes []NodeSpec `json:"nodes"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if len(decoded.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(decoded.Nodes))
	}
	if decoded.Nodes[0].ID != "a-node" || decoded.Nodes[1].ID != "z-node" {
		t.Fatalf("expected nodes ordered by id, got %q then %q", decoded.Nodes[0].ID, decoded.Nodes[1].ID)
	}
}

func TestWorkflowUnmarshalDuplicateNodeID(t *testing.T) {
	data := []byte(`{
		"id": "wf-1",
		"name": "example",
		"nodes": [
			{"id": "A", "type": "http"},
			{"id": "A", "type": "jq"}
		]
	}`)

	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		t.Fatalf("unmarshal should not fail on duplicate ids: %v", err)
	}
	if len(wf.Nodes) != 1 {
		t.Fatalf("expected first occurrence to survive, got %d nodes", len(wf.Nodes))
	}

	if err := wf.Validate(); err == nil {
		t.Fatal("expected Validate to reject duplicate node ids")
	}
}

func TestWorkflowValidate(t *testing.T) {
	tests := []struct {
		name    string
		wf      Workflow
		wantErr bool
	}{
		{
			name:    "missing id",
			wf:      Workflow{Name: "example"},
			wantErr: true,
		},
		{
			name:    "missing name",
			wf:      Workflow{ID: "wf-1"},
			wantErr: true,
		},
		{
			name: "empty node id key",
			wf: Workflow{
				ID:   "wf-1",
				Name: "example",
				Nodes: map[string]NodeSpec{
					"": {Type: "http"},
				},
			},
			wantErr: true,
		},
		{
			name: "node key id mismatch",
			wf: Workflow{
				ID:   "wf-1",
				Name: "example",
				Nodes: map[string]NodeSpec{
					"A": {ID: "B", Type: "http"},
				},
			},
			wantErr: true,
		},
		{
			name: "invalid executionMode",
			wf: Workflow{
				ID:   "wf-1",
				Name: "example",
				Nodes: map[string]NodeSpec{
					"A": {ID: "A", Type: "http", Config: map[string]interface{}{"executionMode": "parallel"}},
				},
			},
			wantErr: true,
		},
		{
			name: "connection references unknown node",
			wf: Workflow{
				ID:   "wf-1",
				Name: "example",
				Nodes: map[string]NodeSpec{
					"A": {ID: "A", Type: "http"},
				},
				Connections: []Connection{{From: "A", To: "missing"}},
			},
			wantErr: true,
		},
		{
			name: "valid minimal workflow",
			wf: Workflow{
				ID:   "wf-1",
				Name: "example",
				Nodes: map[string]NodeSpec{
					"A": {ID: "A", Type: "http"},
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wf.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
