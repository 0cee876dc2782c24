package refnodes

import (
	"context"
	"testing"

	"github.com/flowforge/dagflow/pkg/types"
)

func TestDatabaseNodeValidate(t *testing.T) {
	n, _ := NewDatabaseNode(&types.NodeSpec{
		ID: "n1",
		Config: map[string]interface{}{
			"driver": "postgres",
			"dsn":    "postgres://localhost/test",
			"query":  "select 1",
		},
	})
	if !n.Validate() {
		t.Fatal("expected Validate to pass with driver/dsn/query set")
	}

	n2, _ := NewDatabaseNode(&types.NodeSpec{ID: "n2"})
	if n2.Validate() {
		t.Fatal("expected Validate to fail with no config")
	}
}

func TestDatabaseNodeUnsupportedDriver(t *testing.T) {
	n, _ := NewDatabaseNode(&types.NodeSpec{ID: "n1"})
	result := n.Execute(context.Background(), nil, map[string]interface{}{
		"config": map[string]interface{}{"driver": "mysql", "dsn": "x", "query": "select 1"},
	})
	if result.Success {
		t.Fatal("expected failure for unsupported driver")
	}
}

func TestDatabaseNodeMissingDSNOrQuery(t *testing.T) {
	n, _ := NewDatabaseNode(&types.NodeSpec{ID: "n1"})
	result := n.Execute(context.Background(), nil, map[string]interface{}{
		"config": map[string]interface{}{"driver": "postgres"},
	})
	if result.Success {
		t.Fatal("expected failure for missing dsn/query")
	}
}
