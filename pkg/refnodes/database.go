package refnodes

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/pkg/types"
)

// DatabaseNode runs a parameterized query against a database/sql
// connection. Only the "postgres" driver is wired, via lib/pq, mirroring
// the sole driver the teacher's sibling dukex-operion repo uses for its
// own Postgres persistence layer. Connections are cached per DSN so
// repeated invocations of the same node don't reopen the pool.
type DatabaseNode struct {
	spec *types.NodeSpec

	mu   sync.Mutex
	pool *sql.DB
	dsn  string
}

// NewDatabaseNode is a node.Factory for type "database".
func NewDatabaseNode(spec *types.NodeSpec) (node.Node, error) {
	return &DatabaseNode{spec: spec}, nil
}

func (n *DatabaseNode) Validate() bool {
	cfg := n.spec.Config
	if cfg == nil {
		return false
	}
	driver, _ := cfg["driver"].(string)
	dsn, _ := cfg["dsn"].(string)
	query, _ := cfg["query"].(string)
	return driver == "postgres" && dsn != "" && query != ""
}

func (n *DatabaseNode) Describe() node.Describe {
	return node.Describe{
		Description: "Runs a parameterized SQL query and returns its result rows.",
		Category:    "data",
		InputSchema: map[string]interface{}{
			"driver": "string (only \"postgres\" is wired)",
			"dsn":    "string",
			"query":  "string",
			"args":   "[]any",
		},
		OutputSchema: map[string]interface{}{
			"rows": "[]map[string]any",
		},
	}
}

func (n *DatabaseNode) db(dsn string) (*sql.DB, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.pool != nil && n.dsn == dsn {
		return n.pool, nil
	}
	if n.pool != nil {
		n.pool.Close()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	n.pool, n.dsn = db, dsn
	return db, nil
}

func (n *DatabaseNode) Execute(ctx context.Context, _ map[string]interface{}, input map[string]interface{}) types.NodeResult {
	cfg, _ := input["config"].(map[string]interface{})
	if cfg == nil {
		cfg = n.spec.Config
	}

	driver, _ := cfg["driver"].(string)
	if driver != "postgres" {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("database node: unsupported driver %q", driver)}
	}

	dsn, _ := cfg["dsn"].(string)
	query, _ := cfg["query"].(string)
	if dsn == "" || query == "" {
		return types.NodeResult{Success: false, Error: "database node: dsn and query are required"}
	}

	var args []interface{}
	if rawArgs, ok := cfg["args"].([]interface{}); ok {
		args = rawArgs
	}

	db, err := n.db(dsn)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("database node: %v", err)}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, query, args...)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("database node: query: %v", err)}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("database node: columns: %v", err)}
	}

	var out []map[string]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return types.NodeResult{Success: false, Error: fmt.Sprintf("database node: scan: %v", err)}
		}
		row := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("database node: %v", err)}
	}

	return types.NodeResult{
		Success: true,
		Data:    map[string]interface{}{"rows": out},
		Logs: []types.LogEntry{{
			Timestamp: time.Now().UTC(),
			Level:     "info",
			Message:   fmt.Sprintf("query returned %d rows", len(out)),
		}},
	}
}
