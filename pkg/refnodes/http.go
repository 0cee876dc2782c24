// Package refnodes provides reference Node implementations for the
// four built-in kinds named by the engine's spec (http, transform,
// code, database). They are ordinary external node implementations —
// registered into node.Registry by cmd/ wiring the same way a
// third-party plugin would be — not part of the core contract.
package refnodes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flowforge/dagflow/internal/node"
	"github.com/flowforge/dagflow/pkg/types"
)

// HTTPNode issues a single HTTP request per invocation. Template
// interpolation over url/headers/body happens upstream in the core
// executor, so by the time Execute runs this node sees plain strings.
type HTTPNode struct {
	spec   *types.NodeSpec
	client *http.Client
}

// NewHTTPNode is a node.Factory for type "http".
func NewHTTPNode(spec *types.NodeSpec) (node.Node, error) {
	return &HTTPNode{spec: spec, client: &http.Client{}}, nil
}

func (n *HTTPNode) config() map[string]interface{} {
	if n.spec.Config == nil {
		return map[string]interface{}{}
	}
	return n.spec.Config
}

func (n *HTTPNode) Validate() bool {
	cfg := n.config()
	url, _ := cfg["url"].(string)
	return url != ""
}

func (n *HTTPNode) Describe() node.Describe {
	return node.Describe{
		Description: "Issues an HTTP request and reports status, headers, and body.",
		Category:    "network",
		InputSchema: map[string]interface{}{
			"method":         "string",
			"url":            "string",
			"headers":        "map[string]string",
			"body":           "string",
			"timeoutSeconds": "number",
		},
		OutputSchema: map[string]interface{}{
			"status":  "number",
			"headers": "map[string][]string",
			"body":    "string",
		},
	}
}

func (n *HTTPNode) Execute(ctx context.Context, _ map[string]interface{}, input map[string]interface{}) types.NodeResult {
	cfg, _ := input["config"].(map[string]interface{})
	if cfg == nil {
		cfg = n.config()
	}

	method, _ := cfg["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	url, _ := cfg["url"].(string)
	if url == "" {
		return types.NodeResult{Success: false, Error: "http node: url is required"}
	}

	var bodyReader io.Reader
	if body, ok := cfg["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}

	timeout := 30 * time.Second
	if ts, ok := cfg["timeoutSeconds"].(float64); ok && ts > 0 {
		timeout = time.Duration(ts * float64(time.Second))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("http node: build request: %v", err)}
	}

	if headers, ok := cfg["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("http node: request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NodeResult{Success: false, Error: fmt.Sprintf("http node: read response: %v", err)}
	}

	data := map[string]interface{}{
		"status":  resp.StatusCode,
		"headers": resp.Header,
		"body":    string(respBody),
	}

	logs := []types.LogEntry{{
		Timestamp: time.Now().UTC(),
		Level:     "info",
		Message:   method + " " + url + " -> " + strconv.Itoa(resp.StatusCode),
	}}

	if resp.StatusCode >= 400 {
		return types.NodeResult{Success: false, Data: data, Logs: logs, Error: fmt.Sprintf("http node: status %d", resp.StatusCode)}
	}
	return types.NodeResult{Success: true, Data: data, Logs: logs}
}
