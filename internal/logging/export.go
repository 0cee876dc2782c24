package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowforge/dagflow/pkg/types"
)

// ExportJSON renders entries as pretty-printed JSON.
func ExportJSON(entries []types.LogEntry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}

// ExportCSV renders entries as CRLF-terminated, quoted CSV rows with
// the header timestamp,level,message,execution_id,node_id.
func ExportCSV(entries []types.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write([]string{"timestamp", "level", "message", "execution_id", "node_id"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.Format(types.TimeLayout),
			e.Level,
			e.Message,
			e.ExecutionID,
			e.NodeID,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportText renders entries as plain-text lines:
// "[ts] LEVEL: message (Execution: …)(Node: …)".
func ExportText(entries []types.LogEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "[%s] %s: %s", e.Timestamp.Format(types.TimeLayout), strings.ToUpper(e.Level), e.Message)
		if e.ExecutionID != "" {
			fmt.Fprintf(&buf, "(Execution: %s)", e.ExecutionID)
		}
		if e.NodeID != "" {
			fmt.Fprintf(&buf, "(Node: %s)", e.NodeID)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
