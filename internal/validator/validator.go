// Package validator provides JSON schema validation for workflow
// definitions submitted to the engine.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates workflow definitions against the wire schema
// from spec.md §6.
type Validator struct {
	workflowSchema *jsonschema.Schema
}

// ValidationError represents a single schema validation failure.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult holds the result of a validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// New creates a new Validator with the embedded workflow schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("workflow.json", strings.NewReader(workflowSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add workflow schema: %w", err)
	}

	workflowSchema, err := compiler.Compile("workflow.json")
	if err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}

	return &Validator{workflowSchema: workflowSchema}, nil
}

// ValidateWorkflow validates a decoded workflow document.
func (v *Validator) ValidateWorkflow(workflow map[string]interface{}) *ValidationResult {
	return v.validate(v.workflowSchema, workflow)
}

// ValidateWorkflowJSON validates a JSON-encoded workflow document.
func (v *Validator) ValidateWorkflowJSON(data []byte) *ValidationResult {
	var workflow map[string]interface{}
	if err := json.Unmarshal(data, &workflow); err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)},
			},
		}
	}
	return v.ValidateWorkflow(workflow)
}

func (v *Validator) validate(schema *jsonschema.Schema, data interface{}) *ValidationResult {
	err := schema.Validate(data)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	result := &ValidationResult{Valid: false}
	if verr, ok := err.(*jsonschema.ValidationError); ok {
		result.Errors = extractErrors(verr)
	} else {
		result.Errors = []ValidationError{{Path: "$", Message: err.Error()}}
	}
	return result
}

func extractErrors(verr *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError
	if verr.Message != "" {
		errors = append(errors, ValidationError{Path: verr.InstanceLocation, Message: verr.Message})
	}
	for _, cause := range verr.Causes {
		errors = append(errors, extractErrors(cause)...)
	}
	return errors
}

// workflowSchemaJSON mirrors the Workflow wire format from spec.md §6:
// an id/name, an array of node definitions, and a list of connections
// between them.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "workflow.json",
  "title": "Workflow",
  "description": "Schema for DAG workflow definitions",
  "type": "object",
  "required": ["id", "name", "nodes"],
  "properties": {
    "id": {
      "type": "string",
      "minLength": 1,
      "description": "Unique workflow identifier"
    },
    "name": {
      "type": "string",
      "minLength": 1,
      "description": "Human-readable workflow name"
    },
    "description": {
      "type": "string"
    },
    "nodes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string"},
          "type": {"type": "string", "minLength": 1},
          "config": {
            "type": "object",
            "properties": {
              "stopWorkflowOnFail": {"type": "boolean"},
              "executionMode": {"type": "string", "enum": ["sync", "async"]}
            }
          }
        },
        "description": "A single node definition"
      },
      "description": "Node definitions, one object per node"
    },
    "connections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["from", "to"],
        "properties": {
          "from": {"type": "string", "minLength": 1},
          "to": {"type": "string", "minLength": 1},
          "fromOutput": {"type": "string"},
          "toInput": {"type": "string"}
        }
      },
      "description": "Directed edges between node output and input slots"
    }
  }
}`
