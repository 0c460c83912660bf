package toolcall

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Executor runs one tool call and returns its result text, or an error
// that becomes a ToolFailure (spec.md §7).
type Executor func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is one registered tool: its argument schema (for validation) and
// its executor.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Exec        Executor
}

// Registry holds the set of tools an agent orchestrator may invoke,
// keyed by name, mirroring spec.md §4.8's "tool executor" collaborator.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]*Tool{}}
}

// Register infers T's JSON schema via jsonschema.For and adds it under
// name. Registering the same name twice replaces the previous entry.
func Register[T any](r *Registry, name, description string, exec Executor) error {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return fmt.Errorf("schema for tool %q: %w", name, err)
	}
	r.tools[name] = &Tool{Name: name, Description: description, Schema: schema, Exec: exec}
	return nil
}

// NotRegisteredError is returned by Invoke when no tool matches the name
// a parsed Call carries.
type NotRegisteredError struct{ Name string }

func (e NotRegisteredError) Error() string { return "tool not registered: " + e.Name }

// Invoke validates call.Args as JSON against the registered tool's schema
// and runs its executor. args is parsed as a JSON object; a raw non-JSON
// args string is treated as the single positional argument under the key
// "args" for tools with a simple schema, so the spec's plain "args: ..."
// line keeps working for single-argument tools.
func (r *Registry) Invoke(ctx context.Context, call *Call) (string, error) {
	tool, ok := r.tools[call.Name]
	if !ok {
		return "", NotRegisteredError{Name: call.Name}
	}

	raw := []byte(call.Args)
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		raw, _ = json.Marshal(map[string]string{"args": call.Args})
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", fmt.Errorf("encode args for tool %q: %w", call.Name, err)
		}
	}

	if tool.Schema != nil {
		resolved, err := tool.Schema.Resolve(nil)
		if err != nil {
			return "", fmt.Errorf("resolve schema for tool %q: %w", call.Name, err)
		}
		if err := resolved.Validate(parsed); err != nil {
			return "", fmt.Errorf("invalid arguments for tool %q: %w", call.Name, err)
		}
	}

	return tool.Exec(ctx, json.RawMessage(raw))
}
