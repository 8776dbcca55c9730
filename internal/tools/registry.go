// Package tools implements the Tool Registry, concurrency-limited executor,
// and filesystem sandbox shared by every agent run.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/corebrain/agentcore/internal/agent"
)

// Registry holds every Tool available to a run, keyed by name, and
// validates call arguments against each tool's declared JSON schema before
// dispatch.
//
// Grounded on the teacher's tool_registry.go: a mutex-guarded map with
// Register/Get/Definitions, generalized here to add schema validation at
// dispatch time (the teacher trusted callers to pre-validate).
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]agent.Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]agent.Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds t, compiling its parameter schema. Returns an error if a
// tool of the same name already exists, or if its schema does not compile.
func (r *Registry) Register(t agent.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	compiler := jsonschema.NewCompiler()
	raw := t.ParametersSchema()
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("tool %q: compiling parameter schema: %w", name, err)
	}
	schema, err := compiler.Compile(name + ".json")
	if err != nil {
		return fmt.Errorf("tool %q: compiling parameter schema: %w", name, err)
	}

	r.tools[name] = t
	r.schemas[name] = schema
	return nil
}

// Get returns the tool registered under name, or a NotFound ToolError.
func (r *Registry) Get(name string) (agent.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, agent.NewNotFound(name)
	}
	return t, nil
}

// Validate checks args against the registered schema for name.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return agent.NewNotFound(name)
	}

	var decoded any
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return agent.NewInvalidArguments(name, "arguments are not valid JSON: "+err.Error())
	}
	if err := schema.Validate(decoded); err != nil {
		return agent.NewInvalidArguments(name, err.Error())
	}
	return nil
}

// Definitions returns the ToolDefinition for every registered tool, in no
// particular order, for advertising to a Provider.
func (r *Registry) Definitions() []agent.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]agent.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		defs = append(defs, agent.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.ParametersSchema(),
		})
	}
	return defs
}
