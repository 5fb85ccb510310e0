// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments, consistent
// error codes and uniform result handling. The Invoker composes the hook
// pipeline, rate limiter and result cache around raw tool execution so a
// failing tool becomes a structured result instead of a crashed run.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rawaa-Al-Kabbani/agent-forge/internal/util"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model"
)

// Tool error codes. Every failed invocation carries exactly one of these so
// downstream consumers (and the model itself) can categorize failures.
const (
	// CodeToolNotFound marks calls referencing a name with no registration.
	CodeToolNotFound = "TOOL_NOT_FOUND"
	// CodeInvalidArguments marks malformed JSON or schema violations.
	CodeInvalidArguments = "INVALID_ARGUMENTS"
	// CodeExecutionError marks failures (or panics) inside the tool itself.
	CodeExecutionError = "EXECUTION_ERROR"
	// CodeTimeout marks executions that exceeded their time budget.
	CodeTimeout = "TIMEOUT"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tool implementations should provide clear names and descriptions, define a
// proper JSON schema for parameters, handle errors gracefully and be safe for
// concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool. Names should follow
	// function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool
	// does. It is provided to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with already parsed arguments. Implementations
	// must honor ctx cancellation for long-running work.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed
// information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Registry holds the tools available to an agent, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a second tool under an existing name
// fails rather than silently replacing the first.
func (r *Registry) Register(t Tool) error {
	if t == nil || t.Name() == "" {
		return fmt.Errorf("tool: registration requires a named tool")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool: %q already registered", t.Name())
	}
	r.tools[t.Name()] = t

	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Definitions returns the model-facing tool declarations in sorted name
// order so identical registries always produce identical requests.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}
