package hook

import (
	"context"
	"time"
)

// Kind identifies a specific lifecycle point where extensions can be invoked.
//
// The enumeration is fixed: the engine fires these kinds at well-defined
// transitions and extensions subscribe to the subset they care about.
type Kind string

const (
	// FrameworkInitialize fires once while the framework is assembling.
	FrameworkInitialize Kind = "framework:initialize"
	// FrameworkReady fires once when setup is complete.
	FrameworkReady Kind = "framework:ready"
	// FrameworkShutdown fires once during teardown.
	FrameworkShutdown Kind = "framework:shutdown"

	// AgentRegister fires when an agent is registered with a runner.
	AgentRegister Kind = "agent:register"
	// AgentBeforeRun fires before a run's first model call.
	AgentBeforeRun Kind = "agent:before_run"
	// AgentAfterRun fires after a run produced its result.
	AgentAfterRun Kind = "agent:after_run"
	// AgentError fires when a run terminates in an error state.
	AgentError Kind = "agent:error"

	// ModelBeforeRequest fires before each model call. A short-circuit
	// outcome substitutes the model response and skips the call entirely.
	ModelBeforeRequest Kind = "model:before_request"
	// ModelAfterRequest fires after each model call with the response.
	ModelAfterRequest Kind = "model:after_request"

	// StreamStart fires when a streaming model response begins.
	StreamStart Kind = "llm:stream_start"
	// StreamChunk fires for each partial chunk of a streaming response.
	StreamChunk Kind = "llm:stream_chunk"
	// StreamEnd fires when a streaming response completes.
	StreamEnd Kind = "llm:stream_end"

	// ToolBeforeExecute fires before a tool runs. A short-circuit outcome
	// substitutes the tool result and skips execution.
	ToolBeforeExecute Kind = "tool:before_execute"
	// ToolAfterExecute fires after a tool produced a result, including a
	// short-circuited one.
	ToolAfterExecute Kind = "tool:after_execute"
	// ToolError fires when a tool invocation failed.
	ToolError Kind = "tool:error"

	// TeamBeforeRun and TeamAfterRun are consumed by multi-agent
	// orchestration layers built on top of the core.
	TeamBeforeRun Kind = "team:before_run"
	// TeamAfterRun fires after a team run completes.
	TeamAfterRun Kind = "team:after_run"
	// WorkflowBeforeRun fires before a workflow orchestration begins.
	WorkflowBeforeRun Kind = "workflow:before_run"
	// WorkflowAfterRun fires after a workflow orchestration completes.
	WorkflowAfterRun Kind = "workflow:after_run"
)

// Payload is the mutable key/value bag that flows through the handler chain.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Event is created fresh per dispatch and carries the kind, the payload
// being transformed and read-only run metadata for handler decisions.
type Event struct {
	Kind      Kind
	Payload   Payload
	RunID     string
	AgentName string
	Timestamp time.Time
}

// NewEvent creates an event for kind with the given payload. A nil payload
// is replaced by an empty one so handlers never see nil.
func NewEvent(kind Kind, payload Payload) *Event {
	if payload == nil {
		payload = Payload{}
	}
	return &Event{Kind: kind, Payload: payload, Timestamp: time.Now().UTC()}
}

// WithRun attaches run metadata to the event.
func (e *Event) WithRun(runID, agentName string) *Event {
	e.RunID = runID
	e.AgentName = agentName
	return e
}

// Outcome is the tagged result a handler returns: either continue with a
// (possibly modified) payload, or short-circuit the engine stage this event
// wraps with a substitute value. The tagged form avoids ambiguous
// mutate-in-place semantics and keeps short-circuit signals explicit.
type Outcome struct {
	payload      Payload
	value        any
	shortCircuit bool
}

// Continue passes payload to the next handler in the chain.
func Continue(payload Payload) Outcome {
	return Outcome{payload: payload}
}

// ShortCircuit stops the chain and instructs the engine to use value instead
// of performing the real work the event wraps.
func ShortCircuit(value any) Outcome {
	return Outcome{value: value, shortCircuit: true}
}

// Handler processes an event and returns an outcome. Returning an error
// aborts dispatch for this event; the pipeline surfaces it as a
// core.HandlerError. Handlers must tolerate payloads containing keys they do
// not understand and pass them through unchanged.
type Handler func(ctx context.Context, ev *Event) (Outcome, error)
