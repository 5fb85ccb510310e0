package core

import "time"

// TokenUsage captures token accounting for one model call or an entire run.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample into the receiver.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// RunOptions tunes a single run. Zero values defer to the agent's defaults.
type RunOptions struct {
	// Stream requests that partial model output be forwarded as it arrives.
	Stream bool
	// MaxTurns caps model-call cycles within the run. 0 uses the agent default.
	MaxTurns int
	// MaxExecutionTime caps the wall-clock duration of the run. 0 uses the
	// agent default.
	MaxExecutionTime time.Duration
}

// RunRequest is the immutable input to one run: caller text plus options.
// RunID may be pre-assigned by a supervisor so cancellation handles and hook
// events share one identifier; left empty, the loop generates one.
type RunRequest struct {
	RunID   string
	Input   string
	Options RunOptions
}

// Termination reasons recorded on an incomplete RunResult.
const (
	// IncompleteMaxTurns marks a run stopped by the turn ceiling.
	IncompleteMaxTurns = "max_turns"
	// IncompleteTimeout marks a run stopped by the wall-clock limit.
	IncompleteTimeout = "timeout"
	// IncompleteCancelled marks a run stopped by explicit cancellation.
	IncompleteCancelled = "cancelled"
)

// RunResult is produced exactly once per run, at loop termination, and is
// immutable afterward. Runs cut short by the turn ceiling or the execution
// deadline still yield a result, flagged Incomplete with a reason, so callers
// can use the partial output.
type RunResult struct {
	// Output is the final (or last partial) assistant text.
	Output string `json:"output"`
	// Incomplete is set when the run terminated before the model emitted a
	// final answer.
	Incomplete bool `json:"incomplete,omitempty"`
	// IncompleteReason is one of the Incomplete* constants when Incomplete.
	IncompleteReason string `json:"incomplete_reason,omitempty"`
	// ModelName identifies the model that produced the output.
	ModelName string `json:"model_name,omitempty"`
	// Usage aggregates token consumption across every model call of the run.
	Usage TokenUsage `json:"usage"`
	// Turns counts completed model-call cycles.
	Turns int `json:"turns"`
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed"`
	// ToolResults lists every tool call outcome in execution order.
	ToolResults []ToolCallResult `json:"tool_results,omitempty"`
}
