package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model"
	"github.com/Rawaa-Al-Kabbani/agent-forge/ratelimit"
	"github.com/Rawaa-Al-Kabbani/agent-forge/tool"
)

// ModelLimitKey is the rate limiter key charged for model calls. Configure a
// dedicated window for it via limiter overrides; without one, model calls
// draw from the shared global bucket like any other key.
const ModelLimitKey = "model"

// DefaultMaxTurns bounds runs whose request does not set a turn ceiling.
const DefaultMaxTurns = 10

// Options configures an Agent.
type Options struct {
	// Role and Objective describe the agent to instruction templates.
	Role      string
	Objective string
	// Description is a human-readable summary of the agent's purpose.
	Description string
	// Instruction produces the system prompt. Defaults to empty.
	Instruction Instruction
	// Tools lists the capabilities exposed to the model.
	Tools []tool.Tool
	// Hooks receives every lifecycle event of the agent's runs.
	Hooks *hook.Pipeline
	// Limiter gates model calls and tool executions. Nil disables limiting.
	Limiter *ratelimit.Limiter
	// Cache short-circuits repeat tool invocations. Nil disables caching.
	Cache *ratelimit.Cache
	// Logger receives run log entries. Defaults to NoOpLogger.
	Logger logging.Logger
	// ToolTimeout caps each tool execution. Zero disables the cap.
	ToolTimeout time.Duration
}

// Agent drives the conversation loop for one identity: it calls the model
// with the accumulated conversation, executes requested tool calls through
// the invoker and repeats until the model answers in plain text or a limit
// intervenes. An Agent is immutable after construction and safe for
// concurrent runs; each run owns its own conversation.
type Agent struct {
	name        string
	role        string
	objective   string
	description string
	instruction Instruction
	model       model.Model
	registry    *tool.Registry
	invoker     *tool.Invoker
	hooks       *hook.Pipeline
	limiter     *ratelimit.Limiter
	logger      logging.Logger
}

// New constructs an Agent around m. Tool registration failures (duplicate
// names) surface here rather than at run time.
func New(name string, m model.Model, optFns ...func(o *Options)) (*Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent: name must not be empty")
	}
	if m == nil {
		return nil, fmt.Errorf("agent: model must not be nil")
	}

	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Hooks == nil {
		opts.Hooks = hook.NewPipeline()
	}
	if opts.Description == "" {
		opts.Description = fmt.Sprintf("Agent %s", name)
	}

	registry := tool.NewRegistry()
	for _, t := range opts.Tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	invoker := tool.NewInvoker(registry, func(o *tool.InvokerOptions) {
		o.Hooks = opts.Hooks
		o.Limiter = opts.Limiter
		o.Cache = opts.Cache
		o.Logger = opts.Logger
		o.Timeout = opts.ToolTimeout
	})

	return &Agent{
		name:        name,
		role:        opts.Role,
		objective:   opts.Objective,
		description: opts.Description,
		instruction: opts.Instruction,
		model:       m,
		registry:    registry,
		invoker:     invoker,
		hooks:       opts.Hooks,
		limiter:     opts.Limiter,
		logger:      opts.Logger,
	}, nil
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's description.
func (a *Agent) Description() string { return a.description }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.registry }

// Model returns metadata about the agent's model.
func (a *Agent) Model() model.Info { return a.model.Info() }

// Run executes one conversation loop for req and returns its result.
//
// The returned result is complete on success, or marked incomplete when the
// turn ceiling was reached. A non-nil error means the run terminated in an
// error state (provider failure, aborted hook dispatch, cancellation); for
// cancellation the partial result accumulated so far is returned alongside
// the error so supervisors can salvage it.
func (a *Agent) Run(ctx context.Context, req core.RunRequest) (*core.RunResult, error) {
	return a.RunWithChunks(ctx, req, nil)
}

// RunWithChunks behaves like Run and additionally forwards streaming chunks
// to the given channel as they arrive. The channel is closed when the run
// finishes. Chunks are only produced when req.Options.Stream is set.
func (a *Agent) RunWithChunks(ctx context.Context, req core.RunRequest, chunks chan<- model.Response) (*core.RunResult, error) {
	runID := req.RunID
	if runID == "" {
		runID = core.NewID()
	}

	run := &runState{
		agent:    a,
		runID:    runID,
		req:      req,
		chunks:   chunks,
		start:    time.Now(),
		maxTurns: req.Options.MaxTurns,
	}
	if run.maxTurns <= 0 {
		run.maxTurns = DefaultMaxTurns
	}
	if chunks != nil {
		defer close(chunks)
	}

	return run.execute(ctx)
}

// runState carries the mutable state of one run through the loop.
type runState struct {
	agent        *Agent
	runID        string
	req          core.RunRequest
	chunks       chan<- model.Response
	start        time.Time
	maxTurns     int
	conversation *core.Conversation
	usage        core.TokenUsage
	toolResults  []core.ToolCallResult
	turns        int
}

func (r *runState) execute(ctx context.Context) (*core.RunResult, error) {
	a := r.agent

	a.logger.Info("agent.run.start", "run_id", r.runID, "agent", a.name, "model", a.model.Info().Name)

	if err := r.seedConversation(); err != nil {
		return nil, r.failRun(ctx, err)
	}

	if err := r.dispatch(ctx, hook.AgentBeforeRun, hook.Payload{"input": r.req.Input}); err != nil {
		return nil, r.failRun(ctx, err)
	}

	for {
		if r.turns >= r.maxTurns {
			a.logger.Warn("agent.run.max_turns", "run_id", r.runID, "turns", r.turns)
			return r.finishRun(ctx, "", core.IncompleteMaxTurns), nil
		}
		if ctx.Err() != nil {
			return r.abortRun(ctx)
		}

		resp, err := r.modelTurn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return r.abortRun(ctx)
			}
			return nil, r.failRun(ctx, err)
		}
		r.turns++

		if len(resp.Message.ToolCalls) == 0 {
			return r.finishRun(ctx, resp.Message.Content, ""), nil
		}

		if err := r.conversation.Append(resp.Message); err != nil {
			return nil, r.failRun(ctx, err)
		}
		r.executeToolCalls(ctx, resp.Message.ToolCalls)
	}
}

// seedConversation initializes the run's conversation with the resolved
// system prompt and the user input.
func (r *runState) seedConversation() error {
	a := r.agent
	r.conversation = core.NewConversation()

	system, err := a.instruction.Resolve(Identity{Name: a.name, Role: a.role, Objective: a.objective})
	if err != nil {
		return fmt.Errorf("resolve instruction: %w", err)
	}
	if system != "" {
		if err := r.conversation.Append(core.NewSystemMessage(system)); err != nil {
			return err
		}
	}
	return r.conversation.Append(core.NewUserMessage(r.req.Input))
}

// modelTurn performs one AwaitingModel cycle: the before_request hook (whose
// short-circuit substitutes the response and skips both the provider call and
// rate limit token consumption), the provider call itself, then the
// after_request hook.
func (r *runState) modelTurn(ctx context.Context) (model.Response, error) {
	a := r.agent
	info := a.model.Info()

	before := hook.NewEvent(hook.ModelBeforeRequest, hook.Payload{
		"provider": info.Provider,
		"model":    info.Name,
		"messages": r.conversation.Len(),
	}).WithRun(r.runID, a.name)

	hookRes, err := a.hooks.Dispatch(ctx, before)
	if err != nil {
		return model.Response{}, err
	}
	if hookRes.ShortCircuited {
		if resp, ok := substituteResponse(hookRes.Value); ok {
			a.logger.Debug("agent.model.short_circuit", "run_id", r.runID)
			r.recordResponse(ctx, resp, "short_circuit")
			return resp, nil
		}
		a.logger.Warn("agent.model.short_circuit_ignored", "run_id", r.runID,
			"reason", fmt.Sprintf("unsupported substitute type %T", hookRes.Value))
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, ModelLimitKey); err != nil {
			return model.Response{}, err
		}
	}

	resp, err := r.generate(ctx)
	if err != nil {
		r.dispatchObserved(ctx, hook.ModelAfterRequest, hook.Payload{
			"provider": info.Provider,
			"model":    info.Name,
			"status":   "error",
		})
		return model.Response{}, err
	}

	r.recordResponse(ctx, resp, "success")
	return resp, nil
}

// generate drains one Generate call, forwarding streaming chunks to hooks
// and the caller channel in arrival order.
func (r *runState) generate(ctx context.Context) (model.Response, error) {
	a := r.agent

	respCh, errCh := a.model.Generate(ctx, model.Request{
		Messages: r.conversation.Messages(),
		Tools:    a.registry.Definitions(),
		Stream:   r.req.Options.Stream,
	})

	streaming := false
	var final model.Response
	haveFinal := false

	for resp := range respCh {
		if resp.Partial {
			if !streaming {
				streaming = true
				r.dispatchObserved(ctx, hook.StreamStart, hook.Payload{"model": a.model.Info().Name})
			}
			r.dispatchObserved(ctx, hook.StreamChunk, hook.Payload{"content": resp.Message.Content})
			if r.chunks != nil {
				select {
				case r.chunks <- resp:
				case <-ctx.Done():
				}
			}
			continue
		}
		final = resp
		haveFinal = true
	}

	if streaming {
		r.dispatchObserved(ctx, hook.StreamEnd, hook.Payload{"model": a.model.Info().Name})
	}

	if err := <-errCh; err != nil {
		if _, ok := err.(*core.ProviderError); ok || ctx.Err() != nil {
			return model.Response{}, err
		}
		return model.Response{}, core.NewProviderError(a.model.Info().Provider, err)
	}
	if !haveFinal {
		return model.Response{}, core.NewProviderError(a.model.Info().Provider, fmt.Errorf("no final response emitted"))
	}

	return final, nil
}

// recordResponse accumulates usage and fires the after_request hook.
func (r *runState) recordResponse(ctx context.Context, resp model.Response, status string) {
	info := r.agent.model.Info()
	payload := hook.Payload{
		"provider": info.Provider,
		"model":    info.Name,
		"status":   status,
	}
	if resp.Usage != nil {
		r.usage.Add(*resp.Usage)
		payload["prompt_tokens"] = resp.Usage.PromptTokens
		payload["completion_tokens"] = resp.Usage.CompletionTokens
	}
	r.dispatchObserved(ctx, hook.ModelAfterRequest, payload)
}

// executeToolCalls runs the requested calls sequentially in emission order.
// Failed calls become structured tool messages; the loop always continues to
// the next model turn.
func (r *runState) executeToolCalls(ctx context.Context, calls []core.ToolCallRequest) {
	for _, call := range calls {
		result := r.agent.invoker.Invoke(ctx, call, tool.Meta{RunID: r.runID, AgentName: r.agent.name})
		r.toolResults = append(r.toolResults, result)
		if err := r.conversation.Append(result.Message()); err != nil {
			// Unreachable while results derive from appended calls; log and
			// keep the loop alive if it ever happens.
			r.agent.logger.Error("agent.run.append_failed", "run_id", r.runID, "error", err)
		}
	}
}

// finishRun composes the run result and fires after_run.
func (r *runState) finishRun(ctx context.Context, output, incompleteReason string) *core.RunResult {
	if output == "" && incompleteReason != "" {
		output = r.lastAssistantText()
	}

	result := &core.RunResult{
		Output:           output,
		Incomplete:       incompleteReason != "",
		IncompleteReason: incompleteReason,
		ModelName:        r.agent.model.Info().Name,
		Usage:            r.usage,
		Turns:            r.turns,
		Elapsed:          time.Since(r.start),
		ToolResults:      r.toolResults,
	}

	status := "success"
	if result.Incomplete {
		status = "incomplete"
	}
	r.agent.logger.Info("agent.run.complete",
		"run_id", r.runID,
		"status", status,
		"turns", result.Turns,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)
	r.dispatchObserved(ctx, hook.AgentAfterRun, hook.Payload{
		"status":     status,
		"output":     result.Output,
		"turns":      result.Turns,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})

	return result
}

// failRun fires agent:error and returns the terminal error.
func (r *runState) failRun(ctx context.Context, err error) error {
	r.agent.logger.Error("agent.run.error", "run_id", r.runID, "error", err)
	r.dispatchObserved(ctx, hook.AgentError, hook.Payload{"error": err.Error()})
	return err
}

// abortRun handles a terminated context: it returns the partial result
// accumulated so far together with the context error so a supervisor can
// salvage output. A deadline is recorded as "timeout", explicit cancellation
// as "cancelled".
func (r *runState) abortRun(ctx context.Context) (*core.RunResult, error) {
	err := ctx.Err()
	reason := core.IncompleteCancelled
	if err == context.DeadlineExceeded {
		reason = core.IncompleteTimeout
	}
	r.agent.logger.Warn("agent.run.aborted", "run_id", r.runID, "reason", reason, "error", err)
	r.dispatchObserved(ctx, hook.AgentError, hook.Payload{"error": err.Error()})

	return &core.RunResult{
		Output:           r.lastAssistantText(),
		Incomplete:       true,
		IncompleteReason: reason,
		ModelName:        r.agent.model.Info().Name,
		Usage:            r.usage,
		Turns:            r.turns,
		Elapsed:          time.Since(r.start),
		ToolResults:      r.toolResults,
	}, err
}

// lastAssistantText returns the content of the newest assistant message, or
// empty when the model never produced text.
func (r *runState) lastAssistantText() string {
	if r.conversation == nil {
		return ""
	}
	messages := r.conversation.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == core.RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}

// dispatch fires an event whose handler failure is fatal to the run.
func (r *runState) dispatch(ctx context.Context, kind hook.Kind, payload hook.Payload) error {
	ev := hook.NewEvent(kind, payload).WithRun(r.runID, r.agent.name)
	_, err := r.agent.hooks.Dispatch(ctx, ev)
	return err
}

// dispatchObserved fires an event whose handler failure is logged only.
func (r *runState) dispatchObserved(ctx context.Context, kind hook.Kind, payload hook.Payload) {
	if err := r.dispatch(ctx, kind, payload); err != nil {
		r.agent.logger.Warn("agent.run.hook_error", "run_id", r.runID, "kind", string(kind), "error", err)
	}
}

// substituteResponse converts a hook-provided substitute value into a model
// response. Supported shapes: model.Response, *model.Response, core.Message
// and plain strings.
func substituteResponse(v any) (model.Response, bool) {
	switch resp := v.(type) {
	case model.Response:
		return resp, true
	case *model.Response:
		return *resp, true
	case core.Message:
		return model.Response{Message: resp, FinishReason: "stop"}, true
	case string:
		return model.Response{Message: core.NewAssistantMessage(resp), FinishReason: "stop"}, true
	}
	return model.Response{}, false
}
