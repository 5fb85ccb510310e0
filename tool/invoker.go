package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/internal/util"
	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
	"github.com/Rawaa-Al-Kabbani/agent-forge/ratelimit"
)

// Meta carries run identity into invocations for hook events and logging.
type Meta struct {
	RunID     string
	AgentName string
}

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// Hooks receives tool lifecycle events. Defaults to an empty pipeline.
	Hooks *hook.Pipeline
	// Limiter gates execution per tool name. Nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// Cache short-circuits repeat invocations. Nil disables caching.
	Cache *ratelimit.Cache
	// Logger receives invocation log entries. Defaults to NoOpLogger.
	Logger logging.Logger
	// Timeout caps each execution. Zero means no per-call cap beyond ctx.
	Timeout time.Duration
}

// Invoker executes tool call requests with the full invocation discipline:
// hook dispatch, result caching, rate limiting, bounded execution and panic
// recovery. Every outcome, including failure, is a structured result that
// can be appended to the conversation; the invoker never lets a misbehaving
// tool crash the run.
type Invoker struct {
	registry *Registry
	hooks    *hook.Pipeline
	limiter  *ratelimit.Limiter
	cache    *ratelimit.Cache
	logger   logging.Logger
	timeout  time.Duration
}

// NewInvoker creates an invoker over registry.
func NewInvoker(registry *Registry, optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Hooks == nil {
		opts.Hooks = hook.NewPipeline()
	}

	return &Invoker{
		registry: registry,
		hooks:    opts.Hooks,
		limiter:  opts.Limiter,
		cache:    opts.Cache,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
	}
}

// Invoke executes one tool call request and returns its structured result.
//
// The invocation order is fixed: lookup, argument parsing, schema validation,
// the tool:before_execute hook (which may substitute the result), cache
// lookup, rate limit acquisition, then bounded execution. A cache hit, a hook
// short-circuit or an invalid call consumes no rate limit token and runs no
// tool code. The tool:after_execute hook fires for every completed invocation
// regardless of how the result was produced.
func (inv *Invoker) Invoke(ctx context.Context, req core.ToolCallRequest, meta Meta) core.ToolCallResult {
	start := time.Now()

	inv.logger.Debug("tool.invoke.start", "tool", req.Name, "call_id", req.ID, "run_id", meta.RunID)

	t, ok := inv.registry.Get(req.Name)
	if !ok {
		return inv.fail(ctx, req, meta, start, CodeToolNotFound,
			fmt.Sprintf("no tool registered under %q", req.Name))
	}

	args, err := req.ArgumentsMap()
	if err != nil {
		return inv.fail(ctx, req, meta, start, CodeInvalidArguments, err.Error())
	}

	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return inv.fail(ctx, req, meta, start, CodeInvalidArguments,
			fmt.Sprintf("parameter validation failed: %v", err))
	}

	before := hook.NewEvent(hook.ToolBeforeExecute, hook.Payload{
		"tool_name": req.Name,
		"call_id":   req.ID,
		"arguments": args,
	}).WithRun(meta.RunID, meta.AgentName)

	hookRes, err := inv.hooks.Dispatch(ctx, before)
	if err != nil {
		return inv.fail(ctx, req, meta, start, CodeExecutionError, err.Error())
	}
	if hookRes.ShortCircuited {
		inv.logger.Debug("tool.invoke.short_circuit", "tool", req.Name, "call_id", req.ID)
		return inv.succeed(ctx, req, meta, start, hookRes.Value, "short_circuit")
	}

	cacheKey := ratelimit.Key(req.Name, req.Arguments)
	if inv.cache != nil {
		if value, ok := inv.cache.Get(cacheKey); ok {
			inv.logger.Debug("tool.invoke.cache_hit", "tool", req.Name, "call_id", req.ID)
			return inv.succeed(ctx, req, meta, start, value, "cached")
		}
	}

	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx, req.Name); err != nil {
			return inv.fail(ctx, req, meta, start, CodeTimeout,
				fmt.Sprintf("rate limit wait aborted: %v", err))
		}
	}

	payload, err := inv.execute(ctx, t, args)
	if err != nil {
		code := CodeExecutionError
		message := err.Error()
		if toolErr, ok := err.(*ToolError); ok {
			code = toolErr.Code
			message = toolErr.Message
		} else if ctx.Err() != nil || err == context.DeadlineExceeded {
			code = CodeTimeout
		}
		return inv.fail(ctx, req, meta, start, code, message)
	}

	if inv.cache != nil {
		inv.cache.Put(cacheKey, payload)
	}

	return inv.succeed(ctx, req, meta, start, payload, "success")
}

// execute runs the tool under the configured time budget, converting panics
// into execution errors.
func (inv *Invoker) execute(ctx context.Context, t Tool, args map[string]any) (any, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	type outcome struct {
		payload any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: NewToolError(t.Name(), fmt.Sprintf("panic: %v", r), CodeExecutionError)}
			}
		}()
		payload, err := t.Call(ctx, args)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewToolError(t.Name(), "execution exceeded time budget", CodeTimeout)
		}
		return nil, ctx.Err()
	case out := <-done:
		return out.payload, out.err
	}
}

// succeed assembles a successful result and fires the after_execute hook.
func (inv *Invoker) succeed(ctx context.Context, req core.ToolCallRequest, meta Meta, start time.Time, payload any, status string) core.ToolCallResult {
	elapsed := time.Since(start)
	result := core.ToolCallResult{
		ID:      req.ID,
		Name:    req.Name,
		Success: true,
		Payload: payload,
		Elapsed: elapsed,
	}

	inv.logger.Info("tool.invoke.success",
		"tool", req.Name,
		"call_id", req.ID,
		"status", status,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	inv.dispatchObserved(ctx, hook.ToolAfterExecute, req, meta, hook.Payload{
		"tool_name":  req.Name,
		"call_id":    req.ID,
		"status":     status,
		"elapsed_ms": elapsed.Milliseconds(),
		"result":     payload,
	})

	return result
}

// fail assembles a failed result and fires the error and after_execute hooks.
func (inv *Invoker) fail(ctx context.Context, req core.ToolCallRequest, meta Meta, start time.Time, code, message string) core.ToolCallResult {
	elapsed := time.Since(start)
	result := core.ToolCallResult{
		ID:      req.ID,
		Name:    req.Name,
		Error:   message,
		Code:    code,
		Elapsed: elapsed,
	}

	inv.logger.Error("tool.invoke.error",
		"tool", req.Name,
		"call_id", req.ID,
		"code", code,
		"error", message,
	)
	inv.dispatchObserved(ctx, hook.ToolError, req, meta, hook.Payload{
		"tool_name": req.Name,
		"call_id":   req.ID,
		"code":      code,
		"error":     message,
	})
	inv.dispatchObserved(ctx, hook.ToolAfterExecute, req, meta, hook.Payload{
		"tool_name":  req.Name,
		"call_id":    req.ID,
		"status":     "error",
		"elapsed_ms": elapsed.Milliseconds(),
	})

	return result
}

// dispatchObserved fires an observational event whose handler failures are
// logged but never alter the already-computed result.
func (inv *Invoker) dispatchObserved(ctx context.Context, kind hook.Kind, req core.ToolCallRequest, meta Meta, payload hook.Payload) {
	ev := hook.NewEvent(kind, payload).WithRun(meta.RunID, meta.AgentName)
	if _, err := inv.hooks.Dispatch(ctx, ev); err != nil {
		inv.logger.Warn("tool.invoke.hook_error", "kind", string(kind), "tool", req.Name, "error", err)
	}
}
