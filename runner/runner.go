package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Rawaa-Al-Kabbani/agent-forge/agent"
	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model"
)

// DefaultMaxExecutionTime caps runs whose request does not set a limit.
const DefaultMaxExecutionTime = 5 * time.Minute

// Options holds configuration overrides passed to New.
type Options struct {
	// MaxExecutionTime is the default wall-clock cap per run. Individual
	// requests may override it downward or upward.
	MaxExecutionTime time.Duration
	// Hooks receives the framework and registration events the runner fires.
	Hooks *hook.Pipeline
	// Logger receives supervision log entries. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Runner supervises the execution of one agent's runs. Public methods are
// safe for concurrent use; each run is independent.
type Runner struct {
	agent            *agent.Agent
	maxExecutionTime time.Duration
	hooks            *hook.Pipeline
	logger           logging.Logger

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner for a. The agent:register event fires once here so
// handlers can observe the wiring.
func New(a *agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxExecutionTime: DefaultMaxExecutionTime,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Hooks == nil {
		opts.Hooks = hook.NewPipeline()
	}

	r := &Runner{
		agent:            a,
		maxExecutionTime: opts.MaxExecutionTime,
		hooks:            opts.Hooks,
		logger:           opts.Logger,
		activeRuns:       make(map[string]context.CancelFunc),
	}

	ev := hook.NewEvent(hook.AgentRegister, hook.Payload{
		"agent": a.Name(),
		"model": a.Model().Name,
	})
	if _, err := r.hooks.Dispatch(context.Background(), ev); err != nil {
		r.logger.Warn("runner.register.hook_error", "agent", a.Name(), "error", err)
	}

	return r
}

// Run executes one request to completion under the execution time limit.
//
// A deadline hit does not surface as an error: the partial result the loop
// salvaged is returned, marked incomplete with reason "timeout". Explicit
// cancellation via Cancel or the caller's context is reported as an error
// alongside the partial result.
func (r *Runner) Run(ctx context.Context, req core.RunRequest) (*core.RunResult, error) {
	return r.run(ctx, req, nil)
}

// RunStream behaves like Run and forwards streaming chunks to chunks as they
// arrive. Stream is implied on the request options.
func (r *Runner) RunStream(ctx context.Context, req core.RunRequest, chunks chan<- model.Response) (*core.RunResult, error) {
	req.Options.Stream = true
	return r.run(ctx, req, chunks)
}

func (r *Runner) run(ctx context.Context, req core.RunRequest, chunks chan<- model.Response) (*core.RunResult, error) {
	if req.RunID == "" {
		req.RunID = core.NewID()
	}

	limit := req.Options.MaxExecutionTime
	if limit <= 0 {
		limit = r.maxExecutionTime
	}

	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	r.mu.Lock()
	r.activeRuns[req.RunID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, req.RunID)
		r.mu.Unlock()
	}()

	r.logger.Info("runner.run.start", "run_id", req.RunID, "agent", r.agent.Name(), "limit_ms", limit.Milliseconds())

	result, err := r.agent.RunWithChunks(runCtx, req, chunks)
	if err == nil {
		return result, nil
	}

	// The loop salvages a partial result on cancellation. A deadline hit is a
	// supervised termination, not a failure; it yields the incomplete result.
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && result != nil {
		result.Incomplete = true
		result.IncompleteReason = core.IncompleteTimeout
		r.logger.Warn("runner.run.timeout", "run_id", req.RunID, "elapsed_ms", result.Elapsed.Milliseconds())
		return result, nil
	}

	r.logger.Error("runner.run.error", "run_id", req.RunID, "error", err)
	return result, err
}

// Cancel aborts the active run with the given ID. It reports whether a run
// was found.
func (r *Runner) Cancel(runID string) bool {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()

	if ok {
		r.logger.Info("runner.run.cancel", "run_id", runID)
		cancel()
	}
	return ok
}

// ActiveRuns returns the IDs of runs currently executing.
func (r *Runner) ActiveRuns() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.activeRuns))
	for id := range r.activeRuns {
		ids = append(ids, id)
	}
	return ids
}
