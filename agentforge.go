// Package agentforge provides a high-level façade over the conversation
// loop, hook pipeline, rate limiter and run supervisor, enabling
// construction of a working agent in a handful of lines. Most applications
// interact with this package by:
//  1. Creating a Forge via New() or NewFromConfig()
//  2. Registering tools and hook handlers
//  3. Running requests synchronously (Run) or with streaming (RunStream)
//
// The façade delegates execution to agent.Agent and runner.Runner while
// keeping setup ergonomics concise. Defaults are safe for local development
// and testing; production deployments typically supply a structured logger
// and rate limit windows.
package agentforge

import (
	"context"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/Rawaa-Al-Kabbani/agent-forge/agent"
	"github.com/Rawaa-Al-Kabbani/agent-forge/config"
	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model/anthropic"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model/openai"
	"github.com/Rawaa-Al-Kabbani/agent-forge/ratelimit"
	"github.com/Rawaa-Al-Kabbani/agent-forge/runner"
	"github.com/Rawaa-Al-Kabbani/agent-forge/tool"
)

// Options configures a Forge instance.
type Options struct {
	// Role, Objective, Description and Instruction describe the agent.
	Role        string
	Objective   string
	Description string
	Instruction string
	// Tools lists the capabilities exposed to the model.
	Tools []tool.Tool
	// Hooks receives every lifecycle event. Defaults to an empty pipeline.
	Hooks *hook.Pipeline
	// RateLimit is the global window; Overrides hold per-key windows.
	RateLimit ratelimit.Window
	Overrides map[string]ratelimit.Window
	// CacheTTL enables the tool result cache when positive.
	CacheTTL time.Duration
	// ToolTimeout caps each tool execution.
	ToolTimeout time.Duration
	// MaxExecutionTime caps each run's wall-clock duration.
	MaxExecutionTime time.Duration
	// MaxTurns is the default turn ceiling applied to requests that do not
	// set their own.
	MaxTurns int
	// Stream requests streaming model output for every run, surfacing
	// llm:stream_* events even when no chunk channel is supplied.
	Stream bool
	// Logger receives structured log entries. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Forge bundles one configured agent with its supervisor.
type Forge struct {
	agent    *agent.Agent
	runner   *runner.Runner
	hooks    *hook.Pipeline
	maxTurns int
	stream   bool
}

// New assembles a Forge around name and m with optional overrides.
func New(name string, m model.Model, optFns ...func(o *Options)) (*Forge, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Hooks == nil {
		opts.Hooks = hook.NewPipeline()
	}

	var limiter *ratelimit.Limiter
	if opts.RateLimit.Enabled() || len(opts.Overrides) > 0 {
		limiter = ratelimit.New(opts.RateLimit, func(o *ratelimit.Options) {
			if opts.Overrides != nil {
				o.Overrides = opts.Overrides
			}
			o.Logger = opts.Logger
		})
	}

	var cache *ratelimit.Cache
	if opts.CacheTTL > 0 {
		cache = ratelimit.NewCache(opts.CacheTTL)
	}

	a, err := agent.New(name, m, func(o *agent.Options) {
		o.Role = opts.Role
		o.Objective = opts.Objective
		o.Description = opts.Description
		o.Instruction = agent.NewInstructionFromText(opts.Instruction)
		o.Tools = opts.Tools
		o.Hooks = opts.Hooks
		o.Limiter = limiter
		o.Cache = cache
		o.Logger = opts.Logger
		o.ToolTimeout = opts.ToolTimeout
	})
	if err != nil {
		return nil, err
	}

	r := runner.New(a, func(o *runner.Options) {
		if opts.MaxExecutionTime > 0 {
			o.MaxExecutionTime = opts.MaxExecutionTime
		}
		o.Hooks = opts.Hooks
		o.Logger = opts.Logger
	})

	return &Forge{
		agent:    a,
		runner:   r,
		hooks:    opts.Hooks,
		maxTurns: opts.MaxTurns,
		stream:   opts.Stream,
	}, nil
}

// NewFromConfig assembles a Forge from a parsed configuration. Tools and
// hook handlers are registered afterwards via the returned instance.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*Forge, error) {
	m, err := buildModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	return New(cfg.Agent.Name, m, func(o *Options) {
		o.Role = cfg.Agent.Role
		o.Objective = cfg.Agent.Objective
		o.Description = cfg.Agent.Description
		o.Instruction = cfg.Agent.Instruction
		o.RateLimit = cfg.RateLimit.Global
		o.Overrides = cfg.RateLimit.Overrides
		o.CacheTTL = cfg.Cache.TTL
		o.ToolTimeout = cfg.Run.ToolTimeout
		o.MaxExecutionTime = cfg.Run.MaxExecutionTime
		o.MaxTurns = cfg.Run.MaxTurns
		o.Stream = cfg.Run.Stream
		logCfg := logging.DefaultLoggerConfig()
		logCfg.Level = logging.ParseLevel(cfg.Logging.Level)
		logCfg.Format = cfg.Logging.Format
		logCfg.AgentName = cfg.Agent.Name
		o.Logger = logging.NewLogger(logCfg)
		for _, fn := range optFns {
			fn(o)
		}
	})
}

// buildModel instantiates the provider named by cfg.
func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Name, "mock"), nil
	default:
		return nil, fmt.Errorf("agentforge: unknown model provider %q", cfg.Provider)
	}
}

// Agent returns the underlying agent.
func (f *Forge) Agent() *agent.Agent { return f.agent }

// Hooks returns the hook pipeline for registering handlers.
func (f *Forge) Hooks() *hook.Pipeline { return f.hooks }

// RegisterHandler subscribes handler to the given event kinds.
func (f *Forge) RegisterHandler(handler hook.Handler, kinds []hook.Kind, optFns ...func(o *hook.RegisterOptions)) (string, error) {
	return f.hooks.Register(handler, kinds, optFns...)
}

// applyRunDefaults fills request options left unset from the configured
// defaults.
func (f *Forge) applyRunDefaults(req *core.RunRequest) {
	if req.Options.MaxTurns <= 0 {
		req.Options.MaxTurns = f.maxTurns
	}
	if f.stream {
		req.Options.Stream = true
	}
}

// Run executes one request synchronously under supervision.
func (f *Forge) Run(ctx context.Context, req core.RunRequest) (*core.RunResult, error) {
	f.applyRunDefaults(&req)
	return f.runner.Run(ctx, req)
}

// RunStream executes one request and forwards streaming chunks to chunks.
func (f *Forge) RunStream(ctx context.Context, req core.RunRequest, chunks chan<- model.Response) (*core.RunResult, error) {
	f.applyRunDefaults(&req)
	return f.runner.RunStream(ctx, req, chunks)
}

// Cancel aborts the active run with the given ID.
func (f *Forge) Cancel(runID string) bool { return f.runner.Cancel(runID) }
