package hook

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
)

// Registration describes one registered handler.
type Registration struct {
	// ID uniquely identifies the registration.
	ID string
	// Name is a human-readable label used in logs and errors.
	Name string
	// Priority orders dispatch; higher runs earlier.
	Priority int
	// Kinds lists the event kinds the handler subscribed to.
	Kinds []Kind

	handler Handler
	seq     int
}

// Result is the aggregate outcome of dispatching one event through the chain.
type Result struct {
	// Payload is the final payload after every handler ran (or the payload
	// as of the short-circuiting handler).
	Payload Payload
	// ShortCircuited reports whether a handler substituted the stage result.
	ShortCircuited bool
	// Value is the substitute result when ShortCircuited is true.
	Value any
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Logger receives debug entries for registration and dispatch.
	// Defaults to NoOpLogger.
	Logger logging.Logger
}

// RegisterOptions configures a single registration.
type RegisterOptions struct {
	// Name labels the handler in logs and errors. Defaults to the
	// registration ID.
	Name string
	// Priority orders dispatch; higher runs earlier. Defaults to 0.
	Priority int
}

// WithName sets the handler's label.
func WithName(name string) func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Name = name }
}

// WithPriority sets the handler's dispatch priority.
func WithPriority(priority int) func(o *RegisterOptions) {
	return func(o *RegisterOptions) { o.Priority = priority }
}

// Pipeline is the hook registry and dispatcher. Registrations are sorted per
// kind at insertion time so dispatch itself is a straight walk over an
// already ordered slice.
type Pipeline struct {
	mu       sync.RWMutex
	handlers map[Kind][]*Registration
	nextSeq  int
	logger   logging.Logger
}

// NewPipeline creates an empty pipeline.
func NewPipeline(optFns ...func(o *PipelineOptions)) *Pipeline {
	opts := PipelineOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Pipeline{
		handlers: make(map[Kind][]*Registration),
		logger:   opts.Logger,
	}
}

// Register subscribes handler to the given kinds and returns the registration
// ID. Registering with a nil handler or an empty kind set fails.
func (p *Pipeline) Register(handler Handler, kinds []Kind, optFns ...func(o *RegisterOptions)) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("hook: handler must not be nil")
	}
	if len(kinds) == 0 {
		return "", fmt.Errorf("hook: registration requires at least one event kind")
	}

	opts := RegisterOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reg := &Registration{
		ID:       core.NewID(),
		Name:     opts.Name,
		Priority: opts.Priority,
		Kinds:    append([]Kind(nil), kinds...),
		handler:  handler,
		seq:      p.nextSeq,
	}
	p.nextSeq++

	if reg.Name == "" {
		reg.Name = reg.ID
	}

	for _, kind := range kinds {
		chain := append(p.handlers[kind], reg)
		sort.SliceStable(chain, func(i, j int) bool {
			if chain[i].Priority != chain[j].Priority {
				return chain[i].Priority > chain[j].Priority
			}
			return chain[i].seq < chain[j].seq
		})
		p.handlers[kind] = chain
	}

	p.logger.Debug("hook.register",
		"handler", reg.Name,
		"priority", reg.Priority,
		"kinds", len(kinds),
	)

	return reg.ID, nil
}

// HandlerCount returns the number of handlers subscribed to kind.
func (p *Pipeline) HandlerCount(kind Kind) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers[kind])
}

// Dispatch runs every handler subscribed to the event's kind in priority
// order, threading the payload through the chain. The first short-circuit
// outcome stops the chain and is reported in the result. A handler error or
// panic aborts dispatch with a core.HandlerError.
func (p *Pipeline) Dispatch(ctx context.Context, ev *Event) (Result, error) {
	p.mu.RLock()
	chain := p.handlers[ev.Kind]
	p.mu.RUnlock()

	payload := ev.Payload
	if payload == nil {
		payload = Payload{}
	}

	for _, reg := range chain {
		ev.Payload = payload

		outcome, err := p.invoke(ctx, reg, ev)
		if err != nil {
			p.logger.Error("hook.dispatch.error",
				"handler", reg.Name,
				"kind", string(ev.Kind),
				"error", err,
			)
			return Result{Payload: payload}, &core.HandlerError{
				Handler: reg.Name,
				Kind:    string(ev.Kind),
				Err:     err,
			}
		}

		if outcome.shortCircuit {
			p.logger.Debug("hook.dispatch.short_circuit",
				"handler", reg.Name,
				"kind", string(ev.Kind),
			)
			return Result{Payload: payload, ShortCircuited: true, Value: outcome.value}, nil
		}

		if outcome.payload != nil {
			payload = outcome.payload
		}
	}

	return Result{Payload: payload}, nil
}

// invoke calls one handler, converting a panic into an error so a misbehaving
// extension cannot take down the run.
func (p *Pipeline) invoke(ctx context.Context, reg *Registration, ev *Event) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return reg.handler(ctx, ev)
}
