package bundled

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
)

// Metrics holds the Prometheus collectors updated by the MetricsHandler.
type Metrics struct {
	// RunCounter counts agent runs.
	// Labels: agent, status (success|error|incomplete)
	RunCounter *prometheus.CounterVec

	// RunDuration measures run wall time in seconds.
	// Labels: agent
	RunDuration *prometheus.HistogramVec

	// ModelRequestCounter counts model calls.
	// Labels: provider, model, status (success|error|short_circuit)
	ModelRequestCounter *prometheus.CounterVec

	// ModelTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	ModelTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error|cached|short_circuit)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors with reg. Passing nil uses
// the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentforge_runs_total",
				Help: "Total number of agent runs by agent and status",
			},
			[]string{"agent", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentforge_run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"agent"},
		),
		ModelRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentforge_model_requests_total",
				Help: "Total number of model requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		ModelTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentforge_model_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentforge_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentforge_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
	}
}

// MetricsHandler translates lifecycle events into Prometheus metric updates.
// Like the logging handler it is purely observational.
type MetricsHandler struct {
	metrics *Metrics
}

// NewMetricsHandler creates a metrics handler updating m.
func NewMetricsHandler(m *Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: m}
}

// Kinds returns the event kinds the handler should be registered for.
func (h *MetricsHandler) Kinds() []hook.Kind {
	return []hook.Kind{
		hook.AgentAfterRun, hook.AgentError,
		hook.ModelAfterRequest,
		hook.ToolAfterExecute, hook.ToolError,
	}
}

// Handle updates the collectors matching the event kind. Missing payload
// fields fall back to empty labels rather than failing the dispatch.
func (h *MetricsHandler) Handle(_ context.Context, ev *hook.Event) (hook.Outcome, error) {
	switch ev.Kind {
	case hook.AgentAfterRun:
		h.metrics.RunCounter.WithLabelValues(ev.AgentName, payloadString(ev.Payload, "status")).Inc()
		if secs, ok := payloadSeconds(ev.Payload, "elapsed_ms"); ok {
			h.metrics.RunDuration.WithLabelValues(ev.AgentName).Observe(secs)
		}

	case hook.AgentError:
		h.metrics.RunCounter.WithLabelValues(ev.AgentName, "error").Inc()

	case hook.ModelAfterRequest:
		provider := payloadString(ev.Payload, "provider")
		model := payloadString(ev.Payload, "model")
		h.metrics.ModelRequestCounter.WithLabelValues(provider, model, payloadString(ev.Payload, "status")).Inc()
		if n, ok := payloadFloat(ev.Payload, "prompt_tokens"); ok {
			h.metrics.ModelTokensUsed.WithLabelValues(provider, model, "prompt").Add(n)
		}
		if n, ok := payloadFloat(ev.Payload, "completion_tokens"); ok {
			h.metrics.ModelTokensUsed.WithLabelValues(provider, model, "completion").Add(n)
		}

	case hook.ToolAfterExecute:
		name := payloadString(ev.Payload, "tool_name")
		h.metrics.ToolExecutionCounter.WithLabelValues(name, payloadString(ev.Payload, "status")).Inc()
		if secs, ok := payloadSeconds(ev.Payload, "elapsed_ms"); ok {
			h.metrics.ToolExecutionDuration.WithLabelValues(name).Observe(secs)
		}

	case hook.ToolError:
		h.metrics.ToolExecutionCounter.WithLabelValues(payloadString(ev.Payload, "tool_name"), "error").Inc()
	}

	return hook.Continue(ev.Payload), nil
}

// Attach registers the handler with pipeline at the given priority.
func (h *MetricsHandler) Attach(pipeline *hook.Pipeline, priority int) error {
	_, err := pipeline.Register(h.Handle, h.Kinds(),
		hook.WithName("bundled.metrics"),
		hook.WithPriority(priority),
	)
	return err
}

func payloadString(p hook.Payload, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

func payloadFloat(p hook.Payload, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func payloadSeconds(p hook.Payload, key string) (float64, bool) {
	ms, ok := payloadFloat(p, key)
	if !ok {
		return 0, false
	}
	return ms / 1000.0, true
}
