package bundled

import (
	"context"

	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/logging"
)

// LoggingHandler emits a structured log entry for every event it observes.
// It never mutates the payload and never short-circuits, so it can run at
// any priority without affecting other handlers.
type LoggingHandler struct {
	logger logging.Logger
}

// NewLoggingHandler creates a logging handler backed by logger.
func NewLoggingHandler(logger logging.Logger) *LoggingHandler {
	if logger == nil {
		logger = logging.NewDefaultSlogLogger()
	}
	return &LoggingHandler{logger: logger}
}

// Kinds returns the event kinds the handler should be registered for.
func (h *LoggingHandler) Kinds() []hook.Kind {
	return []hook.Kind{
		hook.AgentBeforeRun, hook.AgentAfterRun, hook.AgentError,
		hook.ModelBeforeRequest, hook.ModelAfterRequest,
		hook.ToolBeforeExecute, hook.ToolAfterExecute, hook.ToolError,
		hook.StreamStart, hook.StreamEnd,
	}
}

// Handle logs the event kind plus a stable subset of payload fields.
func (h *LoggingHandler) Handle(_ context.Context, ev *hook.Event) (hook.Outcome, error) {
	args := []any{"run_id", ev.RunID, "agent", ev.AgentName}
	for _, key := range []string{"tool_name", "model", "provider", "status", "elapsed_ms", "error"} {
		if v, ok := ev.Payload[key]; ok {
			args = append(args, key, v)
		}
	}

	switch ev.Kind {
	case hook.AgentError, hook.ToolError:
		h.logger.Error("hook."+string(ev.Kind), args...)
	default:
		h.logger.Debug("hook."+string(ev.Kind), args...)
	}

	return hook.Continue(ev.Payload), nil
}

// Attach registers the handler with pipeline at the given priority.
func (h *LoggingHandler) Attach(pipeline *hook.Pipeline, priority int) error {
	_, err := pipeline.Register(h.Handle, h.Kinds(),
		hook.WithName("bundled.logging"),
		hook.WithPriority(priority),
	)
	return err
}
