// Package agent implements the autonomous conversation loop: an agent owns a
// model, a tool registry and a hook pipeline, and drives the
// model-call / tool-execution cycle until the model produces a final text
// answer or a limit intervenes. Instructions can be static text, templated
// text or resolved dynamically per run.
package agent
