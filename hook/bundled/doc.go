// Package bundled provides ready-made hook handlers shipped with the
// framework: structured logging of lifecycle events and Prometheus metrics
// for runs, model calls and tool executions. Both are plain handlers; they
// attach through the same Register call as user-supplied extensions.
package bundled
