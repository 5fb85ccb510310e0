// Package runner supervises agent runs: it assigns run identifiers, applies
// the wall-clock execution limit, owns cancellation handles and converts a
// deadline hit into an incomplete result carrying partial output. Lifecycle
// hooks are the loop's responsibility; the runner only brackets execution.
package runner
