package core

import "fmt"

// ProviderError wraps a model client failure. Runs that hit one terminate in
// an error state and the failure is surfaced to the caller unwrapped-able via
// errors.As.
type ProviderError struct {
	Provider string // "openai", "anthropic", "mock", ...
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

// Unwrap exposes the underlying provider failure.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err as a ProviderError for the named provider.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// HandlerError records a hook handler failure. Dispatch for the affected
// event aborts and the error escalates to the nearest enclosing lifecycle
// error event; it never crashes an unrelated run.
type HandlerError struct {
	Handler string // registered handler name
	Kind    string // event kind being dispatched
	Err     error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("hook handler %s failed on %s: %v", e.Handler, e.Kind, e.Err)
}

// Unwrap exposes the underlying handler failure.
func (e *HandlerError) Unwrap() error { return e.Err }
