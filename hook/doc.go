// Package hook implements the lifecycle hook pipeline that lets independently
// authored extensions observe and transform data flowing through the engine
// without the engine knowing their identities.
//
// Handlers register for one or more event kinds with an integer priority.
// Dispatch invokes the matching handlers as a pipeline: higher priority runs
// first, ties break by registration order, and each handler's returned
// payload becomes the next handler's input. A handler may pass the payload
// through unchanged, mutate it, short-circuit the surrounding engine stage
// with a substitute result, or fail. A failing handler aborts dispatch for
// that event with a core.HandlerError rather than crashing the run.
//
// The registry is append-only at setup time and treated as read-only during
// dispatch, which makes dispatch order reproducible given the same
// registration sequence.
package hook
