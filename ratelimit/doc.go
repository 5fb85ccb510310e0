// Package ratelimit provides per-key token bucket rate limiting for model and
// tool calls, plus an optional TTL-bounded result cache that lets callers skip
// both token acquisition and the underlying call on a fresh hit.
//
// Each key (the global key or a tool name with a configured override) owns one
// bucket guarded by its own mutex, so unrelated tools never contend. Buckets
// are configured from a per-second / per-minute window pair resolved to a
// single effective capacity and refill rate; the more restrictive window
// governs.
package ratelimit
