// Package model defines the provider-agnostic language model interface used
// by agents, plus a deterministic mock for tests and examples. Concrete
// providers live in the subpackages openai and anthropic; each adapts the
// normalized Request/Response structures to its vendor SDK.
package model
