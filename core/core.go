package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for runs and tool calls.
//
// This function creates a UUID-based unique identifier that can be used
// for correlation throughout the framework.
func NewID() string { return uuid.NewString() }
