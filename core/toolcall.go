package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// ToolCallRequest describes a tool invocation requested by the model.
// Arguments is the raw JSON argument payload exactly as the provider
// emitted it; deserialization is deferred to the invoker so malformed
// payloads surface as argument errors rather than parse crashes.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ArgumentsMap deserializes the raw argument payload. An empty payload
// yields an empty map.
func (r ToolCallRequest) ArgumentsMap() (map[string]any, error) {
	if r.Arguments == "" {
		return map[string]any{}, nil
	}
	args := map[string]any{}
	if err := json.Unmarshal([]byte(r.Arguments), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments for %s: %w", r.Name, err)
	}
	return args, nil
}

// ToolCallResult captures the outcome of one tool invocation. Failed calls
// carry a structured error description instead of a payload; both shapes are
// appended to the conversation so the model can react to either.
type ToolCallResult struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Success bool          `json:"success"`
	Payload any           `json:"payload,omitempty"`
	Error   string        `json:"error,omitempty"`
	Code    string        `json:"code,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Message converts the result into a tool-role conversation message. The
// payload is JSON-encoded; failures are rendered as an error descriptor so
// the model sees a uniform shape either way.
func (r ToolCallResult) Message() Message {
	var content string
	if r.Success {
		if s, ok := r.Payload.(string); ok {
			content = s
		} else if b, err := json.Marshal(r.Payload); err == nil {
			content = string(b)
		} else {
			content = fmt.Sprintf("%v", r.Payload)
		}
	} else {
		desc := map[string]string{"error": r.Error}
		if r.Code != "" {
			desc["code"] = r.Code
		}
		b, _ := json.Marshal(desc)
		content = string(b)
	}
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: r.ID,
		ToolName:   r.Name,
	}
}
