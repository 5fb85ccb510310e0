package core

import "fmt"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks the instruction message seeded at the start of a run.
	RoleSystem Role = "system"
	// RoleUser marks caller-provided input.
	RoleUser Role = "user"
	// RoleAssistant marks model output, including tool call requests.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool execution result fed back to the model.
	RoleTool Role = "tool"
)

// Message is one entry in a Conversation. An assistant message may carry
// tool call requests; a tool message carries the result of exactly one of
// them, correlated via ToolCallID.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user input message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolCallMessage creates an assistant message requesting tool executions.
func NewToolCallMessage(calls ...ToolCallRequest) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// Conversation is the ordered message sequence owned exclusively by one run.
// Messages are only ever appended, never reordered or deleted; Reset clears
// the sequence wholesale between runs. It is not safe for concurrent use;
// a single conversation loop is its only writer.
type Conversation struct {
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a message to the end of the conversation. A tool-result message
// is rejected unless a preceding assistant message requested a tool call with
// the same identifier, preserving the call/result pairing invariant.
func (c *Conversation) Append(msg Message) error {
	if msg.Role == RoleTool {
		if msg.ToolCallID == "" {
			return fmt.Errorf("tool message missing tool_call_id")
		}
		if !c.hasPendingCall(msg.ToolCallID) {
			return fmt.Errorf("tool message %s has no matching tool call", msg.ToolCallID)
		}
	}
	c.messages = append(c.messages, msg)
	return nil
}

// hasPendingCall reports whether an earlier assistant message requested the
// given tool call id.
func (c *Conversation) hasPendingCall(id string) bool {
	for _, m := range c.messages {
		if m.Role != RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			if tc.ID == id {
				return true
			}
		}
	}
	return false
}

// Messages returns a snapshot copy of the message sequence.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Last returns the most recent message, or false when the conversation is empty.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Reset clears the conversation for reuse across runs.
func (c *Conversation) Reset() { c.messages = nil }
