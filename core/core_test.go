package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendOrdering(t *testing.T) {
	conv := NewConversation()
	require.NoError(t, conv.Append(NewSystemMessage("sys")))
	require.NoError(t, conv.Append(NewUserMessage("hi")))
	require.NoError(t, conv.Append(NewAssistantMessage("hello")))

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, RoleAssistant, msgs[2].Role)

	last, ok := conv.Last()
	assert.True(t, ok)
	assert.Equal(t, "hello", last.Content)
}

func TestConversationRejectsOrphanToolResult(t *testing.T) {
	conv := NewConversation()
	require.NoError(t, conv.Append(NewUserMessage("hi")))

	err := conv.Append(ToolCallResult{ID: "call-1", Name: "echo", Success: true, Payload: "x"}.Message())
	assert.Error(t, err)

	// After the matching call is recorded the result is accepted.
	require.NoError(t, conv.Append(NewToolCallMessage(ToolCallRequest{ID: "call-1", Name: "echo"})))
	assert.NoError(t, conv.Append(ToolCallResult{ID: "call-1", Name: "echo", Success: true, Payload: "x"}.Message()))
}

func TestConversationReset(t *testing.T) {
	conv := NewConversation()
	require.NoError(t, conv.Append(NewUserMessage("hi")))
	assert.Equal(t, 1, conv.Len())
	conv.Reset()
	assert.Equal(t, 0, conv.Len())
	_, ok := conv.Last()
	assert.False(t, ok)
}

func TestConversationMessagesSnapshot(t *testing.T) {
	conv := NewConversation()
	require.NoError(t, conv.Append(NewUserMessage("hi")))
	snap := conv.Messages()
	snap[0].Content = "mutated"
	msgs := conv.Messages()
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestToolCallRequestArgumentsMap(t *testing.T) {
	req := ToolCallRequest{ID: "c1", Name: "sum", Arguments: `{"a":1,"b":2}`}
	args, err := req.ArgumentsMap()
	require.NoError(t, err)
	assert.Equal(t, 1.0, args["a"])

	empty := ToolCallRequest{ID: "c2", Name: "noop"}
	args, err = empty.ArgumentsMap()
	require.NoError(t, err)
	assert.Empty(t, args)

	bad := ToolCallRequest{ID: "c3", Name: "sum", Arguments: "{"}
	_, err = bad.ArgumentsMap()
	assert.Error(t, err)
}

func TestToolCallResultMessage(t *testing.T) {
	ok := ToolCallResult{ID: "c1", Name: "sum", Success: true, Payload: map[string]any{"total": 3}, Elapsed: time.Millisecond}
	msg := ok.Message()
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
	assert.Contains(t, msg.Content, "total")

	failed := ToolCallResult{ID: "c2", Name: "sum", Success: false, Error: "boom", Code: "EXECUTION_ERROR"}
	msg = failed.Message()
	assert.Contains(t, msg.Content, "boom")
	assert.Contains(t, msg.Content, "EXECUTION_ERROR")
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	u.Add(TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	assert.Equal(t, TokenUsage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}, u)
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
