package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
)

// drain collects every response from a Generate call and the terminal error.
func drain(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()

	var responses []Response
	for r := range respCh {
		responses = append(responses, r)
	}
	return responses, <-errCh
}

func TestMockModelScriptedTextTurn(t *testing.T) {
	m := NewMockModel("mock-1", "mock").EnqueueText("hello there")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("hi")},
	})
	responses, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	final := responses[0]
	assert.False(t, final.Partial)
	assert.Equal(t, core.RoleAssistant, final.Message.Role)
	assert.Equal(t, "hello there", final.Message.Content)
	assert.Equal(t, "stop", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 1, final.Usage.PromptTokens)
	assert.Equal(t, 2, final.Usage.CompletionTokens)
}

func TestMockModelScriptedToolCallTurn(t *testing.T) {
	call := core.ToolCallRequest{ID: "call_1", Name: "search", Arguments: `{"query":"go"}`}
	m := NewMockModel("mock-1", "mock").EnqueueToolCalls(call)

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("find go docs")},
	})
	responses, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)

	assert.Equal(t, "tool_calls", responses[0].FinishReason)
	require.Len(t, responses[0].Message.ToolCalls, 1)
	assert.Equal(t, call, responses[0].Message.ToolCalls[0])
}

func TestMockModelStreamingEmitsPartialsThenFinal(t *testing.T) {
	m := NewMockModel("mock-1", "mock").EnqueueText("one two three")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("count")},
		Stream:   true,
	})
	responses, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 4)

	for _, r := range responses[:3] {
		assert.True(t, r.Partial)
	}
	assert.False(t, responses[3].Partial)
	assert.Equal(t, "one two three", responses[3].Message.Content)
}

func TestMockModelEchoesWhenScriptExhausted(t *testing.T) {
	m := NewMockModel("mock-1", "mock")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("ping")},
	})
	responses, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "Mock response to: ping", responses[0].Message.Content)
}

func TestMockModelRejectsEmptyRequest(t *testing.T) {
	m := NewMockModel("mock-1", "mock")

	respCh, errCh := m.Generate(context.Background(), Request{})
	responses, err := drain(t, respCh, errCh)
	assert.Empty(t, responses)
	assert.Error(t, err)
}

func TestMockModelRecordsRequests(t *testing.T) {
	m := NewMockModel("mock-1", "mock").EnqueueText("a").EnqueueText("b")

	for _, input := range []string{"first", "second"} {
		respCh, errCh := m.Generate(context.Background(), Request{
			Messages: []core.Message{core.NewUserMessage(input)},
		})
		_, err := drain(t, respCh, errCh)
		require.NoError(t, err)
	}

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "first", reqs[0].Messages[0].Content)
	assert.Equal(t, "second", reqs[1].Messages[0].Content)
}

func TestFailingModelSurfacesError(t *testing.T) {
	boom := errors.New("provider down")
	m := &FailingModel{Err: boom}

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.NewUserMessage("hi")},
	})
	responses, err := drain(t, respCh, errCh)
	assert.Empty(t, responses)
	assert.ErrorIs(t, err, boom)
}
