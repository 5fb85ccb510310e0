package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the conversation
// loop: rendered instructions, the full message history and the tool surface.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []core.Message   `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry incremental text; the final chunk carries the complete assistant
// message including any tool call requests, the finish reason and usage.
type Response struct {
	Partial      bool             `json:"partial"`
	Message      core.Message     `json:"message"`
	FinishReason string           `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *core.TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
//
// Generate returns a response channel and an error channel. Both are closed
// by the implementation when generation finishes; at most one error is sent.
// Non-streaming requests emit a single final Response.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// scriptEntry is one scripted turn of a MockModel.
type scriptEntry struct {
	text      string
	toolCalls []core.ToolCallRequest
}

// MockModel is a deterministic in-memory Model for tests and examples. Turns
// are scripted in order: each Generate call consumes the next entry. With an
// exhausted or empty script it echoes the last message's content.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	script   []scriptEntry
	pos      int
	requests []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: provider, SupportsTools: true},
	}
}

// EnqueueText scripts a plain text assistant turn.
func (m *MockModel) EnqueueText(text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{text: text})
	return m
}

// EnqueueToolCalls scripts an assistant turn requesting the given tool calls.
func (m *MockModel) EnqueueToolCalls(calls ...core.ToolCallRequest) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{toolCalls: calls})
	return m
}

// Requests returns a copy of every request seen so far, in order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model. Streaming requests emit per-word partial chunks
// before the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var entry scriptEntry
	scripted := m.pos < len(m.script)
	if scripted {
		entry = m.script[m.pos]
		m.pos++
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}

		if !scripted {
			entry = scriptEntry{text: "Mock response to: " + req.Messages[len(req.Messages)-1].Content}
		}

		if len(entry.toolCalls) > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
			case respCh <- Response{
				Message:      core.Message{Role: core.RoleAssistant, ToolCalls: entry.toolCalls},
				FinishReason: "tool_calls",
				Usage:        mockUsage(req, ""),
			}:
			}
			return
		}

		if req.Stream {
			for _, word := range strings.Fields(entry.text) {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Message: core.NewAssistantMessage(word + " "),
				}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Message:      core.NewAssistantMessage(entry.text),
			FinishReason: "stop",
			Usage:        mockUsage(req, entry.text),
		}:
		}
	}()

	return respCh, errCh
}

// Info returns metadata describing the mock.
func (m *MockModel) Info() Info { return m.info }

// mockUsage derives stable word-count based usage numbers so tests can assert
// accumulation without depending on a real tokenizer.
func mockUsage(req Request, completion string) *core.TokenUsage {
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(strings.Fields(msg.Content))
	}
	out := len(strings.Fields(completion))
	return &core.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
	}
}

// FailingModel always reports err. It exists so error paths can be exercised
// without network access.
type FailingModel struct {
	Err error
}

// Generate implements Model by immediately emitting the configured error.
func (m *FailingModel) Generate(ctx context.Context, _ Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response)
	errCh := make(chan error, 1)
	go func() {
		defer close(respCh)
		defer close(errCh)
		errCh <- m.Err
	}()
	return respCh, errCh
}

// Info returns metadata describing the failing model.
func (m *FailingModel) Info() Info {
	return Info{Name: "failing", Provider: "mock"}
}
