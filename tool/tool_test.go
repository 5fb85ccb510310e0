package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/internal/util"
	"github.com/Rawaa-Al-Kabbani/agent-forge/ratelimit"
)

func sumTool() *FunctionTool {
	return NewFunctionTool(
		"calculate_sum",
		"Calculate the sum of two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)
}

func newInvoker(t *testing.T, tools []Tool, optFns ...func(o *InvokerOptions)) *Invoker {
	t.Helper()

	registry := NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}
	return NewInvoker(registry, optFns...)
}

func TestFunctionToolCall(t *testing.T) {
	result, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionToolValidationListsEveryMissingField(t *testing.T) {
	_, err := sumTool().Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeInvalidArguments, toolErr.Code)

	verrs, ok := toolErr.Details.(util.ValidationErrors)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a", "b"}, verrs.Fields())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(sumTool()))
	assert.Error(t, registry.Register(sumTool()))
}

func TestRegistryDefinitionsSortedByName(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, registry.Register(NewFunctionTool(name, name, map[string]any{"type": "object"},
			func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })))
	}

	defs := registry.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "mid", defs[1].Function.Name)
	assert.Equal(t, "zeta", defs[2].Function.Name)
}

func TestInvokeUnknownToolFailsStructurally(t *testing.T) {
	inv := newInvoker(t, nil)

	result := inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c1", Name: "missing"}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeToolNotFound, result.Code)
	assert.Equal(t, "c1", result.ID)
}

func TestInvokeMalformedArguments(t *testing.T) {
	inv := newInvoker(t, []Tool{sumTool()})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{
		ID: "c1", Name: "calculate_sum", Arguments: `{"a": `,
	}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeInvalidArguments, result.Code)
}

func TestInvokeSchemaViolation(t *testing.T) {
	inv := newInvoker(t, []Tool{sumTool()})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{
		ID: "c1", Name: "calculate_sum", Arguments: `{"a": 1}`,
	}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeInvalidArguments, result.Code)
	assert.Contains(t, result.Error, "b")
}

func TestInvokeInvalidArgumentsConsumeNoToken(t *testing.T) {
	executed := false
	tl := NewFunctionTool("strict", "strict tool",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"q": map[string]any{"type": "string"},
			},
			"required": []string{"q"},
		},
		func(_ context.Context, _ map[string]any) (any, error) {
			executed = true
			return "real", nil
		})

	limiter := ratelimit.New(ratelimit.Window{PerSecond: 1})
	inv := newInvoker(t, []Tool{tl}, func(o *InvokerOptions) {
		o.Limiter = limiter
	})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{
		ID: "c1", Name: "strict", Arguments: `{}`,
	}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeInvalidArguments, result.Code)
	assert.False(t, executed, "invalid arguments must never reach the tool")
	// Validation precedes acquisition, so the bucket is still full.
	assert.InDelta(t, 1.0, limiter.Tokens("strict"), 0.001)
}

func TestInvokeSuccess(t *testing.T) {
	inv := newInvoker(t, []Tool{sumTool()})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{
		ID: "c1", Name: "calculate_sum", Arguments: `{"a": 2, "b": 3}`,
	}, Meta{RunID: "run-1"})
	require.True(t, result.Success)
	assert.Equal(t, 5.0, result.Payload)
	assert.Empty(t, result.Code)
}

func TestInvokeShortCircuitSkipsExecutionAndTokens(t *testing.T) {
	executed := false
	tl := NewFunctionTool("guarded", "guarded tool", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			executed = true
			return "real", nil
		})

	pipeline := hook.NewPipeline()
	_, err := pipeline.Register(func(_ context.Context, _ *hook.Event) (hook.Outcome, error) {
		return hook.ShortCircuit("stubbed"), nil
	}, []hook.Kind{hook.ToolBeforeExecute})
	require.NoError(t, err)

	afterFired := false
	_, err = pipeline.Register(func(_ context.Context, ev *hook.Event) (hook.Outcome, error) {
		afterFired = true
		assert.Equal(t, "short_circuit", ev.Payload["status"])
		return hook.Continue(ev.Payload), nil
	}, []hook.Kind{hook.ToolAfterExecute})
	require.NoError(t, err)

	limiter := ratelimit.New(ratelimit.Window{PerSecond: 1})
	inv := newInvoker(t, []Tool{tl}, func(o *InvokerOptions) {
		o.Hooks = pipeline
		o.Limiter = limiter
	})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c1", Name: "guarded"}, Meta{})
	require.True(t, result.Success)
	assert.Equal(t, "stubbed", result.Payload)
	assert.False(t, executed, "short-circuit must skip tool execution")
	assert.True(t, afterFired, "after_execute must fire even when short-circuited")
	// No token was consumed, so the bucket is still full.
	assert.InDelta(t, 1.0, limiter.Tokens("guarded"), 0.001)
}

func TestInvokeCacheHitSkipsExecutionAndTokens(t *testing.T) {
	calls := 0
	tl := NewFunctionTool("lookup", "cached tool", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			calls++
			return fmt.Sprintf("result-%d", calls), nil
		})

	limiter := ratelimit.New(ratelimit.Window{PerSecond: 2, PerMinute: 120})
	cache := ratelimit.NewCache(time.Minute)
	inv := newInvoker(t, []Tool{tl}, func(o *InvokerOptions) {
		o.Limiter = limiter
		o.Cache = cache
	})

	req := core.ToolCallRequest{ID: "c1", Name: "lookup", Arguments: `{}`}

	first := inv.Invoke(context.Background(), req, Meta{})
	require.True(t, first.Success)
	assert.Equal(t, "result-1", first.Payload)

	second := inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c2", Name: "lookup", Arguments: `{}`}, Meta{})
	require.True(t, second.Success)
	assert.Equal(t, "result-1", second.Payload, "identical input must be served from cache")
	assert.Equal(t, 1, calls)
	// Only the first invocation consumed a token.
	assert.InDelta(t, 1.0, limiter.Tokens("lookup"), 0.1)
}

func TestInvokeToolFailureBecomesResult(t *testing.T) {
	tl := NewFunctionTool("flaky", "failing tool", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})
	inv := newInvoker(t, []Tool{tl})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c1", Name: "flaky"}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeExecutionError, result.Code)
	assert.Contains(t, result.Error, "backend unavailable")
}

func TestInvokeRecoversPanic(t *testing.T) {
	tl := NewFunctionTool("panicky", "panicking tool", map[string]any{"type": "object"},
		func(_ context.Context, _ map[string]any) (any, error) {
			panic("boom")
		})
	inv := newInvoker(t, []Tool{tl})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c1", Name: "panicky"}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeExecutionError, result.Code)
	assert.Contains(t, result.Error, "panic")
}

func TestInvokeTimeout(t *testing.T) {
	tl := NewFunctionTool("slow", "slow tool", map[string]any{"type": "object"},
		func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		})
	inv := newInvoker(t, []Tool{tl}, func(o *InvokerOptions) {
		o.Timeout = 30 * time.Millisecond
	})

	result := inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c1", Name: "slow"}, Meta{})
	assert.False(t, result.Success)
	assert.Equal(t, CodeTimeout, result.Code)
}

func TestInvokeFailureFiresErrorHook(t *testing.T) {
	pipeline := hook.NewPipeline()
	var gotCode string
	_, err := pipeline.Register(func(_ context.Context, ev *hook.Event) (hook.Outcome, error) {
		gotCode, _ = ev.Payload["code"].(string)
		return hook.Continue(ev.Payload), nil
	}, []hook.Kind{hook.ToolError})
	require.NoError(t, err)

	inv := newInvoker(t, nil, func(o *InvokerOptions) { o.Hooks = pipeline })

	inv.Invoke(context.Background(), core.ToolCallRequest{ID: "c1", Name: "missing"}, Meta{})
	assert.Equal(t, CodeToolNotFound, gotCode)
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	type SumArgs struct {
		A float64 `json:"a" description:"First addend"`
		B float64 `json:"b" description:"Second addend"`
	}

	tl := NewFunctionToolFromStruct("calculate_sum", "Calculate the sum of two numbers", SumArgs{},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	params := tl.Parameters()
	assert.Equal(t, "object", params["type"])

	_, err := tl.Call(context.Background(), map[string]any{"a": 1.0})
	require.Error(t, err)

	result, err := tl.Call(context.Background(), map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)
}
