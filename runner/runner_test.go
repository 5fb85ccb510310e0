package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rawaa-Al-Kabbani/agent-forge/agent"
	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
	"github.com/Rawaa-Al-Kabbani/agent-forge/hook"
	"github.com/Rawaa-Al-Kabbani/agent-forge/model"
	"github.com/Rawaa-Al-Kabbani/agent-forge/tool"
)

// sleeperTool blocks until its context ends, simulating a hung dependency.
func sleeperTool() tool.Tool {
	return tool.NewFunctionTool("sleeper", "blocks until cancelled", map[string]any{"type": "object"},
		func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
}

func newAgent(t *testing.T, m model.Model, tools ...tool.Tool) *agent.Agent {
	t.Helper()

	a, err := agent.New("assistant", m, func(o *agent.Options) { o.Tools = tools })
	require.NoError(t, err)
	return a
}

func TestRunCompletesWithinLimit(t *testing.T) {
	m := model.NewMockModel("mock-1", "mock").EnqueueText("done")
	r := New(newAgent(t, m))

	result, err := r.Run(context.Background(), core.RunRequest{Input: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Output)
	assert.False(t, result.Incomplete)
	assert.Empty(t, r.ActiveRuns())
}

func TestRunDeadlineYieldsIncompleteTimeoutResult(t *testing.T) {
	m := model.NewMockModel("mock-1", "mock").
		EnqueueToolCalls(core.ToolCallRequest{ID: "c1", Name: "sleeper", Arguments: `{}`}).
		EnqueueText("never reached")
	r := New(newAgent(t, m, sleeperTool()))

	result, err := r.Run(context.Background(), core.RunRequest{
		Input:   "hang",
		Options: core.RunOptions{MaxExecutionTime: 60 * time.Millisecond},
	})
	require.NoError(t, err, "a deadline hit is a supervised termination, not a failure")
	require.NotNil(t, result)
	assert.True(t, result.Incomplete)
	assert.Equal(t, core.IncompleteTimeout, result.IncompleteReason)
	require.Len(t, result.ToolResults, 1)
	assert.Equal(t, tool.CodeTimeout, result.ToolResults[0].Code)
	assert.Empty(t, r.ActiveRuns())
}

func TestCancelAbortsActiveRun(t *testing.T) {
	m := model.NewMockModel("mock-1", "mock").
		EnqueueToolCalls(core.ToolCallRequest{ID: "c1", Name: "sleeper", Arguments: `{}`}).
		EnqueueText("never reached")
	r := New(newAgent(t, m, sleeperTool()))

	runID := core.NewID()
	go func() {
		// Wait for the run to register, then cancel it.
		for i := 0; i < 100; i++ {
			if r.Cancel(runID) {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	result, err := r.Run(context.Background(), core.RunRequest{RunID: runID, Input: "hang"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "cancellation must surface the partial result")
	assert.True(t, result.Incomplete)
	assert.Equal(t, core.IncompleteCancelled, result.IncompleteReason)
	assert.Empty(t, r.ActiveRuns())
}

func TestCancelUnknownRun(t *testing.T) {
	m := model.NewMockModel("mock-1", "mock")
	r := New(newAgent(t, m))
	assert.False(t, r.Cancel("missing"))
}

func TestNewFiresAgentRegister(t *testing.T) {
	hooks := hook.NewPipeline()
	var registered string
	_, err := hooks.Register(func(_ context.Context, ev *hook.Event) (hook.Outcome, error) {
		registered, _ = ev.Payload["agent"].(string)
		return hook.Continue(ev.Payload), nil
	}, []hook.Kind{hook.AgentRegister})
	require.NoError(t, err)

	m := model.NewMockModel("mock-1", "mock")
	New(newAgent(t, m), func(o *Options) { o.Hooks = hooks })
	assert.Equal(t, "assistant", registered)
}

func TestRunStreamForwardsChunks(t *testing.T) {
	m := model.NewMockModel("mock-1", "mock").EnqueueText("one two")
	r := New(newAgent(t, m))

	chunks := make(chan model.Response, 8)
	result, err := r.RunStream(context.Background(), core.RunRequest{Input: "stream"}, chunks)
	require.NoError(t, err)
	assert.Equal(t, "one two", result.Output)

	var received int
	for range chunks {
		received++
	}
	assert.Equal(t, 2, received)
}
