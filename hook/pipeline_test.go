package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rawaa-Al-Kabbani/agent-forge/core"
)

// appendHandler records its label in the payload's "order" slice.
func appendHandler(label string) Handler {
	return func(_ context.Context, ev *Event) (Outcome, error) {
		order, _ := ev.Payload["order"].([]string)
		ev.Payload["order"] = append(order, label)
		return Continue(ev.Payload), nil
	}
}

func TestDispatchOrdersByPriorityThenRegistration(t *testing.T) {
	p := NewPipeline()

	_, err := p.Register(appendHandler("low"), []Kind{ToolBeforeExecute}, WithPriority(1))
	require.NoError(t, err)
	_, err = p.Register(appendHandler("high"), []Kind{ToolBeforeExecute}, WithPriority(5))
	require.NoError(t, err)
	_, err = p.Register(appendHandler("low_late"), []Kind{ToolBeforeExecute}, WithPriority(1))
	require.NoError(t, err)

	// Same registry, same order on every dispatch.
	for i := 0; i < 3; i++ {
		res, err := p.Dispatch(context.Background(), NewEvent(ToolBeforeExecute, Payload{}))
		require.NoError(t, err)
		assert.Equal(t, []string{"high", "low", "low_late"}, res.Payload["order"])
	}
}

func TestDispatchThreadsPayloadThroughChain(t *testing.T) {
	p := NewPipeline()

	_, err := p.Register(func(_ context.Context, ev *Event) (Outcome, error) {
		next := ev.Payload.Clone()
		next["count"] = next["count"].(int) + 1
		return Continue(next), nil
	}, []Kind{ModelBeforeRequest}, WithPriority(10))
	require.NoError(t, err)

	_, err = p.Register(func(_ context.Context, ev *Event) (Outcome, error) {
		// The second handler must observe the first handler's change.
		assert.Equal(t, 1, ev.Payload["count"])
		next := ev.Payload.Clone()
		next["count"] = next["count"].(int) + 1
		return Continue(next), nil
	}, []Kind{ModelBeforeRequest})
	require.NoError(t, err)

	res, err := p.Dispatch(context.Background(), NewEvent(ModelBeforeRequest, Payload{"count": 0}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Payload["count"])
	assert.False(t, res.ShortCircuited)
}

func TestDispatchShortCircuitStopsChain(t *testing.T) {
	p := NewPipeline()
	ran := false

	_, err := p.Register(func(_ context.Context, _ *Event) (Outcome, error) {
		return ShortCircuit("cached response"), nil
	}, []Kind{ModelBeforeRequest}, WithPriority(10))
	require.NoError(t, err)

	_, err = p.Register(func(_ context.Context, ev *Event) (Outcome, error) {
		ran = true
		return Continue(ev.Payload), nil
	}, []Kind{ModelBeforeRequest})
	require.NoError(t, err)

	res, err := p.Dispatch(context.Background(), NewEvent(ModelBeforeRequest, Payload{}))
	require.NoError(t, err)
	assert.True(t, res.ShortCircuited)
	assert.Equal(t, "cached response", res.Value)
	assert.False(t, ran, "handlers after a short-circuit must not run")
}

func TestDispatchHandlerErrorAbortsWithHandlerError(t *testing.T) {
	p := NewPipeline()
	boom := errors.New("boom")

	_, err := p.Register(func(_ context.Context, _ *Event) (Outcome, error) {
		return Outcome{}, boom
	}, []Kind{AgentBeforeRun}, WithName("failing"), WithPriority(10))
	require.NoError(t, err)

	ran := false
	_, err = p.Register(func(_ context.Context, ev *Event) (Outcome, error) {
		ran = true
		return Continue(ev.Payload), nil
	}, []Kind{AgentBeforeRun})
	require.NoError(t, err)

	_, err = p.Dispatch(context.Background(), NewEvent(AgentBeforeRun, Payload{}))
	require.Error(t, err)

	var herr *core.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "failing", herr.Handler)
	assert.Equal(t, string(AgentBeforeRun), herr.Kind)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran, "handlers after a failure must not run")
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	p := NewPipeline()

	_, err := p.Register(func(_ context.Context, _ *Event) (Outcome, error) {
		panic("bad handler")
	}, []Kind{ToolAfterExecute}, WithName("panicky"))
	require.NoError(t, err)

	_, err = p.Dispatch(context.Background(), NewEvent(ToolAfterExecute, Payload{}))
	require.Error(t, err)

	var herr *core.HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "panicky", herr.Handler)
	assert.Contains(t, err.Error(), "panic")
}

func TestRegisterValidation(t *testing.T) {
	p := NewPipeline()

	_, err := p.Register(nil, []Kind{AgentBeforeRun})
	assert.Error(t, err)

	_, err = p.Register(appendHandler("x"), nil)
	assert.Error(t, err)
}

func TestDispatchOnlyInvokesSubscribedKinds(t *testing.T) {
	p := NewPipeline()

	_, err := p.Register(appendHandler("tool"), []Kind{ToolBeforeExecute})
	require.NoError(t, err)

	res, err := p.Dispatch(context.Background(), NewEvent(ModelBeforeRequest, Payload{}))
	require.NoError(t, err)
	assert.Nil(t, res.Payload["order"])
	assert.Equal(t, 1, p.HandlerCount(ToolBeforeExecute))
	assert.Equal(t, 0, p.HandlerCount(ModelBeforeRequest))
}

func TestDispatchWithNoHandlersPassesPayloadThrough(t *testing.T) {
	p := NewPipeline()

	res, err := p.Dispatch(context.Background(), NewEvent(AgentAfterRun, Payload{"k": "v"}))
	require.NoError(t, err)
	assert.Equal(t, "v", res.Payload["k"])
	assert.False(t, res.ShortCircuited)
}

func TestHandlerSubscribedToMultipleKinds(t *testing.T) {
	p := NewPipeline()

	count := 0
	_, err := p.Register(func(_ context.Context, ev *Event) (Outcome, error) {
		count++
		return Continue(ev.Payload), nil
	}, []Kind{ToolBeforeExecute, ToolAfterExecute})
	require.NoError(t, err)

	_, err = p.Dispatch(context.Background(), NewEvent(ToolBeforeExecute, Payload{}))
	require.NoError(t, err)
	_, err = p.Dispatch(context.Background(), NewEvent(ToolAfterExecute, Payload{}))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
