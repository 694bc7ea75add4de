package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/agent"
	"github.com/rosescout/rosescout/conversation"
	"github.com/rosescout/rosescout/testutil"
)

func newRegistry(t *testing.T, tools ...rosescout.Tool) *rosescout.Registry {
	t.Helper()
	reg := rosescout.NewRegistry()
	for _, tool := range tools {
		require.NoError(t, reg.Register(tool))
	}
	return reg
}

func reply(text string, calls ...rosescout.ToolCall) testutil.Step {
	return testutil.Step{Reply: &agent.Reply{Text: text, Calls: calls}}
}

func TestLoop_DirectAnswer(t *testing.T) {
	provider := testutil.NewScriptedProvider(reply("no tools needed"))
	loop := agent.NewLoop(provider, newRegistry(t), agent.LoopConfig{})

	res := loop.Run(context.Background(), "screen this customer")
	require.True(t, res.Completed())
	assert.Equal(t, agent.ReasonCompleted, res.Reason)
	assert.Equal(t, "no tools needed", res.FinalText)
	assert.Len(t, res.Transcript, 2)
}

func TestLoop_ToolRoundThenAnswer(t *testing.T) {
	search := &testutil.MockTool{
		NameValue: "web_search",
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			return []byte(`{"hits": 2}`), nil
		},
	}
	provider := testutil.NewScriptedProvider(
		reply("", rosescout.ToolCall{ID: "c1", ToolName: "web_search", Args: json.RawMessage(`{"query":"dr smith"}`)}),
		reply("final report"),
	)
	loop := agent.NewLoop(provider, newRegistry(t, search), agent.LoopConfig{})

	res := loop.Run(context.Background(), "screen dr smith")
	require.True(t, res.Completed())
	assert.Equal(t, "final report", res.FinalText)
	assert.Equal(t, 1, search.CallCount())

	// user, model(call), tool results, model(final)
	require.Len(t, res.Transcript, 4)
	trt, ok := res.Transcript[2].(conversation.ToolResultTurn)
	require.True(t, ok)
	require.Len(t, trt.Results, 1)
	assert.Equal(t, "c1", trt.Results[0].CallID)
}

func TestLoop_PartialBatchFailureContinues(t *testing.T) {
	fast := &testutil.MockTool{
		NameValue: "fast",
		ExecuteFunc: func(_ context.Context, _ []byte) ([]byte, error) {
			return []byte(`{"ok": true}`), nil
		},
	}
	slow := &testutil.MockTool{
		NameValue: "slow",
		ExecuteFunc: func(ctx context.Context, _ []byte) ([]byte, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return []byte(`{}`), nil
			}
		},
	}
	provider := testutil.NewScriptedProvider(
		reply("",
			rosescout.ToolCall{ID: "f", ToolName: "fast", Args: json.RawMessage(`{}`)},
			rosescout.ToolCall{ID: "s", ToolName: "slow", Args: json.RawMessage(`{}`)},
		),
		reply("done despite timeout"),
	)
	loop := agent.NewLoop(provider, newRegistry(t, fast, slow), agent.LoopConfig{
		RoundTimeout: 50 * time.Millisecond,
	})

	res := loop.Run(context.Background(), "go")
	require.True(t, res.Completed())
	assert.Equal(t, "done despite timeout", res.FinalText)

	trt, ok := res.Transcript[2].(conversation.ToolResultTurn)
	require.True(t, ok)
	require.Len(t, trt.Results, 2)
	assert.False(t, trt.Results[0].Failed())
	assert.True(t, trt.Results[1].Failed())
}

func TestLoop_ToolLimitReached(t *testing.T) {
	tool := &testutil.MockTool{NameValue: "probe"}
	// The model keeps requesting tools on every round.
	steps := make([]testutil.Step, 10)
	for i := range steps {
		steps[i] = reply("", rosescout.ToolCall{ID: callID(i), ToolName: "probe", Args: json.RawMessage(`{}`)})
	}
	provider := testutil.NewScriptedProvider(steps...)
	loop := agent.NewLoop(provider, newRegistry(t, tool), agent.LoopConfig{MaxRounds: 3})

	res := loop.Run(context.Background(), "go")
	assert.False(t, res.Completed())
	assert.Equal(t, agent.ReasonToolLimitReached, res.Reason)
	require.Error(t, res.Err)
	// Rounds 1..3 executed, the 4th request tripped the limit.
	assert.Equal(t, 3, tool.CallCount())
	assert.NotEmpty(t, res.Transcript)
}

func TestLoop_ProviderFailure(t *testing.T) {
	provider := testutil.NewScriptedProvider(testutil.Step{
		Err: agent.ErrServiceUnavailable,
	})
	loop := agent.NewLoop(provider, newRegistry(t), agent.LoopConfig{})

	res := loop.Run(context.Background(), "go")
	assert.Equal(t, agent.ReasonError, res.Reason)
	assert.ErrorIs(t, res.Err, agent.ErrServiceUnavailable)
	assert.Len(t, res.Transcript, 1)
}

func TestLoop_ToolChoiceResetAfterFirstRound(t *testing.T) {
	tool := &testutil.MockTool{NameValue: "probe"}
	provider := testutil.NewScriptedProvider(
		reply("", rosescout.ToolCall{ID: "1", ToolName: "probe", Args: json.RawMessage(`{}`)}),
		reply("final"),
	)
	loop := agent.NewLoop(provider, newRegistry(t, tool), agent.LoopConfig{
		ToolChoice: agent.ToolChoiceRequired,
	})

	res := loop.Run(context.Background(), "go")
	require.True(t, res.Completed())

	reqs := provider.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, agent.ToolChoiceRequired, reqs[0].ToolChoice)
	assert.Equal(t, agent.ToolChoiceAuto, reqs[1].ToolChoice)
}

func TestLoop_RequiredModeWithoutCallsFails(t *testing.T) {
	provider := testutil.NewScriptedProvider(reply("refuses to call tools"))
	loop := agent.NewLoop(provider, newRegistry(t), agent.LoopConfig{
		ToolChoice: agent.ToolChoiceRequired,
	})

	res := loop.Run(context.Background(), "go")
	assert.Equal(t, agent.ReasonError, res.Reason)
	require.Error(t, res.Err)
}

func TestLoop_ContextCancellation(t *testing.T) {
	provider := testutil.NewScriptedProvider(reply("never reached"))
	loop := agent.NewLoop(provider, newRegistry(t), agent.LoopConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := loop.Run(ctx, "go")
	assert.Equal(t, agent.ReasonError, res.Reason)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestLoop_UnknownToolBecomesFailureResult(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		reply("", rosescout.ToolCall{ID: "1", ToolName: "ghost", Args: json.RawMessage(`{}`)}),
		reply("recovered"),
	)
	loop := agent.NewLoop(provider, newRegistry(t), agent.LoopConfig{})

	res := loop.Run(context.Background(), "go")
	require.True(t, res.Completed())

	trt, ok := res.Transcript[2].(conversation.ToolResultTurn)
	require.True(t, ok)
	require.Len(t, trt.Results, 1)
	assert.ErrorIs(t, trt.Results[0].Err, rosescout.ErrToolNotFound)
	assert.True(t, errors.Is(trt.Results[0].Err, rosescout.ErrToolNotFound))
}

func callID(i int) string {
	return string(rune('a' + i))
}
