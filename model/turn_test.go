package model_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"skycast/model"
	"skycast/provider/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newOrchestrator(p model.Provider, inv model.ToolInvoker, cfg model.OrchestratorConfig) *model.Orchestrator {
	return model.NewOrchestrator(p, inv, testutil.WeatherFunctionSpecs(),
		model.NewConversation("You are a helpful assistant."), cfg)
}

func collect() (func(string), func() string) {
	var mu sync.Mutex
	var b strings.Builder
	return func(s string) {
			mu.Lock()
			b.WriteString(s)
			mu.Unlock()
		}, func() string {
			mu.Lock()
			defer mu.Unlock()
			return b.String()
		}
}

func roles(msgs []model.Message) []model.Role {
	out := make([]model.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestRunTurnWithToolCall(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Calls(testutil.GeocodeCall("call_1", "Oslo")),
		testutil.Text("Oslo lies at ", "59.91N 10.75E."),
	)
	inv := testutil.NewMockInvoker()
	inv.InvokeFunc = func(ctx context.Context, name string, args map[string]any) (string, error) {
		return "Latitude: 59.9133301, Longitude: 10.7522454", nil
	}
	var states []model.TurnState
	o := newOrchestrator(p, inv, model.OrchestratorConfig{
		OnState: func(s model.TurnState) { states = append(states, s) },
	})

	onText, text := collect()
	reply, err := o.RunTurn(context.Background(), "Where is Oslo?", onText)
	require.NoError(t, err)
	assert.Equal(t, "Oslo lies at 59.91N 10.75E.", reply)
	assert.Equal(t, reply, text())

	msgs := o.Conversation().Messages()
	assert.Equal(t, []model.Role{model.RoleSystem, model.RoleUser, model.RoleTool, model.RoleAssistant}, roles(msgs))
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Equal(t, "Latitude: 59.9133301, Longitude: 10.7522454", msgs[2].Content)
	assert.Equal(t, reply, msgs[3].Content)
	require.NoError(t, o.Conversation().Validate())

	calls := inv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "NominatimLookupLatLongForPlace", calls[0].Name)
	assert.Equal(t, map[string]any{"place": "Oslo"}, calls[0].Args)

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Messages, 2)
	assert.Len(t, reqs[1].Messages, 3)
	assert.NotEmpty(t, reqs[1].Tools)

	assert.Equal(t, []model.TurnState{
		model.Streaming, model.DispatchingTools, model.Streaming, model.TurnDone,
	}, states)
	assert.Equal(t, model.TurnDone, o.State())
}

func TestRunTurnSeparatesRounds(t *testing.T) {
	first := testutil.Calls(testutil.GeocodeCall("call_1", "Oslo"))
	first.Chunks = append([]model.StreamChunk{model.TextDelta("Let me look that up.")}, first.Chunks...)
	p := testutil.NewScriptedProvider(first, testutil.Text("It is in Norway."))
	o := newOrchestrator(p, testutil.NewMockInvoker(), model.OrchestratorConfig{})

	reply, err := o.RunTurn(context.Background(), "Where is Oslo?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Let me look that up.\n\nIt is in Norway.", reply)
}

func TestRunTurnToolErrorBecomesContent(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Calls(testutil.CurrentWeatherCall("call_1", 59.91, 10.75)),
		testutil.Text("The weather service is unavailable."),
	)
	inv := testutil.NewMockInvoker()
	inv.InvokeFunc = func(ctx context.Context, name string, args map[string]any) (string, error) {
		return "", &model.ToolInvocationError{Tool: name, Message: "429 Too Many Requests"}
	}
	o := newOrchestrator(p, inv, model.OrchestratorConfig{})

	_, err := o.RunTurn(context.Background(), "Weather in Oslo?", nil)
	require.NoError(t, err)

	msgs := o.Conversation().Messages()
	require.Equal(t, model.RoleTool, msgs[2].Role)
	assert.Equal(t, "Error executing YrWeatherCurrentWeather: 429 Too Many Requests", msgs[2].Content)
}

func TestRunTurnParallelKeepsOrder(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Calls(
			testutil.GeocodeCall("call_slow", "Oslo"),
			testutil.GeocodeCall("call_fast", "Bergen"),
		),
		testutil.Text("done"),
	)
	inv := testutil.NewMockInvoker()
	inv.InvokeFunc = func(ctx context.Context, name string, args map[string]any) (string, error) {
		if args["place"] == "Oslo" {
			time.Sleep(50 * time.Millisecond)
		}
		return "at " + args["place"].(string), nil
	}
	o := newOrchestrator(p, inv, model.OrchestratorConfig{ParallelTools: true, ParallelLimit: 2})

	_, err := o.RunTurn(context.Background(), "Oslo or Bergen?", nil)
	require.NoError(t, err)

	msgs := o.Conversation().Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "call_slow", msgs[2].ToolCallID)
	assert.Equal(t, "at Oslo", msgs[2].Content)
	assert.Equal(t, "call_fast", msgs[3].ToolCallID)
	assert.Equal(t, "at Bergen", msgs[3].Content)
}

func TestRunTurnRoundLimit(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Calls(testutil.GeocodeCall("call_1", "Oslo")),
		testutil.Calls(testutil.GeocodeCall("call_2", "Oslo")),
	)
	o := newOrchestrator(p, testutil.NewMockInvoker(), model.OrchestratorConfig{MaxToolRounds: 1})

	_, err := o.RunTurn(context.Background(), "Where is Oslo?", nil)
	assert.ErrorIs(t, err, model.ErrToolRoundsExceeded)
	assert.Equal(t, model.TurnFailed, o.State())

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	assert.NotEmpty(t, reqs[0].Tools)
	assert.Empty(t, reqs[1].Tools, "the last round is offered no tools")
}

func TestRunTurnInterruptedThenRetry(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Round{
			Chunks: []model.StreamChunk{model.TextDelta("It is")},
			Err:    &model.StreamInterruptedError{Err: io.ErrUnexpectedEOF},
		},
		testutil.Text("It is sunny."),
	)
	o := newOrchestrator(p, testutil.NewMockInvoker(), model.OrchestratorConfig{})

	_, err := o.RunTurn(context.Background(), "Weather?", nil)
	require.ErrorIs(t, err, model.ErrStreamInterrupted)
	assert.Equal(t, 2, o.Conversation().Len(), "nothing from the failed round is committed")
	assert.Equal(t, model.TurnFailed, o.State())

	reply, err := o.RetryTurn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", reply)

	msgs := o.Conversation().Messages()
	assert.Equal(t, []model.Role{model.RoleSystem, model.RoleUser, model.RoleAssistant}, roles(msgs))
	assert.Len(t, p.Requests()[1].Messages, 2, "retry re-sends the same history")
}

func TestRetryTurnWithoutFailure(t *testing.T) {
	o := newOrchestrator(testutil.NewMockProvider("m"), testutil.NewMockInvoker(), model.OrchestratorConfig{})
	_, err := o.RetryTurn(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrNoTurnToRetry)

	_, err = o.RunTurn(context.Background(), "hi", nil)
	require.NoError(t, err)
	_, err = o.RetryTurn(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrNoTurnToRetry)
}

func TestRunTurnCancelledDuringDispatch(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Calls(testutil.GeocodeCall("call_1", "Oslo")),
		testutil.Text("Oslo is in Norway."),
	)
	ctx, cancel := context.WithCancel(context.Background())
	inv := testutil.NewMockInvoker()
	inv.InvokeFunc = func(ictx context.Context, name string, args map[string]any) (string, error) {
		cancel()
		<-ictx.Done()
		return "too late", nil
	}
	o := newOrchestrator(p, inv, model.OrchestratorConfig{})

	_, err := o.RunTurn(ctx, "Where is Oslo?", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, o.Conversation().Len(), "no tool message after cancellation")
	assert.Equal(t, model.TurnFailed, o.State())

	inv.InvokeFunc = func(ctx context.Context, name string, args map[string]any) (string, error) {
		return "Latitude: 59.91, Longitude: 10.75", nil
	}
	reply, err := o.RetryTurn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Oslo is in Norway.", reply)
	require.NoError(t, o.Conversation().Validate())
}

func TestRunTurnRejectsConcurrentTurn(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := testutil.NewMockProvider("m")
	p.StreamFunc = func(ctx context.Context, _ []model.Message, _ []model.FunctionSpec, _ model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
		return func(yield func(model.StreamChunk, error) bool) {
			close(started)
			<-release
			if yield(model.TextDelta("ok"), nil) {
				yield(model.TurnComplete(), nil)
			}
		}
	}
	o := newOrchestrator(p, testutil.NewMockInvoker(), model.OrchestratorConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := o.RunTurn(context.Background(), "first", nil)
		done <- err
	}()
	<-started

	_, err := o.RunTurn(context.Background(), "second", nil)
	assert.ErrorIs(t, err, model.ErrTurnInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 3, o.Conversation().Len())
}

func TestRunTurnMalformedStream(t *testing.T) {
	p := testutil.NewScriptedProvider(testutil.Round{Chunks: []model.StreamChunk{
		model.ToolCallFragment("", "NominatimLookupLatLongForPlace", `{}`),
		model.TurnComplete(),
	}})
	inv := testutil.NewMockInvoker()
	o := newOrchestrator(p, inv, model.OrchestratorConfig{})

	_, err := o.RunTurn(context.Background(), "Where is Oslo?", nil)
	assert.ErrorIs(t, err, model.ErrProtocol)
	assert.Empty(t, inv.Calls())
	assert.Equal(t, 2, o.Conversation().Len())
}

func TestRunTurnEndpointErrorPassesThrough(t *testing.T) {
	refused := errors.New("connection refused")
	p := testutil.NewScriptedProvider(testutil.Round{Err: refused})
	o := newOrchestrator(p, testutil.NewMockInvoker(), model.OrchestratorConfig{})

	_, err := o.RunTurn(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, refused)
	assert.NotErrorIs(t, err, model.ErrStreamInterrupted)
}

func TestSingleUseStream(t *testing.T) {
	seq := model.SingleUse(func(yield func(model.StreamChunk, error) bool) {
		yield(model.TextDelta("once"), nil)
	})
	for range seq {
	}
	var errs []error
	for _, err := range seq {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], model.ErrStreamConsumed)
}
