package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"skycast/config"
)

// TurnState is the orchestrator's position within a turn.
type TurnState int

const (
	AwaitingUserInput TurnState = iota
	Streaming
	DispatchingTools
	TurnDone
	TurnFailed
)

func (s TurnState) String() string {
	switch s {
	case AwaitingUserInput:
		return "awaiting_user_input"
	case Streaming:
		return "streaming"
	case DispatchingTools:
		return "dispatching_tools"
	case TurnDone:
		return "turn_complete"
	case TurnFailed:
		return "turn_failed"
	default:
		return fmt.Sprintf("TurnState(%d)", int(s))
	}
}

const DefaultMaxToolRounds = 8

// roundSeparator goes between the text of two rounds of the same turn.
const roundSeparator = "\n\n"

type OrchestratorConfig struct {
	Options StreamOptions

	// MaxToolRounds bounds tool dispatch rounds per turn. The round after the
	// last allowed one is streamed without tools so the model has to answer.
	MaxToolRounds int

	// ParallelTools invokes the calls of one batch concurrently. Results are
	// still committed in announced order.
	ParallelTools bool
	ParallelLimit int

	OnState      func(TurnState)
	OnToolResult func(ToolCall, ToolResult)
}

// Orchestrator drives conversational turns for a single conversation. It
// owns the conversation; only one turn may run at a time.
type Orchestrator struct {
	provider Provider
	invoker  ToolInvoker
	catalog  []FunctionSpec
	conv     *Conversation
	cfg      OrchestratorConfig

	mu      sync.Mutex
	state   TurnState
	running bool
}

func NewOrchestrator(p Provider, invoker ToolInvoker, catalog []FunctionSpec, conv *Conversation, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if conv == nil {
		conv = NewConversation("")
	}
	return &Orchestrator{
		provider: p,
		invoker:  invoker,
		catalog:  catalog,
		conv:     conv,
		cfg:      cfg,
		state:    AwaitingUserInput,
	}
}

func (o *Orchestrator) Conversation() *Conversation {
	return o.conv
}

func (o *Orchestrator) Catalog() []FunctionSpec {
	return o.catalog
}

func (o *Orchestrator) State() TurnState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// RunTurn appends the user's text and drives the turn to completion. Text
// deltas are passed to onText in arrival order; the returned reply is exactly
// the concatenation of what onText received.
//
// On error nothing from the failing round is committed. Tool messages of
// rounds that finished before the failure stay, and RetryTurn can resume.
func (o *Orchestrator) RunTurn(ctx context.Context, text string, onText func(string)) (string, error) {
	if err := o.acquire(false); err != nil {
		return "", err
	}
	defer o.release()

	if err := o.conv.Append(NewUserMessage(text)); err != nil {
		o.setState(TurnFailed)
		return "", err
	}
	return o.drive(ctx, onText)
}

// RetryTurn re-streams the conversation after a failed turn without adding
// a new user message.
func (o *Orchestrator) RetryTurn(ctx context.Context, onText func(string)) (string, error) {
	if err := o.acquire(true); err != nil {
		return "", err
	}
	defer o.release()

	return o.drive(ctx, onText)
}

func (o *Orchestrator) acquire(retry bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.running:
		return ErrTurnInProgress
	case retry && o.state != TurnFailed:
		return ErrNoTurnToRetry
	}
	o.running = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s TurnState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[TURN] conversation %s -> %s", o.conv.ID, s)
	}
	if o.cfg.OnState != nil {
		o.cfg.OnState(s)
	}
}

func (o *Orchestrator) drive(ctx context.Context, onText func(string)) (string, error) {
	var reply strings.Builder

	emit := func(s string) {
		if s == "" {
			return
		}
		reply.WriteString(s)
		if onText != nil {
			onText(s)
		}
	}

	for round := 0; ; round++ {
		tools := o.catalog
		if round >= o.cfg.MaxToolRounds {
			tools = nil
		}

		o.setState(Streaming)
		calls, err := o.streamRound(ctx, tools, reply.Len() > 0, emit)
		if err != nil {
			return "", o.fail(err)
		}

		if len(calls) == 0 {
			text := reply.String()
			if err := o.conv.Append(NewAssistantMessage(text)); err != nil {
				return "", o.fail(err)
			}
			o.setState(TurnDone)
			return text, nil
		}

		if tools == nil {
			return "", o.fail(ErrToolRoundsExceeded)
		}

		o.setState(DispatchingTools)
		o.conv.RecordRequests(calls)

		results, err := o.dispatch(ctx, calls)
		if err != nil {
			return "", o.fail(err)
		}
		if err := ctx.Err(); err != nil {
			return "", o.fail(err)
		}
		if err := o.conv.AppendToolResults(calls, results); err != nil {
			return "", o.fail(err)
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[TURN] round %d committed %d tool results", round+1, len(results))
		}
	}
}

func (o *Orchestrator) fail(err error) error {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[TURN] conversation %s failed: %v", o.conv.ID, err)
	}
	o.setState(TurnFailed)
	return err
}

// streamRound drains one streamed response. Text is only forwarded to emit,
// never committed here; tool call fragments are accumulated per id.
func (o *Orchestrator) streamRound(ctx context.Context, tools []FunctionSpec, separate bool, emit func(string)) ([]ToolCall, error) {
	acc := NewToolCallAccumulator()
	sawText := false

stream:
	for chunk, err := range o.provider.Stream(ctx, o.conv.Messages(), tools, o.cfg.Options) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			acc.Reset()
			return nil, ctxErr
		}
		if err != nil {
			acc.Reset()
			return nil, err
		}

		switch chunk.Kind {
		case ChunkText:
			if chunk.Text == "" {
				continue
			}
			if !sawText && separate {
				emit(roundSeparator)
			}
			sawText = true
			emit(chunk.Text)
		case ChunkToolCall:
			if err := acc.Add(chunk.Call); err != nil {
				acc.Reset()
				return nil, err
			}
		case ChunkTurnComplete:
			break stream
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return acc.Finalize()
}

// dispatch resolves one batch of calls. The returned slice lines up with
// calls regardless of the order in which invocations finish.
func (o *Orchestrator) dispatch(ctx context.Context, calls []ToolCall) ([]ToolResult, error) {
	results := make([]ToolResult, len(calls))

	if o.cfg.ParallelTools && len(calls) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		if o.cfg.ParallelLimit > 0 {
			g.SetLimit(o.cfg.ParallelLimit)
		}
		for i, call := range calls {
			g.Go(func() error {
				res, err := o.invoke(gctx, call)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		o.reportResults(calls, results)
		return results, nil
	}

	for i, call := range calls {
		res, err := o.invoke(ctx, call)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	o.reportResults(calls, results)
	return results, nil
}

func (o *Orchestrator) reportResults(calls []ToolCall, results []ToolResult) {
	if o.cfg.OnToolResult == nil {
		return
	}
	for i := range calls {
		o.cfg.OnToolResult(calls[i], results[i])
	}
}

type invokeOutcome struct {
	text string
	err  error
}

// invoke runs one call. The only error it returns is the context's; tool
// failures become result content. A cancelled context returns immediately
// and leaves the in-flight invocation behind.
func (o *Orchestrator) invoke(ctx context.Context, call ToolCall) (ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return ToolResult{}, err
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[TURN] invoking %s (id %s)", call.Name, call.ID)
	}

	done := make(chan invokeOutcome, 1)
	go func() {
		text, err := o.invoker.Invoke(ctx, call.Name, call.Arguments)
		done <- invokeOutcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		if config.DebugLog != nil {
			config.DebugLog.Printf("[TURN] abandoned %s (id %s): %v", call.Name, call.ID, ctx.Err())
		}
		return ToolResult{}, ctx.Err()
	case out := <-done:
		if err := ctx.Err(); err != nil {
			return ToolResult{}, err
		}
		if out.err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("Error executing tool %s: %v", call.Name, out.err)
			}
			return ToolResult{
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("Error executing %s: %s", call.Name, toolErrorText(out.err)),
				IsError:    true,
			}, nil
		}
		return ToolResult{ToolCallID: call.ID, Content: out.text}, nil
	}
}

func toolErrorText(err error) string {
	var tie *ToolInvocationError
	if errors.As(err, &tie) && tie.Message != "" {
		return tie.Message
	}
	return err.Error()
}
