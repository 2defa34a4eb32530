package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"skycast/model"
)

// Round is one scripted provider response. Chunks are yielded in order and
// Err, when set, is yielded after them.
type Round struct {
	Chunks []model.StreamChunk
	Err    error
}

// StreamRequest records the arguments of one Stream call.
type StreamRequest struct {
	Messages []model.Message
	Tools    []model.FunctionSpec
	Options  model.StreamOptions
}

// ErrNoScriptedRound is yielded when Stream is called more often than rounds
// were scripted.
var ErrNoScriptedRound = errors.New("no scripted round left")

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	StreamFunc     func(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error]
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	mu           sync.Mutex
	rounds       []Round
	requests     []StreamRequest
	currentModel string
}

// NewMockProvider creates a mock provider with default implementations. The
// default stream answers every request with a single text delta.
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.StreamFunc = mock.defaultStream
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

// NewScriptedProvider replays rounds, one per Stream call.
func NewScriptedProvider(rounds ...Round) *MockProvider {
	mock := NewMockProvider("mock-model")
	mock.rounds = rounds
	mock.StreamFunc = mock.scriptedStream
	return mock
}

// Text scripts a round that answers with text and completes.
func Text(parts ...string) Round {
	var chunks []model.StreamChunk
	for _, p := range parts {
		chunks = append(chunks, model.TextDelta(p))
	}
	return Round{Chunks: append(chunks, model.TurnComplete())}
}

// Calls scripts a round that requests the given calls in one fragment each.
func Calls(calls ...model.ToolCall) Round {
	var chunks []model.StreamChunk
	for _, c := range calls {
		chunks = append(chunks, model.ToolCallFragment(c.ID, c.Name, argsJSON(c.Arguments)))
	}
	return Round{Chunks: append(chunks, model.TurnComplete())}
}

func argsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal arguments: %v", err))
	}
	return string(b)
}

func (m *MockProvider) record(messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, StreamRequest{
		Messages: slices.Clone(messages),
		Tools:    slices.Clone(tools),
		Options:  opts,
	})
	return len(m.requests) - 1
}

// Requests returns every Stream call made so far.
func (m *MockProvider) Requests() []StreamRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

func (m *MockProvider) defaultStream(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
	return model.SingleUse(func(yield func(model.StreamChunk, error) bool) {
		m.record(messages, tools, opts)
		if !yield(model.TextDelta("Mock response"), nil) {
			return
		}
		yield(model.TurnComplete(), nil)
	})
}

func (m *MockProvider) scriptedStream(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
	return model.SingleUse(func(yield func(model.StreamChunk, error) bool) {
		n := m.record(messages, tools, opts)
		if n >= len(m.rounds) {
			yield(model.StreamChunk{}, ErrNoScriptedRound)
			return
		}
		round := m.rounds[n]
		for _, c := range round.Chunks {
			if !yield(c, nil) {
				return
			}
		}
		if round.Err != nil {
			yield(model.StreamChunk{}, round.Err)
		}
	})
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return []model.ModelInfo{
		{Name: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) Stream(ctx context.Context, messages []model.Message, tools []model.FunctionSpec, opts model.StreamOptions) iter.Seq2[model.StreamChunk, error] {
	return m.StreamFunc(ctx, messages, tools, opts)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(modelName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = modelName
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// Invocation records one MockInvoker call.
type Invocation struct {
	Name string
	Args map[string]any
}

// MockInvoker implements model.ToolInvoker for testing
type MockInvoker struct {
	InvokeFunc func(ctx context.Context, name string, args map[string]any) (string, error)

	mu    sync.Mutex
	calls []Invocation
}

// NewMockInvoker answers every call with "result of <name>".
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		InvokeFunc: func(ctx context.Context, name string, args map[string]any) (string, error) {
			return "result of " + name, nil
		},
	}
}

func (m *MockInvoker) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Invocation{Name: name, Args: maps.Clone(args)})
	m.mu.Unlock()
	return m.InvokeFunc(ctx, name, args)
}

// Calls returns the invocations in the order they started.
func (m *MockInvoker) Calls() []Invocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}
