package model

import (
	"context"
	"iter"
	"sync/atomic"
)

// StreamOptions carries per-request completion settings.
type StreamOptions struct {
	Model           string
	MaxOutputTokens int
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	Name     string
	Size     int64
	Provider string
}

// Provider abstracts the streaming completion endpoint.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the orchestrator
// uses Provider without importing the provider package.
type Provider interface {
	// Stream submits the conversation and tool catalog and returns the response
	// as a lazy, finite, single-use sequence of chunks. Nothing is sent until the
	// sequence is ranged over. A transport failure after the request was
	// accepted is yielded as a *StreamInterruptedError.
	Stream(ctx context.Context, messages []Message, tools []FunctionSpec, opts StreamOptions) iter.Seq2[StreamChunk, error]

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the currently selected model name.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// ToolInvoker runs a named tool and returns its text result.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// SingleUse wraps seq so that ranging over it a second time yields
// ErrStreamConsumed instead of replaying the request.
func SingleUse(seq iter.Seq2[StreamChunk, error]) iter.Seq2[StreamChunk, error] {
	var used atomic.Bool
	return func(yield func(StreamChunk, error) bool) {
		if used.Swap(true) {
			yield(StreamChunk{}, ErrStreamConsumed)
			return
		}
		seq(yield)
	}
}
