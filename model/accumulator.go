package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type pendingCall struct {
	name string
	args strings.Builder
}

// ToolCallAccumulator assembles tool calls from interleaved fragments. Each
// call id accumulates independently; argument fragments are concatenated in
// arrival order and only parsed by Finalize.
type ToolCallAccumulator struct {
	order []string
	calls map[string]*pendingCall
}

func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: make(map[string]*pendingCall)}
}

// Add folds one fragment into the call it belongs to.
func (a *ToolCallAccumulator) Add(d ToolCallDelta) error {
	if d.ID == "" {
		return &ProtocolError{Reason: "tool call fragment without id"}
	}

	pc, ok := a.calls[d.ID]
	if !ok {
		pc = &pendingCall{}
		a.calls[d.ID] = pc
		a.order = append(a.order, d.ID)
	}

	switch {
	case d.Name == "":
	case pc.name == "":
		pc.name = d.Name
	case pc.name != d.Name:
		return &ProtocolError{Reason: fmt.Sprintf("tool call %q renamed from %q to %q", d.ID, pc.name, d.Name)}
	}

	pc.args.WriteString(d.Arguments)
	return nil
}

// Len reports how many distinct call ids have been seen.
func (a *ToolCallAccumulator) Len() int {
	return len(a.order)
}

// Finalize returns the calls in the order they were first announced. Every
// call must have a name and arguments that decode to a JSON object.
func (a *ToolCallAccumulator) Finalize() ([]ToolCall, error) {
	if len(a.order) == 0 {
		return nil, nil
	}

	out := make([]ToolCall, 0, len(a.order))
	for _, id := range a.order {
		pc := a.calls[id]
		if pc.name == "" {
			return nil, &ProtocolError{Reason: fmt.Sprintf("tool call %q has no name", id)}
		}

		raw := strings.TrimSpace(pc.args.String())
		args := map[string]any{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, &ProtocolError{Reason: fmt.Sprintf("tool call %q arguments", id), Err: err}
			}
			if args == nil {
				args = map[string]any{}
			}
		}

		out = append(out, ToolCall{ID: id, Name: pc.name, Arguments: args})
	}
	return out, nil
}

// Reset drops every partial call.
func (a *ToolCallAccumulator) Reset() {
	a.order = nil
	a.calls = make(map[string]*pendingCall)
}
