package model

import (
	"maps"
	"slices"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a chat message in the conversation.
//
// A tool message carries the single ToolCall it answers in ToolCalls, so that
// endpoint converters can rebuild the assistant tool-use block it replies to.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	IsError    bool // tool message reporting a failed call
	Timestamp  time.Time
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolResult is the outcome of invoking a ToolCall.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

func (m Message) clone() Message {
	out := m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.clone()
		}
	}
	return out
}

func (tc ToolCall) clone() ToolCall {
	out := tc
	if tc.Arguments != nil {
		out.Arguments = maps.Clone(tc.Arguments)
	}
	return out
}

// NewSystemMessage, NewUserMessage and NewAssistantMessage stamp the current time.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// NewToolMessage builds the tool message answering call.
func NewToolMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCalls:  []ToolCall{call.clone()},
		ToolCallID: call.ID,
		Timestamp:  time.Now(),
	}
}

// AnsweredCall returns the call a tool message replies to.
func (m Message) AnsweredCall() (ToolCall, bool) {
	if m.Role != RoleTool {
		return ToolCall{}, false
	}
	idx := slices.IndexFunc(m.ToolCalls, func(tc ToolCall) bool { return tc.ID == m.ToolCallID })
	if idx < 0 {
		return ToolCall{ID: m.ToolCallID}, false
	}
	return m.ToolCalls[idx], true
}
