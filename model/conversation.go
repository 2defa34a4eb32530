package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conversation is the append-only message history of one chat session.
// Tool messages are only accepted for call ids recorded by RecordRequests.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	messages  []Message
	requested map[string]struct{}
}

func NewConversation(systemPrompt string) *Conversation {
	c := &Conversation{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		requested: make(map[string]struct{}),
	}
	if systemPrompt != "" {
		c.messages = append(c.messages, NewSystemMessage(systemPrompt))
	}
	return c
}

// Append adds a user, assistant or system message. Tool messages must go
// through AppendToolResults.
func (c *Conversation) Append(msg Message) error {
	if msg.Role == RoleTool {
		return &ProtocolError{Reason: "tool messages must reference a requested call"}
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg.clone())
	return nil
}

// RecordRequests remembers the ids the model emitted so their results can be
// appended later.
func (c *Conversation) RecordRequests(calls []ToolCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range calls {
		c.requested[call.ID] = struct{}{}
	}
}

// AppendToolResults appends one tool message per result, in order. Either all
// of them are appended or none.
func (c *Conversation) AppendToolResults(calls []ToolCall, results []ToolResult) error {
	if len(calls) != len(results) {
		return &ProtocolError{Reason: fmt.Sprintf("%d results for %d calls", len(results), len(calls))}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	batch := make([]Message, 0, len(results))
	for i, res := range results {
		if res.ToolCallID != calls[i].ID {
			return &ProtocolError{Reason: fmt.Sprintf("result %q does not answer call %q", res.ToolCallID, calls[i].ID)}
		}
		if _, ok := c.requested[res.ToolCallID]; !ok {
			return &ProtocolError{Reason: fmt.Sprintf("result for unknown call id %q", res.ToolCallID)}
		}
		msg := NewToolMessage(calls[i], res.Content)
		msg.IsError = res.IsError
		batch = append(batch, msg)
	}
	c.messages = append(c.messages, batch...)
	return nil
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}
	return out
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1].clone(), true
}

// Validate checks that every tool message answers an id requested earlier in
// the conversation.
func (c *Conversation) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	for i, m := range c.messages {
		if m.Role != RoleTool {
			continue
		}
		if _, ok := c.requested[m.ToolCallID]; !ok {
			return &ProtocolError{Reason: fmt.Sprintf("message %d answers unknown call %q", i, m.ToolCallID)}
		}
		if _, dup := seen[m.ToolCallID]; dup {
			return &ProtocolError{Reason: fmt.Sprintf("message %d answers call %q twice", i, m.ToolCallID)}
		}
		seen[m.ToolCallID] = struct{}{}
	}
	return nil
}
