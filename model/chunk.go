package model

// ChunkKind discriminates StreamChunk.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkToolCall
	ChunkTurnComplete
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkText:
		return "text"
	case ChunkToolCall:
		return "tool_call"
	case ChunkTurnComplete:
		return "turn_complete"
	default:
		return "unknown"
	}
}

// ToolCallDelta is a fragment of a tool call. Name is usually only present on
// the first fragment for an id; Arguments is a piece of the JSON payload.
type ToolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}

// StreamChunk is one incremental unit of a streamed model response.
type StreamChunk struct {
	Kind ChunkKind
	Text string
	Call ToolCallDelta
}

func TextDelta(text string) StreamChunk {
	return StreamChunk{Kind: ChunkText, Text: text}
}

func ToolCallFragment(id, name, args string) StreamChunk {
	return StreamChunk{Kind: ChunkToolCall, Call: ToolCallDelta{ID: id, Name: name, Arguments: args}}
}

func TurnComplete() StreamChunk {
	return StreamChunk{Kind: ChunkTurnComplete}
}
