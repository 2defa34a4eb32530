package model

import (
	"errors"
	"fmt"
)

var (
	ErrConnection         = errors.New("capability server unreachable")
	ErrProtocol           = errors.New("capability protocol violation")
	ErrSchema             = errors.New("unsupported tool schema")
	ErrToolInvocation     = errors.New("tool invocation failed")
	ErrStreamInterrupted  = errors.New("stream interrupted")
	ErrStreamConsumed     = errors.New("stream already consumed")
	ErrToolRoundsExceeded = errors.New("tool round limit exceeded")
	ErrNoTurnToRetry      = errors.New("no failed turn to retry")
	ErrTurnInProgress     = errors.New("turn already in progress")
)

// ConnectionError reports a transport that could not be established:
// spawn failure, refused dial or handshake timeout.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// ProtocolError reports a malformed handshake, catalog or stream.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// SchemaError reports a tool parameter whose shape has no primitive mapping.
type SchemaError struct {
	Tool  string
	Param string
	Type  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tool %q parameter %q: unsupported type %q", e.Tool, e.Param, e.Type)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ToolInvocationError carries the remote error message of a failed tool call.
type ToolInvocationError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

func (e *ToolInvocationError) Is(target error) bool { return target == ErrToolInvocation }

// StreamInterruptedError wraps a transport failure in the middle of a stream.
type StreamInterruptedError struct {
	Err error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream interrupted: %v", e.Err)
}

func (e *StreamInterruptedError) Unwrap() error { return e.Err }

func (e *StreamInterruptedError) Is(target error) bool { return target == ErrStreamInterrupted }
