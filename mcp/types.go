package mcp

import (
	"fmt"
	"time"
)

type TransportKind string

const (
	TransportStdio          TransportKind = "stdio"
	TransportSSE            TransportKind = "sse"
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// ParseTransportKind accepts the config spellings of a transport. "http" is
// an alias for streamable-http.
func ParseTransportKind(s string) (TransportKind, error) {
	switch s {
	case "", "stdio":
		return TransportStdio, nil
	case "sse":
		return TransportSSE, nil
	case "streamable-http", "http":
		return TransportStreamableHTTP, nil
	default:
		return "", fmt.Errorf("unknown transport type: %s", s)
	}
}

// TransportConfig selects and parameterizes the transport of one session.
type TransportConfig struct {
	ID   string
	Kind TransportKind

	// stdio
	Command string
	Args    []string
	Env     map[string]string

	// sse / streamable-http
	URL     string
	Headers map[string]string

	// HandshakeTimeout bounds connect + initialize + tools/list. Zero means
	// only the caller's context applies.
	HandshakeTimeout time.Duration
}

func (c TransportConfig) target() string {
	switch c.Kind {
	case TransportStdio:
		return c.Command
	default:
		return c.URL
	}
}

const (
	ProtocolVersion = "2025-06-18"
	ClientName      = "skycast"
	ClientVersion   = "1.0.0"
)
