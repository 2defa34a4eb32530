package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"skycast/config"
	"skycast/model"
)

const closeGrace = 1 * time.Second

// Session is an initialized connection to one capability server. The tool
// catalog is fetched during the handshake and cached for the session's
// lifetime.
type Session struct {
	ID   string
	Kind TransportKind

	client     *client.Client
	process    *exec.Cmd
	cancelRun  context.CancelFunc
	serverInfo mcptypes.Implementation
	tools      []model.ToolDescriptor
	toolIndex  map[string]struct{}

	mu     sync.Mutex
	closed bool
}

// Connect establishes the transport described by cfg and performs the
// initialize and tools/list handshake.
//
// Spawn or dial failures, a failed initialize and a handshake timeout are
// reported as *model.ConnectionError. A malformed initialize result or tool
// catalog is a *model.ProtocolError.
func Connect(ctx context.Context, cfg TransportConfig) (*Session, error) {
	if cfg.ID == "" {
		cfg.ID = string(cfg.Kind)
	}

	hctx := ctx
	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	runCtx, cancelRun := context.WithCancel(context.Background())

	type dialed struct {
		c   *client.Client
		cmd *exec.Cmd
		err error
	}
	done := make(chan dialed, 1)
	go func() {
		c, cmd, err := dial(runCtx, cfg)
		done <- dialed{c, cmd, err}
	}()

	var d dialed
	select {
	case d = <-done:
	case <-hctx.Done():
		cancelRun()
		go func() {
			if late := <-done; late.c != nil {
				late.c.Close()
			}
		}()
		return nil, &model.ConnectionError{Target: cfg.target(), Err: hctx.Err()}
	}
	if d.err != nil {
		cancelRun()
		return nil, &model.ConnectionError{Target: cfg.target(), Err: d.err}
	}

	s := &Session{
		ID:        cfg.ID,
		Kind:      cfg.Kind,
		client:    d.c,
		process:   d.cmd,
		cancelRun: cancelRun,
	}

	if err := s.handshake(hctx, cfg.target()); err != nil {
		s.Close(context.Background())
		return nil, err
	}

	switch {
	case config.DebugLog != nil:
		config.DebugLog.Printf("[MCP] Session '%s' connected to %s %s (%d tools)",
			s.ID, s.serverInfo.Name, s.serverInfo.Version, len(s.tools))
	}

	return s, nil
}

// newSession wraps an already started client, used for in-process servers.
func newSession(ctx context.Context, id string, c *client.Client) (*Session, error) {
	s := &Session{ID: id, Kind: "inprocess", client: c, cancelRun: func() {}}
	if err := s.handshake(ctx, id); err != nil {
		s.Close(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake(ctx context.Context, target string) error {
	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    ClientName,
				Version: ClientVersion,
			},
		},
	}

	res, err := s.client.Initialize(ctx, initReq)
	if err != nil {
		return &model.ConnectionError{Target: target, Err: fmt.Errorf("initialize: %w", err)}
	}
	if res == nil || res.ProtocolVersion == "" {
		return &model.ProtocolError{Reason: "initialize result without protocol version"}
	}
	s.serverInfo = res.ServerInfo

	var raw []mcptypes.Tool
	req := mcptypes.ListToolsRequest{}
	for {
		list, err := s.client.ListTools(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return &model.ConnectionError{Target: target, Err: fmt.Errorf("tools/list: %w", ctx.Err())}
			}
			return &model.ProtocolError{Reason: "tools/list failed", Err: err}
		}
		raw = append(raw, list.Tools...)
		if list.NextCursor == "" {
			break
		}
		req.Params.Cursor = list.NextCursor
	}

	tools, err := DescribeTools(raw)
	if err != nil {
		return err
	}

	s.tools = tools
	s.toolIndex = make(map[string]struct{}, len(tools))
	for _, t := range tools {
		s.toolIndex[t.Name] = struct{}{}
	}
	return nil
}

// ServerName returns the name the server announced during initialize.
func (s *Session) ServerName() string {
	return s.serverInfo.Name
}

// ListTools returns the catalog discovered during the handshake, in server
// order.
func (s *Session) ListTools() []model.ToolDescriptor {
	out := make([]model.ToolDescriptor, len(s.tools))
	copy(out, s.tools)
	return out
}

func (s *Session) HasTool(name string) bool {
	_, ok := s.toolIndex[name]
	return ok
}

// Invoke calls the named tool once and returns its text content. Every
// failure, including a result flagged as an error, is a
// *model.ToolInvocationError.
func (s *Session) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", &model.ToolInvocationError{Tool: name, Message: "session closed"}
	}
	if !s.HasTool(name) {
		return "", &model.ToolInvocationError{Tool: name, Message: fmt.Sprintf("unknown tool %q", name)}
	}

	result, err := s.client.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", &model.ToolInvocationError{Tool: name, Message: err.Error(), Err: err}
	}

	text := ResultText(result)
	if result.IsError {
		return "", &model.ToolInvocationError{Tool: name, Message: text}
	}
	return text, nil
}

// ResultText flattens a tool result: text parts joined by newlines, other
// parts JSON encoded.
func ResultText(result *mcptypes.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return "Tool executed successfully (no output)"
	}

	parts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		if tc, ok := mcptypes.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
			continue
		}
		b, err := json.Marshal(c)
		if err != nil {
			parts = append(parts, fmt.Sprintf("Tool result (marshal error): %v", err))
			continue
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "\n")
}

// Close shuts the client down, giving it closeGrace to exit cleanly before a
// spawned process is killed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	defer s.cancelRun()

	clientClosed := false
	if s.client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, closeGrace)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- s.client.Close()
		}()

		select {
		case err := <-closeDone:
			if err != nil {
				if config.DebugLog != nil {
					config.DebugLog.Printf("[MCP] Close: Error closing client for '%s': %v", s.ID, err)
				}
			} else {
				clientClosed = true
			}
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Close: Close timeout for '%s' - will forcefully kill process", s.ID)
			}
		}
	}

	if !clientClosed && s.process != nil && s.process.Process != nil {
		if err := s.process.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill %s: %w", s.ID, err)
		}
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Close: Session '%s' closed", s.ID)
	}
	return nil
}
