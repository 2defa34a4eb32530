// Package server exposes the weather tools as a capability server over stdio,
// SSE or streamable HTTP, and hosts the streaming chat endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"skycast/config"
	"skycast/weather"
)

const shutdownGrace = 5 * time.Second

// WeatherServer couples the MCP server with the tool list it registered.
type WeatherServer struct {
	cfg   config.ServerConfig
	mcp   *mcpserver.MCPServer
	tools []mcptypes.Tool

	// extra routes mounted next to the MCP endpoints on HTTP transports
	routes map[string]http.Handler
}

func New(cfg config.ServerConfig, svc *weather.Service) *WeatherServer {
	return &WeatherServer{
		cfg:    cfg,
		mcp:    NewMCPServer(cfg, svc),
		tools:  Tools(),
		routes: make(map[string]http.Handler),
	}
}

// MCP returns the underlying server, e.g. for in-process clients.
func (ws *WeatherServer) MCP() *mcpserver.MCPServer {
	return ws.mcp
}

// Handle mounts an additional route on HTTP transports. It must be called
// before Serve.
func (ws *WeatherServer) Handle(pattern string, h http.Handler) {
	ws.routes[pattern] = h
}

// ToolsOverview is the body of GET /tools.
type ToolsOverview struct {
	ServerName string          `json:"serverName"`
	Version    string          `json:"version"`
	Tools      []mcptypes.Tool `json:"tools"`
}

func (ws *WeatherServer) toolsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ToolsOverview{
		ServerName: ws.cfg.Name,
		Version:    ws.cfg.Version,
		Tools:      ws.tools,
	})
}

// Handler builds the HTTP mux for the sse or streamable-http transport.
// The returned shutdown func stops open SSE streams.
func (ws *WeatherServer) Handler(transport string) (http.Handler, func(context.Context) error, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tools", ws.toolsHandler)
	for pattern, h := range ws.routes {
		mux.Handle(pattern, h)
	}

	switch transport {
	case "sse":
		var opts []mcpserver.SSEOption
		if ws.cfg.BaseURL != "" {
			opts = append(opts, mcpserver.WithBaseURL(ws.cfg.BaseURL))
		}
		sse := mcpserver.NewSSEServer(ws.mcp, opts...)
		mux.Handle("/sse", sse.SSEHandler())
		mux.Handle("/message", sse.MessageHandler())
		return mux, sse.Shutdown, nil
	case "http", "streamable-http":
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(ws.mcp))
		return mux, func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown server transport: %s", transport)
	}
}

// ServeStdio speaks the protocol over in and out until ctx is done or in is
// closed. Nothing else may write to out.
func (ws *WeatherServer) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(ws.mcp)
	switch {
	case config.DebugLog != nil:
		stdio.SetErrorLogger(config.DebugLog)
	default:
		stdio.SetErrorLogger(log.New(io.Discard, "", 0))
	}

	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ServeHTTP listens on addr with the given transport until ctx is done.
func (ws *WeatherServer) ServeHTTP(ctx context.Context, transport, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return ws.serveListener(ctx, transport, ln)
}

func (ws *WeatherServer) serveListener(ctx context.Context, transport string, ln net.Listener) error {
	handler, shutdownMCP, err := ws.Handler(transport)
	if err != nil {
		ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[SERVER] %s %s listening on %s (%s)", ws.cfg.Name, ws.cfg.Version, ln.Addr(), transport)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownMCP(sctx); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[SERVER] transport shutdown: %v", err)
		}
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// Serve runs the transport named in the config.
func (ws *WeatherServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	switch ws.cfg.Transport {
	case "", "stdio":
		return ws.ServeStdio(ctx, in, out)
	default:
		addr := ws.cfg.Addr
		if addr == "" {
			addr = config.DefaultServerAddr
		}
		return ws.ServeHTTP(ctx, ws.cfg.Transport, addr)
	}
}
