package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"

	"skycast/config"
)

// dial creates a started client for cfg. For stdio the spawned command is
// returned so Close can kill it. runCtx bounds the lifetime of long-lived
// transports (the SSE event stream), not the handshake.
func dial(runCtx context.Context, cfg TransportConfig) (*client.Client, *exec.Cmd, error) {
	switch cfg.Kind {
	case TransportStdio:
		return dialStdio(cfg)
	case TransportSSE:
		c, err := dialSSE(runCtx, cfg)
		return c, nil, err
	case TransportStreamableHTTP:
		c, err := dialStreamableHTTP(runCtx, cfg)
		return c, nil, err
	default:
		return nil, nil, fmt.Errorf("unknown transport type: %s", cfg.Kind)
	}
}

func dialSSE(ctx context.Context, cfg TransportConfig) (*client.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sse transport requires a url")
	}

	var opts []transport.ClientOption
	switch {
	case len(cfg.Headers) > 0:
		opts = append(opts, transport.WithHeaders(cfg.Headers))
	}

	mcpClient, err := client.NewSSEMCPClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	// The SSE transport has to be started before Initialize
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start SSE transport: %w", err)
	}

	switch {
	case config.DebugLog != nil:
		config.DebugLog.Printf("[MCP] Started SSE transport for %s at %s", cfg.ID, cfg.URL)
	}

	return mcpClient, nil
}

func dialStreamableHTTP(ctx context.Context, cfg TransportConfig) (*client.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("streamable-http transport requires a url")
	}

	var opts []transport.StreamableHTTPCOption
	switch {
	case len(cfg.Headers) > 0:
		opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
	}

	mcpClient, err := client.NewStreamableHttpClient(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	switch {
	case config.DebugLog != nil:
		config.DebugLog.Printf("[MCP] Started streamable HTTP transport for %s at %s", cfg.ID, cfg.URL)
	}

	return mcpClient, nil
}

func dialStdio(cfg TransportConfig) (*client.Client, *exec.Cmd, error) {
	if cfg.Command == "" {
		return nil, nil, fmt.Errorf("stdio transport requires a command")
	}

	env := configToEnv(cfg.Env)
	var capturedCmd *exec.Cmd

	switch {
	case config.DebugLog != nil:
		config.DebugLog.Printf("[MCP] Spawning '%s' for %s - Args=%v", cfg.Command, cfg.ID, cfg.Args)
	}

	// The process outlives the handshake context; Close kills it.
	cmdFunc := func(_ context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.Command(command, args...)
		cmd.Env = env
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		env,
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case capturedCmd != nil && capturedCmd.Process != nil && config.DebugLog != nil:
		config.DebugLog.Printf("[MCP] Started %s with PID %d", cfg.ID, capturedCmd.Process.Pid)
	}

	return mcpClient, capturedCmd, nil
}

func configToEnv(envMap map[string]string) []string {
	// Keep PATH and friends
	env := os.Environ()

	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	return env
}
