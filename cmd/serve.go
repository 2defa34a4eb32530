package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"skycast/config"
	"skycast/server"
	"skycast/storage"
	"skycast/weather"
)

// cacheRetention is how long an expired upstream response is kept for
// revalidation before it is purged at startup.
const cacheRetention = 7 * 24 * time.Hour

var (
	serveTransport string
	serveAddr      string
	serveNoCache   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the weather tool server",
	Long: "Run the weather MCP server over stdio (default), sse or streamable http.\n" +
		"In stdio mode nothing but protocol frames is written to stdout.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveTransport, "transport", "t", "", "stdio, sse or http (default from config)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address for sse and http")
	serveCmd.Flags().BoolVar(&serveNoCache, "no-cache", false, "do not cache upstream responses")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ws, cleanup, err := newWeatherServer(cmd.Context(), serverConfig())
	if err != nil {
		return err
	}
	defer cleanup()

	return ws.Serve(cmd.Context(), os.Stdin, os.Stdout)
}

func serverConfig() config.ServerConfig {
	sc := cfg.Server
	if serveTransport != "" {
		sc.Transport = serveTransport
	}
	if serveAddr != "" {
		sc.Addr = serveAddr
	}
	return sc
}

// newWeatherServer opens the response cache and builds the server. The
// returned cleanup closes the cache.
func newWeatherServer(ctx context.Context, sc config.ServerConfig) (*server.WeatherServer, func(), error) {
	var cache *storage.ResponseCache
	if !serveNoCache {
		var err error
		cache, err = storage.NewResponseCache(cfg.CachePath())
		if err != nil {
			return nil, nil, err
		}
		if n, err := cache.Purge(ctx, time.Now().Add(-cacheRetention)); err == nil && n > 0 {
			logDebug("[CACHE] purged %d expired responses", n)
		}
	}

	svc := weather.NewService(cfg.Profiles, cache)
	cleanup := func() {
		if cache != nil {
			cache.Close()
		}
	}
	return server.New(sc, svc), cleanup, nil
}

func logDebug(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf(format, args...)
	}
}
