package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"skycast/config"
	"skycast/model"
	"skycast/server"
)

var webAddr string

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Serve the weather tools and a streaming chat endpoint over HTTP",
	Long: "Serve the weather MCP server on /mcp together with POST /chat.\n" +
		"Each X-Conversation-ID header keeps its own conversation.",
	RunE: runWeb,
}

func init() {
	webCmd.Flags().StringVar(&webAddr, "addr", "", "listen address (default from config)")
	webCmd.Flags().BoolVar(&serveNoCache, "no-cache", false, "do not cache upstream responses")
}

func runWeb(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	c, err := NewContainer(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeContainer(c)

	sc := cfg.Server
	sc.Transport = "http"
	switch {
	case webAddr != "":
		sc.Addr = webAddr
	case sc.Addr == "":
		sc.Addr = config.DefaultServerAddr
	}

	ws, cleanup, err := newWeatherServer(ctx, sc)
	if err != nil {
		return err
	}
	defer cleanup()

	ws.Handle("/chat", server.NewChatHandler(func() (*model.Orchestrator, error) {
		return c.NewOrchestrator(), nil
	}))

	fmt.Fprintf(os.Stderr, "skycast web listening on %s (model %s)\n", sc.Addr, c.Provider().GetModel())
	return ws.ServeHTTP(ctx, sc.Transport, sc.Addr)
}
