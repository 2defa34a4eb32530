// Package cmd implements the skycast CLI using cobra.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"skycast/config"
)

const version = "0.3.0"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "skycast",
	Short: "Weather chat over MCP tools",
	Long: "skycast chats with a language model that answers weather questions through MCP tools.\n" +
		"It also ships the weather tool server itself (skycast serve).",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		config.InitDebugLog(cfg.DataDir())
		if config.DebugLog != nil {
			config.DebugLog.Printf("skycast %s: %s", version, cmd.CommandPath())
		}
		return nil
	},
}

// Execute runs the root command and exits on error. SIGINT and SIGTERM
// cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/skycast/config.toml, or $SKYCAST_CONFIG)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(webCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(modelsCmd)
}
