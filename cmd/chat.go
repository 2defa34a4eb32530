package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"skycast/ui"
)

const closeTimeout = 5 * time.Second

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	c, err := NewContainer(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeContainer(c)

	return ui.Run(ctx, c.NewOrchestrator(), ui.Options{
		Keys:      cfg.Keys,
		ModelName: c.Provider().GetModel(),
		Servers:   c.ServerIDs(),
	})
}

func closeContainer(c *Container) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		logDebug("close: %v", err)
	}
}
