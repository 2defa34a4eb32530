package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"skycast/ui"
)

var toolsWidth int

var toolsCmd = &cobra.Command{
	Use:   "tools [query]",
	Short: "List the tools offered by the configured capability servers",
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().IntVarP(&toolsWidth, "width", "w", 100, "line width")
}

func runTools(cmd *cobra.Command, args []string) error {
	c, err := NewContainer(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer closeContainer(c)

	matches := ui.FilterTools(c.Catalog(), strings.Join(args, " "))
	if len(matches) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tools found.")
		return nil
	}
	for _, spec := range matches {
		fmt.Fprintln(cmd.OutOrStdout(), ui.ToolLine(spec, toolsWidth, false))
	}
	return nil
}
