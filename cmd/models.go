package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models of the configured provider",
	RunE:  runModels,
}

func runModels(cmd *cobra.Command, _ []string) error {
	c, err := NewContainer(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer closeContainer(c)

	models, err := c.Provider().ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	current := c.Provider().GetModel()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, m := range models {
		marker := " "
		if m.Name == current {
			marker = "*"
		}
		size := ""
		if m.Size > 0 {
			size = fmt.Sprintf("%.1f GB", float64(m.Size)/(1<<30))
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n", marker, m.Name, m.Provider, size)
	}
	return tw.Flush()
}
