package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"skycast/model"
)

var askVerbose bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question and stream the answer to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "report tool calls on stderr")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := NewContainer(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeContainer(c)

	var oc model.OrchestratorConfig
	if askVerbose {
		oc.OnToolResult = func(call model.ToolCall, res model.ToolResult) {
			status := "ok"
			if res.IsError {
				status = "error"
			}
			fmt.Fprintf(os.Stderr, "[tool] %s %v: %s\n", call.Name, call.Arguments, status)
		}
	}
	orch := c.NewOrchestratorWith(oc)

	out := cmd.OutOrStdout()
	_, err = orch.RunTurn(ctx, strings.Join(args, " "), func(delta string) {
		fmt.Fprint(out, delta)
	})
	fmt.Fprintln(out)
	return err
}
