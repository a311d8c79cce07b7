package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"mcpbridge/internal/api"
	"mcpbridge/internal/app"

	"github.com/spf13/cobra"
)

// newInvokeCmd creates the command that starts one server, calls one of its
// tools and prints the result the way an agent would receive it.
func newInvokeCmd(root *rootOptions) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "invoke SERVER TOOL",
		Short: "Call a tool of an MCP server",
		Long: `Starts SERVER, calls TOOL with the JSON object given by --args and prints
the result. Failures are printed in the form an agent receives them:

  The tool SERVER:TOOL failed with error: MESSAGE

The server is stopped again before the command exits.`,
		Example: `  mcpbridge invoke files list_directory --args '{"path":"/tmp"}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, tool := args[0], args[1]

			var toolArgs map[string]interface{}
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					return api.NewParseError(fmt.Sprintf("--args must be a JSON object: %v", err))
				}
			}

			return withApplication(cmd, root, func(ctx context.Context, services *app.Services) error {
				if err := services.Supervisor.Start(ctx, server); err != nil {
					return err
				}
				out := services.Bridge.Invoke(ctx, api.Plugin{ServerName: server, ToolName: tool}, toolArgs)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "Tool arguments as a JSON object")
	return cmd
}
