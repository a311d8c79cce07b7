package cmd

import (
	"context"
	"fmt"

	"mcpbridge/internal/app"

	"github.com/spf13/cobra"
)

// newDeleteCmd creates the command that removes a server from the registry.
func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Remove an MCP server from the registry",
		Long: `Removes an MCP server from the registry. A running "mcpbridge serve" stops
the server when it notices the registry change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withApplication(cmd, root, func(ctx context.Context, services *app.Services) error {
				if err := resultError(services.Bridge.Delete(ctx, name)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted MCP server %s\n", name)
				return nil
			})
		},
	}
}
