package cmd

import (
	"fmt"

	"mcpbridge/internal/app"

	"github.com/spf13/cobra"
)

// newServeCmd creates the command that runs the bridge in the foreground.
func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start all configured MCP servers and serve the management API",
		Long: `Starts every MCP server in the registry, then serves the management API
until interrupted (Ctrl+C or SIGTERM), at which point all servers are stopped.

A server that fails to start does not stop the others; its error is reported
by the list endpoint and it is retried on the next force-reload.

Configuration:
  mcpbridge reads config.yaml and an optional .env file from --config-dir
  (default $HOME/.config/mcpbridge). The registry of MCP servers lives in
  mcp_servers.json in the same directory unless another backend is selected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.NewConfig(opts.configDir, opts.logLevel, cmd.Root().Version)

			application, err := app.NewApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run(commandContext(cmd))
		},
	}
}
