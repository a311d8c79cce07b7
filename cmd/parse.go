package cmd

import (
	"strings"

	"mcpbridge/internal/parser"

	"github.com/spf13/cobra"
)

// newParseCmd creates the command that turns an install command or a JSON
// config snippet into a server name and descriptor without saving it.
func newParseCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "parse -- INPUT...",
		Short: "Parse an install command or JSON config into a server descriptor",
		Long: `Parses the text a user would paste to add an MCP server and prints the
resulting name and descriptor. Nothing is written to the registry.

Accepted input:
  - a JSON object, either {"mcpServers": {"name": {...}}} or {"name": {...}}
  - an install command such as
    npx -y @smithery/cli install @scope/server --client claude --config '{"apiKey":"x"}'

Arguments are joined with spaces. Put them after "--" so flags of the install
command are not read as mcpbridge flags.`,
		Example: `  mcpbridge parse '{"mcpServers":{"files":{"command":"npx","args":["-y","@modelcontextprotocol/server-filesystem","/tmp"]}}}'
  mcpbridge parse -- npx -y @smithery/cli install @acme/weather --client claude`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output, false); err != nil {
				return err
			}
			parsed, err := parser.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeStructured(cmd.OutOrStdout(), output, parsed)
		},
	}
	addOutputFlag(cmd, &output, outputJSON)
	return cmd
}
