package cmd

import (
	"context"
	"errors"

	"mcpbridge/internal/api"
	"mcpbridge/internal/app"
	"mcpbridge/internal/parser"

	"github.com/spf13/cobra"
)

type addOptions struct {
	from   string
	url    string
	env    map[string]string
	output string
}

// newAddCmd creates the command that validates a descriptor and saves it to
// the registry. The server is not started.
func newAddCmd(root *rootOptions) *cobra.Command {
	opts := &addOptions{}
	cmd := &cobra.Command{
		Use:   "add [NAME] [-- COMMAND [ARGS...]]",
		Short: "Add an MCP server to the registry",
		Long: `Adds an MCP server to the registry. The descriptor is taken from one of:

  --from   an install command or JSON config, as accepted by "mcpbridge parse";
           NAME defaults to the parsed name
  --url    the endpoint of a network server
  -- COMMAND ARGS...   the command line of a stdio server

The server is not started; it starts with the next "serve", force-reload or toggle.`,
		Example: `  mcpbridge add files -- npx -y @modelcontextprotocol/server-filesystem /tmp
  mcpbridge add search --url https://mcp.example.com/mcp
  mcpbridge add --from 'npx -y @smithery/cli install @acme/weather --client claude'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.output, false); err != nil {
				return err
			}
			name, raw, err := opts.descriptor(args, cmd.ArgsLenAtDash())
			if err != nil {
				return err
			}
			return withApplication(cmd, root, func(ctx context.Context, services *app.Services) error {
				res := services.Bridge.Add(ctx, name, raw)
				if err := resultError(res); err != nil {
					return err
				}
				return writeStructured(cmd.OutOrStdout(), opts.output, res.Value())
			})
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "Install command or JSON config to parse")
	cmd.Flags().StringVar(&opts.url, "url", "", "Endpoint of a network MCP server")
	cmd.Flags().StringToStringVarP(&opts.env, "env", "e", nil, "Environment variable for a stdio server (KEY=VALUE, repeatable)")
	addOutputFlag(cmd, &opts.output, outputJSON)
	cmd.MarkFlagsMutuallyExclusive("from", "url")
	return cmd
}

// descriptor assembles the server name and raw descriptor from the flags
// and positional arguments. dash is the index of "--" in args, or -1.
func (o *addOptions) descriptor(args []string, dash int) (string, map[string]interface{}, error) {
	name, rest := "", args
	if dash != 0 && len(args) > 0 {
		name, rest = args[0], args[1:]
	}

	switch {
	case o.from != "":
		if len(rest) > 0 {
			return "", nil, errors.New("--from does not take a command line")
		}
		parsed, err := parser.Parse(o.from)
		if err != nil {
			return "", nil, err
		}
		if name == "" {
			name = parsed.Name
		}
		return name, o.withEnv(parsed.Descriptor), nil

	case o.url != "":
		if len(rest) > 0 {
			return "", nil, errors.New("--url does not take a command line")
		}
		if len(o.env) > 0 {
			return "", nil, api.NewConfigError("--env applies to stdio servers only")
		}
		return name, map[string]interface{}{"url": o.url}, nil

	case len(rest) > 0:
		raw := map[string]interface{}{"command": rest[0]}
		if len(rest) > 1 {
			raw["args"] = rest[1:]
		}
		return name, o.withEnv(raw), nil

	default:
		return "", nil, errors.New("nothing to add: pass --from, --url or a command after --")
	}
}

func (o *addOptions) withEnv(raw map[string]interface{}) map[string]interface{} {
	if len(o.env) == 0 {
		return raw
	}
	env := map[string]interface{}{}
	if existing, ok := raw["env"].(map[string]interface{}); ok {
		for k, v := range existing {
			env[k] = v
		}
	}
	for k, v := range o.env {
		env[k] = v
	}
	raw["env"] = env
	return raw
}
