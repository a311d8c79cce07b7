package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mcpbridge/internal/api"
	"mcpbridge/internal/app"
	pkgstrings "mcpbridge/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

type listOptions struct {
	output string
	status bool
}

// newListCmd creates the command that shows the registry, and with --status
// the live state of every server.
func newListCmd(root *rootOptions) *cobra.Command {
	opts := &listOptions{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured MCP servers",
		Long: `Lists the MCP servers in the registry.

With --status every server is started, pinged and asked for its tools, and
the result is shown together with the error of servers that failed to start.
Servers started for this report are stopped again before the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.output, true); err != nil {
				return err
			}
			return withApplication(cmd, root, func(ctx context.Context, services *app.Services) error {
				if opts.status {
					res := services.Bridge.Status(ctx)
					if err := resultError(res); err != nil {
						return err
					}
					return printStatuses(cmd, opts.output, res.Value())
				}

				cfgs, err := services.Store.List(ctx)
				if err != nil {
					return err
				}
				return printConfigs(cmd, opts.output, cfgs)
			})
		},
	}

	addOutputFlag(cmd, &opts.output, outputTable)
	cmd.Flags().BoolVar(&opts.status, "status", false, "Start the servers and report running state and tools")
	return cmd
}

func printConfigs(cmd *cobra.Command, format string, cfgs []api.ServerConfig) error {
	w := cmd.OutOrStdout()
	if format != outputTable {
		if cfgs == nil {
			cfgs = []api.ServerConfig{}
		}
		return writeStructured(w, format, cfgs)
	}
	if len(cfgs) == 0 {
		writeEmpty(w, "No MCP servers configured")
		return nil
	}

	t := newTable(w, "NAME", "TRANSPORT", "TARGET")
	for _, c := range cfgs {
		t.AppendRow([]interface{}{c.Name, string(c.Descriptor.Transport()), describeTarget(c.Descriptor)})
	}
	t.Render()
	return nil
}

func printStatuses(cmd *cobra.Command, format string, statuses []api.ServerStatus) error {
	w := cmd.OutOrStdout()
	if format != outputTable {
		if statuses == nil {
			statuses = []api.ServerStatus{}
		}
		return writeStructured(w, format, statuses)
	}
	if len(statuses) == 0 {
		writeEmpty(w, "No MCP servers configured")
		return nil
	}

	t := newTable(w, "NAME", "TRANSPORT", "STATUS", "PID", "TOOLS", "ERROR")
	for _, s := range statuses {
		state := text.FgYellow.Sprint("stopped")
		switch {
		case s.Running:
			state = text.FgGreen.Sprint("running")
		case s.Error != nil:
			state = text.FgRed.Sprint("failed")
		}

		pid := "-"
		if s.Process != nil {
			pid = strconv.Itoa(s.Process.PID)
		}

		errText := ""
		if s.Error != nil {
			errText = pkgstrings.OneLine(*s.Error, pkgstrings.DefaultCellWidth)
		}

		t.AppendRow([]interface{}{s.Name, string(s.Config.Transport()), state, pid, len(s.Tools), errText})
	}
	t.Render()
	return nil
}

// describeTarget renders a descriptor as a single line: the command line of
// a stdio server or the URL of a network server.
func describeTarget(d api.ServerDescriptor) string {
	if d.Transport() == api.TransportNetwork {
		return d.URL
	}
	line := strings.TrimSpace(d.Command + " " + strings.Join(d.Args, " "))
	if len(d.Env) > 0 {
		line = fmt.Sprintf("%s (+%d env)", line, len(d.Env))
	}
	return pkgstrings.OneLine(line, pkgstrings.DefaultCellWidth)
}
