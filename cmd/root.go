package cmd

import (
	"context"
	"fmt"
	"os"

	"mcpbridge/internal/api"
	"mcpbridge/internal/app"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, storage error).
	ExitCodeError = 1
	// ExitCodeNotFound indicates the named MCP server is not configured.
	ExitCodeNotFound = 2
	// ExitCodeInvalidInput indicates a rejected name, descriptor or install command.
	ExitCodeInvalidInput = 3
)

// oneShotLogLevel keeps informational logs out of the output of commands
// other than serve unless --log-level asks for them.
const oneShotLogLevel = "warn"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configDir string
	logLevel  string
}

// rootCmd represents the base command for the mcpbridge application.
var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "mcpbridge",
		Short: "Run MCP tool servers and expose their tools as agent plugins",
		Long: `mcpbridge keeps a registry of MCP tool servers, starts and supervises them
(local subprocesses over stdio or remote HTTP endpoints), and exposes each
server's tools as callable plugins through a local management API.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Configuration directory (default is $HOME/.config/mcpbridge)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config.yaml)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newAddCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newInvokeCmd(opts))
	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpbridge version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error kind.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case api.IsKind(err, api.KindNotFound):
		return ExitCodeNotFound
	case api.IsKind(err, api.KindConfig), api.IsKind(err, api.KindParse), api.IsKind(err, api.KindDuplicateName):
		return ExitCodeInvalidInput
	default:
		return ExitCodeError
	}
}

// withApplication loads the configuration, runs fn against the wired
// services and shuts them down again. Servers started by fn are stopped
// before it returns.
func withApplication(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, services *app.Services) error) error {
	logLevel := opts.logLevel
	if logLevel == "" {
		logLevel = oneShotLogLevel
	}

	application, err := app.NewApplication(app.NewConfig(opts.configDir, logLevel, cmd.Root().Version))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := commandContext(cmd)
	defer application.Close(context.WithoutCancel(ctx))
	return fn(ctx, application.Services())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resultError returns the failure of r as an error, or nil on success.
func resultError[T any](r api.Result[T]) error {
	if r.OK() {
		return nil
	}
	return r.Err()
}
