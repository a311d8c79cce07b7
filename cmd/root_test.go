package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"mcpbridge/internal/api"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfigDir writes a config.yaml selecting a file registry in a fresh
// directory and returns the directory.
func testConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	yaml := "registry:\n  backend: file\n  watch: false\nsupervisor:\n  healthCheckSchedule: \"\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	return dir
}

// execute runs a fresh command tree with args and returns its stdout.
func execute(t *testing.T, configDir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config-dir", configDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestSetVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	SetVersion("1.2.3-test")
	assert.Equal(t, "1.2.3-test", rootCmd.Version)
	assert.Equal(t, "1.2.3-test", GetVersion())
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "mcpbridge", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config-dir"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}

func TestSubcommands(t *testing.T) {
	found := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}
	for _, name := range []string{"version", "serve", "list", "parse", "add", "delete", "invoke"} {
		assert.True(t, found[name], "subcommand %s not registered", name)
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{Use: "test", Version: "1.0.0"}
	testCmd.SetVersionTemplate(`{{printf "mcpbridge version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	require.NoError(t, testCmd.Execute())

	assert.Equal(t, "mcpbridge version 1.0.0\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"plain error", errors.New("boom"), ExitCodeError},
		{"not found", api.NewNotFoundError("x"), ExitCodeNotFound},
		{"wrapped not found", fmt.Errorf("ctx: %w", api.NewNotFoundError("x")), ExitCodeNotFound},
		{"config error", api.NewConfigError("bad"), ExitCodeInvalidInput},
		{"parse error", api.NewParseError("bad"), ExitCodeInvalidInput},
		{"duplicate", api.NewDuplicateNameError("x"), ExitCodeInvalidInput},
		{"process start", api.NewProcessStartError("x", errors.New("exit 1")), ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, getExitCode(tt.err))
		})
	}
}
