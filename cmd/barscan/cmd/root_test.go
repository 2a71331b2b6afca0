package cmd

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// that tests sharing the global command tree do not leak flag values.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// Helper function to execute command and capture output.
func executeCommandAndCaptureOutput(t *testing.T, cmd *cobra.Command, args []string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return strings.TrimSpace(buf.String()), err
}

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "barscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"--help"})
	require.NoError(t, err)

	assert.Contains(t, output, "EAN-13 barcodes")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "--snap-degrees")
}

func TestRootCommandVersion(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"--version"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, "barscan "), output)
}

func TestRootCommandNoArgs(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{})
	require.NoError(t, err)
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandSubcommands(t *testing.T) {
	commandNames := make([]string, 0, len(rootCmd.Commands()))
	for _, subcmd := range rootCmd.Commands() {
		commandNames = append(commandNames, subcmd.Name())
	}

	for _, expected := range []string{"config", "decode", "filter", "generate", "pdf", "serve", "version"} {
		assert.Contains(t, commandNames, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	output, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"--invalid-flag"})
	require.Error(t, err)
	assert.Contains(t, output, "unknown flag")
}

func TestRootCommandFlagsBoundToConfig(t *testing.T) {
	_, err := executeCommandAndCaptureOutput(t, rootCmd, []string{"config", "show", "--snap-degrees", "3.5", "--glyphs=false"})
	require.NoError(t, err)

	cfg := GetConfig()
	assert.InDelta(t, 3.5, cfg.Decode.SnapDegrees, 1e-9)
	assert.False(t, cfg.Decode.GlyphsEnabled)
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		want slog.Level
	}{
		{"nil config", nil, slog.LevelInfo},
		{"debug", &config.Config{LogLevel: "debug"}, slog.LevelDebug},
		{"info", &config.Config{LogLevel: "info"}, slog.LevelInfo},
		{"warn", &config.Config{LogLevel: "warn"}, slog.LevelWarn},
		{"error", &config.Config{LogLevel: "error"}, slog.LevelError},
		{"unknown", &config.Config{LogLevel: "loud"}, slog.LevelInfo},
		{"verbose wins", &config.Config{LogLevel: "error", Verbose: true}, slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(tt.cfg))
		})
	}
}
