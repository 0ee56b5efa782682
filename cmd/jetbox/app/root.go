// Package app provides the command-line interface implementation for jetbox.
//
// Commands are organized with cobra: a root command carrying the global
// flags and one subcommand per operation. Every command loads the same
// config.Config and builds its collaborators through the helpers in deps.go.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tsingmao/jetbox/internal/config"
	"github.com/tsingmao/jetbox/internal/logger"
)

const (
	// cliName is the name of the CLI application
	cliName = "jetbox"

	// cliDescription is the short description shown in help text
	cliDescription = "jetbox - bring up the NVIDIA Jetson development container"
)

// GlobalOptions holds options that are common to all commands
type GlobalOptions struct {
	// ProjectDir is the host project root (default: working directory)
	ProjectDir string

	// ConfigPath is an explicit jetbox.yaml path
	ConfigPath string

	// Color selects colored log output: auto, always or never
	Color string

	// Verbose enables debug output
	Verbose bool
}

// NewJetboxCommand creates the root jetbox command with all subcommands.
//
// Returns:
//   - A configured cobra.Command ready for execution
//
// Example:
//
//	cmd := NewJetboxCommand()
//	if err := cmd.Execute(); err != nil {
//	    os.Exit(1)
//	}
func NewJetboxCommand() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   cliName,
		Short: cliDescription,
		Long: `jetbox prepares a Jetson host and runs the vendor JetPack container image.

A full bring-up ('jetbox build') verifies prerequisites, creates the project
directories, configures X11 forwarding, replaces any running instance of the
container, waits for it to become ready, installs the GPU build of ONNX
Runtime inside it and finally opens an interactive shell.

Settings come from built-in defaults, an optional jetbox.yaml in the project
directory (or the file named by $JETBOX_CONFIG or --config) and flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ProjectDir, "project-dir", "C", "",
		"project directory (default: current directory)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "",
		"configuration file (default: $JETBOX_CONFIG or <project-dir>/jetbox.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", string(logger.ColorAuto),
		"colorize log output: auto, always or never")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false,
		"verbose output")

	cmd.AddCommand(
		NewBuildCommand(opts),
		NewInitCommand(opts),
		NewCheckCommand(opts),
		NewShellCommand(opts),
		NewLogsCommand(opts),
		NewStopCommand(opts),
		NewStatusCommand(opts),
		NewInfoCommand(opts),
		NewComposeCommand(opts),
		NewVersionCommand(opts),
	)

	return cmd
}

// setupLogging installs the package-level logger for this invocation.
func setupLogging(opts *GlobalOptions) error {
	mode := logger.ColorMode(opts.Color)
	switch mode {
	case logger.ColorAuto, logger.ColorAlways, logger.ColorNever:
	default:
		return fmt.Errorf("invalid --color value %q: must be auto, always or never", opts.Color)
	}

	level := logger.LevelInfo
	if opts.Verbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(os.Stderr, level, mode))
	return nil
}

// loadConfig loads the configuration for the selected project directory.
func loadConfig(opts *GlobalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ProjectDir, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
