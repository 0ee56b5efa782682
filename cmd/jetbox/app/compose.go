package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsingmao/jetbox/internal/compose"
	"github.com/tsingmao/jetbox/internal/logger"
)

// ComposeRenderOptions holds options for the compose render command
type ComposeRenderOptions struct {
	*GlobalOptions

	// Force overwrites an existing compose file
	Force bool

	// Stdout prints the descriptor instead of writing it
	Stdout bool
}

// NewComposeCommand creates the compose command group.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command with compose subcommands
func NewComposeCommand(globalOpts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Manage the Docker Compose descriptor",
	}

	cmd.AddCommand(newComposeRenderCommand(globalOpts))

	return cmd
}

func newComposeRenderCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &ComposeRenderOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write docker-compose.yml for the Jetson container",
		Long: `Write the Docker Compose descriptor from the configuration.

The service runs the configured image privileged with the nvidia runtime and
host networking, passes the Jetson device nodes through, and mounts the X11
socket, the X authority artifact and the project directory (at /workspace).

The file belongs to you once written; jetbox only passes its path to
docker compose. An existing file is kept unless --force is given.`,
		Example: `  # Create docker-compose.yml in the project directory
  jetbox compose render

  # Preview without writing
  jetbox compose render --stdout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComposeRender(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false,
		"overwrite an existing compose file")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false,
		"print the descriptor instead of writing it")

	return cmd
}

// runComposeRender executes the compose render command logic
func runComposeRender(opts *ComposeRenderOptions) error {
	cfg, err := loadConfig(opts.GlobalOptions)
	if err != nil {
		return err
	}

	descriptor, err := compose.Build(cfg)
	if err != nil {
		return err
	}

	if opts.Stdout {
		data, err := descriptor.Marshal()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	path := cfg.ComposeFilePath()
	if err := descriptor.Write(path, opts.Force); err != nil {
		return err
	}
	logger.Success("Wrote %s", path)
	fmt.Printf("Next: %s build\n", cliName)
	return nil
}
