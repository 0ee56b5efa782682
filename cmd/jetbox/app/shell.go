package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewShellCommand creates the shell command.
//
// The shell command replaces jetbox with an interactive shell in the
// running container.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for entering the container
func NewShellCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive shell in the running container",
		Long: `Open an interactive shell in the running container.

jetbox execs 'docker exec -it <container> <shell>' in place of itself, so the
shell's exit status becomes the command's exit status.`,
		Example: `  jetbox shell`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(globalOpts)
		},
	}
}

// runShell executes the shell command logic
func runShell(opts *GlobalOptions) error {
	d, err := newDeps(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	engine, err := d.requireEngine()
	if err != nil {
		return err
	}
	status, err := engine.FindContainer(context.Background(), d.cfg.Container.Name)
	if err != nil {
		return err
	}
	if status == nil || !status.Running {
		return fmt.Errorf("container %s is not running (start it with '%s build')", d.cfg.Container.Name, cliName)
	}
	return d.launcher().Exec()
}
