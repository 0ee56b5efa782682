package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStopCommand creates the stop command.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for stopping the container
func NewStopCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running container",
		Long: `Stop the running container gracefully.

The container gets container.stop_timeout to exit before it is killed. The
container itself is kept; the next 'jetbox build' recreates it.`,
		Example: `  jetbox stop`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(globalOpts)
		},
	}
}

// runStop executes the stop command logic
func runStop(opts *GlobalOptions) error {
	d, err := newDeps(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := signalContext()
	defer cancel()

	engine, err := d.requireEngine()
	if err != nil {
		return err
	}
	stopped, err := d.supervisor(engine, nil).StopExisting(ctx)
	if err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if !stopped {
		fmt.Printf("Container %s is not running\n", d.cfg.Container.Name)
		return nil
	}
	fmt.Printf("Stopped container: %s\n", d.cfg.Container.Name)
	return nil
}
