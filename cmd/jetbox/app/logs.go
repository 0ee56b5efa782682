package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// LogsOptions holds options for the logs command
type LogsOptions struct {
	*GlobalOptions

	// Tail is the number of lines to show
	Tail int
}

// NewLogsCommand creates the logs command.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for viewing container logs
func NewLogsCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &LogsOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the last log lines of the container",
		Example: `  # Show the default number of lines
  jetbox logs

  # Show the last 200 lines
  jetbox logs -n 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Tail, "tail", "n", 0,
		"number of lines to show (default: readiness.log_tail_lines)")

	return cmd
}

// runLogs executes the logs command logic
func runLogs(opts *LogsOptions) error {
	d, err := newDeps(opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer d.Close()

	engine, err := d.requireEngine()
	if err != nil {
		return err
	}

	ctx := context.Background()
	status, err := engine.FindContainer(ctx, d.cfg.Container.Name)
	if err != nil {
		return err
	}
	if status == nil {
		return fmt.Errorf("container %s not found", d.cfg.Container.Name)
	}

	tail := opts.Tail
	if tail <= 0 {
		tail = d.cfg.Readiness.LogTailLines
	}
	logs, err := engine.TailLogs(ctx, status.ID, tail)
	if err != nil {
		return fmt.Errorf("failed to get logs: %w", err)
	}
	fmt.Fprint(os.Stdout, logs)
	return nil
}
