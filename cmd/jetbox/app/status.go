package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
//
// The status command shows the container state, similar to 'docker ps'
// for a single container, plus its bind mounts.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for showing container status
func NewStatusCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show the state of the Jetson container",
		Aliases: []string{"ps"},
		Example: `  jetbox status`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(globalOpts)
		},
	}
}

// runStatus executes the status command logic
func runStatus(opts *GlobalOptions) error {
	d, err := newDeps(opts)
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
		fmt.Printf("Container %s not found\n", d.cfg.Container.Name)
		fmt.Println()
		fmt.Printf("Start it with: %s build\n", cliName)
		return nil
	}

	ready := "-"
	uptime := "-"
	if status.Running {
		ready = "no"
		if err := d.supervisor(engine, nil).Probe(ctx); err == nil {
			ready = "yes"
		}
		if !status.StartedAt.IsZero() {
			uptime = formatDuration(time.Since(status.StartedAt))
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tIMAGE\tSTATE\tREADY\tUPTIME")
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		status.Name,
		status.ShortID(),
		status.Image,
		status.State,
		ready,
		uptime)
	w.Flush()

	if status.Error != "" {
		fmt.Printf("\nError: %s\n", status.Error)
	}

	if binds := status.BindMounts(); len(binds) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tDESTINATION\tMODE")
		for _, m := range binds {
			mode := "ro"
			if m.ReadWrite {
				mode = "rw"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Source, m.Destination, mode)
		}
		w.Flush()
	}

	return nil
}

// formatDuration formats a duration in human-readable format
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
