package app

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewCheckCommand creates the check command.
//
// The check command runs the prerequisite checks without changing anything.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for checking prerequisites
func NewCheckCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the host can run the Jetson container",
		Long: `Verify the host prerequisites without changing anything.

Missing docker, a missing compose tool or an unreachable Docker daemon make
the command fail. A missing nvidia runtime, a missing xhost, an SSH session
or an unrecognized Jetson platform are reported as warnings.`,
		Example: `  jetbox check`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(globalOpts)
		},
	}
}

// runCheck executes the check command logic
func runCheck(opts *GlobalOptions) error {
	d, err := newDeps(opts)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report := d.checker().Check(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tRESULT")
	fmt.Fprintf(w, "docker\t%s\n", found(!contains(report.Missing, "docker")))
	compose := "missing"
	if len(report.ComposeCommand) > 0 {
		compose = strings.Join(report.ComposeCommand, " ")
	}
	fmt.Fprintf(w, "compose\t%s\n", compose)
	daemon := "reachable"
	if report.DaemonErr != nil {
		daemon = "unreachable"
	}
	fmt.Fprintf(w, "daemon\t%s\n", daemon)
	fmt.Fprintf(w, "nvidia runtime\t%s\n", found(report.GPURuntime))
	fmt.Fprintf(w, "xhost\t%s\n", found(report.DisplayHelper))
	if report.Platform != nil {
		jetpack := "unknown"
		if report.Platform.Entry != nil {
			jetpack = report.Platform.Entry.JetPack
		}
		fmt.Fprintf(w, "L4T\t%s (JetPack %s)\n", report.Platform.Release.Version, jetpack)
	}
	w.Flush()

	if len(report.Warnings) > 0 {
		fmt.Println()
		for _, warning := range report.Warnings {
			fmt.Printf("warning: %s\n", warning)
		}
	}

	return report.Err()
}

func found(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
