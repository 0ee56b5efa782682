package app

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

// Build information. Populated at build-time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// NewVersionCommand creates the version command.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for displaying version info
func NewVersionCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Display version information",
		Example: `  jetbox version`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion()
		},
	}
}

// runVersion executes the version command logic
func runVersion() error {
	fmt.Println("jetbox:")
	fmt.Printf("  Version:    %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
	fmt.Printf("  Go:         %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
	return nil
}
