package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tsingmao/jetbox/internal/platform"
)

// InfoOptions holds options for the info command
type InfoOptions struct {
	*GlobalOptions

	// Matrix prints the whole compatibility matrix
	Matrix bool
}

// NewInfoCommand creates the info command.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for showing platform information
func NewInfoCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &InfoOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the Jetson platform and its JetPack software stack",
		Long: `Show the Jetson platform of this host.

The L4T release is read from /etc/nv_tegra_release and looked up in the
JetPack compatibility matrix to show the matching CUDA, cuDNN, TensorRT and
Python versions. Use --matrix to print every known release; a custom matrix
can be set with platform.matrix_file in jetbox.yaml.`,
		Example: `  # Show this host
  jetbox info

  # Show the compatibility matrix
  jetbox info --matrix`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Matrix, "matrix", false,
		"print the JetPack compatibility matrix")

	return cmd
}

// runInfo executes the info command logic
func runInfo(opts *InfoOptions) error {
	d, err := newDeps(opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer d.Close()

	prober, err := d.prober()
	if err != nil {
		return err
	}

	if opts.Matrix {
		printMatrix(prober.Matrix)
		return nil
	}

	info, err := prober.Probe()
	if errors.Is(err, platform.ErrNotJetson) {
		fmt.Println("This host is not a Jetson (no L4T release file found).")
		fmt.Println()
		fmt.Printf("Known releases: %s info --matrix\n", cliName)
		return nil
	}
	if err != nil {
		return err
	}

	model := info.Model
	if model == "" {
		model = "unknown"
	}
	fmt.Printf("Model:     %s\n", model)
	fmt.Printf("L4T:       %s\n", info.Release.Version)
	if info.Release.Board != "" {
		fmt.Printf("Board:     %s\n", info.Release.Board)
	}
	if e := info.Entry; e != nil {
		fmt.Printf("JetPack:   %s\n", e.JetPack)
		fmt.Printf("CUDA:      %s\n", e.CUDA)
		fmt.Printf("cuDNN:     %s\n", e.CuDNN)
		fmt.Printf("TensorRT:  %s\n", e.TensorRT)
		fmt.Printf("Python:    %s\n", e.Python)
	} else {
		fmt.Println("JetPack:   unknown (not in the compatibility matrix)")
	}

	if len(info.PresentDevices)+len(info.MissingDevices) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEVICE\tPRESENT")
		for _, dev := range info.PresentDevices {
			fmt.Fprintf(w, "%s\tyes\n", dev)
		}
		for _, dev := range info.MissingDevices {
			fmt.Fprintf(w, "%s\tno\n", dev)
		}
		w.Flush()
	}
	return nil
}

func printMatrix(m *platform.Matrix) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JETPACK\tL4T\tCUDA\tCUDNN\tTENSORRT\tPYTHON\tMODULES")
	for _, r := range m.Releases {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.JetPack, r.L4T, r.CUDA, r.CuDNN, r.TensorRT, r.Python, strings.Join(r.Modules, ", "))
	}
	w.Flush()
}
