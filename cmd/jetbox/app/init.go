package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsingmao/jetbox/internal/outcome"
)

// InitOptions holds options for the init command
type InitOptions struct {
	*GlobalOptions

	// SkipScripts runs only the ONNX Runtime installer
	SkipScripts bool
}

// NewInitCommand creates the init command.
//
// The init command runs the post-start installer against a container that
// is already running, for example after 'jetbox build --skip-install'.
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for provisioning the container
func NewInitCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &InitOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install ONNX Runtime GPU and run init scripts in the running container",
		Long: `Provision the running container.

The ONNX Runtime installer first asks the installed runtime for its execution
providers. When CUDAExecutionProvider is already available nothing is
changed. Otherwise the CPU packages are removed, the pinned GPU wheel is
downloaded and installed inside the container and the providers are checked
again.

Scripts matching scripts/init-*.sh then run in lexical order. A failing
script is reported as a warning.`,
		Example: `  # Provision the running container
  jetbox init

  # Only install ONNX Runtime
  jetbox init --skip-scripts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipScripts, "skip-scripts", false,
		"do not run scripts/init-*.sh")

	return cmd
}

// runInit executes the init command logic
func runInit(opts *InitOptions) error {
	d, err := newDeps(opts.GlobalOptions)
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
	status, err := engine.FindContainer(ctx, d.cfg.Container.Name)
	if err != nil {
		return err
	}
	if status == nil || !status.Running {
		return fmt.Errorf("container %s is not running (start it with '%s build')", d.cfg.Container.Name, cliName)
	}
	if err := d.supervisor(engine, nil).Probe(ctx); err != nil {
		return fmt.Errorf("container %s is not ready: %w", d.cfg.Container.Name, err)
	}

	pipeline := outcome.NewPipeline()
	pipeline.Add("onnxruntime", func(ctx context.Context) outcome.Result {
		return d.onnxInstaller().Install(ctx)
	})
	if !opts.SkipScripts {
		pipeline.Add("init scripts", func(ctx context.Context) outcome.Result {
			return d.scriptRunner().Run(ctx)
		})
	}
	return pipeline.Run(ctx)
}
