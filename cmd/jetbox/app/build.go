package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsingmao/jetbox/internal/display"
	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/outcome"
	"github.com/tsingmao/jetbox/internal/scaffold"
)

// BuildOptions holds options for the build command
type BuildOptions struct {
	*GlobalOptions

	// NoShell skips the interactive shell after bring-up
	NoShell bool

	// SkipInstall skips the post-start installer and init scripts
	SkipInstall bool
}

// NewBuildCommand creates the build command.
//
// The build command runs the full bring-up sequence and ends in an
// interactive shell inside the container.
//
// Usage:
//
//	jetbox build [OPTIONS]
//
// Parameters:
//   - globalOpts: Global options shared across commands
//
// Returns:
//   - A configured cobra.Command for bringing up the container
func NewBuildCommand(globalOpts *GlobalOptions) *cobra.Command {
	opts := &BuildOptions{
		GlobalOptions: globalOpts,
	}

	cmd := &cobra.Command{
		Use:     "build",
		Aliases: []string{"up"},
		Short:   "Bring up the Jetson container and open a shell in it",
		Long: `Bring up the Jetson container.

The steps run in order and the first fatal failure stops the run:
  1. Verify docker, docker compose and the Docker daemon
  2. Create the project directories
  3. Configure X11 forwarding (failures are warnings)
  4. Stop a running instance, run 'docker compose up -d' and wait until the
     container answers 'docker exec <name> true'
  5. Install the GPU build of ONNX Runtime and run scripts/init-*.sh
  6. Replace jetbox with an interactive shell in the container

The compose file is created with 'jetbox compose render'.`,
		Example: `  # Full bring-up ending in a shell
  jetbox build

  # Bring up for CI, without the shell hand-off
  jetbox build --no-shell

  # Restart the container without reinstalling packages
  jetbox build --skip-install`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoShell, "no-shell", false,
		"do not open an interactive shell when the container is ready")
	cmd.Flags().BoolVar(&opts.SkipInstall, "skip-install", false,
		"skip the ONNX Runtime installer and init scripts")

	return cmd
}

// runBuild executes the build command logic
func runBuild(opts *BuildOptions) error {
	d, err := newDeps(opts.GlobalOptions)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var (
		composeCommand []string
		settings       = &display.Settings{}
	)

	pipeline := outcome.NewPipeline()

	pipeline.Add("prerequisites", func(ctx context.Context) outcome.Result {
		report := d.checker().Check(ctx)
		report.Log()
		if !report.OK() {
			return outcome.Fatal(report.Err())
		}
		composeCommand = report.ComposeCommand
		return outcome.OK()
	})

	pipeline.Add("directories", func(ctx context.Context) outcome.Result {
		res, err := scaffold.Ensure(d.cfg.Project.Root, d.cfg.Project.Directories)
		if err != nil {
			return outcome.Fatal(err)
		}
		if len(res.Created) > 0 {
			logger.Info("Created %s", strings.Join(res.Created, ", "))
		}
		return outcome.OK()
	})

	if d.cfg.Display.Enabled {
		pipeline.Add("display", func(ctx context.Context) outcome.Result {
			var res outcome.Result
			settings, res = d.displayConfigurator().Configure(ctx)
			if !res.IsFatal() && settings.AuthRegenerated {
				logger.Success("X11 forwarding configured for DISPLAY=%s", settings.Display)
			}
			return res
		})
	}

	pipeline.Add("container", func(ctx context.Context) outcome.Result {
		composeFile := d.cfg.ComposeFilePath()
		if _, err := os.Stat(composeFile); errors.Is(err, os.ErrNotExist) {
			return outcome.Fatalf("compose file %s not found (create it with 'jetbox compose render')", composeFile)
		}
		engine, err := d.requireEngine()
		if err != nil {
			return outcome.Fatal(err)
		}
		if err := d.supervisor(engine, composeCommand).Start(ctx, settings.Env()); err != nil {
			return outcome.Fatal(err)
		}
		return outcome.OK()
	})

	if !opts.SkipInstall {
		pipeline.Add("onnxruntime", func(ctx context.Context) outcome.Result {
			return d.onnxInstaller().Install(ctx)
		})
		pipeline.Add("init scripts", func(ctx context.Context) outcome.Result {
			return d.scriptRunner().Run(ctx)
		})
	}

	if err := pipeline.Run(ctx); err != nil {
		return err
	}

	if n := len(pipeline.Warnings); n > 0 {
		logger.Warn("Container %s is ready with %d warning(s)", d.cfg.Container.Name, n)
	} else {
		logger.Success("Container %s is ready", d.cfg.Container.Name)
	}

	if opts.NoShell {
		fmt.Printf("Open a shell with: %s shell\n", cliName)
		return nil
	}
	return d.launcher().Exec()
}
