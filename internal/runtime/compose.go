package runtime

import (
	"context"
	"fmt"

	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/shell"
)

// Composer brings the compose-defined service up.
type Composer interface {
	// Up starts the service detached, recreating an existing container.
	// env is passed to the compose process only.
	Up(ctx context.Context, env []string) error
}

// ComposeCLI invokes a compose tool on one descriptor file.
type ComposeCLI struct {
	runner  shell.Runner
	command []string
	file    string
	service string
	dir     string
}

// NewComposeCLI creates a Composer.
//
// Parameters:
//   - runner: Host command runner
//   - command: Compose tool invocation, e.g. ["docker", "compose"] or ["docker-compose"]
//   - file: Absolute path of the descriptor
//   - service: Compose service to bring up
//   - dir: Working directory (project root) for relative paths in the descriptor
func NewComposeCLI(runner shell.Runner, command []string, file, service, dir string) *ComposeCLI {
	return &ComposeCLI{
		runner:  runner,
		command: command,
		file:    file,
		service: service,
		dir:     dir,
	}
}

// Up implements Composer. Output is streamed to the logger as it arrives so
// the image pull progress of a first run stays visible.
func (c *ComposeCLI) Up(ctx context.Context, env []string) error {
	if len(c.command) == 0 {
		return fmt.Errorf("no compose tool configured")
	}

	args := append([]string{}, c.command[1:]...)
	args = append(args, "-f", c.file, "up", "-d", "--force-recreate", c.service)

	cmd := shell.Command{
		Name: c.command[0],
		Args: args,
		Env:  env,
		Dir:  c.dir,
	}

	logger.Info("Bringing up service %s: %s", c.service, cmd)
	err := c.runner.Stream(ctx, cmd, func(line string) {
		logger.Info("  %s", line)
	})
	if err != nil {
		return fmt.Errorf("compose up failed: %w", err)
	}
	return nil
}
