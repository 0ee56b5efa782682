package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/tsingmao/jetbox/internal/shell"
)

// Execer runs commands inside a running container.
type Execer interface {
	Exec(ctx context.Context, containerName string, argv ...string) (shell.Output, error)
}

// DockerExec implements Execer with the docker CLI.
type DockerExec struct {
	runner shell.Runner
}

// NewDockerExec creates an Execer backed by runner.
func NewDockerExec(runner shell.Runner) *DockerExec {
	return &DockerExec{runner: runner}
}

// Exec runs argv in containerName with "docker exec" and captures its output.
//
// Parameters:
//   - ctx: Context for cancellation and timeout control
//   - containerName: Name of the running container
//   - argv: Command and arguments to execute
//
// Returns:
//   - Captured output
//   - *shell.ExitError if the command exits non-zero
func (d *DockerExec) Exec(ctx context.Context, containerName string, argv ...string) (shell.Output, error) {
	if len(argv) == 0 {
		return shell.Output{}, fmt.Errorf("exec requires a command")
	}
	args := append([]string{"exec", containerName}, argv...)
	return d.runner.Run(ctx, shell.Command{Name: "docker", Args: args})
}

// ShellQuote quotes s for a POSIX shell.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
