// Package session hands the terminal over to a shell inside the container.
package session

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/tsingmao/jetbox/internal/logger"
)

// execFunc replaces the current process. Tests override it to capture the
// call instead of replacing the test binary.
var execFunc = unix.Exec

// Launcher starts an interactive shell in a container.
type Launcher struct {
	// Container is the name of the ready container.
	Container string

	// Shell is the program started in the container, e.g. "bash".
	Shell string

	// Stdin is checked for a terminal to decide whether to allocate a TTY.
	Stdin *os.File

	lookPath   func(string) (string, error)
	isTerminal func(int) bool
}

// NewLauncher creates a Launcher reading from os.Stdin.
func NewLauncher(container, shell string) *Launcher {
	return &Launcher{
		Container:  container,
		Shell:      shell,
		Stdin:      os.Stdin,
		lookPath:   exec.LookPath,
		isTerminal: term.IsTerminal,
	}
}

// Argv returns the docker command line for the session. A TTY is only
// requested when stdin is a terminal.
func (l *Launcher) Argv() []string {
	flags := "-i"
	if l.Stdin != nil && l.isTerminal(int(l.Stdin.Fd())) {
		flags = "-it"
	}
	return []string{"docker", "exec", flags, l.Container, l.Shell}
}

// Exec replaces the current process with the session. It only returns on
// failure.
func (l *Launcher) Exec() error {
	docker, err := l.lookPath("docker")
	if err != nil {
		return fmt.Errorf("failed to locate docker: %w", err)
	}
	argv := l.Argv()
	logger.Info("Entering %s in container %s", l.Shell, l.Container)
	if err := execFunc(docker, argv, os.Environ()); err != nil {
		return fmt.Errorf("failed to exec %s: %w", docker, err)
	}
	return nil
}
