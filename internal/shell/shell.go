// Package shell runs host commands for jetbox.
//
// Every external tool jetbox drives (docker, docker compose, xauth, xhost,
// id) goes through the Runner interface so that steps can be tested with a
// scripted fake instead of a real host.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"

	"github.com/tsingmao/jetbox/internal/logger"
)

// Command describes one process invocation.
type Command struct {
	// Name is the executable, resolved through PATH.
	Name string

	// Args are the arguments after Name.
	Args []string

	// Env is appended to the current process environment. It is the only
	// way a step passes environment values to a child.
	Env []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Stdin is fed to the process when non-nil.
	Stdin io.Reader
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Output is the captured result of a command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, stderr)
}

// Runner executes commands.
type Runner interface {
	// Run executes cmd to completion and captures its output.
	// A non-zero exit returns the output together with an *ExitError.
	Run(ctx context.Context, cmd Command) (Output, error)

	// Stream executes cmd and calls onLine for each output line as it
	// arrives. Carriage-return progress updates are delivered as lines.
	Stream(ctx context.Context, cmd Command, onLine func(line string)) error

	// LookPath reports the resolved path of an executable.
	LookPath(name string) (string, error)
}

// ExecRunner is the Runner backed by os/exec.
type ExecRunner struct{}

// NewExecRunner returns the host command runner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := r.command(ctx, c)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}

	logger.Debug("Running: %s", c)
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%s: %w", c, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, &ExitError{Command: c.String(), ExitCode: out.ExitCode, Stderr: out.Stderr}
		}
		return out, fmt.Errorf("failed to run %s: %w", c, err)
	}
	return out, nil
}

// Stream implements Runner.
//
// The command runs attached to a pseudo-terminal so tools such as
// docker compose render their native progress output. Lines are split on
// both '\r' and '\n'; empty lines are dropped.
func (r *ExecRunner) Stream(ctx context.Context, c Command, onLine func(line string)) error {
	cmd := r.command(ctx, c)

	logger.Debug("Streaming: %s", c)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start %s with pty: %w", c, err)
	}
	defer ptmx.Close()

	if err := ScanLines(ptmx, onLine); err != nil && !isPTYClosed(err) {
		logger.Debug("Reading output of %s: %v", c, err)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", c, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: c.String(), ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %s: %w", c, err)
	}
	return nil
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// ScanLines splits r on '\r' and '\n' and calls onLine for each non-empty line.
func ScanLines(r io.Reader, onLine func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitCRLF)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" {
			continue
		}
		if onLine != nil {
			onLine(line)
		}
	}
	return scanner.Err()
}

func splitCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// isPTYClosed reports the EIO a Linux pty master returns once the child exits.
func isPTYClosed(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return errors.Is(pathErr.Err, syscall.EIO)
	}
	return errors.Is(err, syscall.EIO)
}
