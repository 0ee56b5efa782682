// Package prereq verifies that the host can run the Jetson container.
//
// Required checks (fatal when they fail):
//   - the docker binary is on PATH
//   - a compose tool is available ("docker compose" plugin or docker-compose)
//   - the Docker daemon answers a ping
//
// Advisory checks (warnings only):
//   - the nvidia runtime is registered with the daemon
//   - xhost is available for display forwarding
//   - the session is not remote (SSH), where GUI passthrough rarely works
//   - the host is a known Jetson platform with the expected device nodes
//
// The checker has no side effects on the filesystem or on containers, so a
// failed report can abort a run before anything is created.
package prereq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/platform"
	"github.com/tsingmao/jetbox/internal/shell"
)

// ErrMissingPrerequisites is returned by Report.Err when a required check failed.
var ErrMissingPrerequisites = errors.New("missing prerequisites")

// GPURuntimeName is the OCI runtime the Jetson container needs.
const GPURuntimeName = "nvidia"

// Daemon is the part of the Docker engine the checker needs.
type Daemon interface {
	Ping(ctx context.Context) error
	Runtimes(ctx context.Context) ([]string, error)
}

// PlatformProber probes the Jetson platform.
type PlatformProber interface {
	Probe() (*platform.Info, error)
}

// Report is the result of a prerequisite check.
type Report struct {
	// Missing lists required dependencies that were not found.
	Missing []string

	// Warnings lists advisory findings.
	Warnings []string

	// DaemonErr is set when the daemon did not answer.
	DaemonErr error

	// ComposeCommand is the compose invocation to use, e.g. ["docker", "compose"].
	ComposeCommand []string

	// GPURuntime reports whether the nvidia runtime is registered.
	GPURuntime bool

	// DisplayHelper reports whether xhost is available.
	DisplayHelper bool

	// Platform is the probed Jetson platform, nil when probing failed.
	Platform *platform.Info
}

// OK reports whether all required checks passed.
func (r *Report) OK() bool {
	return len(r.Missing) == 0 && r.DaemonErr == nil
}

// Err returns nil when OK, otherwise an error naming what is missing.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var parts []string
	if len(r.Missing) > 0 {
		parts = append(parts, "not found: "+strings.Join(r.Missing, ", "))
	}
	if r.DaemonErr != nil {
		parts = append(parts, r.DaemonErr.Error())
	}
	return fmt.Errorf("%w: %s", ErrMissingPrerequisites, strings.Join(parts, "; "))
}

func (r *Report) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Checker runs prerequisite checks.
type Checker struct {
	runner   shell.Runner
	daemon   Daemon
	platform PlatformProber
	getenv   func(string) string
}

// NewChecker creates a Checker.
//
// Parameters:
//   - runner: Host command runner used for PATH lookups and the compose probe
//   - daemon: Docker daemon client (nil skips the daemon checks and reports the daemon as unreachable)
//   - prober: Jetson platform prober (nil skips platform checks)
//   - getenv: Environment lookup, usually os.Getenv
func NewChecker(runner shell.Runner, daemon Daemon, prober PlatformProber, getenv func(string) string) *Checker {
	return &Checker{
		runner:   runner,
		daemon:   daemon,
		platform: prober,
		getenv:   getenv,
	}
}

// Check runs every check and returns the report. It never returns early on a
// failed required check so the operator sees every missing dependency at once,
// except that daemon checks need the docker binary.
func (c *Checker) Check(ctx context.Context) *Report {
	r := &Report{}

	dockerFound := true
	if _, err := c.runner.LookPath("docker"); err != nil {
		dockerFound = false
		r.Missing = append(r.Missing, "docker")
	}

	r.ComposeCommand = c.detectCompose(ctx, dockerFound)
	if r.ComposeCommand == nil {
		r.Missing = append(r.Missing, "docker compose")
	}

	if dockerFound {
		c.checkDaemon(ctx, r)
	}

	if _, err := c.runner.LookPath("xhost"); err == nil {
		r.DisplayHelper = true
	} else {
		r.warn("xhost not found; GUI applications in the container will not be able to open windows")
	}

	if c.getenv("SSH_CONNECTION") != "" || c.getenv("SSH_CLIENT") != "" {
		r.warn("running over SSH; display forwarding to the local X server may not work")
	}

	c.checkPlatform(r)

	return r
}

func (c *Checker) detectCompose(ctx context.Context, dockerFound bool) []string {
	if dockerFound {
		if _, err := c.runner.Run(ctx, shell.Command{Name: "docker", Args: []string{"compose", "version"}}); err == nil {
			return []string{"docker", "compose"}
		}
	}
	if _, err := c.runner.LookPath("docker-compose"); err == nil {
		return []string{"docker-compose"}
	}
	return nil
}

func (c *Checker) checkDaemon(ctx context.Context, r *Report) {
	if c.daemon == nil {
		r.DaemonErr = errors.New("docker daemon client unavailable")
		return
	}
	if err := c.daemon.Ping(ctx); err != nil {
		r.DaemonErr = err
		return
	}

	runtimes, err := c.daemon.Runtimes(ctx)
	if err != nil {
		r.warn("could not list Docker runtimes: %v", err)
		return
	}
	for _, name := range runtimes {
		if name == GPURuntimeName {
			r.GPURuntime = true
			return
		}
	}
	r.warn("the %s runtime is not registered with Docker (found: %s); GPU passthrough will not work",
		GPURuntimeName, strings.Join(runtimes, ", "))
}

func (c *Checker) checkPlatform(r *Report) {
	if c.platform == nil {
		return
	}
	info, err := c.platform.Probe()
	if err != nil {
		r.warn("%v", err)
		return
	}
	r.Platform = info
	for _, w := range info.Warnings() {
		r.warn("%s", w)
	}
}

// Log writes the report to the logger.
func (r *Report) Log() {
	for _, name := range r.Missing {
		logger.Error("Required dependency not found: %s", name)
	}
	if r.DaemonErr != nil {
		logger.Error("Docker daemon check failed: %v", r.DaemonErr)
	}
	for _, w := range r.Warnings {
		logger.Warn("%s", w)
	}
	if r.Platform != nil {
		if r.Platform.Entry != nil {
			logger.Info("Platform: %s, L4T %s (JetPack %s)",
				orUnknown(r.Platform.Model), r.Platform.Release.Version, r.Platform.Entry.JetPack)
		} else {
			logger.Info("Platform: %s, L4T %s", orUnknown(r.Platform.Model), r.Platform.Release.Version)
		}
	}
	if r.OK() {
		logger.Success("Prerequisites satisfied (compose: %s)", strings.Join(r.ComposeCommand, " "))
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown board"
	}
	return s
}
