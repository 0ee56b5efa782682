package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/outcome"
)

// ScriptRunner runs the project's init scripts inside the container.
type ScriptRunner struct {
	exec Execer

	// Container is the name of the ready container.
	Container string

	// HostDir is the scripts directory on the host.
	HostDir string

	// ContainerDir is the same directory as seen from inside the container.
	ContainerDir string

	// Pattern selects scripts, e.g. "init-*.sh".
	Pattern string
}

// NewScriptRunner creates a ScriptRunner.
func NewScriptRunner(exec Execer, container, hostDir, containerDir, pattern string) *ScriptRunner {
	return &ScriptRunner{
		exec:         exec,
		Container:    container,
		HostDir:      hostDir,
		ContainerDir: containerDir,
		Pattern:      pattern,
	}
}

// Scripts lists matching scripts in lexical order.
func (r *ScriptRunner) Scripts() ([]string, error) {
	if _, err := os.Stat(r.HostDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(r.HostDir, r.Pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid script pattern %q: %w", r.Pattern, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			names = append(names, filepath.Base(m))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Run executes every script with bash. A failing script is reported and the
// remaining scripts still run.
func (r *ScriptRunner) Run(ctx context.Context) outcome.Result {
	names, err := r.Scripts()
	if err != nil {
		return outcome.Recoverable(err)
	}
	if len(names) == 0 {
		logger.Debug("No init scripts matching %s in %s", r.Pattern, r.HostDir)
		return outcome.OK()
	}

	var failed []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return outcome.Fatal(err)
		}
		logger.Info("Running init script %s", name)
		if _, err := r.exec.Exec(ctx, r.Container, "bash", path.Join(r.ContainerDir, name)); err != nil {
			logger.Warn("Init script %s failed: %v", name, err)
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(failed) > 0 {
		return outcome.Recoverable(errors.Join(failed...))
	}
	return outcome.OK()
}
