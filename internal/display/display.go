// Package display prepares X11 forwarding for the Jetson container.
//
// Nothing here mutates the process environment. The resolved values are
// returned in Settings and handed to the compose invocation as explicit
// environment entries.
package display

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/outcome"
	"github.com/tsingmao/jetbox/internal/shell"
)

// ErrNoDisplay is reported when DISPLAY is unset.
var ErrNoDisplay = errors.New("DISPLAY is not set")

// wildcardFamily replaces the address family of each xauth entry so the
// cookie matches any host name, including the container's.
const wildcardFamily = "ffff"

// Settings are the display values passed to the container.
type Settings struct {
	Display       string
	XAuthority    string
	XDGRuntimeDir string

	// AuthFile is the regenerated authority artifact mounted into the container.
	AuthFile string

	// AccessGranted reports whether local clients were allowed via xhost.
	AccessGranted bool

	// AuthRegenerated reports whether AuthFile holds fresh credentials.
	AuthRegenerated bool
}

// Env returns the settings as KEY=value entries for a child process.
func (s *Settings) Env() []string {
	var env []string
	add := func(key, value string) {
		if value != "" {
			env = append(env, key+"="+value)
		}
	}
	add("DISPLAY", s.Display)
	add("XAUTHORITY", s.XAuthority)
	add("XDG_RUNTIME_DIR", s.XDGRuntimeDir)
	add("XAUTH", s.AuthFile)
	return env
}

// Options configure a Configurator.
type Options struct {
	AuthFile     string
	AuthFileMode os.FileMode
}

// Configurator resolves display settings and regenerates the authority artifact.
type Configurator struct {
	runner shell.Runner
	getenv func(string) string
	opts   Options
}

// NewConfigurator creates a Configurator.
func NewConfigurator(runner shell.Runner, getenv func(string) string, opts Options) *Configurator {
	return &Configurator{runner: runner, getenv: getenv, opts: opts}
}

// Configure resolves the display settings and, when xhost is available,
// grants local access and regenerates the authority artifact.
//
// Settings are always returned. Any failure is reported as a recoverable
// result joining every problem encountered; the container can still start
// without GUI support.
func (c *Configurator) Configure(ctx context.Context) (*Settings, outcome.Result) {
	var problems []error

	s := &Settings{
		Display:  c.getenv("DISPLAY"),
		AuthFile: c.opts.AuthFile,
	}

	xauthority, err := c.resolveXAuthority(ctx)
	if err != nil {
		problems = append(problems, err)
	}
	s.XAuthority = xauthority

	runtimeDir, err := c.resolveRuntimeDir(ctx)
	if err != nil {
		problems = append(problems, err)
	}
	s.XDGRuntimeDir = runtimeDir

	if _, err := c.runner.LookPath("xhost"); err != nil {
		problems = append(problems, errors.New("xhost not found; skipping display access setup"))
		return s, recoverable(problems)
	}

	if _, err := c.runner.Run(ctx, shell.Command{Name: "xhost", Args: []string{"+local:"}}); err != nil {
		problems = append(problems, fmt.Errorf("failed to allow local X clients: %w", err))
	} else {
		s.AccessGranted = true
		logger.Debug("Granted local access to the X server")
	}

	if s.Display == "" {
		problems = append(problems, ErrNoDisplay)
		return s, recoverable(problems)
	}

	if err := c.regenerateAuth(ctx, s); err != nil {
		problems = append(problems, err)
	} else {
		s.AuthRegenerated = true
		logger.Debug("Regenerated X authority artifact %s", s.AuthFile)
	}

	return s, recoverable(problems)
}

func recoverable(problems []error) outcome.Result {
	if len(problems) == 0 {
		return outcome.OK()
	}
	return outcome.Recoverable(errors.Join(problems...))
}

func (c *Configurator) resolveXAuthority(ctx context.Context) (string, error) {
	if v := c.getenv("XAUTHORITY"); v != "" {
		return v, nil
	}

	if out, err := c.runner.Run(ctx, shell.Command{Name: "xauth", Args: []string{"info"}}); err == nil {
		if path := parseAuthorityFile(out.Stdout); path != "" {
			return path, nil
		}
	}

	home := c.getenv("HOME")
	if home == "" {
		return "", errors.New("cannot resolve XAUTHORITY: xauth gave no authority file and HOME is not set")
	}
	return filepath.Join(home, ".Xauthority"), nil
}

// parseAuthorityFile extracts the "Authority file:" value from `xauth info`.
func parseAuthorityFile(info string) string {
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(key) == "Authority file" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func (c *Configurator) resolveRuntimeDir(ctx context.Context) (string, error) {
	if v := c.getenv("XDG_RUNTIME_DIR"); v != "" {
		return v, nil
	}
	out, err := c.runner.Run(ctx, shell.Command{Name: "id", Args: []string{"-u"}})
	if err != nil {
		return "", fmt.Errorf("cannot resolve XDG_RUNTIME_DIR: %w", err)
	}
	uid := strings.TrimSpace(out.Stdout)
	if uid == "" {
		return "", errors.New("cannot resolve XDG_RUNTIME_DIR: empty user id")
	}
	return "/run/user/" + uid, nil
}

func (c *Configurator) regenerateAuth(ctx context.Context, s *Settings) error {
	if s.AuthFile == "" {
		return errors.New("no authority artifact path configured")
	}

	// Docker creates a directory when a bind-mount source is missing. Clear
	// an empty one so the artifact can be written.
	if info, err := os.Stat(s.AuthFile); err == nil && info.IsDir() {
		if err := os.Remove(s.AuthFile); err != nil {
			return fmt.Errorf("authority artifact %s is a directory: %w", s.AuthFile, err)
		}
	}

	if err := os.WriteFile(s.AuthFile, nil, 0o600); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", s.AuthFile, err)
	}

	env := []string{}
	if s.XAuthority != "" {
		env = append(env, "XAUTHORITY="+s.XAuthority)
	}
	list, err := c.runner.Run(ctx, shell.Command{
		Name: "xauth",
		Args: []string{"nlist", s.Display},
		Env:  env,
	})
	if err != nil {
		return fmt.Errorf("failed to list X credentials for %s: %w", s.Display, err)
	}

	merged := wildcardEntries(list.Stdout)
	if merged == "" {
		return fmt.Errorf("no X credentials found for %s", s.Display)
	}

	if _, err := c.runner.Run(ctx, shell.Command{
		Name:  "xauth",
		Args:  []string{"-f", s.AuthFile, "nmerge", "-"},
		Stdin: strings.NewReader(merged),
	}); err != nil {
		return fmt.Errorf("failed to merge X credentials into %s: %w", s.AuthFile, err)
	}

	if err := os.Chmod(s.AuthFile, c.opts.AuthFileMode); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", s.AuthFile, err)
	}
	return nil
}

// wildcardEntries rewrites the family field of every `xauth nlist` entry.
func wildcardEntries(nlist string) string {
	var b strings.Builder
	for _, line := range strings.Split(nlist, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len(wildcardFamily) {
			continue
		}
		b.WriteString(wildcardFamily)
		b.WriteString(line[len(wildcardFamily):])
		b.WriteByte('\n')
	}
	return b.String()
}
