package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/retry"
)

var (
	// ErrComposeFailed is returned when compose could not bring the service up.
	ErrComposeFailed = errors.New("failed to start container")

	// ErrNotReady is returned when the readiness poll is exhausted.
	ErrNotReady = errors.New("container did not become ready")
)

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	// ContainerName is the fixed name of the managed container.
	ContainerName string

	// StopTimeout bounds graceful shutdown of a previous instance.
	StopTimeout time.Duration

	// UpTimeout bounds the compose invocation.
	UpTimeout time.Duration

	// Readiness bounds the readiness poll.
	Readiness retry.Policy

	// LogTailLines is how many log lines are surfaced on readiness failure.
	LogTailLines int

	// DiagnosticsDir receives a readiness failure report when non-empty.
	DiagnosticsDir string
}

// Supervisor drives the container through not-running → starting → ready
// (or failed). It guarantees at most one running container with the
// configured name by stopping any previous instance before compose runs.
//
// Thread Safety: State is safe for concurrent reads; Start must not be
// called concurrently.
type Supervisor struct {
	engine   Engine
	composer Composer
	execer   Execer
	opts     SupervisorOptions
	now      func() time.Time

	mu    sync.RWMutex
	state SupervisorState
}

// NewSupervisor creates a Supervisor in the not-running state.
func NewSupervisor(engine Engine, composer Composer, execer Execer, opts SupervisorOptions) *Supervisor {
	return &Supervisor{
		engine:   engine,
		composer: composer,
		execer:   execer,
		opts:     opts,
		now:      time.Now,
		state:    StateNotRunning,
	}
}

// State returns the current supervisor state.
func (s *Supervisor) State() SupervisorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Supervisor) transition(to SupervisorState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == to {
		return
	}
	if canTransition(s.state, to) {
		logger.Debug("Supervisor state: %s -> %s", s.state, to)
	} else {
		logger.Debug("Supervisor reset: %s -> %s", s.state, to)
	}
	s.state = to
}

// StopExisting stops the named container if it is running.
//
// Returns:
//   - true if a running container was stopped
//   - Error if the lookup or the stop fails
func (s *Supervisor) StopExisting(ctx context.Context) (bool, error) {
	existing, err := s.engine.FindContainer(ctx, s.opts.ContainerName)
	if err != nil {
		return false, err
	}
	if existing == nil || !existing.Running {
		return false, nil
	}

	logger.Info("Stopping running container %s (%s)", s.opts.ContainerName, existing.ShortID())
	if err := s.engine.StopContainer(ctx, existing.ID, s.opts.StopTimeout); err != nil {
		return false, err
	}
	logger.Info("Stopped previous instance of %s", s.opts.ContainerName)
	return true, nil
}

// Start replaces any running instance and brings the service up.
//
// The method performs the following:
//  1. Stops a running container with the same name
//  2. Runs compose "up" within the configured timeout, passing env only to compose
//  3. Polls the container with a trivial command until it responds
//
// Parameters:
//   - ctx: Context for cancellation
//   - env: Environment entries for the compose process (display forwarding)
//
// Returns:
//   - nil once the container is ready
//   - ErrComposeFailed or ErrNotReady (wrapped) on failure
func (s *Supervisor) Start(ctx context.Context, env []string) error {
	if s.State() != StateNotRunning {
		s.transition(StateNotRunning)
	}

	if _, err := s.StopExisting(ctx); err != nil {
		s.transition(StateFailed)
		return fmt.Errorf("%w: %v", ErrComposeFailed, err)
	}

	s.transition(StateStarting)

	upCtx, cancel := context.WithTimeout(ctx, s.opts.UpTimeout)
	err := s.composer.Up(upCtx, env)
	cancel()
	if err != nil {
		s.transition(StateFailed)
		return fmt.Errorf("%w: %v", ErrComposeFailed, err)
	}

	return s.WaitReady(ctx)
}

// Probe runs the trivial readiness command once.
func (s *Supervisor) Probe(ctx context.Context) error {
	_, err := s.execer.Exec(ctx, s.opts.ContainerName, "true")
	return err
}

// WaitReady polls the container until it executes a trivial command.
//
// On exhaustion the last log lines of the container are printed and, when a
// diagnostics directory is configured, written to a report file.
func (s *Supervisor) WaitReady(ctx context.Context) error {
	logger.Info("Waiting for container %s to become ready (%d attempts, %s apart)",
		s.opts.ContainerName, s.opts.Readiness.Attempts, s.opts.Readiness.Interval)

	attempts, err := retry.Poll(ctx, s.opts.Readiness, func(ctx context.Context, attempt int) error {
		err := s.Probe(ctx)
		if err != nil {
			logger.Debug("Readiness attempt %d/%d failed: %v", attempt, s.opts.Readiness.Attempts, err)
		}
		return err
	})
	if err == nil {
		s.transition(StateReady)
		logger.Success("Container %s is ready (attempt %d)", s.opts.ContainerName, attempts)
		return nil
	}

	s.transition(StateFailed)
	if !errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	logger.Error("Container %s did not become ready after %d attempts", s.opts.ContainerName, attempts)
	s.reportLogs(ctx)
	return fmt.Errorf("%w after %d attempts: %v", ErrNotReady, attempts, err)
}

func (s *Supervisor) reportLogs(ctx context.Context) {
	if s.opts.LogTailLines <= 0 {
		return
	}

	target := s.opts.ContainerName
	if existing, err := s.engine.FindContainer(ctx, s.opts.ContainerName); err == nil && existing != nil {
		target = existing.ID
		if existing.Error != "" {
			logger.Error("Container state: %s", existing.Error)
		}
	}

	logs, err := s.engine.TailLogs(ctx, target, s.opts.LogTailLines)
	if err != nil {
		logger.Warn("Could not read container logs: %v", err)
	}
	if strings.TrimSpace(logs) == "" {
		return
	}

	logger.Error("Last %d log lines of %s:", s.opts.LogTailLines, s.opts.ContainerName)
	for _, line := range strings.Split(strings.TrimRight(logs, "\n"), "\n") {
		logger.Error("  %s", line)
	}

	if s.opts.DiagnosticsDir == "" {
		return
	}
	path, err := s.writeReport(logs)
	if err != nil {
		logger.Warn("Could not write diagnostics report: %v", err)
		return
	}
	logger.Info("Diagnostics written to %s", path)
}

func (s *Supervisor) writeReport(logs string) (string, error) {
	if err := os.MkdirAll(s.opts.DiagnosticsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	ts := s.now()
	name := fmt.Sprintf("readiness-%s.log", ts.Format("20060102-150405"))
	path := filepath.Join(s.opts.DiagnosticsDir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "container: %s\n", s.opts.ContainerName)
	fmt.Fprintf(&b, "time: %s\n", ts.Format(time.RFC3339))
	fmt.Fprintf(&b, "attempts: %d\n", s.opts.Readiness.Attempts)
	fmt.Fprintf(&b, "interval: %s\n\n", s.opts.Readiness.Interval)
	b.WriteString(logs)

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
