package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsingmao/jetbox/internal/retry"
	"github.com/tsingmao/jetbox/internal/shell"
	"github.com/tsingmao/jetbox/internal/shell/shelltest"
)

// fakeEngine records calls into a shared event log.
type fakeEngine struct {
	events    *[]string
	container *ContainerStatus
	findErr   error
	stopErr   error
	logs      string
	stopped   []string
	timeouts  []time.Duration
}

func (f *fakeEngine) Ping(context.Context) error { return nil }

func (f *fakeEngine) Runtimes(context.Context) ([]string, error) { return []string{"nvidia", "runc"}, nil }

func (f *fakeEngine) FindContainer(_ context.Context, name string) (*ContainerStatus, error) {
	*f.events = append(*f.events, "find "+name)
	return f.container, f.findErr
}

func (f *fakeEngine) StopContainer(_ context.Context, id string, timeout time.Duration) error {
	*f.events = append(*f.events, "stop "+id)
	f.stopped = append(f.stopped, id)
	f.timeouts = append(f.timeouts, timeout)
	if f.stopErr == nil && f.container != nil {
		f.container.Running = false
	}
	return f.stopErr
}

func (f *fakeEngine) TailLogs(_ context.Context, id string, lines int) (string, error) {
	*f.events = append(*f.events, "logs "+id)
	return f.logs, nil
}

func (f *fakeEngine) Close() error { return nil }

type fakeComposer struct {
	events   *[]string
	err      error
	env      []string
	deadline bool
}

func (f *fakeComposer) Up(ctx context.Context, env []string) error {
	*f.events = append(*f.events, "up")
	f.env = env
	_, f.deadline = ctx.Deadline()
	return f.err
}

type recordingExec struct {
	events *[]string
	fake   *shelltest.Fake
}

func (r *recordingExec) Exec(ctx context.Context, name string, argv ...string) (shell.Output, error) {
	*r.events = append(*r.events, "exec")
	return NewDockerExec(r.fake).Exec(ctx, name, argv...)
}

type harness struct {
	events   []string
	engine   *fakeEngine
	composer *fakeComposer
	fake     *shelltest.Fake
	sleeps   []time.Duration
	sup      *Supervisor
}

func newHarness(t *testing.T, diagnostics string) *harness {
	t.Helper()
	h := &harness{fake: shelltest.New("docker")}
	h.engine = &fakeEngine{events: &h.events}
	h.composer = &fakeComposer{events: &h.events}
	policy := retry.Policy{
		Attempts: 30,
		Interval: time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}
	h.sup = NewSupervisor(h.engine, h.composer, &recordingExec{events: &h.events, fake: h.fake}, SupervisorOptions{
		ContainerName:  "jetson-dev",
		StopTimeout:    10 * time.Second,
		UpTimeout:      time.Minute,
		Readiness:      policy,
		LogTailLines:   50,
		DiagnosticsDir: diagnostics,
	})
	h.sup.now = func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }
	return h
}

func TestStartStopsRunningInstanceBeforeCompose(t *testing.T) {
	h := newHarness(t, "")
	h.engine.container = &ContainerStatus{ID: "abc123", Name: "jetson-dev", Running: true}

	require.NoError(t, h.sup.Start(context.Background(), []string{"DISPLAY=:0"}))

	require.Equal(t, []string{"find jetson-dev", "stop abc123", "up", "exec"}, h.events)
	require.Equal(t, []time.Duration{10 * time.Second}, h.engine.timeouts)
	require.Equal(t, []string{"DISPLAY=:0"}, h.composer.env)
	require.True(t, h.composer.deadline)
	require.Equal(t, StateReady, h.sup.State())
}

func TestStartSkipsStopWhenNothingRuns(t *testing.T) {
	h := newHarness(t, "")
	h.engine.container = &ContainerStatus{ID: "old", Name: "jetson-dev", Running: false}

	require.NoError(t, h.sup.Start(context.Background(), nil))
	require.Empty(t, h.engine.stopped)
	require.Equal(t, []string{"docker exec jetson-dev true"}, h.fake.Lines())
}

func TestReadyOnFirstSuccessfulProbe(t *testing.T) {
	h := newHarness(t, "")
	h.fake.On("docker exec jetson-dev true",
		shelltest.Exit(1, "container is not running"),
		shelltest.Exit(1, "container is not running"),
		shelltest.Response{},
	)

	require.NoError(t, h.sup.Start(context.Background(), nil))
	require.Equal(t, 3, h.fake.Count("docker exec"))
	require.Len(t, h.sleeps, 2)
	require.Equal(t, StateReady, h.sup.State())
}

func TestReadinessExhaustionIsFatalAndReportsLogs(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)
	h.engine.logs = "starting jetson\nnvmap: permission denied\n"
	h.fake.On("docker exec jetson-dev true", shelltest.Exit(1, "not running"))

	err := h.sup.Start(context.Background(), nil)

	require.ErrorIs(t, err, ErrNotReady)
	require.Equal(t, 30, h.fake.Count("docker exec jetson-dev true"))
	require.Len(t, h.sleeps, 29)
	for _, d := range h.sleeps {
		require.Equal(t, time.Second, d)
	}
	require.Equal(t, StateFailed, h.sup.State())
	require.Contains(t, h.events, "logs jetson-dev")

	report, readErr := os.ReadFile(filepath.Join(dir, "readiness-20261016-093000.log"))
	require.NoError(t, readErr)
	require.Contains(t, string(report), "nvmap: permission denied")
	require.Contains(t, string(report), "attempts: 30")
}

func TestComposeFailureIsFatal(t *testing.T) {
	h := newHarness(t, "")
	h.composer.err = errors.New("no such image")

	err := h.sup.Start(context.Background(), nil)

	require.ErrorIs(t, err, ErrComposeFailed)
	require.Equal(t, StateFailed, h.sup.State())
	require.Zero(t, h.fake.Count("docker exec"))
}

func TestStopFailureAbortsBeforeCompose(t *testing.T) {
	h := newHarness(t, "")
	h.engine.container = &ContainerStatus{ID: "abc123", Running: true}
	h.engine.stopErr = errors.New("permission denied")

	err := h.sup.Start(context.Background(), nil)

	require.ErrorIs(t, err, ErrComposeFailed)
	require.NotContains(t, h.events, "up")
}

func TestComposeCLIBuildsInvocation(t *testing.T) {
	fake := shelltest.New("docker")
	fake.On("docker compose", shelltest.Stdout("Container jetson-dev  Started\n"))

	c := NewComposeCLI(fake, []string{"docker", "compose"}, "/p/docker-compose.yml", "jetson", "/p")
	require.NoError(t, c.Up(context.Background(), []string{"XAUTHORITY=/tmp/.docker.xauth"}))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "docker compose -f /p/docker-compose.yml up -d --force-recreate jetson", calls[0].Command.String())
	require.Equal(t, []string{"XAUTHORITY=/tmp/.docker.xauth"}, calls[0].Command.Env)
	require.Equal(t, "/p", calls[0].Command.Dir)
}

func TestComposeCLIStandaloneTool(t *testing.T) {
	fake := shelltest.New("docker-compose")
	fake.On("docker-compose", shelltest.Exit(1, "yaml: line 3"))

	c := NewComposeCLI(fake, []string{"docker-compose"}, "/p/dc.yml", "jetson", "/p")
	err := c.Up(context.Background(), nil)

	require.Error(t, err)
	require.Equal(t, "docker-compose -f /p/dc.yml up -d --force-recreate jetson", fake.Lines()[0])
}

func TestShellQuote(t *testing.T) {
	require.Equal(t, "plain", ShellQuote("plain"))
	require.Equal(t, "''", ShellQuote(""))
	require.Equal(t, `'it'\''s here'`, ShellQuote("it's here"))
}
