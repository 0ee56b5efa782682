package prereq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsingmao/jetbox/internal/platform"
	"github.com/tsingmao/jetbox/internal/shell/shelltest"
)

type fakeDaemon struct {
	pingErr  error
	runtimes []string
	pinged   bool
}

func (d *fakeDaemon) Ping(context.Context) error {
	d.pinged = true
	return d.pingErr
}

func (d *fakeDaemon) Runtimes(context.Context) ([]string, error) {
	return d.runtimes, nil
}

type fakeProber struct {
	info *platform.Info
	err  error
}

func (p fakeProber) Probe() (*platform.Info, error) { return p.info, p.err }

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestAllPrerequisitesPresent(t *testing.T) {
	runner := shelltest.New("docker", "xhost")
	daemon := &fakeDaemon{runtimes: []string{"nvidia", "runc"}}

	r := NewChecker(runner, daemon, nil, env(nil)).Check(context.Background())

	require.True(t, r.OK())
	require.NoError(t, r.Err())
	require.Equal(t, []string{"docker", "compose"}, r.ComposeCommand)
	require.True(t, r.GPURuntime)
	require.True(t, r.DisplayHelper)
	require.Empty(t, r.Warnings)
}

func TestMissingDockerIsFatalAndSkipsDaemon(t *testing.T) {
	runner := shelltest.New("xhost")
	daemon := &fakeDaemon{}

	r := NewChecker(runner, daemon, nil, env(nil)).Check(context.Background())

	require.False(t, r.OK())
	require.ErrorIs(t, r.Err(), ErrMissingPrerequisites)
	require.Equal(t, []string{"docker", "docker compose"}, r.Missing)
	require.False(t, daemon.pinged)
	require.Empty(t, runner.Lines(), "no commands run without docker")
}

func TestStandaloneComposeFallback(t *testing.T) {
	runner := shelltest.New("docker", "docker-compose", "xhost")
	runner.On("docker compose version", shelltest.Exit(1, "docker: 'compose' is not a docker command."))

	r := NewChecker(runner, &fakeDaemon{runtimes: []string{"nvidia"}}, nil, env(nil)).Check(context.Background())

	require.True(t, r.OK())
	require.Equal(t, []string{"docker-compose"}, r.ComposeCommand)
}

func TestUnreachableDaemonIsFatal(t *testing.T) {
	runner := shelltest.New("docker", "xhost")
	daemon := &fakeDaemon{pingErr: errors.New("Cannot connect to the Docker daemon")}

	r := NewChecker(runner, daemon, nil, env(nil)).Check(context.Background())

	require.False(t, r.OK())
	require.Empty(t, r.Missing)
	require.ErrorContains(t, r.Err(), "Cannot connect")
}

func TestAdvisoryChecksOnlyWarn(t *testing.T) {
	runner := shelltest.New("docker")
	daemon := &fakeDaemon{runtimes: []string{"runc"}}
	prober := fakeProber{err: platform.ErrNotJetson}

	r := NewChecker(runner, daemon, prober, env(map[string]string{"SSH_CONNECTION": "10.0.0.2 5555 10.0.0.3 22"})).
		Check(context.Background())

	require.True(t, r.OK())
	require.False(t, r.GPURuntime)
	require.False(t, r.DisplayHelper)
	require.Len(t, r.Warnings, 4)
}

func TestPlatformWarningsAreCollected(t *testing.T) {
	runner := shelltest.New("docker", "xhost")
	info := &platform.Info{
		Release:        platform.Release{Version: platform.Version{Major: 36, Minor: 4}},
		Entry:          &platform.MatrixEntry{JetPack: "6.1"},
		MissingDevices: []string{"/dev/nvhost-vic"},
	}

	r := NewChecker(runner, &fakeDaemon{runtimes: []string{"nvidia"}}, fakeProber{info: info}, env(nil)).
		Check(context.Background())

	require.True(t, r.OK())
	require.Same(t, info, r.Platform)
	require.Len(t, r.Warnings, 1)
	require.Contains(t, r.Warnings[0], "/dev/nvhost-vic")
}
