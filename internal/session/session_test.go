package session

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLauncher(tty bool) *Launcher {
	l := NewLauncher("jetson-dev", "bash")
	l.lookPath = func(string) (string, error) { return "/usr/bin/docker", nil }
	l.isTerminal = func(int) bool { return tty }
	return l
}

func TestArgvAllocatesTTYOnlyForTerminals(t *testing.T) {
	require.Equal(t, []string{"docker", "exec", "-it", "jetson-dev", "bash"}, newTestLauncher(true).Argv())
	require.Equal(t, []string{"docker", "exec", "-i", "jetson-dev", "bash"}, newTestLauncher(false).Argv())
}

func TestExecReplacesProcess(t *testing.T) {
	var gotPath string
	var gotArgv, gotEnv []string
	saved := execFunc
	execFunc = func(path string, argv, env []string) error {
		gotPath, gotArgv, gotEnv = path, argv, env
		return nil
	}
	t.Cleanup(func() { execFunc = saved })

	require.NoError(t, newTestLauncher(true).Exec())
	require.Equal(t, "/usr/bin/docker", gotPath)
	require.Equal(t, []string{"docker", "exec", "-it", "jetson-dev", "bash"}, gotArgv)
	require.Equal(t, os.Environ(), gotEnv)
}

func TestExecFailures(t *testing.T) {
	l := newTestLauncher(false)
	l.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	require.ErrorContains(t, l.Exec(), "failed to locate docker")

	saved := execFunc
	execFunc = func(string, []string, []string) error { return errors.New("permission denied") }
	t.Cleanup(func() { execFunc = saved })

	require.ErrorContains(t, newTestLauncher(false).Exec(), "permission denied")
}
