package shell

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanLinesSplitsCarriageReturns(t *testing.T) {
	input := "Pulling jetson\r 10%\r 55%\r100%\nStarted\n\n  \ntrailing"

	var lines []string
	require.NoError(t, ScanLines(strings.NewReader(input), func(l string) {
		lines = append(lines, l)
	}))

	require.Equal(t, []string{"Pulling jetson", " 10%", " 55%", "100%", "Started", "trailing"}, lines)
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "docker", Args: []string{"exec", "jetson-dev", "true"}}
	require.Equal(t, "docker exec jetson-dev true", c.String())
	require.Equal(t, "id", Command{Name: "id"}.String())
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := NewExecRunner()
	if _, err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	out, err := r.Run(context.Background(), Command{
		Name:  "sh",
		Args:  []string{"-c", "cat; echo err >&2"},
		Stdin: strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, "hello", out.Stdout)
	require.Equal(t, "err\n", out.Stderr)
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	r := NewExecRunner()
	if _, err := r.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	out, err := r.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo nope >&2; exit 3"},
		Env:  []string{"JETBOX_TEST=1"},
	})

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.ExitCode)
	require.Equal(t, 3, out.ExitCode)
	require.Contains(t, err.Error(), "nope")
}
