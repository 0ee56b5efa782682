package installer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsingmao/jetbox/internal/outcome"
	"github.com/tsingmao/jetbox/internal/shell"
)

const wheelURL = "https://pypi.jetson-ai-lab.dev/jp6/cu126/+f/abc/onnxruntime_gpu-1.20.0-cp310-cp310-linux_aarch64.whl"

// scriptedExec answers commands by their first argument and records them.
type scriptedExec struct {
	calls     []string
	responses map[string][]result
}

type result struct {
	stdout string
	err    error
}

func newScriptedExec() *scriptedExec {
	return &scriptedExec{responses: map[string][]result{}}
}

func (e *scriptedExec) on(program string, results ...result) {
	e.responses[program] = results
}

func (e *scriptedExec) Exec(_ context.Context, name string, argv ...string) (shell.Output, error) {
	e.calls = append(e.calls, name+": "+strings.Join(argv, " "))
	queue := e.responses[argv[0]]
	if len(queue) == 0 {
		return shell.Output{}, nil
	}
	r := queue[0]
	if len(queue) > 1 {
		e.responses[argv[0]] = queue[1:]
	}
	return shell.Output{Stdout: r.stdout}, r.err
}

func (e *scriptedExec) programs() []string {
	var out []string
	for _, c := range e.calls {
		fields := strings.Fields(strings.SplitN(c, ": ", 2)[1])
		out = append(out, fields[0]+" "+fields[1])
	}
	return out
}

func exitErr(stderr string) error {
	return &shell.ExitError{Command: "docker exec", ExitCode: 1, Stderr: stderr}
}

func newInstaller(e Execer) *ONNXInstaller {
	return NewONNXInstaller(e, Options{
		Container:           "jetson-dev",
		WheelURL:            wheelURL,
		ExpectedProvider:    "CUDAExecutionProvider",
		ConflictingPackages: []string{"onnxruntime", "onnxruntime-gpu"},
	})
}

func TestInstallShortCircuitsWhenProviderPresent(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: "TensorrtExecutionProvider,CUDAExecutionProvider,CPUExecutionProvider\n"})

	res := newInstaller(e).Install(context.Background())

	require.Equal(t, outcome.SeverityOK, res.Severity)
	require.Equal(t, []string{"python3 -c"}, e.programs())
}

func TestInstallRunsStepsInOrder(t *testing.T) {
	e := newScriptedExec()
	e.on("python3",
		result{stdout: "CPUExecutionProvider\n"},
		result{stdout: "CUDAExecutionProvider,CPUExecutionProvider\n"},
	)
	e.on("pip3", result{err: exitErr("WARNING: Skipping onnxruntime-gpu as it is not installed.")}, result{})

	res := newInstaller(e).Install(context.Background())

	require.Equal(t, outcome.SeverityOK, res.Severity, "uninstall errors are ignored")
	require.Equal(t, []string{
		"python3 -c",
		"pip3 uninstall",
		"wget -q",
		"pip3 install",
		"rm -f",
		"python3 -c",
	}, e.programs())

	target := "/tmp/onnxruntime_gpu-1.20.0-cp310-cp310-linux_aarch64.whl"
	require.Equal(t, "jetson-dev: pip3 uninstall -y onnxruntime onnxruntime-gpu", e.calls[1])
	require.Equal(t, "jetson-dev: wget -q -O "+target+" "+wheelURL, e.calls[2])
	require.Equal(t, "jetson-dev: pip3 install --no-cache-dir "+target, e.calls[3])
}

func TestInstallFallsBackToCurl(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{err: exitErr("ModuleNotFoundError: No module named 'onnxruntime'")}, result{stdout: "CUDAExecutionProvider"})
	e.on("wget", result{err: exitErr("wget: not found")})

	res := newInstaller(e).Install(context.Background())

	require.Equal(t, outcome.SeverityOK, res.Severity)
	require.Contains(t, e.programs(), "curl -fsSL")
}

func TestInstallDownloadFailureIsFatal(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: ""})
	e.on("wget", result{err: exitErr("404")})
	e.on("curl", result{err: exitErr("404")})

	res := newInstaller(e).Install(context.Background())

	require.True(t, res.IsFatal())
	require.ErrorIs(t, res.Err, ErrDownloadFailed)
	for _, p := range e.programs() {
		require.NotEqual(t, "pip3 install", p)
	}
}

func TestInstallFailureIsFatalAndCleansUp(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: "CPUExecutionProvider"})
	e.on("pip3", result{}, result{err: exitErr("not a supported wheel on this platform")})

	res := newInstaller(e).Install(context.Background())

	require.True(t, res.IsFatal())
	require.ErrorContains(t, res.Err, "failed to install")
	require.Equal(t, "rm -f", e.programs()[len(e.programs())-1])
}

func TestInstallVerificationFailure(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: "CPUExecutionProvider"})

	res := newInstaller(e).Install(context.Background())

	require.True(t, res.IsFatal())
	require.ErrorIs(t, res.Err, ErrProviderMissing)
}

func TestInvalidWheelURL(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: "CPUExecutionProvider"})
	inst := NewONNXInstaller(e, Options{Container: "c", WheelURL: "https://example.com/download", ExpectedProvider: "CUDAExecutionProvider"})

	res := inst.Install(context.Background())
	require.True(t, res.IsFatal())
	require.Equal(t, []string{"python3 -c"}, e.programs())
}

func TestScriptRunnerOrderAndBestEffort(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"init-20-models.sh", "init-10-deps.sh", "notes.txt", "init-30-fail.sh"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/bash\n"), 0o755))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "init-dir.sh"), 0o755))

	e := newScriptedExec()
	e.on("bash", result{}, result{err: exitErr("boom")}, result{})

	r := NewScriptRunner(e, "jetson-dev", dir, "/workspace/scripts", "init-*.sh")
	res := r.Run(context.Background())

	require.Equal(t, outcome.SeverityRecoverable, res.Severity)
	require.ErrorContains(t, res.Err, "init-20-models.sh")
	require.Equal(t, []string{
		"jetson-dev: bash /workspace/scripts/init-10-deps.sh",
		"jetson-dev: bash /workspace/scripts/init-20-models.sh",
		"jetson-dev: bash /workspace/scripts/init-30-fail.sh",
	}, e.calls)
}

func TestScriptRunnerMissingDir(t *testing.T) {
	e := newScriptedExec()
	r := NewScriptRunner(e, "c", filepath.Join(t.TempDir(), "scripts"), "/workspace/scripts", "init-*.sh")

	res := r.Run(context.Background())
	require.Equal(t, outcome.SeverityOK, res.Severity)
	require.Empty(t, e.calls)
}

func TestInstallChecksumMismatchIsFatal(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: "CPUExecutionProvider"})
	e.on("sha256sum", result{stdout: "deadbeef  /tmp/onnxruntime_gpu-1.20.0-cp310-cp310-linux_aarch64.whl\n"})

	inst := newInstaller(e)
	inst.opts.WheelSHA256 = "CAFEBABE"
	res := inst.Install(context.Background())

	require.True(t, res.IsFatal())
	require.ErrorIs(t, res.Err, ErrChecksumMismatch)
	require.Equal(t, []string{"python3 -c", "pip3 uninstall", "wget -q", "sha256sum /tmp/onnxruntime_gpu-1.20.0-cp310-cp310-linux_aarch64.whl", "rm -f"}, e.programs())
}

func TestInstallChecksumMatch(t *testing.T) {
	e := newScriptedExec()
	e.on("python3", result{stdout: "CPUExecutionProvider"}, result{stdout: "CUDAExecutionProvider"})
	e.on("sha256sum", result{stdout: "cafebabe  /tmp/x.whl\n"})

	inst := newInstaller(e)
	inst.opts.WheelSHA256 = "CAFEBABE"
	res := inst.Install(context.Background())

	require.Equal(t, outcome.SeverityOK, res.Severity)
	require.Contains(t, e.programs(), "pip3 install")
}
