package app

import (
	"os"
	"path"

	"github.com/tsingmao/jetbox/internal/config"
	"github.com/tsingmao/jetbox/internal/display"
	"github.com/tsingmao/jetbox/internal/installer"
	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/platform"
	"github.com/tsingmao/jetbox/internal/prereq"
	"github.com/tsingmao/jetbox/internal/retry"
	"github.com/tsingmao/jetbox/internal/runtime"
	"github.com/tsingmao/jetbox/internal/session"
	"github.com/tsingmao/jetbox/internal/shell"
)

// deps holds the collaborators shared by the commands of one invocation.
type deps struct {
	cfg    *config.Config
	runner shell.Runner
	engine runtime.Engine
}

// newDeps loads the configuration and connects to the Docker daemon.
//
// The daemon is not contacted until a command uses the engine, so a
// missing daemon surfaces as a prerequisite failure rather than here.
func newDeps(opts *GlobalOptions) (*deps, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, runner: shell.NewExecRunner()}

	engine, err := runtime.NewDockerEngine()
	if err != nil {
		logger.Debug("Docker client unavailable: %v", err)
	} else {
		d.engine = engine
	}
	return d, nil
}

// Close releases the Docker client.
func (d *deps) Close() {
	if d.engine != nil {
		_ = d.engine.Close()
	}
}

// requireEngine returns the engine or the reason it is unavailable.
func (d *deps) requireEngine() (runtime.Engine, error) {
	if d.engine == nil {
		return nil, runtime.ErrDaemonUnreachable
	}
	return d.engine, nil
}

func (d *deps) prober() (*platform.Prober, error) {
	p := d.cfg.Platform
	matrixFile := ""
	if p.MatrixFile != "" {
		matrixFile = d.cfg.ResolvePath(p.MatrixFile)
	}
	matrix, err := platform.LoadMatrix(matrixFile)
	if err != nil {
		return nil, err
	}
	return platform.NewProber(p.ReleaseFile, p.ModelFile, d.cfg.Container.Devices, matrix), nil
}

func (d *deps) checker() *prereq.Checker {
	var daemon prereq.Daemon
	if d.engine != nil {
		daemon = d.engine
	}
	var prober prereq.PlatformProber
	if p, err := d.prober(); err != nil {
		logger.Warn("Platform probe disabled: %v", err)
	} else {
		prober = p
	}
	return prereq.NewChecker(d.runner, daemon, prober, os.Getenv)
}

func (d *deps) displayConfigurator() *display.Configurator {
	return display.NewConfigurator(d.runner, os.Getenv, display.Options{
		AuthFile:     d.cfg.Display.AuthFile,
		AuthFileMode: d.cfg.Display.AuthFileMode,
	})
}

func (d *deps) execer() *runtime.DockerExec {
	return runtime.NewDockerExec(d.runner)
}

// supervisor builds a Supervisor driving compose through composeCommand,
// e.g. ["docker", "compose"].
func (d *deps) supervisor(engine runtime.Engine, composeCommand []string) *runtime.Supervisor {
	c := d.cfg.Container
	composer := runtime.NewComposeCLI(d.runner, composeCommand, d.cfg.ComposeFilePath(), c.Service, d.cfg.Project.Root)
	return runtime.NewSupervisor(engine, composer, d.execer(), runtime.SupervisorOptions{
		ContainerName:  c.Name,
		StopTimeout:    c.StopTimeout.Std(),
		UpTimeout:      c.UpTimeout.Std(),
		Readiness:      d.readinessPolicy(),
		LogTailLines:   d.cfg.Readiness.LogTailLines,
		DiagnosticsDir: d.cfg.DiagnosticsPath(),
	})
}

func (d *deps) onnxInstaller() *installer.ONNXInstaller {
	in := d.cfg.Installer
	return installer.NewONNXInstaller(d.execer(), installer.Options{
		Container:           d.cfg.Container.Name,
		WheelURL:            in.WheelURL,
		WheelSHA256:         in.WheelSHA256,
		ExpectedProvider:    in.ExpectedProvider,
		ConflictingPackages: in.ConflictingPackages,
		Python:              in.Python,
		Pip:                 in.Pip,
	})
}

func (d *deps) scriptRunner() *installer.ScriptRunner {
	in := d.cfg.Installer
	containerDir := in.ScriptsDir
	if !path.IsAbs(containerDir) {
		containerDir = path.Join(d.cfg.Container.WorkspaceDir, containerDir)
	}
	return installer.NewScriptRunner(d.execer(), d.cfg.Container.Name, d.cfg.ScriptsPath(), containerDir, in.ScriptPattern)
}

func (d *deps) launcher() *session.Launcher {
	return session.NewLauncher(d.cfg.Container.Name, d.cfg.Container.Shell)
}

func (d *deps) readinessPolicy() retry.Policy {
	return retry.Policy{
		Attempts: d.cfg.Readiness.Attempts,
		Interval: d.cfg.Readiness.Interval.Std(),
	}
}
