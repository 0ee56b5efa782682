// Package config provides configuration management for jetbox.
//
// This package defines the single Config struct that is threaded through
// every bring-up step (prerequisite checks, scaffolding, display forwarding,
// container supervision, post-start installation and the interactive
// session). Nothing in jetbox reads configuration from the ambient process
// environment after Load returns; the only environment values consumed later
// are the display variables handed to the compose boundary call.
//
// Configuration is layered:
//  1. Built-in defaults (NewDefaultConfig)
//  2. Optional YAML file (--config flag, JETBOX_CONFIG, or jetbox.yaml in the
//     project root)
//  3. Command-line flag overrides applied by the CLI
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsingmao/jetbox/internal/logger"
)

const (
	// DefaultConfigFileName is looked up in the project root when no explicit
	// configuration file is given.
	DefaultConfigFileName = "jetbox.yaml"

	// ConfigEnvVar names the environment variable holding a config file path.
	ConfigEnvVar = "JETBOX_CONFIG"

	// DefaultContainerName is the fixed name of the managed container.
	DefaultContainerName = "jetson-dev"

	// DefaultServiceName is the compose service that runs the container.
	DefaultServiceName = "jetson"

	// DefaultImage is the vendor-supplied Jetson image the descriptor references.
	DefaultImage = "nvcr.io/nvidia/l4t-jetpack:r36.4.0"

	// DefaultComposeFile is the descriptor file name relative to the project root.
	DefaultComposeFile = "docker-compose.yml"

	// DefaultWorkspaceDir is where the project root is mounted in the container.
	DefaultWorkspaceDir = "/workspace"

	// DefaultShell is the interactive shell started by the session launcher.
	DefaultShell = "bash"

	// DefaultAuthFile is the regenerated X authority artifact shared with the container.
	DefaultAuthFile = "/tmp/.docker.xauth"

	// DefaultAuthFileMode is the permission applied to the authority artifact.
	// The container user is not the host user.
	DefaultAuthFileMode os.FileMode = 0666

	// DefaultReadinessAttempts bounds the readiness poll.
	DefaultReadinessAttempts = 30

	// DefaultReadinessInterval spaces readiness attempts.
	DefaultReadinessInterval = time.Second

	// DefaultLogTailLines is how many container log lines are surfaced when
	// the readiness poll is exhausted.
	DefaultLogTailLines = 50

	// DefaultStopTimeout bounds graceful shutdown of a previous instance.
	DefaultStopTimeout = 10 * time.Second

	// DefaultUpTimeout bounds the compose "up" invocation.
	DefaultUpTimeout = 5 * time.Minute

	// DefaultWheelURL is the pinned ONNX Runtime GPU wheel for JetPack 6 (Python 3.10, aarch64).
	DefaultWheelURL = "https://pypi.jetson-ai-lab.dev/jp6/cu126/onnxruntime-gpu/onnxruntime_gpu-1.20.0-cp310-cp310-linux_aarch64.whl"

	// DefaultExpectedProvider is the execution provider the installer verifies.
	DefaultExpectedProvider = "CUDAExecutionProvider"

	// DefaultScriptsDir holds additional init scripts, relative to the project root.
	DefaultScriptsDir = "scripts"

	// DefaultScriptPattern selects init scripts inside the scripts directory.
	DefaultScriptPattern = "init-*.sh"
)

// DefaultDirectories is the fixed project directory set created by the scaffolder.
var DefaultDirectories = []string{"src", "models", "data", "diagnostics"}

// DefaultConflictingPackages are uninstalled before the GPU wheel is installed.
var DefaultConflictingPackages = []string{"onnxruntime", "onnxruntime-gpu"}

// Config represents the complete jetbox configuration.
type Config struct {
	// Project describes the host-side working tree.
	Project ProjectConfig `yaml:"project"`

	// Container describes the managed container and its compose descriptor.
	Container ContainerConfig `yaml:"container"`

	// Readiness controls the post-start readiness poll.
	Readiness ReadinessConfig `yaml:"readiness"`

	// Display controls X11 forwarding.
	Display DisplayConfig `yaml:"display"`

	// Installer controls the post-start installer.
	Installer InstallerConfig `yaml:"installer"`

	// Platform controls Jetson platform probing.
	Platform PlatformConfig `yaml:"platform"`
}

// ProjectConfig describes the project root on the host.
type ProjectConfig struct {
	// Root is the absolute project root. All relative paths resolve against it.
	Root string `yaml:"root"`

	// Directories are created under Root by the scaffolder.
	Directories []string `yaml:"directories"`

	// DiagnosticsDir receives readiness failure reports. Relative to Root.
	DiagnosticsDir string `yaml:"diagnostics_dir"`
}

// ContainerConfig describes the managed container.
type ContainerConfig struct {
	// Name is the fixed container name. At most one container with this
	// name is running at any time.
	Name string `yaml:"name"`

	// Service is the compose service name.
	Service string `yaml:"service"`

	// Image is the prebuilt image referenced by the descriptor.
	Image string `yaml:"image"`

	// ComposeFile is the descriptor path, relative to the project root.
	ComposeFile string `yaml:"compose_file"`

	// WorkspaceDir is the container path the project root is mounted at.
	WorkspaceDir string `yaml:"workspace_dir"`

	// Shell is the interactive shell started in the container.
	Shell string `yaml:"shell"`

	// Runtime is the Docker runtime requested by the descriptor.
	Runtime string `yaml:"runtime"`

	// Devices are the host device nodes passed through to the container.
	Devices []string `yaml:"devices"`

	// Ports are optional port specs, only used when NetworkMode is not "host".
	Ports []string `yaml:"ports"`

	// NetworkMode is the compose network mode. Defaults to "host".
	NetworkMode string `yaml:"network_mode"`

	// StopTimeout bounds graceful shutdown of a previous instance.
	StopTimeout Duration `yaml:"stop_timeout"`

	// UpTimeout bounds the compose "up" invocation.
	UpTimeout Duration `yaml:"up_timeout"`
}

// ReadinessConfig controls the readiness poll.
type ReadinessConfig struct {
	Attempts     int      `yaml:"attempts"`
	Interval     Duration `yaml:"interval"`
	LogTailLines int      `yaml:"log_tail_lines"`
}

// DisplayConfig controls X11 forwarding.
type DisplayConfig struct {
	// Enabled turns display forwarding on. Failures are always warnings.
	Enabled bool `yaml:"enabled"`

	// AuthFile is the regenerated authority artifact path.
	AuthFile string `yaml:"auth_file"`

	// AuthFileMode is applied to AuthFile after regeneration.
	AuthFileMode os.FileMode `yaml:"auth_file_mode"`
}

// InstallerConfig controls the post-start installer.
type InstallerConfig struct {
	// WheelURL is the pinned download URL of the GPU runtime wheel.
	WheelURL string `yaml:"wheel_url"`

	// WheelSHA256 optionally pins the wheel checksum (hex).
	WheelSHA256 string `yaml:"wheel_sha256"`

	// ExpectedProvider must be listed by the runtime after installation.
	ExpectedProvider string `yaml:"expected_provider"`

	// ConflictingPackages are uninstalled before installation.
	ConflictingPackages []string `yaml:"conflicting_packages"`

	// Python is the interpreter used for provider queries.
	Python string `yaml:"python"`

	// Pip is the package installer used inside the container.
	Pip string `yaml:"pip"`

	// ScriptsDir holds additional init scripts, relative to the project root.
	ScriptsDir string `yaml:"scripts_dir"`

	// ScriptPattern selects init scripts in ScriptsDir.
	ScriptPattern string `yaml:"script_pattern"`
}

// PlatformConfig controls Jetson platform probing.
type PlatformConfig struct {
	// ReleaseFile holds the L4T release string.
	ReleaseFile string `yaml:"release_file"`

	// ModelFile holds the board model name.
	ModelFile string `yaml:"model_file"`

	// MatrixFile optionally overrides the built-in compatibility matrix.
	MatrixFile string `yaml:"matrix_file"`
}

// Duration is a time.Duration that reads from YAML strings such as "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// NewDefaultConfig creates a configuration with default values rooted at projectRoot.
//
// Parameters:
//   - projectRoot: Host project directory (empty string uses the working directory)
//
// Returns:
//   - A pointer to a newly created Config with default values
//
// Example:
//
//	cfg := config.NewDefaultConfig("")
//	fmt.Println(cfg.ComposeFilePath())
func NewDefaultConfig(projectRoot string) *Config {
	if projectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		projectRoot = wd
	}
	if abs, err := filepath.Abs(projectRoot); err == nil {
		projectRoot = abs
	}

	return &Config{
		Project: ProjectConfig{
			Root:           projectRoot,
			Directories:    append([]string(nil), DefaultDirectories...),
			DiagnosticsDir: "diagnostics",
		},
		Container: ContainerConfig{
			Name:         DefaultContainerName,
			Service:      DefaultServiceName,
			Image:        DefaultImage,
			ComposeFile:  DefaultComposeFile,
			WorkspaceDir: DefaultWorkspaceDir,
			Shell:        DefaultShell,
			Runtime:      "nvidia",
			NetworkMode:  "host",
			Devices: []string{
				"/dev/nvhost-ctrl",
				"/dev/nvhost-ctrl-gpu",
				"/dev/nvhost-prof-gpu",
				"/dev/nvmap",
				"/dev/nvhost-gpu",
				"/dev/nvhost-as-gpu",
				"/dev/nvhost-vic",
				"/dev/nvhost-nvdec",
				"/dev/nvhost-msenc",
				"/dev/video0",
			},
			StopTimeout: Duration(DefaultStopTimeout),
			UpTimeout:   Duration(DefaultUpTimeout),
		},
		Readiness: ReadinessConfig{
			Attempts:     DefaultReadinessAttempts,
			Interval:     Duration(DefaultReadinessInterval),
			LogTailLines: DefaultLogTailLines,
		},
		Display: DisplayConfig{
			Enabled:      true,
			AuthFile:     DefaultAuthFile,
			AuthFileMode: DefaultAuthFileMode,
		},
		Installer: InstallerConfig{
			WheelURL:            DefaultWheelURL,
			ExpectedProvider:    DefaultExpectedProvider,
			ConflictingPackages: append([]string(nil), DefaultConflictingPackages...),
			Python:              "python3",
			Pip:                 "pip3",
			ScriptsDir:          DefaultScriptsDir,
			ScriptPattern:       DefaultScriptPattern,
		},
		Platform: PlatformConfig{
			ReleaseFile: "/etc/nv_tegra_release",
			ModelFile:   "/proc/device-tree/model",
		},
	}
}

// Load builds the configuration for projectRoot, overlaying a YAML file when one is found.
//
// Configuration File Location Priority:
//  1. explicitPath parameter
//  2. JETBOX_CONFIG environment variable
//  3. jetbox.yaml in the project root (optional)
//
// An explicit path (1 or 2) that does not exist is an error; a missing
// jetbox.yaml in the project root is not.
//
// Parameters:
//   - projectRoot: Host project directory (empty string uses the working directory)
//   - explicitPath: Optional configuration file path
//
// Returns:
//   - Loaded and validated configuration
//   - Error if the file cannot be read, parsed or validated
func Load(projectRoot, explicitPath string) (*Config, error) {
	cfg := NewDefaultConfig(projectRoot)

	path := explicitPath
	required := true
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
		if path != "" {
			logger.Debug("Using config from %s: %s", ConfigEnvVar, path)
		}
	}
	if path == "" {
		path = filepath.Join(cfg.Project.Root, DefaultConfigFileName)
		required = false
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !required:
		logger.Debug("No config file at %s, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		logger.Debug("Loaded config file: %s", path)
	}

	if !filepath.IsAbs(cfg.Project.Root) {
		abs, err := filepath.Abs(cfg.Project.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve project root: %w", err)
		}
		cfg.Project.Root = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can drive a bring-up.
func (c *Config) Validate() error {
	switch {
	case c.Project.Root == "":
		return fmt.Errorf("project root is required")
	case c.Container.Name == "":
		return fmt.Errorf("container name is required")
	case c.Container.Service == "":
		return fmt.Errorf("compose service name is required")
	case c.Container.ComposeFile == "":
		return fmt.Errorf("compose file is required")
	case c.Container.Shell == "":
		return fmt.Errorf("container shell is required")
	case c.Readiness.Attempts < 1:
		return fmt.Errorf("readiness attempts must be at least 1, got %d", c.Readiness.Attempts)
	case c.Readiness.Interval < 0:
		return fmt.Errorf("readiness interval must not be negative")
	case c.Container.UpTimeout.Std() <= 0:
		return fmt.Errorf("compose up timeout must be positive")
	case c.Installer.ExpectedProvider == "":
		return fmt.Errorf("installer expected provider is required")
	}

	for _, dir := range c.Project.Directories {
		if dir == "" || filepath.IsAbs(dir) {
			return fmt.Errorf("project directory %q must be a non-empty relative path", dir)
		}
	}
	return nil
}

// ResolvePath returns p resolved against the project root.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// ComposeFilePath returns the absolute descriptor path.
func (c *Config) ComposeFilePath() string {
	return c.ResolvePath(c.Container.ComposeFile)
}

// DiagnosticsPath returns the absolute diagnostics directory.
func (c *Config) DiagnosticsPath() string {
	return c.ResolvePath(c.Project.DiagnosticsDir)
}

// ScriptsPath returns the absolute init scripts directory.
func (c *Config) ScriptsPath() string {
	return c.ResolvePath(c.Installer.ScriptsDir)
}
