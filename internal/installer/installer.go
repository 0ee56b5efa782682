// Package installer provisions a ready container.
//
// The ONNX Runtime installer replaces the CPU-only onnxruntime package with
// a GPU build pinned to the JetPack release. It is idempotent: when the
// runtime already lists the expected execution provider nothing is changed.
package installer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/tsingmao/jetbox/internal/logger"
	"github.com/tsingmao/jetbox/internal/outcome"
	"github.com/tsingmao/jetbox/internal/shell"
)

var (
	// ErrDownloadFailed is returned when neither wget nor curl fetched the wheel.
	ErrDownloadFailed = errors.New("failed to download wheel")

	// ErrChecksumMismatch is returned when the downloaded wheel does not match WheelSHA256.
	ErrChecksumMismatch = errors.New("wheel checksum mismatch")

	// ErrProviderMissing is returned when verification does not find the expected provider.
	ErrProviderMissing = errors.New("execution provider not available after installation")
)

// providersScript prints the available execution providers, comma separated.
const providersScript = "import onnxruntime as ort; print(','.join(ort.get_available_providers()))"

// Execer runs commands inside the container.
type Execer interface {
	Exec(ctx context.Context, containerName string, argv ...string) (shell.Output, error)
}

// Options configure an ONNX Runtime installation.
type Options struct {
	// Container is the name of the ready container.
	Container string

	// WheelURL is the pinned wheel to install.
	WheelURL string

	// WheelSHA256 is the expected hex checksum. Empty skips the check.
	WheelSHA256 string

	// ExpectedProvider must be listed once installed, e.g. CUDAExecutionProvider.
	ExpectedProvider string

	// ConflictingPackages are removed before installing.
	ConflictingPackages []string

	// Python and Pip are the interpreter and installer inside the container.
	Python string
	Pip    string

	// TempDir is the container directory the wheel is downloaded to.
	TempDir string
}

// ONNXInstaller installs the GPU build of ONNX Runtime.
type ONNXInstaller struct {
	exec Execer
	opts Options
}

// NewONNXInstaller creates an installer, filling unset options with defaults.
func NewONNXInstaller(exec Execer, opts Options) *ONNXInstaller {
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.Pip == "" {
		opts.Pip = "pip3"
	}
	if opts.TempDir == "" {
		opts.TempDir = "/tmp"
	}
	return &ONNXInstaller{exec: exec, opts: opts}
}

// Install runs check → uninstall → download → checksum → install → verify.
//
// Returns:
//   - OK when the provider was already present or is present after installation
//   - Fatal on download, checksum, install or verification failure
func (i *ONNXInstaller) Install(ctx context.Context) outcome.Result {
	if providers, err := i.Providers(ctx); err == nil && contains(providers, i.opts.ExpectedProvider) {
		logger.Success("%s already available, skipping ONNX Runtime installation", i.opts.ExpectedProvider)
		return outcome.OK()
	} else if err != nil {
		logger.Debug("ONNX Runtime provider query failed: %v", err)
	} else {
		logger.Info("Available providers: %s", strings.Join(providers, ", "))
	}

	wheel, err := wheelName(i.opts.WheelURL)
	if err != nil {
		return outcome.Fatal(err)
	}
	target := path.Join(i.opts.TempDir, wheel)

	i.uninstallConflicts(ctx)

	logger.Info("Downloading %s", wheel)
	if err := i.download(ctx, target); err != nil {
		return outcome.Fatal(err)
	}

	if err := i.verifyChecksum(ctx, target); err != nil {
		i.remove(ctx, target)
		return outcome.Fatal(err)
	}

	logger.Info("Installing %s", wheel)
	_, installErr := i.exec.Exec(ctx, i.opts.Container, i.opts.Pip, "install", "--no-cache-dir", target)
	i.remove(ctx, target)
	if installErr != nil {
		return outcome.Fatal(fmt.Errorf("failed to install %s: %w", wheel, installErr))
	}

	providers, err := i.Providers(ctx)
	if err != nil {
		return outcome.Fatal(fmt.Errorf("failed to verify ONNX Runtime installation: %w", err))
	}
	if !contains(providers, i.opts.ExpectedProvider) {
		return outcome.Fatal(fmt.Errorf("%w: %s (found: %s)",
			ErrProviderMissing, i.opts.ExpectedProvider, strings.Join(providers, ", ")))
	}

	logger.Success("ONNX Runtime installed with %s", i.opts.ExpectedProvider)
	return outcome.OK()
}

// Providers queries the execution providers of the installed runtime.
func (i *ONNXInstaller) Providers(ctx context.Context) ([]string, error) {
	out, err := i.exec.Exec(ctx, i.opts.Container, i.opts.Python, "-c", providersScript)
	if err != nil {
		return nil, err
	}
	var providers []string
	for _, p := range strings.Split(strings.TrimSpace(out.Stdout), ",") {
		if p = strings.TrimSpace(p); p != "" {
			providers = append(providers, p)
		}
	}
	return providers, nil
}

func (i *ONNXInstaller) uninstallConflicts(ctx context.Context) {
	if len(i.opts.ConflictingPackages) == 0 {
		return
	}
	args := append([]string{i.opts.Pip, "uninstall", "-y"}, i.opts.ConflictingPackages...)
	if _, err := i.exec.Exec(ctx, i.opts.Container, args...); err != nil {
		// Packages that are not installed make pip exit non-zero.
		logger.Debug("Uninstall of %s reported: %v", strings.Join(i.opts.ConflictingPackages, ", "), err)
	}
}

func (i *ONNXInstaller) download(ctx context.Context, target string) error {
	_, wgetErr := i.exec.Exec(ctx, i.opts.Container, "wget", "-q", "-O", target, i.opts.WheelURL)
	if wgetErr == nil {
		return nil
	}
	logger.Debug("wget failed, retrying with curl: %v", wgetErr)

	_, curlErr := i.exec.Exec(ctx, i.opts.Container, "curl", "-fsSL", "-o", target, i.opts.WheelURL)
	if curlErr == nil {
		return nil
	}
	return fmt.Errorf("%w from %s: %w", ErrDownloadFailed, i.opts.WheelURL, errors.Join(wgetErr, curlErr))
}

func (i *ONNXInstaller) verifyChecksum(ctx context.Context, target string) error {
	want := strings.ToLower(strings.TrimSpace(i.opts.WheelSHA256))
	if want == "" {
		return nil
	}
	out, err := i.exec.Exec(ctx, i.opts.Container, "sha256sum", target)
	if err != nil {
		return fmt.Errorf("failed to checksum %s: %w", target, err)
	}
	fields := strings.Fields(out.Stdout)
	if len(fields) == 0 || fields[0] != want {
		got := ""
		if len(fields) > 0 {
			got = fields[0]
		}
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, want, got)
	}
	logger.Debug("Checksum verified: %s", want)
	return nil
}

// remove deletes the downloaded wheel. Failures only matter for disk space.
func (i *ONNXInstaller) remove(ctx context.Context, target string) {
	if _, err := i.exec.Exec(ctx, i.opts.Container, "rm", "-f", target); err != nil {
		logger.Debug("Failed to remove %s: %v", target, err)
	}
}

func wheelName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid wheel URL %q: %w", raw, err)
	}
	name := path.Base(u.Path)
	if !strings.HasSuffix(name, ".whl") {
		return "", fmt.Errorf("invalid wheel URL %q: path does not name a .whl file", raw)
	}
	return name, nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
