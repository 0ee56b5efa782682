package platform

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotJetson is returned when the host has no L4T release file.
var ErrNotJetson = errors.New("not a Jetson host: L4T release file not found")

// Info is the probed Jetson platform.
type Info struct {
	// Model is the device tree model, e.g. "NVIDIA Jetson AGX Orin Developer Kit".
	Model string

	// Release is the parsed L4T release.
	Release Release

	// Entry is the matching compatibility matrix row, nil if unknown.
	Entry *MatrixEntry

	// PresentDevices are the configured device nodes found on the host.
	PresentDevices []string

	// MissingDevices are the configured device nodes absent on the host.
	MissingDevices []string
}

// Warnings lists the non-fatal findings of a probe.
func (i *Info) Warnings() []string {
	var warnings []string
	if i.Entry == nil {
		warnings = append(warnings, fmt.Sprintf("L4T %s is not in the compatibility matrix", i.Release.Version))
	}
	if len(i.MissingDevices) > 0 {
		warnings = append(warnings, fmt.Sprintf("device node(s) not found: %s", strings.Join(i.MissingDevices, ", ")))
	}
	return warnings
}

// Prober reads platform information from the host filesystem.
type Prober struct {
	// ReleaseFile is the L4T release file, usually /etc/nv_tegra_release.
	ReleaseFile string

	// ModelFile is the device tree model file, usually /proc/device-tree/model.
	ModelFile string

	// Devices are the device nodes the container expects.
	Devices []string

	// Matrix is the compatibility matrix. Nil uses DefaultMatrix.
	Matrix *Matrix

	stat func(string) (os.FileInfo, error)
}

// NewProber creates a Prober.
func NewProber(releaseFile, modelFile string, devices []string, matrix *Matrix) *Prober {
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	return &Prober{
		ReleaseFile: releaseFile,
		ModelFile:   modelFile,
		Devices:     devices,
		Matrix:      matrix,
		stat:        os.Stat,
	}
}

// Probe reads the platform.
//
// Returns:
//   - Probed platform info
//   - ErrNotJetson if the release file is missing
//   - Error if the release file is unreadable or malformed
func (p *Prober) Probe() (*Info, error) {
	data, err := os.ReadFile(p.ReleaseFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotJetson
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.ReleaseFile, err)
	}

	rel, err := ParseRelease(string(data))
	if err != nil {
		return nil, err
	}

	info := &Info{Release: rel}
	if model, err := os.ReadFile(p.ModelFile); err == nil {
		// Device tree strings are NUL-terminated.
		info.Model = strings.TrimSpace(strings.TrimRight(string(model), "\x00"))
	}

	matrix := p.Matrix
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	if entry, ok := matrix.Lookup(rel.Version); ok {
		info.Entry = entry
	}

	stat := p.stat
	if stat == nil {
		stat = os.Stat
	}
	for _, dev := range p.Devices {
		if _, err := stat(dev); err != nil {
			info.MissingDevices = append(info.MissingDevices, dev)
		} else {
			info.PresentDevices = append(info.PresentDevices, dev)
		}
	}
	return info, nil
}
