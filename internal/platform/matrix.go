// Package platform probes the Jetson host and maps it onto the JetPack
// compatibility matrix.
//
// The L4T release is read from /etc/nv_tegra_release and the board name
// from the device tree. The matrix is built in and can be replaced with a
// YAML file of the same shape:
//
//	releases:
//	  - jetpack: "6.1"
//	    l4t: "36.4.0"
//	    cuda: "12.6"
//	    cudnn: "9.3"
//	    tensorrt: "10.3"
//	    python: "3.10"
//	    modules: [AGX Orin, Orin NX, Orin Nano]
package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tsingmao/jetbox/internal/logger"
)

// MatrixEntry is one JetPack release row of the compatibility matrix.
type MatrixEntry struct {
	// JetPack is the JetPack SDK version, e.g. "6.1".
	JetPack string `yaml:"jetpack"`

	// L4T is the Linux for Tegra release the JetPack ships, e.g. "36.4.0".
	L4T string `yaml:"l4t"`

	CUDA     string `yaml:"cuda"`
	CuDNN    string `yaml:"cudnn"`
	TensorRT string `yaml:"tensorrt"`
	Python   string `yaml:"python"`

	// Modules lists the Jetson modules supported by the release.
	Modules []string `yaml:"modules"`
}

// Matrix is the JetPack compatibility matrix.
type Matrix struct {
	Releases []MatrixEntry `yaml:"releases"`
}

// DefaultMatrix returns the built-in compatibility matrix.
func DefaultMatrix() *Matrix {
	orin := []string{"AGX Orin", "Orin NX", "Orin Nano"}
	xavierOrin := []string{"AGX Xavier", "Xavier NX", "AGX Orin", "Orin NX", "Orin Nano"}
	legacy := []string{"Nano", "TX2", "TX2 NX", "AGX Xavier", "Xavier NX"}

	return &Matrix{Releases: []MatrixEntry{
		{JetPack: "6.2", L4T: "36.4.3", CUDA: "12.6", CuDNN: "9.3", TensorRT: "10.3", Python: "3.10", Modules: orin},
		{JetPack: "6.1", L4T: "36.4.0", CUDA: "12.6", CuDNN: "9.3", TensorRT: "10.3", Python: "3.10", Modules: orin},
		{JetPack: "6.0", L4T: "36.3.0", CUDA: "12.2", CuDNN: "8.9", TensorRT: "8.6", Python: "3.10", Modules: orin},
		{JetPack: "5.1.3", L4T: "35.5.0", CUDA: "11.4", CuDNN: "8.6", TensorRT: "8.5", Python: "3.8", Modules: xavierOrin},
		{JetPack: "5.1.2", L4T: "35.4.1", CUDA: "11.4", CuDNN: "8.6", TensorRT: "8.5", Python: "3.8", Modules: xavierOrin},
		{JetPack: "5.1.1", L4T: "35.3.1", CUDA: "11.4", CuDNN: "8.6", TensorRT: "8.5", Python: "3.8", Modules: xavierOrin},
		{JetPack: "4.6.4", L4T: "32.7.4", CUDA: "10.2", CuDNN: "8.2", TensorRT: "8.2", Python: "3.6", Modules: legacy},
	}}
}

// LoadMatrix reads a matrix from a YAML file.
//
// Parameters:
//   - path: Matrix file path (empty string returns the built-in matrix)
//
// Returns:
//   - Loaded matrix
//   - Error if the file cannot be read, parsed, or has no releases
func LoadMatrix(path string) (*Matrix, error) {
	if path == "" {
		return DefaultMatrix(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compatibility matrix: %w", err)
	}

	var m Matrix
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse compatibility matrix: %w", err)
	}
	if len(m.Releases) == 0 {
		return nil, fmt.Errorf("compatibility matrix %s has no releases", path)
	}
	for i, r := range m.Releases {
		if _, err := ParseVersion(r.L4T); err != nil {
			return nil, fmt.Errorf("release %d (JetPack %s): %w", i, r.JetPack, err)
		}
	}

	logger.Debug("Loaded %d release(s) from compatibility matrix %s", len(m.Releases), path)
	return &m, nil
}

// Lookup finds the release row for an L4T version.
//
// An exact match wins. Otherwise the row with the same major and minor and
// the highest patch not above v is returned, so a 36.4.2 host resolves to
// the 36.4.0 row.
func (m *Matrix) Lookup(v Version) (*MatrixEntry, bool) {
	var best *MatrixEntry
	var bestVersion Version

	for i := range m.Releases {
		entry := &m.Releases[i]
		ev, err := ParseVersion(entry.L4T)
		if err != nil {
			continue
		}
		if ev == v {
			return entry, true
		}
		if ev.Major != v.Major || ev.Minor != v.Minor || ev.Patch > v.Patch {
			continue
		}
		if best == nil || bestVersion.Less(ev) {
			best = entry
			bestVersion = ev
		}
	}
	return best, best != nil
}
