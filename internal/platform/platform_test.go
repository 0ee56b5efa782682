package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const orinRelease = "# R36 (release), REVISION: 4.0, GCID: 37537400, BOARD: generic, EABI: aarch64, DATE: Fri Sep 13 04:36:44 UTC 2024\n# KERNEL_VARIANT: oot\n"

func TestParseRelease(t *testing.T) {
	rel, err := ParseRelease(orinRelease)
	require.NoError(t, err)
	require.Equal(t, Version{Major: 36, Minor: 4, Patch: 0}, rel.Version)
	require.Equal(t, "generic", rel.Board)

	rel, err = ParseRelease("# R35 (release), REVISION: 4.1, GCID: 33958178, BOARD: t186ref, EABI: aarch64")
	require.NoError(t, err)
	require.Equal(t, "35.4.1", rel.Version.String())

	rel, err = ParseRelease("# R32 (release), REVISION: 7, GCID: 1, BOARD: t210ref")
	require.NoError(t, err)
	require.Equal(t, "32.7.0", rel.Version.String())

	_, err = ParseRelease("Ubuntu 22.04")
	require.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("r36.4")
	require.NoError(t, err)
	require.Equal(t, Version{36, 4, 0}, v)

	for _, bad := range []string{"", "36", "36.x", "1.2.3.4", "36.-1"} {
		_, err := ParseVersion(bad)
		require.Error(t, err, bad)
	}
	require.True(t, Version{35, 5, 0}.Less(Version{36, 0, 0}))
	require.False(t, Version{36, 4, 3}.Less(Version{36, 4, 0}))
}

func TestMatrixLookup(t *testing.T) {
	m := DefaultMatrix()

	entry, ok := m.Lookup(Version{36, 4, 0})
	require.True(t, ok)
	require.Equal(t, "6.1", entry.JetPack)

	entry, ok = m.Lookup(Version{36, 4, 2})
	require.True(t, ok)
	require.Equal(t, "6.1", entry.JetPack, "patch releases resolve to the closest lower row")

	entry, ok = m.Lookup(Version{36, 4, 3})
	require.True(t, ok)
	require.Equal(t, "6.2", entry.JetPack)

	_, ok = m.Lookup(Version{34, 1, 0})
	require.False(t, ok)
}

func TestLoadMatrixFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
releases:
  - jetpack: "7.0"
    l4t: "38.2.0"
    cuda: "13.0"
    modules: [Thor]
`), 0644))

	m, err := LoadMatrix(path)
	require.NoError(t, err)
	entry, ok := m.Lookup(Version{38, 2, 0})
	require.True(t, ok)
	require.Equal(t, []string{"Thor"}, entry.Modules)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("releases: []\n"), 0644))
	_, err = LoadMatrix(empty)
	require.Error(t, err)

	def, err := LoadMatrix("")
	require.NoError(t, err)
	require.NotEmpty(t, def.Releases)
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	releaseFile := filepath.Join(dir, "nv_tegra_release")
	modelFile := filepath.Join(dir, "model")
	present := filepath.Join(dir, "nvmap")
	require.NoError(t, os.WriteFile(releaseFile, []byte(orinRelease), 0644))
	require.NoError(t, os.WriteFile(modelFile, []byte("NVIDIA Jetson AGX Orin Developer Kit\x00"), 0644))
	require.NoError(t, os.WriteFile(present, nil, 0644))
	missing := filepath.Join(dir, "nvhost-gpu")

	info, err := NewProber(releaseFile, modelFile, []string{present, missing}, nil).Probe()
	require.NoError(t, err)
	require.Equal(t, "NVIDIA Jetson AGX Orin Developer Kit", info.Model)
	require.NotNil(t, info.Entry)
	require.Equal(t, "6.1", info.Entry.JetPack)
	require.Equal(t, []string{present}, info.PresentDevices)
	require.Equal(t, []string{missing}, info.MissingDevices)
	require.Len(t, info.Warnings(), 1)
}

func TestProbeNonJetson(t *testing.T) {
	_, err := NewProber(filepath.Join(t.TempDir(), "absent"), "", nil, nil).Probe()
	require.ErrorIs(t, err, ErrNotJetson)
}
