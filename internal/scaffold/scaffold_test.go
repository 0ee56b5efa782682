package scaffold

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, path)
		paths = append(paths, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)
	return paths
}

func TestEnsureIsIdempotent(t *testing.T) {
	root := t.TempDir()
	dirs := []string{"src", "models", "data", "diagnostics"}

	first, err := Ensure(root, dirs)
	require.NoError(t, err)
	require.Equal(t, dirs, first.Created)
	require.Empty(t, first.Existing)
	tree := listTree(t, root)

	second, err := Ensure(root, dirs)
	require.NoError(t, err)
	require.Empty(t, second.Created)
	require.Equal(t, dirs, second.Existing)
	require.Equal(t, tree, listTree(t, root))

	for _, d := range dirs {
		info, err := os.Stat(filepath.Join(root, d))
		require.NoError(t, err)
		require.True(t, info.IsDir())
		require.FileExists(t, filepath.Join(root, d, KeepFile))
	}
}

func TestEnsureLeavesPopulatedDirectoriesAlone(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "yolo.onnx"), []byte("x"), 0o644))

	res, err := Ensure(root, []string{"models"})
	require.NoError(t, err)
	require.Equal(t, []string{"models"}, res.Existing)
	require.NoFileExists(t, filepath.Join(root, "models", KeepFile))
}

func TestEnsureRejectsFileInTheWay(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "data"), nil, 0o644))

	_, err := Ensure(root, []string{"data"})
	require.ErrorContains(t, err, "not a directory")
}

func TestEnsureRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	_, err := Ensure(root, []string{"../outside"})
	require.Error(t, err)
	_, err = Ensure(root, []string{"/abs"})
	require.Error(t, err)
}

func TestEnsureMissingRoot(t *testing.T) {
	_, err := Ensure(filepath.Join(t.TempDir(), "nope"), []string{"src"})
	require.Error(t, err)
}
