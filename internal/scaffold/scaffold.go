// Package scaffold creates the project directory layout.
package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsingmao/jetbox/internal/logger"
)

const (
	// DirMode is the permission of created directories.
	DirMode os.FileMode = 0o755

	// KeepFile marks an otherwise empty directory so it survives version control.
	KeepFile = ".gitkeep"
)

// Result lists what a scaffold run did.
type Result struct {
	Created  []string
	Existing []string
}

// Ensure creates every directory in dirs under root. Directories that already
// exist are left alone, so running it repeatedly is safe. An empty directory
// gets a KeepFile marker.
//
// Parameters:
//   - root: Project root, must exist
//   - dirs: Relative directory names
//
// Returns:
//   - What was created and what already existed
//   - Error if a directory cannot be created or a path is not a directory
func Ensure(root string, dirs []string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	res := &Result{}
	for _, dir := range dirs {
		if dir == "" || filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), "..") {
			return res, fmt.Errorf("invalid project directory %q: must be relative to the project root", dir)
		}
		path := filepath.Join(root, dir)

		existed, err := isDir(path)
		if err != nil {
			return res, err
		}
		if existed {
			res.Existing = append(res.Existing, dir)
		} else {
			if err := os.MkdirAll(path, DirMode); err != nil {
				return res, fmt.Errorf("failed to create %s: %w", path, err)
			}
			logger.Debug("Created directory %s", path)
			res.Created = append(res.Created, dir)
		}

		if err := ensureKeep(path); err != nil {
			return res, err
		}
	}
	return res, nil
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return true, nil
}

func ensureKeep(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, KeepFile), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s marker in %s: %w", KeepFile, dir, err)
	}
	return f.Close()
}
