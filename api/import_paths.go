package api

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	internalErrors "github.com/gcbaptista/librarian/internal/errors"
)

var errOutsideImportDirs = errors.New("path is outside the import directories")

// importRoots cleans dirs into absolute paths. A directory reached through a
// symbolic link is listed both as given and as resolved.
func importRoots(dirs []string) []string {
	var roots []string
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		roots = append(roots, abs)
		if resolved, err := filepath.EvalSymlinks(abs); err == nil && resolved != abs {
			roots = append(roots, resolved)
		}
	}
	return roots
}

// within reports whether path lies strictly below one of roots.
func within(roots []string, path string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			continue
		}
		return true
	}
	return false
}

// resolveImportPath returns the real location of path when both the path as
// given and its symlink-free form lie inside the import directories.
func (api *API) resolveImportPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil || !within(api.importDirs, abs) {
		return "", errOutsideImportDirs
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", internalErrors.NewStorageError(path, err)
	}
	if !within(api.importDirs, resolved) {
		return "", errOutsideImportDirs
	}
	return resolved, nil
}
