package cdrwatch

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MatchFilter reports whether the base name of path matches filter, ignoring
// case. "*.*" matches every name, including names without an extension.
func MatchFilter(filter, path string) bool {
	if filter == "" || filter == "*" || filter == "*.*" {
		return true
	}
	ok, err := filepath.Match(strings.ToLower(filter), strings.ToLower(filepath.Base(path)))
	return err == nil && ok
}

// isFileEntry reports whether e is a regular file or a symlink resolving to one.
func isFileEntry(dir string, e fs.DirEntry) bool {
	switch {
	case e.Type().IsRegular():
		return true
	case e.Type()&fs.ModeSymlink != 0:
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		return err == nil && info.Mode().IsRegular()
	default:
		return false
	}
}

// ListMatching returns the full paths of files directly under dir whose
// names match filter, in directory order. Symlinks are followed; only those
// that resolve to regular files are listed.
func ListMatching(dir, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !isFileEntry(dir, e) {
			continue
		}
		if !MatchFilter(filter, e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
