package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Enumerate lists the source files of one collection in lexical walk order.
// Hidden files and directories are skipped.
func Enumerate(root, collection string, exts []string) ([]string, error) {
	dir := filepath.Join(root, collection)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("content collection: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content collection %s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasExt(path, exts) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}
