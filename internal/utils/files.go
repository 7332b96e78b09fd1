package utils

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFiles recursively finds the files in dir whose extension is one of
// exts, in lexical order
func FindFiles(dir string, exts ...string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, want := range exts {
			if ext == want {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ExpandPaths replaces every directory in paths with the files it contains
// that have one of the extensions. Plain files are kept as they are.
func ExpandPaths(paths []string, exts ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := FindFiles(p, exts...)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}
