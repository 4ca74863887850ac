package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverError is a path argument that cannot produce suites.
type DiscoverError struct {
	Code    string
	Path    string
	Message string
}

func (e *DiscoverError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// DiscoverSuites expands path arguments into suite files, in argument order.
// A directory contributes its non-hidden regular files, sorted by name,
// without descending into subdirectories. A file argument is used as is,
// hidden or not.
func DiscoverSuites(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DiscoverError{Code: ErrCodeNotFound, Path: p, Message: "no such file or directory"}
		}
		if err != nil {
			return nil, &DiscoverError{Code: ErrCodeScanError, Path: p, Message: err.Error()}
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, &DiscoverError{Code: ErrCodeScanError, Path: p, Message: err.Error()}
		}
		var found []string
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
				continue
			}
			found = append(found, filepath.Join(p, entry.Name()))
		}
		if len(found) == 0 {
			return nil, &DiscoverError{Code: ErrCodeNoFiles, Path: p, Message: "directory contains no suite files"}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}
