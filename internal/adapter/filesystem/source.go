// Package filesystem loads input files from local paths.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gasparespejo/EFILabs/internal/domain"
)

// Extensions lists the file suffixes picked up when a directory is expanded.
var Extensions = []string{".csv", ".txt", ".xlsx", ".xlsm"}

// Source loads input files from a list of files and directories.
// Directories are walked recursively; only files with a known extension are
// taken from them. Explicit file paths are read regardless of extension.
type Source struct {
	paths []string
}

// NewSource creates a Source over the given paths.
func NewSource(paths []string) *Source {
	return &Source{paths: paths}
}

// Fetch reads every input file. Files are returned in path order so that
// repeated runs see the same input sequence. A configured path that does not
// exist fails the fetch; a listed file that cannot be read is returned with
// ReadErr set.
func (s *Source) Fetch(ctx context.Context) ([]domain.SourceFile, error) {
	var names []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			names = append(names, p)
		}
	}

	for _, root := range s.paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat input %s: %w", root, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(root))
			continue
		}
		var found []string
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !HasInputExtension(p) {
				return nil
			}
			found = append(found, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk input %s: %w", root, err)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}

	files := make([]domain.SourceFile, 0, len(names))
	for _, p := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			files = append(files, domain.SourceFile{Name: p, ReadErr: fmt.Errorf("read input: %w", err)})
			continue
		}
		files = append(files, domain.SourceFile{Name: p, Content: content})
	}
	return files, nil
}

// HasInputExtension reports whether name ends in one of Extensions,
// ignoring case. Office lock files ("~$...") are never inputs.
func HasInputExtension(name string) bool {
	if strings.HasPrefix(filepath.Base(name), "~$") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
