package workspace

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// matcher applies include and exclude patterns to paths relative to a root.
// Patterns always use forward slashes.
type matcher struct {
	root    string
	include []string
	exclude []string
	outDir  string
}

func newMatcher(root string, opts ScanOptions) (*matcher, error) {
	include := opts.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	exclude := append(append([]string(nil), DefaultExclude...), opts.Exclude...)

	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid include pattern: %s", pattern)
		}
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
	}

	return &matcher{
		root:    root,
		include: include,
		exclude: exclude,
		outDir:  opts.OutDir,
	}, nil
}

func (m *matcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// excluded reports whether path, a file or directory, is skipped.
func (m *matcher) excluded(path string) bool {
	if m.outDir != "" && (path == m.outDir || strings.HasPrefix(path, m.outDir+string(filepath.Separator))) {
		return true
	}

	rel, ok := m.rel(path)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}

	for _, pattern := range m.exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// matches reports whether the file at path is converted.
func (m *matcher) matches(path string) bool {
	if m.excluded(path) {
		return false
	}
	rel, _ := m.rel(path)

	for _, pattern := range m.include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

// discover walks the root and returns matching files in lexical order.
func (m *matcher) discover() ([]string, error) {
	var files []string

	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == m.root {
				return err
			}
			return nil
		}

		if d.IsDir() {
			if path != m.root && m.excluded(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if m.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
