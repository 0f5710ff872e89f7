// Package locate walks artifact trees for files matching name and content
// constraints.
package locate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Filter describes the constraints a file must satisfy to be returned.
type Filter struct {
	// ContentNeedles: any line of the file must contain at least one.
	ContentNeedles []string
	// NameIncludes: the file path must contain all of these.
	NameIncludes []string
	// NameExcludes: the file path must contain none of these.
	NameExcludes []string
}

// Locator finds artifact files under a root directory. Traversal follows
// symbolic links since artifact trees are often symlinked from shared
// storage. No index is maintained; each call scans file content.
type Locator struct {
	log logrus.FieldLogger
}

// New creates a Locator.
func New(log logrus.FieldLogger) *Locator {
	return &Locator{log: log.WithField("component", "locator")}
}

// FindFiles returns the sorted set of file paths under root satisfying the
// filter. Files that cannot be opened are excluded, never an error. The
// only error condition is a missing root.
func (l *Locator) FindFiles(root string, filter Filter) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("invalid search root %s: %w", root, err)
	}

	var results []string

	visited := make(map[string]struct{})

	l.walk(root, visited, func(path string) {
		if !matchesName(path, filter) {
			return
		}

		if containsAnyLine(path, filter.ContentNeedles) {
			results = append(results, path)
		}
	})

	sort.Strings(results)

	return results, nil
}

// walk recurses into root, following symlinked directories. Resolved
// directory paths are tracked to break symlink cycles.
func (l *Locator) walk(dir string, visited map[string]struct{}, fn func(path string)) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		l.log.WithError(err).WithField("dir", dir).Debug("skipping unresolvable directory")

		return
	}

	if _, ok := visited[resolved]; ok {
		return
	}

	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		l.log.WithError(err).WithField("dir", dir).Debug("skipping unreadable directory")

		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		// Stat (not Lstat) so symlinks to directories descend.
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		if info.IsDir() {
			l.walk(path, visited, fn)

			continue
		}

		fn(path)
	}
}

func matchesName(path string, filter Filter) bool {
	for _, include := range filter.NameIncludes {
		if !strings.Contains(path, include) {
			return false
		}
	}

	for _, exclude := range filter.NameExcludes {
		if strings.Contains(path, exclude) {
			return false
		}
	}

	return true
}

// containsAnyLine reports whether any line of the file at path contains any
// of the needles. Reads are best-effort: unreadable files and undecodable
// bytes never raise. An empty needle list matches nothing.
func containsAnyLine(path string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		for _, needle := range needles {
			if strings.Contains(line, needle) {
				return true
			}
		}
	}

	return false
}
