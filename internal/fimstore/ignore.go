package fimstore

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

var defaultIgnoreLines = []string{
	// editors
	"*.swp",
	"*.swx",
	"*~",
	// scratch
	"*.tmp",
	".git/",
}

// PathFilter decides which scanned paths become entries
type PathFilter struct {
	ignore   *gitignore.GitIgnore
	restrict []string
}

// NewPathFilter builds a filter from gitignore-style ignore lines and
// doublestar restrict patterns. An empty restrict list admits every path.
func NewPathFilter(ignore []string, restrict []string) (*PathFilter, error) {
	for _, pattern := range restrict {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("restrict %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	lines := append([]string{}, defaultIgnoreLines...)
	lines = append(lines, ignore...)
	return &PathFilter{
		ignore:   gitignore.CompileIgnoreLines(lines...),
		restrict: restrict,
	}, nil
}

// Allowed reports whether path should be monitored
func (f *PathFilter) Allowed(path string) bool {
	slashed := filepath.ToSlash(path)
	if f.ignore.MatchesPath(slashed) {
		return false
	}
	if len(f.restrict) == 0 {
		return true
	}
	// absolute paths are also tried without the leading slash so that
	// patterns such as "**/*.conf" match them
	relative := strings.TrimPrefix(slashed, "/")
	for _, pattern := range f.restrict {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, relative); ok {
			return true
		}
	}
	return false
}
