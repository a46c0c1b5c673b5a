package fs

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnoreFileName is the per-collection ignore file, read from the collection root.
const IgnoreFileName = ".tagsinkignore"

// defaultIgnorePatterns are always applied regardless of config or the ignore file.
var defaultIgnorePatterns = []string{"/" + IgnoreFileName}

// ignorePattern is a parsed gitignore-style pattern.
type ignorePattern struct {
	glob     string // doublestar glob against the root-relative path
	negated  bool   // "!pat" re-includes
	dirOnly  bool   // "pat/" only matches directories and what is below them
	anchored bool   // "/pat" only matches from the collection root
}

// IgnoreMatcher checks collection paths against gitignore-style patterns.
// Later patterns override earlier ones, so a negation can re-include a path.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped, as are patterns
// doublestar cannot parse.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range rawPatterns {
		m.add(raw)
	}
	return m
}

func (m *IgnoreMatcher) add(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var p ignorePattern
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return
	}
	// Slash-free patterns match a basename at any depth.
	if !p.anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}
	if !doublestar.ValidatePattern(line) {
		return
	}

	p.glob = line
	m.patterns = append(m.patterns, p)
}

// Match reports whether nixPath should be ignored. A path below an ignored
// directory is ignored too.
func (m *IgnoreMatcher) Match(nixPath string, isDir bool) bool {
	rel := strings.Trim(nixPath, "/")
	if rel == "" {
		return false
	}

	ignored := false
	for _, p := range m.patterns {
		if p.matches(rel, isDir) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p ignorePattern) matches(rel string, isDir bool) bool {
	if (!p.dirOnly || isDir) && match(p.glob, rel) {
		return true
	}
	// Any ancestor directory matching also covers rel.
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if match(p.glob, strings.Join(parts[:i], "/")) {
			return true
		}
	}
	return false
}

func match(glob, rel string) bool {
	ok, _ := doublestar.Match(glob, rel)
	return ok
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
