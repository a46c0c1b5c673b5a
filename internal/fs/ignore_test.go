package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines, comments and bad globs", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log", "[unclosed", "/", "!"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].glob != "**/*.log" {
			t.Errorf("expected **/*.log, got %s", m.patterns[0].glob)
		}
	})

	t.Run("parses modifiers", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"!keep.log", "build/", "/top", "docs/*.md"})
		want := []ignorePattern{
			{glob: "**/keep.log", negated: true},
			{glob: "**/build", dirOnly: true},
			{glob: "top", anchored: true},
			{glob: "docs/*.md"},
		}
		if len(m.patterns) != len(want) {
			t.Fatalf("got %d patterns, want %d", len(m.patterns), len(want))
		}
		for i := range want {
			if m.patterns[i] != want[i] {
				t.Errorf("pattern %d = %+v, want %+v", i, m.patterns[i], want[i])
			}
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		nixPath  string
		isDir    bool
		want     bool
	}{
		{
			name:     "basename glob matches file in root",
			patterns: []string{"*.log"},
			nixPath:  "/app.log",
			want:     true,
		},
		{
			name:     "basename glob matches file in subdirectory",
			patterns: []string{"*.log"},
			nixPath:  "/sub/deep/app.log",
			want:     true,
		},
		{
			name:     "basename glob does not match different extension",
			patterns: []string{"*.log"},
			nixPath:  "/app.txt",
		},
		{
			name:     "ignored directory covers its contents",
			patterns: []string{"node_modules"},
			nixPath:  "/web/node_modules/lib/index.js",
			want:     true,
		},
		{
			name:     "dir-only pattern skips a file of the same name",
			patterns: []string{"build/"},
			nixPath:  "/build",
		},
		{
			name:     "dir-only pattern matches the directory",
			patterns: []string{"build/"},
			nixPath:  "/build",
			isDir:    true,
			want:     true,
		},
		{
			name:     "dir-only pattern matches files below",
			patterns: []string{"build/"},
			nixPath:  "/build/out.bin",
			want:     true,
		},
		{
			name:     "anchored pattern only matches at the root",
			patterns: []string{"/tmp"},
			nixPath:  "/src/tmp",
		},
		{
			name:     "anchored pattern matches at the root",
			patterns: []string{"/tmp"},
			nixPath:  "/tmp",
			isDir:    true,
			want:     true,
		},
		{
			name:     "path pattern with doublestar",
			patterns: []string{"docs/**/*.draft"},
			nixPath:  "/docs/a/b/notes.draft",
			want:     true,
		},
		{
			name:     "negation re-includes",
			patterns: []string{"*.log", "!keep.log"},
			nixPath:  "/keep.log",
		},
		{
			name:     "later pattern wins over negation",
			patterns: []string{"!keep.log", "*.log"},
			nixPath:  "/keep.log",
			want:     true,
		},
		{
			name:     "root is never ignored",
			patterns: []string{"**"},
			nixPath:  "/",
			isDir:    true,
		},
		{
			name:    "no patterns",
			nixPath: "/anything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.nixPath, tt.isDir); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.nixPath, tt.isDir, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, IgnoreFileName)
		content := "*.log\n# comment\n\n*.tmp\nbuild/\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		// Raw lines; filtering is NewIgnoreMatcher's job.
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		m := NewIgnoreMatcher(patterns)
		if len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
