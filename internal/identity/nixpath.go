package identity

import (
	"path"
	"path/filepath"
	"strings"
)

// Root is the nixPath of the collection root itself.
const Root = "/"

// Normalize converts p to nixPath form: forward slashes, a single leading slash,
// no trailing slash (except for the root), and "." / ".." resolved lexically.
// An empty string normalizes to the root. Backslashes are separators only
// where the host uses them; elsewhere they are part of a name.
func Normalize(p string) string {
	if filepath.Separator == '\\' {
		p = strings.ReplaceAll(p, "\\", "/")
	}
	return path.Clean("/" + p)
}

// IsRoot reports whether p is the collection root.
func IsRoot(p string) bool {
	return Normalize(p) == Root
}

// Parent returns the nixPath of the directory containing p.
// The parent of the root is the root.
func Parent(p string) string {
	return path.Dir(Normalize(p))
}

// Base returns the last segment of p, or "" for the root.
func Base(p string) string {
	p = Normalize(p)
	if p == Root {
		return ""
	}
	return path.Base(p)
}

// Join appends segments to dir and normalizes the result.
func Join(dir string, elem ...string) string {
	return Normalize(path.Join(append([]string{Normalize(dir)}, elem...)...))
}

// Segments splits p into its path segments. The root has no segments.
func Segments(p string) []string {
	p = Normalize(p)
	if p == Root {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// IsWithin reports whether p is a strict descendant of dir.
func IsWithin(p, dir string) bool {
	p, dir = Normalize(p), Normalize(dir)
	if p == dir {
		return false
	}
	if dir == Root {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

// ReplacePrefix rewrites p, which must be oldDir or one of its descendants, so that
// it lives under newDir instead. The second return value is false when p is not
// under oldDir.
func ReplacePrefix(p, oldDir, newDir string) (string, bool) {
	p, oldDir, newDir = Normalize(p), Normalize(oldDir), Normalize(newDir)
	if p == oldDir {
		return newDir, true
	}
	if !IsWithin(p, oldDir) {
		return "", false
	}
	rest := strings.TrimPrefix(p, oldDir)
	if oldDir == Root {
		rest = p
	}
	return Normalize(newDir + rest), true
}

// LikeEscape is the escape character used by LikePrefixPattern.
const LikeEscape = `\`

// LikePrefixPattern returns a SQL LIKE pattern that matches every strict
// descendant of dir. Wildcards occurring in dir are escaped with LikeEscape, so
// the pattern must be used with `ESCAPE '\'`.
func LikePrefixPattern(dir string) string {
	dir = Normalize(dir)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	if dir == Root {
		return "/%"
	}
	return r.Replace(dir) + "/%"
}
