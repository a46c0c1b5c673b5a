package tagsink

// DirEntry is one child of a listed directory.
type DirEntry struct {
	Name    string
	NixPath string
	IsDir   bool
}

// FilesystemManager provides the filesystem operations of one collection.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Root returns the absolute host path of the collection root.
	Root() string

	// Resolve validates a raw host path and returns a Path object.
	// The path must exist and lie inside the collection root; it is resolved
	// to an absolute path, stat'ed, and mapped to its nixPath.
	Resolve(rawPath string) (*Path, error)

	// NixPathOf maps a host path inside the collection root to its nixPath
	// without touching the filesystem, for paths that no longer exist.
	NixPathOf(rawPath string) (string, error)

	// Exists reports whether nixPath is present on disk.
	Exists(nixPath string) (bool, error)

	// Move moves src into the directory destDir, keeping its name, and returns
	// the new nixPath. It refuses to overwrite an existing entry.
	Move(src *Path, destDir string) (string, error)

	// ReadDir lists the non-ignored children of the directory nixPath.
	ReadDir(nixPath string) ([]DirEntry, error)

	// IsIgnored reports whether nixPath matches the collection's ignore rules.
	IsIgnored(nixPath string, isDir bool) bool
}
