package tagsink

import "io/fs"

// Path is a resolved location inside a collection. Path objects are created by
// FilesystemManager.Resolve, which validates the location exists, maps it to a
// nixPath and caches stat info.
type Path struct {
	absPath string
	nixPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components.
// This is primarily for use by FilesystemManager implementations.
func NewPath(absPath, nixPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		nixPath: nixPath,
		isDir:   isDir,
		info:    info,
	}
}

// String returns the absolute host path.
func (p *Path) String() string {
	return p.absPath
}

// NixPath returns the collection-relative path.
func (p *Path) NixPath() string {
	return p.nixPath
}

// IsDir returns true if this path points to a directory.
func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the cached file info from when the path was resolved.
func (p *Path) Info() fs.FileInfo {
	return p.info
}
