package testutil

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	tsfs "tagsink/internal/fs"
	"tagsink/internal/identity"
	"tagsink/internal/tagsink"
)

// MockRoot is the host path of the mock collection root.
const MockRoot = "/collection"

// MockFile represents an entry in the mock filesystem.
type MockFile struct {
	IsDirectory bool
	ModTime     time.Time
}

// MockFilesystemManager is an in-memory collection tree for testing.
// Entries are keyed by nixPath; the root always exists.
type MockFilesystemManager struct {
	files   map[string]*MockFile
	ignored map[string]bool // base names
}

// NewMockFilesystemManager creates a new mock filesystem containing only the root.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:   map[string]*MockFile{identity.Root: {IsDirectory: true}},
		ignored: make(map[string]bool),
	}
}

// AddFile adds a file, creating missing parent directories. Returns its host path.
func (m *MockFilesystemManager) AddFile(nixPath string) string {
	nixPath = identity.Normalize(nixPath)
	m.AddDirectory(identity.Parent(nixPath))
	m.files[nixPath] = &MockFile{ModTime: time.Now()}
	return m.Host(nixPath)
}

// AddDirectory adds a directory and its missing parents. Returns its host path.
func (m *MockFilesystemManager) AddDirectory(nixPath string) string {
	nixPath = identity.Normalize(nixPath)
	for p := nixPath; !identity.IsRoot(p); p = identity.Parent(p) {
		if _, ok := m.files[p]; !ok {
			m.files[p] = &MockFile{IsDirectory: true, ModTime: time.Now()}
		}
	}
	return m.Host(nixPath)
}

// Remove deletes nixPath and everything below it, as an outside process would.
func (m *MockFilesystemManager) Remove(nixPath string) {
	nixPath = identity.Normalize(nixPath)
	for p := range m.files {
		if p == nixPath || identity.IsWithin(p, nixPath) {
			delete(m.files, p)
		}
	}
}

// Rename moves nixPath and its subtree to newPath without going through the
// manager, simulating a move made by another program.
func (m *MockFilesystemManager) Rename(oldPath, newPath string) {
	oldPath, newPath = identity.Normalize(oldPath), identity.Normalize(newPath)
	m.AddDirectory(identity.Parent(newPath))
	moved := make(map[string]*MockFile)
	for p, f := range m.files {
		if np, ok := identity.ReplacePrefix(p, oldPath, newPath); ok {
			moved[np] = f
			delete(m.files, p)
		}
	}
	for p, f := range moved {
		m.files[p] = f
	}
}

// Ignore makes every entry with the given base name ignored.
func (m *MockFilesystemManager) Ignore(name string) {
	m.ignored[name] = true
}

// Host returns the host path of nixPath.
func (m *MockFilesystemManager) Host(nixPath string) string {
	nixPath = identity.Normalize(nixPath)
	if identity.IsRoot(nixPath) {
		return MockRoot
	}
	return MockRoot + nixPath
}

// Has reports whether nixPath exists.
func (m *MockFilesystemManager) Has(nixPath string) bool {
	_, ok := m.files[identity.Normalize(nixPath)]
	return ok
}

func (m *MockFilesystemManager) Root() string {
	return MockRoot
}

func (m *MockFilesystemManager) NixPathOf(rawPath string) (string, error) {
	p := path.Clean(rawPath)
	switch {
	case p == MockRoot:
		return identity.Root, nil
	case strings.HasPrefix(p, MockRoot+"/"):
		return p[len(MockRoot):], nil
	default:
		return "", fmt.Errorf("%w: %s", tagsink.ErrOutsideCollection, rawPath)
	}
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*tagsink.Path, error) {
	nixPath, err := m.NixPathOf(rawPath)
	if err != nil {
		return nil, err
	}
	file, ok := m.files[nixPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", rawPath)
	}

	info := &mockFileInfo{
		name:    path.Base(nixPath),
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
	return tagsink.NewPath(m.Host(nixPath), nixPath, file.IsDirectory, info), nil
}

func (m *MockFilesystemManager) Exists(nixPath string) (bool, error) {
	return m.Has(nixPath), nil
}

func (m *MockFilesystemManager) Move(src *tagsink.Path, destDir string) (string, error) {
	dest, ok := m.files[destDir]
	if !ok || !dest.IsDirectory {
		return "", fmt.Errorf("not a directory: %s", destDir)
	}
	if destDir == src.NixPath() || identity.IsWithin(destDir, src.NixPath()) {
		return "", fmt.Errorf("cannot move %s into itself", src.NixPath())
	}

	newPath := identity.Join(destDir, identity.Base(src.NixPath()))
	if newPath == src.NixPath() {
		return newPath, nil
	}
	if m.Has(newPath) {
		return "", fmt.Errorf("%w: %s", tsfs.ErrDestinationExists, newPath)
	}

	m.Rename(src.NixPath(), newPath)
	return newPath, nil
}

func (m *MockFilesystemManager) ReadDir(nixPath string) ([]tagsink.DirEntry, error) {
	dir, ok := m.files[nixPath]
	if !ok || !dir.IsDirectory {
		return nil, fmt.Errorf("not a directory: %s", nixPath)
	}

	var entries []tagsink.DirEntry
	for p, f := range m.files {
		if identity.IsRoot(p) || identity.Parent(p) != nixPath || m.IsIgnored(p, f.IsDirectory) {
			continue
		}
		entries = append(entries, tagsink.DirEntry{Name: identity.Base(p), NixPath: p, IsDir: f.IsDirectory})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *MockFilesystemManager) IsIgnored(nixPath string, _ bool) bool {
	for _, seg := range identity.Segments(nixPath) {
		if m.ignored[seg] {
			return true
		}
	}
	return false
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return 0 }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

func (m *mockFileInfo) Mode() fs.FileMode {
	if m.isDir {
		return fs.ModeDir | 0755
	}
	return 0644
}

// Compile-time check
var _ tagsink.FilesystemManager = (*MockFilesystemManager)(nil)
