package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tagsink/internal/identity"
	"tagsink/internal/tagsink"
)

// ErrDestinationExists is returned by Move when the target name is taken.
var ErrDestinationExists = errors.New("destination already exists")

// OSFilesystemManager is the real filesystem implementation of FilesystemManager
// for one collection root.
type OSFilesystemManager struct {
	root   string
	ignore *IgnoreMatcher
}

// NewOSFilesystemManager creates a filesystem manager for the collection rooted
// at root. Ignore rules are patterns, then the root's ignore file. storeDir,
// when it lies inside root, is always ignored.
func NewOSFilesystemManager(root string, patterns []string, storeDir string) (*OSFilesystemManager, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving collection root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat collection root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collection root is not a directory: %s", absRoot)
	}

	fromFile, err := ParseIgnoreFile(filepath.Join(absRoot, IgnoreFileName))
	if err != nil {
		return nil, err
	}

	all := append([]string{}, defaultIgnorePatterns...)
	all = append(all, patterns...)
	all = append(all, fromFile...)

	m := &OSFilesystemManager{root: absRoot}
	if storeDir != "" {
		// Appended last so no negation can re-include it.
		if nixPath, err := m.NixPathOf(storeDir); err == nil && !identity.IsRoot(nixPath) {
			all = append(all, nixPath+"/")
		}
	}
	m.ignore = NewIgnoreMatcher(all)
	return m, nil
}

// Root returns the absolute collection root.
func (m *OSFilesystemManager) Root() string {
	return m.root
}

// NixPathOf maps a host path to its nixPath without touching the filesystem.
// Relative paths are taken relative to the working directory.
func (m *OSFilesystemManager) NixPathOf(rawPath string) (string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", tagsink.ErrOutsideCollection, absPath)
	}
	return identity.Normalize(filepath.ToSlash(rel)), nil
}

// hostPath maps a nixPath back to an absolute host path.
func (m *OSFilesystemManager) hostPath(nixPath string) string {
	return filepath.Join(m.root, filepath.FromSlash(identity.Normalize(nixPath)))
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*tagsink.Path, error) {
	nixPath, err := m.NixPathOf(rawPath)
	if err != nil {
		return nil, err
	}
	absPath := m.hostPath(nixPath)

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if err := checkSupported(absPath, info.Mode()); err != nil {
		return nil, err
	}

	return tagsink.NewPath(absPath, nixPath, info.IsDir(), info), nil
}

// checkSupported rejects the special file types we never track.
func checkSupported(absPath string, mode os.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", absPath)
	}
	return nil
}

// Exists reports whether nixPath is present on disk.
func (m *OSFilesystemManager) Exists(nixPath string) (bool, error) {
	_, err := os.Lstat(m.hostPath(nixPath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", nixPath, err)
}

// Move renames src into destDir, keeping its name. It never overwrites.
func (m *OSFilesystemManager) Move(src *tagsink.Path, destDir string) (string, error) {
	destDir = identity.Normalize(destDir)
	if destDir == src.NixPath() || identity.IsWithin(destDir, src.NixPath()) {
		return "", fmt.Errorf("cannot move %s into itself", src.NixPath())
	}

	target := identity.Join(destDir, identity.Base(src.NixPath()))
	if target == src.NixPath() {
		return target, nil
	}

	dirInfo, err := os.Stat(m.hostPath(destDir))
	if err != nil {
		return "", fmt.Errorf("stat destination: %w", err)
	}
	if !dirInfo.IsDir() {
		return "", fmt.Errorf("destination is not a directory: %s", destDir)
	}
	if !sameDevice(src.Info(), dirInfo) {
		return "", fmt.Errorf("cannot move %s across filesystems", src.NixPath())
	}

	exists, err := m.Exists(target)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s", ErrDestinationExists, target)
	}

	if err := renameNoReplace(src.String(), m.hostPath(target)); err != nil {
		if errors.Is(err, ErrDestinationExists) {
			return "", fmt.Errorf("%w: %s", ErrDestinationExists, target)
		}
		return "", fmt.Errorf("renaming: %w", err)
	}
	return target, nil
}

// renameExclusive moves a file by linking it at newpath and unlinking oldpath,
// so an existing newpath is never replaced. Directories, and files on
// filesystems without hard links, fall back to a check followed by os.Rename;
// an entry created at newpath between the two can still be replaced.
func renameExclusive(oldpath, newpath string) error {
	info, err := os.Lstat(oldpath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		err := os.Link(oldpath, newpath)
		if err == nil {
			return os.Remove(oldpath)
		}
		if os.IsExist(err) {
			return ErrDestinationExists
		}
	}

	if _, err := os.Lstat(newpath); err == nil {
		return ErrDestinationExists
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(oldpath, newpath)
}

// ReadDir lists the non-ignored regular files and directories in nixPath,
// sorted by name.
func (m *OSFilesystemManager) ReadDir(nixPath string) ([]tagsink.DirEntry, error) {
	entries, err := os.ReadDir(m.hostPath(nixPath))
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var out []tagsink.DirEntry
	for _, entry := range entries {
		if !entry.IsDir() && !entry.Type().IsRegular() {
			continue
		}
		child := identity.Join(nixPath, entry.Name())
		if m.IsIgnored(child, entry.IsDir()) {
			continue
		}
		out = append(out, tagsink.DirEntry{
			Name:    entry.Name(),
			NixPath: child,
			IsDir:   entry.IsDir(),
		})
	}
	return out, nil
}

// IsIgnored reports whether nixPath matches the collection's ignore rules.
func (m *OSFilesystemManager) IsIgnored(nixPath string, isDir bool) bool {
	return m.ignore.Match(nixPath, isDir)
}

// Compile-time check that OSFilesystemManager implements tagsink.FilesystemManager interface
var _ tagsink.FilesystemManager = (*OSFilesystemManager)(nil)
