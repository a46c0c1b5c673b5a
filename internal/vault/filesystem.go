package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tagsink/internal/tagsink"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores one backup per collection:
//
//	<root>/
//	  backups/
//	    <slug>.db.age     (encrypted store)
//	    <slug>.version    (version of the stored backup)
type FileSystemVault struct {
	name       string
	root       string
	backupsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	backupsDir := filepath.Join(root, "backups")

	if err := os.MkdirAll(backupsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}

	return &FileSystemVault{
		name:       name,
		root:       root,
		backupsDir: backupsDir,
	}, nil
}

func (v *FileSystemVault) backupPath(collection string) string {
	return filepath.Join(v.backupsDir, collection+".db.age")
}

func (v *FileSystemVault) versionPath(collection string) string {
	return filepath.Join(v.backupsDir, collection+".version")
}

// PutBackup replaces the backup of a collection along with its version marker.
func (v *FileSystemVault) PutBackup(collection string, r io.Reader, size int64, version int64) error {
	if err := v.writeFile(v.backupPath(collection), r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(v.versionPath(collection), []byte(versionData), 0644)
}

// GetBackupVersion returns the backup version for a collection.
// Returns 0 if no version file exists.
func (v *FileSystemVault) GetBackupVersion(collection string) (int64, error) {
	data, err := os.ReadFile(v.versionPath(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetBackup writes the backup of a collection to w.
func (v *FileSystemVault) GetBackup(collection string, w io.Writer) error {
	f, err := os.Open(v.backupPath(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w for collection: %s", tagsink.ErrNoBackup, collection)
		}
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.backupsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes data from r to destPath through a temp file and rename.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements tagsink.Vault interface
var _ tagsink.Vault = (*FileSystemVault)(nil)
