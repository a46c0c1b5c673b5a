package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"tagsink/internal/tagsink"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps every backup in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name     string
	backups  map[string][]byte // collection -> backup
	versions map[string]int64  // collection -> version
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		backups:  make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

// PutBackup replaces the backup of a collection.
func (m *MemoryVault) PutBackup(collection string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.backups[collection] = data
	m.versions[collection] = version
	return nil
}

// GetBackup writes the backup of a collection to w.
func (m *MemoryVault) GetBackup(collection string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.backups[collection]
	if !ok {
		return fmt.Errorf("%w for collection: %s", tagsink.ErrNoBackup, collection)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// GetBackupVersion returns 0 if no backup has been stored for collection.
func (m *MemoryVault) GetBackupVersion(collection string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[collection], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements tagsink.Vault interface
var _ tagsink.Vault = (*MemoryVault)(nil)
