package testutil

import (
	"tagsink/internal/tagsink"
	"tagsink/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() tagsink.Vault {
	return vault.NewMemoryVault("test-vault")
}
