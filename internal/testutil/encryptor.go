package testutil

import (
	"tagsink/internal/encryption"
	"tagsink/internal/tagsink"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() tagsink.Encryptor {
	return encryption.NewTestEncryptor()
}
