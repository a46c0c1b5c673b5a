package tagsink

import (
	"errors"
	"io"
)

// ErrNoBackup is returned by Vault.GetBackup when nothing was stored for a
// collection.
var ErrNoBackup = errors.New("no backup stored")

// Vault stores encrypted store backups, one current backup per collection.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutBackup replaces the backup of a collection.
	// size is the number of bytes that will be read from r; version is stored
	// alongside for consistency checks.
	PutBackup(collection string, r io.Reader, size int64, version int64) error

	// GetBackup writes the backup of a collection to w.
	GetBackup(collection string, w io.Writer) error

	// GetBackupVersion returns 0 if no backup has been stored for collection.
	GetBackupVersion(collection string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}

// Encryptor handles encryption of backups and unlocking for decryption.
// Encryption uses the public key only; decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation. The private key is stored
	// encrypted with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for a restore.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
