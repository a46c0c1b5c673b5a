package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"tagsink/internal/tagsink"
)

// ErrWrongPassphrase is returned by TestEncryptor.Unlock for a passphrase that
// differs from the one given to Setup.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// testHeader marks data "encrypted" by TestEncryptor.
var testHeader = []byte("TSENC\x00\x00\x01")

// TestEncryptor is a deterministic, crypto-free encryptor for tests. Encrypt
// prepends a fixed header and Decrypt strips it. Unlock checks the passphrase
// given to Setup, when Setup was called.
type TestEncryptor struct {
	passphrase string
	setup      bool
}

var _ tagsink.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.setup = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (tagsink.DecryptionContext, error) {
	if e.setup && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ tagsink.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
