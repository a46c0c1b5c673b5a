package app

import (
	"fmt"
	"os"
	"path/filepath"

	"tagsink/internal/database"
)

// SetupKeys generates the backup key pair, protecting the private key with passphrase.
func (a *App) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("encryption keys created")
	return nil
}

// ChangePassphrase re-encrypts the private key under a new passphrase.
func (a *App) ChangePassphrase(oldPassphrase, newPassphrase string) error {
	changer, ok := a.encryptor.(interface {
		ChangePassphrase(oldPassphrase, newPassphrase string) error
	})
	if !ok {
		return fmt.Errorf("encryptor %T cannot change passphrases", a.encryptor)
	}
	if err := changer.ChangePassphrase(oldPassphrase, newPassphrase); err != nil {
		return fmt.Errorf("changing passphrase: %w", err)
	}
	a.logger.Info("passphrase changed")
	return nil
}

// Backup snapshots the store of a collection, encrypts it and uploads it to the
// vault. Returns the stored version.
func (a *App) Backup(slug string) (int64, error) {
	c, err := a.Collection(slug)
	if err != nil {
		return 0, err
	}
	if a.vault == nil {
		return 0, ErrNoVault
	}
	if !a.encryptor.IsConfigured() {
		return 0, fmt.Errorf("encryption keys not configured")
	}

	tmpDir, err := os.MkdirTemp("", "tagsink-backup-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, slug+".db")
	if err := c.BackupTo(snapshot); err != nil {
		return 0, err
	}

	encrypted := snapshot + ".age"
	if err := a.encryptFile(snapshot, encrypted); err != nil {
		return 0, err
	}

	version := a.clock.Now().Unix()
	if err := a.upload(slug, encrypted, version); err != nil {
		return 0, err
	}

	a.logger.Info("store backed up", "collection", slug, "version", version)
	return version, nil
}

func (a *App) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening store snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting store snapshot: %w", err)
	}
	return out.Close()
}

func (a *App) upload(slug, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat backup: %w", err)
	}

	if err := a.vault.PutBackup(slug, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading backup to vault: %w", err)
	}
	return nil
}

// Restore replaces the store of a collection with its latest backup and
// reopens the collection. Only file-backed stores can be restored. Returns the
// restored version.
func (a *App) Restore(slug, passphrase string) (int64, error) {
	col := a.cfg.Collection(slug)
	if col == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCollection, slug)
	}
	if a.cfg.Database.Type != "sqlite" {
		return 0, fmt.Errorf("restore needs a sqlite store, have %q", a.cfg.Database.Type)
	}
	if a.vault == nil {
		return 0, ErrNoVault
	}

	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	version, err := a.vault.GetBackupVersion(slug)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}

	dataDir := a.cfg.Database.DataDir
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return 0, fmt.Errorf("creating data dir: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "tagsink-restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	encrypted := filepath.Join(tmpDir, slug+".db.age")
	if err := a.download(slug, encrypted); err != nil {
		return 0, err
	}

	// Decrypt next to the store so the final rename stays on one filesystem.
	restored, err := os.CreateTemp(dataDir, slug+"-restore-*.db")
	if err != nil {
		return 0, fmt.Errorf("creating restore file: %w", err)
	}
	defer os.Remove(restored.Name())

	in, err := os.Open(encrypted)
	if err != nil {
		restored.Close()
		return 0, fmt.Errorf("opening downloaded backup: %w", err)
	}
	err = dc.Decrypt(in, restored)
	in.Close()
	if cerr := restored.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("decrypting backup: %w", err)
	}

	if c, ok := a.collections[slug]; ok {
		if err := c.Close(); err != nil {
			return 0, fmt.Errorf("closing collection %s: %w", slug, err)
		}
		delete(a.collections, slug)
	}

	if err := os.Rename(restored.Name(), database.StorePath(dataDir, slug)); err != nil {
		return 0, fmt.Errorf("replacing store: %w", err)
	}

	delete(a.openErrs, slug)
	c, err := a.openCollection(*col)
	if err != nil {
		a.openErrs[slug] = err
		return 0, fmt.Errorf("reopening collection %s: %w", slug, err)
	}
	a.collections[slug] = c

	a.logger.Info("store restored", "collection", slug, "version", version)
	return version, nil
}

func (a *App) download(slug, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	if err := a.vault.GetBackup(slug, f); err != nil {
		f.Close()
		return fmt.Errorf("downloading backup: %w", err)
	}
	return f.Close()
}

