package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for tagsink.
type Config struct {
	BaseDir     string             `toml:"base_dir"`
	LogDir      string             `toml:"log_dir"`
	LogLevel    string             `toml:"log_level"` // "debug", "info" (default), "warn" or "error"
	Collections []CollectionConfig `toml:"collections"`
	Vaults      []VaultConfig      `toml:"vaults"`
	Encryption  EncryptionConfig   `toml:"encryption"`
	Database    DatabaseConfig     `toml:"database"`
	Events      EventsConfig       `toml:"events"`
	Filesystem  FilesystemConfig   `toml:"filesystem"`
}

// CollectionConfig names a directory tree whose files are tagged.
// Slugs must be unique; the slug also names the collection's store file.
type CollectionConfig struct {
	Slug   string   `toml:"slug"`
	Root   string   `toml:"root"`
	Ignore []string `toml:"ignore,omitempty"` // added to filesystem.ignore
}

// EncryptionConfig holds paths to the age key pair used for encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// FilesystemConfig holds filesystem-related settings shared by all collections.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// VaultConfig represents configuration for a store backup vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible services; enables path-style addressing

	// Static credentials; the default AWS credential chain is used when empty.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the collection stores.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EventsConfig configures the per-collection notification queue.
type EventsConfig struct {
	Type      string `toml:"type"`       // "memory" (default) or "observe"
	MaxQueued int    `toml:"max_queued"` // 0 means the default bound
}

// NewConfig creates a new Config with the provided base directory and default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Events: EventsConfig{Type: "memory"},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "tagsink.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "tagsink.key"),
		},
	}
}

// Validate checks invariants that decoding cannot express.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Collections))
	for i, col := range c.Collections {
		if col.Slug == "" {
			return fmt.Errorf("collection %d: slug is required", i)
		}
		if col.Root == "" {
			return fmt.Errorf("collection %s: root is required", col.Slug)
		}
		if seen[col.Slug] {
			return fmt.Errorf("collection %s: %w", col.Slug, ErrDuplicateSlug)
		}
		seen[col.Slug] = true
	}
	return nil
}

// Collection returns the collection with the given slug, or nil.
func (c *Config) Collection(slug string) *CollectionConfig {
	for i := range c.Collections {
		if c.Collections[i].Slug == slug {
			return &c.Collections[i]
		}
	}
	return nil
}

// IgnorePatterns returns the shared ignore patterns followed by the collection's own.
func (c *Config) IgnorePatterns(col *CollectionConfig) []string {
	patterns := append([]string(nil), c.Filesystem.Ignore...)
	if col != nil {
		patterns = append(patterns, col.Ignore...)
	}
	return patterns
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// WriteToFile replaces the config file at path.
func WriteToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := WriteToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
