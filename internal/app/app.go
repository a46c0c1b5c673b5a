package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"tagsink/internal/config"
	"tagsink/internal/database"
	"tagsink/internal/encryption"
	"tagsink/internal/events"
	"tagsink/internal/fs"
	"tagsink/internal/sinktree"
	"tagsink/internal/tagsink"
	"tagsink/internal/vault"
)

// App is the application layer between the CLI and the collections.
// It constructs every collection from config, keeps a registry of them by slug
// and manages their lifecycle on Close.
//
// A collection that fails to open does not stop the others; its error is kept
// and returned by every command addressed to it.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	logFile     *os.File
	clock       tagsink.Clock
	vault       tagsink.Vault // nil when no vault is configured
	encryptor   tagsink.Encryptor
	collections map[string]*tagsink.Collection
	openErrs    map[string]error
}

// CollectionStatus describes one configured collection.
type CollectionStatus struct {
	Slug      string `json:"slug"`
	Root      string `json:"root"`
	StorePath string `json:"store_path,omitempty"`
	Sinks     int    `json:"sinks"`
	Error     string `json:"error,omitempty"`
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrDuplicateSlug) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateCollection, err)
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	var v tagsink.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	logger, logFile, err := newLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &App{
		cfg:         cfg,
		logger:      logger,
		logFile:     logFile,
		clock:       tagsink.RealClock{},
		vault:       v,
		encryptor:   enc,
		collections: make(map[string]*tagsink.Collection),
		openErrs:    make(map[string]error),
	}

	for _, col := range cfg.Collections {
		c, err := a.openCollection(col)
		if err != nil {
			a.openErrs[col.Slug] = err
			logger.Error("collection failed to open", "collection", col.Slug, "error", err)
			continue
		}
		a.collections[col.Slug] = c
	}

	return a, nil
}

// openCollection wires the store, filesystem manager and event queue of one
// collection and loads its sinks.
func (a *App) openCollection(col config.CollectionConfig) (*tagsink.Collection, error) {
	queue, err := events.NewQueueFromConfig(a.cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("creating event queue: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(a.cfg.Database, col.Slug, queue, tagsink.UUIDGenerator{})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	storeDir := ""
	if a.cfg.Database.Type == "sqlite" {
		storeDir = a.cfg.Database.DataDir
	}
	fsmgr, err := fs.NewOSFilesystemManager(col.Root, a.cfg.IgnorePatterns(&col), storeDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger := &slogAdapter{l: a.logger}
	c := tagsink.NewCollection(col.Slug, db, fsmgr, queue, logger, a.clock)
	c.Subscribe(func(ev events.Event) {
		a.logger.Debug("event", "collection", col.Slug, "kind", string(ev.Kind))
	})
	if err := c.Open(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Collection returns the open collection with the given slug.
func (a *App) Collection(slug string) (*tagsink.Collection, error) {
	if c, ok := a.collections[slug]; ok {
		return c, nil
	}
	if err, ok := a.openErrs[slug]; ok {
		return nil, fmt.Errorf("collection %s failed to open: %w", slug, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, slug)
}

// Collections reports every configured collection in config order.
func (a *App) Collections() []CollectionStatus {
	out := make([]CollectionStatus, 0, len(a.cfg.Collections))
	for _, col := range a.cfg.Collections {
		st := CollectionStatus{Slug: col.Slug, Root: col.Root}
		if c, ok := a.collections[col.Slug]; ok {
			st.Root = c.Root()
			st.StorePath = c.StorePath()
			st.Sinks = countSinks(c.SinkSnapshot())
		} else if err := a.openErrs[col.Slug]; err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

func countSinks(nodes []*sinktree.SnapshotNode) int {
	n := len(nodes)
	for _, sn := range nodes {
		n += countSinks(sn.Sinks)
	}
	return n
}

// Close closes every open collection and the log file.
func (a *App) Close() error {
	var firstErr error
	for slug, c := range a.collections {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing collection %s: %w", slug, err)
		}
	}
	a.collections = map[string]*tagsink.Collection{}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
