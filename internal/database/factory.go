package database

import (
	"fmt"
	"os"
	"path/filepath"

	"tagsink/internal/config"
	"tagsink/internal/events"
	"tagsink/internal/tagsink"
)

// NewDatabaseFromConfig opens the store of one collection based on the database
// config type and brings its schema up to date.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, slug string, publisher events.Publisher, idgen tagsink.IDGenerator) (*SQLiteDatabase, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		path = StorePath(cfg.DataDir, slug)
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	db, err := NewSQLiteDatabase(path, publisher, idgen)
	if err != nil {
		return nil, err
	}
	if err := db.Prepare(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing store %s: %w", path, err)
	}
	return db, nil
}

// StorePath returns the store file of a collection within dataDir.
func StorePath(dataDir, slug string) string {
	return filepath.Join(dataDir, slug+".db")
}
