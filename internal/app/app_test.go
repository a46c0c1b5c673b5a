package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tagsink/internal/config"
	"tagsink/internal/testutil"
)

// newTestConfig returns a config with quiet logging, a memory vault and the
// test encryptor. dbType is "memory" or "sqlite".
func newTestConfig(t *testing.T, dbType string) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.LogLevel = "error"
	cfg.Database.Type = dbType
	cfg.Vaults = []config.VaultConfig{{Type: "memory", Name: "test"}}
	cfg.Encryption.Type = "test"
	return cfg
}

// addCollection adds a collection with a fresh root and returns the root.
func addCollection(t *testing.T, cfg *config.Config, slug string) string {
	t.Helper()
	root := t.TempDir()
	cfg.Collections = append(cfg.Collections, config.CollectionConfig{Slug: slug, Root: root})
	return root
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	a.clock = testutil.FixedClock()
	t.Cleanup(func() { a.Close() })
	return a
}

func mkdirs(t *testing.T, root string, dirs ...string) {
	t.Helper()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
}

func TestNewApp(t *testing.T) {
	t.Run("opens every collection", func(t *testing.T) {
		cfg := newTestConfig(t, "memory")
		addCollection(t, cfg, "docs")
		addCollection(t, cfg, "photos")
		a := newTestApp(t, cfg)

		for _, slug := range []string{"docs", "photos"} {
			if _, err := a.Collection(slug); err != nil {
				t.Errorf("Collection(%s) error = %v", slug, err)
			}
		}
	})

	t.Run("duplicate slugs are a hard error", func(t *testing.T) {
		cfg := newTestConfig(t, "memory")
		addCollection(t, cfg, "docs")
		addCollection(t, cfg, "docs")

		_, err := NewApp(cfg)
		if !errors.Is(err, ErrDuplicateCollection) || !errors.Is(err, config.ErrDuplicateSlug) {
			t.Errorf("NewApp() error = %v, want ErrDuplicateCollection", err)
		}
	})

	t.Run("a failing collection does not stop the others", func(t *testing.T) {
		cfg := newTestConfig(t, "memory")
		addCollection(t, cfg, "docs")
		cfg.Collections = append(cfg.Collections, config.CollectionConfig{
			Slug: "gone",
			Root: filepath.Join(t.TempDir(), "missing"),
		})
		a := newTestApp(t, cfg)

		if _, err := a.Collection("docs"); err != nil {
			t.Errorf("Collection(docs) error = %v", err)
		}
		if _, err := a.Collection("gone"); err == nil {
			t.Error("Collection(gone) expected open error")
		}

		statuses := a.Collections()
		if len(statuses) != 2 || statuses[0].Error != "" || statuses[1].Error == "" {
			t.Errorf("Collections() = %+v", statuses)
		}
	})

	t.Run("unknown encryption type", func(t *testing.T) {
		cfg := newTestConfig(t, "memory")
		cfg.Encryption.Type = "rot13"
		if _, err := NewApp(cfg); err == nil {
			t.Error("NewApp() expected error")
		}
	})
}

func TestApp_Collection_Unknown(t *testing.T) {
	a := newTestApp(t, newTestConfig(t, "memory"))

	if _, err := a.Collection("nope"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("Collection() error = %v, want ErrUnknownCollection", err)
	}
}

func TestApp_Collections(t *testing.T) {
	cfg := newTestConfig(t, "sqlite")
	root := addCollection(t, cfg, "docs")
	mkdirs(t, root, "Invoices")
	a := newTestApp(t, cfg)

	if _, err := a.Dispatch(Request{Collection: "docs", Command: CmdTag, Paths: []string{filepath.Join(root, "Invoices")}, Tags: []string{"invoice"}}); err != nil {
		t.Fatalf("Dispatch(tag) error = %v", err)
	}

	statuses := a.Collections()
	if len(statuses) != 1 {
		t.Fatalf("Collections() = %+v", statuses)
	}
	st := statuses[0]
	if st.Sinks != 1 {
		t.Errorf("Sinks = %d, want 1", st.Sinks)
	}
	if want := filepath.Join(cfg.Database.DataDir, "docs.db"); st.StorePath != want {
		t.Errorf("StorePath = %q, want %q", st.StorePath, want)
	}
}
