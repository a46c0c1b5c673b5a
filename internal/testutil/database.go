package testutil

import (
	"testing"

	"tagsink/internal/database"
	"tagsink/internal/events"
	"tagsink/internal/tagsink"
)

// NewTestDatabase creates a new in-memory SQLite store with migrations applied
// and sequential ids. The store is automatically closed when the test completes.
// publisher may be nil.
func NewTestDatabase(t *testing.T, publisher events.Publisher) tagsink.Store {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, publisher, NewStubIDGenerator())
	if err := db.Prepare(); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
