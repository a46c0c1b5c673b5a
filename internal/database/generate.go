package database

// schema.sql is a reference dump of the migrated schema, useful for reviewing
// migrations and for ad-hoc sqlite3 sessions against a store.
//
// To regenerate it:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
