package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"tagsink/internal/database/migrations"
	"tagsink/internal/events"
	"tagsink/internal/identity"
	"tagsink/internal/model"
	"tagsink/internal/tagsink"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrUnversionedStore is returned by Prepare for an existing store without a
// schema version.
var ErrUnversionedStore = migrations.ErrUnversionedStore

// TagPalette is the set of colors assigned to newly created tags.
var TagPalette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#e6beff",
	"#9a6324", "#fffac8", "#800000", "#aaffc3", "#808000", "#ffd8b1",
}

// SQLiteDatabase implements the tagsink.Store interface using SQLite.
type SQLiteDatabase struct {
	db        *sql.DB
	queries   *queries
	path      string
	publisher events.Publisher
	idgen     tagsink.IDGenerator
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
// A nil publisher discards events; a nil idgen uses random UUIDs.
// The schema is not touched; call Prepare before use.
func NewSQLiteDatabase(path string, publisher events.Publisher, idgen tagsink.IDGenerator) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db, publisher, idgen)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, publisher events.Publisher, idgen tagsink.IDGenerator) *SQLiteDatabase {
	if publisher == nil {
		publisher = events.Discard{}
	}
	if idgen == nil {
		idgen = tagsink.UUIDGenerator{}
	}
	return &SQLiteDatabase{
		db:        db,
		queries:   newQueries(db),
		path:      "",
		publisher: publisher,
		idgen:     idgen,
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every :memory: connection is its own database, and a
	// collection store has a single owner anyway.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Prepare migrates a fresh store and validates the version of an existing one.
func (s *SQLiteDatabase) Prepare() error {
	return migrations.Prepare(s.db)
}

// Entity operations

func (s *SQLiteDatabase) GetOrCreateEntities(paths []model.PathInfo) ([]*model.Entity, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	result := make([]*model.Entity, len(paths))
	byHash := make(map[string]*model.Entity, len(paths))
	var created []*model.Entity

	for i, p := range paths {
		nixPath := identity.Normalize(p.NixPath)
		hash := identity.FileHash(nixPath)

		if e, ok := byHash[hash]; ok {
			result[i] = e
			continue
		}

		existing, err := qtx.getEntityByHash(ctx, hash)
		switch {
		case err == nil:
			result[i] = &existing
		case errors.Is(err, sql.ErrNoRows):
			e := model.Entity{
				ID:      s.idgen.New(),
				Hash:    hash,
				NixPath: nixPath,
				IsDir:   p.IsDir,
			}
			if err := qtx.insertEntity(ctx, e); err != nil {
				return nil, fmt.Errorf("inserting entity %s: %w", nixPath, err)
			}
			result[i] = &e
			created = append(created, &e)
		default:
			return nil, fmt.Errorf("finding entity %s: %w", nixPath, err)
		}
		byHash[hash] = result[i]
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	if len(created) > 0 {
		s.publisher.Publish(events.Event{Kind: events.EntitiesCreated, Entities: created})
	}
	return result, nil
}

func (s *SQLiteDatabase) FindEntityByID(id string) (*model.Entity, error) {
	e, err := s.queries.getEntityByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding entity by id: %w", err)
	}
	return &e, nil
}

func (s *SQLiteDatabase) FindEntityByHash(hash string) (*model.Entity, error) {
	e, err := s.queries.getEntityByHash(context.Background(), hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding entity by hash: %w", err)
	}
	return &e, nil
}

func (s *SQLiteDatabase) FindEntityByPath(nixPath string) (*model.Entity, error) {
	return s.FindEntityByHash(identity.FileHash(identity.Normalize(nixPath)))
}

func (s *SQLiteDatabase) FindEntitiesByPathPrefix(dir string) ([]*model.Entity, error) {
	entities, err := s.queries.getEntitiesByPathPrefix(context.Background(), identity.Normalize(dir))
	if err != nil {
		return nil, fmt.Errorf("finding entities by path prefix: %w", err)
	}
	return toPointers(entities), nil
}

func (s *SQLiteDatabase) FindEntityWithTags(id string) (*model.EntityWithTags, error) {
	e, err := s.FindEntityByID(id)
	if err != nil || e == nil {
		return nil, err
	}

	tagIDs, err := s.queries.getTagIDsByEntity(context.Background(), e.ID)
	if err != nil {
		return nil, fmt.Errorf("getting tags of entity %s: %w", e.ID, err)
	}
	return &model.EntityWithTags{Entity: *e, TagIDs: tagIDs}, nil
}

func (s *SQLiteDatabase) FindEntitiesWithTagsByHashes(hashes []string) ([]*model.EntityWithTags, error) {
	ctx := context.Background()

	var result []*model.EntityWithTags
	for _, hash := range hashes {
		e, err := s.queries.getEntityByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("finding entity by hash: %w", err)
		}
		tagIDs, err := s.queries.getTagIDsByEntity(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("getting tags of entity %s: %w", e.ID, err)
		}
		result = append(result, &model.EntityWithTags{Entity: e, TagIDs: tagIDs})
	}
	return result, nil
}

func (s *SQLiteDatabase) ListEntities() ([]*model.Entity, error) {
	entities, err := s.queries.listEntities(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	return toPointers(entities), nil
}

// RenamePath rewrites oldPath and every descendant to live under newPath.
// Renaming the root, onto itself, or into/out of its own subtree does nothing.
func (s *SQLiteDatabase) RenamePath(oldPath, newPath string) (*model.RenameResult, error) {
	oldPath = identity.Normalize(oldPath)
	newPath = identity.Normalize(newPath)

	result := &model.RenameResult{}
	if oldPath == newPath || identity.IsRoot(oldPath) || identity.IsRoot(newPath) ||
		identity.IsWithin(newPath, oldPath) || identity.IsWithin(oldPath, newPath) {
		return result, nil
	}

	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	var moving []model.Entity
	direct, err := qtx.getEntityByHash(ctx, identity.FileHash(oldPath))
	switch {
	case err == nil:
		moving = append(moving, direct)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("finding entity %s: %w", oldPath, err)
	}

	descendants, err := qtx.getEntitiesByPathPrefix(ctx, oldPath)
	if err != nil {
		return nil, fmt.Errorf("finding descendants of %s: %w", oldPath, err)
	}
	moving = append(moving, descendants...)

	if len(moving) == 0 {
		return result, nil
	}

	movingIDs := make(map[string]struct{}, len(moving))
	for _, e := range moving {
		movingIDs[e.ID] = struct{}{}
	}

	for _, e := range moving {
		target, ok := identity.ReplacePrefix(e.NixPath, oldPath, newPath)
		if !ok {
			continue
		}
		targetHash := identity.FileHash(target)

		// A stale entity recorded at the target is superseded by the moving one.
		stale, err := qtx.getEntityByHash(ctx, targetHash)
		switch {
		case err == nil:
			if _, isMoving := movingIDs[stale.ID]; !isMoving {
				if err := qtx.deleteEntity(ctx, stale.ID); err != nil {
					return nil, fmt.Errorf("deleting stale entity %s: %w", stale.NixPath, err)
				}
				result.DeletedHashes = append(result.DeletedHashes, stale.Hash)
			}
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("checking target %s: %w", target, err)
		}

		if err := qtx.updateEntityPath(ctx, e.ID, target); err != nil {
			return nil, fmt.Errorf("renaming %s to %s: %w", e.NixPath, target, err)
		}

		result.DeletedHashes = append(result.DeletedHashes, e.Hash)
		result.Updated = append(result.Updated, model.SlimEntity{ID: e.ID, Hash: targetHash})
		if e.IsDir {
			result.DirRenamed = true
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return result, nil
}

func (s *SQLiteDatabase) DeleteEntities(ids []string) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	for _, id := range ids {
		if err := qtx.deleteEntityTagsByEntity(ctx, id); err != nil {
			return fmt.Errorf("deleting tags of entity %s: %w", id, err)
		}
		if err := qtx.deleteEntity(ctx, id); err != nil {
			return fmt.Errorf("deleting entity %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Tag operations

// GetOrCreateTagIDs returns one id per distinct non-empty name, in first-seen
// order. Names match existing tags case-insensitively; the oldest tag wins.
func (s *SQLiteDatabase) GetOrCreateTagIDs(names []string) ([]string, error) {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	known, err := qtx.listTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	var ids []string
	seen := make(map[string]struct{})
	var created []*model.Tag

	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		id := ""
		for _, t := range known {
			if strings.EqualFold(t.Name, name) {
				id = t.ID
				break
			}
		}

		if id == "" {
			t := model.Tag{
				ID:    s.idgen.New(),
				Name:  name,
				Color: TagPalette[rand.IntN(len(TagPalette))],
			}
			if err := qtx.insertTag(ctx, t); err != nil {
				return nil, fmt.Errorf("inserting tag %q: %w", name, err)
			}
			known = append(known, t)
			created = append(created, &t)
			id = t.ID
		}

		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	if len(created) > 0 {
		s.publisher.Publish(events.Event{Kind: events.TagsCreated, Tags: created})
	}
	return ids, nil
}

func (s *SQLiteDatabase) GetTagIDs(entityID string) ([]string, error) {
	ids, err := s.queries.getTagIDsByEntity(context.Background(), entityID)
	if err != nil {
		return nil, fmt.Errorf("getting tag ids: %w", err)
	}
	return ids, nil
}

func (s *SQLiteDatabase) SetTags(entityIDs, tagIDs []string) error {
	return s.eachPair(entityIDs, tagIDs, "setting tag", (*queries).insertEntityTag)
}

func (s *SQLiteDatabase) RemoveTags(entityIDs, tagIDs []string) error {
	return s.eachPair(entityIDs, tagIDs, "removing tag", (*queries).deleteEntityTag)
}

// eachPair runs fn for the cartesian product of entity and tag ids in one
// transaction.
func (s *SQLiteDatabase) eachPair(entityIDs, tagIDs []string, action string,
	fn func(*queries, context.Context, string, string) error) error {
	if len(entityIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}

	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	for _, entityID := range entityIDs {
		for _, tagID := range tagIDs {
			if err := fn(qtx, ctx, entityID, tagID); err != nil {
				return fmt.Errorf("%s %s on %s: %w", action, tagID, entityID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListTags() ([]*model.Tag, error) {
	tags, err := s.queries.listTags(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return toPointers(tags), nil
}

func (s *SQLiteDatabase) FindTagByID(id string) (*model.Tag, error) {
	t, err := s.queries.getTagByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding tag by id: %w", err)
	}
	return &t, nil
}

func (s *SQLiteDatabase) FindTagByName(name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	tags, err := s.queries.listTags(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	for i := range tags {
		if strings.EqualFold(tags[i].Name, name) {
			return &tags[i], nil
		}
	}
	return nil, nil
}

func (s *SQLiteDatabase) UpdateTag(tag *model.Tag) (bool, error) {
	n, err := s.queries.updateTag(context.Background(), *tag)
	if err != nil {
		return false, fmt.Errorf("updating tag: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) DeleteTags(ids []string) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.withTx(tx)

	for _, id := range ids {
		if err := qtx.deleteEntityTagsByTag(ctx, id); err != nil {
			return fmt.Errorf("deleting relations of tag %s: %w", id, err)
		}
		if err := qtx.deleteTag(ctx, id); err != nil {
			return fmt.Errorf("deleting tag %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Sink operations

func (s *SQLiteDatabase) ListSinks() ([]*model.Sink, error) {
	rows, err := s.queries.listSinkRows(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing sinks: %w", err)
	}

	// Rows arrive grouped by nixPath.
	var sinks []*model.Sink
	var cur *model.Sink
	for _, r := range rows {
		if cur == nil || cur.ID != r.entityID {
			cur = &model.Sink{ID: r.entityID, NixPath: r.nixPath}
			sinks = append(sinks, cur)
		}
		cur.TagIDs = append(cur.TagIDs, r.tagID)
	}
	return sinks, nil
}

func (s *SQLiteDatabase) FindSink(entityID string) (*model.Sink, error) {
	e, err := s.FindEntityByID(entityID)
	if err != nil || e == nil || !e.IsDir {
		return nil, err
	}

	tagIDs, err := s.queries.getTagIDsByEntity(context.Background(), e.ID)
	if err != nil {
		return nil, fmt.Errorf("getting tags of sink %s: %w", e.NixPath, err)
	}
	return &model.Sink{ID: e.ID, NixPath: e.NixPath, TagIDs: tagIDs}, nil
}

// Properties

// GetProperty returns "" when the property is not set.
func (s *SQLiteDatabase) GetProperty(name string) (string, error) {
	value, err := s.queries.getProperty(context.Background(), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting property %s: %w", name, err)
	}
	return value, nil
}

func (s *SQLiteDatabase) SetProperty(name, value string) error {
	if err := s.queries.setProperty(context.Background(), name, value); err != nil {
		return fmt.Errorf("setting property %s: %w", name, err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toPointers[T any](items []T) []*T {
	result := make([]*T, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result
}

// Compile-time check that SQLiteDatabase implements tagsink.Store interface
var _ tagsink.Store = (*SQLiteDatabase)(nil)
