package database

import (
	"context"
	"database/sql"
	"fmt"

	"tagsink/internal/identity"
	"tagsink/internal/model"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the typed statements used by SQLiteDatabase. Every method runs
// on whatever handle it wraps, so withTx gives transactional variants.
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

func (q *queries) withTx(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

// Entities

const entityColumns = `id, hash, nixPath, isDir`

func scanEntity(row interface{ Scan(...any) error }) (model.Entity, error) {
	var e model.Entity
	err := row.Scan(&e.ID, &e.Hash, &e.NixPath, &e.IsDir)
	return e, err
}

func (q *queries) getEntityByID(ctx context.Context, id string) (model.Entity, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

func (q *queries) getEntityByHash(ctx context.Context, hash string) (model.Entity, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE hash = ?`, hash)
	return scanEntity(row)
}

func (q *queries) listEntities(ctx context.Context) ([]model.Entity, error) {
	return q.queryEntities(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY nixPath`)
}

// getEntitiesByPathPrefix returns the strict descendants of dir.
func (q *queries) getEntitiesByPathPrefix(ctx context.Context, dir string) ([]model.Entity, error) {
	return q.queryEntities(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE nixPath LIKE ? ESCAPE '`+identity.LikeEscape+`' ORDER BY nixPath`,
		identity.LikePrefixPattern(dir))
}

func (q *queries) queryEntities(ctx context.Context, query string, args ...any) ([]model.Entity, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) insertEntity(ctx context.Context, e model.Entity) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO entities (id, hash, nixPath, isDir) VALUES (?, ?, ?, ?)`,
		e.ID, e.Hash, e.NixPath, e.IsDir)
	return err
}

// updateEntityPath is the only statement that changes a path; hash and nixPath
// are always written together.
func (q *queries) updateEntityPath(ctx context.Context, id, nixPath string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE entities SET hash = ?, nixPath = ? WHERE id = ?`,
		identity.FileHash(nixPath), nixPath, id)
	return err
}

func (q *queries) deleteEntity(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	return err
}

// Relations

// insertEntityTag ignores duplicates and pairs whose entity or tag is missing.
func (q *queries) insertEntityTag(ctx context.Context, entityID, tagID string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO entity_tags (entityId, tagId)
		SELECT ?, ?
		WHERE EXISTS (SELECT 1 FROM entities WHERE id = ?)
		  AND EXISTS (SELECT 1 FROM tags WHERE id = ?)`,
		entityID, tagID, entityID, tagID)
	return err
}

func (q *queries) deleteEntityTag(ctx context.Context, entityID, tagID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM entity_tags WHERE entityId = ? AND tagId = ?`, entityID, tagID)
	return err
}

func (q *queries) deleteEntityTagsByEntity(ctx context.Context, entityID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM entity_tags WHERE entityId = ?`, entityID)
	return err
}

func (q *queries) deleteEntityTagsByTag(ctx context.Context, tagID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM entity_tags WHERE tagId = ?`, tagID)
	return err
}

func (q *queries) getTagIDsByEntity(ctx context.Context, entityID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT tagId FROM entity_tags WHERE entityId = ? ORDER BY tagId`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tag id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// sinkRow is one (directory, tag) pair of a tagged directory.
type sinkRow struct {
	entityID string
	nixPath  string
	tagID    string
}

func (q *queries) listSinkRows(ctx context.Context) ([]sinkRow, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.id, e.nixPath, et.tagId
		FROM entities e
		JOIN entity_tags et ON et.entityId = e.id
		WHERE e.isDir = 1
		ORDER BY e.nixPath, et.tagId`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sinkRow
	for rows.Next() {
		var r sinkRow
		if err := rows.Scan(&r.entityID, &r.nixPath, &r.tagID); err != nil {
			return nil, fmt.Errorf("scanning sink row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Tags

func scanTag(row interface{ Scan(...any) error }) (model.Tag, error) {
	var t model.Tag
	err := row.Scan(&t.ID, &t.Name, &t.Color)
	return t, err
}

// listTags returns tags in storage (rowid) order.
func (q *queries) listTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, color FROM tags ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *queries) getTagByID(ctx context.Context, id string) (model.Tag, error) {
	return scanTag(q.db.QueryRowContext(ctx, `SELECT id, name, color FROM tags WHERE id = ?`, id))
}

func (q *queries) insertTag(ctx context.Context, t model.Tag) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`, t.ID, t.Name, t.Color)
	return err
}

func (q *queries) updateTag(ctx context.Context, t model.Tag) (int64, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE tags SET name = ?, color = ? WHERE id = ?`, t.Name, t.Color, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *queries) deleteTag(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	return err
}

// Properties

func (q *queries) getProperty(ctx context.Context, name string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM properties WHERE name = ?`, name).Scan(&value)
	return value, err
}

func (q *queries) setProperty(ctx context.Context, name, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO properties (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}
