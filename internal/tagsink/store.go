package tagsink

import "tagsink/internal/model"

// Store persists the entities, tags and entity-tag relations of one collection.
// Multi-row mutations are atomic: either every row of an operation is written
// or none is. Relation operations referencing ids that no longer exist are
// silent no-ops, since deletions race with in-flight tag requests.
type Store interface {
	// Entity operations

	// GetOrCreateEntities returns the entity for each path, in input order,
	// creating missing ones in a single transaction. IsDir is only used for
	// newly created entities.
	GetOrCreateEntities(paths []model.PathInfo) ([]*model.Entity, error)

	// FindEntityByID returns nil, nil when the entity does not exist.
	FindEntityByID(id string) (*model.Entity, error)

	// FindEntityByHash returns nil, nil when no entity has the hash.
	FindEntityByHash(hash string) (*model.Entity, error)

	// FindEntityByPath looks an entity up by the hash of its nixPath.
	FindEntityByPath(nixPath string) (*model.Entity, error)

	// FindEntitiesByPathPrefix returns all strict descendants of dir.
	FindEntitiesByPathPrefix(dir string) ([]*model.Entity, error)

	// FindEntityWithTags returns nil, nil when the entity does not exist.
	FindEntityWithTags(id string) (*model.EntityWithTags, error)

	// FindEntitiesWithTagsByHashes returns the known entities among hashes.
	// Unknown hashes are skipped.
	FindEntitiesWithTagsByHashes(hashes []string) ([]*model.EntityWithTags, error)

	// ListEntities returns every entity ordered by nixPath.
	ListEntities() ([]*model.Entity, error)

	// RenamePath moves oldPath and all its descendants to newPath, recomputing
	// hashes, in a single transaction.
	RenamePath(oldPath, newPath string) (*model.RenameResult, error)

	// DeleteEntities removes entities and their tag relations.
	DeleteEntities(ids []string) error

	// Tag operations

	// GetOrCreateTagIDs maps names to tag ids case-insensitively, creating tags
	// for unmatched names.
	GetOrCreateTagIDs(names []string) ([]string, error)

	// GetTagIDs returns the sorted tag ids of an entity.
	GetTagIDs(entityID string) ([]string, error)

	// SetTags relates every entity to every tag. Idempotent.
	SetTags(entityIDs, tagIDs []string) error

	// RemoveTags removes every entity-tag pair. Idempotent.
	RemoveTags(entityIDs, tagIDs []string) error

	ListTags() ([]*model.Tag, error)

	// FindTagByID returns nil, nil when the tag does not exist.
	FindTagByID(id string) (*model.Tag, error)

	// FindTagByName returns the first tag whose name matches case-insensitively,
	// or nil, nil.
	FindTagByName(name string) (*model.Tag, error)

	// UpdateTag reports false when the tag does not exist.
	UpdateTag(tag *model.Tag) (bool, error)

	// DeleteTags removes tags and all their entity relations.
	DeleteTags(ids []string) error

	// Sink operations

	// ListSinks returns every directory entity with at least one tag.
	ListSinks() ([]*model.Sink, error)

	// FindSink returns the sink state of a directory entity (possibly with no
	// tags), or nil, nil when the entity is missing or not a directory.
	FindSink(entityID string) (*model.Sink, error)

	// Properties

	// GetProperty returns "" when the property is not set.
	GetProperty(name string) (string, error)
	SetProperty(name, value string) error

	// Lifecycle

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(destPath string) error

	// Path returns the store location (":memory:" for in-memory stores).
	Path() string

	Close() error
}
