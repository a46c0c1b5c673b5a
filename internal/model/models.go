package model

// Entity is the identity record of a file or directory within a collection.
type Entity struct {
	ID      string // UUID, immutable
	Hash    string // identity.FileHash(NixPath); always rewritten together with NixPath
	NixPath string // collection-relative, forward slashes, leading "/"
	IsDir   bool   // resolved once at creation
}

// EntityWithTags is an Entity joined with its tag ids.
type EntityWithTags struct {
	Entity
	TagIDs []string // sorted
}

// SlimEntity is the part of an Entity a cache needs after a rename.
type SlimEntity struct {
	ID   string
	Hash string
}

// PathInfo is the caller-supplied input for entity creation.
// IsDir comes from the caller's stat and is trusted.
type PathInfo struct {
	NixPath string
	IsDir   bool
}

// Tag is a user-visible label. Names are not unique.
type Tag struct {
	ID    string
	Name  string
	Color string // "#rrggbb"
}

// Sink is a tagged directory acting as a filing destination.
// It is derived from the entity and relation tables, never stored on its own.
type Sink struct {
	ID      string   // entity id
	NixPath string
	TagIDs  []string // sorted; empty means "not a sink"
}

// SinkMatch is the result of a best-sink query.
type SinkMatch struct {
	ID      string
	NixPath string
	Depth   int // 1 for a forest root
}

// RenameResult describes the effect of a rename on stored identities.
type RenameResult struct {
	DeletedHashes []string     // hashes that no longer resolve
	Updated       []SlimEntity // entities whose path and hash were rewritten
	DirRenamed    bool         // at least one rewritten entity is a directory
}
