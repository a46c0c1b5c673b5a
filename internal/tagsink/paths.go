package tagsink

import (
	"fmt"
	"path/filepath"
	"time"

	"tagsink/internal/events"
	"tagsink/internal/identity"
	"tagsink/internal/model"
)

// LastScanProperty records when Scan last completed.
const LastScanProperty = "lastScan"

// MoveResult reports a move performed by the collection.
type MoveResult struct {
	From    string
	To      string
	Renamed *model.RenameResult
}

// ListEntry is one directory child joined with its stored identity.
type ListEntry struct {
	DirEntry
	EntityID string   // "" when untracked
	TagIDs   []string // sorted
}

// RecordRename updates stored identities after something outside tagsink moved
// oldRaw to newRaw. oldRaw is not expected to exist any more.
func (c *Collection) RecordRename(oldRaw, newRaw string) (*model.RenameResult, error) {
	c.lock()
	defer c.unlock()

	oldPath, err := c.fsmgr.NixPathOf(oldRaw)
	if err != nil {
		return nil, err
	}
	newPath, err := c.fsmgr.NixPathOf(newRaw)
	if err != nil {
		return nil, err
	}
	return c.recordRename(oldPath, newPath)
}

func (c *Collection) recordRename(oldPath, newPath string) (*model.RenameResult, error) {
	res, err := c.store.RenamePath(oldPath, newPath)
	if err != nil {
		return nil, fmt.Errorf("renaming %s: %w", oldPath, err)
	}
	if err := c.applyRename(oldPath, newPath, res); err != nil {
		return nil, err
	}
	return res, nil
}

// recordMove records a move the collection just made on disk. When the store
// rejects the rename the path is moved back, so disk and store still agree.
func (c *Collection) recordMove(oldPath, newPath string) (*model.RenameResult, error) {
	res, err := c.store.RenamePath(oldPath, newPath)
	if err != nil {
		return nil, c.undoMove(oldPath, newPath, fmt.Errorf("recording move of %s: %w", oldPath, err))
	}
	if err := c.applyRename(oldPath, newPath, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Collection) undoMove(from, to string, cause error) error {
	moved, err := c.fsmgr.Resolve(filepath.Join(c.fsmgr.Root(), filepath.FromSlash(to)))
	if err == nil {
		_, err = c.fsmgr.Move(moved, identity.Parent(from))
	}
	if err != nil {
		// The entity keeps its old path until Scan drops it.
		c.logger.Error("move not recorded", "collection", c.slug, "from", from, "to", to, "error", err)
		return fmt.Errorf("%w; moving back failed: %v", cause, err)
	}
	c.logger.Warn("move rolled back", "collection", c.slug, "from", from, "to", to)
	return cause
}

func (c *Collection) applyRename(oldPath, newPath string, res *model.RenameResult) error {
	if len(res.DeletedHashes) > 0 {
		c.queue.Publish(events.Event{Kind: events.HashesInvalidated, Hashes: res.DeletedHashes})
	}

	// More invalidated hashes than rewritten entities means a stale occupant of
	// the target was dropped; it may have been a sink.
	if res.DirRenamed || len(res.DeletedHashes) > len(res.Updated) {
		if err := c.reloadSinks(); err != nil {
			return err
		}
	}

	if len(res.Updated) > 0 {
		c.logger.Info("path renamed", "collection", c.slug, "from", oldPath, "to", newPath, "entities", len(res.Updated))
	}
	return nil
}

// Move moves srcRaw into the directory destDirRaw on disk and records the
// rename.
func (c *Collection) Move(srcRaw, destDirRaw string) (*MoveResult, error) {
	c.lock()
	defer c.unlock()

	src, err := c.fsmgr.Resolve(srcRaw)
	if err != nil {
		return nil, err
	}
	dest, err := c.fsmgr.Resolve(destDirRaw)
	if err != nil {
		return nil, err
	}
	if !dest.IsDir() {
		return nil, fmt.Errorf("destination is not a directory: %s", dest.String())
	}
	if identity.IsRoot(src.NixPath()) {
		return nil, fmt.Errorf("cannot move the collection root")
	}

	newPath, err := c.fsmgr.Move(src, dest.NixPath())
	if err != nil {
		return nil, fmt.Errorf("moving %s: %w", src.NixPath(), err)
	}

	res, err := c.recordMove(src.NixPath(), newPath)
	if err != nil {
		return nil, err
	}
	return &MoveResult{From: src.NixPath(), To: newPath, Renamed: res}, nil
}

// Forget removes the stored identity of every path and, for directories, of
// everything below them. The files themselves are untouched. Returns the number
// of entities removed.
func (c *Collection) Forget(rawPaths []string) (int, error) {
	c.lock()
	defer c.unlock()

	var doomed []*model.Entity
	seen := make(map[string]bool)
	add := func(e *model.Entity) {
		if !seen[e.ID] {
			seen[e.ID] = true
			doomed = append(doomed, e)
		}
	}

	for _, raw := range rawPaths {
		nixPath, err := c.fsmgr.NixPathOf(raw)
		if err != nil {
			return 0, err
		}
		if e, err := c.store.FindEntityByPath(nixPath); err != nil {
			return 0, fmt.Errorf("finding %s: %w", nixPath, err)
		} else if e != nil {
			add(e)
		}
		descendants, err := c.store.FindEntitiesByPathPrefix(nixPath)
		if err != nil {
			return 0, fmt.Errorf("finding entities below %s: %w", nixPath, err)
		}
		for _, e := range descendants {
			add(e)
		}
	}

	if err := c.deleteEntities(doomed); err != nil {
		return 0, err
	}
	return len(doomed), nil
}

// Scan drops every entity whose path no longer exists on disk and returns how
// many were dropped.
func (c *Collection) Scan() (int, error) {
	c.lock()
	defer c.unlock()

	all, err := c.store.ListEntities()
	if err != nil {
		return 0, fmt.Errorf("listing entities: %w", err)
	}

	var missing []*model.Entity
	for _, e := range all {
		exists, err := c.fsmgr.Exists(e.NixPath)
		if err != nil {
			return 0, fmt.Errorf("checking %s: %w", e.NixPath, err)
		}
		if !exists {
			missing = append(missing, e)
		}
	}

	if err := c.deleteEntities(missing); err != nil {
		return 0, err
	}

	if err := c.store.SetProperty(LastScanProperty, c.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}

	c.logger.Info("scan finished", "collection", c.slug, "checked", len(all), "removed", len(missing))
	return len(missing), nil
}

// LastScan returns when Scan last completed, or the zero time.
func (c *Collection) LastScan() (time.Time, error) {
	c.lock()
	defer c.unlock()

	v, err := c.store.GetProperty(LastScanProperty)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", LastScanProperty, err)
	}
	return t, nil
}

func (c *Collection) deleteEntities(doomed []*model.Entity) error {
	if len(doomed) == 0 {
		return nil
	}

	ids := make([]string, len(doomed))
	hashes := make([]string, len(doomed))
	hadDir := false
	for i, e := range doomed {
		ids[i] = e.ID
		hashes[i] = e.Hash
		hadDir = hadDir || e.IsDir
	}

	if err := c.store.DeleteEntities(ids); err != nil {
		return fmt.Errorf("deleting entities: %w", err)
	}
	c.publishDeleted(ids, hashes)

	if hadDir {
		return c.reloadSinks()
	}
	return nil
}

// List returns the non-ignored children of a directory with their tags.
func (c *Collection) List(rawDir string) ([]ListEntry, error) {
	c.lock()
	defer c.unlock()

	dir, err := c.fsmgr.Resolve(rawDir)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir.String())
	}

	children, err := c.fsmgr.ReadDir(dir.NixPath())
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir.NixPath(), err)
	}

	hashes := make([]string, len(children))
	for i, child := range children {
		hashes[i] = identity.FileHash(child.NixPath)
	}
	tracked, err := c.store.FindEntitiesWithTagsByHashes(hashes)
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}
	byHash := make(map[string]*model.EntityWithTags, len(tracked))
	for _, e := range tracked {
		byHash[e.Hash] = e
	}

	entries := make([]ListEntry, len(children))
	for i, child := range children {
		entries[i] = ListEntry{DirEntry: child}
		if e, ok := byHash[hashes[i]]; ok {
			entries[i].EntityID = e.ID
			entries[i].TagIDs = e.TagIDs
		}
	}
	return entries, nil
}
