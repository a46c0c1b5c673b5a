package tagsink

import (
	"fmt"

	"tagsink/internal/identity"
	"tagsink/internal/model"
)

// TagResult reports the entities and tags a tagging request touched.
type TagResult struct {
	Entities []*model.Entity
	TagIDs   []string
	Skipped  []string // ignored paths, as given
}

// FileResult reports what FileIntoSink did.
type FileResult struct {
	Entity *model.Entity
	Sink   *model.SinkMatch // nil when no sink matches
	From   string
	To     string // equal to From when nothing moved
	Moved  bool
}

// TagPaths tags every path with every named tag, creating entities and tags as
// needed. Ignored paths are skipped.
func (c *Collection) TagPaths(rawPaths, names []string) (*TagResult, error) {
	c.lock()
	defer c.unlock()

	paths, skipped, err := c.resolveTaggable(rawPaths)
	if err != nil {
		return nil, err
	}
	result := &TagResult{Skipped: skipped}
	if len(paths) == 0 {
		return result, nil
	}

	tagIDs, err := c.store.GetOrCreateTagIDs(names)
	if err != nil {
		return nil, fmt.Errorf("resolving tags: %w", err)
	}
	result.TagIDs = tagIDs
	if len(tagIDs) == 0 {
		return result, nil
	}

	infos := make([]model.PathInfo, len(paths))
	for i, p := range paths {
		infos[i] = model.PathInfo{NixPath: p.NixPath(), IsDir: p.IsDir()}
	}
	entities, err := c.store.GetOrCreateEntities(infos)
	if err != nil {
		return nil, fmt.Errorf("recording entities: %w", err)
	}
	result.Entities = entities

	if err := c.store.SetTags(entityIDs(entities), tagIDs); err != nil {
		return nil, fmt.Errorf("setting tags: %w", err)
	}

	if err := c.refreshSinks(entities); err != nil {
		return nil, err
	}

	c.logger.Info("paths tagged", "collection", c.slug, "paths", len(entities), "tags", len(tagIDs))
	return result, nil
}

// UntagPaths removes the named tags from every path. Unknown names and
// untracked paths are no-ops.
func (c *Collection) UntagPaths(rawPaths, names []string) (*TagResult, error) {
	c.lock()
	defer c.unlock()

	result := &TagResult{}

	tagIDs, err := c.existingTagIDs(names)
	if err != nil {
		return nil, err
	}
	result.TagIDs = tagIDs
	if len(tagIDs) == 0 {
		return result, nil
	}

	for _, raw := range rawPaths {
		nixPath, err := c.fsmgr.NixPathOf(raw)
		if err != nil {
			return nil, err
		}
		e, err := c.store.FindEntityByPath(nixPath)
		if err != nil {
			return nil, fmt.Errorf("finding %s: %w", nixPath, err)
		}
		if e != nil {
			result.Entities = append(result.Entities, e)
		}
	}
	if len(result.Entities) == 0 {
		return result, nil
	}

	if err := c.store.RemoveTags(entityIDs(result.Entities), tagIDs); err != nil {
		return nil, fmt.Errorf("removing tags: %w", err)
	}

	if err := c.refreshSinks(result.Entities); err != nil {
		return nil, err
	}

	c.logger.Info("paths untagged", "collection", c.slug, "paths", len(result.Entities), "tags", len(tagIDs))
	return result, nil
}

// BestSink returns the sink a file carrying the named tags belongs in, or nil.
// Names are matched against existing tags only.
func (c *Collection) BestSink(names []string) (*model.SinkMatch, error) {
	c.lock()
	defer c.unlock()

	tagIDs, err := c.existingTagIDs(names)
	if err != nil {
		return nil, err
	}
	return c.tree.FindBestSink(tagIDs), nil
}

// FileIntoSink moves a tagged file into the best sink for its tags. A file that
// already lies anywhere inside that sink stays where it is. Directories are
// never filed.
func (c *Collection) FileIntoSink(rawPath string) (*FileResult, error) {
	c.lock()
	defer c.unlock()

	path, err := c.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, err
	}

	e, err := c.store.FindEntityByPath(path.NixPath())
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", path.NixPath(), err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, path.NixPath())
	}

	result := &FileResult{Entity: e, From: e.NixPath, To: e.NixPath}
	if e.IsDir {
		return result, nil
	}

	tagIDs, err := c.store.GetTagIDs(e.ID)
	if err != nil {
		return nil, fmt.Errorf("reading tags of %s: %w", e.NixPath, err)
	}
	result.Sink = c.tree.FindBestSink(tagIDs)
	if result.Sink == nil || identity.IsWithin(e.NixPath, result.Sink.NixPath) {
		return result, nil
	}

	newPath, err := c.fsmgr.Move(path, result.Sink.NixPath)
	if err != nil {
		return nil, fmt.Errorf("moving %s: %w", e.NixPath, err)
	}
	if _, err := c.recordMove(e.NixPath, newPath); err != nil {
		return nil, err
	}

	result.To = newPath
	result.Moved = true
	c.logger.Info("file filed", "collection", c.slug, "from", result.From, "to", newPath)
	return result, nil
}

// resolveTaggable resolves raw paths, dropping ignored ones.
func (c *Collection) resolveTaggable(rawPaths []string) ([]*Path, []string, error) {
	var paths []*Path
	var skipped []string
	for _, raw := range rawPaths {
		p, err := c.fsmgr.Resolve(raw)
		if err != nil {
			return nil, nil, err
		}
		if identity.IsRoot(p.NixPath()) || c.fsmgr.IsIgnored(p.NixPath(), p.IsDir()) {
			c.logger.Warn("skipping path", "collection", c.slug, "path", raw)
			skipped = append(skipped, raw)
			continue
		}
		paths = append(paths, p)
	}
	return paths, skipped, nil
}

// existingTagIDs maps names to existing tag ids, skipping unknown names.
func (c *Collection) existingTagIDs(names []string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, name := range names {
		tag, err := c.store.FindTagByName(name)
		if err != nil {
			return nil, fmt.Errorf("finding tag %q: %w", name, err)
		}
		if tag == nil || seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

func entityIDs(entities []*model.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}
