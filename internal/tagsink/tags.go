package tagsink

import (
	"fmt"
	"regexp"
	"strings"

	"tagsink/internal/model"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Tags returns the tag catalogue in creation order.
func (c *Collection) Tags() ([]*model.Tag, error) {
	c.lock()
	defer c.unlock()
	return c.store.ListTags()
}

// FindTag returns the first tag named name (case-insensitive), or nil.
func (c *Collection) FindTag(name string) (*model.Tag, error) {
	c.lock()
	defer c.unlock()
	return c.store.FindTagByName(name)
}

// EditTag renames and/or recolors a tag. Empty arguments keep the current
// value. Returns false when the tag does not exist.
func (c *Collection) EditTag(id, name, color string) (bool, error) {
	c.lock()
	defer c.unlock()

	tag, err := c.store.FindTagByID(id)
	if err != nil {
		return false, err
	}
	if tag == nil {
		return false, nil
	}

	if name = strings.TrimSpace(name); name != "" {
		tag.Name = name
	}
	if color != "" {
		if !colorPattern.MatchString(color) {
			return false, fmt.Errorf("invalid color %q: want #rrggbb", color)
		}
		tag.Color = strings.ToLower(color)
	}

	ok, err := c.store.UpdateTag(tag)
	if err != nil {
		return false, err
	}
	c.logger.Info("tag updated", "collection", c.slug, "tag", tag.ID, "name", tag.Name)
	return ok, nil
}

// DeleteTags removes tags and every relation to them. Directories left without
// tags stop being sinks.
func (c *Collection) DeleteTags(ids []string) error {
	c.lock()
	defer c.unlock()

	if len(ids) == 0 {
		return nil
	}
	if err := c.store.DeleteTags(ids); err != nil {
		return fmt.Errorf("deleting tags: %w", err)
	}
	c.logger.Info("tags deleted", "collection", c.slug, "count", len(ids))
	return c.reloadSinks()
}
