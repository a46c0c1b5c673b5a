package app

import (
	"fmt"

	"tagsink/internal/tagsink"
)

// Command names an operation on one collection.
type Command string

const (
	CmdTag          Command = "tag"
	CmdUntag        Command = "untag"
	CmdBestSink     Command = "best-sink"
	CmdFile         Command = "file"
	CmdMove         Command = "move"
	CmdRecordRename Command = "record-rename"
	CmdForget       Command = "forget"
	CmdScan         Command = "scan"
	CmdList         Command = "list"
	CmdTags         Command = "tags"
	CmdEditTag      Command = "edit-tag"
	CmdDeleteTags   Command = "delete-tags"
	CmdSinks        Command = "sinks"
)

// Request is one command addressed to a collection. Only the fields the
// command reads need to be set.
type Request struct {
	Collection string   `json:"collection"`
	Command    Command  `json:"command"`
	Paths      []string `json:"paths,omitempty"`
	Tags       []string `json:"tags,omitempty"` // names; ids for delete-tags
	Dest       string   `json:"dest,omitempty"`
	TagID      string   `json:"tag_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Color      string   `json:"color,omitempty"`
}

// CountResult is returned by commands that only report how many records they touched.
type CountResult struct {
	Count int `json:"count"`
}

// EditResult is returned by edit-tag.
type EditResult struct {
	Found bool `json:"found"`
}

type handler func(c *tagsink.Collection, req Request) (any, error)

var handlers = map[Command]handler{
	CmdTag: func(c *tagsink.Collection, req Request) (any, error) {
		return c.TagPaths(req.Paths, req.Tags)
	},
	CmdUntag: func(c *tagsink.Collection, req Request) (any, error) {
		return c.UntagPaths(req.Paths, req.Tags)
	},
	CmdBestSink: func(c *tagsink.Collection, req Request) (any, error) {
		return c.BestSink(req.Tags)
	},
	CmdFile: func(c *tagsink.Collection, req Request) (any, error) {
		if len(req.Paths) != 1 {
			return nil, fmt.Errorf("file takes exactly one path, got %d", len(req.Paths))
		}
		return c.FileIntoSink(req.Paths[0])
	},
	CmdMove: func(c *tagsink.Collection, req Request) (any, error) {
		if len(req.Paths) != 1 || req.Dest == "" {
			return nil, fmt.Errorf("move takes one path and a destination")
		}
		return c.Move(req.Paths[0], req.Dest)
	},
	CmdRecordRename: func(c *tagsink.Collection, req Request) (any, error) {
		if len(req.Paths) != 2 {
			return nil, fmt.Errorf("record-rename takes the old and the new path, got %d paths", len(req.Paths))
		}
		return c.RecordRename(req.Paths[0], req.Paths[1])
	},
	CmdForget: func(c *tagsink.Collection, req Request) (any, error) {
		n, err := c.Forget(req.Paths)
		return &CountResult{Count: n}, err
	},
	CmdScan: func(c *tagsink.Collection, req Request) (any, error) {
		n, err := c.Scan()
		return &CountResult{Count: n}, err
	},
	CmdList: func(c *tagsink.Collection, req Request) (any, error) {
		dir := c.Root()
		if len(req.Paths) > 0 {
			dir = req.Paths[0]
		}
		return c.List(dir)
	},
	CmdTags: func(c *tagsink.Collection, req Request) (any, error) {
		return c.Tags()
	},
	CmdEditTag: func(c *tagsink.Collection, req Request) (any, error) {
		if req.TagID == "" {
			return nil, fmt.Errorf("edit-tag needs a tag id")
		}
		found, err := c.EditTag(req.TagID, req.Name, req.Color)
		return &EditResult{Found: found}, err
	},
	CmdDeleteTags: func(c *tagsink.Collection, req Request) (any, error) {
		if err := c.DeleteTags(req.Tags); err != nil {
			return nil, err
		}
		return &CountResult{Count: len(req.Tags)}, nil
	},
	CmdSinks: func(c *tagsink.Collection, req Request) (any, error) {
		return c.SinkSnapshot(), nil
	},
}

// Dispatch runs req against its collection.
func (a *App) Dispatch(req Request) (any, error) {
	h, ok := handlers[req.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, req.Command)
	}
	c, err := a.Collection(req.Collection)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("dispatching command", "collection", req.Collection, "command", string(req.Command))
	res, err := h(c, req)
	if err != nil {
		a.logger.Error("command failed", "collection", req.Collection, "command", string(req.Command), "error", err)
		return nil, err
	}
	return res, nil
}
