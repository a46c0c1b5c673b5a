package tagsink

import (
	"fmt"
	"sync"

	"tagsink/internal/events"
	"tagsink/internal/model"
	"tagsink/internal/sinktree"
)

// Collection is the orchestration layer for one tagged directory tree. It owns
// the collection's store, sink tree, filesystem manager and event queue, and
// serializes every operation on them.
//
// Events published during an operation reach queue observers only after the
// operation has released the collection, so observers may call back into it.
//
// The store and the sink tree never touch the filesystem; existence and
// directory-ness are read here through the FilesystemManager.
type Collection struct {
	mu     sync.Mutex
	slug   string
	store  Store
	fsmgr  FilesystemManager
	tree   *sinktree.Tree
	queue  events.Queue
	logger Logger
	clock  Clock
}

// NewCollection creates a Collection with the provided dependencies.
// The sink tree is empty until Open is called.
func NewCollection(slug string, store Store, fsmgr FilesystemManager, queue events.Queue, logger Logger, clock Clock) *Collection {
	return &Collection{
		slug:   slug,
		store:  store,
		fsmgr:  fsmgr,
		tree:   sinktree.New(),
		queue:  queue,
		logger: logger,
		clock:  clock,
	}
}

// Slug returns the configured name of the collection.
func (c *Collection) Slug() string {
	return c.slug
}

// Root returns the host path of the collection root.
func (c *Collection) Root() string {
	return c.fsmgr.Root()
}

// Open loads every stored sink into the sink tree.
func (c *Collection) Open() error {
	c.lock()
	defer c.unlock()

	if err := c.loadSinks(); err != nil {
		return err
	}
	c.logger.Info("collection opened", "collection", c.slug, "sinks", c.tree.Len())
	return nil
}

// Close closes the store. The collection must not be used afterwards.
func (c *Collection) Close() error {
	c.lock()
	defer c.unlock()
	return c.store.Close()
}

// SinkSnapshot returns a deep copy of the collapsed sink forest.
func (c *Collection) SinkSnapshot() []*sinktree.SnapshotNode {
	c.lock()
	defer c.unlock()
	return c.tree.Snapshot()
}

// Events drains the collection's event queue.
func (c *Collection) Events() []events.Event {
	return c.queue.Drain()
}

// Subscribe registers fn for every event published by the collection.
func (c *Collection) Subscribe(fn func(events.Event)) {
	c.queue.Subscribe(fn)
}

// BackupTo writes a consistent copy of the store to destPath.
func (c *Collection) BackupTo(destPath string) error {
	c.lock()
	defer c.unlock()
	return c.store.BackupTo(destPath)
}

// StorePath returns where the store lives.
func (c *Collection) StorePath() string {
	return c.store.Path()
}

// lock serializes an operation and holds back observer calls until unlock.
func (c *Collection) lock() {
	c.mu.Lock()
	c.queue.Hold()
}

func (c *Collection) unlock() {
	c.mu.Unlock()
	c.queue.Release()
}

// loadSinks rebuilds the sink tree from scratch out of the store.
func (c *Collection) loadSinks() error {
	sinks, err := c.store.ListSinks()
	if err != nil {
		return fmt.Errorf("loading sinks: %w", err)
	}

	c.tree.Reset()
	for _, s := range sinks {
		c.tree.OverwriteSink(*s)
	}
	c.tree.Rebuild()
	return nil
}

// reloadSinks reloads the tree after renames or deletions and publishes what
// changed.
func (c *Collection) reloadSinks() error {
	before := c.tree.Snapshot()
	if err := c.loadSinks(); err != nil {
		return err
	}
	c.publishSinkChanges(before)
	return nil
}

// refreshSinks re-reads the sink state of the given directory entities and
// overwrites their nodes in place.
func (c *Collection) refreshSinks(entities []*model.Entity) error {
	before := c.tree.Snapshot()

	touched := false
	for _, e := range entities {
		if !e.IsDir {
			continue
		}
		sink, err := c.store.FindSink(e.ID)
		if err != nil {
			return fmt.Errorf("reading sink %s: %w", e.NixPath, err)
		}
		if sink == nil {
			continue
		}
		c.tree.OverwriteSink(*sink)
		touched = true
	}
	if !touched {
		return nil
	}

	c.tree.Rebuild()
	c.publishSinkChanges(before)
	return nil
}

func (c *Collection) publishSinkChanges(before []*sinktree.SnapshotNode) {
	changes := sinktree.Diff(before, c.tree.Snapshot())
	if len(changes) == 0 {
		return
	}
	c.logger.Debug("sinks changed", "collection", c.slug, "changes", len(changes))
	c.queue.Publish(events.Event{Kind: events.SinksChanged, SinkChanges: changes})
}

func (c *Collection) publishDeleted(ids, hashes []string) {
	if len(ids) > 0 {
		c.queue.Publish(events.Event{Kind: events.EntitiesDeleted, EntityIDs: ids})
	}
	if len(hashes) > 0 {
		c.queue.Publish(events.Event{Kind: events.HashesInvalidated, Hashes: hashes})
	}
}
