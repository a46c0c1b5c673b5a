// Package events carries per-collection notifications out of the core.
//
// Each open collection owns one Queue. Producers (the store, the collection
// service) Publish; observers registered with Subscribe run synchronously on
// publish, and anything else drains the queue when convenient. While a queue
// is held, observer calls are postponed until the last Release, so a producer
// holding its own lock can publish without observers re-entering it.
package events

import (
	"tagsink/internal/model"
	"tagsink/internal/sinktree"
)

// Kind identifies what happened.
type Kind string

const (
	EntitiesCreated   Kind = "entities_created"
	TagsCreated       Kind = "tags_created"
	HashesInvalidated Kind = "hashes_invalidated"
	EntitiesDeleted   Kind = "entities_deleted"
	SinksChanged      Kind = "sinks_changed"
)

// Event is a single notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind        Kind              `json:"kind"`
	Entities    []*model.Entity   `json:"entities,omitempty"`
	Tags        []*model.Tag      `json:"tags,omitempty"`
	Hashes      []string          `json:"hashes,omitempty"`
	EntityIDs   []string          `json:"entity_ids,omitempty"`
	SinkChanges []sinktree.Change `json:"sink_changes,omitempty"`
}

// Publisher accepts events.
type Publisher interface {
	Publish(ev Event)
}

// Queue is a bounded outbound event queue with synchronous observers.
type Queue interface {
	Publisher

	// Drain removes and returns all queued events, oldest first.
	Drain() []Event

	// Len returns the number of queued events.
	Len() int

	// Dropped returns how many events were discarded because the queue was full.
	Dropped() int

	// Subscribe registers fn to be called for every published event.
	Subscribe(fn func(Event))

	// Hold postpones observer calls. Holds nest.
	Hold()

	// Release ends one Hold. The last Release runs the postponed observer
	// calls, in publish order, on the calling goroutine.
	Release()
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
