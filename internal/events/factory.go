package events

import (
	"fmt"

	"tagsink/internal/config"
)

// NewQueueFromConfig creates a Queue based on the events config type.
func NewQueueFromConfig(cfg config.EventsConfig) (Queue, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryQueue(cfg.MaxQueued), nil
	case "observe":
		// Observers still run; nothing is retained for draining.
		return &observeOnlyQueue{MemoryQueue: NewMemoryQueue(1)}, nil
	default:
		return nil, fmt.Errorf("unknown events type: %s", cfg.Type)
	}
}

type observeOnlyQueue struct {
	*MemoryQueue
}

func (q *observeOnlyQueue) Publish(ev Event) {
	q.MemoryQueue.Publish(ev)
	q.MemoryQueue.Drain()
}
