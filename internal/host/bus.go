package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Event is a host lifecycle event.
type Event string

const (
	EventStart Event = "host_start"
	EventStop  Event = "host_stop"
)

// Listener handles a lifecycle event.
type Listener func(ctx context.Context) error

// Bus delivers lifecycle events to one-shot listeners.
type Bus struct {
	mu        sync.Mutex
	listeners map[Event][]Listener
	fired     map[Event]bool
	logger    *slog.Logger
}

// NewBus creates a bus with no listeners.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		listeners: make(map[Event][]Listener),
		fired:     make(map[Event]bool),
		logger:    logger,
	}
}

// ListenOnce registers fn for the next firing of ev. The listener is
// discarded after it runs.
func (b *Bus) ListenOnce(ev Event, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[ev] = append(b.listeners[ev], fn)
}

// Fire runs and clears the listeners of ev in registration order. Every
// listener runs even if an earlier one fails; failures are joined.
func (b *Bus) Fire(ctx context.Context, ev Event) error {
	b.mu.Lock()
	listeners := b.listeners[ev]
	delete(b.listeners, ev)
	b.fired[ev] = true
	b.mu.Unlock()

	b.logger.Debug("lifecycle event fired", "event", ev, "listeners", len(listeners))

	var errs []error
	for i, fn := range listeners {
		if err := fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s listener %d: %w", ev, i, err))
		}
	}
	return errors.Join(errs...)
}

// Fired reports whether ev has been fired at least once.
func (b *Bus) Fired(ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fired[ev]
}
