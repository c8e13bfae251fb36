// Package dispatch is an in-process publish/subscribe hub with one topic per
// (signal kind, external id) pair.
package dispatch

import (
	"sort"
	"sync"
)

// Kind identifies the signal carried on a topic.
type Kind int

const (
	Update Kind = iota
	Delete
)

func (k Kind) String() string {
	switch k {
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

type topic struct {
	kind       Kind
	externalID string
}

// Hub maps topics to their subscriber callbacks. Publishing reaches only the
// subscribers of the addressed topic.
type Hub struct {
	mu     sync.Mutex
	topics map[topic]map[uint64]func()
	nextID uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[topic]map[uint64]func())}
}

// Subscribe registers fn for the given topic and returns a function that
// removes the subscription. Calling the returned function more than once is
// a no-op.
func (h *Hub) Subscribe(kind Kind, externalID string, fn func()) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := topic{kind: kind, externalID: externalID}
	subs, ok := h.topics[t]
	if !ok {
		subs = make(map[uint64]func())
		h.topics[t] = subs
	}
	h.nextID++
	id := h.nextID
	subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(t, id) })
	}
}

func (h *Hub) unsubscribe(t topic, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[t]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.topics, t)
	}
}

// Publish invokes every subscriber of the topic in subscription order and
// returns how many were reached. Subscribers run outside the hub lock, so
// they may unsubscribe themselves.
func (h *Hub) Publish(kind Kind, externalID string) int {
	h.mu.Lock()
	subs := h.topics[topic{kind: kind, externalID: externalID}]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, subs[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Subscribers returns the number of live subscriptions on a topic.
func (h *Hub) Subscribers(kind Kind, externalID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic{kind: kind, externalID: externalID}])
}
