package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

// Observer is told which external ids appeared, changed or disappeared after
// each successful update.
type Observer interface {
	OnCreated(ctx context.Context, externalID string)
	OnUpdated(ctx context.Context, externalID string)
	OnRemoved(ctx context.Context, externalID string)
}

// Fetcher retrieves the raw entries for a hazard key.
type Fetcher interface {
	Fetch(ctx context.Context, hazard string) ([]domain.FeedEntry, error)
}

// Options configures a Manager.
type Options struct {
	Hazard string
	Filter Filter
	// Geocoder is optional. When set, each new or moved entry gets a place name.
	Geocoder domain.Geocoder
}

// Manager keeps the current filtered snapshot of the feed.
type Manager struct {
	fetcher  Fetcher
	observer Observer
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	updateMu sync.Mutex // serialises Update

	mu         sync.RWMutex
	entries    map[string]domain.FeedEntry
	lastUpdate time.Time
}

// NewManager creates a manager with an empty snapshot.
func NewManager(fetcher Fetcher, observer Observer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		fetcher:  fetcher,
		observer: observer,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		entries:  make(map[string]domain.FeedEntry),
	}
}

// Hazard returns the hazard key the manager polls.
func (m *Manager) Hazard() string {
	return m.opts.Hazard
}

// Update fetches the feed, replaces the snapshot and notifies the observer.
// Removals are reported first, then updates, then creations. On error the
// snapshot is left untouched and no callbacks fire.
func (m *Manager) Update(ctx context.Context) error {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	start := time.Now()
	defer func() { m.metrics.FeedUpdateDuration.Observe(time.Since(start).Seconds()) }()

	raw, err := m.fetcher.Fetch(ctx, m.opts.Hazard)
	if err != nil {
		m.metrics.FeedUpdates.WithLabelValues("error").Inc()
		return fmt.Errorf("update feed: %w", err)
	}
	filtered := m.opts.Filter.Apply(raw)

	m.mu.RLock()
	previous := m.entries
	m.mu.RUnlock()

	next := make(map[string]domain.FeedEntry, len(filtered))
	for _, e := range filtered {
		if _, dup := next[e.ExternalID]; dup {
			m.logger.Warn("duplicate external id in feed", "external_id", e.ExternalID)
			continue
		}
		next[e.ExternalID] = m.enrich(ctx, e, previous)
	}

	var created, updated, removed []string
	for id, e := range next {
		old, ok := previous[id]
		switch {
		case !ok:
			created = append(created, id)
		case !old.Equal(e):
			updated = append(updated, id)
		}
	}
	for id := range previous {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(created)
	sort.Strings(updated)
	sort.Strings(removed)

	m.mu.Lock()
	m.entries = next
	m.lastUpdate = domain.Now()
	m.mu.Unlock()

	m.metrics.FeedUpdates.WithLabelValues("success").Inc()
	m.metrics.FeedEntries.Set(float64(len(next)))
	m.metrics.EntriesCreated.Add(float64(len(created)))
	m.metrics.EntriesUpdated.Add(float64(len(updated)))
	m.metrics.EntriesRemoved.Add(float64(len(removed)))

	m.logger.Info("feed updated",
		"hazard", m.opts.Hazard,
		"fetched", len(raw),
		"entries", len(next),
		"created", len(created),
		"updated", len(updated),
		"removed", len(removed),
	)

	for _, id := range removed {
		m.observer.OnRemoved(ctx, id)
	}
	for _, id := range updated {
		m.observer.OnUpdated(ctx, id)
	}
	for _, id := range created {
		m.observer.OnCreated(ctx, id)
	}
	return nil
}

// enrich fills PlaceName. The previous place name is reused while the entry
// has not moved.
func (m *Manager) enrich(ctx context.Context, e domain.FeedEntry, previous map[string]domain.FeedEntry) domain.FeedEntry {
	if m.opts.Geocoder == nil {
		return e
	}
	if old, ok := previous[e.ExternalID]; ok && old.Coordinates == e.Coordinates && old.PlaceName != "" {
		e.PlaceName = old.PlaceName
		return e
	}
	result, err := m.opts.Geocoder.ReverseGeocode(ctx, e.Coordinates.Lat, e.Coordinates.Lon)
	if err != nil {
		m.logger.Warn("reverse geocode failed", "external_id", e.ExternalID, "error", err)
		return e
	}
	e.PlaceName = result.PlaceName
	return e
}

// Entry returns the current entry for externalID.
func (m *Manager) Entry(externalID string) (domain.FeedEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[externalID]
	return e, ok
}

// Entries returns the current snapshot sorted by external id.
func (m *Manager) Entries() []domain.FeedEntry {
	m.mu.RLock()
	out := make([]domain.FeedEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out
}

// LastUpdate returns the time of the last successful update, or the zero
// time if none has completed.
func (m *Manager) LastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}
