// Package geolocation maps the hazard feed onto host entities: one
// LocationEvent per external id, refreshed and removed through per-id signals.
package geolocation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/nsw-incident-feed/internal/dispatch"
	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/feed"
	"github.com/couchcryptid/nsw-incident-feed/internal/host"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

// DefaultScanInterval is used when Options.ScanInterval is zero.
const DefaultScanInterval = 5 * time.Minute

// Registrar registers new entities with the host.
type Registrar interface {
	Add(entities []host.Entity, refreshFirst bool)
}

// Options configures an EntityManager.
type Options struct {
	Hazard       string
	Filter       feed.Filter
	ScanInterval time.Duration
	Geocoder     domain.Geocoder // optional
	Clock        clockwork.Clock // optional, defaults to real time
}

// EntityManager owns the feed manager and relays its callbacks to the host:
// new ids become LocationEvents, changed and vanished ids become signals.
type EntityManager struct {
	feed      *feed.Manager
	registrar Registrar
	loop      host.Poster
	hub       *dispatch.Hub
	hazard    string
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped chan struct{}
}

// NewEntityManager wires a feed manager around fetcher with the new
// EntityManager as its observer.
func NewEntityManager(
	fetcher feed.Fetcher,
	registrar Registrar,
	loop host.Poster,
	hub *dispatch.Hub,
	opts Options,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *EntityManager {
	interval := opts.ScanInterval
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	m := &EntityManager{
		registrar: registrar,
		loop:      loop,
		hub:       hub,
		hazard:    opts.Hazard,
		interval:  interval,
		clock:     clock,
		logger:    logger.With("hazard", opts.Hazard),
		metrics:   metrics,
	}
	m.feed = feed.NewManager(fetcher, m, feed.Options{
		Hazard:   opts.Hazard,
		Filter:   opts.Filter,
		Geocoder: opts.Geocoder,
	}, m.logger, metrics)
	return m
}

// Hazard returns the hazard key the manager was built with.
func (m *EntityManager) Hazard() string {
	return m.hazard
}

// Init starts polling: every scan interval the manager calls Update. The
// first update is not triggered here. Calling Init while already running
// logs a warning and does nothing.
func (m *EntityManager) Init(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh != nil {
		m.logger.Warn("entity manager already initialised")
		return
	}

	ticker := m.clock.NewTicker(m.interval)
	stopCh := make(chan struct{})
	stopped := make(chan struct{})
	m.stopCh, m.stopped = stopCh, stopped
	m.metrics.ManagerRunning.Set(1)
	m.logger.Info("entity manager started", "interval", m.interval)

	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.Chan():
				// Errors are already logged; the next tick is the retry.
				_ = m.Update(ctx)
			}
		}
	}()
}

// Update refreshes the feed. All created/updated/removed callbacks for this
// cycle have been invoked when it returns; their effects run later on the
// host loop.
func (m *EntityManager) Update(ctx context.Context) error {
	if err := m.feed.Update(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Error("feed update failed", "error", err)
		}
		return err
	}
	return nil
}

// Stop cancels the polling ticker and waits for an in-flight tick to finish.
// It is a no-op if the manager is not running.
func (m *EntityManager) Stop() {
	m.mu.Lock()
	stopCh, stopped := m.stopCh, m.stopped
	m.stopCh, m.stopped = nil, nil
	m.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-stopped
	m.metrics.ManagerRunning.Set(0)
	m.logger.Info("entity manager stopped")
}

// GetEntry returns the entry for externalID as of the last completed update.
func (m *EntityManager) GetEntry(externalID string) (domain.FeedEntry, bool) {
	return m.feed.Entry(externalID)
}

// CheckReadiness reports ready once a feed update has succeeded.
func (m *EntityManager) CheckReadiness(_ context.Context) error {
	if m.feed.LastUpdate().IsZero() {
		return errors.New("feed has not been updated yet")
	}
	return nil
}

// OnCreated registers a new LocationEvent and asks the host to refresh it
// straight away.
func (m *EntityManager) OnCreated(_ context.Context, externalID string) {
	m.registrar.Add([]host.Entity{NewLocationEvent(m, m.hub, externalID, m.logger, m.metrics)}, true)
}

// OnUpdated publishes an update signal for externalID.
func (m *EntityManager) OnUpdated(_ context.Context, externalID string) {
	m.signal(dispatch.Update, externalID)
}

// OnRemoved publishes a delete signal for externalID.
func (m *EntityManager) OnRemoved(_ context.Context, externalID string) {
	m.signal(dispatch.Delete, externalID)
}

func (m *EntityManager) signal(kind dispatch.Kind, externalID string) {
	m.loop.Post(func(_ context.Context) {
		n := m.hub.Publish(kind, externalID)
		m.metrics.SignalsPublished.WithLabelValues(kind.String()).Inc()
		m.logger.Debug("signal published", "kind", kind, "external_id", externalID, "subscribers", n)
	})
}
