package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nsw_feed"

// Metrics holds the Prometheus counters, histograms, and gauges for the feed service.
type Metrics struct {
	// Feed polling metrics.
	FeedUpdates        *prometheus.CounterVec // labels: outcome={success,error}
	FeedUpdateDuration prometheus.Histogram
	FeedEntries        prometheus.Gauge
	FeaturesSkipped    prometheus.Counter
	EntriesCreated     prometheus.Counter
	EntriesUpdated     prometheus.Counter
	EntriesRemoved     prometheus.Counter
	ManagerRunning     prometheus.Gauge

	// Entity metrics.
	SignalsPublished      *prometheus.CounterVec // labels: kind={update,delete}
	EntitiesLive          prometheus.Gauge
	EntityRemovalsIgnored prometheus.Counter
	StaleRefreshes        prometheus.Counter
	StatePublishErrors    prometheus.Counter
	ManualRefreshes       *prometheus.CounterVec // labels: outcome={success,error,limited}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeedUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_updates_total",
			Help:      "Feed refreshes by outcome.",
		}, []string{"outcome"}),
		FeedUpdateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_update_duration_seconds",
			Help:      "Duration of a complete fetch-filter-diff cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FeedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_entries",
			Help:      "Entries in the current feed snapshot after filtering.",
		}),
		FeaturesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "Malformed feed features dropped during decoding.",
		}),
		EntriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_created_total",
			Help:      "External ids seen for the first time.",
		}),
		EntriesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_updated_total",
			Help:      "Existing external ids whose entry changed.",
		}),
		EntriesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_removed_total",
			Help:      "External ids that disappeared from the feed.",
		}),
		ManagerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "manager_running",
			Help:      "1 while the polling timer is scheduled, 0 otherwise.",
		}),
		SignalsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_published_total",
			Help:      "Entity signals published by kind.",
		}, []string{"kind"}),
		EntitiesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities_live",
			Help:      "Location event entities currently registered.",
		}),
		EntityRemovalsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_removals_ignored_total",
			Help:      "Removal requests for entities that were no longer registered.",
		}),
		StaleRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_refreshes_total",
			Help:      "Entity refreshes that found no feed entry and kept stale state.",
		}),
		StatePublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_publish_errors_total",
			Help:      "Entity state changes that could not be published.",
		}),
		ManualRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manual_refreshes_total",
			Help:      "Refreshes requested over HTTP by outcome.",
		}, []string{"outcome"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.FeedUpdates,
		m.FeedUpdateDuration,
		m.FeedEntries,
		m.FeaturesSkipped,
		m.EntriesCreated,
		m.EntriesUpdated,
		m.EntriesRemoved,
		m.ManagerRunning,
		m.SignalsPublished,
		m.EntitiesLive,
		m.EntityRemovalsIgnored,
		m.StaleRefreshes,
		m.StatePublishErrors,
		m.ManualRefreshes,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeedUpdates:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "feed_updates_total"}, []string{"outcome"}),
		FeedUpdateDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "feed_update_duration_seconds"}),
		FeedEntries:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "feed_entries"}),
		FeaturesSkipped:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "features_skipped_total"}),
		EntriesCreated:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "entries_created_total"}),
		EntriesUpdated:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "entries_updated_total"}),
		EntriesRemoved:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "entries_removed_total"}),
		ManagerRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "manager_running"}),
		SignalsPublished:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "signals_published_total"}, []string{"kind"}),
		EntitiesLive:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "entities_live"}),
		EntityRemovalsIgnored: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "entity_removals_ignored_total"}),
		StaleRefreshes:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "stale_refreshes_total"}),
		StatePublishErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "state_publish_errors_total"}),
		ManualRefreshes:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "manual_refreshes_total"}, []string{"outcome"}),
		GeocodeRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeAPIDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
	}
}
