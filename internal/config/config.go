package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
)

// Home coordinates used when HOME_LATITUDE/HOME_LONGITUDE are unset (Sydney CBD).
const (
	DefaultHomeLatitude  = -33.865143
	DefaultHomeLongitude = 151.209900
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HomeLatitude  float64
	HomeLongitude float64

	// Feed settings. Latitude/Longitude default to the home coordinates.
	Latitude     float64
	Longitude    float64
	RadiusKM     float64
	Categories   []string
	Hazards      string
	HazardsState string
	ScanInterval time.Duration
	FeedBaseURL  string
	FeedTimeout  time.Duration

	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	RefreshRateLimit int // manual refreshes per minute

	// Kafka state publisher configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// HazardKey returns the hazard key passed to the feed, e.g. "incident-open".
func (c *Config) HazardKey() string {
	return domain.HazardKey(c.Hazards, c.HazardsState)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	homeLat, err := parseFloat("HOME_LATITUDE", DefaultHomeLatitude)
	if err != nil {
		return nil, err
	}
	homeLon, err := parseFloat("HOME_LONGITUDE", DefaultHomeLongitude)
	if err != nil {
		return nil, err
	}
	lat, err := parseFloat("FEED_LATITUDE", homeLat)
	if err != nil {
		return nil, err
	}
	lon, err := parseFloat("FEED_LONGITUDE", homeLon)
	if err != nil {
		return nil, err
	}
	radius, err := parseFloat("FEED_RADIUS_KM", 20.0)
	if err != nil {
		return nil, err
	}

	scanInterval, err := parsePositiveDuration("SCAN_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	refreshLimit, err := parsePositiveInt("REFRESH_RATE_LIMIT", 6)
	if err != nil {
		return nil, err
	}

	// An explicitly empty state is meaningful ("<hazard>-"), so only fall
	// back to the default when the variable is absent.
	hazardsState, ok := os.LookupEnv("FEED_HAZARDS_STATE")
	if !ok {
		hazardsState = domain.DefaultHazardState
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HomeLatitude:     homeLat,
		HomeLongitude:    homeLon,
		Latitude:         lat,
		Longitude:        lon,
		RadiusKM:         radius,
		Categories:       parseList(os.Getenv("FEED_CATEGORIES")),
		Hazards:          sharedcfg.EnvOrDefault("FEED_HAZARDS", domain.DefaultHazard),
		HazardsState:     hazardsState,
		ScanInterval:     scanInterval,
		FeedBaseURL:      strings.TrimRight(sharedcfg.EnvOrDefault("FEED_BASE_URL", "https://www.livetraffic.com/traffic/hazards"), "/"),
		FeedTimeout:      feedTimeout,
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		RefreshRateLimit: refreshLimit,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "nsw-incident-entities"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return errors.New("FEED_LATITUDE must be within [-90, 90]")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return errors.New("FEED_LONGITUDE must be within [-180, 180]")
	}
	if c.RadiusKM <= 0 {
		return errors.New("FEED_RADIUS_KM must be positive")
	}
	if !domain.IsValidHazard(c.Hazards) {
		return fmt.Errorf("FEED_HAZARDS must be one of %s, got %q", strings.Join(domain.ValidHazards, ", "), c.Hazards)
	}
	if !domain.IsValidHazardState(c.HazardsState) {
		return fmt.Errorf("FEED_HAZARDS_STATE must be one of open, closed, none or empty, got %q", c.HazardsState)
	}
	if c.FeedBaseURL == "" {
		return errors.New("FEED_BASE_URL is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, n)
	}
	return n, nil
}

// parseList splits a comma-separated list, trimming blanks and dropping empties.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
