// Package feed fetches the NSW Transport hazard GeoJSON feed, filters it by
// distance and category, and diffs successive snapshots, reporting changes to
// an Observer.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

// Attribution is attached to every entry the client produces.
const Attribution = "Transport for NSW"

// maxBodyBytes caps the feed response size.
const maxBodyBytes = 16 << 20

// Client retrieves hazard features from the live traffic feed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a feed client rooted at baseURL, e.g.
// "https://www.livetraffic.com/traffic/hazards".
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch downloads <baseURL>/<hazard>.json and converts its features into
// entries. Features without an id or geometry are skipped.
func (c *Client) Fetch(ctx context.Context, hazard string) ([]domain.FeedEntry, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(hazard))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", hazard, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	entries := make([]domain.FeedEntry, 0, len(fc.Features))
	for i, f := range fc.Features {
		entry, ok := toEntry(f)
		if !ok {
			c.logger.Warn("skipping malformed feature", "index", i, "hazard", hazard)
			c.metrics.FeaturesSkipped.Inc()
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toEntry(f *geojson.Feature) (domain.FeedEntry, bool) {
	id := featureID(f)
	if id == "" || f.Geometry == nil {
		return domain.FeedEntry{}, false
	}

	var lat, lon float64
	if p, ok := f.Geometry.(orb.Point); ok {
		lon, lat = p[0], p[1]
	} else {
		c := f.Geometry.Bound().Center()
		lon, lat = c[0], c[1]
	}

	props := f.Properties
	road, council := firstRoad(props)
	description := props.MustString("description", "")
	if description == "" {
		description = props.MustString("displayName", "")
	}

	return domain.FeedEntry{
		ExternalID:      id,
		Title:           props.MustString("headline", ""),
		Category:        props.MustString("mainCategory", ""),
		SubCategory:     props.MustString("subCategoryA", ""),
		Type:            props.MustString("type", ""),
		FeatureType:     props.MustString("incidentKind", ""),
		PublicationDate: epochMillis(props, "created"),
		LastUpdated:     epochMillis(props, "lastUpdated"),
		Description:     description,
		AdviceA:         props.MustString("adviceA", ""),
		AdviceB:         props.MustString("adviceB", ""),
		AdviceOther:     props.MustString("adviceOther", ""),
		OtherAdvice:     props.MustString("otherAdvice", ""),
		Diversions:      props.MustString("diversions", ""),
		PublicTransport: props.MustString("publicTransport", ""),
		IsMajor:         props.MustBool("isMajor", false),
		IsEnded:         props.MustBool("ended", false),
		IsNew:           props.MustBool("isNewIncident", false),
		IsImpactNetwork: props.MustBool("isImpactNetwork", false),
		Coordinates:     domain.Coordinates{Lat: lat, Lon: lon},
		Road:            road,
		CouncilArea:     council,
		Duration:        props.MustString("duration", ""),
		Attribution:     Attribution,
	}, true
}

// featureID accepts both numeric and string ids, which the feed mixes.
func featureID(f *geojson.Feature) string {
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
	}
	if v, ok := f.Properties["id"]; ok {
		switch id := v.(type) {
		case string:
			return id
		case float64:
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	}
	return ""
}

func epochMillis(props geojson.Properties, key string) time.Time {
	ms := props.MustFloat64(key, 0)
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

func firstRoad(props geojson.Properties) (road, council string) {
	roads, ok := props["roads"].([]any)
	if !ok || len(roads) == 0 {
		return "", ""
	}
	first, ok := roads[0].(map[string]any)
	if !ok {
		return "", ""
	}
	road, _ = first["mainStreet"].(string)
	council, _ = first["suburb"].(string)
	return road, council
}
