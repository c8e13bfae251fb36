package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", "incident-open.json"))
	require.NoError(t, err)
	return data
}

func TestClient_Fetch(t *testing.T) {
	fixture := loadFixture(t)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	c := NewClient(srv.URL+"/hazards", 5*time.Second, discardLogger(), metrics)

	entries, err := c.Fetch(context.Background(), "incident-open")
	require.NoError(t, err)
	assert.Equal(t, "/hazards/incident-open.json", gotPath)

	// The feature without geometry is dropped.
	require.Len(t, entries, 3)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FeaturesSkipped), 0)

	sydney := entries[0]
	assert.Equal(t, "1234567", sydney.ExternalID)
	assert.Equal(t, "CRASH George St Sydney", sydney.Title)
	assert.Equal(t, "Crash", sydney.Category)
	assert.Equal(t, "Multi-vehicle", sydney.SubCategory)
	assert.Equal(t, "Incident", sydney.Type)
	assert.Equal(t, "Unplanned", sydney.FeatureType)
	assert.Equal(t, time.Date(2025, time.October, 14, 0, 0, 0, 0, time.UTC), sydney.PublicationDate)
	assert.Equal(t, time.Date(2025, time.October, 14, 1, 0, 0, 0, time.UTC), sydney.LastUpdated)
	assert.Equal(t, "Two vehicles involved near Market St.", sydney.Description)
	assert.Equal(t, "Exercise caution", sydney.AdviceA)
	assert.True(t, sydney.IsNew)
	assert.True(t, sydney.IsImpactNetwork)
	assert.False(t, sydney.IsMajor)
	assert.InDelta(t, -33.8688, sydney.Coordinates.Lat, 1e-9)
	assert.InDelta(t, 151.207, sydney.Coordinates.Lon, 1e-9)
	assert.Equal(t, "George St", sydney.Road)
	assert.Equal(t, "Sydney", sydney.CouncilArea)
	assert.Equal(t, Attribution, sydney.Attribution)

	ryde := entries[1]
	assert.Equal(t, "2345678", ryde.ExternalID)
	// Description falls back to the display name; markup is kept verbatim here.
	assert.Equal(t, "Breakdown", ryde.Description)
	assert.Equal(t, "<ul><li>Via Church St</li></ul>", ryde.Diversions)
	assert.Equal(t, "<br/>Check <b>signage</b>", ryde.OtherAdvice)
	assert.Equal(t, "Use <i>alternative</i> routes", ryde.AdviceOther)
	assert.Equal(t, "Buses delayed", ryde.PublicTransport)
	assert.Equal(t, "2 hours", ryde.Duration)
	assert.True(t, ryde.IsMajor)
}

func TestClient_Fetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger(), observability.NewMetricsForTesting())
	_, err := c.Fetch(context.Background(), "fire")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger(), observability.NewMetricsForTesting())
	_, err := c.Fetch(context.Background(), "fire")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode feed")
}

func TestClient_Fetch_PolygonUsesBoundCenter(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[{"type":"Feature","id":"poly-1",
		"geometry":{"type":"Polygon","coordinates":[[[151.0,-34.0],[151.2,-34.0],[151.2,-33.8],[151.0,-33.8],[151.0,-34.0]]]},
		"properties":{"headline":"Flooding","mainCategory":"Flood"}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, discardLogger(), observability.NewMetricsForTesting())
	entries, err := c.Fetch(context.Background(), "flood-open")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "poly-1", entries[0].ExternalID)
	assert.InDelta(t, -33.9, entries[0].Coordinates.Lat, 1e-9)
	assert.InDelta(t, 151.1, entries[0].Coordinates.Lon, 1e-9)
	assert.True(t, entries[0].PublicationDate.IsZero())
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, time.Second, discardLogger(), observability.NewMetricsForTesting())
	_, err := c.Fetch(ctx, "incident-open")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
