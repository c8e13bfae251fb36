package geolocation

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nsw-incident-feed/internal/dispatch"
	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

type fakeSource struct {
	hazard  string
	entries map[string]domain.FeedEntry
}

func (s *fakeSource) GetEntry(id string) (domain.FeedEntry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

func (s *fakeSource) Hazard() string { return s.hazard }

// fakeHandle records host requests along with the hub subscriber counts seen
// at the moment of each request.
type fakeHandle struct {
	hub          *dispatch.Hub
	id           string
	refreshes    int
	removes      int
	subsAtRemove int
}

func (h *fakeHandle) ScheduleRefresh() { h.refreshes++ }

func (h *fakeHandle) Remove() {
	h.removes++
	h.subsAtRemove = h.hub.Subscribers(dispatch.Update, h.id) + h.hub.Subscribers(dispatch.Delete, h.id)
}

func fullEntry() domain.FeedEntry {
	return domain.FeedEntry{
		ExternalID:      "42",
		Title:           "CRASH Parramatta Rd",
		Category:        "Crash",
		SubCategory:     "Truck",
		Type:            "Incident",
		PublicationDate: time.Date(2025, time.October, 14, 0, 0, 0, 0, time.UTC),
		Description:     "Lanes <b>closed</b>",
		AdviceA:         "<p>Slow down</p>",
		AdviceB:         "<a href=\"x\">Follow directions</a>",
		AdviceOther:     "Avoid <i>the area</i>",
		OtherAdvice:     "<br>Expect delays",
		Diversions:      "<ul><li>Use M4</li></ul>",
		PublicTransport: "Trains unaffected",
		IsMajor:         true,
		Coordinates:     domain.Coordinates{Lat: -33.88, Lon: 151.15},
		Distance:        5.5,
		Road:            "Parramatta Rd",
		CouncilArea:     "Burwood",
		Duration:        "1 hour",
		Attribution:     "Transport for NSW",
		PlaceName:       "Burwood",
	}
}

func newTestEvent(hazard string, entries ...domain.FeedEntry) (*LocationEvent, *dispatch.Hub, *fakeHandle, *observability.Metrics) {
	src := &fakeSource{hazard: hazard, entries: map[string]domain.FeedEntry{}}
	for _, e := range entries {
		src.entries[e.ExternalID] = e
	}
	hub := dispatch.NewHub()
	metrics := observability.NewMetricsForTesting()
	ev := NewLocationEvent(src, hub, "42", discardLogger(), metrics)
	h := &fakeHandle{hub: hub, id: "42"}
	ev.Attach(h)
	return ev, hub, h, metrics
}

func TestLocationEvent_RefreshFlattensEntry(t *testing.T) {
	ev, _, _, _ := newTestEvent("incident-open", fullEntry())
	ev.Refresh(context.Background())

	want := map[string]any{
		domain.AttrTitle:           "CRASH Parramatta Rd",
		domain.AttrFeatureType:     "incident-open",
		domain.AttrType:            "Incident",
		domain.AttrSubCategory:     "Truck",
		domain.AttrRoad:            "Parramatta Rd",
		domain.AttrCouncil:         "Burwood",
		domain.AttrCategory:        "Crash",
		domain.AttrDescription:     "Lanes <b>closed</b>",
		domain.AttrPublicationDate: time.Date(2025, time.October, 14, 0, 0, 0, 0, time.UTC),
		domain.AttrAdviceA:         "<p>Slow down</p>",
		domain.AttrAdviceB:         "<a href=\"x\">Follow directions</a>",
		domain.AttrDiversions:      "Use M4",
		domain.AttrPublicTransport: "Trains unaffected",
		domain.AttrAdviceOther:     "Avoid the area",
		domain.AttrOtherAdvice:     "Expect delays",
		domain.AttrIsMajor:         true,
		domain.AttrIsEnded:         false,
		domain.AttrIsNew:           false,
		domain.AttrIsImpactNetwork: false,
		domain.AttrDuration:        "1 hour",
		domain.AttrExternalID:      "42",
		domain.AttrAttribution:     "Transport for NSW",
		domain.AttrPicture:         "https://www.livetraffic.com/images/icons/hazard/traffic-incident.gif",
		domain.AttrLocation:        "Burwood",
	}
	if diff := cmp.Diff(want, ev.Attributes()); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}

	st := ev.State()
	assert.Equal(t, "42", st.EntityID)
	assert.Equal(t, "CRASH Parramatta Rd", st.Name)
	assert.InDelta(t, 5.5, st.Distance, 0)
	assert.InDelta(t, -33.88, st.Latitude, 0)
	assert.InDelta(t, 151.15, st.Longitude, 0)
	assert.Equal(t, "km", st.Unit)
	assert.Equal(t, "mdi:alert", st.Icon)
	assert.Equal(t, Source, st.Source)
}

func TestLocationEvent_AttributesBeforeRefresh(t *testing.T) {
	ev, _, _, _ := newTestEvent("fire", fullEntry())

	attrs := ev.Attributes()
	assert.Equal(t, map[string]any{
		domain.AttrFeatureType: "fire",
		domain.AttrExternalID:  "42",
		domain.AttrPicture:     "https://www.livetraffic.com/images/icons/hazard/weather-bush-fire.gif",
	}, attrs)
	assert.Equal(t, "mdi:fire", ev.State().Icon)
}

func TestLocationEvent_UnknownHazardHasNoPicture(t *testing.T) {
	ev, _, _, _ := newTestEvent("unknown-open", fullEntry())
	ev.Refresh(context.Background())

	assert.NotContains(t, ev.Attributes(), domain.AttrPicture)
	assert.Equal(t, domain.DefaultIcon, ev.State().Icon)
}

func TestLocationEvent_MissingEntryKeepsStaleState(t *testing.T) {
	ev, _, _, metrics := newTestEvent("incident-open", fullEntry())
	require.True(t, ev.Refresh(context.Background()))
	before := ev.State()

	src := ev.source.(*fakeSource)
	delete(src.entries, "42")
	assert.False(t, ev.Refresh(context.Background()))

	assert.Equal(t, before, ev.State())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StaleRefreshes), 0)
}

func TestLocationEvent_UpdateSignalSchedulesRefresh(t *testing.T) {
	_, hub, h, _ := newTestEvent("incident-open", fullEntry())

	assert.Equal(t, 1, hub.Publish(dispatch.Update, "42"))
	assert.Equal(t, 1, h.refreshes)

	// Signals for other ids never reach this entity.
	assert.Zero(t, hub.Publish(dispatch.Update, "43"))
	assert.Equal(t, 1, h.refreshes)
}

func TestLocationEvent_DeleteUnsubscribesBeforeRemove(t *testing.T) {
	_, hub, h, _ := newTestEvent("incident-open", fullEntry())

	hub.Publish(dispatch.Delete, "42")

	assert.Equal(t, 1, h.removes)
	assert.Zero(t, h.subsAtRemove)
	assert.Zero(t, hub.Publish(dispatch.Update, "42"))
	assert.Zero(t, hub.Publish(dispatch.Delete, "42"))
	assert.Zero(t, h.refreshes)
}

func TestLocationEvent_RefreshAfterDeleteIgnored(t *testing.T) {
	ev, hub, _, metrics := newTestEvent("incident-open", fullEntry())
	hub.Publish(dispatch.Delete, "42")

	assert.False(t, ev.Refresh(context.Background()))
	assert.Empty(t, ev.State().Name)
	assert.Zero(t, testutil.ToFloat64(metrics.StaleRefreshes))
}

func TestLocationEvent_DetachIdempotent(t *testing.T) {
	ev, hub, _, _ := newTestEvent("incident-open", fullEntry())
	ev.Detach()
	ev.Detach()
	assert.Zero(t, hub.Subscribers(dispatch.Update, "42"))
	assert.Zero(t, hub.Subscribers(dispatch.Delete, "42"))
}

func TestLocationEvent_UniqueIDDeterministic(t *testing.T) {
	a, _, _, _ := newTestEvent("incident-open")
	b, _, _, _ := newTestEvent("fire")

	assert.Equal(t, a.State().UniqueID, b.State().UniqueID)
	_, err := uuid.Parse(a.State().UniqueID)
	require.NoError(t, err)
}
