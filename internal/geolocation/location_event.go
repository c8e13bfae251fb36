package geolocation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/couchcryptid/nsw-incident-feed/internal/dispatch"
	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
	"github.com/couchcryptid/nsw-incident-feed/internal/host"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

const (
	// Source identifies entities created by this integration.
	Source = "nsw_transport_incident_service_feed"
	// Unit is the unit of the entity state (distance).
	Unit = "km"
)

// EntrySource looks up feed entries by external id.
type EntrySource interface {
	GetEntry(externalID string) (domain.FeedEntry, bool)
	Hazard() string
}

// LocationEvent mirrors a single feed entry. All methods run on the host
// loop, so its fields need no locking.
type LocationEvent struct {
	source     EntrySource
	hub        *dispatch.Hub
	externalID string
	uniqueID   string
	hazard     string
	icon       string
	picture    string
	logger     *slog.Logger
	metrics    *observability.Metrics

	handle  host.Handle
	unsubs  []func()
	removed bool

	// Flattened from the latest entry; other advice and diversions have markup
	// stripped.
	refreshed bool
	entry     domain.FeedEntry
}

// NewLocationEvent creates the entity for externalID. It does nothing until
// attached to the host.
func NewLocationEvent(source EntrySource, hub *dispatch.Hub, externalID string, logger *slog.Logger, metrics *observability.Metrics) *LocationEvent {
	hazard := source.Hazard()
	return &LocationEvent{
		source:     source,
		hub:        hub,
		externalID: externalID,
		uniqueID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(Source+":"+externalID)).String(),
		hazard:     hazard,
		icon:       domain.Icon(hazard),
		picture:    domain.Picture(hazard),
		logger:     logger.With("external_id", externalID),
		metrics:    metrics,
		entry:      domain.FeedEntry{ExternalID: externalID},
	}
}

// ID returns the external id, which is also the host entity id.
func (e *LocationEvent) ID() string { return e.externalID }

// Attach subscribes to the entity's update and delete topics.
func (e *LocationEvent) Attach(h host.Handle) {
	e.handle = h
	e.unsubs = append(e.unsubs,
		e.hub.Subscribe(dispatch.Update, e.externalID, e.onUpdate),
		e.hub.Subscribe(dispatch.Delete, e.externalID, e.onDelete),
	)
}

// Detach drops both subscriptions. Safe to call more than once.
func (e *LocationEvent) Detach() {
	for _, unsub := range e.unsubs {
		unsub()
	}
	e.unsubs = nil
}

func (e *LocationEvent) onUpdate() {
	if e.removed || e.handle == nil {
		return
	}
	e.handle.ScheduleRefresh()
}

// onDelete unsubscribes before asking the host for removal, so no further
// signal can reach the entity.
func (e *LocationEvent) onDelete() {
	if e.removed {
		return
	}
	e.removed = true
	e.Detach()
	if e.handle != nil {
		e.handle.Remove()
	}
}

// Refresh copies the latest entry and reports whether it did. If the entry
// has vanished since the signal was sent, the previous state is kept.
func (e *LocationEvent) Refresh(_ context.Context) bool {
	if e.removed {
		return false
	}
	entry, ok := e.source.GetEntry(e.externalID)
	if !ok {
		e.logger.Debug("entry not found on refresh, keeping previous state")
		e.metrics.StaleRefreshes.Inc()
		return false
	}

	entry.AdviceOther = domain.StripMarkup(entry.AdviceOther)
	entry.OtherAdvice = domain.StripMarkup(entry.OtherAdvice)
	entry.Diversions = domain.StripMarkup(entry.Diversions)

	e.entry = entry
	e.refreshed = true
	return true
}

// State returns the host-facing view of the entity.
func (e *LocationEvent) State() host.State {
	return host.State{
		EntityID:   e.externalID,
		UniqueID:   e.uniqueID,
		Source:     Source,
		Name:       e.entry.Title,
		Distance:   e.entry.Distance,
		Latitude:   e.entry.Coordinates.Lat,
		Longitude:  e.entry.Coordinates.Lon,
		Unit:       Unit,
		Icon:       e.icon,
		Attributes: e.Attributes(),
	}
}

// Attributes returns the display attributes. Empty values are left out;
// boolean flags are always present once the entity has been refreshed.
func (e *LocationEvent) Attributes() map[string]any {
	en := e.entry
	var isMajor, isEnded, isNew, isImpact *bool
	if e.refreshed {
		isMajor, isEnded, isNew, isImpact = &en.IsMajor, &en.IsEnded, &en.IsNew, &en.IsImpactNetwork
	}

	attrs := domain.BuildAttributes([]domain.Attribute{
		{Key: domain.AttrTitle, Value: en.Title},
		{Key: domain.AttrFeatureType, Value: e.hazard},
		{Key: domain.AttrType, Value: en.Type},
		{Key: domain.AttrSubCategory, Value: en.SubCategory},
		{Key: domain.AttrRoad, Value: en.Road},
		{Key: domain.AttrCouncil, Value: en.CouncilArea},
		{Key: domain.AttrCategory, Value: en.Category},
		{Key: domain.AttrDescription, Value: en.Description},
		{Key: domain.AttrPublicationDate, Value: en.PublicationDate},
		{Key: domain.AttrAdviceA, Value: en.AdviceA},
		{Key: domain.AttrAdviceB, Value: en.AdviceB},
		{Key: domain.AttrDiversions, Value: en.Diversions},
		{Key: domain.AttrPublicTransport, Value: en.PublicTransport},
		{Key: domain.AttrAdviceOther, Value: en.AdviceOther},
		{Key: domain.AttrOtherAdvice, Value: en.OtherAdvice},
		{Key: domain.AttrIsMajor, Value: isMajor},
		{Key: domain.AttrIsEnded, Value: isEnded},
		{Key: domain.AttrIsNew, Value: isNew},
		{Key: domain.AttrIsImpactNetwork, Value: isImpact},
		{Key: domain.AttrDuration, Value: en.Duration},
		{Key: domain.AttrExternalID, Value: e.externalID},
		{Key: domain.AttrAttribution, Value: en.Attribution},
		{Key: domain.AttrPicture, Value: e.picture},
		{Key: domain.AttrLocation, Value: en.PlaceName},
	})

	// Pointers only gate presence; expose plain values.
	for _, k := range []string{domain.AttrIsMajor, domain.AttrIsEnded, domain.AttrIsNew, domain.AttrIsImpactNetwork} {
		if p, ok := attrs[k].(*bool); ok {
			attrs[k] = *p
		}
	}
	return attrs
}
