package domain

import "time"

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FeedEntry is one hazard record as published by the feed. Entries are
// produced by the feed adapter and treated as read-only everywhere else.
type FeedEntry struct {
	ExternalID      string      `json:"external_id"`
	Title           string      `json:"title"`
	Category        string      `json:"category"`
	SubCategory     string      `json:"sub_category,omitempty"`
	Type            string      `json:"type,omitempty"`
	FeatureType     string      `json:"feature_type,omitempty"`
	PublicationDate time.Time   `json:"publication_date"`
	LastUpdated     time.Time   `json:"last_updated"`
	Description     string      `json:"description,omitempty"`
	AdviceA         string      `json:"advice_a,omitempty"`
	AdviceB         string      `json:"advice_b,omitempty"`
	AdviceOther     string      `json:"advice_other,omitempty"`
	OtherAdvice     string      `json:"other_advice,omitempty"`
	Diversions      string      `json:"diversions,omitempty"`
	PublicTransport string      `json:"public_transport,omitempty"`
	IsMajor         bool        `json:"is_major"`
	IsEnded         bool        `json:"is_ended"`
	IsNew           bool        `json:"is_new"`
	IsImpactNetwork bool        `json:"is_impact_network"`
	Coordinates     Coordinates `json:"coordinates"`
	Distance        float64     `json:"distance_km"` // to the configured reference point
	Road            string      `json:"road,omitempty"`
	CouncilArea     string      `json:"council_area,omitempty"`
	Duration        string      `json:"duration,omitempty"`
	Attribution     string      `json:"attribution,omitempty"`

	// PlaceName is filled by reverse geocoding when enabled.
	PlaceName string `json:"place_name,omitempty"`
}

// Equal reports whether two entries carry the same data. Times are compared
// by instant rather than by representation.
func (e FeedEntry) Equal(o FeedEntry) bool {
	if !e.PublicationDate.Equal(o.PublicationDate) || !e.LastUpdated.Equal(o.LastUpdated) {
		return false
	}
	e.PublicationDate, e.LastUpdated = time.Time{}, time.Time{}
	o.PublicationDate, o.LastUpdated = time.Time{}, time.Time{}
	return e == o
}
