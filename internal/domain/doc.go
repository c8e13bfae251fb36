// Package domain models Transport for NSW live traffic hazard data.
//
// # Data Source
//
// Hazards are published by Transport for NSW as GeoJSON feature collections,
// one collection per hazard type and (optionally) state:
//
//	https://www.livetraffic.com/traffic/hazards/incident-open.json
//	https://www.livetraffic.com/traffic/hazards/roadwork.json
//
// Each feature carries a stable numeric id, a point geometry, and a flat set
// of properties describing the hazard. The feed is polled, not pushed, so
// creations, changes and removals are derived by diffing consecutive
// snapshots (see package feed).
//
// # Hazard Keys
//
// A hazard key selects the feed and drives display lookups. It is built from
// a hazard type and a hazard state:
//
//	hazard="Incident", state="Open"  →  "incident-open"
//	hazard="Fire",     state="None"  →  "fire"
//
// The state "none" (any case) drops the suffix. See [HazardKey].
//
// Icons and pictures are resolved by case-insensitive prefix match against
// the key, so "incident-open" and "incident-closed" share an icon. Unknown
// keys fall back to a generic alarm icon and no picture.
//
// # Markup
//
// Advice and diversion texts frequently embed HTML fragments ("<br>",
// "<strong>"). [StripMarkup] removes every "<...>" run. Structured fields and
// the description are left untouched.
//
// # Attributes
//
// Entities expose a flat attribute map for display. Only truthy values and
// booleans are kept: empty strings, zero times and nil are omitted, while
// false booleans stay. See [BuildAttributes].
package domain
