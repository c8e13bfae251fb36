package domain

import (
	"slices"
	"strings"
)

// ValidHazards lists the hazard types the feed publishes.
var ValidHazards = []string{"alpine", "fire", "flood", "incident", "majorevent", "roadwork"}

// ValidHazardStates lists the accepted hazard states, case-folded. The empty
// state is accepted and produces a trailing dash in the key.
var ValidHazardStates = []string{"open", "closed", "", "none"}

const (
	DefaultHazard      = "Incident"
	DefaultHazardState = "Open"
	DefaultIcon        = "mdi:alarm-light"
)

// IsValidHazard reports whether hazard (any case) is a known hazard type.
func IsValidHazard(hazard string) bool {
	return slices.Contains(ValidHazards, strings.ToLower(hazard))
}

// IsValidHazardState reports whether state (any case) is a known hazard state.
func IsValidHazardState(state string) bool {
	return slices.Contains(ValidHazardStates, strings.ToLower(state))
}

// HazardKey derives the key passed to the feed: the lowercased hazard alone
// when the state folds to "none", otherwise "<hazard>-<state>" lowercased.
func HazardKey(hazard, state string) string {
	hazard = strings.ToLower(hazard)
	state = strings.ToLower(state)
	if state == "none" {
		return hazard
	}
	return hazard + "-" + state
}

// hazardDisplay pairs a key prefix with its frontend icon and picture.
type hazardDisplay struct {
	prefix  string
	icon    string
	picture string
}

// displays is checked in order; the first matching prefix wins.
var displays = []hazardDisplay{
	{prefix: "incident", icon: "mdi:alert", picture: "https://www.livetraffic.com/images/icons/hazard/traffic-incident.gif"},
	{prefix: "fire", icon: "mdi:fire", picture: "https://www.livetraffic.com/images/icons/hazard/weather-bush-fire.gif"},
	{prefix: "flood", icon: "mdi:home-flood", picture: "https://www.livetraffic.com/images/icons/hazard/weather-flood.gif"},
	{prefix: "alpine", icon: "mdi:snowflake-alert", picture: "https://www.livetraffic.com/images/icons/hazard/weather-snow-ice.gif"},
	{prefix: "major", icon: "mdi:party-popper", picture: "https://www.livetraffic.com/images/icons/hazard/major-event.gif"},
	{prefix: "roadwork", icon: "mdi:road-variant", picture: "https://www.livetraffic.com/images/icons/hazard/road-work-3.png"},
}

func lookupDisplay(hazardKey string) (hazardDisplay, bool) {
	key := strings.ToLower(hazardKey)
	for _, d := range displays {
		if strings.HasPrefix(key, d.prefix) {
			return d, true
		}
	}
	return hazardDisplay{}, false
}

// Icon returns the frontend icon for a hazard key, falling back to
// DefaultIcon when no prefix matches.
func Icon(hazardKey string) string {
	if d, ok := lookupDisplay(hazardKey); ok {
		return d.icon
	}
	return DefaultIcon
}

// Picture returns the hazard image URL for a hazard key, or "" when no
// prefix matches.
func Picture(hazardKey string) string {
	if d, ok := lookupDisplay(hazardKey); ok {
		return d.picture
	}
	return ""
}
