package feed

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/nsw-incident-feed/internal/domain"
)

// Filter keeps the entries within RadiusKM of Home whose category is in
// Categories. An empty Categories list accepts every category.
type Filter struct {
	Home       domain.Coordinates
	RadiusKM   float64
	Categories []string
}

// Apply returns the accepted entries with their Distance set, in input order.
func (f Filter) Apply(entries []domain.FeedEntry) []domain.FeedEntry {
	home := orb.Point{f.Home.Lon, f.Home.Lat}
	out := make([]domain.FeedEntry, 0, len(entries))
	for _, e := range entries {
		e.Distance = geo.DistanceHaversine(home, orb.Point{e.Coordinates.Lon, e.Coordinates.Lat}) / 1000
		if e.Distance > f.RadiusKM {
			continue
		}
		if !f.acceptsCategory(e.Category) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f Filter) acceptsCategory(category string) bool {
	if len(f.Categories) == 0 {
		return true
	}
	for _, c := range f.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
