// Package search filters and autocompletes the in-memory site catalog.
// Every function returns a fresh slice and preserves catalog order.
package search

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"backend-cragmap/internal/catalog"
	"backend-cragmap/internal/shared/geo"
)

const DefaultSuggestLimit = 5

// Viewports used when focusing the map.
const (
	SiteFocusSpan   = 0.12
	RegionFocusSpan = 1.0
)

// DefaultRegion is the whole-island view shown when no region is selected.
var DefaultRegion = geo.Region{Latitude: 53.1424, Longitude: -7.6921, LatitudeDelta: 4, LongitudeDelta: 4}

// Criteria are ANDed together. Empty fields (and catalog.All) do not filter.
type Criteria struct {
	Region     string   `json:"region,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Text       string   `json:"text,omitempty"`
}

func Filter(sites []catalog.Site, c Criteria) []catalog.Site {
	q := strings.ToLower(strings.TrimSpace(c.Text))
	out := []catalog.Site{}
	for _, s := range sites {
		if c.Region != "" && c.Region != catalog.All && s.Region != c.Region {
			continue
		}
		if !hasAllCategories(s, c.Categories) {
			continue
		}
		if c.Difficulty != "" && c.Difficulty != catalog.All && !hasDifficulty(s, c.Difficulty) {
			continue
		}
		if q != "" && !matchesText(s, q) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func hasAllCategories(s catalog.Site, want []string) bool {
	for _, c := range want {
		if !s.HasCategory(c) {
			return false
		}
	}
	return true
}

func hasDifficulty(s catalog.Site, d string) bool {
	for _, r := range s.Routes {
		if r.Difficulty == d {
			return true
		}
	}
	return false
}

func matchesText(s catalog.Site, q string) bool {
	if strings.Contains(strings.ToLower(s.Region), q) ||
		strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.ClusterLabel), q) {
		return true
	}
	for _, r := range s.Routes {
		if strings.Contains(strings.ToLower(r.Name), q) {
			return true
		}
	}
	return false
}

// Suggest returns the first limit sites (in catalog order) whose name or
// region contains query. Sites without coordinates are never suggested.
func Suggest(sites []catalog.Site, query string, limit int) []catalog.Site {
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []catalog.Site{}
	if q == "" {
		return out
	}
	for _, s := range sites {
		if !s.HasCoordinates() {
			continue
		}
		if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Region), q) {
			out = append(out, s)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// BoundingRegion fits all coordinate-bearing sites into one viewport.
func BoundingRegion(sites []catalog.Site) *geo.Region {
	var points []geo.Point
	for _, s := range sites {
		if s.HasCoordinates() {
			points = append(points, *s.Coordinates)
		}
	}
	return geo.Bounding(points)
}

// FocusSite is the close-up viewport for one selected site.
func FocusSite(s catalog.Site) *geo.Region {
	if !s.HasCoordinates() {
		return nil
	}
	r := geo.Around(*s.Coordinates, SiteFocusSpan)
	return &r
}

// FocusRegion centers on the first mapped site of a region. The All
// sentinel resets to DefaultRegion.
func FocusRegion(sites []catalog.Site, region string) *geo.Region {
	if region == "" || region == catalog.All {
		r := DefaultRegion
		return &r
	}
	want := strings.TrimSpace(strings.TrimPrefix(region, "Co. "))
	for _, s := range sites {
		if !s.HasCoordinates() {
			continue
		}
		if strings.TrimSpace(strings.TrimPrefix(s.Region, "Co. ")) == want {
			r := geo.Around(*s.Coordinates, RegionFocusSpan)
			return &r
		}
	}
	return nil
}

type NearbySite struct {
	catalog.Site
	DistanceKm float64 `json:"distance_km"`
}

// Nearby scans linearly for sites within radiusKm, closest first.
func Nearby(sites []catalog.Site, lat, lng, radiusKm float64) []NearbySite {
	out := []NearbySite{}
	for _, s := range sites {
		if !s.HasCoordinates() {
			continue
		}
		d := geo.HaversineKm(lat, lng, s.Coordinates.Latitude, s.Coordinates.Longitude)
		if d <= radiusKm {
			out = append(out, NearbySite{Site: s, DistanceKm: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})
	return out
}

// MapURL links a site to an external map app.
func MapURL(s catalog.Site) string {
	if !s.HasCoordinates() {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s",
		url.QueryEscape(fmt.Sprintf("%g,%g", s.Coordinates.Latitude, s.Coordinates.Longitude)))
}
