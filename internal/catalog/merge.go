package catalog

// MergeStats counts what an append-only refresh added.
type MergeStats struct {
	NewSites  int `json:"new_sites"`
	NewRoutes int `json:"new_routes"`
}

// Merge appends incoming sites whose id is unknown and, for known sites,
// appends routes whose name is unknown. Existing sites and routes are never
// removed or changed. The inputs are not modified.
func Merge(existing, incoming []Site) ([]Site, MergeStats) {
	merged := make([]Site, len(existing))
	copy(merged, existing)
	index := make(map[string]int, len(merged))
	for i, s := range merged {
		index[s.ID] = i
	}

	var stats MergeStats
	for _, in := range incoming {
		i, ok := index[in.ID]
		if !ok {
			index[in.ID] = len(merged)
			merged = append(merged, in)
			stats.NewSites++
			continue
		}
		site := merged[i]
		known := make(map[string]struct{}, len(site.Routes))
		for _, r := range site.Routes {
			known[r.Name] = struct{}{}
		}
		var added []Route
		for _, r := range in.Routes {
			if _, dup := known[r.Name]; dup {
				continue
			}
			known[r.Name] = struct{}{}
			added = append(added, r)
		}
		if len(added) == 0 {
			continue
		}
		routes := make([]Route, 0, len(site.Routes)+len(added))
		routes = append(routes, site.Routes...)
		site.Routes = append(routes, added...)
		site.RoutesCount += len(added)
		merged[i] = site
		stats.NewRoutes += len(added)
	}
	return merged, stats
}
