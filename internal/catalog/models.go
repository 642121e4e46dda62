package catalog

import "backend-cragmap/internal/shared/geo"

// All is the "no filter" sentinel heading region and difficulty options.
const All = "ALL"

type Route struct {
	Name           string   `json:"name"`
	Height         *float64 `json:"height,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	OverallGrade   string   `json:"overall_grade,omitempty"`
	TechnicalGrade string   `json:"technical_grade,omitempty"`
	Description    string   `json:"description,omitempty"`
	FirstAscent    string   `json:"first_ascent,omitempty"`
	SubRoutes      []Route  `json:"sub_routes,omitempty"`
}

type Site struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PageTitle    string     `json:"page_title,omitempty"`
	URL          string     `json:"url,omitempty"`
	Routes       []Route    `json:"routes"`
	RoutesCount  int        `json:"routes_count"`
	Coordinates  *geo.Point `json:"coordinates,omitempty"`
	Region       string     `json:"county_name"`
	Area         string     `json:"area,omitempty"`
	ClusterID    *int       `json:"cluster_id,omitempty"`
	ClusterLabel string     `json:"cluster_label,omitempty"`
	ClimbingType string     `json:"climbing_type,omitempty"`
	Categories   []string   `json:"categories"`
}

// HasCoordinates gates map display and search eligibility.
func (s Site) HasCoordinates() bool {
	return s.Coordinates != nil && s.Coordinates.Valid()
}

func (s Site) HasCategory(tag string) bool {
	for _, c := range s.Categories {
		if c == tag {
			return true
		}
	}
	return false
}

// Route looks up a top-level route by name.
func (s Site) Route(name string) (Route, bool) {
	for _, r := range s.Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Issue describes a dataset entry the loader could not accept.
type Issue struct {
	File   string `json:"file,omitempty"`
	Region string `json:"region"`
	Index  int    `json:"index"`
	Site   string `json:"site,omitempty"`
	Reason string `json:"reason"`
}

type Report struct {
	Files   int     `json:"files"`
	Regions int     `json:"regions"`
	Sites   int     `json:"sites"`
	Issues  []Issue `json:"issues,omitempty"`
}
