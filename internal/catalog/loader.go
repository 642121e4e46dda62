package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"backend-cragmap/internal/shared/geo"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

//go:embed data/*.json
var bundled embed.FS

// Bundled returns the region datasets compiled into the binary.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		panic(err)
	}
	return sub
}

var validate = validator.New()

type rawRegion struct {
	CountyInfo struct {
		Name string `json:"name"`
	} `json:"county_info"`
	ClimbingSites []json.RawMessage `json:"climbing_sites"`
}

type rawCoordinates struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
}

type rawSite struct {
	Name         string          `json:"name" validate:"required"`
	PageTitle    string          `json:"page_title"`
	URL          string          `json:"url"`
	Routes       []Route         `json:"routes"`
	RoutesCount  int             `json:"routes_count"`
	Coordinates  *rawCoordinates `json:"coordinates" validate:"required"`
	Area         string          `json:"area"`
	ClusterID    *int            `json:"cluster_id"`
	ClusterLabel string          `json:"cluster_label"`
	ClimbingType string          `json:"climbing_type"`
	Type         string          `json:"type"`
}

type fileResult struct {
	sites   []Site
	regions int
	issues  []Issue
}

// Load reads every *.json region dataset at the root of fsys and flattens
// them into one site list. Files are processed in parallel but merged in
// name order, so output is deterministic. Entries that fail validation
// (missing coordinates included) are excluded and reported.
func Load(ctx context.Context, fsys fs.FS) ([]Site, Report, error) {
	names, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, Report{}, err
	}
	sort.Strings(names)

	results := make([]fileResult, len(names))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			data, err := fs.ReadFile(fsys, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			res, err := parseDataset(path.Base(name), data)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{}, err
	}

	report := Report{Files: len(names)}
	var sites []Site
	for _, res := range results {
		sites = append(sites, res.sites...)
		report.Regions += res.regions
		report.Issues = append(report.Issues, res.issues...)
	}
	report.Sites = len(sites)
	return sites, report, nil
}

// ParseDataset flattens one region document of the form
// {"<region>": {"county_info": {...}, "climbing_sites": [...]}, ...}.
func ParseDataset(data []byte) ([]Site, []Issue, error) {
	res, err := parseDataset("", data)
	return res.sites, res.issues, err
}

func parseDataset(file string, data []byte) (fileResult, error) {
	var doc map[string]rawRegion
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileResult{}, fmt.Errorf("parse dataset %s: %w", file, err)
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var res fileResult
	for _, key := range keys {
		region := doc[key]
		regionName := region.CountyInfo.Name
		if regionName == "" {
			regionName = "Unknown"
		}
		res.regions++
		for i, raw := range region.ClimbingSites {
			site, issue := buildSite(regionName, raw)
			if issue != "" {
				res.issues = append(res.issues, Issue{File: file, Region: regionName, Index: i, Site: site.Name, Reason: issue})
				continue
			}
			res.sites = append(res.sites, site)
		}
	}
	return res, nil
}

func buildSite(region string, raw json.RawMessage) (Site, string) {
	var rs rawSite
	if err := json.Unmarshal(raw, &rs); err != nil {
		return Site{}, "malformed site: " + err.Error()
	}
	if err := validate.Struct(rs); err != nil {
		return Site{Name: rs.Name}, describeValidation(err)
	}
	count := rs.RoutesCount
	if count == 0 {
		count = len(rs.Routes)
	}
	routes := rs.Routes
	if routes == nil {
		routes = []Route{}
	}
	return Site{
		ID:           SiteID(region, rs.Area, rs.Name),
		Name:         rs.Name,
		PageTitle:    rs.PageTitle,
		URL:          rs.URL,
		Routes:       routes,
		RoutesCount:  count,
		Coordinates:  &geo.Point{Latitude: *rs.Coordinates.Latitude, Longitude: *rs.Coordinates.Longitude},
		Region:       region,
		Area:         rs.Area,
		ClusterID:    rs.ClusterID,
		ClusterLabel: rs.ClusterLabel,
		ClimbingType: rs.ClimbingType,
		Categories:   Categories(rs.ClimbingType, rs.Type),
	}, ""
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	var parts []string
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, "missing "+field)
		default:
			parts = append(parts, fmt.Sprintf("invalid %s", field))
		}
	}
	return strings.Join(parts, "; ")
}
