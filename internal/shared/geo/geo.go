package geo

import "math"

const earthRadiusKm = 6371.0

// Viewport padding rules for fitting a set of points on the map.
const (
	SpanPadding = 1.4
	MinSpanDeg  = 0.2
)

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether p is a finite coordinate inside WGS84 bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) || math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Region is a map viewport: a center plus the degrees visible on each axis.
type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// Around returns a square viewport of span degrees centered on p.
func Around(p Point, span float64) Region {
	return Region{Latitude: p.Latitude, Longitude: p.Longitude, LatitudeDelta: span, LongitudeDelta: span}
}

// Bounding fits every point into one viewport. Spans are inflated by
// SpanPadding and never drop below MinSpanDeg. Returns nil for no points.
func Bounding(points []Point) *Region {
	if len(points) == 0 {
		return nil
	}
	minLat, maxLat := points[0].Latitude, points[0].Latitude
	minLng, maxLng := points[0].Longitude, points[0].Longitude
	for _, p := range points[1:] {
		minLat = math.Min(minLat, p.Latitude)
		maxLat = math.Max(maxLat, p.Latitude)
		minLng = math.Min(minLng, p.Longitude)
		maxLng = math.Max(maxLng, p.Longitude)
	}
	return &Region{
		Latitude:       (minLat + maxLat) / 2,
		Longitude:      (minLng + maxLng) / 2,
		LatitudeDelta:  math.Max((maxLat-minLat)*SpanPadding, MinSpanDeg),
		LongitudeDelta: math.Max((maxLng-minLng)*SpanPadding, MinSpanDeg),
	}
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
