// Package geo implements the great-circle math that every radius-based
// filter in the system depends on: audience geo targeting and proximity
// filtering/sorting of search results share these exact semantics.
package geo

import (
	"fmt"
	"math"
	"sort"
)

// EarthRadiusMeters is the fixed Earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

// degreesPerKmLat approximates how many kilometers one degree of latitude
// spans; used only by the bounding-box pre-filter.
const kmPerDegreeLat = 111.32

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point is a well-formed coordinate.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// BoundingBox is a cheap rectangular pre-filter around a circle. Points
// outside the box cannot be inside the circle; points inside still need the
// exact haversine check.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether the point falls inside the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Latitude <= b.North && p.Latitude >= b.South &&
		p.Longitude <= b.East && p.Longitude >= b.West
}

// Distance returns the great-circle (haversine) distance between two points
// in meters. Invalid coordinates are a caller error and fail fast.
func Distance(a, b Point) (float64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("invalid coordinate: lat=%v lng=%v", a.Latitude, a.Longitude)
	}
	if !b.Valid() {
		return 0, fmt.Errorf("invalid coordinate: lat=%v lng=%v", b.Latitude, b.Longitude)
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c, nil
}

// WithinRadius reports whether point lies within radiusKm of center.
func WithinRadius(point, center Point, radiusKm float64) (bool, error) {
	d, err := Distance(point, center)
	if err != nil {
		return false, err
	}
	return d <= radiusKm*1000, nil
}

// BoundsAround returns the bounding box of a circle of radiusKm around
// center, with a cos(latitude) longitude correction.
func BoundsAround(center Point, radiusKm float64) BoundingBox {
	latDelta := radiusKm / kmPerDegreeLat
	lngDelta := latDelta
	if cosLat := math.Cos(center.Latitude * math.Pi / 180); cosLat > 0 {
		lngDelta = latDelta / cosLat
	}
	return BoundingBox{
		North: center.Latitude + latDelta,
		South: center.Latitude - latDelta,
		East:  center.Longitude + lngDelta,
		West:  center.Longitude - lngDelta,
	}
}

// FilterByRadius keeps only items within radiusMeters of center. Items whose
// coords callback reports no location are excluded, never included: absence
// of location data must never be interpreted as "anywhere". Items inside the
// bounding box still get the exact haversine check.
func FilterByRadius[T any](items []T, coords func(T) (Point, bool), center Point, radiusMeters float64) []T {
	box := BoundsAround(center, radiusMeters/1000)
	out := make([]T, 0, len(items))
	for _, it := range items {
		p, ok := coords(it)
		if !ok || !p.Valid() {
			continue
		}
		if !box.Contains(p) {
			continue
		}
		d, err := Distance(p, center)
		if err != nil || d > radiusMeters {
			continue
		}
		out = append(out, it)
	}
	return out
}

// SortByDistance orders items by distance from reference. Items without
// coordinates are dropped from the output, not appended at either end:
// the same exclusion rule FilterByRadius applies.
func SortByDistance[T any](items []T, coords func(T) (Point, bool), reference Point, ascending bool) []T {
	type ranked struct {
		item T
		dist float64
	}
	rs := make([]ranked, 0, len(items))
	for _, it := range items {
		p, ok := coords(it)
		if !ok || !p.Valid() {
			continue
		}
		d, err := Distance(p, reference)
		if err != nil {
			continue
		}
		rs = append(rs, ranked{item: it, dist: d})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if ascending {
			return rs[i].dist < rs[j].dist
		}
		return rs[i].dist > rs[j].dist
	})
	out := make([]T, len(rs))
	for i, r := range rs {
		out[i] = r.item
	}
	return out
}

// Bearing returns the initial bearing from one point to another in degrees,
// normalized to [0, 360).
func Bearing(from, to Point) (float64, error) {
	if !from.Valid() {
		return 0, fmt.Errorf("invalid coordinate: lat=%v lng=%v", from.Latitude, from.Longitude)
	}
	if !to.Valid() {
		return 0, fmt.Errorf("invalid coordinate: lat=%v lng=%v", to.Latitude, to.Longitude)
	}

	lat1 := from.Latitude * math.Pi / 180
	lat2 := to.Latitude * math.Pi / 180
	dLng := (to.Longitude - from.Longitude) * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360), nil
}

var compassLabels = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// CompassDirection maps a bearing in degrees to one of 16 compass labels.
// Display only, never used for filtering.
func CompassDirection(bearing float64) string {
	b := math.Mod(math.Mod(bearing, 360)+360, 360)
	idx := int(math.Round(b/22.5)) % 16
	return compassLabels[idx]
}
