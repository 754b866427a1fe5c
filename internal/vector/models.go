package vector

import (
	"github.com/skymond/radarscope/internal/geo"
)

// Category groups spatial elements by what they depict on the scope.
type Category string

const (
	CategoryBuildings Category = "buildings"
	CategoryMarkings  Category = "markings"
	CategoryLayout    Category = "layout"
)

// AllCategories lists every valid category in render order.
var AllCategories = []Category{CategoryBuildings, CategoryMarkings, CategoryLayout}

// BoundingBox is an axis-aligned lat/lon box. Intersection tests treat the
// edges as closed intervals.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Intersects reports whether the two boxes overlap, inclusive on edges.
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.MinLat <= other.MaxLat && b.MaxLat >= other.MinLat &&
		b.MinLon <= other.MaxLon && b.MaxLon >= other.MinLon
}

// Center returns the geometric center of the box.
func (b BoundingBox) Center() geo.Point {
	return geo.Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// Union returns the smallest box containing both boxes.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	out := b
	if other.MinLat < out.MinLat {
		out.MinLat = other.MinLat
	}
	if other.MinLon < out.MinLon {
		out.MinLon = other.MinLon
	}
	if other.MaxLat > out.MaxLat {
		out.MaxLat = other.MaxLat
	}
	if other.MaxLon > out.MaxLon {
		out.MaxLon = other.MaxLon
	}
	return out
}

// BoundsOf computes the bounding box of a ring. Must be called again after
// any ring mutation.
func BoundsOf(ring []geo.Point) BoundingBox {
	if len(ring) == 0 {
		return BoundingBox{}
	}
	box := BoundingBox{
		MinLat: ring[0].Lat, MaxLat: ring[0].Lat,
		MinLon: ring[0].Lon, MaxLon: ring[0].Lon,
	}
	for _, p := range ring[1:] {
		if p.Lat < box.MinLat {
			box.MinLat = p.Lat
		}
		if p.Lat > box.MaxLat {
			box.MaxLat = p.Lat
		}
		if p.Lon < box.MinLon {
			box.MinLon = p.Lon
		}
		if p.Lon > box.MaxLon {
			box.MaxLon = p.Lon
		}
	}
	return box
}

// SpatialElement is one parsed polygon. Immutable after parse.
type SpatialElement struct {
	ID       string      `json:"id"`
	Category Category    `json:"category"`
	Ring     []geo.Point `json:"ring"`
	Bounds   BoundingBox `json:"bounds"`
}

// Viewport describes the square radar view a render request covers.
type Viewport struct {
	Center  geo.Point `json:"center"`
	RangeNM float64   `json:"range_nm"`
}

// Bounds converts the viewport range to an approximate degree radius
// (1 NM is roughly 1/60 degree of latitude) and returns the square box.
// This over-approximates near the poles, which errs toward drawing geometry
// rather than dropping it.
func (v Viewport) Bounds() BoundingBox {
	degRadius := v.RangeNM / 60.0
	return BoundingBox{
		MinLat: v.Center.Lat - degRadius,
		MaxLat: v.Center.Lat + degRadius,
		MinLon: v.Center.Lon - degRadius,
		MaxLon: v.Center.Lon + degRadius,
	}
}

// OptimizedPolygon is the render-ready form of a spatial element. Derived,
// never stored.
type OptimizedPolygon struct {
	ID                  string      `json:"id"`
	Category            Category    `json:"category"`
	Points              []geo.Point `json:"points"`
	Bounds              BoundingBox `json:"bounds"`
	Center              geo.Point   `json:"center"`
	OriginalPointCount  int         `json:"original_point_count"`
	OptimizedPointCount int         `json:"optimized_point_count"`
	Reduction           string      `json:"reduction"`
}

// RenderStats reports what a viewport optimization pass did.
type RenderStats struct {
	TotalPolygons     int `json:"total_polygons"`
	OptimizedPolygons int `json:"optimized_polygons"`
	FilteredPolygons  int `json:"filtered_polygons"`
}

// RenderPayload is the low-bandwidth vector payload for one render request.
type RenderPayload struct {
	Polygons []OptimizedPolygon `json:"polygons"`
	Stats    RenderStats        `json:"stats"`
}
