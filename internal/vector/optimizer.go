package vector

import (
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/pkg/logger"
)

// OptimizerConfig controls polygon simplification and caching.
type OptimizerConfig struct {
	MaxPolygonPoints int           // Rings above this point count get simplified
	DefaultTolerance float64       // Douglas-Peucker tolerance in degrees
	CacheTTL         time.Duration // Optimized polygon cache time-to-live
	CacheSize        int           // Maximum cached entries
}

// Options overrides the optimizer defaults for a single request. Zero values
// fall back to the configured defaults.
type Options struct {
	Tolerance float64
	MaxPoints int
}

// Optimizer simplifies polygons for rendering and caches the results.
// Expired cache entries are recomputed lazily on the next access.
type Optimizer struct {
	cfg    OptimizerConfig
	cache  *expirable.LRU[string, OptimizedPolygon]
	logger *logger.Logger
}

// NewOptimizer creates an optimizer with the given config.
func NewOptimizer(cfg OptimizerConfig, log *logger.Logger) *Optimizer {
	if cfg.MaxPolygonPoints <= 0 {
		cfg.MaxPolygonPoints = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}

	return &Optimizer{
		cfg:    cfg,
		cache:  expirable.NewLRU[string, OptimizedPolygon](cfg.CacheSize, nil, cfg.CacheTTL),
		logger: log.Named("optimizer"),
	}
}

// Simplify reduces a ring using Douglas-Peucker. Rings of two or fewer
// points and a tolerance of zero pass through unchanged.
func Simplify(ring []geo.Point, tolerance float64) []geo.Point {
	if len(ring) <= 2 || tolerance <= 0 {
		return ring
	}
	return douglasPeucker(ring, tolerance)
}

func douglasPeucker(ring []geo.Point, tolerance float64) []geo.Point {
	if len(ring) <= 2 {
		return ring
	}

	first, last := ring[0], ring[len(ring)-1]
	maxDist := 0.0
	maxIdx := 0
	for i := 1; i < len(ring)-1; i++ {
		d := perpendicularDistance(ring[i], first, last)
		if d > maxDist {
			maxDist = d
			maxIdx = i
		}
	}

	if maxDist <= tolerance {
		return []geo.Point{first, last}
	}

	left := douglasPeucker(ring[:maxIdx+1], tolerance)
	right := douglasPeucker(ring[maxIdx:], tolerance)

	// Merge into a fresh slice, dropping the pivot point shared by both
	// halves. Appending onto left in place could write through to the
	// caller's ring.
	out := make([]geo.Point, 0, len(left)+len(right)-1)
	out = append(out, left[:len(left)-1]...)
	return append(out, right...)
}

// perpendicularDistance returns the distance (in degrees) from p to the
// chord a-b. Degenerate chords fall back to point distance.
func perpendicularDistance(p, a, b geo.Point) float64 {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat

	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return math.Hypot(p.Lon-a.Lon, p.Lat-a.Lat)
	}

	return math.Abs(dy*p.Lon-dx*p.Lat+b.Lon*a.Lat-b.Lat*a.Lon) / norm
}

// cacheKey identifies an optimization result by polygon identity and the
// parameters that shaped it.
func cacheKey(elem SpatialElement, tolerance float64, maxPoints int) string {
	return fmt.Sprintf("%s|%d|%g|%d", elem.ID, len(elem.Ring), tolerance, maxPoints)
}

// Optimize produces the render-ready form of an element, simplifying only
// when the ring exceeds the maximum point count. Results are cached.
func (o *Optimizer) Optimize(elem SpatialElement, opts Options) OptimizedPolygon {
	tolerance := opts.Tolerance
	if tolerance == 0 {
		tolerance = o.cfg.DefaultTolerance
	}
	maxPoints := opts.MaxPoints
	if maxPoints == 0 {
		maxPoints = o.cfg.MaxPolygonPoints
	}

	key := cacheKey(elem, tolerance, maxPoints)
	if cached, ok := o.cache.Get(key); ok {
		return cached
	}

	points := elem.Ring
	if len(points) > maxPoints {
		points = Simplify(points, tolerance)
	}

	out := OptimizedPolygon{
		ID:                  elem.ID,
		Category:            elem.Category,
		Points:              points,
		Bounds:              BoundsOf(points),
		Center:              centroid(points),
		OriginalPointCount:  len(elem.Ring),
		OptimizedPointCount: len(points),
		Reduction:           reductionPercent(len(elem.Ring), len(points)),
	}

	o.cache.Add(key, out)
	return out
}

// IsInView reports whether an element's bounding box overlaps the viewport's
// square bounds. Bounding-box testing deliberately over-approximates: false
// positives draw a little extra geometry, false negatives would drop it.
func IsInView(elem SpatialElement, viewport Viewport) bool {
	return elem.Bounds.Intersects(viewport.Bounds())
}

// OptimizeForViewport culls elements outside the viewport and optimizes the
// survivors.
func (o *Optimizer) OptimizeForViewport(elements []SpatialElement, viewport Viewport, opts Options) RenderPayload {
	payload := RenderPayload{
		Polygons: make([]OptimizedPolygon, 0, len(elements)),
		Stats:    RenderStats{TotalPolygons: len(elements)},
	}

	for _, elem := range elements {
		if !IsInView(elem, viewport) {
			payload.Stats.FilteredPolygons++
			continue
		}
		payload.Polygons = append(payload.Polygons, o.Optimize(elem, opts))
		payload.Stats.OptimizedPolygons++
	}

	o.logger.Debug("Viewport optimization completed",
		logger.Int("total", payload.Stats.TotalPolygons),
		logger.Int("optimized", payload.Stats.OptimizedPolygons),
		logger.Int("filtered", payload.Stats.FilteredPolygons))

	return payload
}

// centroid returns the arithmetic mean of the points.
func centroid(points []geo.Point) geo.Point {
	if len(points) == 0 {
		return geo.Point{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return geo.Point{Lat: lat / n, Lon: lon / n}
}

// reductionPercent formats the point-count reduction for display.
func reductionPercent(original, optimized int) string {
	if original == 0 {
		return "0.0%"
	}
	pct := float64(original-optimized) / float64(original) * 100
	if pct < 0 {
		pct = 0
	}
	return fmt.Sprintf("%.1f%%", pct)
}
