// Package vector loads airport vector geometry from fixed-format text
// sources and prepares it for radar-style rendering.
package vector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/pkg/logger"
)

// Coordinate lines look like "43.6459+-79.3857": latitude, the "+-"
// separator, then the longitude magnitude. The source format always emits
// western-hemisphere longitudes as their magnitude, so the longitude is
// negated on parse.
var coordLinePattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\+-(\d+(?:\.\d+)?)$`)

// ringTerminator ends a polygon in the source format.
const ringTerminator = "-1"

// Store holds the parsed spatial element collections, grouped by category.
type Store struct {
	mu          sync.RWMutex
	collections map[Category][]SpatialElement
	parseErrors atomic.Int64
	logger      *logger.Logger
}

// NewStore creates an empty vector store.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		collections: make(map[Category][]SpatialElement),
		logger:      log.Named("vector"),
	}
}

// LoadFile parses one polygon source file into the given category. A missing
// or unreadable file is returned as an error but leaves previously loaded
// collections intact (partial availability).
func (s *Store) LoadFile(name string, category Category, path string) error {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("Failed to open vector source",
			logger.String("name", name),
			logger.String("path", path),
			logger.Error(err))
		return fmt.Errorf("failed to open vector source %s: %w", name, err)
	}
	defer f.Close()

	return s.Load(name, category, f)
}

// Load streams one polygon source into the given category. Malformed
// coordinate lines are skipped and counted, never fatal. Empty rings
// (terminator with no accumulated points) are discarded.
func (s *Store) Load(name string, category Category, r io.Reader) error {
	scanner := bufio.NewScanner(r)

	var (
		elements []SpatialElement
		ring     []geo.Point
		skipped  int
	)

	flush := func() {
		if len(ring) == 0 {
			return
		}
		elem := SpatialElement{
			ID:       fmt.Sprintf("%s-%s-%d", name, category, len(elements)),
			Category: category,
			Ring:     ring,
			Bounds:   BoundsOf(ring),
		}
		elements = append(elements, elem)
		ring = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "}") || strings.HasPrefix(line, "#") {
			continue
		}
		if line == ringTerminator {
			flush()
			continue
		}

		m := coordLinePattern.FindStringSubmatch(line)
		if m == nil {
			s.parseErrors.Add(1)
			skipped++
			continue
		}

		lat, err1 := strconv.ParseFloat(m[1], 64)
		lonMag, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			s.parseErrors.Add(1)
			skipped++
			continue
		}

		ring = append(ring, geo.Point{Lat: lat, Lon: -lonMag})
	}
	// A source that ends without a trailing terminator still keeps its
	// final ring.
	flush()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read vector source %s: %w", name, err)
	}

	s.mu.Lock()
	s.collections[category] = append(s.collections[category], elements...)
	s.mu.Unlock()

	s.logger.Info("Loaded vector source",
		logger.String("name", name),
		logger.String("category", string(category)),
		logger.Int("elements", len(elements)),
		logger.Int("skipped_lines", skipped))

	return nil
}

// ParseErrors returns the running count of skipped malformed lines.
func (s *Store) ParseErrors() int64 {
	return s.parseErrors.Load()
}

// Elements returns the loaded elements of a single category.
func (s *Store) Elements(category Category) []SpatialElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SpatialElement, len(s.collections[category]))
	copy(out, s.collections[category])
	return out
}

// Count returns the total number of loaded elements across all categories.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, elems := range s.collections {
		n += len(elems)
	}
	return n
}

// QueryBounds returns elements from the given categories whose bounding box
// intersects the query box. Passing no categories queries all of them.
func (s *Store) QueryBounds(box BoundingBox, categories ...Category) []SpatialElement {
	if len(categories) == 0 {
		categories = AllCategories
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SpatialElement
	for _, cat := range categories {
		for _, elem := range s.collections[cat] {
			if elem.Bounds.Intersects(box) {
				out = append(out, elem)
			}
		}
	}
	return out
}

// QueryRadius returns elements from the given categories whose bounding-box
// center lies within radiusKm of center.
func (s *Store) QueryRadius(center geo.Point, radiusKm float64, categories ...Category) []SpatialElement {
	if len(categories) == 0 {
		categories = AllCategories
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SpatialElement
	for _, cat := range categories {
		for _, elem := range s.collections[cat] {
			if geo.DistanceMeters(center, elem.Bounds.Center()) <= radiusKm*1000 {
				out = append(out, elem)
			}
		}
	}
	return out
}

// AirportBounds returns the union of all loaded element bounds, or nil when
// nothing has been loaded.
func (s *Store) AirportBounds() *BoundingBox {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var union *BoundingBox
	for _, elems := range s.collections {
		for _, elem := range elems {
			if union == nil {
				b := elem.Bounds
				union = &b
				continue
			}
			b := union.Union(elem.Bounds)
			union = &b
		}
	}
	return union
}
