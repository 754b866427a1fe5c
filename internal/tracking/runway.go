package tracking

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/internal/physics"
)

// Runway score weights: proximity dominates, alignment refines. A runway at
// the aircraft's exact position with a matching heading scores 1.0.
const (
	runwayDistanceWeight = 0.7
	runwayHeadingWeight  = 0.3
	runwayHeadingSpanDeg = 45.0
)

// runwayFile is the on-disk shape of the runway database. Array order is
// significant: score ties resolve to the earliest entry.
type runwayFile struct {
	Airport string   `json:"airport"`
	Runways []Runway `json:"runways"`
}

// LoadRunways loads the runway database from a JSON file.
func LoadRunways(path string) (string, []Runway, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read runway database: %w", err)
	}

	var rf runwayFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return "", nil, fmt.Errorf("failed to parse runway database: %w", err)
	}

	for _, rwy := range rf.Runways {
		if rwy.HeadingDeg < 0 || rwy.HeadingDeg > 360 {
			return "", nil, fmt.Errorf("runway %s has invalid heading %f", rwy.ID, rwy.HeadingDeg)
		}
	}

	return rf.Airport, rf.Runways, nil
}

// ScoreRunway scores one runway against an aircraft position and heading.
// The alignment term compares the aircraft heading with the bearing to the
// runway threshold. Both components clamp at zero, so the score decreases
// monotonically in distance and in heading deviation.
func ScoreRunway(rwy Runway, pos geo.Point, headingDeg, approachRadiusM float64, magneticHeadings bool) RunwayAssignment {
	distance := geo.DistanceMeters(pos, rwy.Threshold)
	bearing := geo.BearingDegrees(pos, rwy.Threshold)
	if magneticHeadings {
		// The feed reports magnetic headings; convert the true bearing by
		// the local declination before comparing.
		bearing = physics.TrueToMagnetic(bearing, pos.Lat, pos.Lon, 0, time.Now().UTC())
	}
	headingDiff := physics.HeadingDiff(headingDeg, bearing)

	distScore := 1 - distance/approachRadiusM
	if distScore < 0 {
		distScore = 0
	}
	headScore := 1 - headingDiff/runwayHeadingSpanDeg
	if headScore < 0 {
		headScore = 0
	}

	return RunwayAssignment{
		Runway:         rwy,
		Score:          runwayDistanceWeight*distScore + runwayHeadingWeight*headScore,
		DistanceM:      distance,
		HeadingDiffDeg: headingDiff,
	}
}

// DetermineRunway returns the best-scoring runway for the given position and
// heading, or nil when no runway scores above zero. Ties resolve to the
// runway listed first in the database.
func (e *Engine) DetermineRunway(lat, lon, headingDeg float64) *RunwayAssignment {
	pos := geo.Point{Lat: lat, Lon: lon}

	var best *RunwayAssignment
	for _, rwy := range e.runways {
		candidate := ScoreRunway(rwy, pos, headingDeg, e.cfg.ApproachRadiusM, e.cfg.MagneticHeadings)
		if candidate.Score <= 0 {
			continue
		}
		if best == nil || candidate.Score > best.Score {
			c := candidate
			best = &c
		}
	}
	return best
}
