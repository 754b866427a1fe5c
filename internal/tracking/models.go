package tracking

import (
	"time"

	"github.com/skymond/radarscope/internal/geo"
)

// Phase is the classified flight phase of a tracked aircraft. The set is
// closed; downstream consumers must not invent ad hoc phase strings.
type Phase string

const (
	PhaseUnknown   Phase = "unknown"
	PhaseEnRoute   Phase = "en_route"
	PhaseApproach  Phase = "approach"
	PhaseLanding   Phase = "landing"
	PhaseTakeoff   Phase = "takeoff"
	PhaseDeparture Phase = "departure"
)

// AllPhases lists every phase in classification precedence order.
var AllPhases = []Phase{PhaseUnknown, PhaseEnRoute, PhaseApproach, PhaseLanding, PhaseTakeoff, PhaseDeparture}

// PositionSample is one telemetry update for an aircraft. Immutable once
// recorded; the unit of ingestion.
type PositionSample struct {
	ICAO24     string    `json:"icao24"`
	Callsign   string    `json:"callsign,omitempty"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AltitudeFt float64   `json:"altitude_ft"`
	SpeedKt    float64   `json:"speed_kt"`
	HeadingDeg float64   `json:"heading_deg"`
	Squawk     string    `json:"squawk,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Point returns the sample's geographic position.
func (s PositionSample) Point() geo.Point {
	return geo.Point{Lat: s.Lat, Lon: s.Lon}
}

// Runway is static reference data loaded at startup and immutable for the
// process lifetime.
type Runway struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HeadingDeg float64   `json:"heading_deg"`
	Threshold  geo.Point `json:"threshold"`
	LengthM    float64   `json:"length_m"`
}

// RunwayAssignment is the scored result of matching an aircraft against a
// runway.
type RunwayAssignment struct {
	Runway         Runway  `json:"runway"`
	Score          float64 `json:"score"`
	DistanceM      float64 `json:"distance_m"`
	HeadingDiffDeg float64 `json:"heading_diff_deg"`
}

// TrackedAircraft is the engine's per-aircraft state, keyed by icao24.
// Mutated exclusively by the engine; readers get copies.
type TrackedAircraft struct {
	ICAO24     string            `json:"icao24"`
	Callsign   string            `json:"callsign,omitempty"`
	Last       PositionSample    `json:"last"`
	DistanceM  float64           `json:"distance_m"`
	Runway     *RunwayAssignment `json:"runway,omitempty"`
	Phase      Phase             `json:"phase"`
	LastUpdate time.Time         `json:"last_update"`
}

// FlightStatus is the lifecycle state of a flight record.
type FlightStatus string

const (
	FlightActive    FlightStatus = "active"
	FlightCompleted FlightStatus = "completed"
)

// FlightRecord covers one continuous tracked session of an aircraft, from
// first observation inside the approach radius until terminal close-out.
type FlightRecord struct {
	ID            int64        `json:"id"`
	ICAO24        string       `json:"icao24"`
	Callsign      string       `json:"callsign,omitempty"`
	StartTime     time.Time    `json:"start_time"`
	EndTime       time.Time    `json:"end_time"`
	StartPosition geo.Point    `json:"start_position"`
	EndPosition   geo.Point    `json:"end_position"`
	MaxAltitudeFt float64      `json:"max_altitude_ft"`
	MaxSpeedKt    float64      `json:"max_speed_kt"`
	DistanceM     float64      `json:"distance_m"`
	Status        FlightStatus `json:"status"`
}

// AircraftEvent is the append-only record of one phase transition.
type AircraftEvent struct {
	ID        int64          `json:"id"`
	ICAO24    string         `json:"icao24"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Snapshot  PositionSample `json:"snapshot"`
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	PhaseCounts   map[Phase]int64 `json:"phase_counts"`
	NoticeQueries int64           `json:"notice_queries"`
	NoticeAlerts  int64           `json:"notice_alerts"`
	LastUpdate    time.Time       `json:"last_update"`
	Tracked       int             `json:"tracked"`
}

// Storage defines what the engine needs from the persistence layer. Every
// method is independently fallible; the engine logs failures and keeps
// tracking from memory.
type Storage interface {
	StorePosition(sample PositionSample) error
	StoreEvent(evt AircraftEvent) error
	UpsertFlight(rec FlightRecord) error
}
