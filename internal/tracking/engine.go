// Package tracking maintains per-aircraft state, classifies flight phases
// against runway geometry, and emits phase-transition events.
package tracking

import (
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/events"
	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/pkg/logger"
)

// ErrInvalidSample is returned for samples missing an icao24 or carrying
// coordinates outside the valid range.
var ErrInvalidSample = errors.New("invalid position sample")

const (
	// Updates for the same icao24 serialize on one of these stripes;
	// different aircraft proceed in parallel.
	lockStripes = 32

	persistQueueSize = 256
)

type persistOp struct {
	position *PositionSample
	event    *AircraftEvent
	flight   *FlightRecord
}

// Engine is the aircraft classification and runway engine. One instance per
// monitored station.
type Engine struct {
	cfg       config.TrackingConfig
	reference geo.Point
	refName   string
	runways   []Runway
	store     Storage
	bus       *events.Bus
	logger    *logger.Logger

	stripes [lockStripes]sync.Mutex

	mu       sync.RWMutex
	aircraft map[string]*TrackedAircraft
	flights  map[string]*FlightRecord

	phaseCounts   map[Phase]*atomic.Int64
	noticeQueries atomic.Int64
	noticeAlerts  atomic.Int64
	lastUpdate    atomic.Int64 // unix nanos, 0 until the first sample

	persistCh chan persistOp
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewEngine creates a tracking engine. refName is a human-readable
// descriptor of the reference point (typically the airport code) carried in
// emitted events. store may be nil for in-memory-only operation.
func NewEngine(cfg config.TrackingConfig, reference geo.Point, refName string, runways []Runway, store Storage, bus *events.Bus, log *logger.Logger) *Engine {
	counts := make(map[Phase]*atomic.Int64, len(AllPhases))
	for _, p := range AllPhases {
		counts[p] = &atomic.Int64{}
	}
	return &Engine{
		cfg:         cfg,
		reference:   reference,
		refName:     refName,
		runways:     runways,
		store:       store,
		bus:         bus,
		logger:      log.Named("tracking"),
		aircraft:    make(map[string]*TrackedAircraft),
		flights:     make(map[string]*FlightRecord),
		phaseCounts: counts,
		persistCh:   make(chan persistOp, persistQueueSize),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the background persistence worker.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.persistLoop()
	e.logger.Info("Tracking engine started",
		logger.String("reference", e.refName),
		logger.Int("runways", len(e.runways)),
		logger.Float64("approach_radius_m", e.cfg.ApproachRadiusM))
}

// Stop shuts down the persistence worker. Queued writes still in the channel
// are drained before returning.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	e.logger.Info("Tracking engine stopped")
}

// ClassifyPhase computes the flight phase from the latest sample alone. The
// rule order is deliberate precedence: the first matching rule wins even
// when later rules would also match.
func ClassifyPhase(altitudeFt, speedKt, distanceM float64, cfg config.TrackingConfig) Phase {
	switch {
	case altitudeFt > cfg.EnRouteMinAltFt:
		return PhaseEnRoute
	case altitudeFt > cfg.ApproachMinAltFt && distanceM <= cfg.ApproachRadiusM && speedKt > cfg.ApproachMinSpeedKt:
		return PhaseApproach
	case altitudeFt < cfg.LandingMaxAltFt && distanceM < cfg.RunwayThresholdRadiusM:
		return PhaseLanding
	case altitudeFt < cfg.TakeoffMaxAltFt && distanceM <= cfg.RunwayThresholdRadiusM && speedKt > cfg.TakeoffMinSpeedKt:
		return PhaseTakeoff
	case altitudeFt > cfg.TakeoffMaxAltFt && distanceM > cfg.RunwayThresholdRadiusM && speedKt > cfg.TakeoffMinSpeedKt:
		return PhaseDeparture
	default:
		return PhaseUnknown
	}
}

// ProcessSample applies one position update. Classification completes
// synchronously from in-memory state; persistence happens in the background
// and never blocks or fails the update.
func (e *Engine) ProcessSample(sample PositionSample) error {
	if err := validateSample(sample); err != nil {
		return err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now().UTC()
	}

	stripe := &e.stripes[stripeFor(sample.ICAO24)]
	stripe.Lock()
	defer stripe.Unlock()

	e.lastUpdate.Store(sample.Timestamp.UnixNano())

	distance := geo.DistanceMeters(sample.Point(), e.reference)
	if distance > e.cfg.ApproachRadiusM {
		e.evict(sample.ICAO24, distance)
		return nil
	}

	assignment := e.DetermineRunway(sample.Lat, sample.Lon, sample.HeadingDeg)
	phase := ClassifyPhase(sample.AltitudeFt, sample.SpeedKt, distance, e.cfg)

	e.mu.Lock()
	prev, known := e.aircraft[sample.ICAO24]
	prevPhase := PhaseUnknown
	if known {
		prevPhase = prev.Phase
	}
	e.aircraft[sample.ICAO24] = &TrackedAircraft{
		ICAO24:     sample.ICAO24,
		Callsign:   sample.Callsign,
		Last:       sample,
		DistanceM:  distance,
		Runway:     assignment,
		Phase:      phase,
		LastUpdate: sample.Timestamp,
	}
	flight := e.updateFlight(sample, prev)
	e.mu.Unlock()

	e.enqueuePersist(persistOp{position: &sample})
	if flight != nil {
		rec := *flight
		e.enqueuePersist(persistOp{flight: &rec})
	}

	if phase != prevPhase {
		e.phaseCounts[phase].Add(1)
		e.emitTransition(sample, prevPhase, phase, assignment, distance)
	}
	return nil
}

// updateFlight opens or extends the flight record for this session. Caller
// holds e.mu.
func (e *Engine) updateFlight(sample PositionSample, prev *TrackedAircraft) *FlightRecord {
	rec, ok := e.flights[sample.ICAO24]
	if !ok {
		rec = &FlightRecord{
			ICAO24:        sample.ICAO24,
			Callsign:      sample.Callsign,
			StartTime:     sample.Timestamp,
			StartPosition: sample.Point(),
			Status:        FlightActive,
		}
		e.flights[sample.ICAO24] = rec
	}
	if prev != nil {
		rec.DistanceM += geo.DistanceMeters(prev.Last.Point(), sample.Point())
	}
	if sample.AltitudeFt > rec.MaxAltitudeFt {
		rec.MaxAltitudeFt = sample.AltitudeFt
	}
	if sample.SpeedKt > rec.MaxSpeedKt {
		rec.MaxSpeedKt = sample.SpeedKt
	}
	if sample.Callsign != "" {
		rec.Callsign = sample.Callsign
	}
	rec.EndTime = sample.Timestamp
	rec.EndPosition = sample.Point()
	return rec
}

// evict drops an aircraft from the active set once it leaves the approach
// radius. Its open flight record stays active; the retention sweep closes it
// later. Eviction is not a phase transition.
func (e *Engine) evict(icao24 string, distance float64) {
	e.mu.Lock()
	_, known := e.aircraft[icao24]
	delete(e.aircraft, icao24)
	delete(e.flights, icao24)
	e.mu.Unlock()

	if known {
		e.logger.Debug("Aircraft left approach radius",
			logger.String("icao24", icao24),
			logger.Float64("distance_m", distance))
	}
}

func (e *Engine) emitTransition(sample PositionSample, from, to Phase, assignment *RunwayAssignment, distance float64) {
	evt := AircraftEvent{
		ICAO24:    sample.ICAO24,
		EventType: string(to),
		Timestamp: sample.Timestamp,
		Snapshot:  sample,
	}
	e.enqueuePersist(persistOp{event: &evt})

	transition := &events.PhaseTransition{
		ICAO24:         sample.ICAO24,
		Callsign:       sample.Callsign,
		FromPhase:      string(from),
		ToPhase:        string(to),
		AltitudeFt:     sample.AltitudeFt,
		SpeedKt:        sample.SpeedKt,
		HeadingDeg:     sample.HeadingDeg,
		Squawk:         sample.Squawk,
		DistanceM:      distance,
		ReferencePoint: e.refName,
		Lat:            sample.Lat,
		Lon:            sample.Lon,
	}
	if assignment != nil {
		transition.RunwayID = assignment.Runway.ID
		transition.RunwayName = assignment.Runway.Name
	}

	e.logger.Info("Phase transition",
		logger.String("icao24", sample.ICAO24),
		logger.String("callsign", sample.Callsign),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
		logger.Float64("altitude_ft", sample.AltitudeFt),
		logger.Float64("distance_m", distance))

	if e.bus != nil {
		e.bus.Publish(events.Event{
			Kind:            events.KindPhaseTransition,
			Timestamp:       sample.Timestamp,
			PhaseTransition: transition,
		})
	}
}

// enqueuePersist hands a write to the background worker. A full queue drops
// the write rather than stalling classification.
func (e *Engine) enqueuePersist(op persistOp) {
	if e.store == nil {
		return
	}
	select {
	case e.persistCh <- op:
	default:
		e.logger.Warn("Persistence queue full, dropping write")
	}
}

func (e *Engine) persistLoop() {
	defer e.wg.Done()
	for {
		select {
		case op := <-e.persistCh:
			e.applyPersist(op)
		case <-e.stopCh:
			for {
				select {
				case op := <-e.persistCh:
					e.applyPersist(op)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) applyPersist(op persistOp) {
	var err error
	switch {
	case op.position != nil:
		err = e.store.StorePosition(*op.position)
	case op.event != nil:
		err = e.store.StoreEvent(*op.event)
	case op.flight != nil:
		err = e.store.UpsertFlight(*op.flight)
	}
	if err != nil {
		e.logger.Error("Failed to persist tracking data", logger.Error(err))
	}
}

// ListTrackedAircraft returns a snapshot copy of the active tracking set.
func (e *Engine) ListTrackedAircraft() []TrackedAircraft {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]TrackedAircraft, 0, len(e.aircraft))
	for _, ac := range e.aircraft {
		out = append(out, copyAircraft(ac))
	}
	return out
}

// GetAircraft returns a snapshot copy of one tracked aircraft.
func (e *Engine) GetAircraft(icao24 string) (TrackedAircraft, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ac, ok := e.aircraft[icao24]
	if !ok {
		return TrackedAircraft{}, false
	}
	return copyAircraft(ac), true
}

// Runways returns the configured runway reference data.
func (e *Engine) Runways() []Runway {
	out := make([]Runway, len(e.runways))
	copy(out, e.runways)
	return out
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	counts := make(map[Phase]int64, len(AllPhases))
	for p, c := range e.phaseCounts {
		counts[p] = c.Load()
	}
	var last time.Time
	if ns := e.lastUpdate.Load(); ns > 0 {
		last = time.Unix(0, ns).UTC()
	}
	e.mu.RLock()
	tracked := len(e.aircraft)
	e.mu.RUnlock()
	return Stats{
		PhaseCounts:   counts,
		NoticeQueries: e.noticeQueries.Load(),
		NoticeAlerts:  e.noticeAlerts.Load(),
		LastUpdate:    last,
		Tracked:       tracked,
	}
}

// NoteNoticeQuery increments the notice-query counter.
func (e *Engine) NoteNoticeQuery() { e.noticeQueries.Add(1) }

// NoteNoticeAlert increments the notice-alert counter.
func (e *Engine) NoteNoticeAlert() { e.noticeAlerts.Add(1) }

func copyAircraft(ac *TrackedAircraft) TrackedAircraft {
	out := *ac
	if ac.Runway != nil {
		rwy := *ac.Runway
		out.Runway = &rwy
	}
	return out
}

func validateSample(s PositionSample) error {
	if s.ICAO24 == "" {
		return ErrInvalidSample
	}
	if math.IsNaN(s.Lat) || math.IsNaN(s.Lon) {
		return ErrInvalidSample
	}
	if s.Lat < -90 || s.Lat > 90 || s.Lon < -180 || s.Lon > 180 {
		return ErrInvalidSample
	}
	return nil
}

func stripeFor(icao24 string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(icao24))
	return h.Sum32() % lockStripes
}
