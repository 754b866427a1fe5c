package tracking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/events"
	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/pkg/logger"
)

// Notice is one already-parsed airspace notice (NOTAM). Nil start/end times
// mean the notice is valid indefinitely on that side.
type Notice struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	Priority    int        `json:"priority"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Position    geo.Point  `json:"position"`
	Description string     `json:"description"`
}

// Active reports whether the notice's validity window contains t.
func (n Notice) Active(t time.Time) bool {
	if n.StartTime != nil && t.Before(*n.StartTime) {
		return false
	}
	if n.EndTime != nil && t.After(*n.EndTime) {
		return false
	}
	return true
}

// NoticeSource is the external notice provider queried by the correlator.
type NoticeSource interface {
	GetActive(ctx context.Context) ([]Notice, error)
}

// Notice categories relevant per operation type. Weather and other
// categories never correlate with runway operations.
var (
	arrivalCategories   = map[string]bool{"runway": true, "approach": true, "landing": true, "airport": true, "navigation": true}
	departureCategories = map[string]bool{"runway": true, "takeoff": true, "airport": true, "navigation": true}
)

const transitionQueueSize = 64

// Correlator matches phase transitions against active airspace notices and
// runs the background new-notice sweep. Notice source queries are rate
// limited so a burst of transitions cannot hammer the provider.
type Correlator struct {
	cfg     config.NoticesConfig
	source  NoticeSource
	bus     *events.Bus
	engine  *Engine
	airport geo.Point
	logger  *logger.Logger
	limiter *rate.Limiter

	transitionCh chan events.PhaseTransition

	seenMu sync.Mutex
	seen   map[string]struct{}

	sweepBusy atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewCorrelator creates a correlator bound to the engine's event bus. It
// does not start any work until Start is called.
func NewCorrelator(cfg config.NoticesConfig, source NoticeSource, engine *Engine, bus *events.Bus, airport geo.Point, log *logger.Logger) *Correlator {
	qps := cfg.QueriesPerSecond
	if qps <= 0 {
		qps = 1
	}
	return &Correlator{
		cfg:          cfg,
		source:       source,
		bus:          bus,
		engine:       engine,
		airport:      airport,
		logger:       log.Named("notices"),
		limiter:      rate.NewLimiter(rate.Limit(qps), 1),
		transitionCh: make(chan events.PhaseTransition, transitionQueueSize),
		seen:         make(map[string]struct{}),
		stopCh:       make(chan struct{}),
	}
}

// Start subscribes to phase transitions and launches the correlation worker
// and the periodic new-notice sweep. ctx cancels in-flight source queries.
func (c *Correlator) Start(ctx context.Context) {
	c.bus.Subscribe(func(evt events.Event) {
		if evt.Kind != events.KindPhaseTransition || evt.PhaseTransition == nil {
			return
		}
		if !c.phaseEnabled(Phase(evt.PhaseTransition.ToPhase)) {
			return
		}
		select {
		case c.transitionCh <- *evt.PhaseTransition:
		default:
			c.logger.Warn("Notice correlation queue full, dropping transition",
				logger.String("icao24", evt.PhaseTransition.ICAO24))
		}
	})

	c.wg.Add(2)
	go c.correlateLoop(ctx)
	go c.sweepLoop(ctx)
	c.logger.Info("Notice correlator started",
		logger.Float64("search_radius_km", c.cfg.SearchRadiusKm),
		logger.Int("sweep_interval_minutes", c.cfg.SweepIntervalMins))
}

// Stop shuts down the worker and sweep goroutines.
func (c *Correlator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("Notice correlator stopped")
}

func (c *Correlator) phaseEnabled(p Phase) bool {
	switch p {
	case PhaseApproach:
		return c.cfg.CorrelateApproach
	case PhaseLanding:
		return c.cfg.CorrelateLanding
	case PhaseTakeoff:
		return c.cfg.CorrelateTakeoff
	default:
		return false
	}
}

func (c *Correlator) correlateLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case tr := <-c.transitionCh:
			c.correlate(ctx, tr)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// correlate queries the notice source and raises one alert per notice that
// is active now, close enough to the aircraft, relevant to the operation
// type, and at or above the minimum priority.
func (c *Correlator) correlate(ctx context.Context, tr events.PhaseTransition) {
	notices, err := c.querySource(ctx)
	if err != nil {
		return
	}

	relevant := arrivalCategories
	if Phase(tr.ToPhase) == PhaseTakeoff {
		relevant = departureCategories
	}

	now := time.Now().UTC()
	pos := geo.Point{Lat: tr.Lat, Lon: tr.Lon}
	for _, n := range notices {
		if !relevant[n.Category] || n.Priority < c.cfg.MinPriority || !n.Active(now) {
			continue
		}
		distKm := geo.DistanceMeters(pos, n.Position) / 1000
		if distKm > c.cfg.SearchRadiusKm {
			continue
		}

		c.engine.NoteNoticeAlert()
		c.logger.Info("Notice alert",
			logger.String("icao24", tr.ICAO24),
			logger.String("phase", tr.ToPhase),
			logger.String("notice_id", n.ID),
			logger.String("category", n.Category),
			logger.Float64("distance_km", distKm))
		c.bus.Publish(events.Event{
			Kind:      events.KindNoticeAlert,
			Timestamp: now,
			NoticeAlert: &events.NoticeAlert{
				ICAO24:     tr.ICAO24,
				Phase:      tr.ToPhase,
				NoticeID:   n.ID,
				Category:   n.Category,
				Priority:   n.Priority,
				Summary:    n.Description,
				DistanceKm: distKm,
			},
		})
	}
}

func (c *Correlator) sweepLoop(ctx context.Context) {
	defer c.wg.Done()
	interval := time.Duration(c.cfg.SweepIntervalMins) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Skip if the previous sweep is still running.
			if !c.sweepBusy.CompareAndSwap(false, true) {
				c.logger.Warn("Notice sweep still running, skipping cycle")
				continue
			}
			c.sweep(ctx)
			c.sweepBusy.Store(false)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep scans notices around the airport itself and alerts once per notice
// id never seen before, independent of aircraft activity.
func (c *Correlator) sweep(ctx context.Context) {
	notices, err := c.querySource(ctx)
	if err != nil {
		return
	}

	now := time.Now().UTC()
	for _, n := range notices {
		distKm := geo.DistanceMeters(c.airport, n.Position) / 1000
		if distKm > c.cfg.AirportRadiusKm || !n.Active(now) {
			continue
		}

		c.seenMu.Lock()
		_, seen := c.seen[n.ID]
		if !seen {
			c.seen[n.ID] = struct{}{}
		}
		c.seenMu.Unlock()
		if seen {
			continue
		}

		c.logger.Info("New notice near airport",
			logger.String("notice_id", n.ID),
			logger.String("category", n.Category),
			logger.Int("priority", n.Priority))
		c.bus.Publish(events.Event{
			Kind:      events.KindNewNotice,
			Timestamp: now,
			NewNotice: &events.NewNotice{
				NoticeID: n.ID,
				Category: n.Category,
				Priority: n.Priority,
				Summary:  n.Description,
			},
		})
	}
}

func (c *Correlator) querySource(ctx context.Context) ([]Notice, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.engine.NoteNoticeQuery()
	notices, err := c.source.GetActive(ctx)
	if err != nil {
		c.logger.Error("Notice source query failed", logger.Error(err))
		return nil, err
	}
	return notices, nil
}
