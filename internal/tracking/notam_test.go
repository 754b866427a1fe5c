package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/events"
	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/pkg/logger"
)

type fakeNoticeSource struct {
	notices []Notice
	err     error
}

func (s *fakeNoticeSource) GetActive(ctx context.Context) ([]Notice, error) {
	return s.notices, s.err
}

func testNoticesConfig() config.NoticesConfig {
	cfg := config.Default().Notices
	cfg.Enabled = true
	cfg.QueriesPerSecond = 1000 // no throttling in tests
	return cfg
}

func newTestCorrelator(src NoticeSource, cfg config.NoticesConfig, bus *events.Bus) (*Correlator, *Engine) {
	e := newTestEngine(nil, bus)
	c := NewCorrelator(cfg, src, e, bus, testReference, logger.NewNop())
	return c, e
}

func approachTransition() events.PhaseTransition {
	return events.PhaseTransition{
		ICAO24:    "c0ffee",
		Callsign:  "TST123",
		FromPhase: string(PhaseEnRoute),
		ToPhase:   string(PhaseApproach),
		Lat:       testReference.Lat,
		Lon:       testReference.Lon,
	}
}

func collectAlerts(bus *events.Bus) *[]events.Event {
	var got []events.Event
	bus.Subscribe(func(evt events.Event) {
		if evt.Kind == events.KindNoticeAlert || evt.Kind == events.KindNewNotice {
			got = append(got, evt)
		}
	})
	return &got
}

func TestCorrelate(t *testing.T) {
	nearby := testReference

	t.Run("alerts on relevant categories only", func(t *testing.T) {
		src := &fakeNoticeSource{notices: []Notice{
			{ID: "N1", Category: "runway", Priority: 5, Position: nearby, Description: "runway 05 closed"},
			{ID: "N2", Category: "weather", Priority: 5, Position: nearby, Description: "thunderstorms"},
		}}
		bus := events.NewBus(logger.NewNop())
		got := collectAlerts(bus)
		c, e := newTestCorrelator(src, testNoticesConfig(), bus)

		c.correlate(context.Background(), approachTransition())

		if len(*got) != 1 {
			t.Fatalf("alerts = %d, want 1", len(*got))
		}
		alert := (*got)[0].NoticeAlert
		if alert == nil || alert.NoticeID != "N1" {
			t.Errorf("unexpected alert %+v", (*got)[0])
		}
		st := e.Stats()
		if st.NoticeQueries != 1 || st.NoticeAlerts != 1 {
			t.Errorf("counters = %d/%d, want 1/1", st.NoticeQueries, st.NoticeAlerts)
		}
	})

	t.Run("takeoff uses the departure category set", func(t *testing.T) {
		src := &fakeNoticeSource{notices: []Notice{
			{ID: "N1", Category: "takeoff", Priority: 5, Position: nearby},
			{ID: "N2", Category: "landing", Priority: 5, Position: nearby},
		}}
		bus := events.NewBus(logger.NewNop())
		got := collectAlerts(bus)
		c, _ := newTestCorrelator(src, testNoticesConfig(), bus)

		tr := approachTransition()
		tr.ToPhase = string(PhaseTakeoff)
		c.correlate(context.Background(), tr)

		if len(*got) != 1 || (*got)[0].NoticeAlert.NoticeID != "N1" {
			t.Fatalf("expected one takeoff alert for N1, got %+v", *got)
		}
	})

	t.Run("filters by priority, distance and validity", func(t *testing.T) {
		past := time.Now().UTC().Add(-2 * time.Hour)
		farAway := geo.Point{Lat: testReference.Lat + 1, Lon: testReference.Lon}
		src := &fakeNoticeSource{notices: []Notice{
			{ID: "LOW", Category: "runway", Priority: 1, Position: nearby},
			{ID: "FAR", Category: "runway", Priority: 5, Position: farAway},
			{ID: "EXPIRED", Category: "runway", Priority: 5, Position: nearby, EndTime: &past},
		}}
		cfg := testNoticesConfig()
		cfg.MinPriority = 3
		bus := events.NewBus(logger.NewNop())
		got := collectAlerts(bus)
		c, _ := newTestCorrelator(src, cfg, bus)

		c.correlate(context.Background(), approachTransition())

		if len(*got) != 0 {
			t.Errorf("alerts = %d, want 0; got %+v", len(*got), *got)
		}
	})

	t.Run("source failure is swallowed", func(t *testing.T) {
		src := &fakeNoticeSource{err: errors.New("source down")}
		bus := events.NewBus(logger.NewNop())
		got := collectAlerts(bus)
		c, _ := newTestCorrelator(src, testNoticesConfig(), bus)

		c.correlate(context.Background(), approachTransition())

		if len(*got) != 0 {
			t.Errorf("alerts = %d, want 0", len(*got))
		}
	})
}

func TestSweep(t *testing.T) {
	src := &fakeNoticeSource{notices: []Notice{
		{ID: "N1", Category: "airport", Priority: 5, Position: testReference, Description: "taxiway closed"},
	}}
	bus := events.NewBus(logger.NewNop())
	got := collectAlerts(bus)
	c, _ := newTestCorrelator(src, testNoticesConfig(), bus)

	c.sweep(context.Background())
	c.sweep(context.Background())

	if len(*got) != 1 {
		t.Fatalf("new-notice alerts = %d, want 1 (seen set must dedupe)", len(*got))
	}
	nn := (*got)[0].NewNotice
	if nn == nil || nn.NoticeID != "N1" {
		t.Errorf("unexpected event %+v", (*got)[0])
	}

	// A notice appearing later is alerted on the next sweep.
	src.notices = append(src.notices, Notice{ID: "N2", Category: "runway", Priority: 5, Position: testReference})
	c.sweep(context.Background())
	if len(*got) != 2 {
		t.Errorf("alerts = %d, want 2", len(*got))
	}
}
