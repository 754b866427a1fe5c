package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/pkg/logger"
)

func newTestTrackingStorage(t *testing.T) *TrackingStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracking.db")
	s, err := NewTrackingStorage(path, 500, logger.NewNop())
	if err != nil {
		t.Fatalf("NewTrackingStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSample(icao24 string, ts time.Time) tracking.PositionSample {
	return tracking.PositionSample{
		ICAO24:     icao24,
		Callsign:   "TST123",
		Lat:        43.6777,
		Lon:        -79.6248,
		AltitudeFt: 2500,
		SpeedKt:    180,
		HeadingDeg: 57,
		Squawk:     "4521",
		Timestamp:  ts,
	}
}

func TestPositionHistory(t *testing.T) {
	s := newTestTrackingStorage(t)
	now := time.Now().UTC()

	if err := s.StorePosition(testSample("c0ffee", now.Add(-time.Minute))); err != nil {
		t.Fatalf("StorePosition: %v", err)
	}
	if err := s.StorePosition(testSample("c0ffee", now)); err != nil {
		t.Fatalf("StorePosition: %v", err)
	}
	if err := s.StorePosition(testSample("aaaaaa", now)); err != nil {
		t.Fatalf("StorePosition: %v", err)
	}

	t.Run("filtered by icao24", func(t *testing.T) {
		got, err := s.GetHistory("c0ffee", 1)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("samples = %d, want 2", len(got))
		}
		// Newest first.
		if got[0].Timestamp.Before(got[1].Timestamp) {
			t.Error("history not in newest-first order")
		}
		if got[0].Callsign != "TST123" || got[0].Squawk != "4521" {
			t.Errorf("unexpected sample %+v", got[0])
		}
	})

	t.Run("all aircraft", func(t *testing.T) {
		got, err := s.GetHistory("", 1)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(got) != 3 {
			t.Errorf("samples = %d, want 3", len(got))
		}
	})

	t.Run("window excludes old samples", func(t *testing.T) {
		if err := s.StorePosition(testSample("old000", now.Add(-48*time.Hour))); err != nil {
			t.Fatalf("StorePosition: %v", err)
		}
		got, err := s.GetHistory("old000", 1)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("samples = %d, want 0", len(got))
		}
	})
}

func TestUpsertFlight(t *testing.T) {
	s := newTestTrackingStorage(t)
	now := time.Now().UTC()

	rec := tracking.FlightRecord{
		ICAO24:        "c0ffee",
		Callsign:      "TST123",
		StartTime:     now.Add(-10 * time.Minute),
		EndTime:       now,
		StartPosition: geo.Point{Lat: 43.5, Lon: -79.5},
		EndPosition:   geo.Point{Lat: 43.6, Lon: -79.6},
		MaxAltitudeFt: 2500,
		MaxSpeedKt:    180,
		DistanceM:     15000,
		Status:        tracking.FlightActive,
	}
	if err := s.UpsertFlight(rec); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}

	// Second upsert extends the same record instead of inserting.
	rec.EndTime = now.Add(time.Minute)
	rec.MaxAltitudeFt = 3000
	if err := s.UpsertFlight(rec); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}

	flights, err := s.GetFlights("c0ffee", 1)
	if err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	if len(flights) != 1 {
		t.Fatalf("flights = %d, want 1", len(flights))
	}
	if flights[0].MaxAltitudeFt != 3000 {
		t.Errorf("max altitude = %v, want 3000", flights[0].MaxAltitudeFt)
	}
	if flights[0].Status != tracking.FlightActive {
		t.Errorf("status = %v, want active", flights[0].Status)
	}

	// A completed record does not match the active upsert; a new session
	// creates a fresh row.
	rec.Status = tracking.FlightCompleted
	if err := s.UpsertFlight(rec); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}
	rec.Status = tracking.FlightActive
	if err := s.UpsertFlight(rec); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}
	flights, err = s.GetFlights("c0ffee", 1)
	if err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	if len(flights) != 2 {
		t.Errorf("flights = %d, want 2", len(flights))
	}
}

func TestUpsertFlightSessionIsolation(t *testing.T) {
	s := newTestTrackingStorage(t)
	now := time.Now().UTC()

	// First session: aircraft tracked, then evicted. Eviction leaves the
	// record active for the retention sweep to close.
	first := tracking.FlightRecord{
		ICAO24:        "c0ffee",
		Callsign:      "TST123",
		StartTime:     now.Add(-2 * time.Hour),
		EndTime:       now.Add(-90 * time.Minute),
		StartPosition: geo.Point{Lat: 43.5, Lon: -79.5},
		EndPosition:   geo.Point{Lat: 43.9, Lon: -79.9},
		MaxAltitudeFt: 3000,
		MaxSpeedKt:    220,
		DistanceM:     40000,
		Status:        tracking.FlightActive,
	}
	if err := s.UpsertFlight(first); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}

	// Same aircraft re-enters the radius before the sweep ran. The new
	// session's restarted aggregates must open a fresh row, not clobber the
	// first session's.
	second := first
	second.StartTime = now.Add(-10 * time.Minute)
	second.EndTime = now
	second.MaxAltitudeFt = 1200
	second.MaxSpeedKt = 160
	second.DistanceM = 5000
	if err := s.UpsertFlight(second); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}

	flights, err := s.GetFlights("c0ffee", 24)
	if err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	if len(flights) != 2 {
		t.Fatalf("flights = %d, want 2 (one per tracked session)", len(flights))
	}
	// Newest first: the second session, then the untouched first.
	if flights[0].MaxAltitudeFt != 1200 || flights[0].DistanceM != 5000 {
		t.Errorf("second session = %v ft / %v m, want 1200 / 5000",
			flights[0].MaxAltitudeFt, flights[0].DistanceM)
	}
	if flights[1].MaxAltitudeFt != 3000 || flights[1].DistanceM != 40000 {
		t.Errorf("first session = %v ft / %v m, want its original 3000 / 40000",
			flights[1].MaxAltitudeFt, flights[1].DistanceM)
	}

	// Later updates for the second session keep extending its own row.
	second.EndTime = now.Add(time.Minute)
	second.MaxAltitudeFt = 1500
	if err := s.UpsertFlight(second); err != nil {
		t.Fatalf("UpsertFlight: %v", err)
	}
	flights, err = s.GetFlights("c0ffee", 24)
	if err != nil {
		t.Fatalf("GetFlights: %v", err)
	}
	if len(flights) != 2 {
		t.Fatalf("flights = %d, want still 2", len(flights))
	}
	if flights[0].MaxAltitudeFt != 1500 {
		t.Errorf("second session max altitude = %v, want 1500", flights[0].MaxAltitudeFt)
	}
}

func TestEvents(t *testing.T) {
	s := newTestTrackingStorage(t)
	now := time.Now().UTC()

	evts := []tracking.AircraftEvent{
		{ICAO24: "c0ffee", EventType: "approach", Timestamp: now.Add(-time.Minute), Snapshot: testSample("c0ffee", now.Add(-time.Minute))},
		{ICAO24: "c0ffee", EventType: "landing", Timestamp: now, Snapshot: testSample("c0ffee", now)},
	}
	for _, evt := range evts {
		if err := s.StoreEvent(evt); err != nil {
			t.Fatalf("StoreEvent: %v", err)
		}
	}

	t.Run("all types", func(t *testing.T) {
		got, err := s.GetRecentEvents(1, "")
		if err != nil {
			t.Fatalf("GetRecentEvents: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("events = %d, want 2", len(got))
		}
		if got[0].EventType != "landing" {
			t.Errorf("first event = %q, want landing (newest first)", got[0].EventType)
		}
		if got[0].Snapshot.AltitudeFt != 2500 {
			t.Errorf("snapshot altitude = %v, want 2500", got[0].Snapshot.AltitudeFt)
		}
	})

	t.Run("filtered by type", func(t *testing.T) {
		got, err := s.GetRecentEvents(1, "approach")
		if err != nil {
			t.Fatalf("GetRecentEvents: %v", err)
		}
		if len(got) != 1 || got[0].EventType != "approach" {
			t.Errorf("unexpected events %+v", got)
		}
	})
}

func TestRetentionSweep(t *testing.T) {
	s := newTestTrackingStorage(t)
	now := time.Now().UTC()
	old := now.AddDate(0, 0, -40)

	if err := s.StorePosition(testSample("c0ffee", old)); err != nil {
		t.Fatal(err)
	}
	if err := s.StorePosition(testSample("c0ffee", now)); err != nil {
		t.Fatal(err)
	}
	if err := s.StoreEvent(tracking.AircraftEvent{ICAO24: "c0ffee", EventType: "approach", Timestamp: old}); err != nil {
		t.Fatal(err)
	}
	stale := tracking.FlightRecord{
		ICAO24: "stale0", StartTime: old, EndTime: old,
		StartPosition: geo.Point{}, EndPosition: geo.Point{},
		Status: tracking.FlightActive,
	}
	if err := s.UpsertFlight(stale); err != nil {
		t.Fatal(err)
	}

	if err := s.RunRetentionSweep(30); err != nil {
		t.Fatalf("RunRetentionSweep: %v", err)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.Positions != 1 {
		t.Errorf("positions = %d, want 1", st.Positions)
	}
	if st.Events != 0 {
		t.Errorf("events = %d, want 0", st.Events)
	}
	if st.ActiveFlights != 0 {
		t.Errorf("active flights = %d, want 0 (stale flight must be completed)", st.ActiveFlights)
	}
}

func TestRetentionSweepInterval(t *testing.T) {
	// A misconfigured zero interval must fall back instead of panicking in
	// time.NewTicker.
	s := newTestTrackingStorage(t)
	s.StartRetentionSweep(0, 30)
}

func seedRegistry(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(`
		CREATE TABLE aircraft_registry (
			icao24 TEXT PRIMARY KEY,
			registration TEXT,
			type TEXT,
			manufacturer TEXT,
			operator TEXT,
			country TEXT
		)
	`); err != nil {
		t.Fatal(err)
	}
	rows := [][]string{
		{"c0ffee", "C-FABC", "B738", "Boeing", "Acme Air", "Canada"},
		{"aaaaaa", "N123AB", "A320", "Airbus", "Delta", "United States"},
	}
	for _, r := range rows {
		if _, err := db.Exec(
			"INSERT INTO aircraft_registry VALUES (?, ?, ?, ?, ?, ?)",
			r[0], r[1], r[2], r[3], r[4], r[5]); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestRegistryStorage(t *testing.T) {
	s, err := NewRegistryStorage(seedRegistry(t), 100, logger.NewNop())
	if err != nil {
		t.Fatalf("NewRegistryStorage: %v", err)
	}
	defer s.Close()

	t.Run("bulk-loaded lookup", func(t *testing.T) {
		entry, ok := s.GetRegistration("c0ffee")
		if !ok {
			t.Fatal("expected a hit")
		}
		if entry.Registration != "C-FABC" || entry.Manufacturer != "Boeing" {
			t.Errorf("unexpected entry %+v", entry)
		}
	})

	t.Run("unknown icao24", func(t *testing.T) {
		if _, ok := s.GetRegistration("ffffff"); ok {
			t.Error("expected a miss")
		}
	})

	t.Run("search with substring filters", func(t *testing.T) {
		got := s.SearchRegistry(RegistryFilters{Manufacturer: "boe"})
		if len(got) != 1 || got[0].ICAO24 != "c0ffee" {
			t.Errorf("unexpected results %+v", got)
		}
		got = s.SearchRegistry(RegistryFilters{Country: "xyz"})
		if len(got) != 0 {
			t.Errorf("results = %d, want 0", len(got))
		}
	})

	t.Run("search result cap", func(t *testing.T) {
		capped, err := NewRegistryStorage(seedRegistry(t), 1, logger.NewNop())
		if err != nil {
			t.Fatalf("NewRegistryStorage: %v", err)
		}
		defer capped.Close()
		if got := capped.SearchRegistry(RegistryFilters{}); len(got) != 1 {
			t.Errorf("results = %d, want 1", len(got))
		}
	})
}
