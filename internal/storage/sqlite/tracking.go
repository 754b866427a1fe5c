// Package sqlite implements the aircraft data store on embedded SQLite: a
// read-write tracking store for position samples, flight records and events,
// and a read-mostly registry store for aircraft reference data.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/pkg/logger"
	_ "modernc.org/sqlite"
)

// TrackingStorage is the SQLite-backed read-write tracking store. It
// implements tracking.Storage.
type TrackingStorage struct {
	db                *sql.DB
	logger            *logger.Logger
	maxPositionsInAPI int

	sweepBusy atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewTrackingStorage opens (or creates) the tracking database and its schema.
func NewTrackingStorage(dbPath string, maxPositionsInAPI int, log *logger.Logger) (*TrackingStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite tracking storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size=10000"); err != nil {
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}

	if err := initTrackingSchema(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &TrackingStorage{
		db:                db,
		logger:            storageLogger,
		maxPositionsInAPI: maxPositionsInAPI,
		stopCh:            make(chan struct{}),
	}, nil
}

// Close stops the retention sweep and closes the database.
func (s *TrackingStorage) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initTrackingSchema(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing tracking database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS position_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			icao24 TEXT NOT NULL,
			callsign TEXT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			altitude_ft REAL,
			speed_kt REAL,
			heading_deg REAL,
			squawk TEXT,
			timestamp TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create position_samples table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS flight_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			icao24 TEXT NOT NULL,
			callsign TEXT,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			start_lat REAL NOT NULL,
			start_lon REAL NOT NULL,
			end_lat REAL NOT NULL,
			end_lon REAL NOT NULL,
			max_altitude_ft REAL DEFAULT 0,
			max_speed_kt REAL DEFAULT 0,
			distance_m REAL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active'
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create flight_records table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS aircraft_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			icao24 TEXT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			snapshot TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create aircraft_events table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_positions_icao_time ON position_samples(icao24, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_flights_icao_status ON flight_records(icao24, status)",
		"CREATE INDEX IF NOT EXISTS idx_events_icao_type_time ON aircraft_events(icao24, event_type, timestamp)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// StorePosition appends one position sample.
func (s *TrackingStorage) StorePosition(sample tracking.PositionSample) error {
	_, err := s.db.Exec(`
		INSERT INTO position_samples (icao24, callsign, lat, lon, altitude_ft, speed_kt, heading_deg, squawk, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sample.ICAO24, sample.Callsign, sample.Lat, sample.Lon, sample.AltitudeFt,
		sample.SpeedKt, sample.HeadingDeg, sample.Squawk, sample.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to store position: %w", err)
	}
	return nil
}

// StoreEvent appends one phase-transition event. The full sample snapshot is
// stored as JSON alongside the indexed columns.
func (s *TrackingStorage) StoreEvent(evt tracking.AircraftEvent) error {
	snapshot, err := json.Marshal(evt.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal event snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO aircraft_events (icao24, event_type, timestamp, snapshot)
		VALUES (?, ?, ?, ?)
	`, evt.ICAO24, evt.EventType, evt.Timestamp.UTC(), string(snapshot))
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// UpsertFlight updates the flight record for one tracked session, creating it
// when none exists. The session is identified by (icao24, start_time): an
// evicted aircraft's record stays active until the retention sweep closes it,
// so a re-entering aircraft starts a fresh row instead of overwriting the
// previous session's aggregates.
func (s *TrackingStorage) UpsertFlight(rec tracking.FlightRecord) error {
	res, err := s.db.Exec(`
		UPDATE flight_records
		SET callsign = ?, end_time = ?, end_lat = ?, end_lon = ?,
			max_altitude_ft = ?, max_speed_kt = ?, distance_m = ?, status = ?
		WHERE icao24 = ? AND start_time = ? AND status = 'active'
	`, rec.Callsign, rec.EndTime.UTC(), rec.EndPosition.Lat, rec.EndPosition.Lon,
		rec.MaxAltitudeFt, rec.MaxSpeedKt, rec.DistanceM, string(rec.Status), rec.ICAO24, rec.StartTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to update flight record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO flight_records (icao24, callsign, start_time, end_time, start_lat, start_lon, end_lat, end_lon,
			max_altitude_ft, max_speed_kt, distance_m, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ICAO24, rec.Callsign, rec.StartTime.UTC(), rec.EndTime.UTC(),
		rec.StartPosition.Lat, rec.StartPosition.Lon, rec.EndPosition.Lat, rec.EndPosition.Lon,
		rec.MaxAltitudeFt, rec.MaxSpeedKt, rec.DistanceM, string(rec.Status))
	if err != nil {
		return fmt.Errorf("failed to insert flight record: %w", err)
	}
	return nil
}

// GetHistory returns position samples from the last hoursBack hours, newest
// first, capped at the configured API limit. An empty icao24 matches all
// aircraft.
func (s *TrackingStorage) GetHistory(icao24 string, hoursBack int) ([]tracking.PositionSample, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	query := `
		SELECT icao24, callsign, lat, lon, altitude_ft, speed_kt, heading_deg, squawk, timestamp
		FROM position_samples
		WHERE timestamp >= ?
	`
	args := []interface{}{cutoff}
	if icao24 != "" {
		query += " AND icao24 = ?"
		args = append(args, icao24)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, s.maxPositionsInAPI)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query position history: %w", err)
	}
	defer rows.Close()

	var samples []tracking.PositionSample
	for rows.Next() {
		var sm tracking.PositionSample
		var callsign, squawk sql.NullString
		if err := rows.Scan(&sm.ICAO24, &callsign, &sm.Lat, &sm.Lon, &sm.AltitudeFt,
			&sm.SpeedKt, &sm.HeadingDeg, &squawk, &sm.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		sm.Callsign = callsign.String
		sm.Squawk = squawk.String
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// GetFlights returns flight records whose end time falls within the last
// hoursBack hours, newest first. An empty icao24 matches all aircraft.
func (s *TrackingStorage) GetFlights(icao24 string, hoursBack int) ([]tracking.FlightRecord, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	query := `
		SELECT id, icao24, callsign, start_time, end_time, start_lat, start_lon, end_lat, end_lon,
			max_altitude_ft, max_speed_kt, distance_m, status
		FROM flight_records
		WHERE end_time >= ?
	`
	args := []interface{}{cutoff}
	if icao24 != "" {
		query += " AND icao24 = ?"
		args = append(args, icao24)
	}
	query += " ORDER BY end_time DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight records: %w", err)
	}
	defer rows.Close()

	var records []tracking.FlightRecord
	for rows.Next() {
		var rec tracking.FlightRecord
		var callsign sql.NullString
		var status string
		if err := rows.Scan(&rec.ID, &rec.ICAO24, &callsign, &rec.StartTime, &rec.EndTime,
			&rec.StartPosition.Lat, &rec.StartPosition.Lon, &rec.EndPosition.Lat, &rec.EndPosition.Lon,
			&rec.MaxAltitudeFt, &rec.MaxSpeedKt, &rec.DistanceM, &status); err != nil {
			return nil, fmt.Errorf("failed to scan flight record: %w", err)
		}
		rec.Callsign = callsign.String
		rec.Status = tracking.FlightStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRecentEvents returns events from the last hoursBack hours, newest first,
// optionally filtered to one event type.
func (s *TrackingStorage) GetRecentEvents(hoursBack int, eventType string) ([]tracking.AircraftEvent, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hoursBack) * time.Hour)

	query := `
		SELECT id, icao24, event_type, timestamp, snapshot
		FROM aircraft_events
		WHERE timestamp >= ?
	`
	args := []interface{}{cutoff}
	if eventType != "" {
		query += " AND event_type = ?"
		args = append(args, eventType)
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var evts []tracking.AircraftEvent
	for rows.Next() {
		var evt tracking.AircraftEvent
		var snapshot sql.NullString
		if err := rows.Scan(&evt.ID, &evt.ICAO24, &evt.EventType, &evt.Timestamp, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if snapshot.Valid && snapshot.String != "" {
			if err := json.Unmarshal([]byte(snapshot.String), &evt.Snapshot); err != nil {
				s.logger.Warn("Failed to decode event snapshot",
					logger.Int64("event_id", evt.ID),
					logger.Error(err))
			}
		}
		evts = append(evts, evt)
	}
	return evts, rows.Err()
}

// StoreStats summarizes the store contents.
type StoreStats struct {
	Positions     int64 `json:"positions"`
	Events        int64 `json:"events"`
	Flights       int64 `json:"flights"`
	ActiveFlights int64 `json:"active_flights"`
}

// GetStats returns row counts for all tracking tables.
func (s *TrackingStorage) GetStats() (StoreStats, error) {
	var st StoreStats
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM position_samples", &st.Positions},
		{"SELECT COUNT(*) FROM aircraft_events", &st.Events},
		{"SELECT COUNT(*) FROM flight_records", &st.Flights},
		{"SELECT COUNT(*) FROM flight_records WHERE status = 'active'", &st.ActiveFlights},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return st, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	return st, nil
}

// StartRetentionSweep launches the periodic cleanup that enforces the
// retention window. A sweep that is still running when the next tick fires
// is skipped, not queued.
func (s *TrackingStorage) StartRetentionSweep(interval time.Duration, retentionDays int) {
	if interval <= 0 {
		interval = time.Hour
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !s.sweepBusy.CompareAndSwap(false, true) {
					s.logger.Warn("Retention sweep still running, skipping cycle")
					continue
				}
				if err := s.RunRetentionSweep(retentionDays); err != nil {
					s.logger.Error("Retention sweep failed", logger.Error(err))
				}
				s.sweepBusy.Store(false)
			case <-s.stopCh:
				return
			}
		}
	}()
	s.logger.Info("Retention sweep started",
		logger.Duration("interval", interval),
		logger.Int("retention_days", retentionDays))
}

// RunRetentionSweep deletes position samples and events older than the
// retention window and closes active flight records that aged out of it.
func (s *TrackingStorage) RunRetentionSweep(retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	res, err := s.db.Exec("DELETE FROM position_samples WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old positions: %w", err)
	}
	positions, _ := res.RowsAffected()

	res, err = s.db.Exec("DELETE FROM aircraft_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old events: %w", err)
	}
	events, _ := res.RowsAffected()

	res, err = s.db.Exec("UPDATE flight_records SET status = 'completed' WHERE status = 'active' AND end_time < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to close stale flights: %w", err)
	}
	flights, _ := res.RowsAffected()

	s.logger.Info("Retention sweep completed",
		logger.Int64("positions_deleted", positions),
		logger.Int64("events_deleted", events),
		logger.Int64("flights_closed", flights))
	return nil
}

var _ tracking.Storage = (*TrackingStorage)(nil)
