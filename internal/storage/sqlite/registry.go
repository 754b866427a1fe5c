package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/skymond/radarscope/pkg/logger"
)

// RegistryEntry is aircraft reference data keyed by icao24.
type RegistryEntry struct {
	ICAO24       string `json:"icao24"`
	Registration string `json:"registration"`
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Operator     string `json:"operator"`
	Country      string `json:"country"`
}

// RegistryFilters narrows a registry search. Empty fields match everything;
// non-empty fields are case-insensitive substring matches.
type RegistryFilters struct {
	Registration string
	Manufacturer string
	Type         string
	Country      string
}

// RegistryStorage serves read-mostly aircraft reference data. The whole
// table is loaded into memory at startup; lookups that miss the cache fall
// back to the database and populate it.
type RegistryStorage struct {
	db          *sql.DB
	logger      *logger.Logger
	searchLimit int

	mu    sync.RWMutex
	cache map[string]RegistryEntry
}

// NewRegistryStorage opens the registry database and bulk-loads the cache.
func NewRegistryStorage(dbPath string, searchLimit int, log *logger.Logger) (*RegistryStorage, error) {
	registryLogger := log.Named("registry")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		return nil, fmt.Errorf("failed to set query_only mode: %w", err)
	}

	s := &RegistryStorage{
		db:          db,
		logger:      registryLogger,
		searchLimit: searchLimit,
		cache:       make(map[string]RegistryEntry),
	}

	if err := s.bulkLoad(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the registry database.
func (s *RegistryStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *RegistryStorage) bulkLoad() error {
	rows, err := s.db.Query(`
		SELECT icao24, registration, type, manufacturer, operator, country
		FROM aircraft_registry
	`)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanRegistryEntry(rows)
		if err != nil {
			return err
		}
		s.cache[entry.ICAO24] = entry
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.logger.Info("Registry loaded", logger.Int("entries", len(s.cache)))
	return nil
}

// GetRegistration returns the registry entry for an icao24. Cache misses
// fall back to the database and populate the cache on a hit.
func (s *RegistryStorage) GetRegistration(icao24 string) (RegistryEntry, bool) {
	s.mu.RLock()
	entry, ok := s.cache[icao24]
	s.mu.RUnlock()
	if ok {
		return entry, true
	}

	row := s.db.QueryRow(`
		SELECT icao24, registration, type, manufacturer, operator, country
		FROM aircraft_registry
		WHERE icao24 = ?
	`, icao24)
	entry, err := scanRegistryEntry(row)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("Registry lookup failed",
				logger.String("icao24", icao24),
				logger.Error(err))
		}
		return RegistryEntry{}, false
	}

	s.mu.Lock()
	s.cache[entry.ICAO24] = entry
	s.mu.Unlock()
	return entry, true
}

// SearchRegistry scans the cache with substring filters. Results are capped
// at the configured search limit.
func (s *RegistryStorage) SearchRegistry(filters RegistryFilters) []RegistryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RegistryEntry
	for _, entry := range s.cache {
		if !matchesFilter(entry.Registration, filters.Registration) ||
			!matchesFilter(entry.Manufacturer, filters.Manufacturer) ||
			!matchesFilter(entry.Type, filters.Type) ||
			!matchesFilter(entry.Country, filters.Country) {
			continue
		}
		out = append(out, entry)
		if len(out) >= s.searchLimit {
			break
		}
	}
	return out
}

func matchesFilter(value, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistryEntry(row rowScanner) (RegistryEntry, error) {
	var entry RegistryEntry
	var registration, acType, manufacturer, operator, country sql.NullString
	if err := row.Scan(&entry.ICAO24, &registration, &acType, &manufacturer, &operator, &country); err != nil {
		return RegistryEntry{}, err
	}
	entry.Registration = registration.String
	entry.Type = acType.String
	entry.Manufacturer = manufacturer.String
	entry.Operator = operator.String
	entry.Country = country.String
	return entry, nil
}
