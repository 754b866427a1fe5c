package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Station  StationConfig  `toml:"station"`  // Physical location settings
	Tracking TrackingConfig `toml:"tracking"` // Flight phase classification settings
	Notices  NoticesConfig  `toml:"notices"`  // Airspace notice correlation settings
	Vectors  VectorsConfig  `toml:"vectors"`  // Airport vector geometry settings
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
	Feed     FeedConfig     `toml:"feed"`     // Position feed ingestion settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Host             string `toml:"host"`                  // Host address to bind to
	Port             int    `toml:"port"`                  // Primary HTTP port for the server
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StationConfig contains the physical location of the monitored airport
type StationConfig struct {
	AirportCode   string  `toml:"airport_code"`    // ICAO code of the airport (e.g., "CYYZ")
	Latitude      float64 `toml:"latitude"`        // Reference point latitude in decimal degrees
	Longitude     float64 `toml:"longitude"`       // Reference point longitude in decimal degrees
	ElevationFeet int     `toml:"elevation_feet"`  // Airport elevation above sea level in feet
	RunwaysDBPath string  `toml:"runways_db_path"` // Path to runway database JSON file (array order is the scoring tie-break order)
}

// TrackingConfig contains settings for flight phase classification and
// runway assignment. The altitude/speed thresholds default to the standard
// rule set; changing them changes phase semantics, not rule precedence.
type TrackingConfig struct {
	ApproachRadiusM        float64 `toml:"approach_radius_m"`         // Tracking/eviction radius around the reference point in meters
	RunwayThresholdRadiusM float64 `toml:"runway_threshold_radius_m"` // Radius around the reference point used for landing/takeoff rules

	EnRouteMinAltFt    float64 `toml:"enroute_min_alt_ft"`    // Altitude above which aircraft are always en_route
	ApproachMinAltFt   float64 `toml:"approach_min_alt_ft"`   // Lower altitude bound for the approach rule
	ApproachMinSpeedKt float64 `toml:"approach_min_speed_kt"` // Minimum speed for the approach rule
	LandingMaxAltFt    float64 `toml:"landing_max_alt_ft"`    // Altitude below which the landing rule applies
	TakeoffMaxAltFt    float64 `toml:"takeoff_max_alt_ft"`    // Altitude below which the takeoff rule applies
	TakeoffMinSpeedKt  float64 `toml:"takeoff_min_speed_kt"`  // Minimum speed for takeoff/departure rules

	// Bearings computed from coordinates are true; some feeds report
	// magnetic headings. When enabled, threshold bearings are corrected by
	// the local magnetic declination before heading deviation is scored.
	MagneticHeadings bool `toml:"magnetic_headings"`
}

// NoticesConfig contains settings for airspace notice (NOTAM) correlation
type NoticesConfig struct {
	Enabled           bool    `toml:"enabled"`                // Enable notice correlation
	SourcePath        string  `toml:"source_path"`            // Path to the notice database JSON file
	SearchRadiusKm    float64 `toml:"search_radius_km"`       // Radius around the aircraft for transition correlation
	AirportRadiusKm   float64 `toml:"airport_radius_km"`      // Radius around the airport for the background sweep
	MinPriority       int     `toml:"min_priority"`           // Minimum notice priority to alert on
	SweepIntervalMins int     `toml:"sweep_interval_minutes"` // Background new-notice sweep period
	QueriesPerSecond  float64 `toml:"queries_per_second"`     // Rate limit for notice source queries

	CorrelateApproach bool `toml:"correlate_approach"` // Correlate on approach transitions
	CorrelateLanding  bool `toml:"correlate_landing"`  // Correlate on landing transitions
	CorrelateTakeoff  bool `toml:"correlate_takeoff"`  // Correlate on takeoff transitions
}

// VectorsConfig contains settings for airport vector geometry loading and
// render optimization
type VectorsConfig struct {
	Sources          []VectorSource `toml:"sources"`            // Vector geometry text sources
	MaxPolygonPoints int            `toml:"max_polygon_points"` // Rings above this point count get simplified
	DefaultTolerance float64        `toml:"default_tolerance"`  // Douglas-Peucker tolerance in degrees
	CacheTTLMinutes  int            `toml:"cache_ttl_minutes"`  // Optimized polygon cache time-to-live
	CacheSize        int            `toml:"cache_size"`         // Maximum cached optimized polygons
}

// VectorSource is a single fixed-format polygon text source
type VectorSource struct {
	Name     string `toml:"name"`     // Human-readable source name
	Category string `toml:"category"` // "buildings", "markings", or "layout"
	Path     string `toml:"path"`     // Path to the text file
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLiteBasePath      string `toml:"sqlite_base_path"`         // Base path for the tracking SQLite database file
	RegistryDBPath      string `toml:"registry_db_path"`         // Path to the read-only aircraft registry SQLite database
	RetentionDays       int    `toml:"retention_days"`           // Position/event retention window in days
	CleanupIntervalMins int    `toml:"cleanup_interval_minutes"` // Retention sweep period
	MaxPositionsInAPI   int    `toml:"max_positions_in_api"`     // Maximum positions returned per history query
	RegistrySearchLimit int    `toml:"registry_search_limit"`    // Result cap for registry searches
}

// FeedConfig contains settings for the position feed client
type FeedConfig struct {
	Enabled           bool   `toml:"enabled"`                // Enable the polling feed client
	SourceURL         string `toml:"source_url"`             // URL of a tar1090-style aircraft.json endpoint
	FetchIntervalSecs int    `toml:"fetch_interval_seconds"` // How often to fetch new position data
	TimeoutSecs       int    `toml:"timeout_seconds"`        // HTTP timeout for feed requests
}

// Default returns a configuration populated with working defaults. Loading a
// file overlays onto this, so absent keys keep their default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 30,
			IdleTimeoutSecs:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Tracking: TrackingConfig{
			ApproachRadiusM:        55560, // 30 NM
			RunwayThresholdRadiusM: 5000,
			EnRouteMinAltFt:        3000,
			ApproachMinAltFt:       500,
			ApproachMinSpeedKt:     50,
			LandingMaxAltFt:        500,
			TakeoffMaxAltFt:        1000,
			TakeoffMinSpeedKt:      100,
		},
		Notices: NoticesConfig{
			SearchRadiusKm:    50,
			AirportRadiusKm:   50,
			MinPriority:       0,
			SweepIntervalMins: 5,
			QueriesPerSecond:  5,
			CorrelateApproach: true,
			CorrelateLanding:  true,
			CorrelateTakeoff:  true,
		},
		Vectors: VectorsConfig{
			MaxPolygonPoints: 100,
			DefaultTolerance: 0.0001,
			CacheTTLMinutes:  5,
			CacheSize:        512,
		},
		Storage: StorageConfig{
			SQLiteBasePath:      "data",
			RetentionDays:       30,
			CleanupIntervalMins: 60,
			MaxPositionsInAPI:   500,
			RegistrySearchLimit: 100,
		},
		Feed: FeedConfig{
			FetchIntervalSecs: 2,
			TimeoutSecs:       10,
		},
	}
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	config := Default()
	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// LoadWithFallback loads configuration from the given path, or searches the
// conventional locations when no path is provided.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	for _, candidate := range []string{"configs/config.toml", "config.toml"} {
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
	}

	return nil, fmt.Errorf("no config file found in configs/ or the working directory")
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	if c.Station.Latitude < -90 || c.Station.Latitude > 90 {
		return fmt.Errorf("station latitude out of range: %f", c.Station.Latitude)
	}
	if c.Station.Longitude < -180 || c.Station.Longitude > 180 {
		return fmt.Errorf("station longitude out of range: %f", c.Station.Longitude)
	}
	if c.Tracking.ApproachRadiusM <= 0 {
		return fmt.Errorf("tracking approach_radius_m must be positive, got %f", c.Tracking.ApproachRadiusM)
	}
	if c.Tracking.RunwayThresholdRadiusM <= 0 {
		return fmt.Errorf("tracking runway_threshold_radius_m must be positive, got %f", c.Tracking.RunwayThresholdRadiusM)
	}
	if c.Tracking.RunwayThresholdRadiusM > c.Tracking.ApproachRadiusM {
		return fmt.Errorf("runway_threshold_radius_m (%f) cannot exceed approach_radius_m (%f)",
			c.Tracking.RunwayThresholdRadiusM, c.Tracking.ApproachRadiusM)
	}
	for _, src := range c.Vectors.Sources {
		switch src.Category {
		case "buildings", "markings", "layout":
		default:
			return fmt.Errorf("vector source %q has unknown category %q", src.Name, src.Category)
		}
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("storage retention_days must be positive, got %d", c.Storage.RetentionDays)
	}
	if c.Feed.Enabled && c.Feed.SourceURL == "" {
		return fmt.Errorf("feed is enabled but feed source_url is empty")
	}
	return nil
}
