package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[station]
airport_code = "CYOW"
latitude = 45.3225
longitude = -75.6692

[tracking]
approach_radius_m = 30000.0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Station.AirportCode != "CYOW" {
		t.Errorf("airport = %q, want CYOW", cfg.Station.AirportCode)
	}
	if cfg.Tracking.ApproachRadiusM != 30000 {
		t.Errorf("approach radius = %v, want 30000", cfg.Tracking.ApproachRadiusM)
	}
	// Absent keys keep their defaults.
	if cfg.Tracking.EnRouteMinAltFt != 3000 {
		t.Errorf("enroute threshold = %v, want default 3000", cfg.Tracking.EnRouteMinAltFt)
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("retention = %v, want default 30", cfg.Storage.RetentionDays)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"latitude out of range", func(c *Config) { c.Station.Latitude = 91 }},
		{"longitude out of range", func(c *Config) { c.Station.Longitude = -181 }},
		{"zero approach radius", func(c *Config) { c.Tracking.ApproachRadiusM = 0 }},
		{"threshold radius above approach radius", func(c *Config) {
			c.Tracking.RunwayThresholdRadiusM = c.Tracking.ApproachRadiusM + 1
		}},
		{"unknown vector category", func(c *Config) {
			c.Vectors.Sources = []VectorSource{{Name: "x", Category: "roads", Path: "x.txt"}}
		}},
		{"zero retention", func(c *Config) { c.Storage.RetentionDays = 0 }},
		{"feed enabled without url", func(c *Config) { c.Feed.Enabled = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}
