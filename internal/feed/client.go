// Package feed polls a tar1090-style aircraft.json endpoint and pushes
// position samples into the tracking engine.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/pkg/logger"
)

// flexAltitude tolerates the "ground" sentinel some receivers emit for
// alt_baro.
type flexAltitude float64

func (a *flexAltitude) UnmarshalJSON(data []byte) error {
	if string(data) == `"ground"` {
		*a = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = flexAltitude(v)
	return nil
}

type rawTarget struct {
	Hex     string       `json:"hex"`
	Flight  string       `json:"flight"`
	Lat     *float64     `json:"lat"`
	Lon     *float64     `json:"lon"`
	AltBaro flexAltitude `json:"alt_baro"`
	GS      float64      `json:"gs"`
	Track   float64      `json:"track"`
	Heading *float64     `json:"true_heading"`
	Squawk  string       `json:"squawk"`
}

type rawFeed struct {
	Now      float64     `json:"now"`
	Aircraft []rawTarget `json:"aircraft"`
}

// Client periodically fetches the feed and forwards valid samples to the
// engine. Targets without a position are skipped.
type Client struct {
	cfg        config.FeedConfig
	engine     *tracking.Engine
	httpClient *http.Client
	logger     *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewClient creates a feed client.
func NewClient(cfg config.FeedConfig, engine *tracking.Engine, log *logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		engine: engine,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		},
		logger: log.Named("feed"),
		stopCh: make(chan struct{}),
	}
}

// Start launches the polling loop.
func (c *Client) Start(ctx context.Context) {
	interval := time.Duration(c.cfg.FetchIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := c.poll(ctx); err != nil {
					c.logger.Warn("Feed poll failed", logger.Error(err))
				}
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	c.logger.Info("Feed client started",
		logger.String("url", c.cfg.SourceURL),
		logger.Duration("interval", interval))
}

// Stop shuts down the polling loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("Feed client stopped")
}

func (c *Client) poll(ctx context.Context) error {
	data, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	samples := toSamples(data)
	var rejected int
	for _, sm := range samples {
		if err := c.engine.ProcessSample(sm); err != nil {
			if errors.Is(err, tracking.ErrInvalidSample) {
				rejected++
				continue
			}
			return err
		}
	}

	c.logger.Debug("Feed poll completed",
		logger.Int("targets", len(data.Aircraft)),
		logger.Int("samples", len(samples)),
		logger.Int("rejected", rejected))
	return nil
}

func (c *Client) fetch(ctx context.Context) (*rawFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	var data rawFeed
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return &data, nil
}

// toSamples converts a raw feed snapshot into position samples. Targets
// without coordinates are dropped; true_heading is preferred over track when
// present.
func toSamples(data *rawFeed) []tracking.PositionSample {
	ts := time.Now().UTC()
	if data.Now > 0 {
		ts = time.Unix(int64(data.Now), 0).UTC()
	}

	samples := make([]tracking.PositionSample, 0, len(data.Aircraft))
	for _, t := range data.Aircraft {
		if t.Hex == "" || t.Lat == nil || t.Lon == nil {
			continue
		}
		heading := t.Track
		if t.Heading != nil {
			heading = *t.Heading
		}
		samples = append(samples, tracking.PositionSample{
			ICAO24:     strings.ToLower(strings.TrimSpace(t.Hex)),
			Callsign:   strings.TrimSpace(t.Flight),
			Lat:        *t.Lat,
			Lon:        *t.Lon,
			AltitudeFt: float64(t.AltBaro),
			SpeedKt:    t.GS,
			HeadingDeg: heading,
			Squawk:     t.Squawk,
			Timestamp:  ts,
		})
	}
	return samples
}
