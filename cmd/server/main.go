package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/skymond/radarscope/internal/api"
	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/events"
	"github.com/skymond/radarscope/internal/feed"
	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/internal/notices"
	"github.com/skymond/radarscope/internal/storage/sqlite"
	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/internal/vector"
	"github.com/skymond/radarscope/internal/websocket"
	"github.com/skymond/radarscope/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Radarscope server",
		logger.String("version", Version),
		logger.String("airport", cfg.Station.AirportCode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracking store. Tracking continues from memory if this fails.
	var trackingStorage *sqlite.TrackingStorage
	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory",
			logger.Error(err),
			logger.String("path", cfg.Storage.SQLiteBasePath))
		os.Exit(1)
	}
	dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, "radarscope.db")
	trackingStorage, err = sqlite.NewTrackingStorage(dbPath, cfg.Storage.MaxPositionsInAPI, log)
	if err != nil {
		log.Error("Failed to open tracking storage, continuing without persistence", logger.Error(err))
		trackingStorage = nil
	} else {
		defer trackingStorage.Close()
		trackingStorage.StartRetentionSweep(
			time.Duration(cfg.Storage.CleanupIntervalMins)*time.Minute,
			cfg.Storage.RetentionDays,
		)
	}

	// Aircraft registry, optional.
	var registry *sqlite.RegistryStorage
	if cfg.Storage.RegistryDBPath != "" {
		registry, err = sqlite.NewRegistryStorage(cfg.Storage.RegistryDBPath, cfg.Storage.RegistrySearchLimit, log)
		if err != nil {
			log.Error("Failed to open aircraft registry, continuing without it", logger.Error(err))
			registry = nil
		} else {
			defer registry.Close()
		}
	}

	// Vector geometry: a missing source is logged, not fatal, as long as
	// something loaded.
	vectorStore := vector.NewStore(log)
	for _, src := range cfg.Vectors.Sources {
		if err := vectorStore.LoadFile(src.Name, vector.Category(src.Category), src.Path); err != nil {
			log.Error("Failed to load vector source",
				logger.String("name", src.Name),
				logger.Error(err))
		}
	}
	if len(cfg.Vectors.Sources) > 0 && vectorStore.Count() == 0 {
		log.Error("No vector geometry loaded from any source")
		os.Exit(1)
	}

	optimizer := vector.NewOptimizer(vector.OptimizerConfig{
		MaxPolygonPoints: cfg.Vectors.MaxPolygonPoints,
		DefaultTolerance: cfg.Vectors.DefaultTolerance,
		CacheTTL:         time.Duration(cfg.Vectors.CacheTTLMinutes) * time.Minute,
		CacheSize:        cfg.Vectors.CacheSize,
	}, log)

	// Runway database.
	var runways []tracking.Runway
	airport := cfg.Station.AirportCode
	if cfg.Station.RunwaysDBPath != "" {
		dbAirport, loaded, err := tracking.LoadRunways(cfg.Station.RunwaysDBPath)
		if err != nil {
			log.Error("Failed to load runway database", logger.Error(err))
			os.Exit(1)
		}
		runways = loaded
		if dbAirport != "" {
			airport = dbAirport
		}
	}

	bus := events.NewBus(log)
	wsServer := websocket.NewServer(bus, log)

	reference := geo.Point{Lat: cfg.Station.Latitude, Lon: cfg.Station.Longitude}
	var engineStore tracking.Storage
	if trackingStorage != nil {
		engineStore = trackingStorage
	}
	engine := tracking.NewEngine(cfg.Tracking, reference, airport, runways, engineStore, bus, log)
	engine.Start()

	// Notice correlation, optional.
	var correlator *tracking.Correlator
	if cfg.Notices.Enabled {
		source, err := notices.NewFileSource(cfg.Notices.SourcePath, log)
		if err != nil {
			log.Error("Failed to open notice source, continuing without correlation", logger.Error(err))
		} else {
			correlator = tracking.NewCorrelator(cfg.Notices, source, engine, bus, reference, log)
			correlator.Start(ctx)
		}
	}

	// Position feed, optional.
	var feedClient *feed.Client
	if cfg.Feed.Enabled {
		feedClient = feed.NewClient(cfg.Feed, engine, log)
		feedClient.Start(ctx)
	}

	router := api.NewRouter(engine, trackingStorage, registry, vectorStore, optimizer, wsServer, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	if feedClient != nil {
		feedClient.Stop()
	}
	if correlator != nil {
		correlator.Stop()
	}
	engine.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
