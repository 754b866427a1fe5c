// Package api exposes the engine's read-only query surface over HTTP and a
// websocket endpoint for event push.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/storage/sqlite"
	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/internal/vector"
	"github.com/skymond/radarscope/internal/websocket"
	"github.com/skymond/radarscope/pkg/logger"
)

// Router assembles the HTTP API from the engine's query interfaces. Registry
// and tracking stores may be nil; their endpoints then return empty results.
type Router struct {
	engine      *tracking.Engine
	store       *sqlite.TrackingStorage
	registry    *sqlite.RegistryStorage
	vectorStore *vector.Store
	optimizer   *vector.Optimizer
	wsServer    *websocket.Server
	config      *config.Config
	logger      *logger.Logger
}

// NewRouter creates the API router.
func NewRouter(
	engine *tracking.Engine,
	store *sqlite.TrackingStorage,
	registry *sqlite.RegistryStorage,
	vectorStore *vector.Store,
	optimizer *vector.Optimizer,
	wsServer *websocket.Server,
	cfg *config.Config,
	log *logger.Logger,
) *Router {
	return &Router{
		engine:      engine,
		store:       store,
		registry:    registry,
		vectorStore: vectorStore,
		optimizer:   optimizer,
		wsServer:    wsServer,
		config:      cfg,
		logger:      log.Named("api"),
	}
}

// Routes builds the chi handler tree.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/aircraft", rt.listAircraft)
		r.Get("/aircraft/{icao24}", rt.getAircraft)
		r.Get("/aircraft/{icao24}/history", rt.getAircraftHistory)
		r.Get("/flights", rt.getFlights)
		r.Get("/events", rt.getEvents)
		r.Get("/stats", rt.getStats)
		r.Get("/runways", rt.getRunways)
		r.Get("/runways/determine", rt.determineRunway)
		r.Get("/render", rt.getRenderPayload)
		r.Get("/registry/search", rt.searchRegistry)
		r.Get("/ws", rt.wsServer.HandleConnection)
	})

	return r
}
