package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/internal/storage/sqlite"
	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/internal/vector"
	"github.com/skymond/radarscope/pkg/logger"
)

const defaultHistoryHours = 24

func (rt *Router) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rt.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func parseHours(r *http.Request) int {
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours <= 0 {
		return defaultHistoryHours
	}
	return hours
}

// listAircraft returns all actively tracked aircraft.
func (rt *Router) listAircraft(w http.ResponseWriter, r *http.Request) {
	aircraft := rt.engine.ListTrackedAircraft()
	sort.Slice(aircraft, func(i, j int) bool { return aircraft[i].ICAO24 < aircraft[j].ICAO24 })
	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(aircraft),
		"aircraft": aircraft,
	})
}

// getAircraft returns one tracked aircraft with its registry entry attached
// when available.
func (rt *Router) getAircraft(w http.ResponseWriter, r *http.Request) {
	icao24 := chi.URLParam(r, "icao24")
	ac, ok := rt.engine.GetAircraft(icao24)
	if !ok {
		http.Error(w, "Aircraft not tracked", http.StatusNotFound)
		return
	}

	resp := map[string]interface{}{"aircraft": ac}
	if rt.registry != nil {
		if entry, found := rt.registry.GetRegistration(icao24); found {
			resp["registration"] = entry
		}
	}
	rt.respondJSON(w, http.StatusOK, resp)
}

// getAircraftHistory returns persisted positions and flight records for one
// aircraft.
func (rt *Router) getAircraftHistory(w http.ResponseWriter, r *http.Request) {
	icao24 := chi.URLParam(r, "icao24")
	hours := parseHours(r)

	positions := []tracking.PositionSample{}
	flights := []tracking.FlightRecord{}
	if rt.store != nil {
		var err error
		if positions, err = rt.store.GetHistory(icao24, hours); err != nil {
			rt.logger.Error("Failed to query position history", logger.Error(err))
			positions = nil
		}
		if flights, err = rt.store.GetFlights(icao24, hours); err != nil {
			rt.logger.Error("Failed to query flight records", logger.Error(err))
			flights = nil
		}
	}

	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"icao24":    icao24,
		"hours":     hours,
		"positions": positions,
		"flights":   flights,
	})
}

// getFlights returns flight records across all aircraft.
func (rt *Router) getFlights(w http.ResponseWriter, r *http.Request) {
	hours := parseHours(r)
	flights := []tracking.FlightRecord{}
	if rt.store != nil {
		var err error
		if flights, err = rt.store.GetFlights(r.URL.Query().Get("icao24"), hours); err != nil {
			rt.logger.Error("Failed to query flight records", logger.Error(err))
			flights = nil
		}
	}
	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"hours":   hours,
		"flights": flights,
	})
}

// getEvents returns recent phase-transition events.
func (rt *Router) getEvents(w http.ResponseWriter, r *http.Request) {
	hours := parseHours(r)
	evts := []tracking.AircraftEvent{}
	if rt.store != nil {
		var err error
		if evts, err = rt.store.GetRecentEvents(hours, r.URL.Query().Get("type")); err != nil {
			rt.logger.Error("Failed to query events", logger.Error(err))
			evts = nil
		}
	}
	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"hours":  hours,
		"events": evts,
	})
}

// getStats returns engine counters with store and websocket figures folded
// in.
func (rt *Router) getStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"tracking":            rt.engine.Stats(),
		"vector_parse_errors": rt.vectorStore.ParseErrors(),
		"websocket_clients":   rt.wsServer.ClientCount(),
	}
	if rt.store != nil {
		if st, err := rt.store.GetStats(); err == nil {
			resp["storage"] = st
		} else {
			rt.logger.Error("Failed to query store stats", logger.Error(err))
		}
	}
	rt.respondJSON(w, http.StatusOK, resp)
}

// getRunways returns the configured runway reference data.
func (rt *Router) getRunways(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"airport": rt.config.Station.AirportCode,
		"runways": rt.engine.Runways(),
	})
}

// determineRunway scores the configured runways against an ad hoc position
// and heading. The assignment is null when nothing scores above zero.
func (rt *Router) determineRunway(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	heading, errHdg := strconv.ParseFloat(q.Get("heading"), 64)
	if errLat != nil || errLon != nil || errHdg != nil {
		http.Error(w, "lat, lon and heading query parameters are required", http.StatusBadRequest)
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		http.Error(w, "lat/lon out of range", http.StatusBadRequest)
		return
	}

	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"assignment": rt.engine.DetermineRunway(lat, lon, heading),
	})
}

// getRenderPayload returns viewport-optimized vector geometry.
func (rt *Router) getRenderPayload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	rangeNM, errRange := strconv.ParseFloat(q.Get("range_nm"), 64)
	if errLat != nil || errLon != nil || errRange != nil || rangeNM <= 0 {
		http.Error(w, "lat, lon and a positive range_nm are required", http.StatusBadRequest)
		return
	}

	categories := vector.AllCategories
	if raw := q.Get("categories"); raw != "" {
		categories = nil
		for _, c := range strings.Split(raw, ",") {
			categories = append(categories, vector.Category(strings.TrimSpace(c)))
		}
	}

	opts := vector.Options{}
	if tol, err := strconv.ParseFloat(q.Get("tolerance"), 64); err == nil {
		opts.Tolerance = tol
	}
	if mp, err := strconv.Atoi(q.Get("max_points")); err == nil {
		opts.MaxPoints = mp
	}

	viewport := vector.Viewport{
		Center:  geo.Point{Lat: lat, Lon: lon},
		RangeNM: rangeNM,
	}

	var elements []vector.SpatialElement
	for _, cat := range categories {
		elements = append(elements, rt.vectorStore.Elements(cat)...)
	}

	rt.respondJSON(w, http.StatusOK, rt.optimizer.OptimizeForViewport(elements, viewport, opts))
}

// searchRegistry runs substring filters over the aircraft registry.
func (rt *Router) searchRegistry(w http.ResponseWriter, r *http.Request) {
	results := []sqlite.RegistryEntry{}
	if rt.registry != nil {
		q := r.URL.Query()
		results = rt.registry.SearchRegistry(sqlite.RegistryFilters{
			Registration: q.Get("registration"),
			Manufacturer: q.Get("manufacturer"),
			Type:         q.Get("type"),
			Country:      q.Get("country"),
		})
		sort.Slice(results, func(i, j int) bool { return results[i].ICAO24 < results[j].ICAO24 })
	}
	rt.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(results),
		"results": results,
	})
}
