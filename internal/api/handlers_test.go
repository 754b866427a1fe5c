package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skymond/radarscope/internal/config"
	"github.com/skymond/radarscope/internal/events"
	"github.com/skymond/radarscope/internal/geo"
	"github.com/skymond/radarscope/internal/tracking"
	"github.com/skymond/radarscope/internal/vector"
	"github.com/skymond/radarscope/internal/websocket"
	"github.com/skymond/radarscope/pkg/logger"
)

var apiReference = geo.Point{Lat: 43.6777, Lon: -79.6248}

const buildingSource = `{
43.6800+-79.6300
43.6800+-79.6200
43.6750+-79.6200
-1
}`

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	log := logger.NewNop()
	cfg := config.Default()
	cfg.Station.AirportCode = "CYYZ"

	runways := []tracking.Runway{
		{ID: "05", Name: "Runway 05", HeadingDeg: 57, Threshold: geo.Point{Lat: 43.6680, Lon: -79.6420}, LengthM: 3389},
	}
	bus := events.NewBus(log)
	engine := tracking.NewEngine(cfg.Tracking, apiReference, "CYYZ", runways, nil, bus, log)

	store := vector.NewStore(log)
	if err := store.Load("test buildings", vector.CategoryBuildings, strings.NewReader(buildingSource)); err != nil {
		t.Fatalf("load vectors: %v", err)
	}
	optimizer := vector.NewOptimizer(vector.OptimizerConfig{}, log)
	wsServer := websocket.NewServer(bus, log)

	return NewRouter(engine, nil, nil, store, optimizer, wsServer, cfg, log)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestListAircraft(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Routes()

	if err := rt.engine.ProcessSample(tracking.PositionSample{
		ICAO24: "c0ffee", Lat: apiReference.Lat, Lon: apiReference.Lon,
		AltitudeFt: 300, SpeedKt: 130, HeadingDeg: 57,
	}); err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, "/api/v1/aircraft")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if body["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestGetAircraft(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Routes()

	rec := get(t, h, "/api/v1/aircraft/ffffff")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for untracked aircraft", rec.Code)
	}
}

func TestDetermineRunwayEndpoint(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Routes()

	t.Run("missing parameters", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runways/determine?lat=43.6")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runways/determine?lat=95&lon=-79.6&heading=57")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("assignment near the field", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runways/determine?lat=43.63&lon=-79.642&heading=0")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decode(t, rec)
		if body["assignment"] == nil {
			t.Error("expected a runway assignment")
		}
	})

	t.Run("null when nothing scores", func(t *testing.T) {
		rec := get(t, h, "/api/v1/runways/determine?lat=10&lon=10&heading=180")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decode(t, rec)
		if body["assignment"] != nil {
			t.Errorf("assignment = %v, want null", body["assignment"])
		}
	})
}

func TestRenderEndpoint(t *testing.T) {
	rt := newTestRouter(t)
	h := rt.Routes()

	t.Run("missing viewport", func(t *testing.T) {
		rec := get(t, h, "/api/v1/render?lat=43.68")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("payload for a viewport over the airport", func(t *testing.T) {
		rec := get(t, h, "/api/v1/render?lat=43.678&lon=-79.625&range_nm=10")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decode(t, rec)
		stats := body["stats"].(map[string]interface{})
		if stats["optimized_polygons"].(float64) != 1 {
			t.Errorf("optimized = %v, want 1", stats["optimized_polygons"])
		}
	})

	t.Run("viewport elsewhere filters everything", func(t *testing.T) {
		rec := get(t, h, "/api/v1/render?lat=10&lon=10&range_nm=10")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		body := decode(t, rec)
		stats := body["stats"].(map[string]interface{})
		if stats["filtered_polygons"].(float64) != 1 {
			t.Errorf("filtered = %v, want 1", stats["filtered_polygons"])
		}
	})
}

func TestStatsEndpoint(t *testing.T) {
	rt := newTestRouter(t)
	rec := get(t, rt.Routes(), "/api/v1/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	if _, ok := body["tracking"]; !ok {
		t.Error("response missing tracking stats")
	}
	if body["websocket_clients"].(float64) != 0 {
		t.Errorf("websocket_clients = %v, want 0", body["websocket_clients"])
	}
}
