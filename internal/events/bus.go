// Package events provides the typed publish/subscribe channel between the
// tracking engine and its consumers (websocket push, dashboards, tests).
package events

import (
	"sync"
	"time"

	"github.com/skymond/radarscope/pkg/logger"
)

// Kind identifies the event payload variant.
type Kind string

const (
	KindPhaseTransition Kind = "phase_transition"
	KindNoticeAlert     Kind = "notice_alert"
	KindNewNotice       Kind = "new_notice"
)

// Event is a tagged union: exactly one payload pointer is set, matching Kind.
type Event struct {
	Kind            Kind             `json:"kind"`
	Timestamp       time.Time        `json:"timestamp"`
	PhaseTransition *PhaseTransition `json:"phase_transition,omitempty"`
	NoticeAlert     *NoticeAlert     `json:"notice_alert,omitempty"`
	NewNotice       *NewNotice       `json:"new_notice,omitempty"`
}

// PhaseTransition is emitted when an aircraft's classified phase changes.
type PhaseTransition struct {
	ICAO24         string  `json:"icao24"`
	Callsign       string  `json:"callsign,omitempty"`
	FromPhase      string  `json:"from_phase"`
	ToPhase        string  `json:"to_phase"`
	RunwayID       string  `json:"runway_id,omitempty"`
	RunwayName     string  `json:"runway_name,omitempty"`
	AltitudeFt     float64 `json:"altitude_ft"`
	SpeedKt        float64 `json:"speed_kt"`
	HeadingDeg     float64 `json:"heading_deg"`
	Squawk         string  `json:"squawk,omitempty"`
	DistanceM      float64 `json:"distance_m"`
	ReferencePoint string  `json:"reference_point"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
}

// NoticeAlert is emitted when a phase transition correlates with an active
// airspace notice.
type NoticeAlert struct {
	ICAO24     string  `json:"icao24"`
	Phase      string  `json:"phase"`
	NoticeID   string  `json:"notice_id"`
	Category   string  `json:"category"`
	Priority   int     `json:"priority"`
	Summary    string  `json:"summary"`
	DistanceKm float64 `json:"distance_km"`
}

// NewNotice is emitted by the background sweep for notices not seen before.
type NewNotice struct {
	NoticeID string `json:"notice_id"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
	Summary  string `json:"summary"`
}

// Handler receives published events. Handlers must not block; slow consumers
// should buffer on their side.
type Handler func(Event)

// Bus fans events out to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *logger.Logger
}

// NewBus creates a new event bus.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{logger: log.Named("events")}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every handler. Delivery is synchronous and
// in registration order; the tracking engine publishes after its own state is
// committed, so handlers always observe post-transition state.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}

	b.logger.Debug("Event published",
		logger.String("kind", string(evt.Kind)),
		logger.Int("handler_count", len(handlers)))
}
