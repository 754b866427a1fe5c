// Package websocket pushes tracking engine events to connected dashboard
// clients. Clients are receive-only; the read pump exists to detect closes.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skymond/radarscope/internal/events"
	"github.com/skymond/radarscope/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 256
)

// Client is one connected websocket consumer.
type Client struct {
	conn   *websocket.Conn
	send   chan events.Event
	server *Server
}

// Server fans tracking events out to websocket clients. A client that cannot
// keep up with the broadcast rate is dropped.
type Server struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewServer creates a websocket server and subscribes it to the event bus.
func NewServer(bus *events.Bus, log *logger.Logger) *Server {
	s := &Server{
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins
			},
		},
		logger: log.Named("websocket"),
	}
	bus.Subscribe(s.broadcast)
	return s
}

// HandleConnection upgrades an HTTP request and starts the client pumps.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		conn:   conn,
		send:   make(chan events.Event, clientSendSize),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("Client connected",
		logger.String("remote_addr", r.RemoteAddr),
		logger.Int("client_count", count))

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// broadcast delivers one event to every connected client. Full send buffers
// drop the client rather than blocking the event bus.
func (s *Server) broadcast(evt events.Event) {
	s.mu.RLock()
	var slow []*Client
	for client := range s.clients {
		select {
		case client.send <- evt:
		default:
			slow = append(slow, client)
		}
	}
	s.mu.RUnlock()

	for _, client := range slow {
		s.logger.Warn("Dropping slow websocket client")
		s.remove(client)
	}
}

func (s *Server) remove(client *Client) {
	s.mu.Lock()
	_, ok := s.clients[client]
	if ok {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()

	if ok {
		client.conn.Close()
	}
}

// readPump discards inbound frames and tears the client down on close.
func (c *Client) readPump() {
	defer c.server.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for evt := range c.send {
		data, err := json.Marshal(evt)
		if err != nil {
			c.server.logger.Error("Failed to marshal event", logger.Error(err))
			continue
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// Channel closed by the server; send a close frame.
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
