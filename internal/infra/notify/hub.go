package notify

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 30 * time.Second
	writeWait  = 5 * time.Second
	pingPeriod = pongWait * 9 / 10
)


type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub pushes notifications to every connected dashboard over websocket.
type Hub struct {
	clients  map[string]*client
	mu       sync.RWMutex
	now      func() time.Time
	origins  map[string]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a hub that accepts same-origin connections, clients that
// send no Origin header, and browsers on any of allowedOrigins
// (e.g. "https://dashboard.example.com").
func NewHub(logger *zap.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		now:     time.Now,
		origins: make(map[string]struct{}, len(allowedOrigins)),
		logger:  logger,
	}
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			h.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[strings.ToLower(u.Scheme+"://"+u.Host)]
	if !ok {
		h.logger.Warn("websocket origin rejected", zap.String("origin", origin))
	}
	return ok
}

func (h *Hub) register(id string, conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	h.logger.Debug("websocket client registered", zap.String("client_id", id))
	return c
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.logger.Debug("websocket client unregistered", zap.String("client_id", id))
	}
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify broadcasts to every client. Clients whose write fails are dropped.
func (h *Hub) Notify(_ context.Context, message string, severity domain.Severity) {
	body, err := encode(message, severity, h.now())
	if err != nil {
		h.logger.Error("hub: encode notification", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if err := c.write(websocket.TextMessage, body); err != nil {
			h.logger.Warn("hub: write failed, dropping client", zap.String("client_id", id), zap.Error(err))
			h.unregister(id)
			c.conn.Close()
		}
	}
}

// ServeWS upgrades the request and keeps the socket registered until the
// peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("hub: upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	c := h.register(id, conn)
	done := make(chan struct{})
	defer func() {
		close(done)
		h.unregister(id)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.write(websocket.PongMessage, []byte(data))
	})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("hub: unexpected close", zap.String("client_id", id), zap.Error(err))
			}
			return
		}
	}
}
