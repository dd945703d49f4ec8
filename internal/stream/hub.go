// Package stream fans playback events out to websocket subscribers.
package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eugenenazirov/cryptoknapsack/internal/playback"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
	readLimit  = 512
)

// Message is the wire form of a playback event.
type Message struct {
	RunID     string `json:"runId"`
	Kind      string `json:"kind"`
	Algorithm string `json:"algorithm"`
	ItemID    int    `json:"itemId"`
	Index     int    `json:"index"`
	AtMs      int64  `json:"atMs"`
}

// NewMessage converts a playback event into its wire form.
func NewMessage(evt playback.Event) Message {
	return Message{
		RunID:     evt.RunID,
		Kind:      string(evt.Kind),
		Algorithm: evt.Algorithm,
		ItemID:    evt.ItemID,
		Index:     evt.Index,
		AtMs:      evt.At.Milliseconds(),
	}
}

// Hub is a playback.Observer that broadcasts every event as a JSON text frame.
// Slow subscribers whose buffer fills up are disconnected.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[string]*subscriber
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins restricts subscriptions to requests whose Origin header
// matches one of origins. Requests without an Origin header are always
// accepted. Without this option every origin may subscribe, mirroring the
// API's "*" CORS policy.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		if len(origins) == 0 {
			return
		}
		allowed := make(map[string]struct{}, len(origins))
		for _, origin := range origins {
			allowed[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[strings.ToLower(origin)]
			return ok
		}
	}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subscribers: make(map[string]*subscriber),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Observe implements playback.Observer. It never blocks.
func (h *Hub) Observe(evt playback.Event) {
	data, err := json.Marshal(NewMessage(evt))
	if err != nil {
		h.logger.Error("failed to encode playback event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("dropping slow subscriber", zap.String("subscriber_id", id))
			delete(h.subscribers, id)
			close(sub.send)
		}
	}
}

// ServeHTTP upgrades the request and streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	h.add(sub)
	h.logger.Info("subscriber connected", zap.String("subscriber_id", sub.id))

	go sub.writeLoop()
	sub.readLoop()

	h.remove(sub)
	h.logger.Info("subscriber disconnected", zap.String("subscriber_id", sub.id))
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.send)
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		close(sub.send)
	}
}

// readLoop discards client frames; it only exists to process pongs and
// notice disconnects.
func (s *subscriber) readLoop() {
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
