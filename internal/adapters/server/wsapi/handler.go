// Package wsapi streams collection change signals to websocket clients.
package wsapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxClientMessageBytes bounds subscription filter frames.
	maxClientMessageBytes = 4096
	outboundBuffer        = 32
)

// Message types written to clients.
const (
	MessageChange     = "change"
	MessageSubscribed = "subscribed"
	MessageError      = "error"
)

// Message is one server-to-client frame. Change frames carry no payload beyond
// the collection name; clients re-pull the collection through the API.
type Message struct {
	Type        string              `json:"type"`
	Collection  domain.Collection   `json:"collection,omitempty"`
	Collections []domain.Collection `json:"collections,omitempty"`
	At          time.Time           `json:"at,omitzero"`
	Error       string              `json:"error,omitempty"`
}

// filterRequest narrows the collections one connection receives. An empty list
// restores every collection.
type filterRequest struct {
	Collections []string `json:"collections"`
}

// Config captures websocket transport options.
type Config struct {
	// AllowedOrigins lists Origin header values accepted for browser clients.
	// Empty accepts same-host and non-browser clients only.
	AllowedOrigins []string
	Logger         app.Logger
	Now            func() time.Time
}

// Handler upgrades requests and relays change signals from one feed.
type Handler struct {
	feed     common.ChangeFeed
	upgrader websocket.Upgrader
	logger   app.Logger
	now      func() time.Time
}

// NewHandler constructs one websocket change-feed handler.
func NewHandler(cfg Config, feed common.ChangeFeed) *Handler {
	h := &Handler{
		feed:   feed,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if h.logger == nil {
		h.logger = nopLogger{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(cfg.AllowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
		for _, origin := range cfg.AllowedOrigins {
			allowed[origin] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
	}
	return h
}

// ServeHTTP upgrades the request and streams change frames until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.feed == nil {
		http.Error(w, "change feed unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	client := newClient()
	unsubscribe, err := h.subscribeAll(client)
	if err != nil {
		h.logger.Error("websocket subscribe failed", "err", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "change feed closed"),
			time.Now().Add(writeWait))
		return
	}
	defer unsubscribe()

	h.logger.Debug("websocket client connected", "remote", r.RemoteAddr)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.readLoop(conn, client)
	}()
	h.writeLoop(conn, client, readDone)
	h.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)
}

// subscribeAll attaches one client to every collection and returns a combined unsubscribe.
func (h *Handler) subscribeAll(c *client) (func(), error) {
	collections := domain.Collections()
	unsubs := make([]app.Unsubscribe, 0, len(collections))
	release := func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
	for _, collection := range collections {
		unsub, err := h.feed.Subscribe(collection, func(_ context.Context, changed domain.Collection) {
			if !c.wants(changed) {
				return
			}
			c.push(Message{Type: MessageChange, Collection: changed, At: h.now().UTC()})
		})
		if err != nil {
			release()
			return nil, fmt.Errorf("subscribe %s: %w", collection, err)
		}
		unsubs = append(unsubs, unsub)
	}
	return release, nil
}

// readLoop applies client filter frames and tracks pongs until the connection fails.
func (h *Handler) readLoop(conn *websocket.Conn, c *client) {
	conn.SetReadLimit(maxClientMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var req filterRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read ended", "err", err)
			}
			return
		}
		selected, err := parseCollections(req.Collections)
		if err != nil {
			c.push(Message{Type: MessageError, Error: err.Error()})
			continue
		}
		c.setFilter(selected)
		c.push(Message{Type: MessageSubscribed, Collections: c.selected()})
	}
}

// writeLoop is the only writer on conn.
func (h *Handler) writeLoop(conn *websocket.Conn, c *client, readDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-readDone:
			return
		case msg := <-c.outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("websocket write failed", "err", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func parseCollections(raw []string) (map[domain.Collection]struct{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[domain.Collection]struct{}, len(raw))
	for _, name := range raw {
		collection, ok := domain.ParseCollection(name)
		if !ok {
			return nil, fmt.Errorf("unknown collection %q", name)
		}
		out[collection] = struct{}{}
	}
	return out, nil
}

// client holds one connection's filter and outbound queue.
type client struct {
	mu       sync.RWMutex
	filter   map[domain.Collection]struct{}
	outbound chan Message
}

func newClient() *client {
	return &client{outbound: make(chan Message, outboundBuffer)}
}

func (c *client) wants(collection domain.Collection) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.filter == nil {
		return true
	}
	_, ok := c.filter[collection]
	return ok
}

func (c *client) setFilter(filter map[domain.Collection]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
}

// selected returns the active filter in canonical collection order.
func (c *client) selected() []domain.Collection {
	out := make([]domain.Collection, 0, len(domain.Collections()))
	for _, collection := range domain.Collections() {
		if c.wants(collection) {
			out = append(out, collection)
		}
	}
	return out
}

// push queues msg without blocking. A full queue drops the frame.
func (c *client) push(msg Message) {
	select {
	case c.outbound <- msg:
	default:
	}
}

type nopLogger struct{}

func (nopLogger) Debug(any, ...any) {}
func (nopLogger) Info(any, ...any)  {}
func (nopLogger) Warn(any, ...any)  {}
func (nopLogger) Error(any, ...any) {}
