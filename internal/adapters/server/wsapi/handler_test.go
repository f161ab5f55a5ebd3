package wsapi

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

var fixedNow = time.Date(2024, 1, 3, 9, 30, 0, 0, time.UTC)

// startFeed serves one handler over a live notifier.
func startFeed(t *testing.T, cfg Config) (*app.Notifier, *httptest.Server) {
	t.Helper()
	notifier := app.NewNotifier(nil, nil)
	cfg.Now = func() time.Time { return fixedNow }
	server := httptest.NewServer(NewHandler(cfg, notifier))
	t.Cleanup(func() {
		server.Close()
		notifier.Close()
	})
	return notifier, server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

// subscribe sends one filter frame and waits for its acknowledgement, which also
// guarantees the connection's feed subscriptions are in place.
func subscribe(t *testing.T, conn *websocket.Conn, collections ...string) Message {
	t.Helper()
	if err := conn.WriteJSON(filterRequest{Collections: collections}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	return readMessage(t, conn)
}

func TestHandlerStreamsChanges(t *testing.T) {
	notifier, server := startFeed(t, Config{})
	conn := dial(t, server)

	ack := subscribe(t, conn)
	if ack.Type != MessageSubscribed || !slices.Equal(ack.Collections, domain.Collections()) {
		t.Fatalf("ack = %#v, want every collection", ack)
	}

	notifier.Publish(domain.CollectionAttendance)
	msg := readMessage(t, conn)
	if msg.Type != MessageChange || msg.Collection != domain.CollectionAttendance {
		t.Fatalf("message = %#v, want attendance change", msg)
	}
	if !msg.At.Equal(fixedNow) {
		t.Fatalf("at = %v, want %v", msg.At, fixedNow)
	}
}

func TestHandlerAppliesFilter(t *testing.T) {
	notifier, server := startFeed(t, Config{})
	conn := dial(t, server)

	ack := subscribe(t, conn, "budget")
	if ack.Type != MessageSubscribed || !slices.Equal(ack.Collections, []domain.Collection{domain.CollectionBudget}) {
		t.Fatalf("ack = %#v, want budget only", ack)
	}

	notifier.Publish(domain.CollectionWorkers)
	notifier.Publish(domain.CollectionBudget)
	msg := readMessage(t, conn)
	if msg.Collection != domain.CollectionBudget {
		t.Fatalf("message = %#v, want budget change", msg)
	}
}

func TestHandlerRejectsUnknownCollection(t *testing.T) {
	_, server := startFeed(t, Config{})
	conn := dial(t, server)

	msg := subscribe(t, conn, "payroll", "weather")
	if msg.Type != MessageError || !strings.Contains(msg.Error, "weather") {
		t.Fatalf("message = %#v, want unknown collection error", msg)
	}

	// The previous filter stays in effect and the connection stays usable.
	ack := subscribe(t, conn, "payroll")
	if ack.Type != MessageSubscribed {
		t.Fatalf("ack = %#v, want subscribed", ack)
	}
}

func TestHandlerChecksOrigin(t *testing.T) {
	_, server := startFeed(t, Config{AllowedOrigins: []string{"https://site.example"}})

	header := http.Header{}
	header.Set("Origin", "https://other.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	if err == nil {
		t.Fatal("Dial() error = nil, want origin rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %#v, want 403", resp)
	}
	_ = resp.Body.Close()

	header.Set("Origin", "https://site.example")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server), header)
	if err != nil {
		t.Fatalf("Dial(allowed origin) error = %v", err)
	}
	_ = resp.Body.Close()
	_ = conn.Close()
}

func TestHandlerWithoutFeed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(Config{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandlerClosesWhenFeedClosed(t *testing.T) {
	notifier := app.NewNotifier(nil, nil)
	notifier.Close()
	server := httptest.NewServer(NewHandler(Config{}, notifier))
	defer server.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("ReadMessage() error = %v, want try-again-later close", err)
	}
}
