package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hylla/sitebook/internal/adapters/server/common"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/domain"
)

// stubPayrollService answers the few routes probed by composition tests.
type stubPayrollService struct {
	common.PayrollService
}

func (stubPayrollService) ListWorkers(context.Context, bool) ([]domain.Worker, error) {
	return []domain.Worker{{ID: "w1", Name: "Rosa"}}, nil
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// TestNormalizeConfig verifies defaults and endpoint collision checks.
func TestNormalizeConfig(t *testing.T) {
	cfg, err := normalizeConfig(Config{})
	if err != nil {
		t.Fatalf("normalizeConfig() error = %v", err)
	}
	want := Config{
		HTTPBind:        defaultBindAddress,
		APIEndpoint:     "/api/v1",
		MCPEndpoint:     "/mcp",
		WSEndpoint:      "/ws",
		MetricsEndpoint: "/metrics",
		ServerName:      "sitebook",
		ServerVersion:   "dev",
	}
	if cfg.HTTPBind != want.HTTPBind || cfg.APIEndpoint != want.APIEndpoint || cfg.MCPEndpoint != want.MCPEndpoint ||
		cfg.WSEndpoint != want.WSEndpoint || cfg.MetricsEndpoint != want.MetricsEndpoint ||
		cfg.ServerName != want.ServerName || cfg.ServerVersion != want.ServerVersion {
		t.Fatalf("normalizeConfig() = %#v, want %#v", cfg, want)
	}

	cfg, err = normalizeConfig(Config{APIEndpoint: " api/ ", WSEndpoint: "/live/"})
	if err != nil {
		t.Fatalf("normalizeConfig(custom) error = %v", err)
	}
	if cfg.APIEndpoint != "/api" || cfg.WSEndpoint != "/live" {
		t.Fatalf("custom endpoints = %q, %q", cfg.APIEndpoint, cfg.WSEndpoint)
	}

	for _, bad := range []Config{
		{APIEndpoint: "/mcp"},
		{WSEndpoint: "/metrics"},
		{MetricsEndpoint: "/healthz"},
	} {
		if _, err := normalizeConfig(bad); err == nil {
			t.Fatalf("normalizeConfig(%#v) error = nil, want collision", bad)
		}
	}
}

// TestNewHandlerRequiresService verifies the payroll service is mandatory.
func TestNewHandlerRequiresService(t *testing.T) {
	if _, _, err := NewHandler(Config{}, Dependencies{}); err == nil {
		t.Fatal("NewHandler() error = nil, want missing service error")
	}
}

// TestNewHandlerRoutes verifies every transport is mounted on its endpoint.
func TestNewHandlerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	app.NewMetrics(reg)
	ready := errors.New("database locked")
	handler, _, err := NewHandler(Config{}, Dependencies{
		Service:  stubPayrollService{},
		Gatherer: reg,
		Ready:    func(context.Context) error { return ready },
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if rec := get(t, handler, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	rec := get(t, handler, "/readyz")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "database locked") {
		t.Fatalf("readyz = %d %s", rec.Code, rec.Body.String())
	}
	ready = nil
	if rec := get(t, handler, "/readyz"); rec.Code != http.StatusOK {
		t.Fatalf("readyz after recovery = %d", rec.Code)
	}

	rec = get(t, handler, "/api/v1/workers")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Rosa") {
		t.Fatalf("api workers = %d %s", rec.Code, rec.Body.String())
	}

	rec = get(t, handler, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sitebook_") {
		t.Fatalf("metrics = %d %s", rec.Code, rec.Body.String())
	}

	// No change feed is configured, so the websocket endpoint fails closed.
	if rec := get(t, handler, "/ws"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ws status = %d, want 503", rec.Code)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"t","version":"1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	mcpRec := httptest.NewRecorder()
	handler.ServeHTTP(mcpRec, req)
	if mcpRec.Code != http.StatusOK {
		t.Fatalf("mcp initialize status = %d body = %s", mcpRec.Code, mcpRec.Body.String())
	}
}

// TestNewHandlerWithoutGatherer verifies metrics stay unmounted without a gatherer.
func TestNewHandlerWithoutGatherer(t *testing.T) {
	handler, _, err := NewHandler(Config{}, Dependencies{Service: stubPayrollService{}})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if rec := get(t, handler, "/metrics"); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics status = %d, want 404", rec.Code)
	}
}

// TestRunStopsOnCancel verifies graceful shutdown once the context ends.
func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: "127.0.0.1:0"}, Dependencies{Service: stubPayrollService{}})
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(defaultShutdownTimeout + time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

// TestRunReportsBindFailure verifies startup errors surface to the caller.
func TestRunReportsBindFailure(t *testing.T) {
	err := Run(context.Background(), Config{HTTPBind: "256.0.0.1:bad"}, Dependencies{Service: stubPayrollService{}})
	if err == nil {
		t.Fatal("Run() error = nil, want listen failure")
	}
}
