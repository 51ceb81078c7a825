// ABOUTME: Tests for HTTP handlers
// ABOUTME: Verifies routing, methods, and response formats
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/application/config"
	"github.com/harper/radio-player/internal/application/manager"
	"github.com/harper/radio-player/internal/domain"
	"github.com/harper/radio-player/internal/domain/session"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	cfg := &config.Config{
		Streams: []config.StreamConfig{
			{ID: "version1", Name: "Main", URL: "http://example.com/main.mp3"},
			{ID: "version2", Name: "Mobile", URL: "http://example.com/mobile.mp3"},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	loader := domain.LoaderFunc(func() (domain.AudioEngine, error) {
		return nil, errors.New("no device")
	})
	mgr, err := manager.NewWithLoader(cfg, loader, zerolog.Nop())
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return NewMux(mgr)
}

func do(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStatusHandler(t *testing.T) {
	rec := do(newTestMux(t), "GET", "/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON, got %q", ct)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["currentStream"] != "version1" {
		t.Errorf("expected version1, got %v", body["currentStream"])
	}
	if body["capability"] != "not-attempted" {
		t.Errorf("expected not-attempted, got %v", body["capability"])
	}
}

func TestStreamsHandler(t *testing.T) {
	rec := do(newTestMux(t), "GET", "/streams")

	var streams []struct {
		ID      string `json:"id"`
		Current bool   `json:"current"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&streams); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(streams) != 2 || streams[0].ID != "version1" || !streams[0].Current || streams[1].Current {
		t.Errorf("unexpected streams %+v", streams)
	}
}

func TestCommandHandler_PlayReportsError(t *testing.T) {
	rec := do(newTestMux(t), "POST", "/play")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap session.Snapshot
	json.NewDecoder(rec.Body).Decode(&snap)
	if snap.Error == "" || snap.IsLoading {
		t.Errorf("expected surfaced engine error, got %+v", snap)
	}
}

func TestCommandHandler_SwitchAndVolume(t *testing.T) {
	mux := newTestMux(t)

	rec := do(mux, "POST", "/switch?stream=version2")
	var snap session.Snapshot
	json.NewDecoder(rec.Body).Decode(&snap)
	if snap.CurrentStream != "version2" {
		t.Errorf("expected version2, got %q", snap.CurrentStream)
	}

	rec = do(mux, "POST", "/volume?v=0.4")
	json.NewDecoder(rec.Body).Decode(&snap)
	if snap.Volume != 0.4 {
		t.Errorf("expected volume 0.4, got %v", snap.Volume)
	}

	if rec := do(mux, "POST", "/switch?stream=nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown stream, got %d", rec.Code)
	}
	if rec := do(mux, "POST", "/volume?v=loud"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad volume, got %d", rec.Code)
	}
}

func TestCommandHandler_MethodNotAllowed(t *testing.T) {
	if rec := do(newTestMux(t), "GET", "/pause"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	mux := newTestMux(t)

	rec := do(mux, "GET", "/healthz")
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("unexpected healthz body %q", rec.Body.String())
	}

	do(mux, "POST", "/play")
	rec = do(mux, "GET", "/metrics")
	if !strings.Contains(rec.Body.String(), `radioplayer_engine_call_errors_total{call="load",severity="fatal"} 1`) {
		t.Errorf("expected load failure metric, got:\n%s", rec.Body.String())
	}
}
