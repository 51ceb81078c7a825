// ABOUTME: Tests for player manager wiring
// ABOUTME: Verifies catalogue construction, autoplay, and per-stream sources
package manager

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/application/config"
	"github.com/harper/radio-player/internal/domain"
	"github.com/harper/radio-player/internal/domain/session"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Streams: []config.StreamConfig{
			{ID: "version1", Name: "Main", URL: "http://example.com/main.mp3"},
			{ID: "version2", Name: "Mobile", URL: "http://example.com/mobile.mp3"},
		},
		Player: config.PlayerConfig{DefaultStream: "version2"},
	}
	cfg.Validate()
	return cfg
}

func unavailable() domain.EngineLoader {
	return domain.LoaderFunc(func() (domain.AudioEngine, error) {
		return nil, errors.New("no device")
	})
}

func TestManager_NewWithLoader(t *testing.T) {
	mgr, err := NewWithLoader(testConfig(), unavailable(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWithLoader failed: %v", err)
	}

	if len(mgr.Catalogue().List()) != 2 {
		t.Errorf("expected 2 streams, got %d", len(mgr.Catalogue().List()))
	}

	snap := mgr.Controller().Snapshot()
	if snap.CurrentStream != "version2" {
		t.Errorf("expected default version2, got %q", snap.CurrentStream)
	}
	if snap.Volume != 1 {
		t.Errorf("expected full volume, got %v", snap.Volume)
	}
}

func TestManager_Autoplay(t *testing.T) {
	cfg := testConfig()
	cfg.Player.Autoplay = true

	mgr, _ := NewWithLoader(cfg, unavailable(), zerolog.Nop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	snap := mgr.Controller().Snapshot()
	if snap.Phase != session.PhaseError || snap.Error == "" {
		t.Errorf("expected autoplay to surface the missing engine, got %+v", snap)
	}

	if err := mgr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestEndpointSource_PerStreamHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Station") != "main" {
			t.Errorf("expected per-stream header, got %q", r.Header.Get("X-Station"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Streams[0].URL = server.URL + "/main"
	cfg.Streams[0].RequestHeaders = map[string]string{"X-Station": "main"}

	src, err := newEndpointSource(cfg)
	if err != nil {
		t.Fatalf("newEndpointSource failed: %v", err)
	}

	stream, err := src.Connect(context.Background(), server.URL+"/main")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	stream.Body.Close()
}

func TestNewFromConfig(t *testing.T) {
	mgr, err := NewFromConfig(testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if mgr.Metrics() == nil {
		t.Error("expected metrics")
	}
}
