// ABOUTME: Player manager wiring config into the session controller
// ABOUTME: Builds the catalogue, stream sources, audio engine, and metrics
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/application/config"
	"github.com/harper/radio-player/internal/domain"
	"github.com/harper/radio-player/internal/domain/session"
	"github.com/harper/radio-player/internal/domain/station"
	"github.com/harper/radio-player/internal/infrastructure/audio"
	"github.com/harper/radio-player/internal/infrastructure/metrics"
	"github.com/harper/radio-player/internal/infrastructure/source"
)

type Manager struct {
	catalogue  *station.Catalogue
	controller *session.Controller
	metrics    *metrics.Metrics
	autoplay   bool
	log        zerolog.Logger
}

// NewFromConfig wires the player against the speaker-backed engine.
func NewFromConfig(cfg *config.Config, log zerolog.Logger) (*Manager, error) {
	src, err := newEndpointSource(cfg)
	if err != nil {
		return nil, err
	}

	loader := audio.NewLoader(audio.Config{
		SampleRate:     cfg.Engine.SampleRate,
		BufferSize:     time.Duration(cfg.Engine.BufferMs) * time.Millisecond,
		RingBytes:      cfg.Engine.RingBytes,
		PrebufferBytes: cfg.Engine.PrebufferBytes,
		LowWaterBytes:  cfg.Engine.LowWaterBytes,
	}, src, log)

	return NewWithLoader(cfg, loader, log)
}

// NewWithLoader wires the player against any engine loader.
func NewWithLoader(cfg *config.Config, loader domain.EngineLoader, log zerolog.Logger) (*Manager, error) {
	endpoints := make([]station.Endpoint, 0, len(cfg.Streams))
	for _, st := range cfg.Streams {
		endpoints = append(endpoints, station.Endpoint{ID: st.ID, Name: st.Name, URL: st.URL})
	}

	cat, err := station.NewCatalogue(endpoints, cfg.Player.DefaultStream)
	if err != nil {
		return nil, fmt.Errorf("build catalogue: %w", err)
	}

	m := metrics.New()

	volume := 1.0
	if cfg.Player.InitialVolume != nil {
		volume = *cfg.Player.InitialVolume
	}

	ctrl := session.New(cat, loader, session.Options{
		Volume:           volume,
		SettleDelay:      time.Duration(cfg.Player.SettleDelayMs) * time.Millisecond,
		ProgressInterval: time.Duration(cfg.Player.ProgressIntervalMs) * time.Millisecond,
		AudioMode:        audioMode(cfg.AudioMode),
		Recorder:         m,
	}, log)

	return &Manager{
		catalogue:  cat,
		controller: ctrl,
		metrics:    m,
		autoplay:   cfg.Player.Autoplay,
		log:        log.With().Str("component", "manager").Logger(),
	}, nil
}

func audioMode(c config.AudioModeConfig) domain.AudioMode {
	mode := domain.AudioMode{
		AllowsRecording:         c.AllowsRecording,
		PlaysInSilentMode:       c.PlaysInSilentMode,
		StaysActiveInBackground: c.StaysActiveInBackground,
		DuckOthers:              c.DuckOthers,
		ThroughEarpiece:         c.ThroughEarpiece,
	}

	switch c.Interruption {
	case "do_not_mix":
		mode.Interruption = domain.InterruptionDoNotMix
	case "duck_others":
		mode.Interruption = domain.InterruptionDuckOthers
	default:
		mode.Interruption = domain.InterruptionMixWithOthers
	}
	return mode
}

func (m *Manager) Controller() *session.Controller {
	return m.controller
}

func (m *Manager) Catalogue() *station.Catalogue {
	return m.catalogue
}

func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

// Start begins playback of the default stream when autoplay is configured.
func (m *Manager) Start(ctx context.Context) error {
	if !m.autoplay {
		return nil
	}

	m.log.Info().Str("stream", m.catalogue.DefaultID()).Msg("autoplay")
	m.controller.Play(ctx, "")
	return nil
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.controller.Close(ctx)
	return nil
}

// endpointSource routes each endpoint URI to a source carrying that
// stream's own headers and timeouts.
type endpointSource struct {
	byURL map[string]*source.HTTPSource
	def   *source.HTTPSource
}

func newEndpointSource(cfg *config.Config) (*endpointSource, error) {
	es := &endpointSource{
		byURL: make(map[string]*source.HTTPSource, len(cfg.Streams)),
		def: source.NewHTTP(source.HTTPConfig{
			ICYMetadata: cfg.Engine.ICYMetadata,
			UserAgent:   cfg.Engine.UserAgent,
		}),
	}

	for _, st := range cfg.Streams {
		if _, dup := es.byURL[st.URL]; dup {
			return nil, fmt.Errorf("stream %q: url shared with another stream", st.ID)
		}
		es.byURL[st.URL] = source.NewHTTP(source.HTTPConfig{
			ConnectTimeout: time.Duration(st.ConnectTimeoutMs) * time.Millisecond,
			Headers:        st.RequestHeaders,
			ICYMetadata:    cfg.Engine.ICYMetadata,
			UserAgent:      cfg.Engine.UserAgent,
		})
	}
	return es, nil
}

func (es *endpointSource) Connect(ctx context.Context, uri string) (*domain.Stream, error) {
	if src, ok := es.byURL[uri]; ok {
		return src.Connect(ctx, uri)
	}
	return es.def.Connect(ctx, uri)
}
