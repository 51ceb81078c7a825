// ABOUTME: Audio engine backed by the beep speaker and MP3 decoder
// ABOUTME: Loads progressive HTTP radio streams into controllable sounds
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/domain"
	"github.com/harper/radio-player/internal/infrastructure/icy"
	"github.com/harper/radio-player/internal/infrastructure/ring"
)

type Config struct {
	SampleRate int
	// BufferSize is the speaker output latency.
	BufferSize time.Duration
	// RingBytes is the network buffer between the socket and the decoder.
	RingBytes int
	// PrebufferBytes must arrive before decoding starts.
	PrebufferBytes int
	// LowWaterBytes below which playback is held and reported as buffering.
	LowWaterBytes int
}

func (c *Config) withDefaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 100 * time.Millisecond
	}
	if c.RingBytes <= 0 {
		c.RingBytes = 512 * 1024
	}
	if c.PrebufferBytes <= 0 {
		c.PrebufferBytes = 32 * 1024
	}
	if c.LowWaterBytes <= 0 {
		c.LowWaterBytes = 8 * 1024
	}
	if c.PrebufferBytes > c.RingBytes {
		c.PrebufferBytes = c.RingBytes
	}
	if c.LowWaterBytes > c.RingBytes {
		c.LowWaterBytes = c.RingBytes
	}
}

// output is the mixer sounds are played through.
type output interface {
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }

// Loader initialises the speaker on first Load. The session controller
// memoizes the result.
type Loader struct {
	cfg  Config
	src  domain.StreamSource
	log  zerolog.Logger
	init func(sr beep.SampleRate, bufferSize int) error
	out  output
}

func NewLoader(cfg Config, src domain.StreamSource, log zerolog.Logger) *Loader {
	cfg.withDefaults()
	return &Loader{
		cfg:  cfg,
		src:  src,
		log:  log.With().Str("component", "audio").Logger(),
		init: speaker.Init,
		out:  speakerOutput{},
	}
}

func (l *Loader) Load() (domain.AudioEngine, error) {
	sr := beep.SampleRate(l.cfg.SampleRate)
	if err := l.init(sr, sr.N(l.cfg.BufferSize)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	l.log.Info().Int("sample_rate", l.cfg.SampleRate).Dur("buffer", l.cfg.BufferSize).Msg("audio output ready")

	return &Engine{
		cfg:  l.cfg,
		src:  l.src,
		out:  l.out,
		rate: sr,
		log:  l.log,
	}, nil
}

type Engine struct {
	cfg  Config
	src  domain.StreamSource
	out  output
	rate beep.SampleRate
	log  zerolog.Logger

	mu   sync.Mutex
	mode domain.AudioMode
}

// ConfigureAudioMode records the mode. A desktop mixer has no session
// categories, so only the settings that map onto it take effect.
func (e *Engine) ConfigureAudioMode(ctx context.Context, mode domain.AudioMode) error {
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()

	e.log.Debug().
		Bool("background", mode.StaysActiveInBackground).
		Bool("silent_mode", mode.PlaysInSilentMode).
		Bool("duck_others", mode.DuckOthers).
		Int("interruption", int(mode.Interruption)).
		Msg("audio mode configured")
	return nil
}

func (e *Engine) Create(ctx context.Context, uri string, opts domain.CreateOptions, onStatus domain.StatusFunc) (domain.Sound, error) {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = time.Second
	}

	// The connection outlives ctx once Create returns; until then ctx can abort it.
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	detach := context.AfterFunc(ctx, cancel)

	stream, err := e.src.Connect(connCtx, uri)
	if err != nil {
		detach()
		cancel()
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := &sound{
		id:       uuid.NewString(),
		out:      e.out,
		body:     stream.Body,
		buf:      ring.New(e.cfg.RingBytes),
		onStatus: onStatus,
		cancel:   cancel,
		volume:   clamp(opts.Volume),
		done:     make(chan struct{}),
		log:      e.log.With().Str("uri", uri).Logger(),
	}
	s.log = s.log.With().Str("sound", s.id).Logger()

	var r io.Reader = stream.Body
	if stream.MetaInt > 0 {
		r = icy.NewReader(stream.Body, stream.MetaInt, s.setMeta)
	}

	s.wg.Add(1)
	go s.pump(r)

	if err := s.prebuffer(ctx, e.cfg.PrebufferBytes); err != nil {
		detach()
		s.teardown()
		return nil, err
	}

	decoder, format, err := mp3.Decode(io.NopCloser(s.buf))
	if err != nil {
		detach()
		s.teardown()
		return nil, fmt.Errorf("decode: %w", err)
	}
	detach()
	s.decoder = decoder

	var src beep.Streamer = decoder
	if format.SampleRate != e.rate {
		src = beep.Resample(4, format.SampleRate, e.rate, decoder)
	}

	s.gate = &gate{streamer: src, buf: s.buf, lowWater: e.cfg.LowWaterBytes}
	s.vol = &effects.Volume{Streamer: s.gate, Base: 2}
	applyVolume(s.vol, s.volume)
	s.ctrl = &beep.Ctrl{Streamer: s.vol, Paused: !opts.ShouldPlay}
	s.playing = opts.ShouldPlay

	e.out.Play(beep.Seq(s.ctrl, beep.Callback(s.ended)))

	s.wg.Add(1)
	go s.tick(opts.ProgressInterval)

	s.log.Info().Int("source_rate", int(format.SampleRate)).Int("metaint", stream.MetaInt).Str("icy_name", stream.Name).Msg("sound loaded")
	return s, nil
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// applyVolume maps a linear [0,1] volume onto a base-2 gain exponent.
func applyVolume(vol *effects.Volume, v float64) {
	if v <= 0 {
		vol.Silent = true
		vol.Volume = 0
		return
	}
	vol.Silent = false
	vol.Volume = math.Log2(v)
}

var (
	errUnloaded    = errors.New("sound unloaded")
	errStreamEnded = errors.New("stream ended")
)
