// ABOUTME: Domain interfaces for dependency inversion
// ABOUTME: The audio engine capability contract the session controller drives
package domain

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnsupportedPlatform is returned by an EngineLoader when the host has no
// usable audio output at all, as opposed to a module that failed to load.
var ErrUnsupportedPlatform = errors.New("audio playback not supported on this platform")

// StreamSource opens the byte stream behind an endpoint URI.
type StreamSource interface {
	Connect(ctx context.Context, uri string) (*Stream, error)
}

// Stream is an open upstream connection.
type Stream struct {
	Body io.ReadCloser
	// MetaInt is the ICY metadata interval announced by the server, 0 when absent.
	MetaInt int
	Name    string
}

// EngineLoader probes for the platform audio capability.
type EngineLoader interface {
	Load() (AudioEngine, error)
}

// LoaderFunc adapts a function to EngineLoader.
type LoaderFunc func() (AudioEngine, error)

func (f LoaderFunc) Load() (AudioEngine, error) { return f() }

// InterruptionMode controls how the engine reacts to other audio on the device.
type InterruptionMode int

const (
	InterruptionMixWithOthers InterruptionMode = iota
	InterruptionDoNotMix
	InterruptionDuckOthers
)

// AudioMode is the session-wide audio configuration applied once after load.
type AudioMode struct {
	AllowsRecording         bool
	PlaysInSilentMode       bool
	StaysActiveInBackground bool
	DuckOthers              bool
	ThroughEarpiece         bool
	Interruption            InterruptionMode
}

// CreateOptions are the initial settings for a new sound.
type CreateOptions struct {
	ShouldPlay       bool
	Volume           float64
	Looping          bool
	ProgressInterval time.Duration
}

// PlaybackStatus is a point-in-time report from a sound.
type PlaybackStatus struct {
	Loaded    bool
	Playing   bool
	Buffering bool
	Volume    float64
	// Error is set when the sound failed after creation. Only meaningful when !Loaded.
	Error       string
	StreamTitle string
}

// StatusFunc receives asynchronous status updates. It may be called from any goroutine.
type StatusFunc func(PlaybackStatus)

// AudioEngine creates sounds from URIs.
type AudioEngine interface {
	ConfigureAudioMode(ctx context.Context, mode AudioMode) error
	Create(ctx context.Context, uri string, opts CreateOptions, onStatus StatusFunc) (Sound, error)
}

// Sound is one loaded audio resource. Callers own it until Unload.
type Sound interface {
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	Unload(ctx context.Context) error
	SetVolume(ctx context.Context, v float64) error
	Status(ctx context.Context) (PlaybackStatus, error)
}
