// ABOUTME: In-memory audio engine used by the session tests
// ABOUTME: Counts live sounds and lets tests inject failures and status updates
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/harper/radio-player/internal/domain"
)

type fakeEngine struct {
	mu sync.Mutex

	createErr error
	playErr   error
	stopErr   error
	volumeErr error

	// stopGate, when set, blocks Stop until closed; stopEntered is signalled first.
	stopGate    chan struct{}
	stopEntered chan struct{}

	// Create for blockURI hangs until its context is cancelled, like a
	// server that sends headers and then stalls.
	blockURI      string
	createEntered chan struct{}

	configureCalls int
	creates        []createCall
	sounds         []*fakeSound
	live           int
	maxLive        int
}

type createCall struct {
	uri  string
	opts domain.CreateOptions
}

func (e *fakeEngine) ConfigureAudioMode(ctx context.Context, mode domain.AudioMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configureCalls++
	return nil
}

func (e *fakeEngine) Create(ctx context.Context, uri string, opts domain.CreateOptions, onStatus domain.StatusFunc) (domain.Sound, error) {
	if e.blockURI != "" && uri == e.blockURI {
		if e.createEntered != nil {
			e.createEntered <- struct{}{}
		}
		<-ctx.Done()

		e.mu.Lock()
		e.creates = append(e.creates, createCall{uri: uri, opts: opts})
		e.mu.Unlock()
		return nil, ctx.Err()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.creates = append(e.creates, createCall{uri: uri, opts: opts})
	if e.createErr != nil {
		return nil, e.createErr
	}

	s := &fakeSound{engine: e, onStatus: onStatus, volume: opts.Volume, loaded: true}
	e.sounds = append(e.sounds, s)
	e.live++
	if e.live > e.maxLive {
		e.maxLive = e.live
	}
	return s, nil
}

func (e *fakeEngine) createCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.creates)
}

func (e *fakeEngine) lastSound() *fakeSound {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.sounds) == 0 {
		return nil
	}
	return e.sounds[len(e.sounds)-1]
}

func (e *fakeEngine) liveCount() (live, max int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live, e.maxLive
}

type fakeSound struct {
	engine   *fakeEngine
	onStatus domain.StatusFunc

	mu       sync.Mutex
	loaded   bool
	playing  bool
	volume   float64
	unloaded bool
}

func (s *fakeSound) Play(ctx context.Context) error {
	if err := s.engine.playErr; err != nil {
		return err
	}
	s.mu.Lock()
	s.playing = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSound) Stop(ctx context.Context) error {
	e := s.engine
	if e.stopEntered != nil {
		e.stopEntered <- struct{}{}
	}
	if e.stopGate != nil {
		<-e.stopGate
	}
	if e.stopErr != nil {
		return e.stopErr
	}
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	return nil
}

func (s *fakeSound) Unload(ctx context.Context) error {
	s.mu.Lock()
	already := s.unloaded
	s.unloaded = true
	s.loaded = false
	s.mu.Unlock()

	if !already {
		s.engine.mu.Lock()
		s.engine.live--
		s.engine.mu.Unlock()
	}
	return nil
}

func (s *fakeSound) SetVolume(ctx context.Context, v float64) error {
	if err := s.engine.volumeErr; err != nil {
		return err
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

func (s *fakeSound) Status(ctx context.Context) (domain.PlaybackStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unloaded {
		return domain.PlaybackStatus{}, errors.New("sound unloaded")
	}
	return domain.PlaybackStatus{Loaded: s.loaded, Playing: s.playing, Volume: s.volume}, nil
}

func (s *fakeSound) isUnloaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unloaded
}

func (s *fakeSound) currentVolume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *fakeSound) setLoaded(loaded bool) {
	s.mu.Lock()
	s.loaded = loaded
	s.mu.Unlock()
}

// emit delivers a status update the way an engine ticker would.
func (s *fakeSound) emit(st domain.PlaybackStatus) {
	s.onStatus(st)
}
