// ABOUTME: One loaded radio stream: network pump, buffering gate, and status ticker
// ABOUTME: Implements domain.Sound on top of beep controls
package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/domain"
	"github.com/harper/radio-player/internal/infrastructure/icy"
	"github.com/harper/radio-player/internal/infrastructure/ring"
)

type sound struct {
	id       string
	out      output
	body     io.ReadCloser
	buf      *ring.Buffer
	onStatus domain.StatusFunc
	cancel   context.CancelFunc
	log      zerolog.Logger

	decoder beep.StreamSeekCloser
	gate    *gate
	vol     *effects.Volume
	ctrl    *beep.Ctrl

	mu       sync.Mutex
	playing  bool
	volume   float64
	title    string
	upstream error // why the network side stopped, if not a clean EOF
	finished error // set once the mixer is done with this sound
	unloaded bool

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

func (s *sound) pump(r io.Reader) {
	defer s.wg.Done()

	_, err := io.Copy(s.buf, r)
	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		s.mu.Lock()
		if !s.unloaded {
			s.upstream = err
		}
		s.mu.Unlock()
	}
	s.buf.CloseWithError(err)
}

func (s *sound) prebuffer(ctx context.Context, want int) error {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()

	for s.buf.Len() < want && !s.buf.Closed() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upstream != nil && s.buf.Len() == 0 {
		return s.upstream
	}
	return nil
}

func (s *sound) setMeta(meta string) {
	title := icy.Title(meta)
	if title == "" {
		return
	}

	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
	s.log.Debug().Str("title", title).Msg("stream title")
}

// ended runs on the mixer goroutine when the stream drains.
func (s *sound) ended() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unloaded {
		return
	}
	switch {
	case s.upstream != nil:
		s.finished = s.upstream
	case s.decoder != nil && s.decoder.Err() != nil:
		s.finished = s.decoder.Err()
	default:
		s.finished = errStreamEnded
	}
}

func (s *sound) tick(every time.Duration) {
	defer s.wg.Done()

	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.emit()
		}
	}
}

func (s *sound) emit() {
	if s.onStatus != nil {
		s.onStatus(s.status())
	}
}

func (s *sound) status() domain.PlaybackStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unloaded {
		return domain.PlaybackStatus{Error: errUnloaded.Error()}
	}
	if s.finished != nil {
		return domain.PlaybackStatus{Error: s.finished.Error()}
	}

	buffering := s.playing && s.gate != nil && s.gate.buffering.Load()
	return domain.PlaybackStatus{
		Loaded:      true,
		Playing:     s.playing && !buffering,
		Buffering:   buffering,
		Volume:      s.volume,
		StreamTitle: s.title,
	}
}

func (s *sound) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.unloaded {
		s.mu.Unlock()
		return errUnloaded
	}
	if s.finished != nil {
		err := s.finished
		s.mu.Unlock()
		return err
	}
	s.playing = true
	s.mu.Unlock()

	s.out.Lock()
	s.ctrl.Paused = false
	s.out.Unlock()

	s.emit()
	return nil
}

func (s *sound) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.unloaded {
		s.mu.Unlock()
		return errUnloaded
	}
	s.playing = false
	s.mu.Unlock()

	s.out.Lock()
	s.ctrl.Paused = true
	s.out.Unlock()
	return nil
}

func (s *sound) SetVolume(ctx context.Context, v float64) error {
	v = clamp(v)

	s.mu.Lock()
	if s.unloaded {
		s.mu.Unlock()
		return errUnloaded
	}
	s.volume = v
	s.mu.Unlock()

	s.out.Lock()
	applyVolume(s.vol, v)
	s.out.Unlock()
	return nil
}

func (s *sound) Status(ctx context.Context) (domain.PlaybackStatus, error) {
	return s.status(), nil
}

// Unload disconnects the stream and removes it from the mixer. The network
// side is closed first so a decoder waiting on data cannot hold the mixer.
func (s *sound) Unload(ctx context.Context) error {
	s.mu.Lock()
	if s.unloaded {
		s.mu.Unlock()
		return nil
	}
	s.unloaded = true
	s.playing = false
	s.mu.Unlock()

	s.teardown()

	s.out.Lock()
	s.ctrl.Streamer = nil
	s.out.Unlock()

	if s.decoder != nil {
		if err := s.decoder.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close decoder")
		}
	}

	s.log.Debug().Msg("sound unloaded")
	return nil
}

// teardown stops the network side and background goroutines.
func (s *sound) teardown() {
	s.doneOnce.Do(func() { close(s.done) })
	s.cancel()
	s.body.Close()
	s.buf.CloseWithError(errUnloaded)
	s.wg.Wait()
}

// gate holds the decoder back while the network buffer is low, playing
// silence instead so the mixer never blocks on the socket.
type gate struct {
	streamer  beep.Streamer
	buf       *ring.Buffer
	lowWater  int
	buffering atomic.Bool
}

func (g *gate) Stream(samples [][2]float64) (int, bool) {
	if g.buf.Len() < g.lowWater && !g.buf.Closed() {
		g.buffering.Store(true)
		for i := range samples {
			samples[i] = [2]float64{}
		}
		return len(samples), true
	}
	g.buffering.Store(false)
	return g.streamer.Stream(samples)
}

func (g *gate) Err() error {
	return g.streamer.Err()
}
