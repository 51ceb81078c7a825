// ABOUTME: Stream session controller owning the single live playback handle
// ABOUTME: Converts every engine failure into state; nothing is returned to callers
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harper/radio-player/internal/domain"
	"github.com/harper/radio-player/internal/domain/station"
)

// ErrUnknownStream is reported when a stream ID is not in the catalogue.
var ErrUnknownStream = errors.New("unknown stream")

const (
	DefaultSettleDelay      = 500 * time.Millisecond
	DefaultProgressInterval = time.Second
)

// Recorder observes controller activity. Implementations must not block.
type Recorder interface {
	PhaseChanged(p Phase)
	HandleOpened()
	HandleReleased()
	EngineCallFailed(site string, fatal bool)
	SwitchIgnored()
}

type nopRecorder struct{}

func (nopRecorder) PhaseChanged(Phase)            {}
func (nopRecorder) HandleOpened()                 {}
func (nopRecorder) HandleReleased()               {}
func (nopRecorder) EngineCallFailed(string, bool) {}
func (nopRecorder) SwitchIgnored()                {}

type Options struct {
	// Volume is the initial volume in [0, 1].
	Volume           float64
	SettleDelay      time.Duration
	ProgressInterval time.Duration
	AudioMode        domain.AudioMode
	Recorder         Recorder
}

// handle is the controller's private reference to one engine sound.
type handle struct {
	id     string
	stream string
	sound  domain.Sound
}

// Controller owns at most one playback session against a fixed catalogue.
//
// Handle ownership changes are serialized by opMu. Every command first bumps
// gen and cancels the pending load or settle wait, so the newest command never
// queues behind a stalled connection. SwitchStream additionally drops calls
// that overlap a switch in progress. Engine status callbacks only take mu.
type Controller struct {
	catalogue  *station.Catalogue
	capability *capability
	opts       Options
	rec        Recorder
	log        zerolog.Logger

	opMu      sync.Mutex
	switching atomic.Bool

	mu      sync.Mutex
	st      state
	handle  *handle
	gen     uint64
	pending context.CancelFunc
	subs    map[chan Snapshot]struct{}
}

func New(catalogue *station.Catalogue, loader domain.EngineLoader, opts Options, log zerolog.Logger) *Controller {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	return &Controller{
		catalogue:  catalogue,
		capability: newCapability(loader),
		opts:       opts,
		rec:        opts.Recorder,
		log:        log.With().Str("component", "session").Logger(),
		st: state{
			phase:   PhaseIdle,
			volume:  clampVolume(opts.Volume),
			current: catalogue.DefaultID(),
		},
		subs: make(map[chan Snapshot]struct{}),
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshot()
}

func (c *Controller) Capability() CapabilityState {
	return c.capability.State()
}

// Subscribe returns a channel that receives a snapshot after every state
// change. Slow readers miss intermediate snapshots. Call cancel to stop.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// update applies fn under the state lock and notifies subscribers.
func (c *Controller) update(fn func(s *state)) {
	c.detach(fn, false)
}

// detach applies fn under the state lock, optionally taking the active
// handle in the same critical section, and notifies subscribers.
func (c *Controller) detach(fn func(s *state), takeHandle bool) *handle {
	c.mu.Lock()
	var h *handle
	if takeHandle {
		h = c.handle
		c.handle = nil
	}
	before := c.st.phase
	if fn != nil {
		fn(&c.st)
	}
	snap := c.st.snapshot()
	if snap.Phase != before {
		c.rec.PhaseChanged(snap.Phase)
	}
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	c.mu.Unlock()
	return h
}

// supersede starts a new command generation and cancels whatever the
// previous command is still waiting on.
func (c *Controller) supersede() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.pending != nil {
		c.pending()
		c.pending = nil
	}
	return c.gen
}

// begin derives a context the next command can cancel. It reports false if
// gen is already stale.
func (c *Controller) begin(ctx context.Context, gen uint64) (context.Context, func(), bool) {
	pctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		cancel()
		return nil, nil, false
	}
	c.pending = cancel

	done := func() {
		c.mu.Lock()
		if c.gen == gen {
			c.pending = nil
		}
		c.mu.Unlock()
		cancel()
	}
	return pctx, done, true
}

func (c *Controller) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != gen
}

// call runs one engine operation and applies the failure policy.
func (c *Controller) call(site callSite, h *handle, fn func() error) result {
	r := result{site: site, err: fn()}
	if r.ok() {
		return r
	}

	c.rec.EngineCallFailed(site.String(), r.fatal())

	ev := c.log.Warn()
	if r.fatal() {
		ev = c.log.Error()
	}
	if h != nil {
		ev = ev.Str("handle", h.id).Str("stream", h.stream)
	}
	ev.Err(r.err).Str("call", site.String()).Bool("fatal", r.fatal()).Msg("engine call failed")
	return r
}

// Play starts the given stream, or the current one when streamID is empty.
// A load still in progress from an earlier command is abandoned.
func (c *Controller) Play(ctx context.Context, streamID string) {
	gen := c.supersede()

	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.play(ctx, streamID, gen)
}

func (c *Controller) play(ctx context.Context, streamID string, gen uint64) {
	loadCtx, done, ok := c.begin(ctx, gen)
	if !ok {
		return
	}
	defer done()

	// fail records msg unless a newer command has taken over.
	fail := func(msg string) {
		c.update(func(s *state) {
			if c.gen == gen {
				s.fail(msg)
			}
		})
	}

	var volume float64
	c.update(func(s *state) {
		if streamID == "" {
			streamID = s.current
		}
		volume = s.volume
		s.enter(PhaseLoading)
	})

	ep, ok := c.catalogue.Get(streamID)
	if !ok {
		c.release(ctx)
		fail(fmt.Sprintf("%v: %q", ErrUnknownStream, streamID))
		return
	}

	engine, r := c.ensureEngine(ctx)
	if !r.ok() {
		fail(r.message())
		return
	}

	c.release(ctx)

	h := &handle{id: uuid.NewString(), stream: ep.ID}
	opts := domain.CreateOptions{
		ShouldPlay:       false,
		Volume:           volume,
		ProgressInterval: c.opts.ProgressInterval,
	}

	c.log.Debug().Str("handle", h.id).Str("stream", ep.ID).Str("url", ep.URL).Float64("volume", volume).Msg("creating sound")

	sound, err := engine.Create(loadCtx, ep.URL, opts, c.statusFunc(h))
	if err == nil && sound == nil {
		err = errors.New("engine returned no sound")
	}
	h.sound = sound

	if c.superseded(gen) {
		if sound != nil {
			c.unload(ctx, h)
		}
		c.log.Debug().Str("handle", h.id).Str("stream", ep.ID).Msg("load superseded")
		return
	}

	r = c.call(siteCreate, h, func() error { return err })
	if !r.ok() {
		if sound != nil {
			c.unload(ctx, h)
		}
		fail(r.message())
		return
	}

	c.mu.Lock()
	stale := c.gen != gen
	if !stale {
		c.handle = h
	}
	c.mu.Unlock()
	if stale {
		c.unload(ctx, h)
		return
	}
	c.rec.HandleOpened()

	if r = c.call(sitePlay, h, func() error { return h.sound.Play(ctx) }); !r.ok() {
		c.release(ctx)
		fail(r.message())
		return
	}

	var want float64
	c.update(func(s *state) {
		s.current = ep.ID
		s.title = ""
		want = s.volume
	})
	if want != volume {
		c.call(siteSetVolume, h, func() error { return h.sound.SetVolume(ctx, want) })
	}
	c.log.Info().Str("handle", h.id).Str("stream", ep.ID).Msg("playback requested")
}

// ensureEngine acquires the engine and applies the audio mode once.
func (c *Controller) ensureEngine(ctx context.Context) (domain.AudioEngine, result) {
	var engine domain.AudioEngine
	r := c.call(siteLoad, nil, func() error {
		e, err := c.capability.acquire()
		engine = e
		return err
	})
	if !r.ok() {
		return nil, r
	}

	if c.capability.claimModeConfiguration() {
		c.call(siteConfigure, nil, func() error {
			return engine.ConfigureAudioMode(ctx, c.opts.AudioMode)
		})
	}
	return engine, r
}

// release detaches the active handle, then stops and unloads it.
func (c *Controller) release(ctx context.Context) {
	c.dispose(ctx, c.detach(nil, true))
}

// dispose stops and unloads h. Unload is attempted whatever stop returns.
func (c *Controller) dispose(ctx context.Context, h *handle) {
	if h == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	c.call(siteStop, h, func() error { return h.sound.Stop(ctx) })
	c.unload(ctx, h)
	c.rec.HandleReleased()

	c.log.Debug().Str("handle", h.id).Str("stream", h.stream).Msg("sound released")
}

func (c *Controller) unload(ctx context.Context, h *handle) {
	c.call(siteUnload, h, func() error { return h.sound.Unload(context.WithoutCancel(ctx)) })
}

// Pause releases the session. A live stream cannot be resumed where it left
// off, so pausing tears the sound down exactly like Stop.
func (c *Controller) Pause(ctx context.Context) {
	gen := c.supersede()

	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.superseded(gen) {
		return
	}

	h := c.detach(func(s *state) { s.enter(PhaseIdle) }, true)
	c.dispose(ctx, h)
}

func (c *Controller) Stop(ctx context.Context) {
	c.Pause(ctx)
}

// Close tears the session down for good.
func (c *Controller) Close(ctx context.Context) {
	c.supersede()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	h := c.detach(func(s *state) {
		if s.phase != PhaseError {
			s.enter(PhaseIdle)
		}
	}, true)
	c.dispose(ctx, h)
}

// ChangeVolume records v immediately and pushes it to a loaded sound. It
// does not wait for a pending load; play applies the latest volume once the
// sound is attached.
func (c *Controller) ChangeVolume(ctx context.Context, v float64) {
	v = clampVolume(v)
	c.update(func(s *state) { s.volume = v })

	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return
	}

	var st domain.PlaybackStatus
	r := c.call(siteStatus, h, func() error {
		var err error
		st, err = h.sound.Status(ctx)
		return err
	})
	if !r.ok() || !st.Loaded {
		return
	}

	c.call(siteSetVolume, h, func() error { return h.sound.SetVolume(ctx, v) })
}

// SwitchStream retunes to streamID. Playback restarts only if it was active.
func (c *Controller) SwitchStream(ctx context.Context, streamID string) {
	if !c.switching.CompareAndSwap(false, true) {
		c.log.Warn().Str("stream", streamID).Msg("switch already in progress, ignoring")
		c.rec.SwitchIgnored()
		return
	}
	defer c.switching.Store(false)

	gen := c.supersede()

	c.opMu.Lock()
	if c.superseded(gen) {
		c.opMu.Unlock()
		return
	}

	if _, ok := c.catalogue.Get(streamID); !ok {
		h := c.detach(func(s *state) { s.fail(fmt.Sprintf("%v: %q", ErrUnknownStream, streamID)) }, true)
		c.dispose(ctx, h)
		c.opMu.Unlock()
		return
	}

	var wasActive bool
	h := c.detach(func(s *state) {
		wasActive = s.phase.Active()
		s.current = streamID
		s.title = ""
		switch {
		case wasActive:
			s.enter(PhaseLoading)
		case s.phase != PhaseError:
			s.enter(PhaseIdle)
		}
	}, true)
	c.dispose(ctx, h)
	c.opMu.Unlock()

	c.log.Info().Str("stream", streamID).Bool("resume", wasActive).Msg("switching stream")

	if !wasActive {
		return
	}

	waitCtx, done, ok := c.begin(ctx, gen)
	if !ok {
		return
	}

	t := time.NewTimer(c.opts.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		done()
	case <-waitCtx.Done():
		done()
		c.update(func(s *state) {
			if c.gen == gen {
				s.enter(PhaseIdle)
			}
		})
		return
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.play(ctx, streamID, gen)
}

func (c *Controller) statusFunc(h *handle) domain.StatusFunc {
	return func(st domain.PlaybackStatus) {
		c.onStatus(h, st)
	}
}

func (c *Controller) onStatus(h *handle, st domain.PlaybackStatus) {
	if st.Loaded && !st.Playing && !st.Buffering && c.switching.Load() {
		return
	}
	c.update(func(s *state) {
		// Callbacks from a released sound race with its teardown.
		if c.handle != h {
			return
		}

		switch {
		case st.Loaded && st.Playing:
			s.enter(PhasePlaying)
			if st.StreamTitle != "" {
				s.title = st.StreamTitle
			}
		case st.Loaded && st.Buffering:
			if s.phase != PhaseBuffering {
				s.rebuffering = s.phase == PhasePlaying
			}
			s.phase = PhaseBuffering
		case st.Loaded:
			// Still waiting for the play command to take effect.
			if s.phase == PhaseLoading || s.phase == PhaseIdle {
				return
			}
			s.enter(PhaseIdle)
		case st.Error != "":
			msg := "Playback error: " + st.Error
			if s.phase == PhaseError && s.err == msg {
				return
			}
			c.log.Error().Str("handle", h.id).Str("stream", h.stream).Str("engine_error", st.Error).Msg("playback error")
			s.fail(msg)
		}
	})
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
