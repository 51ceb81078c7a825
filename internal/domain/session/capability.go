// ABOUTME: Lazy, memoized acquisition of the platform audio engine
// ABOUTME: Tracks NotAttempted, Loaded and Unavailable explicitly
package session

import (
	"errors"
	"sync"

	"github.com/harper/radio-player/internal/domain"
)

// CapabilityState describes the outcome of probing for the audio engine.
type CapabilityState int

const (
	CapabilityNotAttempted CapabilityState = iota
	CapabilityLoaded
	CapabilityUnavailable
)

func (s CapabilityState) String() string {
	switch s {
	case CapabilityNotAttempted:
		return "not-attempted"
	case CapabilityLoaded:
		return "loaded"
	case CapabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var errNilEngine = errors.New("loader returned no engine")

// capability memoizes a successful load for the life of the process. A failed
// load is remembered until the next explicit acquire.
type capability struct {
	loader domain.EngineLoader

	mu             sync.Mutex
	state          CapabilityState
	engine         domain.AudioEngine
	err            error
	modeConfigured bool
}

func newCapability(loader domain.EngineLoader) *capability {
	return &capability{loader: loader}
}

func (c *capability) acquire() (domain.AudioEngine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CapabilityLoaded {
		return c.engine, nil
	}

	if c.loader == nil {
		c.state = CapabilityUnavailable
		c.err = domain.ErrUnsupportedPlatform
		return nil, c.err
	}

	engine, err := c.loader.Load()
	if err == nil && engine == nil {
		err = errNilEngine
	}
	if err != nil {
		c.state = CapabilityUnavailable
		c.err = err
		return nil, err
	}

	c.state = CapabilityLoaded
	c.engine = engine
	c.err = nil
	return engine, nil
}

// claimModeConfiguration returns true exactly once per loaded engine.
func (c *capability) claimModeConfiguration() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CapabilityLoaded || c.modeConfigured {
		return false
	}
	c.modeConfigured = true
	return true
}

func (c *capability) State() CapabilityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
