// ABOUTME: Explicit playback phase and the read-only session snapshot
// ABOUTME: Replaces independent playing/loading flags with one tagged state
package session

import "fmt"

// Phase is the controller's playback state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseBuffering
	PhasePlaying
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseBuffering:
		return "buffering"
	case PhasePlaying:
		return "playing"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for _, candidate := range []Phase{PhaseIdle, PhaseLoading, PhaseBuffering, PhasePlaying, PhaseError} {
		if candidate.String() == string(b) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Active reports whether a session is underway or being started.
func (p Phase) Active() bool {
	return p == PhaseLoading || p == PhaseBuffering || p == PhasePlaying
}

// Snapshot is a copy of the observable session state.
type Snapshot struct {
	Phase         Phase   `json:"phase"`
	IsPlaying     bool    `json:"isPlaying"`
	IsLoading     bool    `json:"isLoading"`
	Volume        float64 `json:"volume"`
	Error         string  `json:"error,omitempty"`
	CurrentStream string  `json:"currentStream"`
	StreamTitle   string  `json:"streamTitle,omitempty"`
}

// state is guarded by Controller.mu.
type state struct {
	phase Phase
	// rebuffering is set when Buffering was entered from Playing, so the
	// session still counts as playing while the engine refills.
	rebuffering bool
	err         string
	volume      float64
	current     string
	title       string
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Phase:         s.phase,
		IsPlaying:     s.phase == PhasePlaying || (s.phase == PhaseBuffering && s.rebuffering),
		IsLoading:     s.phase == PhaseLoading || s.phase == PhaseBuffering,
		Volume:        s.volume,
		Error:         s.err,
		CurrentStream: s.current,
		StreamTitle:   s.title,
	}
}

func (s *state) enter(p Phase) {
	if p != PhaseBuffering {
		s.rebuffering = false
	}
	if p != PhaseError {
		s.err = ""
	}
	s.phase = p
}

func (s *state) fail(msg string) {
	s.phase = PhaseError
	s.rebuffering = false
	s.err = msg
}
