// ABOUTME: Failure policy for every engine call site
// ABOUTME: Fatal failures become user-visible errors, cleanup failures are only logged
package session

import (
	"errors"
	"fmt"

	"github.com/harper/radio-player/internal/domain"
)

type callSite int

const (
	siteLoad callSite = iota
	siteConfigure
	siteCreate
	sitePlay
	siteStop
	siteUnload
	siteSetVolume
	siteStatus
)

func (s callSite) String() string {
	switch s {
	case siteLoad:
		return "load"
	case siteConfigure:
		return "configure"
	case siteCreate:
		return "create"
	case sitePlay:
		return "play"
	case siteStop:
		return "stop"
	case siteUnload:
		return "unload"
	case siteSetVolume:
		return "set-volume"
	case siteStatus:
		return "status"
	default:
		return "unknown"
	}
}

type severity int

const (
	fatal severity = iota
	bestEffort
)

var callPolicy = map[callSite]severity{
	siteLoad:      fatal,
	siteConfigure: bestEffort,
	siteCreate:    fatal,
	sitePlay:      fatal,
	siteStop:      bestEffort,
	siteUnload:    bestEffort,
	siteSetVolume: bestEffort,
	siteStatus:    bestEffort,
}

// result is the outcome of one engine call.
type result struct {
	site callSite
	err  error
}

func (r result) ok() bool {
	return r.err == nil
}

func (r result) fatal() bool {
	return r.err != nil && callPolicy[r.site] == fatal
}

// message is the user-facing description of a fatal result.
func (r result) message() string {
	switch r.site {
	case siteLoad:
		if errors.Is(r.err, domain.ErrUnsupportedPlatform) {
			return "Audio playback is not supported on this platform"
		}
		return fmt.Sprintf("Audio module not available: %v", r.err)
	case siteCreate:
		return fmt.Sprintf("Unable to load stream: %v", r.err)
	case sitePlay:
		return fmt.Sprintf("Unable to play stream: %v", r.err)
	default:
		return fmt.Sprintf("Audio %s failed: %v", r.site, r.err)
	}
}
