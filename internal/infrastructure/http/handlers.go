// ABOUTME: HTTP handlers for the local player control API
// ABOUTME: Implements status, stream listing, playback commands, and health routes
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/harper/radio-player/internal/application/manager"
	"github.com/harper/radio-player/internal/domain/session"
)

// NewMux registers every control route.
func NewMux(mgr *manager.Manager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/status", NewStatusHandler(mgr))
	mux.Handle("/streams", NewStreamsHandler(mgr))
	mux.Handle("/metrics", mgr.Metrics().Handler())
	mux.HandleFunc("/healthz", HealthzHandler)

	cmd := NewCommandHandler(mgr)
	for _, path := range []string{"/play", "/pause", "/stop", "/volume", "/switch"} {
		mux.Handle(path, cmd)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

type StatusHandler struct {
	mgr *manager.Manager
}

func NewStatusHandler(mgr *manager.Manager) *StatusHandler {
	return &StatusHandler{mgr: mgr}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	type response struct {
		session.Snapshot
		Capability string `json:"capability"`
	}

	ctrl := h.mgr.Controller()
	writeJSON(w, http.StatusOK, response{
		Snapshot:   ctrl.Snapshot(),
		Capability: ctrl.Capability().String(),
	})
}

type StreamsHandler struct {
	mgr *manager.Manager
}

func NewStreamsHandler(mgr *manager.Manager) *StreamsHandler {
	return &StreamsHandler{mgr: mgr}
}

func (h *StreamsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type streamInfo struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		URL     string `json:"url"`
		Current bool   `json:"current"`
	}

	current := h.mgr.Controller().Snapshot().CurrentStream
	endpoints := h.mgr.Catalogue().List()
	result := make([]streamInfo, 0, len(endpoints))

	for _, ep := range endpoints {
		result = append(result, streamInfo{
			ID:      ep.ID,
			Name:    ep.Name,
			URL:     ep.URL,
			Current: ep.ID == current,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

// CommandHandler runs one controller command per POST and replies with the
// resulting snapshot. Playback failures are part of the snapshot, not the
// HTTP status.
type CommandHandler struct {
	mgr *manager.Manager
}

func NewCommandHandler(mgr *manager.Manager) *CommandHandler {
	return &CommandHandler{mgr: mgr}
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	ctrl := h.mgr.Controller()
	ctx := r.Context()
	stream := r.FormValue("stream")

	switch strings.Trim(r.URL.Path, "/") {
	case "play":
		ctrl.Play(ctx, stream)
	case "pause":
		ctrl.Pause(ctx)
	case "stop":
		ctrl.Stop(ctx)
	case "volume":
		v, err := strconv.ParseFloat(r.FormValue("v"), 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "v must be a number in [0, 1]"})
			return
		}
		ctrl.ChangeVolume(ctx, v)
	case "switch":
		if _, ok := h.mgr.Catalogue().Get(stream); !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown stream"})
			return
		}
		ctrl.SwitchStream(ctx, stream)
	default:
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK bool `json:"ok"`
	}

	writeJSON(w, http.StatusOK, response{OK: true})
}
