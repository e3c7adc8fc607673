package relay

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/session"
)

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth reports liveness. Kept deliberately free of detail so it can
// stay unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "healthy"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// clientHandlers forwards speech session events to one connected client.
// Send failures mean the client is gone or going; the read loop notices and
// tears the session down, so failures here are only logged.
type clientHandlers struct {
	client *Client
	log    *logging.Logger
}

func (h *clientHandlers) OnStatus(state session.State) {
	if err := h.client.SendStatus(state.String()); err != nil {
		h.log.Debug().Err(err).Msg("status frame dropped")
	}
}

func (h *clientHandlers) OnAudio(pcm []byte) {
	if err := h.client.SendAudio(base64.StdEncoding.EncodeToString(pcm)); err != nil {
		h.log.Debug().Err(err).Msg("audio frame dropped")
	}
}

func (h *clientHandlers) OnTranscript(text string) {
	if err := h.client.SendTranscript(text); err != nil {
		h.log.Debug().Err(err).Msg("transcript frame dropped")
	}
}

// OnSpeechStarted fires on barge-in. The server-side queue is already cut;
// the client must also drop whatever it has buffered for its speaker.
func (h *clientHandlers) OnSpeechStarted() {
	if err := h.client.SendClearAudio(); err != nil {
		h.log.Debug().Err(err).Msg("clear_audio frame dropped")
	}
}

func (h *clientHandlers) OnError(message string) {
	if err := h.client.SendError(message); err != nil {
		h.log.Debug().Err(err).Msg("error frame dropped")
	}
}
