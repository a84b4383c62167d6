package handler

import (
	"net/http"

	"github.com/chatverso/internal/config"
)

// Counter reports how many connections this relay instance holds.
type Counter interface {
	Online() int
}

// StatusHandler serves the unauthenticated probe endpoints of the relay.
type StatusHandler struct {
	online Counter
	cfg    *config.Config
}

func NewStatusHandler(online Counter, cfg *config.Config) *StatusHandler {
	return &StatusHandler{online: online, cfg: cfg}
}

// Health answers liveness probes with the local connection count.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": h.online.Online(),
	})
}

// Limits returns the per-connection limits a client should respect.
func (h *StatusHandler) Limits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"max_message_size": h.cfg.WSMaxMessageSize,
		"rate_limit_rps":   h.cfg.WSRateLimitRPS,
		"rate_limit_burst": h.cfg.WSRateLimitBurst,
	})
}
