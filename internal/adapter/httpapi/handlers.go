package httpapi

import (
	"errors"
	"net/http"

	"portal-session/internal/application/port/input"
	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
	"portal-session/internal/domain/errs"
)

// SessionHandler serves the REST side of the session API.
type SessionHandler struct {
	registry input.SessionRegistry
	logger   output.LoggerPort
}

func NewSessionHandler(registry input.SessionRegistry, logger output.LoggerPort) *SessionHandler {
	return &SessionHandler{registry: registry, logger: logger}
}

// Start handles POST /session/start. Any existing session is closed first.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Start(r.Context())
	if err != nil {
		h.logger.Error("Session start failed", "session_id", snap.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, snap.Message())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: snap.Status.String()})
}

// Status handles GET /session/status.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Current()
	if !ok {
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  entity.StatusIdle.String(),
			Message: entity.StatusMessage(entity.StatusIdle, nil, ""),
		})
		return
	}
	snap := s.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{Status: snap.Status.String(), Message: snap.Message()})
}

// Screenshot handles GET /session/screenshot.
func (h *SessionHandler) Screenshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Current()
	if !ok {
		http.NotFound(w, r)
		return
	}

	shot, err := s.Screenshot(r.Context())
	if errors.Is(err, errs.ErrSessionNotStarted) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Warn("Screenshot failed", "error", err)
		writeError(w, http.StatusBadGateway, "screenshot failed")
		return
	}

	w.Header().Set("Content-Type", shot.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(shot.Data)
}

// Close handles POST /session/close.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.registry.Close()
	writeJSON(w, http.StatusOK, statusResponse{Status: "closed"})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
