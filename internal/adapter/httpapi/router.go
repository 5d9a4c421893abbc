package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"

	"portal-session/internal/application/port/output"
)

type RouterConfig struct {
	CORSOrigins []string
	// RequestLogs enables per-request access logs.
	RequestLogs bool
}

// NewRouter mounts the session API at /session and, for the web client, /api/session.
func NewRouter(h *SessionHandler, gw *Gateway, cfg RouterConfig, logger output.LoggerPort) *chi.Mux {
	r := chi.NewRouter()

	if cfg.RequestLogs {
		r.Use(httplog.RequestLogger(httplog.NewLogger("portal-session", httplog.Options{JSON: true, Concise: true})))
	}
	r.Use(Recovery(logger))
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", Health)

	routes := func(r chi.Router) {
		r.Post("/start", h.Start)
		r.Get("/status", h.Status)
		r.Get("/screenshot", h.Screenshot)
		r.Post("/close", h.Close)
		r.Method(http.MethodGet, "/stream", gw)
	}
	r.Route("/session", routes)
	r.Route("/api/session", routes)

	return r
}
