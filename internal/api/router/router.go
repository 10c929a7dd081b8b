// Package router wires the HTTP surface: health, metrics and the
// machine endpoints behind patient auth.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marianoklecha/turnos-core/internal/http/handlers"
	httpmiddleware "github.com/marianoklecha/turnos-core/internal/http/middleware"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Machines           *handlers.MachineHandler
	SnapshotStream     *handlers.SnapshotStreamHandler
	UI                 *handlers.UIHandler
	MetricsHandler     http.Handler
	AuthJWTSecret      string
	CORSAllowedOrigins []string
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/machines", func(protected chi.Router) {
		protected.Use(httpmiddleware.PatientJWT(cfg.AuthJWTSecret))
		protected.Get("/", cfg.Machines.ListMachines)
		protected.Get("/{machineID}", cfg.Machines.GetSnapshot)
		protected.Post("/{machineID}/events", cfg.Machines.DispatchEvent)
		if cfg.SnapshotStream != nil {
			protected.Get("/{machineID}/ws", cfg.SnapshotStream.Stream)
		}
	})

	if cfg.UI != nil {
		r.Route("/ui", func(protected chi.Router) {
			protected.Use(httpmiddleware.PatientJWT(cfg.AuthJWTSecret))
			protected.Get("/", cfg.UI.GetState)
			protected.Post("/toasts/{toastID}/dismiss", cfg.UI.DismissToast)
			protected.Post("/panels/{panel}/toggle", cfg.UI.TogglePanel)
		})
	}

	return r
}
