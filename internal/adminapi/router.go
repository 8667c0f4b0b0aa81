// Package adminapi implements the host's read-only introspection HTTP
// surface (A3): liveness, Prometheus metrics, and the current module
// list. It never accepts writes — module management happens through
// the filesystem and hot-reload, not this API.
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trinitybot/trinity/internal/registry"
)

// RegistrySource returns whatever registry is currently live, so the
// router always reports the latest hot-reloaded state rather than a
// snapshot taken at router construction.
type RegistrySource func() *registry.Registry

// NewRouter builds the admin HTTP surface.
func NewRouter(source RegistrySource) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/healthz", healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/modules", modulesHandler(source))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func modulesHandler(source RegistrySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := source()
		w.Header().Set("Content-Type", "application/json")
		if reg == nil {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		json.NewEncoder(w).Encode(reg.All())
	}
}
