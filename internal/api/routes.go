package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes wires the read API. metricsHandler is mounted at /metrics when set.
func (h *Handler) Routes(m *Middleware, rateLimitRPM int, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)

	r.Get("/healthz", h.Healthz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(m.RateLimit(rateLimitRPM))

		r.Get("/assets", h.ListAssets)
		r.Get("/assets/{code}/price", h.GetAssetPrice)
		r.Get("/vaults", h.ListVaults)
		r.Get("/vaults/{address}", h.GetVault)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
