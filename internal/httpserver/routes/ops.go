package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/mw"
)

func init() { Register("ops", registerOps) }

// registerOps mounts liveness publicly and everything operators use behind
// the CIDR allowlist.
func registerOps(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	r.Group(func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))

		r.Get("/readyz", handlers.Readyz(d))
		r.Get("/infra", handlers.Infra(d))
		if d.ReloadTrigger != nil {
			r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/reload", handlers.Reload(d))
		}
		if d.Metrics != nil {
			r.Handle("/metrics", d.Metrics)
		}
	})
}
