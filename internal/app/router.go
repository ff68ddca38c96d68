package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian/internal/audit"
	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/companies"
	"github.com/meridian-crm/meridian/internal/modules"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
	"github.com/meridian-crm/meridian/internal/roles"
)

// RouterParams collects handlers and shared dependencies for routing.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	Identity         func(http.Handler) http.Handler
	AuthzHandler     *authz.Handler
	RolesHandler     *roles.Handler
	ModulesHandler   *modules.Handler
	CompaniesHandler *companies.Handler
	AuditHandler     *audit.Handler
}

// NewRouter assembles the HTTP router.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   p.Logger,
		Config:   p.Config,
		Metrics:  p.Metrics,
		Identity: p.Identity,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics.Handler())
	}

	r.Route("/api/admin", func(r chi.Router) {
		if p.AuthzHandler != nil {
			r.Route("/permissions", p.AuthzHandler.MountRoutes)
		}
		if p.RolesHandler != nil {
			r.Route("/roles", p.RolesHandler.MountRoutes)
		}
		if p.ModulesHandler != nil {
			r.Route("/modules", p.ModulesHandler.MountRoutes)
		}
		if p.CompaniesHandler != nil {
			r.Route("/companies", p.CompaniesHandler.MountRoutes)
		}
		if p.AuditHandler != nil {
			r.Route("/audit", p.AuditHandler.MountRoutes)
		}
	})

	return r
}
