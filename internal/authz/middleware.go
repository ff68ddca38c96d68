package authz

import (
	"net/http"

	"log/slog"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// Middleware wires authorization guards for HTTP handlers. Every
// privileged route passes through Require before its effect runs.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require ensures the current actor may perform action on the module.
// A store failure is answered with 503, never a silent allow: callers
// of the engine fail closed.
func (m Middleware) Require(moduleCode string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
				return
			}
			d, err := m.Resolver.Decide(r.Context(), actor, moduleCode, action)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz require",
						slog.String("module", moduleCode),
						slog.String("action", string(action)),
						slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusServiceUnavailable, "Authorization Unavailable", "could not determine permission")
				return
			}
			if !d.Allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", d.Reason.Message())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
