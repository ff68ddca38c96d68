package roles

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

type permissionSource interface {
	RolePermissions(ctx context.Context, actor authz.Actor, roleID int64) ([]authz.RolePermission, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	permissions permissionSource
	guard       authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, permissions permissionSource, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, permissions: permissions, guard: guard}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ModuleCodePermissions, authz.ActionRead))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ModuleCodePermissions, authz.ActionCreate))
		r.Post("/", h.createRole)
	})
}

type roleWithPermissions struct {
	Role
	Permissions []authz.RolePermission `json:"permissions"`
}

// listRoles returns every role together with its complete permission
// set. Permission sets are fetched concurrently per role.
func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	list, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleWithPermissions, len(list))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for i, role := range list {
		i, role := i, role
		g.Go(func() error {
			perms, err := h.permissions.RolePermissions(ctx, actor, role.ID)
			if err != nil {
				return err
			}
			if perms == nil {
				perms = []authz.RolePermission{}
			}
			out[i] = roleWithPermissions{Role: role, Permissions: perms}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("list role permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "could not load role permissions")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

type createRolePayload struct {
	Name string `json:"name"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var payload createRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	role, err := h.service.CreateRole(r.Context(), payload.Name)
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("create role", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}
