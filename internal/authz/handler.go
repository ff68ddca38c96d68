package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

type adminService interface {
	RolePermissions(ctx context.Context, actor Actor, roleID int64) ([]RolePermission, error)
	ReplaceRolePermissions(ctx context.Context, actor Actor, roleID int64, rows []RolePermission) error
	CompanyModules(ctx context.Context, actor Actor, companyID int64) ([]CompanyModule, error)
	SetCompanyModule(ctx context.Context, actor Actor, companyID, moduleID int64, enabled bool) error
	SetUserPermission(ctx context.Context, actor Actor, userID, moduleID int64, flags Flags) error
	SetCompanyPermission(ctx context.Context, actor Actor, companyID int64, feature string, enabled bool) error
}

// Handler exposes the administrative surface and a decision probe.
type Handler struct {
	logger   *slog.Logger
	admin    adminService
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, admin adminService, resolver *Resolver) *Handler {
	return &Handler{logger: logger, admin: admin, resolver: resolver, validate: validator.New()}
}

// MountRoutes registers the permission administration routes. The
// administration service re-checks the actor itself, so a broken route
// guard cannot widen access.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check/{module}/{action}", h.check)
	r.Get("/roles/{roleID}/permissions", h.rolePermissions)
	r.Put("/roles/{roleID}/permissions", h.replaceRolePermissions)
	r.Get("/companies/{companyID}/modules", h.companyModules)
	r.Put("/companies/{companyID}/modules/{moduleID}", h.setCompanyModule)
	r.Put("/companies/{companyID}/features/{feature}", h.setCompanyFeature)
	r.Put("/users/{userID}/permissions/{moduleID}", h.setUserPermission)
}

type permissionRowPayload struct {
	ModuleID  int64 `json:"module_id" validate:"required,gt=0"`
	CanCreate bool  `json:"can_create"`
	CanRead   bool  `json:"can_read"`
	CanUpdate bool  `json:"can_update"`
	CanDelete bool  `json:"can_delete"`
}

type replacePermissionsPayload struct {
	// An empty set is valid; it clears the role's grants.
	Rows []permissionRowPayload `json:"rows" validate:"dive"`
}

type togglePayload struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type flagsPayload struct {
	CanCreate bool `json:"can_create"`
	CanRead   bool `json:"can_read"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	action, err := ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	d, err := h.resolver.Decide(r.Context(), actor, chi.URLParam(r, "module"), action)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allowed": d.Allowed,
		"reason":  d.Reason,
		"message": d.Reason.Message(),
	})
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rows, err := h.admin.RolePermissions(r.Context(), actor, roleID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	out := make([]permissionRowPayload, 0, len(rows))
	for _, p := range rows {
		out = append(out, permissionRowPayload{
			ModuleID:  p.ModuleID,
			CanCreate: p.CanCreate,
			CanRead:   p.CanRead,
			CanUpdate: p.CanUpdate,
			CanDelete: p.CanDelete,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_id": roleID, "rows": out})
}

func (h *Handler) replaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var payload replacePermissionsPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rows := make([]RolePermission, 0, len(payload.Rows))
	for _, p := range payload.Rows {
		rows = append(rows, RolePermission{
			RoleID:   roleID,
			ModuleID: p.ModuleID,
			Flags: Flags{
				CanCreate: p.CanCreate,
				CanRead:   p.CanRead,
				CanUpdate: p.CanUpdate,
				CanDelete: p.CanDelete,
			},
		})
	}
	if err := h.admin.ReplaceRolePermissions(r.Context(), actor, roleID, rows); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_id": roleID, "rows": len(rows)})
}

func (h *Handler) companyModules(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rows, err := h.admin.CompanyModules(r.Context(), actor, companyID)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"company_id": companyID, "modules": rows})
}

func (h *Handler) setCompanyModule(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	moduleID, err := pathID(r, "moduleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var payload togglePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.admin.SetCompanyModule(r.Context(), actor, companyID, moduleID, *payload.Enabled); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"company_id": companyID, "module_id": moduleID, "enabled": *payload.Enabled})
}

func (h *Handler) setCompanyFeature(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	companyID, err := pathID(r, "companyID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var payload togglePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	feature := chi.URLParam(r, "feature")
	if err := h.admin.SetCompanyPermission(r.Context(), actor, companyID, feature, *payload.Enabled); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"company_id": companyID, "feature": feature, "enabled": *payload.Enabled})
}

func (h *Handler) setUserPermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no authenticated actor")
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	moduleID, err := pathID(r, "moduleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var payload flagsPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	flags := Flags{
		CanCreate: payload.CanCreate,
		CanRead:   payload.CanRead,
		CanUpdate: payload.CanUpdate,
		CanDelete: payload.CanDelete,
	}
	if err := h.admin.SetUserPermission(r.Context(), actor, userID, moduleID, flags); err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "module_id": moduleID, "flags": flags})
}

// respondErr maps engine errors to problem responses. Administrative
// constraint violations travel verbatim so the operator sees which
// constraint failed, not a bare "forbidden".
func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrSystemRoleImmutable):
		httpx.Problem(w, http.StatusConflict, "System Role Immutable", err.Error())
	case errors.Is(err, ErrModuleQuotaExceeded):
		httpx.Problem(w, http.StatusConflict, "Module Quota Exceeded", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		h.logger.Error("authz store unavailable", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "could not determine permission")
	default:
		h.logger.Error("authz admin", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
