package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian/internal/shared"
)

// AuditRecorder persists activity log entries for administrative writes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Admin mutates the policy tables. It is the only write path; every
// operation first passes the acting actor through the resolver, so the
// engine guards its own mutation surface with itself.
type Admin struct {
	store    AdminStore
	resolver *Resolver
	cache    *Cache
	audit    AuditRecorder
	logger   *slog.Logger
}

// NewAdmin constructs the administration service.
func NewAdmin(store AdminStore, resolver *Resolver, cache *Cache, audit AuditRecorder, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{store: store, resolver: resolver, cache: cache, audit: audit, logger: logger}
}

func (a *Admin) authorize(ctx context.Context, actor Actor, action Action) error {
	d, err := a.resolver.Decide(ctx, actor, ModuleCodePermissions, action)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason.Message())
	}
	return nil
}

// requirePlatform restricts an operation to platform-wide actors.
func (a *Admin) requirePlatform(actor Actor) error {
	if actor.IsSuperAdmin || actor.CompanyID == 0 {
		return nil
	}
	return fmt.Errorf("%w: platform operators only", ErrForbidden)
}

// RolePermissions returns the role's complete permission set.
func (a *Admin) RolePermissions(ctx context.Context, actor Actor, roleID int64) ([]RolePermission, error) {
	if err := a.authorize(ctx, actor, ActionRead); err != nil {
		return nil, err
	}
	if _, err := a.store.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return a.store.ListRolePermissions(ctx, roleID)
}

// ReplaceRolePermissions swaps the role's permission set wholesale.
// System roles are immutable; partial application is never observable.
func (a *Admin) ReplaceRolePermissions(ctx context.Context, actor Actor, roleID int64, rows []RolePermission) error {
	if err := a.authorize(ctx, actor, ActionUpdate); err != nil {
		return err
	}
	role, err := a.store.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("%w: role %q", ErrSystemRoleImmutable, role.Name)
	}
	// Stamp the role ID on a copy; the caller's slice stays untouched.
	cleaned := make([]RolePermission, len(rows))
	seen := make(map[int64]struct{}, len(rows))
	for i, row := range rows {
		if row.ModuleID <= 0 {
			return fmt.Errorf("%w: module id required", ErrInvalidInput)
		}
		if _, dup := seen[row.ModuleID]; dup {
			return fmt.Errorf("%w: duplicate module %d", ErrInvalidInput, row.ModuleID)
		}
		seen[row.ModuleID] = struct{}{}
		row.RoleID = roleID
		cleaned[i] = row
	}
	if err := a.store.ReplaceRolePermissions(ctx, roleID, cleaned); err != nil {
		return err
	}
	a.invalidate(ctx, a.cache.BumpRole, roleID, "role")
	a.record(ctx, actor, "authz.role_permissions.replace", "role", roleID, map[string]any{
		"rows": len(rows),
	})
	return nil
}

// CompanyModules lists a company's module assignment rows.
func (a *Admin) CompanyModules(ctx context.Context, actor Actor, companyID int64) ([]CompanyModule, error) {
	if err := a.authorize(ctx, actor, ActionRead); err != nil {
		return nil, err
	}
	if _, err := a.store.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	return a.store.ListCompanyModules(ctx, companyID)
}

// SetCompanyModule enables or disables a module for a company. The
// quota is checked at enable time only; re-enabling an already enabled
// module is a no-op success and never consumes additional quota.
func (a *Admin) SetCompanyModule(ctx context.Context, actor Actor, companyID, moduleID int64, enabled bool) error {
	if err := a.authorize(ctx, actor, ActionUpdate); err != nil {
		return err
	}
	if err := a.requirePlatform(actor); err != nil {
		return err
	}
	company, err := a.store.GetCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if _, err := a.store.GetModule(ctx, moduleID); err != nil {
		return err
	}
	current, err := a.store.GetCompanyModule(ctx, companyID, moduleID)
	if err != nil {
		return err
	}
	if current != nil && current.Enabled == enabled {
		return nil
	}
	if enabled && company.MaxModules != nil {
		count, err := a.store.CountEnabledModules(ctx, companyID)
		if err != nil {
			return err
		}
		if count >= int(*company.MaxModules) {
			return fmt.Errorf("%w: company %d at %d of %d", ErrModuleQuotaExceeded, companyID, count, *company.MaxModules)
		}
	}
	if err := a.store.UpsertCompanyModule(ctx, CompanyModule{CompanyID: companyID, ModuleID: moduleID, Enabled: enabled}); err != nil {
		return err
	}
	a.invalidate(ctx, a.cache.BumpCompany, companyID, "company")
	a.record(ctx, actor, "authz.company_module.set", "company_module",
		companyID, map[string]any{"module_id": moduleID, "enabled": enabled})
	return nil
}

// SetUserPermission upserts a user's module override. Company
// administrators may only target users within their own company.
func (a *Admin) SetUserPermission(ctx context.Context, actor Actor, userID, moduleID int64, flags Flags) error {
	if err := a.authorize(ctx, actor, ActionUpdate); err != nil {
		return err
	}
	targetCompany, err := a.store.GetUserCompany(ctx, userID)
	if err != nil {
		return err
	}
	if !actor.IsSuperAdmin && targetCompany != actor.CompanyID {
		return fmt.Errorf("%w: user %d is outside your company", ErrForbidden, userID)
	}
	if _, err := a.store.GetModule(ctx, moduleID); err != nil {
		return err
	}
	up := UserPermission{UserID: userID, ModuleID: moduleID, Flags: flags}
	if err := a.store.UpsertUserPermission(ctx, up); err != nil {
		return err
	}
	a.invalidate(ctx, a.cache.BumpUser, userID, "user")
	a.record(ctx, actor, "authz.user_permission.set", "user_permission",
		userID, map[string]any{"module_id": moduleID, "flags": flags})
	return nil
}

// SetCompanyPermission upserts a company feature toggle. Platform
// operators only.
func (a *Admin) SetCompanyPermission(ctx context.Context, actor Actor, companyID int64, feature string, enabled bool) error {
	if err := a.authorize(ctx, actor, ActionUpdate); err != nil {
		return err
	}
	if err := a.requirePlatform(actor); err != nil {
		return err
	}
	feature = strings.TrimSpace(strings.ToLower(feature))
	if feature == "" {
		return fmt.Errorf("%w: feature key required", ErrInvalidInput)
	}
	if _, err := a.store.GetCompany(ctx, companyID); err != nil {
		return err
	}
	if err := a.store.UpsertCompanyFeature(ctx, CompanyFeature{CompanyID: companyID, Feature: feature, Enabled: enabled}); err != nil {
		return err
	}
	a.invalidate(ctx, a.cache.BumpCompany, companyID, "company")
	a.record(ctx, actor, "authz.company_permission.set", "company_permission",
		companyID, map[string]any{"feature": feature, "enabled": enabled})
	return nil
}

// invalidate bumps a generation counter after a committed write. A
// failed bump only widens the staleness window to the entry TTL, so it
// is logged rather than propagated.
func (a *Admin) invalidate(ctx context.Context, bump func(context.Context, int64) error, id int64, scope string) {
	if err := bump(ctx, id); err != nil {
		a.logger.Warn("authz generation bump failed",
			slog.String("scope", scope), slog.Int64("id", id), slog.Any("error", err))
	}
}

func (a *Admin) record(ctx context.Context, actor Actor, action, entity string, entityID int64, meta map[string]any) {
	if a.audit == nil {
		return
	}
	err := a.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil {
		a.logger.Warn("authz audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
