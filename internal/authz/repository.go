package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the policy
// tables. It implements AdminStore.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a repository. A non-zero timeout bounds each
// store round-trip so a slow database surfaces as ErrStoreUnavailable
// instead of hanging the resolution.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{pool: pool, timeout: timeout}
}

func (r *Repository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, roleID int64) (Role, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, is_system, is_super, created_at, updated_at FROM roles WHERE id = $1`,
		roleID,
	).Scan(&role.ID, &role.Name, &role.IsSystemRole, &role.IsSuperRole, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", roleID, ErrNotFound)
		}
		return Role{}, storeErr("get role", err)
	}
	return role, nil
}

// GetModule fetches a module by ID.
func (r *Repository) GetModule(ctx context.Context, moduleID int64) (Module, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var m Module
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, is_active, display_order FROM modules WHERE id = $1`,
		moduleID,
	).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, fmt.Errorf("module %d: %w", moduleID, ErrNotFound)
		}
		return Module{}, storeErr("get module", err)
	}
	return m, nil
}

// GetModuleByCode fetches a module by its stable code.
func (r *Repository) GetModuleByCode(ctx context.Context, code string) (Module, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var m Module
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, is_active, display_order FROM modules WHERE code = $1`,
		code,
	).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, fmt.Errorf("module %q: %w", code, ErrNotFound)
		}
		return Module{}, storeErr("get module", err)
	}
	return m, nil
}

// ListRolePermissions returns the role's complete permission set.
func (r *Repository) ListRolePermissions(ctx context.Context, roleID int64) ([]RolePermission, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT role_id, module_id, can_create, can_read, can_update, can_delete
		 FROM role_permissions WHERE role_id = $1 ORDER BY module_id`,
		roleID,
	)
	if err != nil {
		return nil, storeErr("list role permissions", err)
	}
	defer rows.Close()
	var perms []RolePermission
	for rows.Next() {
		var p RolePermission
		if err := rows.Scan(&p.RoleID, &p.ModuleID, &p.CanCreate, &p.CanRead, &p.CanUpdate, &p.CanDelete); err != nil {
			return nil, storeErr("scan role permission", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list role permissions", err)
	}
	return perms, nil
}

// GetRolePermission returns the row for (role, module), nil when absent.
func (r *Repository) GetRolePermission(ctx context.Context, roleID, moduleID int64) (*RolePermission, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var p RolePermission
	err := r.pool.QueryRow(ctx,
		`SELECT role_id, module_id, can_create, can_read, can_update, can_delete
		 FROM role_permissions WHERE role_id = $1 AND module_id = $2`,
		roleID, moduleID,
	).Scan(&p.RoleID, &p.ModuleID, &p.CanCreate, &p.CanRead, &p.CanUpdate, &p.CanDelete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get role permission", err)
	}
	return &p, nil
}

// ListCompanyModules returns every module assignment row for a company.
func (r *Repository) ListCompanyModules(ctx context.Context, companyID int64) ([]CompanyModule, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT company_id, module_id, enabled FROM company_modules WHERE company_id = $1 ORDER BY module_id`,
		companyID,
	)
	if err != nil {
		return nil, storeErr("list company modules", err)
	}
	defer rows.Close()
	var mods []CompanyModule
	for rows.Next() {
		var cm CompanyModule
		if err := rows.Scan(&cm.CompanyID, &cm.ModuleID, &cm.Enabled); err != nil {
			return nil, storeErr("scan company module", err)
		}
		mods = append(mods, cm)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list company modules", err)
	}
	return mods, nil
}

// GetCompanyModule returns the row for (company, module), nil when absent.
func (r *Repository) GetCompanyModule(ctx context.Context, companyID, moduleID int64) (*CompanyModule, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var cm CompanyModule
	err := r.pool.QueryRow(ctx,
		`SELECT company_id, module_id, enabled FROM company_modules WHERE company_id = $1 AND module_id = $2`,
		companyID, moduleID,
	).Scan(&cm.CompanyID, &cm.ModuleID, &cm.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get company module", err)
	}
	return &cm, nil
}

// GetCompanyFeature returns the feature toggle row, nil when absent.
func (r *Repository) GetCompanyFeature(ctx context.Context, companyID int64, feature string) (*CompanyFeature, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var cf CompanyFeature
	err := r.pool.QueryRow(ctx,
		`SELECT company_id, feature, enabled FROM company_permissions WHERE company_id = $1 AND feature = $2`,
		companyID, feature,
	).Scan(&cf.CompanyID, &cf.Feature, &cf.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get company feature", err)
	}
	return &cf, nil
}

// ListUserPermissions returns every override row for a user.
func (r *Repository) ListUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, module_id, can_create, can_read, can_update, can_delete
		 FROM user_permissions WHERE user_id = $1 ORDER BY module_id`,
		userID,
	)
	if err != nil {
		return nil, storeErr("list user permissions", err)
	}
	defer rows.Close()
	var perms []UserPermission
	for rows.Next() {
		var p UserPermission
		if err := rows.Scan(&p.UserID, &p.ModuleID, &p.CanCreate, &p.CanRead, &p.CanUpdate, &p.CanDelete); err != nil {
			return nil, storeErr("scan user permission", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list user permissions", err)
	}
	return perms, nil
}

// GetUserPermission returns the override row for (user, module), nil when absent.
func (r *Repository) GetUserPermission(ctx context.Context, userID, moduleID int64) (*UserPermission, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var p UserPermission
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, module_id, can_create, can_read, can_update, can_delete
		 FROM user_permissions WHERE user_id = $1 AND module_id = $2`,
		userID, moduleID,
	).Scan(&p.UserID, &p.ModuleID, &p.CanCreate, &p.CanRead, &p.CanUpdate, &p.CanDelete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get user permission", err)
	}
	return &p, nil
}

// GetCompany fetches a company with its module quota.
func (r *Repository) GetCompany(ctx context.Context, companyID int64) (Company, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var c Company
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, max_modules FROM companies WHERE id = $1`,
		companyID,
	).Scan(&c.ID, &c.Name, &c.MaxModules)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, fmt.Errorf("company %d: %w", companyID, ErrNotFound)
		}
		return Company{}, storeErr("get company", err)
	}
	return c, nil
}

// GetUserCompany returns a user's company ID, zero for platform users.
func (r *Repository) GetUserCompany(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var companyID *int64
	err := r.pool.QueryRow(ctx, `SELECT company_id FROM users WHERE id = $1`, userID).Scan(&companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return 0, storeErr("get user company", err)
	}
	if companyID == nil {
		return 0, nil
	}
	return *companyID, nil
}

// ReplaceRolePermissions swaps the role's permission set atomically.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID int64, perms []RolePermission) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, module_id, can_create, can_read, can_update, can_delete)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				roleID, p.ModuleID, p.CanCreate, p.CanRead, p.CanUpdate, p.CanDelete,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("replace role permissions", err)
	}
	return nil
}

// UpsertCompanyModule inserts or updates the company's module assignment.
func (r *Repository) UpsertCompanyModule(ctx context.Context, cm CompanyModule) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO company_modules (company_id, module_id, enabled)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (company_id, module_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		cm.CompanyID, cm.ModuleID, cm.Enabled,
	)
	if err != nil {
		return storeErr("upsert company module", err)
	}
	return nil
}

// CountEnabledModules counts rows with enabled = true; disabled rows do
// not consume quota.
func (r *Repository) CountEnabledModules(ctx context.Context, companyID int64) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM company_modules WHERE company_id = $1 AND enabled`,
		companyID,
	).Scan(&count)
	if err != nil {
		return 0, storeErr("count enabled modules", err)
	}
	return count, nil
}

// UpsertCompanyFeature inserts or updates a company feature toggle.
func (r *Repository) UpsertCompanyFeature(ctx context.Context, cf CompanyFeature) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO company_permissions (company_id, feature, enabled)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (company_id, feature) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		cf.CompanyID, cf.Feature, cf.Enabled,
	)
	if err != nil {
		return storeErr("upsert company feature", err)
	}
	return nil
}

// UpsertUserPermission inserts or updates a user's module override.
func (r *Repository) UpsertUserPermission(ctx context.Context, up UserPermission) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_permissions (user_id, module_id, can_create, can_read, can_update, can_delete)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, module_id) DO UPDATE SET
		   can_create = EXCLUDED.can_create,
		   can_read = EXCLUDED.can_read,
		   can_update = EXCLUDED.can_update,
		   can_delete = EXCLUDED.can_delete,
		   updated_at = NOW()`,
		up.UserID, up.ModuleID, up.CanCreate, up.CanRead, up.CanUpdate, up.CanDelete,
	)
	if err != nil {
		return storeErr("upsert user permission", err)
	}
	return nil
}
