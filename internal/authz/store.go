package authz

import (
	"context"
	"errors"
	"fmt"
)

// Store is the read side of the policy tables. Implementations carry no
// decision logic; absence of an override row is reported as a nil
// pointer, never as an error, so the resolver can tell "no override"
// apart from a store failure.
type Store interface {
	GetRole(ctx context.Context, roleID int64) (Role, error)
	GetModule(ctx context.Context, moduleID int64) (Module, error)
	GetModuleByCode(ctx context.Context, code string) (Module, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]RolePermission, error)
	GetRolePermission(ctx context.Context, roleID, moduleID int64) (*RolePermission, error)
	ListCompanyModules(ctx context.Context, companyID int64) ([]CompanyModule, error)
	GetCompanyModule(ctx context.Context, companyID, moduleID int64) (*CompanyModule, error)
	GetCompanyFeature(ctx context.Context, companyID int64, feature string) (*CompanyFeature, error)
	ListUserPermissions(ctx context.Context, userID int64) ([]UserPermission, error)
	GetUserPermission(ctx context.Context, userID, moduleID int64) (*UserPermission, error)
}

// AdminStore adds the bulk writers used only by policy administration.
type AdminStore interface {
	Store

	GetCompany(ctx context.Context, companyID int64) (Company, error)
	GetUserCompany(ctx context.Context, userID int64) (int64, error)

	// ReplaceRolePermissions deletes the role's rows and inserts the
	// replacement set within a single transaction. Readers observe
	// either the old complete set or the new one, never a partial mix.
	ReplaceRolePermissions(ctx context.Context, roleID int64, rows []RolePermission) error
	UpsertCompanyModule(ctx context.Context, cm CompanyModule) error
	CountEnabledModules(ctx context.Context, companyID int64) (int, error)
	UpsertCompanyFeature(ctx context.Context, cf CompanyFeature) error
	UpsertUserPermission(ctx context.Context, up UserPermission) error
}

// storeErr wraps an infrastructure failure so callers can match
// ErrStoreUnavailable while retaining the underlying cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("authz: %s: %w", op, errors.Join(ErrStoreUnavailable, err))
}
