package authz

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ModuleCodePermissions is the module gating the engine's own
// administrative surface.
const ModuleCodePermissions = "permissions"

// Action is one of the four capability verbs evaluated per module.
type Action string

// Supported actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction validates and normalises an action string.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", fmt.Errorf("authz: unknown action %q", raw)
}

// Valid reports whether the action is one of the four verbs.
func (a Action) Valid() bool {
	_, err := ParseAction(string(a))
	return err == nil
}

// Flags carries the four capability booleans shared by role and user
// permission rows.
type Flags struct {
	CanCreate bool `json:"can_create"`
	CanRead   bool `json:"can_read"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// Allows returns the flag matching the action.
func (f Flags) Allows(a Action) bool {
	switch a {
	case ActionCreate:
		return f.CanCreate
	case ActionRead:
		return f.CanRead
	case ActionUpdate:
		return f.CanUpdate
	case ActionDelete:
		return f.CanDelete
	}
	return false
}

// Actor describes the authenticated principal a resolution runs for.
// CompanyID is zero only for platform-wide actors.
type Actor struct {
	ID           int64
	CompanyID    int64
	RoleID       int64
	IsSuperAdmin bool
}

// Role is a named bundle of default grants. System roles are immutable.
type Role struct {
	ID           int64
	Name         string
	IsSystemRole bool
	IsSuperRole  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RolePermission maps (role, module) to capability flags. At most one
// row exists per pair.
type RolePermission struct {
	RoleID   int64
	ModuleID int64
	Flags
}

// Module is an installable capability unit gated per company.
type Module struct {
	ID           int64
	Code         string
	Name         string
	IsActive     bool
	DisplayOrder int
}

// CompanyModule records whether a module is enabled for a company.
// A company with no row for a module has it disabled.
type CompanyModule struct {
	CompanyID int64
	ModuleID  int64
	Enabled   bool
}

// CompanyFeature is a per-company named toggle, independent of the
// module matrix. Absence of a row is not a denial.
type CompanyFeature struct {
	CompanyID int64
	Feature   string
	Enabled   bool
}

// UserPermission overrides the role matrix for one (user, module).
// Presence of a row always wins over the role default.
type UserPermission struct {
	UserID   int64
	ModuleID int64
	Flags
}

// Company carries the module quota. A nil MaxModules means unlimited.
type Company struct {
	ID         int64
	Name       string
	MaxModules *int32
}

// Reason classifies why a resolution denied an operation.
type Reason string

// Denial reasons.
const (
	ReasonNone                   Reason = ""
	ReasonCompanyFeatureDisabled Reason = "company_feature_disabled"
	ReasonModuleNotLicensed      Reason = "module_not_licensed"
	ReasonNoRoleGrant            Reason = "no_role_grant"
	ReasonUserOverrideDenied     Reason = "user_override_denied"
)

// Message returns the operator-facing explanation for a denial.
func (r Reason) Message() string {
	switch r {
	case ReasonCompanyFeatureDisabled:
		return "this feature is disabled for your company"
	case ReasonModuleNotLicensed:
		return "this module is not licensed for your company"
	case ReasonNoRoleGrant:
		return "your role does not grant this action"
	case ReasonUserOverrideDenied:
		return "this action is disabled for your account"
	}
	return "permitted"
}

// Decision is the outcome of one resolution. A denial is a business
// outcome, not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Sentinel errors for the engine.
var (
	// ErrStoreUnavailable marks policy store failures so callers can
	// distinguish "not permitted" from "could not determine".
	ErrStoreUnavailable = errors.New("authz: policy store unavailable")
	// ErrSystemRoleImmutable rejects writes to system role grants.
	ErrSystemRoleImmutable = errors.New("authz: system role permissions are immutable")
	// ErrModuleQuotaExceeded rejects enabling a module beyond the company quota.
	ErrModuleQuotaExceeded = errors.New("authz: company module quota exceeded")
	// ErrUnresolved indicates the tier chain terminated without a decision.
	// Reaching it is an engine bug and must never be swallowed.
	ErrUnresolved = errors.New("authz: resolution fell through every tier")
	// ErrForbidden rejects administrative calls whose actor fails its own check.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("authz: not found")
	// ErrInvalidInput rejects malformed administrative input.
	ErrInvalidInput = errors.New("authz: invalid input")
)

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(r Reason) Decision {
	return Decision{Allowed: false, Reason: r}
}
