package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Metrics receives resolution outcomes. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ObserveDecision(d Decision)
	ObserveCacheLookup(hit bool)
}

// Resolver answers "may this actor perform this action on this module".
// It only reads the policy store, through the decision cache; a denial
// is a normal outcome, a store failure is an error so callers can fail
// closed explicitly.
type Resolver struct {
	store   Store
	cache   *Cache
	logger  *slog.Logger
	metrics Metrics
}

// NewResolver constructs a Resolver. Cache and metrics may be nil.
func NewResolver(store Store, cache *Cache, logger *slog.Logger, metrics Metrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger, metrics: metrics}
}

// Decide evaluates the precedence tiers for (actor, module, action).
func (r *Resolver) Decide(ctx context.Context, actor Actor, moduleCode string, action Action) (Decision, error) {
	if !action.Valid() {
		return Decision{}, fmt.Errorf("%w: action %q", ErrInvalidInput, action)
	}
	// Tier 1: platform operators are never locked out by tenant
	// misconfiguration.
	if actor.IsSuperAdmin {
		d := allow()
		r.observe(d, false)
		return d, nil
	}
	d, hit, err := r.cache.Fetch(ctx, actor, moduleCode, action, func(ctx context.Context) (Decision, error) {
		return r.resolve(ctx, actor, moduleCode, action)
	})
	if err != nil {
		return Decision{}, err
	}
	r.observe(d, hit)
	if !d.Allowed {
		r.logger.Debug("authz denied",
			slog.Int64("actor", actor.ID),
			slog.String("module", moduleCode),
			slog.String("action", string(action)),
			slog.String("reason", string(d.Reason)))
	}
	return d, nil
}

func (r *Resolver) observe(d Decision, hit bool) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveDecision(d)
	r.metrics.ObserveCacheLookup(hit)
}

type tier func(ctx context.Context, actor Actor, mod Module, action Action) (*Decision, error)

func (r *Resolver) tiers() []tier {
	return []tier{r.userOverride, r.companyFeature, r.companyModule, r.roleMatrix}
}

func (r *Resolver) resolve(ctx context.Context, actor Actor, moduleCode string, action Action) (Decision, error) {
	mod, err := r.store.GetModuleByCode(ctx, moduleCode)
	if err != nil {
		// Unknown module codes are never implicitly allowed.
		if errors.Is(err, ErrNotFound) {
			return deny(ReasonModuleNotLicensed), nil
		}
		return Decision{}, err
	}
	// Platform kill-switch.
	if !mod.IsActive {
		return deny(ReasonModuleNotLicensed), nil
	}
	return r.runTiers(ctx, actor, mod, action, r.tiers())
}

// runTiers walks the chain until a tier produces a decision. The final
// ErrUnresolved branch is unreachable while the role-matrix tier
// terminates the chain; it exists so a broken chain fails loudly
// instead of implicitly allowing.
func (r *Resolver) runTiers(ctx context.Context, actor Actor, mod Module, action Action, tiers []tier) (Decision, error) {
	for _, t := range tiers {
		d, err := t(ctx, actor, mod, action)
		if err != nil {
			return Decision{}, err
		}
		if d != nil {
			return *d, nil
		}
	}
	return Decision{}, ErrUnresolved
}

// Tier 2: an override row is authoritative for all four actions;
// absence means "no override", not a denial.
func (r *Resolver) userOverride(ctx context.Context, actor Actor, mod Module, action Action) (*Decision, error) {
	row, err := r.store.GetUserPermission(ctx, actor.ID, mod.ID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	if row.Allows(action) {
		d := allow()
		return &d, nil
	}
	d := deny(ReasonUserOverrideDenied)
	return &d, nil
}

// Tier 3: a feature toggle only denies when explicitly disabled;
// absence falls through. CompanyPermission is an override mechanism,
// not the licensing gate.
func (r *Resolver) companyFeature(ctx context.Context, actor Actor, mod Module, action Action) (*Decision, error) {
	if actor.CompanyID == 0 {
		return nil, nil
	}
	cf, err := r.store.GetCompanyFeature(ctx, actor.CompanyID, mod.Code)
	if err != nil {
		return nil, err
	}
	if cf != nil && !cf.Enabled {
		d := deny(ReasonCompanyFeatureDisabled)
		return &d, nil
	}
	return nil, nil
}

// Tier 4: hard default-deny. A company absent from the assignment table
// has no modules enabled.
func (r *Resolver) companyModule(ctx context.Context, actor Actor, mod Module, action Action) (*Decision, error) {
	if actor.CompanyID == 0 {
		// Companyless actors are platform staff; the tenant gates do
		// not apply and the role matrix decides.
		return nil, nil
	}
	cm, err := r.store.GetCompanyModule(ctx, actor.CompanyID, mod.ID)
	if err != nil {
		return nil, err
	}
	if cm == nil || !cm.Enabled {
		d := deny(ReasonModuleNotLicensed)
		return &d, nil
	}
	return nil, nil
}

// Tier 5: the role matrix terminates the chain; a missing row is a
// deny, never a default allow.
func (r *Resolver) roleMatrix(ctx context.Context, actor Actor, mod Module, action Action) (*Decision, error) {
	rp, err := r.store.GetRolePermission(ctx, actor.RoleID, mod.ID)
	if err != nil {
		return nil, err
	}
	var d Decision
	switch {
	case rp == nil:
		d = deny(ReasonNoRoleGrant)
	case rp.Allows(action):
		d = allow()
	default:
		d = deny(ReasonNoRoleGrant)
	}
	return &d, nil
}
