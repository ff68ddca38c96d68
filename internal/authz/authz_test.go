package authz

import (
	"context"
	"sort"

	"github.com/meridian-crm/meridian/internal/shared"
)

type pair struct{ a, b int64 }

type featureKey struct {
	companyID int64
	feature   string
}

// memStore is an in-memory AdminStore for tests. Setting err makes
// every call fail with it; replaceErr fails only ReplaceRolePermissions,
// which keeps the store contract of committing nothing on failure.
type memStore struct {
	err        error
	replaceErr error

	roles          map[int64]Role
	modules        map[string]Module
	rolePerms      map[pair]RolePermission
	companyModules map[pair]CompanyModule
	features       map[featureKey]CompanyFeature
	userPerms      map[pair]UserPermission
	companies      map[int64]Company
	userCompanies  map[int64]*int64
}

func newMemStore() *memStore {
	return &memStore{
		roles:          map[int64]Role{},
		modules:        map[string]Module{},
		rolePerms:      map[pair]RolePermission{},
		companyModules: map[pair]CompanyModule{},
		features:       map[featureKey]CompanyFeature{},
		userPerms:      map[pair]UserPermission{},
		companies:      map[int64]Company{},
		userCompanies:  map[int64]*int64{},
	}
}

func (s *memStore) GetRole(_ context.Context, roleID int64) (Role, error) {
	if s.err != nil {
		return Role{}, s.err
	}
	r, ok := s.roles[roleID]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (s *memStore) GetModule(_ context.Context, moduleID int64) (Module, error) {
	if s.err != nil {
		return Module{}, s.err
	}
	for _, m := range s.modules {
		if m.ID == moduleID {
			return m, nil
		}
	}
	return Module{}, ErrNotFound
}

func (s *memStore) GetModuleByCode(_ context.Context, code string) (Module, error) {
	if s.err != nil {
		return Module{}, s.err
	}
	m, ok := s.modules[code]
	if !ok {
		return Module{}, ErrNotFound
	}
	return m, nil
}

func (s *memStore) ListRolePermissions(_ context.Context, roleID int64) ([]RolePermission, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []RolePermission
	for k, rp := range s.rolePerms {
		if k.a == roleID {
			out = append(out, rp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *memStore) GetRolePermission(_ context.Context, roleID, moduleID int64) (*RolePermission, error) {
	if s.err != nil {
		return nil, s.err
	}
	if rp, ok := s.rolePerms[pair{roleID, moduleID}]; ok {
		return &rp, nil
	}
	return nil, nil
}

func (s *memStore) ListCompanyModules(_ context.Context, companyID int64) ([]CompanyModule, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []CompanyModule
	for k, cm := range s.companyModules {
		if k.a == companyID {
			out = append(out, cm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *memStore) GetCompanyModule(_ context.Context, companyID, moduleID int64) (*CompanyModule, error) {
	if s.err != nil {
		return nil, s.err
	}
	if cm, ok := s.companyModules[pair{companyID, moduleID}]; ok {
		return &cm, nil
	}
	return nil, nil
}

func (s *memStore) GetCompanyFeature(_ context.Context, companyID int64, feature string) (*CompanyFeature, error) {
	if s.err != nil {
		return nil, s.err
	}
	if cf, ok := s.features[featureKey{companyID, feature}]; ok {
		return &cf, nil
	}
	return nil, nil
}

func (s *memStore) ListUserPermissions(_ context.Context, userID int64) ([]UserPermission, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []UserPermission
	for k, up := range s.userPerms {
		if k.a == userID {
			out = append(out, up)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *memStore) GetUserPermission(_ context.Context, userID, moduleID int64) (*UserPermission, error) {
	if s.err != nil {
		return nil, s.err
	}
	if up, ok := s.userPerms[pair{userID, moduleID}]; ok {
		return &up, nil
	}
	return nil, nil
}

func (s *memStore) GetCompany(_ context.Context, companyID int64) (Company, error) {
	if s.err != nil {
		return Company{}, s.err
	}
	c, ok := s.companies[companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (s *memStore) GetUserCompany(_ context.Context, userID int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	c, ok := s.userCompanies[userID]
	if !ok {
		return 0, ErrNotFound
	}
	if c == nil {
		return 0, nil
	}
	return *c, nil
}

func (s *memStore) ReplaceRolePermissions(_ context.Context, roleID int64, rows []RolePermission) error {
	if s.err != nil {
		return s.err
	}
	if s.replaceErr != nil {
		return s.replaceErr
	}
	// Stage the new state and swap in one step, like the transaction
	// the real store runs.
	staged := make(map[pair]RolePermission, len(s.rolePerms)+len(rows))
	for k, rp := range s.rolePerms {
		if k.a != roleID {
			staged[k] = rp
		}
	}
	for _, rp := range rows {
		staged[pair{roleID, rp.ModuleID}] = rp
	}
	s.rolePerms = staged
	return nil
}

func (s *memStore) UpsertCompanyModule(_ context.Context, cm CompanyModule) error {
	if s.err != nil {
		return s.err
	}
	s.companyModules[pair{cm.CompanyID, cm.ModuleID}] = cm
	return nil
}

func (s *memStore) CountEnabledModules(_ context.Context, companyID int64) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for k, cm := range s.companyModules {
		if k.a == companyID && cm.Enabled {
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpsertCompanyFeature(_ context.Context, cf CompanyFeature) error {
	if s.err != nil {
		return s.err
	}
	s.features[featureKey{cf.CompanyID, cf.Feature}] = cf
	return nil
}

func (s *memStore) UpsertUserPermission(_ context.Context, up UserPermission) error {
	if s.err != nil {
		return s.err
	}
	s.userPerms[pair{up.UserID, up.ModuleID}] = up
	return nil
}

type memAudit struct {
	err  error
	logs []shared.AuditLog
}

func (a *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}
