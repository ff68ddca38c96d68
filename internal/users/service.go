package users

import (
	"context"
	"errors"

	"github.com/meridian-crm/meridian/internal/authz"
)

// ErrInactive indicates the user exists but may not act.
var ErrInactive = errors.New("users: account inactive")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserWithSuperFlag(ctx context.Context, id int64) (User, bool, error)
	ListUsers(ctx context.Context, companyID int64) ([]User, error)
}

// Service handles user lookups for the engine and the admin surface.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns users, optionally restricted to one company.
func (s *Service) ListUsers(ctx context.Context, companyID int64) ([]User, error) {
	return s.repo.ListUsers(ctx, companyID)
}

// Actor materialises the resolution-time view of a user. The super
// admin flag is derived from the distinguished role, not stored on the
// user row.
func (s *Service) Actor(ctx context.Context, userID int64) (authz.Actor, error) {
	u, isSuper, err := s.repo.GetUserWithSuperFlag(ctx, userID)
	if err != nil {
		return authz.Actor{}, err
	}
	if !u.IsActive {
		return authz.Actor{}, ErrInactive
	}
	actor := authz.Actor{ID: u.ID, RoleID: u.RoleID, IsSuperAdmin: isSuper}
	if u.CompanyID != nil {
		actor.CompanyID = *u.CompanyID
	}
	return actor, nil
}
