package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
)

type memRepo struct {
	users map[int64]User
	super map[int64]bool
}

func (r *memRepo) GetUser(_ context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memRepo) GetUserWithSuperFlag(_ context.Context, id int64) (User, bool, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, false, ErrNotFound
	}
	return u, r.super[id], nil
}

func (r *memRepo) ListUsers(_ context.Context, companyID int64) ([]User, error) {
	var out []User
	for _, u := range r.users {
		if companyID == 0 || (u.CompanyID != nil && *u.CompanyID == companyID) {
			out = append(out, u)
		}
	}
	return out, nil
}

func TestServiceActor(t *testing.T) {
	acme := int64(1)
	repo := &memRepo{
		users: map[int64]User{
			100: {ID: 100, CompanyID: &acme, RoleID: 5, IsActive: true},
			101: {ID: 101, CompanyID: &acme, RoleID: 5, IsActive: false},
			1:   {ID: 1, RoleID: 3, IsActive: true},
		},
		super: map[int64]bool{1: true},
	}
	svc := NewService(repo)
	ctx := context.Background()

	actor, err := svc.Actor(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, authz.Actor{ID: 100, CompanyID: 1, RoleID: 5}, actor)

	// Super admin status comes from the role join; a platform user has
	// no company.
	actor, err = svc.Actor(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, authz.Actor{ID: 1, RoleID: 3, IsSuperAdmin: true}, actor)

	_, err = svc.Actor(ctx, 101)
	require.ErrorIs(t, err, ErrInactive)

	_, err = svc.Actor(ctx, 404)
	require.ErrorIs(t, err, ErrNotFound)
}
