package roles

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	roles  map[int64]Role
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{roles: map[int64]Role{}, nextID: 1}
}

func (r *memRepo) ListRoles(_ context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) GetRole(_ context.Context, id int64) (Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (r *memRepo) CreateRole(_ context.Context, name string) (Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			return Role{}, ErrDuplicateName
		}
	}
	role := Role{ID: r.nextID, Name: name}
	r.nextID++
	r.roles[role.ID] = role
	return role, nil
}

func TestServiceCreateRole(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "  Sales Manager ")
	require.NoError(t, err)
	require.Equal(t, "Sales Manager", role.Name)
	require.False(t, role.IsSystemRole)

	_, err = svc.CreateRole(ctx, "   ")
	require.Error(t, err)

	_, err = svc.CreateRole(ctx, "Sales Manager")
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestServiceGetRole(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.CreateRole(ctx, "Support")
	require.NoError(t, err)

	role, err := svc.GetRole(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Support", role.Name)

	_, err = svc.GetRole(ctx, 404)
	require.ErrorIs(t, err, ErrNotFound)
}
