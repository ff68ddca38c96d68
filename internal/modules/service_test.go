package modules

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	modules map[string]Module
	nextID  int64
}

func newMemRepo() *memRepo {
	return &memRepo{modules: map[string]Module{}, nextID: 1}
}

func (r *memRepo) List(_ context.Context, includeInactive bool) ([]Module, error) {
	var out []Module
	for _, m := range r.modules {
		if m.IsActive || includeInactive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (r *memRepo) GetByCode(_ context.Context, code string) (Module, error) {
	m, ok := r.modules[code]
	if !ok {
		return Module{}, ErrNotFound
	}
	return m, nil
}

func (r *memRepo) Create(_ context.Context, code, name string) (Module, error) {
	if _, exists := r.modules[code]; exists {
		return Module{}, ErrDuplicateCode
	}
	m := Module{ID: r.nextID, Code: code, Name: name, IsActive: true, DisplayOrder: len(r.modules) + 1}
	r.nextID++
	r.modules[code] = m
	return m, nil
}

func (r *memRepo) SetActive(_ context.Context, id int64, active bool) (Module, error) {
	for code, m := range r.modules {
		if m.ID == id {
			m.IsActive = active
			r.modules[code] = m
			return m, nil
		}
	}
	return Module{}, ErrNotFound
}

func TestServiceCreate(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	m, err := svc.Create(ctx, "  Invoice ", " Invoices ")
	require.NoError(t, err)
	require.Equal(t, "invoice", m.Code)
	require.Equal(t, "Invoices", m.Name)
	require.True(t, m.IsActive)

	_, err = svc.Create(ctx, "2fast", "Bad Code")
	require.Error(t, err)

	_, err = svc.Create(ctx, "ok-code_2", "")
	require.Error(t, err)

	_, err = svc.Create(ctx, "invoice", "Duplicate")
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestServiceGetByCode(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, "invoice", "Invoices")
	require.NoError(t, err)

	m, err := svc.GetByCode(ctx, " INVOICE ")
	require.NoError(t, err)
	require.Equal(t, "invoice", m.Code)

	_, err = svc.GetByCode(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceSetActive(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, "invoice", "Invoices")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "ticket", "Tickets")
	require.NoError(t, err)

	m, err := svc.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	require.False(t, m.IsActive)

	active, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "ticket", active[0].Code)

	all, err := svc.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.SetActive(ctx, 404, true)
	require.True(t, errors.Is(err, ErrNotFound))
}
