package roles

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
)

type stubPermissions struct {
	rows map[int64][]authz.RolePermission
	err  error
}

func (s *stubPermissions) RolePermissions(_ context.Context, _ authz.Actor, roleID int64) ([]authz.RolePermission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[roleID], nil
}

func newRouter(t *testing.T, repo *memRepo, perms *stubPermissions) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := authz.Middleware{Resolver: authz.NewResolver(nil, nil, logger, nil)}
	r := chi.NewRouter()
	NewHandler(logger, NewService(repo), perms, guard).MountRoutes(r)
	return r
}

func asRoot(req *http.Request) *http.Request {
	return req.WithContext(authz.ContextWithActor(req.Context(), authz.Actor{ID: 1, IsSuperAdmin: true}))
}

func TestHandlerListRoles(t *testing.T) {
	repo := newMemRepo()
	_, err := repo.CreateRole(context.Background(), "Sales")
	require.NoError(t, err)
	_, err = repo.CreateRole(context.Background(), "Support")
	require.NoError(t, err)

	perms := &stubPermissions{rows: map[int64][]authz.RolePermission{
		1: {{RoleID: 1, ModuleID: 10, Flags: authz.Flags{CanRead: true}}},
	}}
	router := newRouter(t, repo, perms)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asRoot(httptest.NewRequest(http.MethodGet, "/", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Roles []struct {
			ID          int64                  `json:"id"`
			Name        string                 `json:"name"`
			Permissions []authz.RolePermission `json:"permissions"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Roles, 2)
	require.Equal(t, "Sales", out.Roles[0].Name)
	require.Len(t, out.Roles[0].Permissions, 1)
	// A role without grants still serialises an empty list, not null.
	require.NotNil(t, out.Roles[1].Permissions)
	require.Len(t, out.Roles[1].Permissions, 0)
}

func TestHandlerListRolesPermissionFanOutFails(t *testing.T) {
	repo := newMemRepo()
	_, err := repo.CreateRole(context.Background(), "Sales")
	require.NoError(t, err)

	router := newRouter(t, repo, &stubPermissions{err: errors.New("store down")})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asRoot(httptest.NewRequest(http.MethodGet, "/", nil)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerCreateRole(t *testing.T) {
	router := newRouter(t, newMemRepo(), &stubPermissions{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asRoot(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Auditor"}`))))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asRoot(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Auditor"}`))))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asRoot(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unauthenticated requests never reach the service.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"X"}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
