package authz

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newHandlerRouter(s *memStore) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := NewResolver(s, nil, logger, nil)
	admin := NewAdmin(s, resolver, nil, nil, logger)
	r := chi.NewRouter()
	NewHandler(logger, admin, resolver).MountRoutes(r)
	return r
}

func doAs(r chi.Router, actor *Actor, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if actor != nil {
		req = req.WithContext(ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCheck(t *testing.T) {
	router := newHandlerRouter(fixtureStore())
	sales := Actor{ID: 100, CompanyID: 1, RoleID: 5}

	rec := doAs(router, &sales, http.MethodGet, "/check/invoice/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Allowed)

	rec = doAs(router, &sales, http.MethodGet, "/check/invoice/delete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.False(t, out.Allowed)
	require.Equal(t, string(ReasonNoRoleGrant), out.Reason)

	rec = doAs(router, &sales, http.MethodGet, "/check/invoice/drop", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAs(router, nil, http.MethodGet, "/check/invoice/read", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerReplaceRolePermissions(t *testing.T) {
	s := adminFixture()
	router := newHandlerRouter(s)

	rec := doAs(router, &companyAdmin, http.MethodPut, "/roles/5/permissions",
		`{"rows":[{"module_id":10,"can_read":true}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rows, err := s.ListRolePermissions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].CanRead)
	require.False(t, rows[0].CanUpdate)

	rec = doAs(router, &rootAdmin, http.MethodPut, "/roles/3/permissions", `{"rows":[]}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doAs(router, &companyAdmin, http.MethodPut, "/roles/404/permissions", `{"rows":[]}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doAs(router, &companyAdmin, http.MethodPut, "/roles/5/permissions", `{"rows":[{"module_id":0}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAs(router, &companyAdmin, http.MethodPut, "/roles/5/permissions", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSetCompanyModule(t *testing.T) {
	s := adminFixture()
	router := newHandlerRouter(s)

	rec := doAs(router, &rootAdmin, http.MethodPut, "/companies/2/modules/10", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doAs(router, &rootAdmin, http.MethodPut, "/companies/2/modules/20", `{"enabled":true}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "quota")

	rec = doAs(router, &rootAdmin, http.MethodPut, "/companies/2/modules/10", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAs(router, &companyAdmin, http.MethodPut, "/companies/1/modules/10", `{"enabled":true}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerSetUserPermission(t *testing.T) {
	s := adminFixture()
	router := newHandlerRouter(s)

	rec := doAs(router, &companyAdmin, http.MethodPut, "/users/101/permissions/10", `{"can_read":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	up, err := s.GetUserPermission(context.Background(), 101, 10)
	require.NoError(t, err)
	require.NotNil(t, up)
	require.True(t, up.CanRead)
	require.False(t, up.CanDelete)

	rec = doAs(router, &companyAdmin, http.MethodPut, "/users/300/permissions/10", `{"can_read":true}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerSetCompanyFeature(t *testing.T) {
	s := adminFixture()
	router := newHandlerRouter(s)

	rec := doAs(router, &rootAdmin, http.MethodPut, "/companies/1/features/Beta-Reports", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	cf, err := s.GetCompanyFeature(context.Background(), 1, "beta-reports")
	require.NoError(t, err)
	require.NotNil(t, cf)
	require.False(t, cf.Enabled)
}
