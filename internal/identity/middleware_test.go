package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
)

type stubActors struct {
	actors map[int64]authz.Actor
}

func (s *stubActors) Actor(_ context.Context, userID int64) (authz.Actor, error) {
	a, ok := s.actors[userID]
	if !ok {
		return authz.Actor{}, errors.New("users: not found")
	}
	return a, nil
}

func TestMiddlewareHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("identity:token:good", "100"))
	require.NoError(t, mr.Set("identity:token:orphan", "404"))
	require.NoError(t, mr.Set("identity:token:garbage", "not-a-number"))

	m := Middleware{
		Client: client,
		Actors: &stubActors{actors: map[int64]authz.Actor{
			100: {ID: 100, CompanyID: 1, RoleID: 5},
		}},
	}

	var seen *authz.Actor
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = nil
		if a, ok := authz.ActorFromContext(r.Context()); ok {
			seen = &a
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(authorization string) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	do("Bearer good")
	require.NotNil(t, seen)
	require.Equal(t, int64(100), seen.ID)
	require.Equal(t, int64(1), seen.CompanyID)

	// Unknown tokens, unknown users, and malformed headers all pass
	// through without an actor.
	do("Bearer unknown")
	require.Nil(t, seen)

	do("Bearer orphan")
	require.Nil(t, seen)

	do("Bearer garbage")
	require.Nil(t, seen)

	do("Basic Zm9vOmJhcg==")
	require.Nil(t, seen)

	do("")
	require.Nil(t, seen)

	// Redis outage degrades to unauthenticated instead of failing.
	mr.Close()
	do("Bearer good")
	require.Nil(t, seen)
}
