package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetch(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	actor := Actor{ID: 100, CompanyID: 1, RoleID: 5}

	loads := 0
	loader := func(context.Context) (Decision, error) {
		loads++
		return allow(), nil
	}

	d, hit, err := c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.True(t, d.Allowed)
	require.Equal(t, 1, loads)

	d, hit, err = c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.True(t, d.Allowed)
	require.Equal(t, 1, loads)

	// A different action is a distinct entry.
	_, hit, err = c.Fetch(ctx, actor, "invoice", ActionDelete, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, loads)
}

func TestCacheBumpInvalidates(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	actor := Actor{ID: 100, CompanyID: 1, RoleID: 5}

	loads := 0
	loader := func(context.Context) (Decision, error) {
		loads++
		return deny(ReasonNoRoleGrant), nil
	}

	_, _, err := c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	_, hit, err := c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, loads)

	require.NoError(t, c.BumpRole(ctx, actor.RoleID))
	_, hit, err = c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, loads)

	require.NoError(t, c.BumpCompany(ctx, actor.CompanyID))
	_, hit, err = c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.BumpUser(ctx, actor.ID))
	_, hit, err = c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.False(t, hit)

	// Bumping an unrelated user leaves the entry warm.
	require.NoError(t, c.BumpUser(ctx, 999))
	_, hit, err = c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.True(t, hit)
}

func TestCacheEntryTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	actor := Actor{ID: 100, CompanyID: 1, RoleID: 5}

	loads := 0
	loader := func(context.Context) (Decision, error) {
		loads++
		return allow(), nil
	}

	_, _, err := c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, hit, err := c.Fetch(ctx, actor, "invoice", ActionRead, loader)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, loads)

	// Generation counters never expire.
	require.True(t, mr.Exists("authz:gen:role:5"))
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	c, mr := newTestCache(t)
	mr.Close()

	d, hit, err := c.Fetch(context.Background(), Actor{ID: 100, RoleID: 5}, "invoice", ActionRead,
		func(context.Context) (Decision, error) { return allow(), nil })
	require.NoError(t, err)
	require.False(t, hit)
	require.True(t, d.Allowed)
}

func TestCacheNilPassThrough(t *testing.T) {
	var c *Cache

	d, hit, err := c.Fetch(context.Background(), Actor{ID: 1}, "invoice", ActionRead,
		func(context.Context) (Decision, error) { return deny(ReasonNoRoleGrant), nil })
	require.NoError(t, err)
	require.False(t, hit)
	require.False(t, d.Allowed)

	require.NoError(t, c.BumpRole(context.Background(), 5))
	require.NoError(t, c.Warm(context.Background(), []int64{1}, []int64{2}))
}

func TestCacheWarm(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, c.Warm(context.Background(), []int64{5, 7}, []int64{1}))
	require.True(t, mr.Exists("authz:gen:role:5"))
	require.True(t, mr.Exists("authz:gen:role:7"))
	require.True(t, mr.Exists("authz:gen:company:1"))
}
