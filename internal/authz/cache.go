package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	genRoleKeyFmt    = "authz:gen:role:%d"
	genCompanyKeyFmt = "authz:gen:company:%d"
	genUserKeyFmt    = "authz:gen:user:%d"
)

// Cache memoizes resolver decisions. Keys fold in the generation
// counters of the actor's role, company, and user scopes, so an
// administrative write invalidates by bumping a counter rather than by
// sweeping entries. Entries also carry a short TTL so a missed bump
// heals on its own.
//
// A nil Cache (or one without a client) is a pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return gen, nil
}

func (c *Cache) key(ctx context.Context, actor Actor, code string, action Action) (string, error) {
	roleGen, err := c.generation(ctx, fmt.Sprintf(genRoleKeyFmt, actor.RoleID))
	if err != nil {
		return "", err
	}
	companyGen, err := c.generation(ctx, fmt.Sprintf(genCompanyKeyFmt, actor.CompanyID))
	if err != nil {
		return "", err
	}
	userGen, err := c.generation(ctx, fmt.Sprintf(genUserKeyFmt, actor.ID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("authz:decision:%d:%s:%s:%d:%d:%d", actor.ID, code, action, roleGen, companyGen, userGen), nil
}

// Fetch returns the cached decision for (actor, module, action) or
// populates it using the loader. Cache infrastructure failures degrade
// to a direct load; they must never surface as resolution failures.
// The second return reports a cache hit.
func (c *Cache) Fetch(ctx context.Context, actor Actor, code string, action Action, loader func(context.Context) (Decision, error)) (Decision, bool, error) {
	if loader == nil {
		return Decision{}, false, errors.New("authz: cache loader required")
	}
	if c == nil || c.client == nil {
		d, err := loader(ctx)
		return d, false, err
	}
	key, err := c.key(ctx, actor, code, action)
	if err != nil {
		d, lerr := loader(ctx)
		return d, false, lerr
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var d Decision
		if err := json.Unmarshal(payload, &d); err == nil {
			return d, true, nil
		}
	}
	d, err := loader(ctx)
	if err != nil {
		return Decision{}, false, err
	}
	if raw, err := json.Marshal(d); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return d, false, nil
}

// BumpRole invalidates cached decisions for every actor in the role.
func (c *Cache) BumpRole(ctx context.Context, roleID int64) error {
	return c.bump(ctx, fmt.Sprintf(genRoleKeyFmt, roleID))
}

// BumpCompany invalidates cached decisions for every actor in the company.
func (c *Cache) BumpCompany(ctx context.Context, companyID int64) error {
	return c.bump(ctx, fmt.Sprintf(genCompanyKeyFmt, companyID))
}

// BumpUser invalidates cached decisions for one user.
func (c *Cache) BumpUser(ctx context.Context, userID int64) error {
	return c.bump(ctx, fmt.Sprintf(genUserKeyFmt, userID))
}

func (c *Cache) bump(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, key).Err()
}

// Warm initialises generation counters ahead of traffic so first
// resolutions after a deploy skip the lazy-init round trip.
func (c *Cache) Warm(ctx context.Context, roleIDs, companyIDs []int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	for _, id := range roleIDs {
		if _, err := c.generation(ctx, fmt.Sprintf(genRoleKeyFmt, id)); err != nil {
			return err
		}
	}
	for _, id := range companyIDs {
		if _, err := c.generation(ctx, fmt.Sprintf(genCompanyKeyFmt, id)); err != nil {
			return err
		}
	}
	return nil
}
