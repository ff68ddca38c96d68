// Package identity resolves bearer tokens to actors. Token issuance
// belongs to the external identity provider; this package only reads
// the token map it maintains in Redis.
package identity

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-crm/meridian/internal/authz"
)

const tokenKeyPrefix = "identity:token:"

// ActorSource materialises the resolution-time actor for a user id.
type ActorSource interface {
	Actor(ctx context.Context, userID int64) (authz.Actor, error)
}

// Middleware attaches the actor for the request's bearer token.
// Requests without a resolvable actor pass through unauthenticated; the
// authorization guard rejects them downstream.
type Middleware struct {
	Client *redis.Client
	Actors ActorSource
	Logger *slog.Logger
}

// Handler returns the chi-compatible middleware.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || m.Client == nil || m.Actors == nil {
			next.ServeHTTP(w, r)
			return
		}
		raw, err := m.Client.Get(r.Context(), tokenKeyPrefix+token).Result()
		if err != nil {
			if err != redis.Nil && m.Logger != nil {
				m.Logger.Warn("identity token lookup", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("identity token maps to invalid user id", slog.String("value", raw))
			}
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.Actors.Actor(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("identity actor load", slog.Int64("user", userID), slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		ctx := authz.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
