package middlewares

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/bedrockapp/bedrock/pkg/auth"
	"github.com/bedrockapp/bedrock/pkg/logger"
)

type (
	currentUserKey  struct{}
	currentRolesKey struct{}
)

// PublicTag marks a route as reachable without authentication or any role
// requirement.
const PublicTag = auth.PublicTag

// TagsFunc resolves the tags declared for the matched route. The second
// return value reports whether the route exists at all; unknown routes are
// answered 404 before any authentication work.
type TagsFunc func(r *http.Request) ([]string, bool)

// AuthConfig configures the Auth middleware.
type AuthConfig struct {
	// AllowedPaths bypass authentication entirely. An entry is an exact
	// path or a prefix pattern ending in "/*".
	AllowedPaths []string

	// TagsFor resolves route tags. When nil every route is treated as
	// existing with no tags, which denies access under the fail-closed
	// rule until a policy tag matches.
	TagsFor TagsFunc

	// RequireAuth controls whether unauthenticated requests to protected
	// routes are rejected (401) or passed to the access check with no
	// identity.
	RequireAuth bool

	Logger *slog.Logger
}

// DefaultAllowedPaths are bypassed when no explicit list is configured.
var DefaultAllowedPaths = []string{"/health", "/health/*", "/docs", "/openapi.json"}

// Auth enforces authentication and role-based access:
//
//  1. Allowed paths skip everything.
//  2. Unknown routes get 404 before authentication, so probing leaks
//     nothing about the auth setup.
//  3. Routes tagged "public" skip authentication and access checks.
//  4. Revoked (blacklisted) tokens are rejected before verification.
//  5. The bearer token is verified and the identity with its role set is
//     stored in the request context.
//  6. Access is granted only when the user's roles intersect the union of
//     the route tags' required roles; an empty requirement denies.
//
// With the auth service disabled the middleware is a transparent no-op.
func Auth(service *auth.Service, cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNope()
	}
	if cfg.AllowedPaths == nil {
		cfg.AllowedPaths = DefaultAllowedPaths
	}

	exact := make(map[string]struct{})
	var prefixes []string
	for _, path := range cfg.AllowedPaths {
		if strings.HasSuffix(path, "/*") {
			prefixes = append(prefixes, strings.TrimSuffix(path, "/*"))
		} else {
			exact[path] = struct{}{}
		}
	}

	allowed := func(path string) bool {
		if _, ok := exact[path]; ok {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !service.Enabled() || allowed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tags := []string{}
			if cfg.TagsFor != nil {
				var known bool
				tags, known = cfg.TagsFor(r)
				if !known {
					writeJSONError(w, http.StatusNotFound, "not found")
					return
				}
			}

			if slices.Contains(tags, PublicTag) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token := bearerToken(r)

			// Logout adds tokens to the blacklist; checking it first keeps
			// revoked tokens from paying the verification cost. A nil store
			// (auth enabled but Redis never connected) reads as not revoked;
			// the access check below still denies without role data.
			if store := service.Store(); token != "" && store != nil {
				if revoked, err := store.IsBlacklisted(ctx, token); err == nil && revoked {
					writeJSONError(w, http.StatusUnauthorized, "already logged out")
					return
				}
			}

			var userID string
			if token != "" {
				profile, err := service.AuthenticateToken(ctx, token)
				if err != nil {
					cfg.Logger.InfoContext(ctx, "authentication failed",
						slog.String("path", r.URL.Path),
						slog.Any("error", err),
					)
				} else if profile.Banned() {
					writeJSONError(w, http.StatusForbidden, "account suspended")
					return
				} else {
					userID = profile.ID
					roles := service.RolesByUserID(ctx, userID)
					ctx = context.WithValue(ctx, currentUserKey{}, profile)
					ctx = context.WithValue(ctx, currentRolesKey{}, roles)
				}
			}

			if userID == "" && cfg.RequireAuth {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !service.CheckAccess(ctx, userID, tags) {
				writeJSONError(w, http.StatusForbidden, "permission denied")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "Bearer ") {
		return authz[7:]
	}
	return ""
}

// CurrentUser returns the authenticated profile, or nil.
func CurrentUser(ctx context.Context) *auth.Profile {
	if p, ok := ctx.Value(currentUserKey{}).(*auth.Profile); ok {
		return p
	}
	return nil
}

// CurrentRoles returns the authenticated user's role set.
func CurrentRoles(ctx context.Context) []string {
	if roles, ok := ctx.Value(currentRolesKey{}).([]string); ok {
		return roles
	}
	return nil
}

// UserIDExtractor adds "user_id" to log entries made with an authenticated
// request context.
func UserIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if p := CurrentUser(ctx); p != nil {
			return slog.String("user_id", p.ID), true
		}
		return slog.Attr{}, false
	}
}
