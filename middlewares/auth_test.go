package middlewares_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedrockapp/bedrock/middlewares"
	"github.com/bedrockapp/bedrock/pkg/auth"
	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/redis"
)

// authFixture wires a real auth.Service against an httptest identity
// provider and miniredis so the middleware runs its full path.
type authFixture struct {
	svc    *auth.Service
	key    *rsa.PrivateKey
	banned bool
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &authFixture{key: key}

	pub := key.Public().(*rsa.PublicKey)
	jwk, _ := json.Marshal(map[string]string{
		"kty": "RSA",
		"kid": "mw-key",
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"keys":[%s]}`, jwk)
	})
	mux.HandleFunc("/auth/v1/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		profile := auth.Profile{ID: "user-1", Email: "user@example.com"}
		if f.banned {
			until := time.Now().Add(time.Hour)
			profile.BannedUntil = &until
		}
		_ = json.NewEncoder(w).Encode(profile)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f.svc = auth.NewService(redis.NewCacheFromClient(client))
	require.NoError(t, f.svc.Setup(context.Background(), &config.Settings{
		AuthEnabled:     true,
		AuthProviderURL: server.URL,
		AuthAnonKey:     "anon",
		AuthServiceKey:  "service",
		AuthAudience:    "authenticated",
		JWKSCacheTTL:    time.Hour,
		ProfileCacheTTL: time.Minute,
	}))
	return f
}

func (f *authFixture) token(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   sub,
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token.Header["kid"] = "mw-key"
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func (f *authFixture) handler(cfg middlewares.AuthConfig) http.Handler {
	return middlewares.Auth(f.svc, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := middlewares.CurrentUser(r.Context()); p != nil {
			fmt.Fprint(w, p.ID)
			return
		}
		fmt.Fprint(w, "anonymous")
	}))
}

func routeTags(tags map[string][]string) middlewares.TagsFunc {
	return func(r *http.Request) ([]string, bool) {
		t, ok := tags[r.URL.Path]
		return t, ok
	}
}

func get(handler http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuth_AllowedPathSkipsEverything(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	handler := f.handler(middlewares.AuthConfig{RequireAuth: true})

	rec := get(handler, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestAuth_UnknownRouteIs404(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{}),
	})

	assert.Equal(t, http.StatusNotFound, get(handler, "/nope", "").Code)
}

func TestAuth_PublicTagSkipsAuth(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{"/open": {"public"}}),
	})

	rec := get(handler, "/open", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestAuth_MissingTokenIs401(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{"/private": {"members"}}),
	})

	rec := get(handler, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAuth_InvalidTokenIs401(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{"/private": {"members"}}),
	})

	assert.Equal(t, http.StatusUnauthorized, get(handler, "/private", "garbage").Code)
}

func TestAuth_AccessFlow(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{"/private": {"members"}, "/untagged": {}}),
	})
	token := f.token(t, "user-1")

	// No required roles declared for the tag yet: fail-closed deny.
	assert.Equal(t, http.StatusForbidden, get(handler, "/private", token).Code)

	require.NoError(t, f.svc.SetTagRoles(ctx, "members", []string{"member"}))

	// User still has no role.
	assert.Equal(t, http.StatusForbidden, get(handler, "/private", token).Code)

	require.NoError(t, f.svc.GrantRoles(ctx, "user-1", "member"))
	rec := get(handler, "/private", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	// A route with no tags at all is denied even for privileged users.
	assert.Equal(t, http.StatusForbidden, get(handler, "/untagged", token).Code)
}

func TestAuth_BlacklistedTokenIs401(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{"/private": {"members"}}),
	})

	require.NoError(t, f.svc.SetTagRoles(ctx, "members", []string{"member"}))
	require.NoError(t, f.svc.GrantRoles(ctx, "user-1", "member"))

	token := f.token(t, "user-1")
	assert.Equal(t, http.StatusOK, get(handler, "/private", token).Code)

	require.NoError(t, f.svc.Logout(ctx, token))
	rec := get(handler, "/private", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "already logged out")
}

func TestAuth_BannedUserIs403(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	f.banned = true
	handler := f.handler(middlewares.AuthConfig{
		RequireAuth: true,
		TagsFor:     routeTags(map[string][]string{"/private": {"members"}}),
	})

	rec := get(handler, "/private", f.token(t, "user-1"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "suspended")
}

func TestAuth_DisabledServiceIsNoop(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := auth.NewService(redis.NewCacheFromClient(client))
	require.NoError(t, svc.Setup(context.Background(), &config.Settings{AuthEnabled: false}))

	handler := middlewares.Auth(svc, middlewares.AuthConfig{RequireAuth: true})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	assert.Equal(t, http.StatusOK, get(handler, "/anything", "").Code)
}

func TestAuth_UnconnectedRedisDenies(t *testing.T) {
	t.Parallel()

	// Auth enabled but the Redis plugin never connected: setup fails and
	// the store stays nil. Protected routes must deny, not panic.
	svc := auth.NewService(redis.NewCache())
	err := svc.Setup(context.Background(), &config.Settings{
		AuthEnabled:     true,
		AuthProviderURL: "http://127.0.0.1:1",
		AuthAnonKey:     "anon",
		AuthServiceKey:  "service",
		AuthAudience:    "authenticated",
		JWKSCacheTTL:    time.Hour,
		ProfileCacheTTL: time.Minute,
	})
	require.Error(t, err)
	require.True(t, svc.Enabled())

	tags := routeTags(map[string][]string{
		"/reports": {"reports"},
		"/open":    {"public"},
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	strict := middlewares.Auth(svc, middlewares.AuthConfig{RequireAuth: true, TagsFor: tags})(ok)
	assert.Equal(t, http.StatusUnauthorized, get(strict, "/reports", "stale.bearer.token").Code)
	assert.Equal(t, http.StatusUnauthorized, get(strict, "/reports", "").Code)
	assert.Equal(t, http.StatusOK, get(strict, "/open", "").Code)

	// Without RequireAuth the request reaches the access check, which
	// reads the missing store as empty role sets and denies.
	optional := middlewares.Auth(svc, middlewares.AuthConfig{RequireAuth: false, TagsFor: tags})(ok)
	assert.Equal(t, http.StatusForbidden, get(optional, "/reports", "stale.bearer.token").Code)
}
