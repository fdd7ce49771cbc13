package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedrockapp/bedrock/pkg/auth"
	"github.com/bedrockapp/bedrock/pkg/logger"
	"github.com/bedrockapp/bedrock/pkg/redis"
)

// testRegistrar records the tags each route is registered with, the same
// contract the application router implements.
type testRegistrar struct {
	router *chi.Mux
	tags   map[string][]string
}

func newTestRegistrar() *testRegistrar {
	return &testRegistrar{router: chi.NewRouter(), tags: make(map[string][]string)}
}

func (r *testRegistrar) Handle(method, pattern string, handler http.HandlerFunc, tags ...string) {
	r.router.Method(method, pattern, handler)
	r.tags[method+" "+pattern] = tags
}

func newTestHandler(t *testing.T, provider *fakeProvider) (*testRegistrar, *auth.Service) {
	t.Helper()
	svc, _ := newTestService(t, provider)
	reg := newTestRegistrar()
	auth.NewHandler(svc, logger.NewNope()).Register(reg, "/api/v1")
	return reg, svc
}

func do(reg *testRegistrar, method, path, body, token string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	reg.router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_RouteTags(t *testing.T) {
	t.Parallel()

	reg, _ := newTestHandler(t, newFakeProvider(t, newJWKSFixture(t)))

	assert.Equal(t, []string{auth.PublicTag}, reg.tags["POST /api/v1/auth/login"])
	assert.Equal(t, []string{auth.PublicTag}, reg.tags["GET /api/v1/auth/me"])
	assert.Equal(t, []string{auth.AdminTag}, reg.tags["POST /api/v1/auth/admin/users/{id}/ban"])
	assert.Equal(t, []string{auth.AdminTag}, reg.tags["PUT /api/v1/auth/admin/tags/{tag}"])
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()

	reg, _ := newTestHandler(t, newFakeProvider(t, newJWKSFixture(t)))

	t.Run("valid credentials", func(t *testing.T) {
		rec := do(reg, http.MethodPost, "/api/v1/auth/login",
			`{"email":"alice@example.com","password":"correct-horse"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"access_token":"at"`)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := do(reg, http.MethodPost, "/api/v1/auth/login",
			`{"email":"alice@example.com","password":"nope"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := do(reg, http.MethodPost, "/api/v1/auth/login", `{}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_LoginDisabled(t *testing.T) {
	t.Parallel()

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	// Service never set up: auth is not configured.
	svc := auth.NewService(redis.NewCacheFromClient(client))
	reg := newTestRegistrar()
	auth.NewHandler(svc, logger.NewNope()).Register(reg, "/api/v1")

	rec := do(reg, http.MethodPost, "/api/v1/auth/login",
		`{"email":"a@b.c","password":"x"}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandler_Me(t *testing.T) {
	t.Parallel()

	jwks := newJWKSFixture(t)
	reg, _ := newTestHandler(t, newFakeProvider(t, jwks))

	t.Run("valid token", func(t *testing.T) {
		rec := do(reg, http.MethodGet, "/api/v1/auth/me", "", jwks.sign(t, validClaims("user-123")))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "alice@example.com")
	})

	t.Run("no token", func(t *testing.T) {
		rec := do(reg, http.MethodGet, "/api/v1/auth/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := do(reg, http.MethodGet, "/api/v1/auth/me", "", "not.a.jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_Logout(t *testing.T) {
	t.Parallel()

	jwks := newJWKSFixture(t)
	reg, svc := newTestHandler(t, newFakeProvider(t, jwks))
	token := jwks.sign(t, validClaims("user-123"))

	rec := do(reg, http.MethodPost, "/api/v1/auth/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	revoked, err := svc.Store().IsBlacklisted(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestHandler_Ban(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider(t, newJWKSFixture(t))
	reg, _ := newTestHandler(t, provider)

	t.Run("bans for the given duration", func(t *testing.T) {
		rec := do(reg, http.MethodPost, "/api/v1/auth/admin/users/user-123/ban",
			`{"duration":"24h"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "24h0m0s", provider.lastUpdate["ban_duration"])
	})

	t.Run("rejects malformed duration", func(t *testing.T) {
		rec := do(reg, http.MethodPost, "/api/v1/auth/admin/users/user-123/ban",
			`{"duration":"tomorrow"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(reg, http.MethodPost, "/api/v1/auth/admin/users/ghost/ban",
			`{"duration":"1h"}`, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_RoleAdministration(t *testing.T) {
	t.Parallel()

	reg, svc := newTestHandler(t, newFakeProvider(t, newJWKSFixture(t)))
	ctx := context.Background()

	rec := do(reg, http.MethodPost, "/api/v1/auth/admin/users/user-123/roles",
		`{"roles":["editor","viewer"]}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"editor", "viewer"}, svc.RolesByUserID(ctx, "user-123"))

	rec = do(reg, http.MethodDelete, "/api/v1/auth/admin/users/user-123/roles",
		`{"roles":["viewer"]}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"editor"}, svc.RolesByUserID(ctx, "user-123"))

	rec = do(reg, http.MethodPut, "/api/v1/auth/admin/tags/reports",
		`{"roles":["editor"]}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"editor"}, svc.RolesByTags(ctx, []string{"reports"}))
	assert.True(t, svc.CheckAccess(ctx, "user-123", []string{"reports"}))
}

func TestHandler_PasswordReset(t *testing.T) {
	t.Parallel()

	reg, _ := newTestHandler(t, newFakeProvider(t, newJWKSFixture(t)))

	rec := do(reg, http.MethodPost, "/api/v1/auth/password/reset",
		`{"email":"alice@example.com"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Unknown addresses report success too.
	rec = do(reg, http.MethodPost, "/api/v1/auth/password/reset",
		`{"email":"ghost@example.com"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
