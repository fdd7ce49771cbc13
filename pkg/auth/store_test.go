package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedrockapp/bedrock/pkg/auth"
)

func newTestStore(t *testing.T) (*auth.Store, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewStore(client, 5*time.Minute, time.Hour), srv
}

func TestStore_UserRoles(t *testing.T) {
	t.Parallel()

	store, srv := newTestStore(t)
	ctx := context.Background()

	roles, err := store.UserRoles(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, roles)

	require.NoError(t, store.SetUserRoles(ctx, "u1", []string{"admin", "editor"}))
	roles, err = store.UserRoles(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admin", "editor"}, roles)

	// Stored under the documented key pattern.
	members, err := srv.SMembers("user:u1:role")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, store.AddUserRoles(ctx, "u1", "viewer"))
	roles, err = store.UserRoles(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	require.NoError(t, store.RemoveUserRoles(ctx, "u1", "admin", "viewer"))
	roles, err = store.UserRoles(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, roles)

	// Empty replacement set deletes the key.
	require.NoError(t, store.SetUserRoles(ctx, "u1", nil))
	assert.False(t, srv.Exists("user:u1:role"))
}

func TestStore_TagRoles(t *testing.T) {
	t.Parallel()

	store, srv := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetTagRoles(ctx, "reports", []string{"admin", "analyst"}))
	roles, err := store.TagRoles(ctx, "reports")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"admin", "analyst"}, roles)
	assert.True(t, srv.Exists("tag:reports:role"))

	// Replacement drops roles not in the new set.
	require.NoError(t, store.SetTagRoles(ctx, "reports", []string{"admin"}))
	roles, err = store.TagRoles(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, roles)

	require.NoError(t, store.SetTagRoles(ctx, "reports", nil))
	assert.False(t, srv.Exists("tag:reports:role"))
}

func TestStore_ProfileCache(t *testing.T) {
	t.Parallel()

	store, srv := newTestStore(t)
	ctx := context.Background()

	// Miss is (nil, nil), not an error.
	profile, err := store.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, profile)

	want := &auth.Profile{ID: "u1", Email: "u1@example.com", Role: "authenticated"}
	require.NoError(t, store.SetProfile(ctx, want))
	assert.True(t, srv.Exists("user_profile:u1"))

	got, err := store.Profile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Email, got.Email)

	// Entries expire with the configured TTL.
	srv.FastForward(10 * time.Minute)
	got, err = store.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.SetProfile(ctx, want))
	require.NoError(t, store.DeleteProfile(ctx, "u1"))
	assert.False(t, srv.Exists("user_profile:u1"))
}

func TestStore_CorruptProfileIsMiss(t *testing.T) {
	t.Parallel()

	store, srv := newTestStore(t)
	require.NoError(t, srv.Set("user_profile:u1", "{not json"))

	profile, err := store.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestStore_Blacklist(t *testing.T) {
	t.Parallel()

	store, srv := newTestStore(t)
	ctx := context.Background()

	revoked, err := store.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.BlacklistToken(ctx, "tok", time.Minute))
	revoked, err = store.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, srv.Exists("blacklist:tok"))

	srv.FastForward(2 * time.Minute)
	revoked, err = store.IsBlacklisted(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.BlacklistToken(ctx, "tok2", 0))
	require.NoError(t, store.RemoveFromBlacklist(ctx, "tok2"))
	revoked, err = store.IsBlacklisted(ctx, "tok2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestStore_JWKCache(t *testing.T) {
	t.Parallel()

	store, srv := newTestStore(t)
	ctx := context.Background()

	raw, err := store.JWK(ctx, "kid1")
	require.NoError(t, err)
	assert.Nil(t, raw)

	jwk := []byte(`{"kid":"kid1","kty":"RSA","n":"abc","e":"AQAB"}`)
	require.NoError(t, store.SetJWK(ctx, "kid1", jwk))
	assert.True(t, srv.Exists("jwks_key:kid1"))

	raw, err = store.JWK(ctx, "kid1")
	require.NoError(t, err)
	assert.Equal(t, jwk, raw)

	srv.FastForward(2 * time.Hour)
	raw, err = store.JWK(ctx, "kid1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
