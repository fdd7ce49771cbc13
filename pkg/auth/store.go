package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key patterns used by the role and profile store. All operations are plain
// get/set/del/sadd on single keys; nothing spans multiple keys atomically.
func userRolesKey(userID string) string { return fmt.Sprintf("user:%s:role", userID) }
func tagRolesKey(tag string) string     { return fmt.Sprintf("tag:%s:role", tag) }
func profileKey(userID string) string   { return fmt.Sprintf("user_profile:%s", userID) }
func jwkKey(kid string) string          { return fmt.Sprintf("jwks_key:%s", kid) }
func blacklistKey(token string) string  { return fmt.Sprintf("blacklist:%s", token) }

// Store holds role sets, cached profiles, JWKS keys, and the token
// blacklist in Redis.
type Store struct {
	client     redis.UniversalClient
	profileTTL time.Duration
	jwkTTL     time.Duration
}

// NewStore creates a store over the given client. TTLs apply to cached
// profiles and JWKS keys respectively; role sets and blacklist entries
// manage their own expiry.
func NewStore(client redis.UniversalClient, profileTTL, jwkTTL time.Duration) *Store {
	return &Store{client: client, profileTTL: profileTTL, jwkTTL: jwkTTL}
}

// UserRoles returns the role set for a user. A missing key is an empty set,
// not an error.
func (s *Store) UserRoles(ctx context.Context, userID string) ([]string, error) {
	return s.client.SMembers(ctx, userRolesKey(userID)).Result()
}

// SetUserRoles replaces the user's role set. Nil or empty roles deletes the
// key entirely.
func (s *Store) SetUserRoles(ctx context.Context, userID string, roles []string) error {
	key := userRolesKey(userID)
	if len(roles) == 0 {
		return s.client.Del(ctx, key).Err()
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, toAnySlice(roles)...)
	_, err := pipe.Exec(ctx)
	return err
}

// AddUserRoles adds roles to the user's set without touching existing ones.
func (s *Store) AddUserRoles(ctx context.Context, userID string, roles ...string) error {
	if len(roles) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, userRolesKey(userID), toAnySlice(roles)...).Err()
}

// RemoveUserRoles removes roles from the user's set.
func (s *Store) RemoveUserRoles(ctx context.Context, userID string, roles ...string) error {
	if len(roles) == 0 {
		return nil
	}
	return s.client.SRem(ctx, userRolesKey(userID), toAnySlice(roles)...).Err()
}

// TagRoles returns the role set required by a tag.
func (s *Store) TagRoles(ctx context.Context, tag string) ([]string, error) {
	return s.client.SMembers(ctx, tagRolesKey(tag)).Result()
}

// SetTagRoles replaces the tag's required role set. Nil or empty roles
// deletes the key.
func (s *Store) SetTagRoles(ctx context.Context, tag string, roles []string) error {
	key := tagRolesKey(tag)
	if len(roles) == 0 {
		return s.client.Del(ctx, key).Err()
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, toAnySlice(roles)...)
	_, err := pipe.Exec(ctx)
	return err
}

// Profile returns the cached profile for a user, or (nil, nil) on cache miss.
func (s *Store) Profile(ctx context.Context, userID string) (*Profile, error) {
	raw, err := s.client.Get(ctx, profileKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		// Corrupt entries are treated as a miss; the caller refetches.
		return nil, nil
	}
	return &profile, nil
}

// SetProfile caches a profile with the configured TTL.
func (s *Store) SetProfile(ctx context.Context, profile *Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(profile.ID), raw, s.profileTTL).Err()
}

// DeleteProfile evicts a cached profile.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	return s.client.Del(ctx, profileKey(userID)).Err()
}

// JWK returns the cached raw JWK JSON for a key id, or (nil, nil) on miss.
func (s *Store) JWK(ctx context.Context, kid string) ([]byte, error) {
	raw, err := s.client.Get(ctx, jwkKey(kid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// SetJWK caches a raw JWK JSON blob with the configured TTL.
func (s *Store) SetJWK(ctx context.Context, kid string, raw []byte) error {
	return s.client.Set(ctx, jwkKey(kid), raw, s.jwkTTL).Err()
}

// BlacklistToken revokes a token. Zero ttl keeps the entry until Redis
// evicts it.
func (s *Store) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, blacklistKey(token), "1", ttl).Err()
}

// IsBlacklisted reports whether a token has been revoked.
func (s *Store) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveFromBlacklist un-revokes a token.
func (s *Store) RemoveFromBlacklist(ctx context.Context, token string) error {
	return s.client.Del(ctx, blacklistKey(token)).Err()
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
