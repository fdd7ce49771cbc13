package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bedrockapp/bedrock/pkg/config"
	"github.com/bedrockapp/bedrock/pkg/logger"
	"github.com/bedrockapp/bedrock/pkg/plugin"
	"github.com/bedrockapp/bedrock/pkg/redis"
)

// deactivateBanDuration parks a deactivated account behind a ban long enough
// to be permanent for practical purposes while staying reversible.
const deactivateBanDuration = "876000h"

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithProvider overrides the provider client. Used in tests.
func WithProvider(provider *Provider) ServiceOption {
	return func(s *Service) {
		s.provider = provider
	}
}

// Service is the authentication and authorization facade: token
// verification through the identity provider's JWKS, role-based access
// decisions over cached role sets, and user administration proxied to the
// provider.
//
// Infrastructure failures on read paths degrade to empty results rather
// than propagate: a cache outage means "no roles found", not a crashed
// request. Access decisions themselves are never errors.
type Service struct {
	cache    *redis.Cache
	store    *Store
	provider *Provider
	verifier *Verifier
	log      *slog.Logger

	enabled       bool
	secretKey     string
	jwtAlgorithms []string
}

// NewService creates the auth service. The Redis cache plugin must be
// registered before this service so its client exists by the time Setup
// runs.
func NewService(cache *redis.Cache, opts ...ServiceOption) *Service {
	s := &Service{cache: cache, log: logger.NewNope()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Setup wires the store, provider client, and JWKS verifier from settings.
// With AUTH_ENABLED=false the service stays dormant and every
// authentication attempt fails with ErrNotConfigured.
//
// When auth is enabled but the Redis client never connected, Setup fails
// and leaves the store nil. The service still counts as enabled: the
// middleware stays engaged and the nil store reads as empty role sets, so
// protected routes deny instead of letting everyone through.
func (s *Service) Setup(ctx context.Context, cfg *config.Settings) error {
	s.enabled = cfg.AuthEnabled
	s.secretKey = cfg.SecretKey
	s.jwtAlgorithms = cfg.JWTAlgorithms
	if !s.enabled {
		return nil
	}

	client := s.cache.Client()
	if client == nil {
		return errors.Join(ErrNotConfigured, redis.ErrNotConnected)
	}

	s.store = NewStore(client, cfg.ProfileCacheTTL, cfg.JWKSCacheTTL)
	if s.provider == nil {
		s.provider = NewProvider(cfg.AuthProviderURL, cfg.AuthAnonKey, cfg.AuthServiceKey)
	}
	s.verifier = NewVerifier(cfg.JWKSEndpoint(), cfg.AuthAudience, cfg.JWKSCacheTTL, s.provider, s.store)

	if cfg.PolicyFile != "" {
		policy, err := LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return err
		}
		if err := s.ApplyPolicy(ctx, policy); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Teardown(ctx context.Context) error {
	if s.verifier != nil {
		s.verifier.ClearCache()
	}
	return nil
}

// Health reports provider reachability when auth is enabled; a dormant
// service is always healthy.
func (s *Service) Health(ctx context.Context) plugin.Status {
	details := map[string]any{"enabled": s.enabled}
	if s.verifier != nil {
		details["jwks"] = s.verifier.CacheInfo()
	}
	if !s.enabled {
		return plugin.Healthy(details)
	}
	if s.provider == nil {
		return plugin.Status{Healthy: false, Error: ErrNotConfigured.Error(), Details: details}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.provider.Healthcheck(pingCtx); err != nil {
		details["provider_reachable"] = false
		return plugin.Status{Healthy: false, Error: err.Error(), Details: details}
	}
	details["provider_reachable"] = true
	return plugin.Healthy(details)
}

// Store exposes the role/profile store for middleware and admin handlers.
// Nil until Setup runs with auth enabled.
func (s *Service) Store() *Store { return s.store }

// Enabled reports whether authentication is active.
func (s *Service) Enabled() bool { return s.enabled }

// AuthenticateToken verifies the token and returns the user's profile,
// served from the profile cache when fresh. Revoked tokens fail with
// ErrTokenBlacklisted before any cryptographic work.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*Profile, error) {
	if !s.enabled || s.verifier == nil || s.store == nil {
		return nil, ErrNotConfigured
	}

	if revoked, err := s.store.IsBlacklisted(ctx, token); err == nil && revoked {
		return nil, ErrTokenBlacklisted
	}

	userID, err := s.verifier.UserIDFromToken(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.profileByID(ctx, userID)
}

// VerifyJWT decodes a token minted with the local symmetric secret.
// Independent from AuthenticateToken; the primary flow never calls it.
func (s *Service) VerifyJWT(token string) (string, error) {
	return VerifyLocal(token, s.secretKey, s.jwtAlgorithms)
}

// RolesByUserID returns the user's cached role set. Empty input and cache
// failures both yield an empty set without error.
func (s *Service) RolesByUserID(ctx context.Context, userID string) []string {
	if userID == "" || s.store == nil {
		return nil
	}
	roles, err := s.store.UserRoles(ctx, userID)
	if err != nil {
		s.log.WarnContext(ctx, "role lookup failed", slog.String("user_id", userID), slog.Any("error", err))
		return nil
	}
	return roles
}

// RolesByTags returns the union of required role sets across tags. Empty
// input yields an empty set without touching the cache.
func (s *Service) RolesByTags(ctx context.Context, tags []string) []string {
	if len(tags) == 0 || s.store == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var union []string
	for _, tag := range tags {
		roles, err := s.store.TagRoles(ctx, tag)
		if err != nil {
			s.log.WarnContext(ctx, "tag role lookup failed", slog.String("tag", tag), slog.Any("error", err))
			continue
		}
		for _, role := range roles {
			if _, dup := seen[role]; !dup {
				seen[role] = struct{}{}
				union = append(union, role)
			}
		}
	}
	return union
}

// CheckAccess decides whether the user may reach a resource carrying the
// given tags. The required set is the union of the tags' role sets; an
// empty required set denies access, so untagged resources are unreachable
// until a policy is declared for them.
func (s *Service) CheckAccess(ctx context.Context, userID string, tags []string) bool {
	required := s.RolesByTags(ctx, tags)
	if len(required) == 0 {
		return false
	}

	userRoles := s.RolesByUserID(ctx, userID)
	for _, role := range userRoles {
		for _, want := range required {
			if role == want {
				return true
			}
		}
	}
	return false
}

// GrantRoles adds roles to a user.
func (s *Service) GrantRoles(ctx context.Context, userID string, roles ...string) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	return s.store.AddUserRoles(ctx, userID, roles...)
}

// RevokeRoles removes roles from a user.
func (s *Service) RevokeRoles(ctx context.Context, userID string, roles ...string) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	return s.store.RemoveUserRoles(ctx, userID, roles...)
}

// SetTagRoles declares the role set required by a tag.
func (s *Service) SetTagRoles(ctx context.Context, tag string, roles []string) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	return s.store.SetTagRoles(ctx, tag, roles)
}

// Logout revokes the token until its natural expiry, or for 24 hours when
// the expiry cannot be read.
func (s *Service) Logout(ctx context.Context, token string) error {
	if s.store == nil {
		return ErrNotConfigured
	}

	ttl := 24 * time.Hour
	if claims := unverifiedClaims(token); claims != nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			if remaining := time.Until(exp.Time); remaining > 0 {
				ttl = remaining
			}
		}
	}
	return s.store.BlacklistToken(ctx, token, ttl)
}

// RefreshUserCache evicts and re-fetches a user's cached profile.
func (s *Service) RefreshUserCache(ctx context.Context, userID string) (*Profile, error) {
	if s.store == nil || s.provider == nil {
		return nil, ErrNotConfigured
	}
	if err := s.store.DeleteProfile(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "profile evict failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	return s.profileByID(ctx, userID)
}

// ChangePassword sets a new password for the user via the admin API.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if s.provider == nil {
		return ErrNotConfigured
	}
	_, err := s.provider.UpdateUserByID(ctx, userID, map[string]any{"password": newPassword})
	return err
}

// VerifyPassword checks a password by performing the password grant with
// the user's email. Any failure is a plain "no".
func (s *Service) VerifyPassword(ctx context.Context, userID, password string) bool {
	if s.provider == nil {
		return false
	}
	profile, err := s.provider.GetUserByID(ctx, userID)
	if err != nil || profile.Email == "" {
		return false
	}
	token, err := s.provider.SignInWithPassword(ctx, profile.Email, password)
	return err == nil && token != nil
}

// InitiatePasswordReset asks the provider to send a recovery email.
func (s *Service) InitiatePasswordReset(ctx context.Context, email string) error {
	if s.provider == nil {
		return ErrNotConfigured
	}
	return s.provider.Recover(ctx, email)
}

// ConfirmPasswordReset finishes a reset using the recovery session token.
func (s *Service) ConfirmPasswordReset(ctx context.Context, recoveryToken, newPassword string) error {
	if s.provider == nil {
		return ErrNotConfigured
	}
	return s.provider.UpdateUser(ctx, recoveryToken, map[string]any{"password": newPassword})
}

// Ban blocks a user's sign-ins for the given duration and evicts the cached
// profile so the ban is visible immediately.
func (s *Service) Ban(ctx context.Context, userID string, d time.Duration) error {
	return s.adminUpdate(ctx, userID, map[string]any{"ban_duration": d.String()})
}

// Unban lifts a ban.
func (s *Service) Unban(ctx context.Context, userID string) error {
	return s.adminUpdate(ctx, userID, map[string]any{"ban_duration": "none"})
}

// Deactivate disables an account indefinitely and drops its roles.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if err := s.adminUpdate(ctx, userID, map[string]any{"ban_duration": deactivateBanDuration}); err != nil {
		return err
	}
	return s.store.SetUserRoles(ctx, userID, nil)
}

// DeleteUser removes the user from the provider and clears local state.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if s.provider == nil || s.store == nil {
		return ErrNotConfigured
	}
	if err := s.provider.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return errors.Join(
		s.store.DeleteProfile(ctx, userID),
		s.store.SetUserRoles(ctx, userID, nil),
	)
}

// ApplyPolicy seeds tag role requirements from a declarative policy.
func (s *Service) ApplyPolicy(ctx context.Context, policy *Policy) error {
	if s.store == nil {
		return ErrNotConfigured
	}
	var errs []error
	for tag, roles := range policy.Tags {
		if err := s.store.SetTagRoles(ctx, tag, roles); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) profileByID(ctx context.Context, userID string) (*Profile, error) {
	if cached, err := s.store.Profile(ctx, userID); err == nil && cached != nil {
		return cached, nil
	}

	profile, err := s.provider.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetProfile(ctx, profile); err != nil {
		s.log.WarnContext(ctx, "profile cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	return profile, nil
}

func (s *Service) adminUpdate(ctx context.Context, userID string, attrs map[string]any) error {
	if s.provider == nil || s.store == nil {
		return ErrNotConfigured
	}
	if _, err := s.provider.UpdateUserByID(ctx, userID, attrs); err != nil {
		return err
	}
	return s.store.DeleteProfile(ctx, userID)
}

// unverifiedClaims decodes claims without signature verification. Only used
// to read the expiry of a token that has already been verified upstream.
func unverifiedClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

var _ plugin.Plugin = (*Service)(nil)
