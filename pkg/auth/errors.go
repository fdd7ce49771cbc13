package auth

import "errors"

var (
	ErrNotConfigured       = errors.New("auth: service not configured")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrTokenExpired        = errors.New("auth: token expired")
	ErrTokenBlacklisted    = errors.New("auth: token revoked")
	ErrMissingKeyID        = errors.New("auth: token header missing kid")
	ErrUnknownKey          = errors.New("auth: no JWKS key for kid")
	ErrProviderUnavailable = errors.New("auth: identity provider unavailable")
	ErrUserNotFound        = errors.New("auth: user not found")
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
)
